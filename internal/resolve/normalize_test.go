package resolve

import (
	"reflect"
	"testing"
)

func TestNormalizeStripsStopWords(t *testing.T) {
	normalizer := NewNormalizer()

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"hindi command phrase", "krishna ka bhajan bajao", "krishna bhajan"},
		{"english command phrase", "play hanuman chalisa", "hanuman chalisa"},
		{"mixed connectors", "osho ke vichar on dhyan", "osho vichar dhyan"},
		{"already clean", "gayatri mantra", "gayatri mantra"},
		{"uppercase input", "KRISHNA Bhajan", "krishna bhajan"},
		{"punctuation split", "krishna, bhajan!", "krishna bhajan"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizer.Normalize(tc.input)
			if got.Joined != tc.want {
				t.Errorf("Normalize(%q).Joined = %q, want %q", tc.input, got.Joined, tc.want)
			}
		})
	}
}

func TestNormalizeDiacriticFolding(t *testing.T) {
	normalizer := NewNormalizer()
	got := normalizer.Normalize("kṛṣṇa bhajan")
	if got.Joined != "krsna bhajan" {
		t.Fatalf("expected folded query, got %q", got.Joined)
	}
}

func TestNormalizeAllStopWordsFallsBack(t *testing.T) {
	normalizer := NewNormalizer()
	got := normalizer.Normalize("bajao ka")
	if got.Joined == "" {
		t.Fatalf("expected non-empty fallback for all-stop-word input")
	}
	if !reflect.DeepEqual(got.Tokens, []string{"bajao", "ka"}) {
		t.Fatalf("expected original tokens preserved, got %v", got.Tokens)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	normalizer := NewNormalizer()
	inputs := []string{
		"krishna ka bhajan bajao",
		"bajao ka",
		"Hanuman Chalisa sunao",
		"kṛṣṇa",
	}
	for _, input := range inputs {
		first := normalizer.Normalize(input)
		second := normalizer.Normalize(first.Joined)
		if first.Joined != second.Joined {
			t.Errorf("normalize not idempotent for %q: %q then %q", input, first.Joined, second.Joined)
		}
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	normalizer := NewNormalizer()
	for _, input := range []string{"", "   ", "\t\n"} {
		got := normalizer.Normalize(input)
		if got.Joined != "" || len(got.Tokens) != 0 {
			t.Errorf("Normalize(%q) = %#v, want empty", input, got)
		}
	}
}

func TestNormalizeExtraStopWords(t *testing.T) {
	normalizer := NewNormalizer("please", "Wala")
	got := normalizer.Normalize("please krishna wala bhajan")
	if got.Joined != "krishna bhajan" {
		t.Fatalf("expected extra stop words removed, got %q", got.Joined)
	}
}
