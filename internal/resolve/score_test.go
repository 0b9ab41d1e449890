package resolve

import (
	"testing"

	"satsangstream/resolverservice/internal/domain"
)

func scoreOf(t *testing.T, query string, candidate domain.Candidate) float64 {
	t.Helper()
	normalizer := NewNormalizer()
	return DefaultWeights().Score(normalizer.Normalize(query), candidate)
}

func TestScoreExactTitleBeatsTokenMatch(t *testing.T) {
	exact := domain.Candidate{Title: "Gayatri Mantra"}
	partial := domain.Candidate{Title: "Mantra Collection Volume 2"}

	exactScore := scoreOf(t, "gayatri mantra", exact)
	partialScore := scoreOf(t, "gayatri mantra", partial)
	if exactScore <= partialScore {
		t.Fatalf("exact title %v should outscore partial %v", exactScore, partialScore)
	}
}

func TestScoreFieldOrdering(t *testing.T) {
	query := "dhyan"
	titleHit := domain.Candidate{Title: "Dhyan Sutra"}
	topicHit := domain.Candidate{Title: "Morning Talk", Fields: domain.CandidateFields{Topic: "dhyan"}}
	keywordHit := domain.Candidate{Title: "Morning Talk", Fields: domain.CandidateFields{Keywords: []string{"dhyan"}}}
	descriptionHit := domain.Candidate{Title: "Morning Talk", Fields: domain.CandidateFields{Description: "a talk about dhyan"}}

	title := scoreOf(t, query, titleHit)
	topic := scoreOf(t, query, topicHit)
	keyword := scoreOf(t, query, keywordHit)
	description := scoreOf(t, query, descriptionHit)

	if !(title > topic && topic > keyword && keyword > description) {
		t.Fatalf("expected title > topic > keyword > description, got %v %v %v %v",
			title, topic, keyword, description)
	}
}

func TestScoreZeroWhenNoOverlap(t *testing.T) {
	candidate := domain.Candidate{
		Title: "Om Jai Jagdish Hare",
		Fields: domain.CandidateFields{
			Keywords: []string{"aarti", "vishnu"},
		},
	}
	if got := scoreOf(t, "quantum computing", candidate); got != 0 {
		t.Fatalf("expected zero score, got %v", got)
	}
}

func TestScoreAccumulatesAcrossFields(t *testing.T) {
	base := domain.Candidate{Title: "Krishna Bhajan"}
	enriched := domain.Candidate{
		Title: "Krishna Bhajan",
		Fields: domain.CandidateFields{
			Topic:    "krishna",
			Keywords: []string{"krishna", "bhajan"},
		},
	}
	if scoreOf(t, "krishna bhajan", enriched) <= scoreOf(t, "krishna bhajan", base) {
		t.Fatalf("matching extra fields should raise the score")
	}
}

func TestScoreDeterministic(t *testing.T) {
	candidate := domain.Candidate{
		Title: "Shri Krishna Govind",
		Fields: domain.CandidateFields{
			Topic:       "krishna",
			Aliases:     []string{"govind bhajan"},
			Keywords:    []string{"krishna", "bhajan"},
			Concepts:    []string{"bhakti"},
			Description: "classic krishna bhajan",
		},
	}
	query := NewNormalizer().Normalize("krishna ka bhajan")

	weights := DefaultWeights()
	first := weights.Score(query, candidate)
	second := weights.Score(query, candidate)
	if first != second {
		t.Fatalf("identical inputs must score identically, got %v then %v", first, second)
	}
}

func TestScoreEmptyQuery(t *testing.T) {
	candidate := domain.Candidate{Title: "Anything"}
	if got := DefaultWeights().Score(NormalizedQuery{}, candidate); got != 0 {
		t.Fatalf("expected zero for empty query, got %v", got)
	}
}

func TestScoreCaseInsensitive(t *testing.T) {
	candidate := domain.Candidate{Title: "HANUMAN CHALISA"}
	if got := scoreOf(t, "hanuman chalisa", candidate); got == 0 {
		t.Fatalf("expected case-insensitive match")
	}
}
