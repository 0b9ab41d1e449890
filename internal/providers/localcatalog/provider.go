package localcatalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"satsangstream/resolverservice/internal/domain"
)

// Entry is one curated catalog item. AssetURL points at a directly playable
// audio file.
type Entry struct {
	Title    string   `json:"title"`
	Aliases  []string `json:"aliases,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Category string   `json:"category,omitempty"`
	AssetURL string   `json:"assetUrl"`
}

type Index struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

type Config struct {
	// Path to a JSON index file. Empty means the built-in catalog.
	Path string
	// Index overrides both Path and the built-in catalog when non-nil.
	Index *Index
}

type Provider struct {
	entries []Entry
}

// DefaultIndex is the built-in devotional catalog used when no index file is
// configured. Popularity order.
func DefaultIndex() *Index {
	return &Index{
		Version: 1,
		Entries: []Entry{
			{
				Title:    "Hare Krishna Hare Rama",
				Aliases:  []string{"krishna bhajan", "hare krishna", "maha mantra"},
				Keywords: []string{"krishna", "rama", "kirtan"},
				Category: "bhajan",
				AssetURL: "https://cdn.satsangstream.example/audio/hare-krishna-hare-rama.mp3",
			},
			{
				Title:    "Om Namah Shivaya",
				Aliases:  []string{"shiva bhajan", "shiv dhun"},
				Keywords: []string{"shiva", "mantra", "dhun"},
				Category: "mantra",
				AssetURL: "https://cdn.satsangstream.example/audio/om-namah-shivaya.mp3",
			},
			{
				Title:    "Om Jai Jagdish Hare",
				Aliases:  []string{"jagdish aarti", "vishnu aarti"},
				Keywords: []string{"aarti", "vishnu", "jagdish"},
				Category: "aarti",
				AssetURL: "https://cdn.satsangstream.example/audio/om-jai-jagdish-hare.mp3",
			},
			{
				Title:    "Jai Ganesh Deva",
				Aliases:  []string{"ganesh aarti", "ganpati aarti"},
				Keywords: []string{"ganesh", "aarti", "ganpati"},
				Category: "aarti",
				AssetURL: "https://cdn.satsangstream.example/audio/jai-ganesh-deva.mp3",
			},
			{
				Title:    "Gayatri Mantra",
				Aliases:  []string{"gayatri", "savitri mantra"},
				Keywords: []string{"gayatri", "mantra", "vedic"},
				Category: "mantra",
				AssetURL: "https://cdn.satsangstream.example/audio/gayatri-mantra.mp3",
			},
			{
				Title:    "Hanuman Chalisa",
				Aliases:  []string{"hanuman bhajan", "chalisa"},
				Keywords: []string{"hanuman", "chalisa", "tulsidas"},
				Category: "chalisa",
				AssetURL: "https://cdn.satsangstream.example/audio/hanuman-chalisa.mp3",
			},
			{
				Title:    "Achyutam Keshavam",
				Aliases:  []string{"achyutam", "krishna kanhaiya"},
				Keywords: []string{"krishna", "keshav", "bhajan"},
				Category: "bhajan",
				AssetURL: "https://cdn.satsangstream.example/audio/achyutam-keshavam.mp3",
			},
		},
	}
}

func NewProvider(cfg Config) (*Provider, error) {
	index := cfg.Index
	if index == nil && strings.TrimSpace(cfg.Path) != "" {
		loaded, err := loadIndex(cfg.Path)
		if err != nil {
			return nil, err
		}
		index = loaded
	}
	if index == nil {
		index = DefaultIndex()
	}

	entries := make([]Entry, 0, len(index.Entries))
	for _, entry := range index.Entries {
		if strings.TrimSpace(entry.Title) == "" || strings.TrimSpace(entry.AssetURL) == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return &Provider{entries: entries}, nil
}

func loadIndex(path string) (*Index, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog index: %w", err)
	}
	var index Index
	if err := json.Unmarshal(payload, &index); err != nil {
		return nil, fmt.Errorf("parse catalog index %s: %w", path, err)
	}
	return &index, nil
}

func (p *Provider) Name() string {
	return "local"
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "Local Catalog",
		Kind:    "catalog",
		Enabled: true,
	}
}

// Search matches the query against titles, aliases and keywords. An entry
// matches when its title or an alias contains the query, the query contains
// the title, or any query token equals a keyword. No I/O, never errors.
func (p *Provider) Search(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	_ = ctx
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = len(p.entries)
	}
	tokens := strings.Fields(needle)

	candidates := make([]domain.Candidate, 0, limit)
	for _, entry := range p.entries {
		if !matches(entry, needle, tokens) {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			Title:    entry.Title,
			SourceID: entry.AssetURL,
			Playable: domain.PlayableRef{
				Kind: domain.PlayableAsset,
				Ref:  entry.AssetURL,
			},
			Fields: domain.CandidateFields{
				Topic:    entry.Category,
				Aliases:  entry.Aliases,
				Keywords: entry.Keywords,
			},
			ProviderRank: len(candidates),
		})
		if len(candidates) >= limit {
			break
		}
	}
	return candidates, nil
}

// Popular returns the first titles of the catalog, which is kept in
// popularity order.
func (p *Provider) Popular(ctx context.Context, limit int) ([]string, error) {
	_ = ctx
	if limit <= 0 || limit > len(p.entries) {
		limit = len(p.entries)
	}
	titles := make([]string, 0, limit)
	for _, entry := range p.entries[:limit] {
		titles = append(titles, entry.Title)
	}
	return titles, nil
}

func matches(entry Entry, needle string, tokens []string) bool {
	title := strings.ToLower(entry.Title)
	if strings.Contains(title, needle) || strings.Contains(needle, title) {
		return true
	}
	for _, alias := range entry.Aliases {
		lowered := strings.ToLower(alias)
		if strings.Contains(lowered, needle) || strings.Contains(needle, lowered) {
			return true
		}
	}
	for _, keyword := range entry.Keywords {
		lowered := strings.ToLower(keyword)
		for _, token := range tokens {
			if token == lowered {
				return true
			}
		}
	}
	return false
}
