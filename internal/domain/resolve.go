package domain

import "time"

type ResolveMode string

const (
	ModeSingleBest ResolveMode = "single-best"
	ModeTopN       ResolveMode = "top-n"
)

func NormalizeMode(raw string) ResolveMode {
	switch ResolveMode(raw) {
	case ModeTopN:
		return ModeTopN
	default:
		return ModeSingleBest
	}
}

type PlayableKind string

const (
	// PlayableAsset is a direct audio/video asset URL.
	PlayableAsset PlayableKind = "asset"
	// PlayableTrack is a streaming-platform track identifier.
	PlayableTrack PlayableKind = "track"
	// PlayableVideo is a video-platform video identifier.
	PlayableVideo PlayableKind = "video"
)

// PlayableRef is whatever a playback surface needs to start the asset.
// ExternalOnly marks entries that can only be opened through the provider's
// own player via ExternalURL, with no direct playback reference.
type PlayableRef struct {
	Kind         PlayableKind `json:"kind,omitempty"`
	Ref          string       `json:"ref,omitempty"`
	ExternalURL  string       `json:"externalUrl,omitempty"`
	ExternalOnly bool         `json:"externalOnly,omitempty"`
}

func (p PlayableRef) Usable() bool {
	return p.Ref != "" || p.ExternalURL != ""
}

// CandidateFields carries the searchable text around a candidate beyond its
// title, in descending order of relevance weight.
type CandidateFields struct {
	Topic       string   `json:"topic,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
	Series      string   `json:"series,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Concepts    []string `json:"concepts,omitempty"`
	Related     []string `json:"related,omitempty"`
	Artist      string   `json:"artist,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Candidate is one result returned by a single provider for one query.
// ProviderRank is the candidate's position in the provider's own ordering and
// breaks score ties.
type Candidate struct {
	Title        string          `json:"title"`
	SourceID     string          `json:"sourceId,omitempty"`
	Playable     PlayableRef     `json:"playable"`
	Fields       CandidateFields `json:"fields,omitempty"`
	ProviderRank int             `json:"providerRank"`
}

type ScoredCandidate struct {
	Candidate
	Provider string  `json:"provider"`
	Score    float64 `json:"score"`
}

// ResolvedResult is the unit stored in the cache and returned to the caller.
// When Found is false, Suggestions holds popular titles the caller can offer.
type ResolvedResult struct {
	Found       bool            `json:"found"`
	Title       string          `json:"title,omitempty"`
	Provider    string          `json:"provider,omitempty"`
	Playable    PlayableRef     `json:"playable,omitempty"`
	Fields      CandidateFields `json:"fields,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
}

type ResolveRequest struct {
	Query      string
	Mode       ResolveMode
	MaxResults int
	// Provider selects the adapter for top-n mode; empty means the first
	// configured adapter. Ignored in single-best mode.
	Provider string
	NoCache  bool
}

type ProviderInfo struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Kind    string `json:"kind"`
	Enabled bool   `json:"enabled"`
}

type ProviderStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

type ProviderDiagnostics struct {
	Name                string     `json:"name"`
	Label               string     `json:"label"`
	Kind                string     `json:"kind"`
	Enabled             bool       `json:"enabled"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	BlockedUntil        *time.Time `json:"blockedUntil,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool       `json:"lastTimeout,omitempty"`
	LastQuery           string     `json:"lastQuery,omitempty"`
	TotalRequests       int64      `json:"totalRequests,omitempty"`
	TotalFailures       int64      `json:"totalFailures,omitempty"`
	TimeoutCount        int64      `json:"timeoutCount,omitempty"`
}

// ResolveResponse is the envelope for both resolution modes. Result is set in
// single-best mode; Items carries the ranked list in top-n mode.
type ResolveResponse struct {
	Query      string            `json:"query"`
	Normalized string            `json:"normalized"`
	Mode       ResolveMode       `json:"mode"`
	Result     *ResolvedResult   `json:"result,omitempty"`
	Items      []ScoredCandidate `json:"items,omitempty"`
	Providers  []ProviderStatus  `json:"providers"`
	ElapsedMS  int64             `json:"elapsedMs"`
	Cached     bool              `json:"cached,omitempty"`
}
