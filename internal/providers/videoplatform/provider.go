package videoplatform

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"satsangstream/resolverservice/internal/domain"
	"satsangstream/resolverservice/internal/providers/common"
)

const (
	defaultBaseURL        = "https://www.googleapis.com/youtube/v3"
	defaultRegion         = "IN"
	defaultTerms          = "bhajan"
	defaultDiscourseTerms = "pravachan satsang discourse lecture"
	defaultUserAgent      = "satsang-resolver/1.0"

	// The platform caps search page size; requesting more is an API error.
	maxPageSize = 10
)

// ErrMissingAPIKey means the provider was constructed without an API key and
// cannot serve searches.
var ErrMissingAPIKey = errors.New("videoplatform: missing API key")

type Config struct {
	BaseURL string
	APIKey  string
	// Region biases results to a country's catalog.
	Region string
	// Terms are appended to single-best queries when the query does not
	// already mention them.
	Terms string
	// DiscourseTerms replace Terms for ranked-list queries, biasing results
	// toward long-form spoken content.
	DiscourseTerms string
	UserAgent      string
	Client         *http.Client
}

type Provider struct {
	client         *http.Client
	baseURL        string
	apiKey         string
	region         string
	terms          string
	discourseTerms string
	userAgent      string
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		ChannelTitle string `json:"channelTitle"`
	} `json:"snippet"`
}

func NewProvider(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}
	terms := strings.TrimSpace(cfg.Terms)
	if terms == "" {
		terms = defaultTerms
	}
	discourseTerms := strings.TrimSpace(cfg.DiscourseTerms)
	if discourseTerms == "" {
		discourseTerms = defaultDiscourseTerms
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Provider{
		client:         client,
		baseURL:        baseURL,
		apiKey:         strings.TrimSpace(cfg.APIKey),
		region:         region,
		terms:          terms,
		discourseTerms: discourseTerms,
		userAgent:      userAgent,
	}
}

func (p *Provider) Name() string {
	return "video"
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "Video Platform",
		Kind:    "video",
		Enabled: p.apiKey != "",
	}
}

// Search biases toward devotional music. Mode-aware callers use SearchMode.
func (p *Provider) Search(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	return p.SearchMode(ctx, query, limit, domain.ModeSingleBest)
}

// SearchMode picks the bias terms by resolution mode: music terms for a
// single-best lookup, spoken-content terms for a ranked list.
func (p *Provider) SearchMode(ctx context.Context, query string, limit int, mode domain.ResolveMode) ([]domain.Candidate, error) {
	if p.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	terms := p.terms
	if mode == domain.ModeTopN {
		terms = p.discourseTerms
	}
	effective := query
	if terms != "" && !containsAnyTerm(query, terms) {
		effective = query + " " + terms
	}

	values := url.Values{}
	values.Set("part", "snippet")
	values.Set("type", "video")
	values.Set("q", effective)
	values.Set("maxResults", strconv.Itoa(limit))
	values.Set("regionCode", p.region)
	values.Set("key", p.apiKey)

	var payload searchResponse
	uri := p.baseURL + "/search?" + values.Encode()
	if err := common.GetJSON(ctx, p.client, uri, p.userAgent, nil, &payload); err != nil {
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(payload.Items))
	for _, item := range payload.Items {
		videoID := item.ID.VideoID
		if videoID == "" || strings.TrimSpace(item.Snippet.Title) == "" {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			Title:    item.Snippet.Title,
			SourceID: videoID,
			Playable: domain.PlayableRef{
				Kind:        domain.PlayableVideo,
				Ref:         videoID,
				ExternalURL: "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID),
			},
			Fields: domain.CandidateFields{
				Artist:      item.Snippet.ChannelTitle,
				Description: item.Snippet.Description,
			},
			ProviderRank: len(candidates),
		})
	}
	return candidates, nil
}

// containsAnyTerm reports whether the query already mentions one of the
// space-separated bias terms.
func containsAnyTerm(query, terms string) bool {
	lowered := strings.ToLower(query)
	for _, term := range strings.Fields(strings.ToLower(terms)) {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}
