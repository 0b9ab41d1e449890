package streaming

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
	defaultBaseURL    = "https://api.spotify.com/v1"
	defaultMarket     = "IN"
	defaultQualifiers = "bhajan devotional"
	defaultUserAgent  = "satsang-resolver/1.0"
)

// ErrMissingToken means the provider was constructed without an API token and
// cannot serve searches.
var ErrMissingToken = errors.New("streaming: missing API token")

type Config struct {
	BaseURL string
	Token   string
	// Market biases results to a storefront region.
	Market string
	// Qualifiers are appended to the query on the first, strict search pass.
	Qualifiers string
	UserAgent  string
	Client     *http.Client
}

// Provider searches a streaming catalog for playable tracks. It runs a strict
// pass with devotional qualifiers appended, then a loose pass with the bare
// query whenever the strict pass yielded nothing directly playable. Tracks
// without a preview URL surface as external-only deep links, and only when
// neither pass produced playable audio.
type Provider struct {
	client     *http.Client
	baseURL    string
	token      string
	market     string
	qualifiers string
	userAgent  string
}

type searchResponse struct {
	Tracks struct {
		Items []trackItem `json:"items"`
	} `json:"tracks"`
}

type trackItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PreviewURL   string `json:"preview_url"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name string `json:"name"`
	} `json:"album"`
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
	market := strings.TrimSpace(cfg.Market)
	if market == "" {
		market = defaultMarket
	}
	qualifiers := strings.TrimSpace(cfg.Qualifiers)
	if qualifiers == "" {
		qualifiers = defaultQualifiers
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Provider{
		client:     client,
		baseURL:    baseURL,
		token:      strings.TrimSpace(cfg.Token),
		market:     market,
		qualifiers: qualifiers,
		userAgent:  userAgent,
	}
}

func (p *Provider) Name() string {
	return "streaming"
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "Streaming Catalog",
		Kind:    "streaming",
		Enabled: p.token != "",
	}
}

func (p *Provider) Search(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	if p.token == "" {
		return nil, ErrMissingToken
	}
	if limit <= 0 {
		limit = 10
	}

	strict := query
	if p.qualifiers != "" && !strings.Contains(strings.ToLower(query), strings.ToLower(p.qualifiers)) {
		strict = query + " " + p.qualifiers
	}

	playable, externalOnly, err := p.searchCandidates(ctx, strict, limit)
	if err != nil {
		return nil, err
	}
	if len(playable) == 0 && strict != query {
		loosePlayable, looseExternal, err := p.searchCandidates(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		playable = loosePlayable
		if len(externalOnly) == 0 {
			externalOnly = looseExternal
		}
	}

	if len(playable) > 0 {
		return withRanks(playable), nil
	}
	return withRanks(externalOnly), nil
}

// searchCandidates runs one search pass and splits the usable results into
// directly playable candidates and external-only ones.
func (p *Provider) searchCandidates(ctx context.Context, query string, limit int) (playable, externalOnly []domain.Candidate, err error) {
	items, err := p.search(ctx, query, limit)
	if err != nil {
		return nil, nil, err
	}
	for _, item := range items {
		candidate, ok := toCandidate(item)
		if !ok {
			continue
		}
		if candidate.Playable.ExternalOnly {
			externalOnly = append(externalOnly, candidate)
		} else {
			playable = append(playable, candidate)
		}
	}
	return playable, externalOnly, nil
}

func withRanks(candidates []domain.Candidate) []domain.Candidate {
	for i := range candidates {
		candidates[i].ProviderRank = i
	}
	return candidates
}

func (p *Provider) search(ctx context.Context, query string, limit int) ([]trackItem, error) {
	values := url.Values{}
	values.Set("q", query)
	values.Set("type", "track")
	values.Set("market", p.market)
	values.Set("limit", strconv.Itoa(limit))

	headers := map[string]string{"Authorization": "Bearer " + p.token}
	var payload searchResponse
	uri := p.baseURL + "/search?" + values.Encode()
	if err := common.GetJSON(ctx, p.client, uri, p.userAgent, headers, &payload); err != nil {
		return nil, err
	}
	return payload.Tracks.Items, nil
}

func toCandidate(item trackItem) (domain.Candidate, bool) {
	if item.ID == "" || strings.TrimSpace(item.Name) == "" {
		return domain.Candidate{}, false
	}

	playable := domain.PlayableRef{
		Kind:        domain.PlayableTrack,
		ExternalURL: item.ExternalURLs.Spotify,
	}
	if item.PreviewURL != "" {
		// Directly playable audio preview; the streaming track stays
		// reachable through ExternalURL.
		playable.Kind = domain.PlayableAsset
		playable.Ref = item.PreviewURL
	} else if item.ExternalURLs.Spotify != "" {
		playable.Ref = item.ID
		playable.ExternalOnly = true
	} else {
		return domain.Candidate{}, false
	}

	artists := make([]string, 0, len(item.Artists))
	for _, artist := range item.Artists {
		if artist.Name != "" {
			artists = append(artists, artist.Name)
		}
	}

	return domain.Candidate{
		Title:    item.Name,
		SourceID: item.ID,
		Playable: playable,
		Fields: domain.CandidateFields{
			Series: item.Album.Name,
			Artist: strings.Join(artists, ", "),
		},
	}, true
}
