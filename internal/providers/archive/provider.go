package archive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"satsangstream/resolverservice/internal/domain"
	"satsangstream/resolverservice/internal/providers/common"
)

const (
	defaultBaseURL   = "https://archive.org"
	defaultUserAgent = "satsang-resolver/1.0"
)

type Config struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

// Provider searches the Internet Archive's audio collection. Each search hit
// needs a second metadata call to find a playable file, so search results are
// kept small.
type Provider struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

type searchResponse struct {
	Response struct {
		Docs []searchDoc `json:"docs"`
	} `json:"response"`
}

type searchDoc struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Creator    any    `json:"creator"`
}

type metadataResponse struct {
	Files []metadataFile `json:"files"`
}

type metadataFile struct {
	Name   string `json:"name"`
	Format string `json:"format"`
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
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Provider{client: client, baseURL: baseURL, userAgent: userAgent}
}

func (p *Provider) Name() string {
	return "archive"
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "Internet Archive",
		Kind:    "audio-archive",
		Enabled: true,
	}
}

func (p *Provider) Search(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	if limit <= 0 {
		limit = 10
	}
	docs, err := p.search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(docs))
	for _, doc := range docs {
		if doc.Identifier == "" {
			continue
		}
		assetURL, err := p.firstAudioFile(ctx, doc.Identifier)
		if err != nil {
			// One failed metadata lookup must not discard the other
			// candidates.
			slog.Warn("archive metadata lookup failed",
				slog.String("identifier", doc.Identifier),
				slog.String("error", err.Error()),
			)
			continue
		}
		if assetURL == "" {
			// Item has no playable audio file; skip it rather than hand
			// out a dead reference.
			continue
		}
		title := doc.Title
		if strings.TrimSpace(title) == "" {
			title = doc.Identifier
		}
		candidates = append(candidates, domain.Candidate{
			Title:    title,
			SourceID: doc.Identifier,
			Playable: domain.PlayableRef{
				Kind: domain.PlayableAsset,
				Ref:  assetURL,
			},
			Fields: domain.CandidateFields{
				Artist: creatorString(doc.Creator),
			},
			ProviderRank: len(candidates),
		})
	}
	return candidates, nil
}

// Popular lists well-downloaded devotional audio as suggestion fodder.
func (p *Provider) Popular(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	docs, err := p.search(ctx, "bhajan krishna", limit)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(docs))
	for _, doc := range docs {
		title := doc.Title
		if strings.TrimSpace(title) == "" {
			title = doc.Identifier
		}
		if title != "" {
			titles = append(titles, title)
		}
	}
	return titles, nil
}

// search queries advancedsearch.php restricted to the audio mediatype, most
// downloaded first.
func (p *Provider) search(ctx context.Context, query string, rows int) ([]searchDoc, error) {
	values := url.Values{}
	values.Set("q", fmt.Sprintf("(%s) AND mediatype:(audio)", query))
	values.Add("fl[]", "identifier")
	values.Add("fl[]", "title")
	values.Add("fl[]", "creator")
	values.Add("sort[]", "downloads desc")
	values.Set("rows", strconv.Itoa(rows))
	values.Set("output", "json")

	var payload searchResponse
	uri := p.baseURL + "/advancedsearch.php?" + values.Encode()
	if err := common.GetJSON(ctx, p.client, uri, p.userAgent, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Response.Docs, nil
}

// firstAudioFile returns a download URL for the item's first mp3, falling
// back to ogg. Empty when the item carries neither.
func (p *Provider) firstAudioFile(ctx context.Context, identifier string) (string, error) {
	var payload metadataResponse
	uri := p.baseURL + "/metadata/" + url.PathEscape(identifier)
	if err := common.GetJSON(ctx, p.client, uri, p.userAgent, nil, &payload); err != nil {
		return "", err
	}

	name := firstWithSuffix(payload.Files, ".mp3")
	if name == "" {
		name = firstWithSuffix(payload.Files, ".ogg")
	}
	if name == "" {
		return "", nil
	}
	return p.baseURL + "/download/" + url.PathEscape(identifier) + "/" + escapeFileName(name), nil
}

func firstWithSuffix(files []metadataFile, suffix string) string {
	for _, file := range files {
		if strings.HasSuffix(strings.ToLower(file.Name), suffix) {
			return file.Name
		}
	}
	return ""
}

// escapeFileName escapes each path segment of a file name, which may itself
// contain slashes.
func escapeFileName(name string) string {
	parts := strings.Split(name, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// creatorString flattens the creator field, which the archive returns as
// either a string or a list of strings.
func creatorString(raw any) string {
	switch value := raw.(type) {
	case string:
		return value
	case []any:
		parts := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}
