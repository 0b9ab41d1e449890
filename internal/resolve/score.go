package resolve

import (
	"strings"

	"satsangstream/resolverservice/internal/domain"
)

// Weights controls the additive relevance score. Full weights apply when the
// whole normalized query appears inside a field; Token weights add per query
// token found. The defaults preserve the ordering exact > token and
// title > topic > aliases/series > keywords > concepts > related > artist >
// description; deployments may tune the numbers.
type Weights struct {
	TitleFull, TitleToken             float64
	TopicFull, TopicToken             float64
	AliasFull, AliasToken             float64
	SeriesFull, SeriesToken           float64
	KeywordFull, KeywordToken         float64
	ConceptFull, ConceptToken         float64
	RelatedFull, RelatedToken         float64
	ArtistFull, ArtistToken           float64
	DescriptionFull, DescriptionToken float64
}

func DefaultWeights() Weights {
	return Weights{
		TitleFull: 10, TitleToken: 3,
		TopicFull: 8, TopicToken: 2,
		AliasFull: 6, AliasToken: 2,
		SeriesFull: 6, SeriesToken: 2,
		KeywordFull: 5, KeywordToken: 1.5,
		ConceptFull: 4, ConceptToken: 1,
		RelatedFull: 3, RelatedToken: 0.8,
		ArtistFull: 2, ArtistToken: 0.6,
		DescriptionFull: 2, DescriptionToken: 0.5,
	}
}

// Score computes the weighted substring-match score between a normalized
// query and one candidate. Pure function of its inputs: no randomness, no
// external state, cheap enough to recompute instead of memoize. A zero score
// means no field contained any query token.
func (w Weights) Score(query NormalizedQuery, candidate domain.Candidate) float64 {
	if query.Joined == "" {
		return 0
	}

	score := scoreText(query, candidate.Title, w.TitleFull, w.TitleToken)
	score += scoreText(query, candidate.Fields.Topic, w.TopicFull, w.TopicToken)
	score += scoreList(query, candidate.Fields.Aliases, w.AliasFull, w.AliasToken)
	score += scoreText(query, candidate.Fields.Series, w.SeriesFull, w.SeriesToken)
	score += scoreList(query, candidate.Fields.Keywords, w.KeywordFull, w.KeywordToken)
	score += scoreList(query, candidate.Fields.Concepts, w.ConceptFull, w.ConceptToken)
	score += scoreList(query, candidate.Fields.Related, w.RelatedFull, w.RelatedToken)
	score += scoreText(query, candidate.Fields.Artist, w.ArtistFull, w.ArtistToken)
	score += scoreText(query, candidate.Fields.Description, w.DescriptionFull, w.DescriptionToken)
	return score
}

func scoreText(query NormalizedQuery, text string, full, perToken float64) float64 {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return 0
	}
	score := 0.0
	if strings.Contains(text, query.Joined) {
		score += full
	}
	for _, token := range query.Tokens {
		if strings.Contains(text, token) {
			score += perToken
		}
	}
	return score
}

func scoreList(query NormalizedQuery, values []string, full, perToken float64) float64 {
	score := 0.0
	for _, value := range values {
		score += scoreText(query, value, full, perToken)
	}
	return score
}
