package lorem

import (
	"context"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	deployment "github.com/haowjy/meridian-deploy-go"
)

// InvokeRerank scores documents by query term overlap, breaking ties with a
// hash of the (query, document) pair so results are deterministic across runs.
// Returns nil when the query is blank or there are no documents.
func (a *Adapter) InvokeRerank(ctx context.Context, query string, documents []deployment.Document) (*deployment.RerankResult, error) {
	if err := deployment.RequireRerank(a.desc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 || len(documents) == 0 {
		return nil, nil
	}

	results := make([]deployment.RankedDocument, len(documents))
	for i, doc := range documents {
		results[i] = deployment.RankedDocument{
			Index: i,
			Score: score(query, terms, doc.Text()),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return &deployment.RerankResult{Results: results}, nil
}

// score returns a relevance in [0, 1): the fraction of query terms present
// in text, plus a hash-derived jitter below 0.01.
func score(query string, terms []string, text string) float64 {
	lower := strings.ToLower(text)
	hits := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}

	h := xxhash.New()
	_, _ = h.WriteString(query)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(text)
	jitter := float64(h.Sum64()%1000) / 100000

	return float64(hits)/float64(len(terms))*0.99 + jitter
}
