package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

const searchCypher = `
CALL db.index.fulltext.queryNodes($index, $query)
YIELD node, score
RETURN coalesce(node.canonical_id, '') AS id,
       coalesce(node.title, '') AS title,
       coalesce(node.summary, coalesce(node.content, '')) AS content,
       score
ORDER BY score DESC, id
LIMIT $limit`

// Adapter is the GRAPH source: a full-text lookup against the
// knowledge graph's document nodes. Lucene index scores are rescaled
// against the batch maximum so the adapter reports confidence-like
// values in [0,1], matching its declared native range.
type Adapter struct {
	driver   neo4j.DriverWithContext
	database string
	index    string
}

func New(ctx context.Context, uri, user, password, database, index string) (*Adapter, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Adapter{
		driver:   driver,
		database: database,
		index:    index,
	}, nil
}

func (a *Adapter) Close(ctx context.Context) error {
	return a.driver.Close(ctx)
}

func (a *Adapter) Source() domain.Source {
	return domain.SourceGraph
}

func (a *Adapter) Search(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error) {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: a.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, searchCypher, map[string]any{
			"index": a.index,
			"query": query,
			"limit": limit,
		})
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("graph fulltext query: %w", err)
	}

	collected, ok := records.([]*neo4j.Record)
	if !ok {
		return nil, fmt.Errorf("unexpected graph result type %T", records)
	}
	return recordsToResults(collected), nil
}

func recordsToResults(records []*neo4j.Record) []domain.RetrievalResult {
	out := make([]domain.RetrievalResult, 0, len(records))
	for _, record := range records {
		out = append(out, domain.RetrievalResult{
			CanonicalID: stringValue(record, "id"),
			Title:       stringValue(record, "title"),
			Content:     stringValue(record, "content"),
			Source:      domain.SourceGraph,
			RawScore:    floatValue(record, "score"),
		})
	}
	return rescaleAgainstTop(out)
}

// rescaleAgainstTop maps raw Lucene scores into [0,1] by dividing by
// the batch maximum. Records arrive score-descending, so the first
// result carries the maximum.
func rescaleAgainstTop(results []domain.RetrievalResult) []domain.RetrievalResult {
	if len(results) == 0 {
		return results
	}
	top := results[0].RawScore
	if top <= 0 {
		return results
	}
	for i := range results {
		results[i].RawScore = results[i].RawScore / top
	}
	return results
}

func stringValue(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func floatValue(record *neo4j.Record, key string) float64 {
	v, ok := record.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}
