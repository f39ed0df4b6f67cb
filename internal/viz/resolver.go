// Package viz resolves a visualization for a query result: it asks the
// backend for ranked chart recommendations and, when that fails, falls
// back to a locally synthesized aggregation over the preview. It also
// implements the category-count filtering applied to crowded charts.
package viz

import (
	"context"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/clinsight/internal/api"
	"github.com/leapstack-labs/clinsight/pkg/core"
)

// maxSampleRows bounds how many rows are sent to the visualize
// endpoint. Sampling is stride-based, not random, so the sample keeps
// the distributional shape of the full result.
const maxSampleRows = 1200

// Client is the slice of the backend client the resolver needs.
type Client interface {
	Visualize(ctx context.Context, req api.VisualizeRequest) (*core.VisualizationPayload, error)
}

// Resolver fetches or synthesizes chart plans. Tab-scoped: one Resolve
// call per pipeline, no shared state.
type Resolver struct {
	client Client
	logger *slog.Logger
}

// NewResolver creates a resolver. A nil logger discards.
func NewResolver(client Client, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{client: client, logger: logger}
}

// Request carries the inputs of one resolution.
type Request struct {
	SQL      string
	Question string
	Preview  *core.Preview
	// PreferredType, when set (from a saved dashboard shortcut),
	// promotes the first analysis card of that chart type.
	PreferredType string
}

// Resolution is the outcome: the payload, the chosen card, and whether
// the chart was synthesized locally rather than recommended by the
// server.
type Resolution struct {
	Payload       *core.VisualizationPayload
	Recommended   *core.AnalysisCard
	LocalFallback bool
}

// Resolve returns nil when there is nothing to visualize (blank SQL or
// an empty preview). It always issues a live request; results can
// change between runs of the same question, so prior responses are
// never cached. Backend failure degrades to the local
// fallback; a nil resolution with nil error means no chart is possible.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	if strings.TrimSpace(req.SQL) == "" || req.Preview.Empty() {
		return nil, nil
	}

	payload, err := r.client.Visualize(ctx, api.VisualizeRequest{
		UserQuery: req.Question,
		SQL:       req.SQL,
		Rows:      sampleRecords(req.Preview, maxSampleRows),
	})
	if err == nil && payload != nil && len(payload.Analyses) > 0 {
		card := pickCard(payload.Analyses, req.PreferredType)
		return &Resolution{Payload: payload, Recommended: card}, nil
	}
	if err != nil {
		r.logger.Warn("visualization request failed, synthesizing fallback", "err", err)
	}

	fallback := SynthesizeFallback(req.Preview)
	if fallback == nil {
		return nil, err
	}
	res := &Resolution{
		Payload: &core.VisualizationPayload{
			SQL:      req.SQL,
			Analyses: []core.AnalysisCard{*fallback},
		},
		Recommended:   fallback,
		LocalFallback: true,
	}
	if payload != nil {
		res.Payload.Insight = payload.Insight
	}
	return res, nil
}

// pickCard takes the server's first-ranked card unless a preferred
// chart type matches a later card.
func pickCard(cards []core.AnalysisCard, preferred string) *core.AnalysisCard {
	preferred = strings.ToLower(strings.TrimSpace(preferred))
	if preferred != "" {
		for i := range cards {
			if strings.EqualFold(cards[i].Spec.ChartType, preferred) {
				return &cards[i]
			}
		}
	}
	return &cards[0]
}

// sampleRecords stride-samples preview rows into column-keyed records.
func sampleRecords(p *core.Preview, max int) []map[string]any {
	idxs := strideIndexes(len(p.Rows), max)
	records := make([]map[string]any, 0, len(idxs))
	for _, ri := range idxs {
		row := p.Rows[ri]
		rec := make(map[string]any, len(p.Columns))
		for ci, col := range p.Columns {
			if ci < len(row) {
				rec[col] = row[ci]
			}
		}
		records = append(records, rec)
	}
	return records
}

// strideIndexes returns up to max indexes spread evenly across n rows.
func strideIndexes(n, max int) []int {
	if max <= 0 || n <= max {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	stride := (n + max - 1) / max
	out := make([]int, 0, max)
	for i := 0; i < n && len(out) < max; i += stride {
		out = append(out, i)
	}
	return out
}
