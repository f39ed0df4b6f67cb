package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/leapstack-labs/clinsight/pkg/core"
)

// DraftRequest is the body of POST /query/draft.
type DraftRequest struct {
	Question     string             `json:"question"`
	Conversation []core.ChatMessage `json:"conversation,omitempty"`
	UserContext  map[string]string  `json:"user_context,omitempty"`
}

// Draft asks the planner for SQL (or a clarification) for a question.
func (c *Client) Draft(ctx context.Context, req DraftRequest) (*core.DraftResponse, error) {
	data, err := c.doJSON(ctx, http.MethodPost, "/query/draft", req, c.timeouts.Draft)
	if err != nil {
		return nil, err
	}
	return core.DecodeDraftResponse(data)
}

// ExecuteRequest is the body of POST /query/execute. Either QID (for a
// planner draft) or SQL (for user-edited text) identifies the query;
// UserAck acknowledges the execution of draft SQL.
type ExecuteRequest struct {
	QID     string `json:"qid,omitempty"`
	SQL     string `json:"sql,omitempty"`
	UserAck bool   `json:"user_ack"`
}

// Execute runs draft or edited SQL on the backend. Edited SQL passes
// through the same backend validation as generated SQL.
func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (*core.RunResult, error) {
	req.UserAck = true
	data, err := c.doJSON(ctx, http.MethodPost, "/query/execute", req, c.timeouts.Execute)
	if err != nil {
		return nil, err
	}
	return core.DecodeRunResult(data)
}

// AnswerRequest seeds the narrative-answer stage with a sampled slice
// of the preview.
type AnswerRequest struct {
	Question    string        `json:"question"`
	SQL         string        `json:"sql"`
	Columns     []string      `json:"columns"`
	Rows        [][]core.Cell `json:"rows"`
	TotalRows   int           `json:"total_rows"`
	FetchedRows int           `json:"fetched_rows"`
}

// AnswerResponse carries the narrative insight and follow-up questions.
type AnswerResponse struct {
	Answer             string   `json:"answer"`
	SuggestedQuestions []string `json:"suggested_questions"`
}

// Answer requests a narrative answer over the sampled preview.
func (c *Client) Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	data, err := c.doJSON(ctx, http.MethodPost, "/query/answer", req, c.timeouts.Answer)
	if err != nil {
		return nil, err
	}
	var resp AnswerResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &core.DecodeError{Field: "answer", Reason: err.Error()}
	}
	return &resp, nil
}

// VisualizeRequest is the body of POST /query/visualize. Rows are
// stride-sampled records keyed by column name.
type VisualizeRequest struct {
	UserQuery string           `json:"user_query"`
	SQL       string           `json:"sql"`
	Rows      []map[string]any `json:"rows"`
}

// Visualize requests server-ranked chart recommendations.
func (c *Client) Visualize(ctx context.Context, req VisualizeRequest) (*core.VisualizationPayload, error) {
	data, err := c.doJSON(ctx, http.MethodPost, "/query/visualize", req, c.timeouts.Visualize)
	if err != nil {
		return nil, err
	}
	var payload core.VisualizationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &core.DecodeError{Field: "visualize", Reason: err.Error()}
	}
	return &payload, nil
}

// historyEnvelope wraps the persisted state; a null state clears the
// server-side history.
type historyEnvelope struct {
	State *core.PersistedState `json:"state"`
}

// LoadHistory fetches the per-user session snapshot; a nil state means
// no history is stored.
func (c *Client) LoadHistory(ctx context.Context) (*core.PersistedState, error) {
	data, err := c.doJSON(ctx, http.MethodGet, "/chat-history", nil, c.timeouts.Draft)
	if err != nil {
		return nil, err
	}
	var env historyEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &core.DecodeError{Field: "chat-history", Reason: err.Error()}
	}
	return env.State, nil
}

// SaveHistory writes (or, with nil state, clears) the per-user session
// snapshot. Last write wins; there is no locking.
func (c *Client) SaveHistory(ctx context.Context, state *core.PersistedState) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/chat-history", historyEnvelope{State: state}, c.timeouts.Draft)
	return err
}

// DemoQuestions returns curated example questions for the empty state.
func (c *Client) DemoQuestions(ctx context.Context) ([]string, error) {
	data, err := c.doJSON(ctx, http.MethodGet, "/demo-questions", nil, c.timeouts.Draft)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &core.DecodeError{Field: "demo-questions", Reason: err.Error()}
	}
	return resp.Questions, nil
}

// DashboardQuery is a saved dashboard shortcut: a question with an
// optional preferred chart type applied when its results are charted.
type DashboardQuery struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	Question  string `json:"question"`
	ChartType string `json:"chart_type,omitempty"`
}

// ListDashboardQueries fetches the user's saved dashboard shortcuts.
func (c *Client) ListDashboardQueries(ctx context.Context) ([]DashboardQuery, error) {
	data, err := c.doJSON(ctx, http.MethodGet, "/dashboard/queries", nil, c.timeouts.Draft)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Queries []DashboardQuery `json:"queries"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &core.DecodeError{Field: "dashboard", Reason: err.Error()}
	}
	return resp.Queries, nil
}

// SaveDashboardQuery stores a dashboard shortcut.
func (c *Client) SaveDashboardQuery(ctx context.Context, q DashboardQuery) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/dashboard/queries", q, c.timeouts.Draft)
	return err
}

// BudgetStatus reports the user's remaining query budget.
type BudgetStatus struct {
	Used      float64 `json:"used"`
	Limit     float64 `json:"limit"`
	Exhausted bool    `json:"exhausted"`
}

// Budget fetches the current budget status.
func (c *Client) Budget(ctx context.Context) (*BudgetStatus, error) {
	data, err := c.doJSON(ctx, http.MethodGet, "/budget/status", nil, c.timeouts.Draft)
	if err != nil {
		return nil, err
	}
	var status BudgetStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, &core.DecodeError{Field: "budget", Reason: err.Error()}
	}
	return &status, nil
}

// SetBudgetConfig updates the budget limit (admin passthrough).
func (c *Client) SetBudgetConfig(ctx context.Context, limit float64) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/budget/config", map[string]float64{"limit": limit}, c.timeouts.Draft)
	return err
}
