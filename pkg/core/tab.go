package core

import "time"

// TabStatus is the lifecycle state of a question tab. A tab never moves
// backward: pending resolves to success or error exactly once, and a
// rerun creates a sibling tab instead of resetting status.
type TabStatus string

const (
	TabPending TabStatus = "pending"
	TabSuccess TabStatus = "success"
	TabError   TabStatus = "error"
)

// VizResult pairs a visualization payload with its provenance: a server
// recommendation or a locally synthesized fallback.
type VizResult struct {
	Payload       *VisualizationPayload `json:"payload"`
	LocalFallback bool                  `json:"local_fallback"`
}

// Tab is one independent question/answer session. It is owned by the
// session manager and mutated only through the pipeline's stage
// callbacks; persisted snapshots are deep copies, never aliases.
type Tab struct {
	ID       string    `json:"id"`
	Question string    `json:"question"`
	SQL      string    `json:"sql"`
	Status   TabStatus `json:"status"`
	Err      string    `json:"error,omitempty"`

	Draft *DraftResponse `json:"response,omitempty"`
	Run   *RunResult     `json:"run_result,omitempty"`
	Viz   *VizResult     `json:"visualization,omitempty"`

	// Stats is derived from the preview and recomputed on demand; the
	// preview is the source of truth.
	Stats []StatsRow `json:"statistics,omitempty"`

	Insight            string   `json:"insight,omitempty"`
	SuggestedQuestions []string `json:"suggested_questions,omitempty"`
	Clarification      string   `json:"clarification,omitempty"`
	QuickReplies       []string `json:"quick_replies,omitempty"`

	// Transient UI toggles, projected into the view when the tab is
	// active.
	ShowSQLPanel    bool   `json:"show_sql_panel"`
	ShowResultPanel bool   `json:"show_query_result_panel"`
	IsEditing       bool   `json:"is_editing"`
	EditedSQL       string `json:"edited_sql,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Preview returns the tab's effective preview: the execution result when
// present, otherwise the draft's demo preview.
func (t *Tab) Preview() *Preview {
	if t.Run != nil && t.Run.Result != nil {
		return t.Run.Result
	}
	if t.Draft != nil && t.Draft.Result != nil {
		return t.Draft.Result
	}
	return nil
}

// ChatRole identifies a transcript author.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one entry of the session transcript.
type ChatMessage struct {
	Role    ChatRole  `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}
