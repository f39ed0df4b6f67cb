package core

// PersistedRowCap bounds how many preview rows a session snapshot may
// carry, keeping the server-held store payload small.
const PersistedRowCap = 200

// PersistedState is the trimmed, serializable projection of the active
// tab plus the chat transcript. It mirrors the live view only, never
// the full tab collection, so persisted history stays bounded.
type PersistedState struct {
	Question           string         `json:"question"`
	SQL                string         `json:"sql"`
	Status             TabStatus      `json:"status"`
	Err                string         `json:"error,omitempty"`
	Preview            *Preview       `json:"preview,omitempty"`
	Viz                *VizResult     `json:"visualization,omitempty"`
	Insight            string         `json:"insight,omitempty"`
	SuggestedQuestions []string       `json:"suggested_questions,omitempty"`
	Messages           []ChatMessage  `json:"messages,omitempty"`
}

// SnapshotTab projects a tab into a persisted state, deep-copying and
// capping the preview so the snapshot never aliases live tab data.
// Pending tabs are not snapshotted: a restored tab has no pipeline
// behind it, so only terminal outcomes survive a restart.
func SnapshotTab(t *Tab, transcript []ChatMessage) *PersistedState {
	if t == nil || t.Status == TabPending {
		return nil
	}
	st := &PersistedState{
		Question:           t.Question,
		SQL:                t.SQL,
		Status:             t.Status,
		Err:                t.Err,
		Preview:            t.Preview().Truncated(PersistedRowCap),
		Insight:            t.Insight,
		SuggestedQuestions: append([]string(nil), t.SuggestedQuestions...),
		Messages:           append([]ChatMessage(nil), transcript...),
	}
	if t.Viz != nil {
		viz := *t.Viz
		st.Viz = &viz
	}
	return st
}
