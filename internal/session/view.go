package session

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/clinsight/internal/stats"
	"github.com/leapstack-labs/clinsight/pkg/core"
)

// View is the rendered projection of the active tab. It has no
// independent source of truth: every field is copied out of the tab
// record on demand, so switching tabs is a pure projection.
type View struct {
	TabID              string
	Question           string
	SQL                string
	Status             core.TabStatus
	Err                string
	Preview            *core.Preview
	Viz                *core.VizResult
	Stats              []core.StatsRow
	Insight            string
	SuggestedQuestions []string
	Clarification      string
	QuickReplies       []string
	ShowSQLPanel       bool
	ShowResultPanel    bool
	IsEditing          bool
	EditedSQL          string
}

// View projects the active tab; the zero View (empty TabID) means the
// results panel is closed.
func (m *Manager) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	tab := m.findLocked(m.active)
	if tab == nil {
		return View{}
	}
	return View{
		TabID:              tab.ID,
		Question:           tab.Question,
		SQL:                tab.SQL,
		Status:             tab.Status,
		Err:                tab.Err,
		Preview:            tab.Preview(),
		Viz:                tab.Viz,
		Stats:              tab.Stats,
		Insight:            tab.Insight,
		SuggestedQuestions: tab.SuggestedQuestions,
		Clarification:      tab.Clarification,
		QuickReplies:       tab.QuickReplies,
		ShowSQLPanel:       tab.ShowSQLPanel,
		ShowResultPanel:    tab.ShowResultPanel,
		IsEditing:          tab.IsEditing,
		EditedSQL:          tab.EditedSQL,
	}
}

// Tabs returns value copies of the tab list, newest first.
func (m *Manager) Tabs() []core.Tab {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Tab, len(m.tabs))
	for i, t := range m.tabs {
		out[i] = *t
	}
	return out
}

// ActiveTabID returns the id of the active tab, or "".
func (m *Manager) ActiveTabID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Tab returns a value copy of one tab.
func (m *Manager) Tab(id string) (core.Tab, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.findLocked(id)
	if t == nil {
		return core.Tab{}, false
	}
	return *t, true
}

// Activate switches the active tab.
func (m *Manager) Activate(id string) error {
	m.mu.Lock()
	if m.findLocked(id) == nil {
		m.mu.Unlock()
		return fmt.Errorf("session: unknown tab %s", id)
	}
	m.active = id
	m.mu.Unlock()
	m.notify()
	return nil
}

// CloseTab removes a tab from the ordered list and cancels its
// in-flight pipeline. Closing the active tab promotes the next most
// recent tab; when none remain the results panel closes.
func (m *Manager) CloseTab(id string) error {
	m.mu.Lock()
	idx := -1
	for i, t := range m.tabs {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return fmt.Errorf("session: unknown tab %s", id)
	}
	cancel := m.cancels[id]
	m.tabs = append(m.tabs[:idx], m.tabs[idx+1:]...)
	if m.active == id {
		if len(m.tabs) > 0 {
			m.active = m.tabs[0].ID
		} else {
			m.active = ""
		}
	}
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.notify()
	return nil
}

// SetPanels updates the active tab's panel toggles.
func (m *Manager) SetPanels(id string, showSQL, showResult bool) error {
	if !m.writeTab(id, func(t *core.Tab) {
		t.ShowSQLPanel = showSQL
		t.ShowResultPanel = showResult
	}) {
		return fmt.Errorf("session: unknown tab %s", id)
	}
	return nil
}

// SetEditing toggles SQL edit mode on a tab and seeds the edit buffer
// with the current SQL.
func (m *Manager) SetEditing(id string, editing bool) error {
	if !m.writeTab(id, func(t *core.Tab) {
		t.IsEditing = editing
		if editing && t.EditedSQL == "" {
			t.EditedSQL = t.SQL
		}
	}) {
		return fmt.Errorf("session: unknown tab %s", id)
	}
	return nil
}

// Reset clears all tabs, the transcript, and the server-held history.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(m.cancels))
	for _, c := range m.cancels {
		cancels = append(cancels, c)
	}
	m.tabs = nil
	m.active = ""
	m.transcript = nil
	m.mu.Unlock()
	for _, c := range cancels {
		c()
	}
	m.notify()
	// A null snapshot clears server-side history.
	return m.backend.SaveHistory(ctx, nil)
}

// Restore loads the persisted snapshot and rebuilds a single tab plus
// the transcript from it. No history means a clean slate.
func (m *Manager) Restore(ctx context.Context) error {
	st, err := m.backend.LoadHistory(ctx)
	if err != nil {
		return err
	}
	if st == nil || st.Question == "" || st.Status == core.TabPending {
		return nil
	}
	m.mu.Lock()
	tab := m.newTabLocked(st.Question)
	tab.SQL = st.SQL
	tab.Status = st.Status
	tab.Err = st.Err
	tab.Insight = st.Insight
	tab.SuggestedQuestions = st.SuggestedQuestions
	tab.Viz = st.Viz
	if st.Preview != nil {
		tab.Run = &core.RunResult{SQL: st.SQL, Result: st.Preview}
		// Statistics are derived state; recompute instead of persisting.
		tab.Stats = stats.Summarize(st.Preview.Columns, st.Preview.Rows)
	}
	// Restored tabs are terminal; nothing is in flight for them.
	ch := m.waiters[tab.ID]
	delete(m.waiters, tab.ID)
	m.transcript = append([]core.ChatMessage(nil), st.Messages...)
	m.mu.Unlock()
	if ch != nil {
		close(ch)
	}
	m.notify()
	return nil
}
