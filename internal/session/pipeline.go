package session

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/clinsight/internal/api"
	"github.com/leapstack-labs/clinsight/internal/stats"
	"github.com/leapstack-labs/clinsight/internal/viz"
	"github.com/leapstack-labs/clinsight/pkg/core"
)

// Submit creates a tab for the question and launches its pipeline.
// It never blocks on network I/O; the returned tab id can be passed to
// Wait. The new tab is prepended to the list and becomes active.
func (m *Manager) Submit(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("session: empty question")
	}

	m.mu.Lock()
	m.appendChatLocked(core.RoleUser, question)
	tab := m.newTabLocked(question)
	token := m.orch.Next()
	tail := m.conversationTailLocked()
	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancels[tab.ID] = cancel
	m.mu.Unlock()
	m.notify()

	go m.runPipeline(pctx, tab.ID, token, question, tail)
	return tab.ID, nil
}

// conversationTailLocked copies the trailing chat context sent with a
// draft request; callers hold mu. The tail excludes the user message
// just appended for this question.
func (m *Manager) conversationTailLocked() []core.ChatMessage {
	n := len(m.transcript) - 1
	if n <= 0 {
		return nil
	}
	start := n - conversationTail
	if start < 0 {
		start = 0
	}
	return append([]core.ChatMessage(nil), m.transcript[start:n]...)
}

// runPipeline drives one question through draft → (execute) →
// answer/visualization. Stage failures are written to the owning tab
// and never propagate past this function.
func (m *Manager) runPipeline(ctx context.Context, tabID string, token uint64, question string, tail []core.ChatMessage) {
	defer m.finish(tabID)

	draft, err := m.backend.Draft(ctx, api.DraftRequest{
		Question:     question,
		Conversation: tail,
	})
	if err != nil {
		m.failTab(tabID, token, "draft", err)
		return
	}

	switch draft.Mode {
	case core.ModeClarify:
		m.writeTab(tabID, func(t *core.Tab) {
			t.Draft = draft
			t.Clarification = draft.Clarification
			t.QuickReplies = draft.ExampleAnswers
			t.Status = core.TabSuccess
		})
		m.appendChatIfFresh(token, core.RoleAssistant, draft.Clarification)
		return

	case core.ModeDemo:
		m.commitPrimary(tabID, draft.SQL, draft, nil)
		m.runFollowUps(ctx, tabID, token, question, draft.SQL, draft.Result)

	case core.ModeAdvanced:
		run, err := m.backend.Execute(ctx, api.ExecuteRequest{QID: draft.QID, UserAck: true})
		if err != nil {
			m.writeTab(tabID, func(t *core.Tab) {
				t.Draft = draft
				t.SQL = draft.DraftSQL
			})
			m.failTab(tabID, token, "execute", err)
			return
		}
		m.commitPrimary(tabID, run.SQL, draft, run)
		m.runFollowUps(ctx, tabID, token, question, run.SQL, run.Result)
	}
}

// ExecuteEdited re-runs user-edited SQL through the execution tail of
// the pipeline. Status is terminal per attempt, so the re-run creates
// a sibling tab instead of resetting the source tab; the edited text
// passes the same backend validation as generated SQL and failures
// surface identically.
func (m *Manager) ExecuteEdited(ctx context.Context, sourceTabID, editedSQL string) (string, error) {
	editedSQL = strings.TrimSpace(editedSQL)
	if editedSQL == "" {
		return "", fmt.Errorf("session: empty SQL")
	}

	m.mu.Lock()
	src := m.findLocked(sourceTabID)
	if src == nil {
		m.mu.Unlock()
		return "", fmt.Errorf("session: unknown tab %s", sourceTabID)
	}
	question := src.Question
	src.EditedSQL = editedSQL
	src.IsEditing = false
	tab := m.newTabLocked(question)
	tab.SQL = editedSQL
	token := m.orch.Next()
	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancels[tab.ID] = cancel
	m.mu.Unlock()
	m.notify()

	go func() {
		defer m.finish(tab.ID)
		run, err := m.backend.Execute(pctx, api.ExecuteRequest{SQL: editedSQL, UserAck: true})
		if err != nil {
			m.failTab(tab.ID, token, "execute", err)
			return
		}
		m.commitPrimary(tab.ID, run.SQL, nil, run)
		m.runFollowUps(pctx, tab.ID, token, question, run.SQL, run.Result)
	}()
	return tab.ID, nil
}

// commitPrimary records the primary result (SQL + preview) and derives
// statistics. The primary commit is independent of the follow-ups: a
// slow or failed answer/visualization never blocks the table.
func (m *Manager) commitPrimary(tabID, sql string, draft *core.DraftResponse, run *core.RunResult) {
	m.writeTab(tabID, func(t *core.Tab) {
		t.SQL = sql
		t.Draft = draft
		t.Run = run
		t.Status = core.TabSuccess
		if pv := t.Preview(); pv != nil {
			t.Stats = stats.Summarize(pv.Columns, pv.Rows)
		}
	})
}

// runFollowUps launches the narrative answer and the visualization
// resolution concurrently. Each degrades independently: answer failure
// falls back to a deterministic summary, visualization failure to the
// locally synthesized chart (inside the resolver) or to no chart.
func (m *Manager) runFollowUps(ctx context.Context, tabID string, token uint64, question, sql string, preview *core.Preview) {
	var answerText string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := m.backend.Answer(gctx, answerRequest(question, sql, preview))
		if err != nil {
			m.logger.Warn("narrative answer failed, using summary fallback", "tab", tabID, "err", err)
			answerText = summaryFallback(preview)
			m.writeTab(tabID, func(t *core.Tab) { t.Insight = answerText })
			return nil
		}
		answerText = resp.Answer
		m.writeTab(tabID, func(t *core.Tab) {
			t.Insight = resp.Answer
			t.SuggestedQuestions = resp.SuggestedQuestions
		})
		return nil
	})
	g.Go(func() error {
		pref := ""
		if m.prefFor != nil {
			pref = m.prefFor(question)
		}
		res, err := m.resolver.Resolve(gctx, viz.Request{
			SQL:           sql,
			Question:      question,
			Preview:       preview,
			PreferredType: pref,
		})
		if err != nil || res == nil {
			if err != nil {
				m.logger.Warn("visualization unavailable", "tab", tabID, "err", err)
			}
			return nil
		}
		m.writeTab(tabID, func(t *core.Tab) {
			t.Viz = &core.VizResult{Payload: res.Payload, LocalFallback: res.LocalFallback}
			if t.Insight == "" && res.Payload.Insight != "" {
				t.Insight = res.Payload.Insight
			}
		})
		return nil
	})
	// Follow-up goroutines always return nil; Wait only sequences them.
	_ = g.Wait()

	m.appendChatIfFresh(token, core.RoleAssistant, answerText)
}

// failTab marks the tab failed with a user-readable message and, when
// the dispatch is still current, surfaces it in the chat transcript.
func (m *Manager) failTab(tabID string, token uint64, stage string, err error) {
	msg := api.UserMessageFor(err)
	m.logger.Warn("pipeline stage failed", "tab", tabID, "stage", stage, "err", err)
	m.writeTab(tabID, func(t *core.Tab) {
		t.Status = core.TabError
		t.Err = msg
	})
	m.appendChatIfFresh(token, core.RoleAssistant, msg)
}

// answerRequest samples the preview down to the answer stage's slice:
// at most maxAnswerRows rows and maxAnswerCols columns.
func answerRequest(question, sql string, preview *core.Preview) api.AnswerRequest {
	req := api.AnswerRequest{Question: question, SQL: sql}
	if preview == nil {
		return req
	}
	cols := preview.Columns
	if len(cols) > maxAnswerCols {
		cols = cols[:maxAnswerCols]
	}
	req.Columns = append([]string(nil), cols...)

	n := len(preview.Rows)
	if n > maxAnswerRows {
		n = maxAnswerRows
	}
	req.Rows = make([][]core.Cell, 0, n)
	for _, row := range preview.Rows[:n] {
		if len(row) > len(req.Columns) {
			row = row[:len(req.Columns)]
		}
		req.Rows = append(req.Rows, append([]core.Cell(nil), row...))
	}
	req.TotalRows = preview.EffectiveTotal()
	req.FetchedRows = len(preview.Rows)
	return req
}

// summaryFallback produces a minimal deterministic insight when the
// narrative stage is unavailable.
func summaryFallback(preview *core.Preview) string {
	if preview.Empty() {
		return "조회 결과가 없습니다."
	}
	return fmt.Sprintf("%d개 컬럼, %d행이 조회되었습니다.", len(preview.Columns), preview.EffectiveTotal())
}
