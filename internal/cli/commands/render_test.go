package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/clinsight/pkg/core"
)

func samplePreview() *core.Preview {
	return &core.Preview{
		Columns:  []string{"dept", "patients"},
		Rows:     [][]core.Cell{{"ER", 12.0}, {"ICU", nil}},
		RowCount: 2,
		RowCap:   500,
	}
}

func TestResolveFormat(t *testing.T) {
	var buf bytes.Buffer
	// A bytes.Buffer is never a TTY, so auto falls back to markdown.
	assert.Equal(t, "md", resolveFormat("auto", &buf))
	assert.Equal(t, "md", resolveFormat("", &buf))
	assert.Equal(t, "json", resolveFormat("json", &buf))
	assert.Equal(t, "csv", resolveFormat("csv", &buf))
}

func TestRenderPreviewMarkdown(t *testing.T) {
	var buf bytes.Buffer
	renderPreviewMarkdown(&buf, samplePreview())

	out := buf.String()
	assert.Contains(t, out, "| dept | patients |")
	assert.Contains(t, out, "| ER | 12 |")
	// nil cells render empty.
	assert.Contains(t, out, "| ICU |  |")
	assert.Contains(t, out, "(2 rows)")
}

func TestRenderPreviewJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderPreviewJSON(&buf, samplePreview()))

	out := buf.String()
	assert.Contains(t, out, `"dept": "ER"`)
	assert.Contains(t, out, `"patients": 12`)
	assert.Contains(t, out, `"patients": null`)
}

func TestRowCountNote(t *testing.T) {
	pv := samplePreview()
	assert.Equal(t, "(2 rows)", rowCountNote(pv))

	total := 969
	pv.TotalCount = &total
	assert.Equal(t, "(2 of 969 rows, capped at 500)", rowCountNote(pv))
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "", formatCell(nil))
	assert.Equal(t, "내과", formatCell("내과"))
	assert.Equal(t, "12", formatCell(12.0))
	assert.Equal(t, "0.5", formatCell(0.5))
}

func TestNormalizeInsight(t *testing.T) {
	// Plain text passes through.
	assert.Equal(t, "결과는 3행입니다.", normalizeInsight("  결과는 3행입니다.  "))

	// HTML converts to markdown.
	got := normalizeInsight("<p>응급실 방문이 <strong>증가</strong>했습니다.</p>")
	assert.Contains(t, got, "**증가**")
	assert.NotContains(t, got, "<p>")

	// A lone comparison sign is not HTML.
	assert.Equal(t, "a < b", normalizeInsight("a < b"))
}

func TestRenderTabErrorAndClarify(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderTab(&buf, core.Tab{
		Status: core.TabError,
		Err:    "요청 시간이 초과되었습니다. 잠시 후 다시 시도해 주세요.",
	}, "md"))
	assert.Contains(t, buf.String(), "요청 시간이 초과되었습니다")

	buf.Reset()
	require.NoError(t, renderTab(&buf, core.Tab{
		Status:        core.TabSuccess,
		Clarification: "어느 기간을 조회할까요?",
		QuickReplies:  []string{"최근 1년", "전체 기간"},
	}, "md"))
	out := buf.String()
	assert.Contains(t, out, "어느 기간을 조회할까요?")
	assert.Contains(t, out, "최근 1년")
}

func TestRenderTabFullResult(t *testing.T) {
	var buf bytes.Buffer
	tab := core.Tab{
		Status:  core.TabSuccess,
		SQL:     "SELECT dept, patients FROM visits",
		Run:     &core.RunResult{SQL: "SELECT dept, patients FROM visits", Result: samplePreview()},
		Insight: "응급실 방문이 가장 많습니다.",
	}
	tab.SuggestedQuestions = []string{"월별 추이는?"}
	tab.Viz = &core.VizResult{
		Payload: &core.VisualizationPayload{Analyses: []core.AnalysisCard{
			{Spec: core.ChartSpec{ChartType: "bar"}, Summary: "부서별 환자"},
		}},
		LocalFallback: true,
	}

	require.NoError(t, renderTab(&buf, tab, "md"))
	out := buf.String()
	assert.Contains(t, out, "SELECT")
	assert.Contains(t, out, "| dept | patients |")
	assert.Contains(t, out, "응급실 방문이 가장 많습니다.")
	assert.Contains(t, out, "월별 추이는?")
	assert.Contains(t, out, "bar")
	assert.Contains(t, strings.ToLower(out), "local fallback")
}
