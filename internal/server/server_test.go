package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/clinsight/internal/api"
	"github.com/leapstack-labs/clinsight/internal/session"
	"github.com/leapstack-labs/clinsight/internal/testutil"
	"github.com/leapstack-labs/clinsight/internal/viz"
	"github.com/leapstack-labs/clinsight/pkg/core"
)

type stubBackend struct{}

func (stubBackend) Draft(_ context.Context, req api.DraftRequest) (*core.DraftResponse, error) {
	return &core.DraftResponse{
		QID:  "q1",
		Mode: core.ModeDemo,
		SQL:  "SELECT dept, patients FROM visits",
		Result: &core.Preview{
			Columns:  []string{"dept", "patients"},
			Rows:     [][]core.Cell{{"ER", 12.0}, {"ICU", 5.0}},
			RowCount: 2,
			RowCap:   500,
		},
	}, nil
}

func (stubBackend) Execute(_ context.Context, req api.ExecuteRequest) (*core.RunResult, error) {
	return &core.RunResult{
		SQL: req.SQL,
		Result: &core.Preview{
			Columns:  []string{"n"},
			Rows:     [][]core.Cell{{1.0}},
			RowCount: 1,
			RowCap:   500,
		},
	}, nil
}

func (stubBackend) Answer(context.Context, api.AnswerRequest) (*api.AnswerResponse, error) {
	return &api.AnswerResponse{Answer: "두 부서가 조회되었습니다."}, nil
}

func (stubBackend) LoadHistory(context.Context) (*core.PersistedState, error) { return nil, nil }

func (stubBackend) SaveHistory(context.Context, *core.PersistedState) error { return nil }

type stubVizClient struct{}

func (stubVizClient) Visualize(context.Context, api.VisualizeRequest) (*core.VisualizationPayload, error) {
	return nil, errors.New("viz unavailable")
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := testutil.NewTestLogger(t)

	srv, err := New(Config{
		Addr: ":0",
		NewManager: func(string) (*session.Manager, error) {
			return session.NewManager(session.Config{
				Backend:  stubBackend{},
				Resolver: viz.NewResolver(stubVizClient{}, logger),
				Logger:   logger,
			}), nil
		},
		DemoQuestions: func(context.Context) ([]string, error) {
			return []string{"부서별 환자 수"}, nil
		},
		Logger: logger,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.closeManagers()
	})
	return ts
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func postJSON(t *testing.T, c *http.Client, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := c.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestSessionCookieSurvivesPlainHTTP(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t)

	resp := postJSON(t, c, ts.URL+"/api/questions?wait=1", map[string]string{"question": "부서별 환자 수"})
	defer resp.Body.Close()

	var uidCookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == sessionCookie {
			uidCookie = ck
		}
	}
	require.NotNil(t, uidCookie, "missing session cookie")
	// The local server speaks plain HTTP; a Secure cookie never makes
	// it back and every request would start a fresh session.
	assert.False(t, uidCookie.Secure)
	assert.True(t, uidCookie.HttpOnly)

	// The cookie jar must carry the uid to the next request so the
	// submitted tab is visible.
	resp2, err := c.Get(ts.URL + "/api/tabs")
	require.NoError(t, err)
	var listing struct {
		Tabs   []*core.Tab `json:"tabs"`
		Active string      `json:"active"`
	}
	decodeBody(t, resp2, &listing)
	require.Len(t, listing.Tabs, 1)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDemoQuestions(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/demo-questions")
	require.NoError(t, err)

	var body struct {
		Questions []string `json:"questions"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, []string{"부서별 환자 수"}, body.Questions)
}

func TestSubmitWaitReturnsFinishedTab(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t)

	resp := postJSON(t, c, ts.URL+"/api/questions?wait=1", map[string]string{"question": "부서별 환자 수"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var tab core.Tab
	decodeBody(t, resp, &tab)
	assert.Equal(t, core.TabSuccess, tab.Status)
	assert.Equal(t, "부서별 환자 수", tab.Question)
	assert.NotNil(t, tab.Preview())
	assert.NotEmpty(t, tab.Insight)
	// The failing viz client degrades to the local fallback chart.
	require.NotNil(t, tab.Viz)
	assert.True(t, tab.Viz.LocalFallback)
}

func TestSubmitEmptyQuestion(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t)

	resp := postJSON(t, c, ts.URL+"/api/questions", map[string]string{"question": "  "})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTabLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t)

	var tab core.Tab
	decodeBody(t, postJSON(t, c, ts.URL+"/api/questions?wait=1", map[string]string{"question": "질문 1"}), &tab)

	// List shows the tab as active.
	var listing struct {
		Tabs   []core.Tab `json:"tabs"`
		Active string     `json:"active"`
	}
	resp, err := c.Get(ts.URL + "/api/tabs")
	require.NoError(t, err)
	decodeBody(t, resp, &listing)
	require.Len(t, listing.Tabs, 1)
	assert.Equal(t, tab.ID, listing.Active)

	// Edited SQL creates a sibling tab.
	resp = postJSON(t, c, ts.URL+"/api/tabs/"+tab.ID+"/sql?wait=1", map[string]string{"sql": "SELECT 1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var edited core.Tab
	decodeBody(t, resp, &edited)
	assert.NotEqual(t, tab.ID, edited.ID)
	assert.Equal(t, "SELECT 1", edited.SQL)

	// Closing the sibling promotes the original.
	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/tabs/"+edited.ID, nil)
	require.NoError(t, err)
	resp, err = c.Do(req)
	require.NoError(t, err)
	var view session.View
	decodeBody(t, resp, &view)
	assert.Equal(t, tab.ID, view.TabID)

	// Unknown tab is a 404.
	resp, err = c.Get(ts.URL + "/api/tabs/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUsersAreIsolated(t *testing.T) {
	ts := newTestServer(t)
	alice := newClient(t)
	bob := newClient(t)

	postJSON(t, alice, ts.URL+"/api/questions?wait=1", map[string]string{"question": "앨리스 질문"}).Body.Close()

	var listing struct {
		Tabs []core.Tab `json:"tabs"`
	}
	resp, err := bob.Get(ts.URL + "/api/tabs")
	require.NoError(t, err)
	decodeBody(t, resp, &listing)
	assert.Empty(t, listing.Tabs)
}

func TestExportCSV(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t)

	var tab core.Tab
	decodeBody(t, postJSON(t, c, ts.URL+"/api/questions?wait=1", map[string]string{"question": "내보내기"}), &tab)

	resp, err := c.Get(fmt.Sprintf("%s/api/tabs/%s/export.csv", ts.URL, tab.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\xef\xbb\xbf")))
	assert.True(t, strings.Contains(string(data), "dept,patients"))
}

func TestReset(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t)

	postJSON(t, c, ts.URL+"/api/questions?wait=1", map[string]string{"question": "지울 질문"}).Body.Close()

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/session", nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Tabs []core.Tab `json:"tabs"`
	}
	resp, err = c.Get(ts.URL + "/api/tabs")
	require.NoError(t, err)
	decodeBody(t, resp, &listing)
	assert.Empty(t, listing.Tabs)
}
