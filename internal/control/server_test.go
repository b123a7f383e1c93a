package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/demotour/internal/playback"
	"github.com/v0xg/demotour/internal/scenario"
	"github.com/v0xg/demotour/internal/stage/stagetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Server, *playback.Engine) {
	t.Helper()
	reg, err := scenario.NewRegistry(scenario.Builtin()...)
	require.NoError(t, err)

	st := stagetest.New().Add("#x", stagetest.KindBlock).Add("#y", stagetest.KindBlock)
	opts := playback.DefaultOptions()
	opts.SettleDelay = time.Millisecond
	opts.EmphasisDelay = time.Millisecond
	opts.DefaultStepDuration = time.Hour
	e := playback.New(reg, st, opts)
	t.Cleanup(e.Close)

	return NewServer(e, reg, Options{DefaultScenario: scenario.DefaultScenarioID}), e
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, playback.Snapshot) {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var snap playback.Snapshot
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	}
	return w.Code, snap
}

func TestServer_TourLifecycle(t *testing.T) {
	s, e := newTestServer(t)
	h := s.Handler()

	code, snap := do(t, h, http.MethodGet, "/tour", "")
	require.Equal(t, http.StatusOK, code)
	assert.False(t, snap.Active)

	code, snap = do(t, h, http.MethodPost, "/tour/start", `{"scenario":"tour_basic","mode":"guided"}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, snap.Active)
	assert.Equal(t, "tour_basic", snap.ScenarioID)
	assert.Equal(t, playback.ModeGuided, snap.Mode)
	require.NotNil(t, snap.Step)
	assert.Equal(t, "s1", snap.Step.ID)

	tests := []struct {
		path      string
		wantIndex int
		wantPlay  bool
	}{
		{path: "/tour/next", wantIndex: 1},
		{path: "/tour/next", wantIndex: 2},
		{path: "/tour/prev", wantIndex: 1},
		{path: "/tour/resume", wantIndex: 1, wantPlay: true},
		{path: "/tour/pause", wantIndex: 1},
		{path: "/tour/jump/0", wantIndex: 0},
		{path: "/tour/jump/9", wantIndex: 0},
	}
	for _, tt := range tests {
		code, snap = do(t, h, http.MethodPost, tt.path, "")
		require.Equal(t, http.StatusOK, code, tt.path)
		assert.Equal(t, tt.wantIndex, snap.StepIndex, tt.path)
		assert.Equal(t, tt.wantPlay, snap.Playing, tt.path)
	}

	code, snap = do(t, h, http.MethodPost, "/tour/stop", "")
	require.Equal(t, http.StatusOK, code)
	assert.False(t, snap.Active)
	e.Wait()
}

func TestServer_StartDefaults(t *testing.T) {
	s, _ := newTestServer(t)

	code, snap := do(t, s.Handler(), http.MethodPost, "/tour/start", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, scenario.DefaultScenarioID, snap.ScenarioID)
	assert.Equal(t, playback.ModeCinematic, snap.Mode)
	assert.True(t, snap.Playing)
}

func TestServer_StartErrors(t *testing.T) {
	s, e := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "unknown scenario", body: `{"scenario":"nope"}`, want: http.StatusNotFound},
		{name: "unknown mode", body: `{"scenario":"tour_basic","mode":"fast"}`, want: http.StatusBadRequest},
		{name: "malformed body", body: `{"scenario":`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := do(t, h, http.MethodPost, "/tour/start", tt.body)
			assert.Equal(t, tt.want, code)
			assert.False(t, e.Snapshot().Active)
		})
	}
}

func TestServer_JumpRejectsNonInteger(t *testing.T) {
	s, _ := newTestServer(t)

	code, _ := do(t, s.Handler(), http.MethodPost, "/tour/jump/second", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServer_Scenarios(t *testing.T) {
	s, _ := newTestServer(t)

	r := httptest.NewRequest(http.MethodGet, "/scenarios", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var list []ScenarioSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "rfp_overview", list[0].ID)
	assert.Equal(t, ScenarioSummary{ID: "tour_basic", Name: list[1].Name, Steps: 3}, list[1])
}

func TestClient(t *testing.T) {
	s, e := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	c := NewClient(ts.URL, 5*time.Second)
	ctx := context.Background()

	snap, err := c.Start(ctx, "tour_basic", "guided")
	require.NoError(t, err)
	assert.True(t, snap.Active)

	snap, err = c.Command(ctx, "next")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.StepIndex)

	snap, err = c.Jump(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.StepIndex)

	snap, err = c.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s3", snap.Step.ID)

	list, err := c.Scenarios(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = c.Command(ctx, "rewind")
	assert.Error(t, err)

	_, err = c.Start(ctx, "nope", "")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Contains(t, statusErr.Message, "unknown scenario")

	_, err = c.Command(ctx, "stop")
	require.NoError(t, err)
	e.Wait()
}
