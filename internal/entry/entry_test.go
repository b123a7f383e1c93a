package entry

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/demotour/internal/playback"
)

type startCall struct {
	scenarioID string
	mode       playback.Mode
}

// fakeStarter records Start calls.
type fakeStarter struct {
	mu     sync.Mutex
	active bool
	calls  []startCall
	err    error
}

func (f *fakeStarter) Start(scenarioID string, mode playback.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, startCall{scenarioID, mode})
	if f.err != nil {
		return f.err
	}
	f.active = true
	return nil
}

func (f *fakeStarter) Snapshot() playback.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return playback.Snapshot{Active: f.active}
}

func (f *fakeStarter) starts() []startCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]startCall(nil), f.calls...)
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantOK  bool
		wantErr bool
		want    Request
	}{
		{name: "no flag", query: "scenario=x", wantOK: false},
		{name: "flag false", query: "demo=false", wantOK: false},
		{name: "flag yes is not accepted", query: "demo=yes", wantOK: false},
		{name: "defaults", query: "demo=true", wantOK: true, want: Request{ScenarioID: "rfp_overview", Mode: playback.ModeCinematic}},
		{name: "numeric flag", query: "demo=1&scenario=tour_basic", wantOK: true, want: Request{ScenarioID: "tour_basic", Mode: playback.ModeCinematic}},
		{name: "guided", query: "demo=true&mode=guided", wantOK: true, want: Request{ScenarioID: "rfp_overview", Mode: playback.ModeGuided}},
		{name: "bad mode", query: "demo=true&mode=fast", wantOK: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			got, ok, err := ParseQuery(q, "rfp_overview")
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestManual_Start(t *testing.T) {
	f := &fakeStarter{}
	m := &Manual{Engine: f, DefaultScenario: "rfp_overview"}

	require.NoError(t, m.Start("", ""))
	require.NoError(t, m.Start("tour_basic", "guided"))

	err := m.Start("tour_basic", "slideshow")
	var cfgErr *playback.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	assert.Equal(t, []startCall{
		{"rfp_overview", playback.ModeCinematic},
		{"tour_basic", playback.ModeGuided},
	}, f.starts())
}

func TestAutoStarter_StartsAfterGrace(t *testing.T) {
	f := &fakeStarter{}
	a := NewAutoStarter(f, AutoStarterOptions{DefaultScenario: "rfp_overview", Grace: 20 * time.Millisecond})

	require.True(t, a.Mount(context.Background(), "http://localhost:3000/?demo=true&mode=guided"))
	assert.Empty(t, f.starts(), "start waits for the grace delay")

	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("auto-start did not complete")
	}
	require.NoError(t, a.Err())
	assert.Equal(t, []startCall{{"rfp_overview", playback.ModeGuided}}, f.starts())
}

func TestAutoStarter_OnlyOnce(t *testing.T) {
	f := &fakeStarter{}
	a := NewAutoStarter(f, AutoStarterOptions{Grace: time.Millisecond})

	assert.False(t, a.Mount(context.Background(), "http://localhost:3000/rfps"))
	assert.False(t, a.Mount(context.Background(), "http://localhost:3000/?demo=true&scenario=tour_basic"))

	<-a.Done()
	assert.Empty(t, f.starts())
}

func TestAutoStarter_SkipsWhenActive(t *testing.T) {
	f := &fakeStarter{active: true}
	a := NewAutoStarter(f, AutoStarterOptions{Grace: time.Millisecond})

	assert.False(t, a.Mount(context.Background(), "http://localhost:3000/?demo=1"))
	<-a.Done()
	assert.Empty(t, f.starts())
}

func TestAutoStarter_CancelledDuringGrace(t *testing.T) {
	f := &fakeStarter{}
	a := NewAutoStarter(f, AutoStarterOptions{Grace: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, a.Mount(ctx, "http://localhost:3000/?demo=1"))
	cancel()

	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled auto-start did not finish")
	}
	assert.Empty(t, f.starts())
}

func TestAutoStarter_BadMode(t *testing.T) {
	f := &fakeStarter{}
	a := NewAutoStarter(f, AutoStarterOptions{Grace: time.Millisecond})

	assert.False(t, a.Mount(context.Background(), "http://localhost:3000/?demo=1&mode=fast&scenario=tour_basic"))
	<-a.Done()

	var cfgErr *playback.ConfigurationError
	require.True(t, errors.As(a.Err(), &cfgErr))
	assert.Equal(t, "tour_basic", cfgErr.ScenarioID)
	assert.Empty(t, f.starts())
}
