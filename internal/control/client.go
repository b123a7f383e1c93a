package control

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/v0xg/demotour/internal/playback"
)

// Client drives a remote control server.
type Client struct {
	client *resty.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

// State returns the current playback snapshot.
func (c *Client) State(ctx context.Context) (playback.Snapshot, error) {
	return c.do(ctx, resty.MethodGet, "/tour", nil)
}

// Scenarios lists the scenarios the server can play.
func (c *Client) Scenarios(ctx context.Context) ([]ScenarioSummary, error) {
	var out []ScenarioSummary
	var failure ErrorResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&failure).
		Get("/scenarios")
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Message: failure.Message}
	}
	return out, nil
}

// Start begins scenarioID in mode. Empty values take the server defaults.
func (c *Client) Start(ctx context.Context, scenarioID, mode string) (playback.Snapshot, error) {
	return c.do(ctx, resty.MethodPost, "/tour/start", StartRequest{Scenario: scenarioID, Mode: mode})
}

// Command sends one of stop, next, prev, pause or resume.
func (c *Client) Command(ctx context.Context, command string) (playback.Snapshot, error) {
	switch command {
	case "stop", "next", "prev", "pause", "resume":
	default:
		return playback.Snapshot{}, fmt.Errorf("unknown command %q", command)
	}
	return c.do(ctx, resty.MethodPost, "/tour/"+command, nil)
}

// Jump moves to step index.
func (c *Client) Jump(ctx context.Context, index int) (playback.Snapshot, error) {
	return c.do(ctx, resty.MethodPost, "/tour/jump/"+strconv.Itoa(index), nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (playback.Snapshot, error) {
	var snap playback.Snapshot
	var failure ErrorResponse

	req := c.client.R().
		SetContext(ctx).
		SetResult(&snap).
		SetError(&failure)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return playback.Snapshot{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return playback.Snapshot{}, &StatusError{Code: resp.StatusCode(), Message: failure.Message}
	}
	return snap, nil
}

// StatusError is a non-2xx answer from the control server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("control server answered %d: %s", e.Code, e.Message)
}
