package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wojcikm/alice/pkg/agent"
	"github.com/wojcikm/alice/pkg/config"
	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/observability"
)

type runnerFunc func(ctx context.Context, req agent.Request) (*agent.Response, error)

func (f runnerFunc) Run(ctx context.Context, req agent.Request) (*agent.Response, error) {
	return f(ctx, req)
}

func echo(_ context.Context, req agent.Request) (*agent.Response, error) {
	last := req.Messages[len(req.Messages)-1].Content
	if req.OnDelta != nil {
		req.OnDelta("you said ")
		req.OnDelta(last)
	}
	return &agent.Response{ConversationUUID: "conv-1", Answer: "you said " + last}, nil
}

func newServer(t *testing.T, runner Runner, obs *observability.Manager) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHTTPServer(config.ServerConfig{}, runner, obs).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postChat(t *testing.T, url, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/api/chat", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newServer(t, runnerFunc(echo), nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestChat(t *testing.T) {
	var got agent.Request
	srv := newServer(t, runnerFunc(func(ctx context.Context, req agent.Request) (*agent.Response, error) {
		got = req
		return echo(ctx, req)
	}), nil)

	resp := postChat(t, srv.URL, `{
		"conversation_uuid": "conv-1",
		"user": {"uuid": "u-1", "name": "Adam", "environment": {"location": "Krakow"}},
		"messages": [{"role": "user", "content": "hello"}],
		"model": "gpt-4o"
	}`, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body agent.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "you said hello", body.Answer)
	assert.Equal(t, "conv-1", body.ConversationUUID)

	assert.Equal(t, "conv-1", got.ConversationUUID)
	assert.Equal(t, "Adam", got.User.Name)
	assert.Equal(t, "Krakow", got.User.Environment["location"])
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Nil(t, got.OnDelta)
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		want   string
	}{
		{
			name:   "malformed body",
			body:   `{"messages": [`,
			status: http.StatusBadRequest,
			want:   "invalid request body",
		},
		{
			name:   "validation",
			body:   `{"messages": []}`,
			err:    errs.NewValidationError("messages", "at least one message is required", nil),
			status: http.StatusBadRequest,
			want:   "at least one message is required",
		},
		{
			name:   "turn failure",
			body:   `{"messages": [{"role": "user", "content": "hi"}]}`,
			err:    errs.NewCompletionError("gpt-4o-mini", "plan", errors.New("upstream exploded with secrets")),
			status: http.StatusInternalServerError,
			want:   "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, runnerFunc(func(context.Context, agent.Request) (*agent.Response, error) {
				return nil, tt.err
			}), nil)

			resp := postChat(t, srv.URL, tt.body, nil)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Contains(t, body["error"], tt.want)
			assert.NotContains(t, body["error"], "secrets")
		})
	}
}

func TestChatStreams(t *testing.T) {
	srv := newServer(t, runnerFunc(echo), nil)

	resp := postChat(t, srv.URL, `{"messages": [{"role": "user", "content": "hello"}]}`,
		map[string]string{"Accept": "text/event-stream"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := string(body)

	assert.Contains(t, out, "event: delta\ndata: {\"text\":\"you said \"}\n\n")
	assert.Contains(t, out, "event: delta\ndata: {\"text\":\"hello\"}\n\n")
	assert.Contains(t, out, "event: done\n")
	assert.Less(t, strings.Index(out, "event: delta"), strings.Index(out, "event: done"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		srv := newServer(t, runnerFunc(echo), nil)
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("enabled", func(t *testing.T) {
		obs, err := observability.New(context.Background(), observability.Config{
			Metrics: observability.MetricsConfig{Enabled: true},
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

		srv := newServer(t, runnerFunc(echo), obs)
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestCORSPreflight(t *testing.T) {
	srv := newServer(t, runnerFunc(echo), nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/chat", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
