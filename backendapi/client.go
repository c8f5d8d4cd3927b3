// Package backendapi contains the minimal client the bot uses to talk to the intrasudo
// backend: the level roster, the domain event sink and the chat lock endpoints.
// Every request carries the bot's static bearer token.
package backendapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/SoulShadow8326/intrasudo25/discordbot/telemetry"
)

// Client calls the backend API rooted at BaseURL.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a client whose transport injects "Authorization: Bearer <token>".
func New(baseURL, token string, timeout time.Duration) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: src, Base: http.DefaultTransport},
		},
	}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Response is the backend's envelope for event and status calls.
type Response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RecordID returns data.id as a string. The backend sends it as a number or a string.
func (r *Response) RecordID() (string, bool) {
	if r == nil || len(r.Data) == 0 {
		return "", false
	}
	dec := json.NewDecoder(bytes.NewReader(r.Data))
	dec.UseNumber()
	var data struct {
		ID any `json:"id"`
	}
	if err := dec.Decode(&data); err != nil {
		return "", false
	}
	switch v := data.ID.(type) {
	case json.Number:
		return v.String(), true
	case string:
		return v, v != ""
	default:
		return "", false
	}
}

// ErrStatus is returned by Levels when the backend answers with a non-200 status.
var ErrStatus = errors.New("unexpected backend status")

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	telemetry.InjectHTTP(ctx, req.Header)
	var resp *http.Response
	telemetry.TimeFunc(telemetry.BackendDuration, func() {
		resp, err = c.http().Do(req)
	})
	return resp, err
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}

// Levels fetches the current level roster. A transport failure or non-200 answer
// yields an error so callers can tell it apart from an empty roster.
func (c *Client) Levels(ctx context.Context) ([]int, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerBackend, "backend.levels", telemetry.HTTPMethodAttr(http.MethodGet))
	defer span.End()

	resp, err := c.do(ctx, http.MethodGet, "/api/levels", nil)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("fetch levels: %w", err)
	}
	defer closeBody(resp)
	telemetry.SetSpanHTTPStatus(span, resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("fetch levels: %w %d: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(b)))
		telemetry.RecordError(span, err)
		return nil, err
	}
	var body struct {
		Levels []int `json:"levels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("decode levels: %w", err)
	}
	if body.Levels == nil {
		body.Levels = []int{}
	}
	telemetry.SetSpanSuccess(span)
	return body.Levels, nil
}

// Send posts a domain event. It returns nil when the call fails or the backend
// answers with a non-200 status; the failure is logged and counted.
func (c *Client) Send(ctx context.Context, ev Event) *Response {
	resp := c.post(ctx, "/api/discord-bot", ev, slog.String("event", ev.EventType()))
	telemetry.RecordRelayEvent(ev.EventType(), resp != nil && resp.Success)
	return resp
}

// SetChatStatus locks or unlocks chat globally.
func (c *Client) SetChatStatus(ctx context.Context, status ChatStatus) *Response {
	body := struct {
		Status ChatStatus `json:"status"`
	}{status}
	return c.post(ctx, "/api/discord/chat/status", body, slog.String("status", string(status)))
}

// SetLevelChatStatus locks or unlocks chat for one level.
func (c *Client) SetLevelChatStatus(ctx context.Context, level int, status ChatStatus) *Response {
	body := struct {
		Status ChatStatus `json:"status"`
		Level  int        `json:"level"`
	}{status, level}
	return c.post(ctx, "/api/discord/chat/level/status", body, slog.String("status", string(status)), slog.Int("level", level))
}

func (c *Client) post(ctx context.Context, path string, body any, attrs ...any) *Response {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerBackend, "backend.post", telemetry.HTTPMethodAttr(http.MethodPost), telemetry.HTTPRouteAttr(path))
	defer span.End()
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "backendapi"), slog.String("path", path)).With(attrs...)

	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		telemetry.RecordError(span, err)
		logger.Error("backend request failed", slog.Any("err", err))
		return nil
	}
	defer closeBody(resp)
	telemetry.SetSpanHTTPStatus(span, resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		telemetry.RecordError(span, err)
		logger.Error("read backend response", slog.Any("err", err))
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		logger.Warn("backend rejected request", slog.Int("status", resp.StatusCode), slog.String("body", strings.TrimSpace(string(raw))))
		return nil
	}
	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		telemetry.RecordError(span, err)
		logger.Error("decode backend response", slog.Any("err", err))
		return nil
	}
	telemetry.SetSpanSuccess(span)
	logger.Debug("backend accepted request", slog.Bool("success", out.Success))
	return &out
}
