package backendapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoulShadow8326/intrasudo25/discordbot/telemetry"
	"github.com/SoulShadow8326/intrasudo25/discordbot/testutil"
)

func TestLevels(t *testing.T) {
	srv := testutil.NewMockBackendServer(t)
	srv.MockLevels(1, 2, 5)
	c := New(srv.URL+"/", "bot-secret", time.Second)

	levels, err := c.Levels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 5}, levels)
	assert.Equal(t, []string{"Bearer bot-secret"}, srv.AuthHeaders())
}

func TestLevelsEmptyRoster(t *testing.T) {
	srv := testutil.NewMockBackendServer(t)
	srv.MockLevels()
	c := New(srv.URL, "tok", time.Second)

	levels, err := c.Levels(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, levels)
	assert.Empty(t, levels)
}

func TestLevelsNonOK(t *testing.T) {
	srv := testutil.NewMockBackendServer(t)
	srv.MockLevelsStatus(http.StatusUnauthorized)
	c := New(srv.URL, "tok", time.Second)

	levels, err := c.Levels(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStatus))
	assert.Nil(t, levels)
}

func TestLevelsTransportError(t *testing.T) {
	c := New("http://127.0.0.1:1", "tok", 200*time.Millisecond)
	_, err := c.Levels(context.Background())
	assert.Error(t, err)
}

func TestSendEventBodies(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want map[string]any
	}{
		{
			name: "hint",
			ev:   HintMessage{Message: "stuck on the cipher", SentBy: "alice", LevelNumber: 3, DiscordMsgID: "111"},
			want: map[string]any{"type": "hint_message", "message": "stuck on the cipher", "sentBy": "alice", "levelNumber": float64(3), "discordMsgId": "111"},
		},
		{
			name: "hint deleted",
			ev:   HintMessageDeleted{DiscordMsgID: "111", LevelNumber: 3},
			want: map[string]any{"type": "hint_message_deleted", "discordMsgId": "111", "levelNumber": float64(3)},
		},
		{
			name: "lead reply",
			ev:   LeadReply{UserEmail: "a@x.io", SentBy: "mod", Message: "try rot13", LevelNumber: 0, DiscordMsgID: "222", ParentMsgID: "200"},
			want: map[string]any{"type": "lead_reply", "userEmail": "a@x.io", "sentBy": "mod", "message": "try rot13", "levelNumber": float64(0), "discordMsgId": "222", "parentMsgId": "200"},
		},
		{
			name: "msg id update",
			ev:   MessageIDUpdate{UserEmail: "a@x.io", Message: "hello", LevelNumber: 2, DiscordMsgID: "333"},
			want: map[string]any{"type": "update_discord_msg_id", "userEmail": "a@x.io", "message": "hello", "levelNumber": float64(2), "discordMsgId": "333"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewMockBackendServer(t)
			srv.MockEvents(true, "ok", nil)
			c := New(srv.URL, "tok", time.Second)

			resp := c.Send(context.Background(), tt.ev)
			require.NotNil(t, resp)
			assert.True(t, resp.Success)
			events := srv.Events()
			require.Len(t, events, 1)
			assert.Equal(t, tt.want, events[0])
		})
	}
}

func TestSendRejected(t *testing.T) {
	srv := testutil.NewMockBackendServer(t)
	srv.MockEvents(false, "unknown level", nil)
	c := New(srv.URL, "tok", time.Second)

	resp := c.Send(context.Background(), HintMessage{Message: "x", LevelNumber: 99})
	assert.Nil(t, resp)
}

func TestSendUnreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", "tok", 200*time.Millisecond)
	assert.Nil(t, c.Send(context.Background(), HintMessageDeleted{DiscordMsgID: "1"}))
}

func TestResponseRecordID(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		want   string
		wantOK bool
	}{
		{"numeric", `{"id": 42}`, "42", true},
		{"large numeric", `{"id": 1234567890123456789}`, "1234567890123456789", true},
		{"string", `{"id": "rec-9"}`, "rec-9", true},
		{"missing", `{}`, "", false},
		{"null", `{"id": null}`, "", false},
		{"empty", ``, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Response{Success: true, Data: json.RawMessage(tt.data)}
			got, ok := r.RecordID()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	var nilResp *Response
	_, ok := nilResp.RecordID()
	assert.False(t, ok)
}

func TestSendReturnsRecordID(t *testing.T) {
	srv := testutil.NewMockBackendServer(t)
	srv.MockEvents(true, "updated", map[string]any{"id": 17})
	c := New(srv.URL, "tok", time.Second)

	resp := c.Send(context.Background(), MessageIDUpdate{UserEmail: "a@x.io", Message: "m", LevelNumber: 1, DiscordMsgID: "5"})
	require.NotNil(t, resp)
	id, ok := resp.RecordID()
	require.True(t, ok)
	assert.Equal(t, "17", id)
}

func TestChatStatus(t *testing.T) {
	srv := testutil.NewMockBackendServer(t)
	srv.MockChatStatus(true, "done")
	c := New(srv.URL, "tok", time.Second)

	require.NotNil(t, c.SetChatStatus(context.Background(), ChatLocked))
	require.NotNil(t, c.SetLevelChatStatus(context.Background(), 4, ChatActive))

	calls := srv.StatusCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, map[string]any{"status": "locked", "path": "/api/discord/chat/status"}, calls[0])
	assert.Equal(t, map[string]any{"status": "active", "level": float64(4), "path": "/api/discord/chat/level/status"}, calls[1])
}

func TestChatStatusFailure(t *testing.T) {
	srv := testutil.NewMockBackendServer(t)
	srv.MockChatStatus(false, "db down")
	c := New(srv.URL, "tok", time.Second)
	assert.Nil(t, c.SetChatStatus(context.Background(), ChatActive))
}

func TestRequestsCarryCorrelationID(t *testing.T) {
	srv := testutil.NewMockBackendServer(t)
	srv.MockEvents(true, "ok", nil)
	c := New(srv.URL, "tok", time.Second)

	ctx := telemetry.WithCorrelation(context.Background(), "req-7")
	require.NotNil(t, c.Send(ctx, HintMessageDeleted{DiscordMsgID: "m1", LevelNumber: 2}))
	assert.Equal(t, []string{"req-7"}, srv.CorrelationHeaders())
}
