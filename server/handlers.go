package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/SoulShadow8326/intrasudo25/discordbot/config"
	"github.com/SoulShadow8326/intrasudo25/discordbot/relay"
	"github.com/SoulShadow8326/intrasudo25/discordbot/telemetry"
)

// maxBodyBytes caps request bodies on the backend-facing endpoints.
const maxBodyBytes = 1 << 20

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctx            context.Context
	relay          Relay
	validate       *validator.Validate
	forwardTimeout time.Duration
	refreshTimeout time.Duration
	started        time.Time
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, r Relay, cfg *config.Config) *Handlers {
	return &Handlers{
		ctx:            ctx,
		relay:          r,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		forwardTimeout: cfg.ForwardTimeout,
		refreshTimeout: cfg.RefreshTimeout,
		started:        time.Now(),
	}
}

// forwardRequest is the body of POST /discord/forward. Level is a pointer so that
// level 0 counts as present.
type forwardRequest struct {
	UserEmail string `json:"userEmail" validate:"required"`
	Username  string `json:"username" validate:"required"`
	Message   string `json:"message" validate:"required"`
	Level     *int   `json:"level" validate:"required"`
}

type envelope struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DiscordMsgID string `json:"discordMsgId,omitempty"`
	Created      *int   `json:"created,omitempty"`
	Deleted      *int   `json:"deleted,omitempty"`
	Failed       *int   `json:"failed,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Message: msg})
}

// validationMessage names the missing or invalid fields of a forward request.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		fields = append(fields, strings.ToLower(name[:1])+name[1:])
	}
	return "missing required fields: " + strings.Join(fields, ", ")
}

// HandleForward posts a backend message into a level's lead channel.
func (h *Handlers) HandleForward(w http.ResponseWriter, r *http.Request) {
	logger := telemetry.LoggerWithCorr(r.Context()).With(slog.String("component", "http"))
	code := http.StatusOK
	defer func() {
		if telemetry.ForwardRequests != nil {
			telemetry.ForwardRequests.WithLabelValues(strconv.Itoa(code)).Inc()
		}
	}()

	var req forwardRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		code = http.StatusBadRequest
		writeFailure(w, code, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		code = http.StatusBadRequest
		writeFailure(w, code, validationMessage(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.forwardTimeout)
	defer cancel()
	msgID, err := h.relay.Forward(ctx, relay.ForwardRequest{
		UserEmail: req.UserEmail,
		Username:  req.Username,
		Message:   req.Message,
		Level:     *req.Level,
	})
	switch {
	case err == nil:
		writeJSON(w, code, envelope{Success: true, Message: "Message forwarded to Discord", DiscordMsgID: msgID})
	case errors.Is(err, relay.ErrUnknownLevel):
		code = http.StatusNotFound
		writeFailure(w, code, "No lead channel found for level "+strconv.Itoa(*req.Level))
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
		writeFailure(w, code, "timed out waiting for Discord")
	default:
		code = http.StatusInternalServerError
		logger.Error("forward failed", slog.Int("level", *req.Level), slog.Any("err", err))
		writeFailure(w, code, "failed to forward message")
	}
}

// HandleRefresh reconciles level channels with the backend roster now.
func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.refreshTimeout)
	defer cancel()
	rep, err := h.relay.Refresh(ctx)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("channel refresh failed", slog.String("component", "http"), slog.Any("err", err))
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeFailure(w, status, "failed to refresh channels")
		return
	}
	failed := 0
	if rep.Errors != nil {
		failed = len(rep.Errors.Errors)
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "Channels refreshed",
		Created: &rep.Created,
		Deleted: &rep.Deleted,
		Failed:  &failed,
	})
}

// HandleStatus reports guilds, directory levels and correlation sizes.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		relay.Status
		Uptime string `json:"uptime"`
	}{h.relay.Status(), time.Since(h.started).Round(time.Second).String()})
}
