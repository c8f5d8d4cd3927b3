package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/SoulShadow8326/intrasudo25/discordbot/backendapi"
	"github.com/SoulShadow8326/intrasudo25/discordbot/telemetry"
)

// ErrUnknownLevel means the level has no lead channel in the directory.
var ErrUnknownLevel = errors.New("unknown level")

// Backend is the part of the backend API the relay calls.
type Backend interface {
	Roster
	Send(ctx context.Context, ev backendapi.Event) *backendapi.Response
	SetChatStatus(ctx context.Context, status backendapi.ChatStatus) *backendapi.Response
	SetLevelChatStatus(ctx context.Context, level int, status backendapi.ChatStatus) *backendapi.Response
}

// Options tune a Service. Zero values fall back to defaults.
type Options struct {
	CommandPrefix       string
	CorrelationCapacity int
	CorrelationTTL      time.Duration
}

// ForwardRequest is a backend message destined for a level's lead channel.
type ForwardRequest struct {
	UserEmail string
	Username  string
	Message   string
	Level     int
}

// Status is a point-in-time view of the relay state.
type Status struct {
	Guilds             []string `json:"guilds"`
	Levels             []int    `json:"levels"`
	RecordCorrelations int      `json:"recordCorrelations"`
	OutboundMessages   int      `json:"outboundMessages"`
	LastRefresh        string   `json:"lastRefresh,omitempty"`
}

// Service wires the directory, correlations, synchronizer and classifier to one platform
// and one backend. Reconciliation and forward sends run on loop.
type Service struct {
	platform Platform
	backend  Backend
	loop     *Loop
	dir      *Directory
	corr     *Correlations
	sync     *Synchronizer
	opts     Options
	logger   *slog.Logger

	mu          sync.Mutex
	guilds      map[string]struct{}
	lastRefresh time.Time

	pending sync.WaitGroup
}

func NewService(p Platform, b Backend, loop *Loop, opts Options) *Service {
	if opts.CommandPrefix == "" {
		opts.CommandPrefix = "!"
	}
	if opts.CorrelationTTL <= 0 {
		opts.CorrelationTTL = 24 * time.Hour
	}
	dir := NewDirectory()
	return &Service{
		platform: p,
		backend:  b,
		loop:     loop,
		dir:      dir,
		corr:     NewCorrelations(opts.CorrelationCapacity, opts.CorrelationTTL),
		sync:     NewSynchronizer(p, b, dir),
		opts:     opts,
		logger:   slog.Default().With(slog.String("component", "relay")),
		guilds:   map[string]struct{}{},
	}
}

func (s *Service) Directory() *Directory       { return s.dir }
func (s *Service) Correlations() *Correlations { return s.corr }

// AddGuild registers a guild for periodic and on-demand reconciliation. It reports
// whether the guild was new.
func (s *Service) AddGuild(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.guilds[guildID]; ok {
		return false
	}
	s.guilds[guildID] = struct{}{}
	return true
}

func (s *Service) RemoveGuild(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.guilds, guildID)
}

func (s *Service) guildIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.guilds))
	for g := range s.guilds {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// RefreshGuild runs one reconciliation pass for a guild on the loop.
func (s *Service) RefreshGuild(ctx context.Context, guildID string) (Report, error) {
	var rep Report
	err := s.loop.Call(ctx, func(ctx context.Context) error {
		var err error
		rep, err = s.sync.Reconcile(ctx, guildID)
		return err
	})
	if err != nil {
		return Report{}, err
	}
	s.mu.Lock()
	s.lastRefresh = time.Now()
	s.mu.Unlock()
	return rep, nil
}

// Refresh reconciles every registered guild. A pass that could not start or fetch its
// inputs is returned as an error; per-channel failures stay in the report.
func (s *Service) Refresh(ctx context.Context) (Report, error) {
	var total Report
	var errs *multierror.Error
	for _, g := range s.guildIDs() {
		rep, err := s.RefreshGuild(ctx, g)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("guild %s: %w", g, err))
			continue
		}
		total.Created += rep.Created
		total.Deleted += rep.Deleted
		if rep.Errors != nil {
			total.Errors = multierror.Append(total.Errors, rep.Errors.Errors...)
		}
	}
	return total, errs.ErrorOrNil()
}

// Forward posts a backend message into the level's lead channel and returns the new
// message id. The backend is told the id asynchronously; see Wait.
func (s *Service) Forward(ctx context.Context, req ForwardRequest) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRelay, "relay.forward", telemetry.LevelAttr(req.Level))
	defer span.End()
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "relay"), slog.Int("level", req.Level))

	var msgID string
	err := s.loop.Call(ctx, func(ctx context.Context) error {
		lead, ok := s.dir.Lead(req.Level)
		if !ok {
			return ErrUnknownLevel
		}
		var err error
		telemetry.TimeFunc(telemetry.ForwardDuration, func() {
			msgID, err = s.platform.SendMessage(ctx, lead.ID, FormatRelayed(req.Username, req.UserEmail, req.Message))
		})
		if err != nil {
			return fmt.Errorf("send to %s: %w", lead.Name, err)
		}
		// still runs when the caller has stopped waiting
		s.corr.SetMessageID(SyntheticKey(req.UserEmail, req.Level, req.Message), msgID)
		s.confirm(ctx, req, msgID)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if !errors.Is(err, ErrUnknownLevel) {
			logger.Error("forward failed", slog.Any("err", err))
		}
		return "", err
	}
	telemetry.SetSpanSuccess(span)
	logger.Info("forwarded message", slog.String("discord_msg_id", msgID))
	return msgID, nil
}

// confirm sends update_discord_msg_id in the background and records the backend record id.
func (s *Service) confirm(ctx context.Context, req ForwardRequest, msgID string) {
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		resp := s.backend.Send(ctx, backendapi.MessageIDUpdate{
			UserEmail:    req.UserEmail,
			Message:      truncate(req.Message, 50),
			LevelNumber:  req.Level,
			DiscordMsgID: msgID,
		})
		if resp == nil || !resp.Success {
			s.logger.Warn("backend did not confirm forwarded message", slog.String("discord_msg_id", msgID))
			return
		}
		if id, ok := resp.RecordID(); ok {
			s.corr.SetRecordID(msgID, id)
		}
	}()
}

// Wait blocks until background confirmations finish.
func (s *Service) Wait() {
	s.pending.Wait()
}

// HandleMessageCreate routes a new chat message: moderation commands first, then lead
// replies and hints. Everything else is ignored.
func (s *Service) HandleMessageCreate(ctx context.Context, m Message) {
	if m.FromSelf {
		return
	}
	if cmd, ok := ParseCommand(s.opts.CommandPrefix, m.Content); ok {
		s.handleCommand(ctx, m, cmd)
		return
	}
	c := Classify(m)
	switch c.Kind {
	case ClassLeadReply:
		parent, err := s.platform.FetchMessage(ctx, m.ChannelID, m.ReplyToID)
		if err != nil {
			s.logger.Debug("lead reply parent unavailable", slog.String("message", m.ReplyToID), slog.Any("err", err))
			return
		}
		ev, ok := LeadReplyFrom(m, parent, c.Level)
		if !ok {
			return
		}
		s.emit(ctx, ev, c.Level)
	case ClassHint:
		s.emit(ctx, backendapi.HintMessage{
			Message:      m.Content,
			SentBy:       m.AuthorName,
			LevelNumber:  c.Level,
			DiscordMsgID: m.ID,
		}, c.Level)
	}
}

// HandleMessageDelete reports deleted hints. Content may be empty; only the channel name,
// id and authorship are used.
func (s *Service) HandleMessageDelete(ctx context.Context, m Message) {
	level, ok := ClassifyDeletion(m.ChannelName, m.FromSelf)
	if !ok {
		return
	}
	s.emit(ctx, backendapi.HintMessageDeleted{DiscordMsgID: m.ID, LevelNumber: level}, level)
}

func (s *Service) emit(ctx context.Context, ev backendapi.Event, level int) {
	if resp := s.backend.Send(ctx, ev); resp == nil || !resp.Success {
		s.logger.Warn("backend did not accept event", slog.String("event", ev.EventType()), slog.Int("level", level))
		return
	}
	s.logger.Debug("event delivered", slog.String("event", ev.EventType()), slog.Int("level", level))
}

// Status reports the current guilds, directory levels and correlation sizes.
func (s *Service) Status() Status {
	records, outbound := s.corr.Len()
	st := Status{
		Guilds:             s.guildIDs(),
		Levels:             s.dir.Levels(),
		RecordCorrelations: records,
		OutboundMessages:   outbound,
	}
	s.mu.Lock()
	if !s.lastRefresh.IsZero() {
		st.LastRefresh = s.lastRefresh.UTC().Format(time.RFC3339)
	}
	s.mu.Unlock()
	return st
}
