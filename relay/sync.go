package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/SoulShadow8326/intrasudo25/discordbot/telemetry"
)

// Platform is the slice of the chat platform the relay needs.
type Platform interface {
	// TextChannels lists the guild's text channels.
	TextChannels(ctx context.Context, guildID string) ([]Channel, error)
	CreateTextChannel(ctx context.Context, guildID, name string) (Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error
	// SendMessage posts content and returns the new message id.
	SendMessage(ctx context.Context, channelID, content string) (string, error)
	FetchMessage(ctx context.Context, channelID, messageID string) (Message, error)
	Reply(ctx context.Context, channelID, messageID, content string) error
	IsAdministrator(ctx context.Context, guildID, channelID, userID string) (bool, error)
}

// Roster yields the authoritative list of levels.
type Roster interface {
	Levels(ctx context.Context) ([]int, error)
}

// Report summarizes one reconciliation pass.
type Report struct {
	Created int
	Deleted int
	// Errors collects per-channel failures; the pass continued past each of them.
	Errors *multierror.Error
}

// Synchronizer reconciles a guild's level channels against the roster.
type Synchronizer struct {
	platform Platform
	roster   Roster
	dir      *Directory
	logger   *slog.Logger
}

func NewSynchronizer(p Platform, r Roster, dir *Directory) *Synchronizer {
	return &Synchronizer{platform: p, roster: r, dir: dir, logger: slog.Default().With(slog.String("component", "channel_sync"))}
}

type slotKey struct {
	level int
	kind  Kind
}

// Reconcile makes the guild hold exactly one lead and one hint channel per roster level.
// If the roster or the channel list cannot be fetched the directory is left untouched
// and the error is returned. Per-channel failures are collected in the report.
func (s *Synchronizer) Reconcile(ctx context.Context, guildID string) (Report, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRelay, "relay.reconcile", telemetry.GuildAttr(guildID))
	defer span.End()
	var rep Report
	var err error
	telemetry.TimeFunc(telemetry.ReconcileDuration, func() {
		rep, err = s.reconcile(ctx, guildID)
	})
	telemetry.RecordReconcile(err != nil)
	if err != nil {
		telemetry.RecordError(span, err)
		return rep, err
	}
	telemetry.SetDirectoryLevels(s.dir.Len())
	if rep.Errors.ErrorOrNil() != nil {
		telemetry.RecordError(span, rep.Errors)
	} else {
		telemetry.SetSpanSuccess(span)
	}
	return rep, nil
}

func (s *Synchronizer) reconcile(ctx context.Context, guildID string) (Report, error) {
	var rep Report
	levels, err := s.roster.Levels(ctx)
	if err != nil {
		s.logger.Error("fetch level roster failed; directory unchanged", slog.String("guild", guildID), slog.Any("err", err))
		return rep, fmt.Errorf("fetch roster: %w", err)
	}
	roster := make(map[int]struct{}, len(levels))
	for _, l := range levels {
		roster[l] = struct{}{}
	}

	channels, err := s.platform.TextChannels(ctx, guildID)
	if err != nil {
		s.logger.Error("list guild channels failed; directory unchanged", slog.String("guild", guildID), slog.Any("err", err))
		return rep, fmt.Errorf("list channels: %w", err)
	}

	seen := map[slotKey]bool{}
	var stale []Channel
	for _, ch := range channels {
		kind, level, ok := ParseChannelName(ch.Name)
		if !ok {
			continue
		}
		if _, ok := roster[level]; !ok {
			stale = append(stale, ch)
			continue
		}
		if ch.GuildID == "" {
			ch.GuildID = guildID
		}
		s.dir.Set(level, kind, ch)
		seen[slotKey{level, kind}] = true
	}

	for _, ch := range stale {
		kind, level, _ := ParseChannelName(ch.Name)
		if err := s.platform.DeleteChannel(ctx, ch.ID); err != nil {
			telemetry.RecordChannelOp("delete", false)
			s.logger.Warn("delete stale channel failed", slog.String("channel", ch.Name), slog.Any("err", err))
			rep.Errors = multierror.Append(rep.Errors, fmt.Errorf("delete %s: %w", ch.Name, err))
			continue
		}
		telemetry.RecordChannelOp("delete", true)
		rep.Deleted++
		s.dir.Remove(level, kind)
		s.logger.Info("deleted stale channel", slog.String("channel", ch.Name))
	}

	for _, level := range levels {
		for _, kind := range []Kind{KindLead, KindHint} {
			if seen[slotKey{level, kind}] {
				continue
			}
			name := ChannelName(kind, level)
			ch, err := s.platform.CreateTextChannel(ctx, guildID, name)
			if err != nil {
				telemetry.RecordChannelOp("create", false)
				s.logger.Warn("create channel failed", slog.String("channel", name), slog.Any("err", err))
				rep.Errors = multierror.Append(rep.Errors, fmt.Errorf("create %s: %w", name, err))
				continue
			}
			telemetry.RecordChannelOp("create", true)
			if ch.GuildID == "" {
				ch.GuildID = guildID
			}
			s.dir.Set(level, kind, ch)
			seen[slotKey{level, kind}] = true
			rep.Created++
			s.logger.Info("created channel", slog.String("channel", name))
		}
	}

	s.dir.Retain(roster)
	s.logger.Info("reconcile complete", slog.String("guild", guildID), slog.Int("levels", len(levels)), slog.Int("created", rep.Created), slog.Int("deleted", rep.Deleted), slog.Int("failed", failures(rep.Errors)))
	return rep, nil
}

func failures(err *multierror.Error) int {
	if err == nil {
		return 0
	}
	return len(err.Errors)
}
