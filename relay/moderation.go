package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/SoulShadow8326/intrasudo25/discordbot/backendapi"
	"github.com/SoulShadow8326/intrasudo25/discordbot/telemetry"
)

// Command is a recognized moderation command.
type Command struct {
	Name     string
	Status   backendapi.ChatStatus
	PerLevel bool
	// Arg is the raw level argument of per-level commands.
	Arg string
}

var commands = map[string]Command{
	"lockchat":      {Name: "lockchat", Status: backendapi.ChatLocked},
	"activatechat":  {Name: "activatechat", Status: backendapi.ChatActive},
	"locklevel":     {Name: "locklevel", Status: backendapi.ChatLocked, PerLevel: true},
	"activatelevel": {Name: "activatelevel", Status: backendapi.ChatActive, PerLevel: true},
}

// ParseCommand recognizes "<prefix>name [level]". Unknown names are not commands.
func ParseCommand(prefix, content string) (Command, bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return Command{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return Command{}, false
	}
	cmd, ok := commands[strings.ToLower(fields[0])]
	if !ok {
		return Command{}, false
	}
	if len(fields) > 1 {
		cmd.Arg = fields[1]
	}
	return cmd, true
}

func describe(status backendapi.ChatStatus) (verb, past string) {
	if status == backendapi.ChatLocked {
		return "lock", "locked"
	}
	return "activate", "activated"
}

// handleCommand runs a moderation command on behalf of m's author and replies in m's channel.
func (s *Service) handleCommand(ctx context.Context, m Message, cmd Command) {
	logger := s.logger.With(slog.String("command", cmd.Name), slog.String("user", m.AuthorID))

	admin, err := s.platform.IsAdministrator(ctx, m.GuildID, m.ChannelID, m.AuthorID)
	if err != nil {
		logger.Warn("permission lookup failed", slog.Any("err", err))
	}
	if !admin {
		telemetry.RecordModeration(cmd.Name, "denied")
		s.reply(ctx, m, "You need administrator permissions to use this command.")
		return
	}

	verb, past := describe(cmd.Status)
	var resp *backendapi.Response
	var target string
	if cmd.PerLevel {
		level, err := strconv.Atoi(cmd.Arg)
		if err != nil {
			telemetry.RecordModeration(cmd.Name, "usage")
			s.reply(ctx, m, fmt.Sprintf("Usage: %s%s <level>", s.opts.CommandPrefix, cmd.Name))
			return
		}
		target = fmt.Sprintf("Chat for level %d", level)
		resp = s.backend.SetLevelChatStatus(ctx, level, cmd.Status)
	} else {
		target = "Chat"
		resp = s.backend.SetChatStatus(ctx, cmd.Status)
	}

	if resp == nil || !resp.Success {
		telemetry.RecordModeration(cmd.Name, "failed")
		msg := fmt.Sprintf("Failed to %s %s.", verb, strings.ToLower(target[:1])+target[1:])
		if resp != nil && resp.Message != "" {
			msg += " " + resp.Message
		}
		s.reply(ctx, m, msg)
		return
	}
	telemetry.RecordModeration(cmd.Name, "ok")
	logger.Info("moderation command applied", slog.String("status", string(cmd.Status)), slog.String("arg", cmd.Arg))
	s.reply(ctx, m, fmt.Sprintf("%s has been %s.", target, past))
}

func (s *Service) reply(ctx context.Context, m Message, content string) {
	if err := s.platform.Reply(ctx, m.ChannelID, m.ID, content); err != nil {
		s.logger.Warn("reply failed", slog.String("channel", m.ChannelID), slog.Any("err", err))
	}
}
