package relay

import (
	"fmt"
	"strings"

	"github.com/SoulShadow8326/intrasudo25/discordbot/backendapi"
)

// Message is the platform-neutral view of a chat message the relay works with.
type Message struct {
	ID          string
	ChannelID   string
	GuildID     string
	ChannelName string
	Content     string
	AuthorID    string
	AuthorName  string
	FromSelf    bool
	// ReplyToID is the id of the message this one replies to, if any.
	ReplyToID string
}

// ClassKind is the result of classifying an inbound message.
type ClassKind int

const (
	ClassNone ClassKind = iota
	ClassLeadReply
	ClassHint
)

// Classification is what Classify decided for a message.
type Classification struct {
	Kind  ClassKind
	Level int
}

// Classify applies the channel naming and content conventions to a new message.
// It is pure: fetching a lead reply's parent is left to the caller.
func Classify(m Message) Classification {
	if m.FromSelf {
		return Classification{}
	}
	kind, level, ok := ParseChannelName(m.ChannelName)
	if !ok {
		return Classification{}
	}
	switch kind {
	case KindLead:
		if m.ReplyToID == "" {
			return Classification{}
		}
		return Classification{Kind: ClassLeadReply, Level: level}
	case KindHint:
		if strings.HasPrefix(m.Content, FromMarker) {
			return Classification{}
		}
		return Classification{Kind: ClassHint, Level: level}
	}
	return Classification{}
}

// ClassifyDeletion reports the level of a deleted hint. Deletions in lead channels
// and deletions of the bot's own messages are ignored.
func ClassifyDeletion(channelName string, fromSelf bool) (level int, ok bool) {
	if fromSelf {
		return 0, false
	}
	kind, level, ok := ParseChannelName(channelName)
	if !ok || kind != KindHint {
		return 0, false
	}
	return level, true
}

// ParseRelayHeader extracts sender and email from the first line of a relayed message,
// "**From:** name (email)". Without a parenthesis the whole remainder is the email.
func ParseRelayHeader(content string) (sender, email string, ok bool) {
	if !strings.HasPrefix(content, FromMarker) {
		return "", "", false
	}
	line, _, _ := strings.Cut(content, "\n")
	rest := strings.TrimSpace(strings.TrimPrefix(line, FromMarker))
	before, after, found := strings.Cut(rest, "(")
	if !found {
		return rest, rest, true
	}
	email, _, _ = strings.Cut(after, ")")
	return strings.TrimSpace(before), email, true
}

// LeadReplyFrom builds the lead_reply event for a reply whose parent is a relayed message.
func LeadReplyFrom(reply, parent Message, level int) (backendapi.LeadReply, bool) {
	_, email, ok := ParseRelayHeader(parent.Content)
	if !ok {
		return backendapi.LeadReply{}, false
	}
	return backendapi.LeadReply{
		UserEmail:    email,
		SentBy:       reply.AuthorName,
		Message:      reply.Content,
		LevelNumber:  level,
		DiscordMsgID: reply.ID,
		ParentMsgID:  parent.ID,
	}, true
}

// FormatRelayed renders a backend message for a lead channel.
func FormatRelayed(username, email, message string) string {
	return fmt.Sprintf("%s %s (%s)\n%s", FromMarker, username, email, message)
}

// SyntheticKey is the reverse-correlation key for a forwarded message. Writers and
// readers must both build it here.
func SyntheticKey(email string, level int, message string) string {
	return fmt.Sprintf("%s_%d_%s", email, level, truncate(message, 20))
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
