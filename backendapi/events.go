package backendapi

import "encoding/json"

// Event type discriminators understood by POST /api/discord-bot.
const (
	TypeHintMessage        = "hint_message"
	TypeHintMessageDeleted = "hint_message_deleted"
	TypeLeadReply          = "lead_reply"
	TypeMessageIDUpdate    = "update_discord_msg_id"
)

// Event is a domain event posted to the backend. Implementations marshal with their type field.
type Event interface {
	EventType() string
}

// HintMessage is a user hint typed into a hint-level channel.
type HintMessage struct {
	Message      string `json:"message"`
	SentBy       string `json:"sentBy"`
	LevelNumber  int    `json:"levelNumber"`
	DiscordMsgID string `json:"discordMsgId"`
}

// HintMessageDeleted reports removal of a hint from its channel.
type HintMessageDeleted struct {
	DiscordMsgID string `json:"discordMsgId"`
	LevelNumber  int    `json:"levelNumber"`
}

// LeadReply is a team reply to a message the bot relayed into a lead-level channel.
type LeadReply struct {
	UserEmail    string `json:"userEmail"`
	SentBy       string `json:"sentBy"`
	Message      string `json:"message"`
	LevelNumber  int    `json:"levelNumber"`
	DiscordMsgID string `json:"discordMsgId"`
	ParentMsgID  string `json:"parentMsgId"`
}

// MessageIDUpdate tells the backend which Discord message carries a forwarded lead message.
type MessageIDUpdate struct {
	UserEmail    string `json:"userEmail"`
	Message      string `json:"message"`
	LevelNumber  int    `json:"levelNumber"`
	DiscordMsgID string `json:"discordMsgId"`
}

func (HintMessage) EventType() string        { return TypeHintMessage }
func (HintMessageDeleted) EventType() string { return TypeHintMessageDeleted }
func (LeadReply) EventType() string          { return TypeLeadReply }
func (MessageIDUpdate) EventType() string    { return TypeMessageIDUpdate }

func (e HintMessage) MarshalJSON() ([]byte, error) {
	type alias HintMessage
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeHintMessage, alias(e)})
}

func (e HintMessageDeleted) MarshalJSON() ([]byte, error) {
	type alias HintMessageDeleted
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeHintMessageDeleted, alias(e)})
}

func (e LeadReply) MarshalJSON() ([]byte, error) {
	type alias LeadReply
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeLeadReply, alias(e)})
}

func (e MessageIDUpdate) MarshalJSON() ([]byte, error) {
	type alias MessageIDUpdate
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeMessageIDUpdate, alias(e)})
}

// ChatStatus is the lock state sent by moderation commands.
type ChatStatus string

const (
	ChatLocked ChatStatus = "locked"
	ChatActive ChatStatus = "active"
)
