package relay

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/SoulShadow8326/intrasudo25/discordbot/telemetry"
)

// Correlations links Discord message ids to backend records. Both maps are bounded and
// entries expire after ttl; a missing entry means the backend has not answered yet or
// the entry aged out.
type Correlations struct {
	records  *expirable.LRU[string, string] // discord message id -> backend record id
	outbound *expirable.LRU[string, string] // synthetic key -> discord message id
}

func NewCorrelations(capacity int, ttl time.Duration) *Correlations {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Correlations{
		records:  expirable.NewLRU[string, string](capacity, nil, ttl),
		outbound: expirable.NewLRU[string, string](capacity, nil, ttl),
	}
}

func (c *Correlations) SetRecordID(messageID, recordID string) {
	c.records.Add(messageID, recordID)
	telemetry.SetCorrelations("record", c.records.Len())
}

func (c *Correlations) RecordID(messageID string) (string, bool) {
	return c.records.Get(messageID)
}

func (c *Correlations) SetMessageID(key, messageID string) {
	c.outbound.Add(key, messageID)
	telemetry.SetCorrelations("outbound", c.outbound.Len())
}

// MessageID looks up a forwarded message by its synthetic key. Nothing in the relay reads
// it; it is exposed for diagnostics.
func (c *Correlations) MessageID(key string) (string, bool) {
	return c.outbound.Get(key)
}

// Len returns the live entry counts of both maps.
func (c *Correlations) Len() (records, outbound int) {
	return c.records.Len(), c.outbound.Len()
}
