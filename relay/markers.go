// Package relay is the core of the bot: it keeps per-level Discord channels in sync with the
// backend's level roster, classifies chat traffic into backend events and relays backend
// messages into lead channels while correlating ids across both systems.
package relay

import (
	"fmt"
	"strconv"
	"strings"
)

// FromMarker prefixes every message the bot relays into a lead channel. Content starting
// with it is a bot echo and is never sent back to the backend.
const FromMarker = "**From:**"

// Channel name prefixes. The level id follows the last '-'.
const (
	LeadPrefix = "lead-level-"
	HintPrefix = "hint-level-"
)

// Kind distinguishes the two channels that exist for every level.
type Kind int

const (
	KindLead Kind = iota
	KindHint
)

func (k Kind) String() string {
	if k == KindHint {
		return "hint"
	}
	return "lead"
}

func (k Kind) prefix() string {
	if k == KindHint {
		return HintPrefix
	}
	return LeadPrefix
}

// ChannelName returns the channel name for a level of the given kind.
func ChannelName(kind Kind, level int) string {
	return fmt.Sprintf("%s%d", kind.prefix(), level)
}

// ParseChannelName reports the kind and level encoded in a channel name. ok is false for
// names without a level prefix and for levels that are not integers.
func ParseChannelName(name string) (kind Kind, level int, ok bool) {
	switch {
	case strings.HasPrefix(name, LeadPrefix):
		kind = KindLead
	case strings.HasPrefix(name, HintPrefix):
		kind = KindHint
	default:
		return 0, 0, false
	}
	n, err := strconv.Atoi(name[strings.LastIndex(name, "-")+1:])
	if err != nil {
		return 0, 0, false
	}
	return kind, n, true
}
