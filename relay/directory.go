package relay

import (
	"sort"
	"sync"
)

// Channel is a handle to a chat channel.
type Channel struct {
	ID      string
	Name    string
	GuildID string
}

type levelChannels struct {
	lead, hint *Channel
}

// Directory maps level ids to their lead and hint channels. Safe for concurrent use.
type Directory struct {
	mu     sync.RWMutex
	levels map[int]*levelChannels
}

func NewDirectory() *Directory {
	return &Directory{levels: map[int]*levelChannels{}}
}

// Set stores ch in the level's slot of the given kind, replacing any previous handle.
func (d *Directory) Set(level int, kind Kind, ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := d.levels[level]
	if e == nil {
		e = &levelChannels{}
		d.levels[level] = e
	}
	slot := &e.lead
	if kind == KindHint {
		slot = &e.hint
	}
	c := ch
	*slot = &c
}

// Remove clears the level's slot of the given kind.
func (d *Directory) Remove(level int, kind Kind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := d.levels[level]
	if e == nil {
		return
	}
	slot := &e.lead
	if kind == KindHint {
		slot = &e.hint
	}
	*slot = nil
	if e.lead == nil && e.hint == nil {
		delete(d.levels, level)
	}
}

func (d *Directory) get(level int, kind Kind) (Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e := d.levels[level]
	if e == nil {
		return Channel{}, false
	}
	c := e.lead
	if kind == KindHint {
		c = e.hint
	}
	if c == nil {
		return Channel{}, false
	}
	return *c, true
}

// Lead returns the lead channel of a level.
func (d *Directory) Lead(level int) (Channel, bool) { return d.get(level, KindLead) }

// Hint returns the hint channel of a level.
func (d *Directory) Hint(level int) (Channel, bool) { return d.get(level, KindHint) }

// Levels returns the levels with at least one channel, ascending.
func (d *Directory) Levels() []int {
	d.mu.RLock()
	out := make([]int, 0, len(d.levels))
	for l := range d.levels {
		out = append(out, l)
	}
	d.mu.RUnlock()
	sort.Ints(out)
	return out
}

// Retain drops every level not in keep.
func (d *Directory) Retain(keep map[int]struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for l := range d.levels {
		if _, ok := keep[l]; !ok {
			delete(d.levels, l)
		}
	}
}

// Len returns the number of levels with at least one channel.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.levels)
}
