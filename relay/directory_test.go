package relay

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDirectorySetReplaceRemove(t *testing.T) {
	d := NewDirectory()
	d.Set(1, KindLead, Channel{ID: "a", Name: "lead-level-1"})
	d.Set(1, KindHint, Channel{ID: "b", Name: "hint-level-1"})

	lead, ok := d.Lead(1)
	assert.True(t, ok)
	assert.Equal(t, "a", lead.ID)

	d.Set(1, KindLead, Channel{ID: "c", Name: "lead-level-1"})
	lead, _ = d.Lead(1)
	assert.Equal(t, "c", lead.ID)
	hint, _ := d.Hint(1)
	assert.Equal(t, "b", hint.ID)

	d.Remove(1, KindLead)
	_, ok = d.Lead(1)
	assert.False(t, ok)
	assert.Equal(t, 1, d.Len())
	d.Remove(1, KindHint)
	assert.Zero(t, d.Len())
}

func TestDirectoryRetain(t *testing.T) {
	d := NewDirectory()
	for l := 1; l <= 3; l++ {
		d.Set(l, KindLead, Channel{ID: fmt.Sprintf("l%d", l)})
	}
	d.Retain(map[int]struct{}{2: {}})
	assert.Equal(t, []int{2}, d.Levels())
	_, ok := d.Lead(1)
	assert.False(t, ok)
}

func TestDirectoryConcurrentAccess(t *testing.T) {
	d := NewDirectory()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.Set(j%10, Kind(i%2), Channel{ID: fmt.Sprintf("%d-%d", i, j)})
				d.Lead(j % 10)
				d.Levels()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, d.Len())
}

func TestCorrelationsBoundedAndExpiring(t *testing.T) {
	c := NewCorrelations(2, time.Hour)
	c.SetRecordID("m1", "r1")
	c.SetRecordID("m2", "r2")
	c.SetRecordID("m3", "r3")
	_, ok := c.RecordID("m1")
	assert.False(t, ok, "oldest entry evicted")
	got, ok := c.RecordID("m3")
	assert.True(t, ok)
	assert.Equal(t, "r3", got)

	short := NewCorrelations(10, 20*time.Millisecond)
	short.SetMessageID("k", "m")
	_, ok = short.MessageID("k")
	assert.True(t, ok)
	assert.Eventually(t, func() bool {
		_, ok := short.MessageID("k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}
