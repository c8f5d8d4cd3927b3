package relay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/SoulShadow8326/intrasudo25/discordbot/backendapi"
)

type fakePlatform struct {
	mu       sync.Mutex
	nextID   int
	channels map[string]Channel   // id -> channel
	messages map[string][]Message // channel id -> messages
	replies  []string
	admins   map[string]bool

	listErr    error
	createErrs map[string]error // channel name -> error
	deleteErrs map[string]error // channel id -> error
	sendDelay  time.Duration
	creates    int
	deletes    int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		channels:   map[string]Channel{},
		messages:   map[string][]Message{},
		admins:     map[string]bool{},
		createErrs: map[string]error{},
		deleteErrs: map[string]error{},
	}
}

func (f *fakePlatform) id() string {
	f.nextID++
	return fmt.Sprintf("%d", 1000+f.nextID)
}

// addChannel seeds an existing guild channel.
func (f *fakePlatform) addChannel(name string) Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := Channel{ID: f.id(), Name: name, GuildID: "g1"}
	f.channels[ch.ID] = ch
	return ch
}

func (f *fakePlatform) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.channels {
		out = append(out, c.Name)
	}
	sort.Strings(out)
	return out
}

func (f *fakePlatform) counts() (creates, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.deletes
}

func (f *fakePlatform) messagesIn(channelID string) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.messages[channelID]...)
}

func (f *fakePlatform) sentTotal() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.messages {
		n += len(m)
	}
	return n
}

func (f *fakePlatform) TextChannels(ctx context.Context, guildID string) ([]Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]Channel, 0, len(f.channels))
	for _, c := range f.channels {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakePlatform) CreateTextChannel(ctx context.Context, guildID, name string) (Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErrs[name]; err != nil {
		return Channel{}, err
	}
	f.creates++
	ch := Channel{ID: f.id(), Name: name, GuildID: guildID}
	f.channels[ch.ID] = ch
	return ch, nil
}

func (f *fakePlatform) DeleteChannel(ctx context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErrs[channelID]; err != nil {
		return err
	}
	f.deletes++
	delete(f.channels, channelID)
	return nil
}

func (f *fakePlatform) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	if f.sendDelay > 0 {
		time.Sleep(f.sendDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channelID]; !ok {
		return "", errors.New("unknown channel")
	}
	m := Message{ID: f.id(), ChannelID: channelID, Content: content, FromSelf: true}
	f.messages[channelID] = append(f.messages[channelID], m)
	return m.ID, nil
}

func (f *fakePlatform) FetchMessage(ctx context.Context, channelID, messageID string) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages[channelID] {
		if m.ID == messageID {
			return m, nil
		}
	}
	return Message{}, errors.New("message not found")
}

func (f *fakePlatform) Reply(ctx context.Context, channelID, messageID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, content)
	return nil
}

func (f *fakePlatform) lastReply() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return ""
	}
	return f.replies[len(f.replies)-1]
}

func (f *fakePlatform) IsAdministrator(ctx context.Context, guildID, channelID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admins[userID], nil
}

type statusCall struct {
	level  int
	global bool
	status backendapi.ChatStatus
}

type fakeBackend struct {
	mu       sync.Mutex
	levels   []int
	rosterEr error
	events   []backendapi.Event
	statuses []statusCall
	reply    *backendapi.Response
	sent     chan backendapi.Event
}

func newFakeBackend(levels ...int) *fakeBackend {
	return &fakeBackend{levels: levels, reply: &backendapi.Response{Success: true}, sent: make(chan backendapi.Event, 64)}
}

func (b *fakeBackend) setLevels(levels ...int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.levels = levels
}

func (b *fakeBackend) Levels(ctx context.Context) ([]int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rosterEr != nil {
		return nil, b.rosterEr
	}
	return append([]int{}, b.levels...), nil
}

func (b *fakeBackend) Send(ctx context.Context, ev backendapi.Event) *backendapi.Response {
	b.mu.Lock()
	b.events = append(b.events, ev)
	resp := b.reply
	b.mu.Unlock()
	b.sent <- ev
	return resp
}

func (b *fakeBackend) SetChatStatus(ctx context.Context, status backendapi.ChatStatus) *backendapi.Response {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = append(b.statuses, statusCall{global: true, status: status})
	return b.reply
}

func (b *fakeBackend) SetLevelChatStatus(ctx context.Context, level int, status backendapi.ChatStatus) *backendapi.Response {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = append(b.statuses, statusCall{level: level, status: status})
	return b.reply
}

func (b *fakeBackend) eventsSeen() []backendapi.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]backendapi.Event(nil), b.events...)
}

func (b *fakeBackend) statusCalls() []statusCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]statusCall(nil), b.statuses...)
}

// startLoop runs a loop for the duration of the test.
func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := NewLoop(8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = l.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

func newTestService(t *testing.T, p *fakePlatform, b *fakeBackend) *Service {
	t.Helper()
	svc := NewService(p, b, startLoop(t), Options{CorrelationCapacity: 100, CorrelationTTL: time.Hour})
	svc.AddGuild("g1")
	return svc
}
