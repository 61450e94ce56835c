package chatview

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/nasirmalek/FamilyCircle/internal/models"
	"github.com/nasirmalek/FamilyCircle/internal/poller"
)

// fakeSource keeps messages in memory. sendGate and listGate, when set,
// block the matching call until a value is received. A gated list returns
// the messages stored when it was called.
type fakeSource struct {
	mu       sync.Mutex
	chats    map[string]*models.Chat
	messages map[string][]*models.Message
	sendErr  error
	listErr  error
	sends    int
	lists    int
	listed   int

	sendGate chan struct{}
	listGate chan struct{}
}

func newFakeSource(chatIDs ...string) *fakeSource {
	s := &fakeSource{chats: map[string]*models.Chat{}, messages: map[string][]*models.Message{}}
	for _, id := range chatIDs {
		s.chats[id] = &models.Chat{ID: id, Type: models.ChatTypeDirect}
	}
	return s
}

func (s *fakeSource) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil, models.NewBackendError("get chat", models.ErrNotFound)
	}
	return c, nil
}

func (s *fakeSource) ListMessages(ctx context.Context, chatID string) ([]*models.Message, error) {
	s.mu.Lock()
	gate := s.listGate
	s.lists++
	listErr := s.listErr
	out := make([]*models.Message, len(s.messages[chatID]))
	copy(out, s.messages[chatID])
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	s.listed++
	s.mu.Unlock()
	if listErr != nil {
		return nil, listErr
	}
	return out, nil
}

func (s *fakeSource) listCounts() (started, finished int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists, s.listed
}

func (s *fakeSource) SendMessage(ctx context.Context, chatID, content, senderID string) (*models.Message, error) {
	s.mu.Lock()
	gate := s.sendGate
	s.sends++
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	m := &models.Message{ID: uuid.NewString(), ChatID: chatID, SenderID: senderID, Content: content, Type: models.MessageTypeText, CreatedAt: time.Now()}
	s.messages[chatID] = append(s.messages[chatID], m)
	return m, nil
}

func (s *fakeSource) add(chatID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[chatID] = append(s.messages[chatID], &models.Message{ID: uuid.NewString(), ChatID: chatID, SenderID: "other", Content: content})
}

func (s *fakeSource) sendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sends
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newView(t *testing.T, src Source) (*DetailView, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	v := New(src, "mom", quietLogger(), WithPollerOptions(poller.WithClock(clock)))
	t.Cleanup(v.Unmount)
	return v, clock
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSendAppendsMessage(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource("c1")
	src.add("c1", "Hi Mom")
	v, _ := newView(t, src)

	if err := v.Mount(ctx, "c1"); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	var states []State
	var mu sync.Mutex
	v.OnChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	v.SetInput("  Hello ")
	sent, err := v.Send(ctx)
	if err != nil || !sent {
		t.Fatalf("Send = %v, %v", sent, err)
	}

	msgs := v.Messages()
	last := msgs[len(msgs)-1]
	if last.Content != "Hello" || last.SenderID != "mom" {
		t.Errorf("last message = %+v, want Hello from mom", last)
	}

	st := v.State()
	if st.Input != "" || st.Sending || st.SendError != "" {
		t.Errorf("state after send = %+v", st)
	}

	mu.Lock()
	defer mu.Unlock()
	sawSending := false
	for _, s := range states {
		if s.Sending && s.Input == "" {
			sawSending = true
		}
	}
	if !sawSending {
		t.Errorf("listeners never saw the sending state")
	}
}

func TestSendIgnoresBlankDraft(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource("c1")
	v, _ := newView(t, src)

	sent, _ := v.Send(ctx)
	if sent {
		t.Errorf("Send before Mount returned true")
	}

	if err := v.Mount(ctx, "c1"); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	v.SetInput("   \n\t")
	if sent, err := v.Send(ctx); sent || err != nil {
		t.Errorf("Send(blank) = %v, %v", sent, err)
	}
	if src.sendCount() != 0 {
		t.Errorf("backend called %d times for blank input", src.sendCount())
	}
}

func TestSendRejectsTooLongContent(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource("c1")
	v, _ := newView(t, src)
	if err := v.Mount(ctx, "c1"); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	long := strings.Repeat("ä", models.MaxMessageLength+1)
	v.SetInput(long)
	sent, err := v.Send(ctx)
	if sent || !models.IsValidation(err) {
		t.Fatalf("Send(long) = %v, %v, want validation error", sent, err)
	}
	if src.sendCount() != 0 || v.State().Input != long {
		t.Errorf("long draft touched backend or input")
	}

	v.SetInput(strings.Repeat("ä", models.MaxMessageLength))
	if sent, err := v.Send(ctx); !sent || err != nil {
		t.Errorf("Send(max length) = %v, %v", sent, err)
	}
}

func TestSendIsSingleFlight(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource("c1")
	src.sendGate = make(chan struct{})
	v, _ := newView(t, src)
	if err := v.Mount(ctx, "c1"); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	v.SetInput("first")
	done := make(chan struct{})
	go func() {
		defer close(done)
		v.Send(ctx)
	}()
	waitFor(t, "first send to reach the backend", func() bool { return src.sendCount() == 1 })

	v.SetInput("second")
	if sent, err := v.Send(ctx); sent || err != nil {
		t.Errorf("Send while sending = %v, %v, want ignored", sent, err)
	}
	if !v.State().Sending {
		t.Errorf("Sending flag cleared while first send in flight")
	}

	src.sendGate <- struct{}{}
	<-done

	if src.sendCount() != 1 {
		t.Errorf("backend sends = %d, want 1", src.sendCount())
	}
	if got := v.State().Input; got != "second" {
		t.Errorf("input = %q, want the newer draft kept", got)
	}
}

func TestFailedSendRestoresDraft(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource("c1")
	src.sendErr = models.NewBackendError("send message", errors.New("connection reset"))
	v, _ := newView(t, src)
	if err := v.Mount(ctx, "c1"); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	v.SetInput("  Dinner at 7? ")
	sent, err := v.Send(ctx)
	if !sent || err == nil {
		t.Fatalf("Send = %v, %v, want attempted with error", sent, err)
	}

	st := v.State()
	if st.Input != "  Dinner at 7? " {
		t.Errorf("input = %q, want the original draft", st.Input)
	}
	if st.Sending {
		t.Errorf("sending still set after failure")
	}
	if st.SendError != SendFailedMessage {
		t.Errorf("SendError = %q, want %q", st.SendError, SendFailedMessage)
	}
	if len(v.Messages()) != 0 {
		t.Errorf("failed send added a message")
	}
}

func TestFailedSendKeepsNewTyping(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource("c1")
	src.sendErr = errors.New("boom")
	src.sendGate = make(chan struct{})
	v, _ := newView(t, src)
	if err := v.Mount(ctx, "c1"); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	v.SetInput("old draft")
	done := make(chan struct{})
	go func() {
		defer close(done)
		v.Send(ctx)
	}()
	waitFor(t, "send to reach the backend", func() bool { return src.sendCount() == 1 })

	v.SetInput("typed meanwhile")
	src.sendGate <- struct{}{}
	<-done

	if got := v.State().Input; got != "typed meanwhile" {
		t.Errorf("input = %q, want newer typing kept", got)
	}
}

func TestPollReplacesMessages(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource("c1")
	src.add("c1", "one")
	v, clock := newView(t, src)
	if err := v.Mount(ctx, "c1"); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if len(v.Messages()) != 1 {
		t.Fatalf("messages after mount = %d, want 1", len(v.Messages()))
	}

	src.add("c1", "two")
	clock.Advance(poller.DefaultInterval)
	waitFor(t, "poll to pick up the new message", func() bool { return len(v.Messages()) == 2 })

	// an unchanged backend yields an identical list
	before := v.Messages()
	if err := v.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	after := v.Messages()
	if len(before) != len(after) {
		t.Fatalf("refresh changed length %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i].ID != after[i].ID {
			t.Errorf("message %d changed across identical refresh", i)
		}
	}
}

func TestLateResponseIsDiscarded(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource("c1", "c2")
	src.add("c1", "from c1")
	src.add("c2", "from c2")
	v, _ := newView(t, src)
	if err := v.Mount(ctx, "c1"); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	src.mu.Lock()
	src.listGate = make(chan struct{})
	gate := src.listGate
	src.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		v.Refresh(ctx)
	}()
	waitFor(t, "refresh to reach the backend", func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.lists >= 2
	})

	src.mu.Lock()
	src.listGate = nil
	src.mu.Unlock()
	if err := v.SwitchChat(ctx, "c2"); err != nil {
		t.Fatalf("SwitchChat: %v", err)
	}

	close(gate)
	<-done

	msgs := v.Messages()
	if len(msgs) != 1 || msgs[0].Content != "from c2" {
		t.Errorf("messages = %+v, want only c2's", msgs)
	}
	if v.State().ChatID != "c2" {
		t.Errorf("ChatID = %q, want c2", v.State().ChatID)
	}
}

func TestMountUnknownChat(t *testing.T) {
	v, _ := newView(t, newFakeSource())
	if err := v.Mount(context.Background(), "missing"); !models.IsNotFound(err) {
		t.Errorf("Mount error = %v, want not found", err)
	}
	if sent, _ := v.Send(context.Background()); sent {
		t.Errorf("Send on failed mount returned true")
	}
}

func TestStalePollDoesNotHideSentMessage(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource("c1")
	src.add("c1", "one")
	v, clock := newView(t, src)
	if err := v.Mount(ctx, "c1"); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	gate := make(chan struct{})
	src.mu.Lock()
	src.listGate = gate
	src.mu.Unlock()

	clock.Advance(poller.DefaultInterval)
	waitFor(t, "poll to reach the backend", func() bool {
		started, _ := src.listCounts()
		return started == 2
	})
	src.mu.Lock()
	src.listGate = nil
	src.mu.Unlock()

	v.SetInput("Hello")
	if sent, err := v.Send(ctx); !sent || err != nil {
		t.Fatalf("Send = %v, %v", sent, err)
	}
	if n := len(v.Messages()); n != 2 {
		t.Fatalf("messages after send = %d, want 2", n)
	}

	close(gate)
	waitFor(t, "poll to finish", func() bool {
		_, finished := src.listCounts()
		return finished == 3
	})
	time.Sleep(50 * time.Millisecond)

	msgs := v.Messages()
	if len(msgs) != 2 || msgs[1].Content != "Hello" {
		t.Errorf("messages = %d after slow poll, want Hello kept", len(msgs))
	}
}

func TestFailedPollKeepsMessages(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource("c1")
	src.add("c1", "one")
	src.add("c1", "two")
	v, clock := newView(t, src)
	if err := v.Mount(ctx, "c1"); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	src.mu.Lock()
	src.listErr = models.NewBackendError("list messages", errors.New("connection reset"))
	src.mu.Unlock()

	clock.Advance(poller.DefaultInterval)
	waitFor(t, "failing poll", func() bool {
		_, finished := src.listCounts()
		return finished == 2
	})
	time.Sleep(20 * time.Millisecond)

	msgs := v.Messages()
	if len(msgs) != 2 || msgs[0].Content != "one" || msgs[1].Content != "two" {
		t.Errorf("messages = %+v, want previous list kept", msgs)
	}
	if err := v.Refresh(ctx); err == nil {
		t.Errorf("Refresh error = nil, want backend error")
	}
	if len(v.Messages()) != 2 {
		t.Errorf("failed refresh changed the list")
	}
}

func TestUnmountStopsPolling(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource("c1")
	v, clock := newView(t, src)
	if err := v.Mount(ctx, "c1"); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	clock.Advance(poller.DefaultInterval)
	waitFor(t, "first poll", func() bool {
		_, finished := src.listCounts()
		return finished == 2
	})

	v.Unmount()
	for i := 0; i < 3; i++ {
		clock.Advance(poller.DefaultInterval)
	}
	time.Sleep(20 * time.Millisecond)

	if started, _ := src.listCounts(); started != 2 {
		t.Errorf("lists after unmount = %d, want 2", started)
	}
}
