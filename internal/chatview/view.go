// Package chatview holds the state of one open chat: header, messages, the
// draft being typed and the send in progress. A DetailView is driven by a
// single client connection or terminal session.
package chatview

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/nasirmalek/FamilyCircle/internal/metrics"
	"github.com/nasirmalek/FamilyCircle/internal/models"
	"github.com/nasirmalek/FamilyCircle/internal/poller"
	"github.com/nasirmalek/FamilyCircle/internal/viewmodel"
)

// SendFailedMessage is shown to the user when a send fails.
const SendFailedMessage = "Failed to send message"

// Source is the data a DetailView reads and writes.
type Source interface {
	GetChat(ctx context.Context, chatID string) (*models.Chat, error)
	ListMessages(ctx context.Context, chatID string) ([]*models.Message, error)
	SendMessage(ctx context.Context, chatID, content, senderID string) (*models.Message, error)
}

// State is a snapshot of the view handed to listeners.
type State struct {
	ChatID    string             `json:"chat_id"`
	Header    viewmodel.Header   `json:"header"`
	Messages  []viewmodel.Bubble `json:"messages"`
	Input     string             `json:"input"`
	Sending   bool               `json:"sending"`
	SendError string             `json:"send_error,omitempty"`
}

// CanSend reports whether the send button should be enabled.
func (s State) CanSend() bool {
	return !s.Sending && strings.TrimSpace(s.Input) != ""
}

// Listener receives the view state after every change.
type Listener func(State)

// Option configures a DetailView
type Option func(*DetailView)

// WithMetrics records open views and poll ticks.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *DetailView) { v.metrics = m }
}

// WithPollerOptions passes options to the poller created on every Mount.
func WithPollerOptions(opts ...poller.Option) Option {
	return func(v *DetailView) { v.pollerOpts = append(v.pollerOpts, opts...) }
}

// DetailView is one open chat detail view for userID.
type DetailView struct {
	source     Source
	userID     string
	logger     *logrus.Logger
	metrics    *metrics.Metrics
	pollerOpts []poller.Option

	mu         sync.Mutex
	generation uint64
	fetchSeq   uint64
	appliedSeq uint64
	mounted    bool
	chatID     string
	chat       *models.Chat
	messages   []*models.Message
	input      string
	sending    bool
	sendErr    error
	poller     *poller.Poller
	listeners  []Listener
}

// New creates an unmounted view for userID.
func New(source Source, userID string, logger *logrus.Logger, opts ...Option) *DetailView {
	v := &DetailView{
		source: source,
		userID: userID,
		logger: logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// OnChange registers l to receive state snapshots.
func (v *DetailView) OnChange(l Listener) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listeners = append(v.listeners, l)
}

// Mount opens chatID: it loads the header and messages and starts polling
// until Unmount or until ctx is done. Mounting while mounted switches chats.
func (v *DetailView) Mount(ctx context.Context, chatID string) error {
	v.Unmount()

	log := v.logger.WithFields(logrus.Fields{"chat_id": chatID, "user_id": v.userID})

	chat, err := v.source.GetChat(ctx, chatID)
	if err != nil {
		log.Errorf("Failed to load chat: %v", err)
		return err
	}

	v.mu.Lock()
	v.generation++
	gen := v.generation
	v.mounted = true
	v.chatID = chatID
	v.chat = chat
	v.messages = nil
	v.input = ""
	v.sending = false
	v.sendErr = nil
	opts := append([]poller.Option{poller.WithMetrics(v.metrics), poller.WithFields(logrus.Fields{"chat_id": chatID})}, v.pollerOpts...)
	v.poller = poller.New(func(ctx context.Context) error {
		return v.refresh(ctx, gen)
	}, v.logger, opts...)
	v.poller.Start(ctx)
	st := v.snapshot()
	v.mu.Unlock()

	v.metrics.ViewOpened()
	v.notify(st)

	if err := v.refresh(ctx, gen); err != nil {
		log.Warn("Initial message load failed, waiting for the next poll")
	}

	log.Debug("Chat view mounted")
	return nil
}

// Unmount stops polling and discards any response still in flight.
func (v *DetailView) Unmount() {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return
	}
	v.mounted = false
	v.generation++
	p := v.poller
	v.poller = nil
	chatID := v.chatID
	v.mu.Unlock()

	p.Stop()
	v.metrics.ViewClosed()
	v.logger.WithFields(logrus.Fields{"chat_id": chatID, "user_id": v.userID}).Debug("Chat view unmounted")
}

// SwitchChat moves the view to another chat.
func (v *DetailView) SwitchChat(ctx context.Context, chatID string) error {
	return v.Mount(ctx, chatID)
}

// State returns the current snapshot.
func (v *DetailView) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshot()
}

// Messages returns the messages currently shown, oldest first.
func (v *DetailView) Messages() []*models.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*models.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// SetInput replaces the draft.
func (v *DetailView) SetInput(text string) {
	v.mu.Lock()
	v.input = text
	st := v.snapshot()
	v.mu.Unlock()
	v.notify(st)
}

// Refresh reloads the message list now.
func (v *DetailView) Refresh(ctx context.Context) error {
	v.mu.Lock()
	gen := v.generation
	v.mu.Unlock()
	return v.refresh(ctx, gen)
}

// refresh replaces the message list with a fresh fetch. Results for an older
// generation, arriving after Unmount, or older than a result already applied
// are dropped. On error the previous list is kept.
func (v *DetailView) refresh(ctx context.Context, gen uint64) error {
	v.mu.Lock()
	if !v.mounted || gen != v.generation {
		v.mu.Unlock()
		return nil
	}
	chatID := v.chatID
	v.fetchSeq++
	seq := v.fetchSeq
	v.mu.Unlock()

	messages, err := v.source.ListMessages(ctx, chatID)
	if err != nil {
		v.logger.WithFields(logrus.Fields{"chat_id": chatID, "user_id": v.userID}).
			Errorf("Failed to load messages: %v", err)
		return err
	}

	v.mu.Lock()
	if !v.mounted || gen != v.generation || seq <= v.appliedSeq {
		v.mu.Unlock()
		return nil
	}
	v.appliedSeq = seq
	v.messages = messages
	st := v.snapshot()
	v.mu.Unlock()

	v.notify(st)
	return nil
}

// Send posts the trimmed draft. It returns false without doing anything when
// the draft is blank, no chat is open or a send is already in flight. The
// draft is cleared while sending and put back if the send fails and nothing
// new was typed meanwhile.
func (v *DetailView) Send(ctx context.Context) (bool, error) {
	v.mu.Lock()
	content := strings.TrimSpace(v.input)
	if content == "" || v.chatID == "" || !v.mounted || v.sending {
		v.mu.Unlock()
		return false, nil
	}
	if utf8.RuneCountInString(content) > models.MaxMessageLength {
		v.mu.Unlock()
		return false, models.NewValidationError("content", "Message is too long")
	}

	draft := v.input
	chatID := v.chatID
	gen := v.generation
	v.input = ""
	v.sending = true
	v.sendErr = nil
	st := v.snapshot()
	v.mu.Unlock()
	v.notify(st)

	log := v.logger.WithFields(logrus.Fields{"chat_id": chatID, "user_id": v.userID})

	_, err := v.source.SendMessage(ctx, chatID, content, v.userID)

	v.mu.Lock()
	if gen != v.generation {
		v.mu.Unlock()
		if err != nil {
			log.Errorf("Failed to send message: %v", err)
		}
		return true, err
	}
	v.sending = false
	if err != nil {
		if v.input == "" {
			v.input = draft
		}
		v.sendErr = err
	}
	st = v.snapshot()
	v.mu.Unlock()
	v.notify(st)

	if err != nil {
		log.Errorf("Failed to send message: %v", err)
		return true, err
	}

	// show the new message without waiting for the next poll
	_ = v.refresh(ctx, gen)
	return true, nil
}

// snapshot must be called with mu held.
func (v *DetailView) snapshot() State {
	st := State{
		ChatID:   v.chatID,
		Messages: viewmodel.BuildBubbles(v.messages, v.userID),
		Input:    v.input,
		Sending:  v.sending,
	}
	if v.chat != nil {
		st.Header = viewmodel.BuildHeader(v.chat)
	}
	if v.sendErr != nil {
		st.SendError = SendFailedMessage
	}
	return st
}

func (v *DetailView) notify(st State) {
	v.mu.Lock()
	listeners := make([]Listener, len(v.listeners))
	copy(listeners, v.listeners)
	v.mu.Unlock()

	for _, l := range listeners {
		l(st)
	}
}
