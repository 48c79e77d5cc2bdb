package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/healme/healme-chat/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPollInterval   = 3 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// Backend is the HealMe API as seen by the engine.
type Backend interface {
	FetchConversation(ctx context.Context, key ConversationKey) ([]Message, error)
	FetchConversationSecondary(ctx context.Context, key ConversationKey) ([]Message, error)
	FetchMessagesLegacy(ctx context.Context, therapistID uint64) ([]Message, error)
	SendMessage(ctx context.Context, req SendRequest) (*Message, error)
	SendMessageLegacy(ctx context.Context, content string, therapistID uint64) (*Message, error)
}

type SendRequest struct {
	Content     string
	PatientID   uint64
	TherapistID uint64
	SenderRole  Role
}

// Viewport is told to scroll after every successful change to the message list.
type Viewport interface {
	ScrollToLatest(ctx context.Context, key ConversationKey)
}

// EchoSink receives local echoes, e.g. a ledger or an outbox.
type EchoSink interface {
	RecordEcho(ctx context.Context, m Message) error
}

type Options struct {
	Key            ConversationKey
	Role           Role
	Backend        Backend
	PollInterval   time.Duration
	RequestTimeout time.Duration
	Viewport       Viewport
	Echoes         []EchoSink
	Logger         *zap.Logger
	Now            func() time.Time
}

// Snapshot is a read-only copy of the engine state for rendering.
type Snapshot struct {
	Key       ConversationKey `json:"conversation"`
	Role      Role            `json:"role"`
	State     State           `json:"state"`
	Messages  []Message       `json:"messages"`
	Loading   bool            `json:"loading"`
	Degraded  bool            `json:"degraded"`
	Draft     string          `json:"draft"`
	LastError string          `json:"last_error,omitempty"`
}

// Engine keeps one conversation in sync with the backend by polling, and sends
// messages through the endpoint fallback chain. The engine owns its message list.
type Engine struct {
	key      ConversationKey
	role     Role
	backend  Backend
	viewport Viewport
	echoes   []EchoSink
	log      *zap.Logger
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time

	flight singleflight.Group

	// viewMu is held for reading across a commit and its scroll, and for
	// writing by Teardown, so no scroll reaches the view once Teardown returns.
	viewMu sync.RWMutex

	mu       sync.Mutex
	state    State
	messages []Message
	loading  bool
	degraded bool
	draft    string
	lastErr  error
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewEngine(opts Options) *Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Role == "" {
		opts.Role = RolePatient
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		key:      opts.Key,
		role:     opts.Role,
		backend:  opts.Backend,
		viewport: opts.Viewport,
		echoes:   opts.Echoes,
		log: opts.Logger.With(
			zap.Uint64("patient_id", opts.Key.PatientID),
			zap.Uint64("therapist_id", opts.Key.TherapistID),
			zap.String("role", string(opts.Role)),
		),
		interval: opts.PollInterval,
		timeout:  opts.RequestTimeout,
		now:      opts.Now,
		messages: []Message{},
		loading:  true,
	}
}

func (e *Engine) Key() ConversationKey { return e.key }
func (e *Engine) Role() Role           { return e.role }

// Start fetches once and then polls every PollInterval until Teardown.
// With a missing id it returns ErrMissingIdentifiers and touches no network.
func (e *Engine) Start(ctx context.Context) error {
	if !e.key.Valid() {
		e.mu.Lock()
		e.loading = false
		e.lastErr = ErrMissingIdentifiers
		e.mu.Unlock()
		e.log.Warn("missing conversation identifiers")
		return ErrMissingIdentifiers
	}

	e.mu.Lock()
	switch e.state {
	case StateStopped:
		e.mu.Unlock()
		return ErrEngineStopped
	case StateUninitialized:
	default:
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.state = StateLoading
	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	go e.poll(pollCtx, done)

	_ = e.Refresh(pollCtx)
	e.log.Info("chat engine started", zap.Duration("interval", e.interval))
	return nil
}

func (e *Engine) poll(ctx context.Context, done chan struct{}) {
	defer close(done)

	t := time.NewTicker(e.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			metrics.PollTicks.Inc()
			_ = e.Refresh(ctx)
		}
	}
}

// Refresh runs the fetch chain once. Overlapping calls share one in-flight chain.
// Only a non-fallback failure is returned; an exhausted chain degrades to the
// mock conversation and returns nil.
func (e *Engine) Refresh(ctx context.Context) error {
	if !e.key.Valid() {
		e.mu.Lock()
		e.loading = false
		e.mu.Unlock()
		return ErrMissingIdentifiers
	}

	e.mu.Lock()
	if e.state == StateStopped {
		e.mu.Unlock()
		return ErrEngineStopped
	}
	// a refresh before Start leaves the engine startable
	if e.state == StateReady {
		e.state = StateLoading
	}
	e.loading = true
	e.mu.Unlock()

	_, err, _ := e.flight.Do("refresh", func() (any, error) {
		return nil, e.refresh(ctx)
	})
	return err
}

func (e *Engine) refresh(ctx context.Context) error {
	msgs, tierName, err := runTiers(ctx, e.timeout, e.fetchTiers(), e.observe("fetch"))
	switch {
	case err == nil:
		if msgs == nil {
			msgs = []Message{}
		}
		e.log.Debug("conversation loaded", zap.String("tier", tierName), zap.Int("messages", len(msgs)))
		e.settle(ctx, func() {
			e.messages = msgs
			e.degraded = false
			e.lastErr = nil
		}, true)
		return nil

	case errors.Is(err, ErrTotalFailure):
		e.log.Warn("all conversation endpoints failed, showing offline conversation", zap.Error(err))
		metrics.DegradedRefreshes.Inc()
		mock := mockConversation(e.key, e.role, e.now())
		e.settle(ctx, func() {
			e.messages = mock
			e.degraded = true
			e.lastErr = nil
		}, true)
		return nil

	default:
		e.log.Error("load messages failed", zap.String("tier", tierName), zap.Error(err))
		e.settle(ctx, func() { e.lastErr = err }, false)
		return err
	}
}

// settle applies the end of a refresh. loading goes false here and only here.
func (e *Engine) settle(ctx context.Context, mutate func(), scroll bool) {
	e.commit(ctx, func() {
		mutate()
		e.loading = false
		if e.state == StateLoading {
			e.state = StateReady
		}
	}, scroll)
}

// commit applies mutate under the lock unless the engine was torn down.
func (e *Engine) commit(ctx context.Context, mutate func(), scroll bool) bool {
	e.viewMu.RLock()
	defer e.viewMu.RUnlock()

	e.mu.Lock()
	if e.state == StateStopped {
		e.mu.Unlock()
		return false
	}
	mutate()
	e.mu.Unlock()

	if scroll && e.viewport != nil {
		e.viewport.ScrollToLatest(ctx, e.key)
	}
	return true
}

// SendMessage posts text through the send chain. Blank text is ignored. When
// every send endpoint fails the message is kept locally as a pending echo.
func (e *Engine) SendMessage(ctx context.Context, text string) error {
	content := strings.TrimSpace(text)
	if content == "" || !e.key.Valid() {
		return nil
	}

	e.mu.Lock()
	stopped := e.state == StateStopped
	e.mu.Unlock()
	if stopped {
		return ErrEngineStopped
	}

	req := SendRequest{
		Content:     content,
		PatientID:   e.key.PatientID,
		TherapistID: e.key.TherapistID,
		SenderRole:  e.role,
	}
	msg, tierName, err := runTiers(ctx, e.timeout, e.sendTiers(req), e.observe("send"))
	switch {
	case err == nil:
		e.log.Debug("message sent", zap.String("tier", tierName), zap.Int64("message_id", msg.ID))
		e.commit(ctx, func() {
			e.messages = append(e.messages, *msg)
			e.draft = ""
			e.lastErr = nil
		}, true)
		return nil

	case errors.Is(err, ErrTotalFailure):
		echo := e.localEcho(content)
		e.log.Warn("send failed on every endpoint, keeping local echo", zap.Int64("placeholder_id", echo.ID), zap.Error(err))
		metrics.LocalEchoes.Inc()
		if e.commit(ctx, func() {
			e.messages = append(e.messages, echo)
			e.draft = ""
		}, true) {
			e.recordEcho(ctx, echo)
		}
		return nil

	default:
		e.log.Error("send message failed", zap.String("tier", tierName), zap.Error(err))
		e.commit(ctx, func() { e.lastErr = err }, false)
		return err
	}
}

func (e *Engine) SetDraft(text string) {
	e.mu.Lock()
	e.draft = text
	e.mu.Unlock()
}

func (e *Engine) Draft() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft
}

// SendDraft sends the current draft.
func (e *Engine) SendDraft(ctx context.Context) error {
	return e.SendMessage(ctx, e.Draft())
}

func (e *Engine) localEcho(content string) Message {
	now := e.now()
	return Message{
		ID:          now.UnixMilli(),
		Content:     content,
		Date:        now.UTC(),
		SenderRole:  e.role,
		IsRead:      e.role == RolePatient,
		PatientID:   e.key.PatientID,
		TherapistID: e.key.TherapistID,
		Pending:     true,
	}
}

func (e *Engine) recordEcho(ctx context.Context, m Message) {
	for _, sink := range e.echoes {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		if err := sink.RecordEcho(cctx, m); err != nil {
			e.log.Warn("record local echo failed", zap.Int64("placeholder_id", m.ID), zap.Error(err))
		}
		cancel()
	}
}

func (e *Engine) observe(op string) func(string, error) {
	return func(tierName string, err error) {
		metrics.TierAttempts.WithLabelValues(op, tierName, metrics.Outcome(err, isNotFound(err))).Inc()
		if err != nil {
			e.log.Debug("tier failed", zap.String("op", op), zap.String("tier", tierName), zap.Error(err))
		}
	}
}

// Teardown stops polling and waits for the poll loop to exit. It waits for a
// scroll already in progress; completions that arrive afterwards are dropped.
// Safe to call more than once. Must not be called from a Viewport.
func (e *Engine) Teardown() {
	e.viewMu.Lock()
	e.mu.Lock()
	if e.state == StateStopped {
		e.mu.Unlock()
		e.viewMu.Unlock()
		return
	}
	e.state = StateStopped
	e.loading = false
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()
	e.viewMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	e.log.Info("chat engine stopped")
}

// Messages returns a copy of the displayed list.
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Message(nil), e.messages...)
}

func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// Degraded reports whether the list is the offline mock conversation.
func (e *Engine) Degraded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.degraded
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Snapshot{
		Key:      e.key,
		Role:     e.role,
		State:    e.state,
		Messages: append([]Message(nil), e.messages...),
		Loading:  e.loading,
		Degraded: e.degraded,
		Draft:    e.draft,
	}
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	if e.lastErr != nil {
		s.LastError = e.lastErr.Error()
	}
	return s
}
