package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ApologyText replaces an assistant message that failed before any text arrived
const ApologyText = "Sorry, I couldn't complete that request. Please try again."

// Update is the state published to observers after every change
type Update struct {
	Messages  []Message
	Tools     []ToolEvent
	Mode      Mode
	Streaming bool
}

// Observer receives session updates. It is called synchronously, outside
// the session lock; slow observers slow down the stream.
type Observer func(Update)

// SessionOptions configures a ChatSession
type SessionOptions struct {
	Config     *Config
	Store      *Storage
	HTTPClient *http.Client // defaults to NewHTTPClient(Config)
	Refresher  Refresher    // defaults to a TokenRefresher on the refresh endpoint
	Notifier   Notifier     // optional
}

// ChatSession owns one streaming conversation: its messages, tool activity
// and continuation keys. At most one turn is open at a time.
type ChatSession struct {
	cfg       *Config
	store     *Storage
	client    *http.Client
	resolver  *IdentityResolver
	transport *Transport
	notifier  Notifier

	mu            sync.Mutex
	messages      []*Message
	tools         *ToolLedger
	mode          Mode
	keys          ContinuationKeys
	transcriptKey string
	provisional   bool // transcriptKey is a local uuid, not a thread id
	resetting     bool
	open          *Message
	turnCancel    context.CancelFunc
	turnDone      chan struct{}

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int
}

// NewChatSession creates a session and restores the transcript of the
// current conversation from the store, if any.
func NewChatSession(opts SessionOptions) (*ChatSession, error) {
	if opts.Config == nil || opts.Store == nil {
		return nil, fmt.Errorf("config and store are required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = NewHTTPClient(opts.Config)
	}
	refresher := opts.Refresher
	if refresher == nil {
		refresher = NewTokenRefresher(client, opts.Config.URL(opts.Config.Endpoints.Refresh), opts.Store)
	}

	s := &ChatSession{
		cfg:       opts.Config,
		store:     opts.Store,
		client:    client,
		resolver:  NewIdentityResolver(opts.Config, client, opts.Store, refresher),
		transport: NewTransport(client, refresher, opts.Config),
		notifier:  opts.Notifier,
		tools:     NewToolLedger(),
		observers: make(map[int]Observer),
	}
	s.transport.ObserveGuestIDs(s.resolver.ObserveGuestID)

	mode, err := s.resolver.Mode()
	if err != nil {
		return nil, err
	}
	if err := s.switchMode(mode); err != nil {
		return nil, err
	}
	return s, nil
}

// switchMode loads the keys and transcript saved for mode
func (s *ChatSession) switchMode(mode Mode) error {
	keys, err := s.store.ContinuationKeys(mode)
	if err != nil {
		return err
	}

	s.mode = mode
	s.keys = keys
	s.messages = nil
	s.tools.Reset()
	s.transcriptKey = uuid.NewString()
	s.provisional = true

	if keys.ThreadID == "" {
		return nil
	}
	s.transcriptKey = keys.ThreadID
	s.provisional = false
	t, err := s.store.LoadTranscript(keys.ThreadID)
	if err != nil {
		LogWarn("Failed to restore transcript %s: %v", keys.ThreadID, err)
		return nil
	}
	if t == nil {
		return nil
	}
	for i := range t.Messages {
		msg := t.Messages[i]
		msg.Finalized = true
		s.messages = append(s.messages, &msg)
	}
	s.tools.Restore(t.Tools)
	for _, msg := range s.messages {
		s.tools.CloseTurn(msg.ID)
	}
	LogDebug("Restored %d message(s) for thread %s", len(s.messages), keys.ThreadID)
	return nil
}

// Subscribe registers an observer and returns a function removing it
func (s *ChatSession) Subscribe(fn Observer) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

func (s *ChatSession) publish() {
	update := s.snapshot()
	s.obsMu.Lock()
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.obsMu.Unlock()
	for _, fn := range observers {
		fn(update)
	}
}

func (s *ChatSession) snapshot() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Update{
		Messages:  s.messagesLocked(),
		Tools:     s.tools.Snapshot(),
		Mode:      s.mode,
		Streaming: s.open != nil,
	}
}

func (s *ChatSession) messagesLocked() []Message {
	out := make([]Message, 0, len(s.messages))
	for _, msg := range s.messages {
		out = append(out, *msg)
	}
	return out
}

// Messages returns a copy of the message list
func (s *ChatSession) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messagesLocked()
}

// Tools returns a copy of the tool activity list
func (s *ChatSession) Tools() []ToolEvent {
	return s.tools.Snapshot()
}

// Keys returns the current continuation keys
func (s *ChatSession) Keys() ContinuationKeys {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys
}

// Mode returns the identity mode of the last resolved turn
func (s *ChatSession) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Streaming reports whether a turn is open
func (s *ChatSession) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open != nil
}

// SubmitTurn sends one user message and folds the streamed response into
// the session. It blocks until the turn ends.
//
// Cancellation (CancelTurn or ctx) is not an error: the partial message is
// finalized and nil is returned. Other failures are reported to the
// Notifier and returned; the session stays usable either way.
func (s *ChatSession) SubmitTurn(ctx context.Context, input TurnInput) error {
	input.Message = strings.TrimSpace(input.Message)
	if input.Message == "" {
		return fmt.Errorf("message is empty")
	}

	mode, err := s.resolver.Mode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.open != nil || s.resetting {
		s.mu.Unlock()
		return ErrTurnInProgress
	}
	if mode != s.mode {
		if err := s.switchMode(mode); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	now := time.Now().UTC()
	user := &Message{ID: uuid.NewString(), Role: RoleUser, Content: input.Message, Finalized: true, CreatedAt: now}
	reply := &Message{ID: uuid.NewString(), Role: RoleAssistant, CreatedAt: now}
	s.messages = append(s.messages, user, reply)
	s.open = reply
	turnCtx, cancel := context.WithCancel(ctx)
	s.turnCancel = cancel
	s.turnDone = make(chan struct{})
	keys := s.keys
	s.mu.Unlock()

	defer cancel()
	s.publish()

	err = s.runTurn(turnCtx, input, keys, reply)
	return s.endTurn(turnCtx, reply, err)
}

func (s *ChatSession) runTurn(ctx context.Context, input TurnInput, keys ContinuationKeys, reply *Message) error {
	req, err := s.resolver.Resolve(ctx, input, keys)
	if err != nil {
		return err
	}

	resp, err := s.transport.Open(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	turn := NewTurn(reply, s.tools, &s.keys)
	dec := NewDecoder(resp.Body)
	for {
		ev, err := dec.Next()
		if err == io.EOF {
			if !turn.Completed() {
				LogDebug("Stream for turn %s closed without completion event", turn.ID())
			}
			return nil
		}
		if err != nil {
			return err
		}

		s.mu.Lock()
		done, applyErr := turn.Apply(ev)
		s.mu.Unlock()
		s.publish()

		if applyErr != nil {
			return applyErr
		}
		if done {
			return nil
		}
	}
}

func (s *ChatSession) endTurn(ctx context.Context, reply *Message, err error) error {
	cancelled := err != nil && ctx.Err() != nil && !errors.Is(err, ErrIdleTimeout)

	s.mu.Lock()
	if err != nil && !cancelled && strings.TrimSpace(reply.Content) == "" && !reply.Finalized {
		reply.Content = ApologyText
	}
	NewTurn(reply, s.tools, &s.keys).Finalize()
	s.open = nil
	s.turnCancel = nil
	close(s.turnDone)
	mode, keys := s.mode, s.keys
	transcript := s.transcriptLocked()
	s.mu.Unlock()

	if perr := s.store.SetContinuationKeys(mode, keys); perr != nil {
		LogWarn("Failed to save continuation keys: %v", perr)
	}
	if perr := s.store.SaveTranscript(transcript); perr != nil {
		LogWarn("Failed to save transcript: %v", perr)
	}
	s.publish()

	if cancelled {
		LogDebug("Turn %s cancelled", reply.ID)
		return nil
	}
	if err != nil {
		LogDebug("Turn %s failed: %v", reply.ID, err)
		s.notify(NoticeError, UserFacingError(err))
		return err
	}
	return nil
}

func (s *ChatSession) transcriptLocked() *Transcript {
	if s.keys.ThreadID != "" && s.transcriptKey != s.keys.ThreadID {
		if s.provisional {
			if err := s.store.DeleteTranscript(s.transcriptKey); err != nil {
				LogDebug("Failed to drop provisional transcript %s: %v", s.transcriptKey, err)
			}
		}
		s.transcriptKey = s.keys.ThreadID
		s.provisional = false
	}
	return &Transcript{
		Key:        s.transcriptKey,
		Mode:       s.mode,
		ThreadID:   s.keys.ThreadID,
		ResponseID: s.keys.ResponseID,
		Messages:   s.messagesLocked(),
		Tools:      s.tools.Snapshot(),
	}
}

// CancelTurn aborts the open turn, if any. The turn still finalizes.
func (s *ChatSession) CancelTurn() {
	s.mu.Lock()
	cancel := s.turnCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ResetSession starts a new chat. Any open turn is cancelled, the server is
// told to start a new conversation, and only then are local messages, tool
// activity and continuation keys cleared. The guest id is kept.
//
// No turn can start until the reset returns; SubmitTurn and a concurrent
// ResetSession get ErrTurnInProgress meanwhile.
func (s *ChatSession) ResetSession(ctx context.Context) error {
	s.mu.Lock()
	if s.resetting {
		s.mu.Unlock()
		return ErrTurnInProgress
	}
	s.resetting = true
	cancel, done := s.turnCancel, s.turnDone
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.resetting = false
		s.mu.Unlock()
	}()
	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	keys := s.keys
	s.mu.Unlock()

	if err := s.resolver.ResetConversation(ctx, keys); err != nil {
		s.notify(NoticeError, "Could not start a new chat: "+UserFacingError(err))
		return fmt.Errorf("reset conversation: %w", err)
	}

	s.mu.Lock()
	s.messages = nil
	s.tools.Reset()
	s.keys = ContinuationKeys{}
	s.transcriptKey = uuid.NewString()
	s.provisional = true
	mode := s.mode
	s.mu.Unlock()

	if err := s.store.SetContinuationKeys(mode, ContinuationKeys{}); err != nil {
		LogWarn("Failed to clear continuation keys: %v", err)
	}
	s.publish()
	return nil
}

// LoadHistory replaces the transcript with the server-side history of a
// thread. An empty threadID uses the current thread. It returns the number
// of messages loaded. Threads belong to authenticated users, so it fails
// with ErrNoToken for guests. The transcript of the previous thread stays
// stored.
func (s *ChatSession) LoadHistory(ctx context.Context, threadID string) (int, error) {
	bearer := s.resolver.Bearer()
	if bearer == "" {
		return 0, ErrNoToken
	}

	s.mu.Lock()
	if s.open != nil || s.resetting {
		s.mu.Unlock()
		return 0, ErrTurnInProgress
	}
	if threadID == "" {
		threadID = s.keys.ThreadID
	}
	s.mu.Unlock()
	if threadID == "" {
		return 0, fmt.Errorf("no thread to load")
	}

	entries, err := FetchHistory(ctx, s.client, s.cfg.HistoryURL(threadID), bearer)
	if err != nil {
		return 0, err
	}
	messages := HistoryMessages(entries)

	s.mu.Lock()
	s.messages = nil
	for i := range messages {
		s.messages = append(s.messages, &messages[i])
	}
	s.tools.Reset()
	if s.keys.ThreadID != threadID {
		s.keys = ContinuationKeys{ThreadID: threadID}
	}
	s.transcriptKey = threadID
	s.provisional = false
	mode, keys := s.mode, s.keys
	transcript := s.transcriptLocked()
	s.mu.Unlock()

	if err := s.store.SetContinuationKeys(mode, keys); err != nil {
		LogWarn("Failed to save continuation keys: %v", err)
	}
	if err := s.store.SaveTranscript(transcript); err != nil {
		LogWarn("Failed to save transcript: %v", err)
	}
	s.publish()
	return len(messages), nil
}

// Close cancels any open turn
func (s *ChatSession) Close() {
	s.CancelTurn()
}

func (s *ChatSession) notify(level NoticeLevel, message string) {
	if s.notifier != nil {
		s.notifier.Notify(level, message)
	}
}

// UserFacingError renders a turn failure for display
func UserFacingError(err error) string {
	var unauthorized *UnauthorizedError
	var protocol *ProtocolError
	var status *HTTPStatusError
	switch {
	case errors.As(err, &unauthorized):
		return "Your session has expired. Please sign in again."
	case errors.As(err, &protocol):
		return protocol.Message
	case errors.Is(err, ErrIdleTimeout):
		return "The assistant stopped responding. Please try again."
	case errors.As(err, &status):
		return fmt.Sprintf("The assistant is unavailable right now (HTTP %d).", status.Status)
	default:
		return fmt.Sprintf("Could not reach the assistant: %v", err)
	}
}
