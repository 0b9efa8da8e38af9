package internal

// ContinuationKeys are the server-side conversation handles carried between
// turns: thread_id for authenticated sessions, response_id for guests.
type ContinuationKeys struct {
	ThreadID   string `json:"thread_id,omitempty" yaml:"thread_id,omitempty"`
	ResponseID string `json:"response_id,omitempty" yaml:"response_id,omitempty"`
}

// Turn folds the decoded events of one assistant response into its message
// and the shared tool ledger.
//
// State: open (Finalized=false) until a render event, completion event,
// stream end, cancellation or failure finalizes it. Content never changes
// after that. Turn is not safe for concurrent use; ChatSession serializes
// access.
type Turn struct {
	msg   *Message
	tools *ToolLedger
	keys  *ContinuationKeys

	completed bool
}

// NewTurn starts folding events into msg, which must be the open assistant
// message of the turn.
func NewTurn(msg *Message, tools *ToolLedger, keys *ContinuationKeys) *Turn {
	return &Turn{msg: msg, tools: tools, keys: keys}
}

// ID returns the turn id, which is the assistant message id
func (t *Turn) ID() string {
	return t.msg.ID
}

// Completed reports whether a completion event was seen
func (t *Turn) Completed() bool {
	return t.completed
}

// Apply folds one event. It returns done=true when the event ends the turn;
// an error event also returns a *ProtocolError.
func (t *Turn) Apply(ev Event) (done bool, err error) {
	switch e := ev.(type) {
	case CreatedEvent:
		t.keys.ResponseID = e.ID
		if t.keys.ThreadID == "" {
			t.keys.ThreadID = e.ID
		}

	case DeltaEvent:
		if !t.msg.Finalized {
			t.msg.Content = MergeDelta(t.msg.Content, e.Text)
		}

	case FunctionCallEvent:
		t.tools.Start(t.msg.ID, e.Name, e.CallID)

	case ToolInvocationEvent:
		t.tools.Start(t.msg.ID, e.Name, e.CallID)

	case ToolResultEvent:
		t.tools.Complete(t.msg.ID, e.Name, e.CallID, e.Output)

	case RenderEvent:
		if !t.msg.Finalized {
			t.msg.Content = e.Markdown
			t.finalizeMessage()
		}

	case CompletedEvent:
		t.completed = true
		t.Finalize()
		return true, nil

	case ErrorEvent:
		return true, &ProtocolError{Message: e.Message}
	}
	return false, nil
}

// Finalize closes the turn: the message is normalized and marked final
// (once), and every tool call of the turn still running is marked done.
// It is safe to call more than once.
func (t *Turn) Finalize() {
	t.finalizeMessage()
	if n := t.tools.CloseTurn(t.msg.ID); n > 0 {
		LogDebug("Closed %d running tool call(s) for turn %s", n, t.msg.ID)
	}
}

func (t *Turn) finalizeMessage() {
	if t.msg.Finalized {
		return
	}
	t.msg.Content = NormalizeMarkdown(t.msg.Content)
	t.msg.Finalized = true
}
