package internal

import (
	"fmt"
	"sync"
)

type toolKey struct {
	turnID string
	name   string
}

// ToolLedger tracks ToolEvents in arrival order, indexed by call id and by
// (turn, label) so lookups do not scan the whole list on every event.
type ToolLedger struct {
	mu      sync.RWMutex
	events  []*ToolEvent
	byID    map[string]*ToolEvent
	running map[toolKey][]*ToolEvent
}

// NewToolLedger creates an empty ToolLedger
func NewToolLedger() *ToolLedger {
	return &ToolLedger{
		byID:    make(map[string]*ToolEvent),
		running: make(map[toolKey][]*ToolEvent),
	}
}

// Start records a running tool call unless one with the same id exists or
// one with the same (turn, name) is already running. It reports whether a
// new entry was added.
func (l *ToolLedger) Start(turnID, rawName, callID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	name := ToolLabel(rawName)
	id := callID
	if id == "" {
		id = syntheticToolID(name, turnID)
	}
	if _, ok := l.byID[id]; ok {
		return false
	}
	key := toolKey{turnID: turnID, name: name}
	if len(l.running[key]) > 0 {
		return false
	}

	ev := &ToolEvent{ID: id, Name: name, RawName: rawName, Status: ToolRunning, TurnID: turnID}
	l.events = append(l.events, ev)
	l.byID[id] = ev
	l.running[key] = append(l.running[key], ev)
	return true
}

// Complete marks a tool call done. It matches by id first, then by a running
// call with the same (turn, name), adopting the reported id. A result with no
// matching start is recorded as an already completed call.
func (l *ToolLedger) Complete(turnID, rawName, callID string, output any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	name := ""
	if rawName != "" {
		name = ToolLabel(rawName)
	}

	if callID != "" {
		if ev, ok := l.byID[callID]; ok {
			l.finishLocked(ev, output)
			return
		}
	}

	if name != "" {
		key := toolKey{turnID: turnID, name: name}
		if pending := l.running[key]; len(pending) > 0 {
			ev := pending[0]
			if callID != "" && callID != ev.ID {
				delete(l.byID, ev.ID)
				ev.ID = callID
				l.byID[callID] = ev
			}
			l.finishLocked(ev, output)
			return
		}
	}

	id := callID
	if id == "" {
		id = syntheticToolID(name, turnID)
	}
	if ev, ok := l.byID[id]; ok {
		l.finishLocked(ev, output)
		return
	}
	if name == "" {
		name = ToolLabel(id)
	}
	ev := &ToolEvent{ID: id, Name: name, RawName: rawName, Status: ToolDone, Output: output, TurnID: turnID}
	l.events = append(l.events, ev)
	l.byID[id] = ev
}

// CloseTurn marks every running tool call of a turn as done
func (l *ToolLedger) CloseTurn(turnID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	closed := 0
	for _, ev := range l.events {
		if ev.TurnID == turnID && ev.Status == ToolRunning {
			l.finishLocked(ev, ev.Output)
			closed++
		}
	}
	return closed
}

// Running reports how many calls of a turn are still running
func (l *ToolLedger) Running(turnID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, ev := range l.events {
		if ev.TurnID == turnID && ev.Status == ToolRunning {
			n++
		}
	}
	return n
}

// Snapshot returns copies of all tool events in arrival order
func (l *ToolLedger) Snapshot() []ToolEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ToolEvent, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, *ev)
	}
	return out
}

// Len returns the number of tool events recorded
func (l *ToolLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Reset forgets every tool event
func (l *ToolLedger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
	l.byID = make(map[string]*ToolEvent)
	l.running = make(map[toolKey][]*ToolEvent)
}

// Restore replaces the ledger content, e.g. from a persisted transcript
func (l *ToolLedger) Restore(events []ToolEvent) {
	l.Reset()
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range events {
		ev := events[i]
		l.events = append(l.events, &ev)
		l.byID[ev.ID] = &ev
		if ev.Status == ToolRunning {
			key := toolKey{turnID: ev.TurnID, name: ev.Name}
			l.running[key] = append(l.running[key], &ev)
		}
	}
}

func (l *ToolLedger) finishLocked(ev *ToolEvent, output any) {
	ev.Status = ToolDone
	if output != nil {
		ev.Output = output
	}
	key := toolKey{turnID: ev.TurnID, name: ev.Name}
	pending := l.running[key]
	for i, p := range pending {
		if p == ev {
			pending = append(pending[:i], pending[i+1:]...)
			break
		}
	}
	if len(pending) == 0 {
		delete(l.running, key)
	} else {
		l.running[key] = pending
	}
}

func syntheticToolID(name, turnID string) string {
	return fmt.Sprintf("%s-%s", name, turnID)
}
