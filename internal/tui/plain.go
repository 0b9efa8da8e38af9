package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/iksnae/chef-chat/internal"
)

// plainPrinter streams the open assistant message to a writer. It only
// ever appends, so it tracks what was already printed per message and per
// tool call.
type plainPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	printed map[string]string
	tools   map[string]internal.ToolStatus
}

func newPlainPrinter(out io.Writer) *plainPrinter {
	return &plainPrinter{
		out:     out,
		printed: make(map[string]string),
		tools:   make(map[string]internal.ToolStatus),
	}
}

// seed marks the current transcript as printed
func (p *plainPrinter) seed(u internal.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range u.Messages {
		p.printed[m.ID] = m.Content
	}
	for _, t := range u.Tools {
		p.tools[t.ID] = t.Status
	}
}

func (p *plainPrinter) observe(u internal.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range u.Tools {
		prev, seen := p.tools[t.ID]
		switch {
		case !seen && t.Status == internal.ToolRunning:
			fmt.Fprintf(p.out, "\n  … %s\n", t.Name)
		case t.Status == internal.ToolDone && prev != internal.ToolDone:
			fmt.Fprintf(p.out, "\n  ✓ %s\n", t.Name)
		}
		p.tools[t.ID] = t.Status
	}

	for _, m := range u.Messages {
		if m.Role != internal.RoleAssistant {
			continue
		}
		prev, seen := p.printed[m.ID]
		if !seen {
			fmt.Fprint(p.out, "assistant> ")
		}
		switch {
		case strings.HasPrefix(m.Content, prev):
			fmt.Fprint(p.out, m.Content[len(prev):])
		case m.Finalized:
			// replaced by a render event or normalized: print the final form
			fmt.Fprintf(p.out, "\n%s", m.Content)
		default:
			continue
		}
		p.printed[m.ID] = m.Content
	}
}

// PrintStream prints assistant replies and tool activity of session to out
// as they stream. Messages already in the session are not printed. Call the
// returned function to stop.
func PrintStream(session *internal.ChatSession, out io.Writer) (stop func()) {
	printer := newPlainPrinter(out)
	printer.seed(internal.Update{Messages: session.Messages(), Tools: session.Tools()})
	return session.Subscribe(printer.observe)
}

// RunPlain runs a line based chat on in/out, for pipes and dumb terminals.
// "/new" starts a new conversation and "/quit" exits. Errors are reported
// by the session's Notifier.
func RunPlain(ctx context.Context, session *internal.ChatSession, in io.Reader, out io.Writer, base internal.TurnInput) error {
	stop := PrintStream(session, out)
	defer stop()

	fmt.Fprintf(out, "chef-chat (%s). Type /new for a new chat, /quit to exit.\n", session.Mode())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/new":
			// failures reach the user through the session notifier
			if err := session.ResetSession(ctx); err == nil {
				fmt.Fprintln(out, "Started a new chat.")
			}
			continue
		}

		input := base
		input.Message = line
		err := session.SubmitTurn(ctx, input)
		fmt.Fprintln(out)
		if err != nil && ctx.Err() != nil {
			return nil
		}
	}
}
