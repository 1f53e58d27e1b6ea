// Package terminal provides the interactive console front end for the
// agent: a sequential prompt loop with exit keywords, interrupt
// confirmation, and best-effort session termination on every exit path.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/m4xw311/jarvis/agent"
)

const (
	greeting      = "This is JARVIS, your personal assistant. Type 'exit' to end the conversation."
	inputPrompt   = "You: "
	replyPrefix   = "JARVIS: "
	emptyReminder = "Please enter some text. Type 'exit' to end the conversation."
	apology       = "I'm sorry, I'm having trouble processing your request right now. Please try again later."
)

var exitKeywords = []string{"exit", "quit", "bye"}

// Terminal runs the interactive chat session. One turn at a time: a new
// invocation never starts before the previous one's stream is fully
// consumed and the prompt is shown again.
type Terminal struct {
	agent *agent.Agent
	log   *slog.Logger

	in         io.Reader
	out        io.Writer
	interrupts <-chan os.Signal
}

func New(a *agent.Agent, log *slog.Logger) *Terminal {
	return &Terminal{
		agent: a,
		log:   log,
		in:    os.Stdin,
		out:   os.Stdout,
	}
}

// Run drives the session until the user exits. It returns nil on graceful
// termination, including after a recovered fatal error; the session is
// ended best-effort on every path out.
func (t *Terminal) Run(ctx context.Context) (err error) {
	interrupts := t.interrupts
	if interrupts == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt)
		defer signal.Stop(ch)
		interrupts = ch
	}

	defer func() {
		if r := recover(); r != nil {
			t.log.Error("fatal error in chat session", "panic", r)
			fmt.Fprintln(t.out, "\nAn unexpected error occurred. Please check the logs for details.")
			t.endSessionQuietly(ctx)
			err = nil
		}
	}()

	lines := readLines(t.in)
	fmt.Fprintln(t.out, greeting)

	for {
		fmt.Fprint(t.out, inputPrompt)

		// A pending interrupt takes priority over buffered input.
		select {
		case <-interrupts:
			if t.confirmExit(lines) {
				t.endSession(ctx)
				return nil
			}
			continue
		default:
		}

		select {
		case line, ok := <-lines:
			if !ok {
				// EOF on stdin ends the conversation.
				fmt.Fprintln(t.out)
				t.endSession(ctx)
				return nil
			}
			input := strings.TrimSpace(line)
			if input == "" {
				fmt.Fprintln(t.out, emptyReminder)
				continue
			}
			if isExitKeyword(input) {
				t.endSession(ctx)
				return nil
			}
			t.processTurn(ctx, input)
		case <-interrupts:
			if t.confirmExit(lines) {
				t.endSession(ctx)
				return nil
			}
		}
	}
}

// processTurn performs one invocation. Failures were already logged at the
// invocation boundary; the user gets a plain-language notice only.
func (t *Terminal) processTurn(ctx context.Context, input string) {
	t.agent.Session.Record("user", input)

	fmt.Fprint(t.out, replyPrefix)
	text, err := t.agent.Invoke(ctx, input)
	if err != nil {
		fmt.Fprintln(t.out, apology)
		return
	}

	t.agent.Session.Record("assistant", text)
	if err := t.agent.Session.Save(); err != nil {
		t.log.Warn("failed to save session transcript", "error", err)
	}
}

func (t *Terminal) confirmExit(lines <-chan string) bool {
	fmt.Fprint(t.out, "\nDo you want to exit? (y/n): ")
	line, ok := <-lines
	if !ok {
		return true
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func (t *Terminal) endSession(ctx context.Context) {
	fmt.Fprintln(t.out, "Ending session...")
	t.agent.EndSession(ctx)
}

// endSessionQuietly is the fatal-error cleanup path; a second failure here
// must not escape.
func (t *Terminal) endSessionQuietly(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("error ending session during cleanup", "panic", r)
		}
	}()
	t.agent.EndSession(ctx)
}

func isExitKeyword(input string) bool {
	lowered := strings.ToLower(input)
	for _, kw := range exitKeywords {
		if lowered == kw {
			return true
		}
	}
	return false
}

// readLines feeds console input one line at a time. The goroutine stays at
// most one line ahead of the loop, which keeps turns strictly sequential.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			ch <- scanner.Text()
		}
	}()
	return ch
}
