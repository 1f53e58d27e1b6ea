package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/m4xw311/jarvis/agentruntime"
	"github.com/m4xw311/jarvis/config"
	"github.com/m4xw311/jarvis/errors"
	"github.com/m4xw311/jarvis/session"
)

// endSessionText is the sentinel input sent with the end-session flag.
const endSessionText = "Goodbye"

// throttlePause is the base pause applied when the service throttles; the
// retry path doubles it per attempt.
const throttlePause = 2 * time.Second

// Agent drives the request/response loop against the remote agent runtime.
// Invocations are strictly sequential; the runtime client is never
// reconfigured after construction.
type Agent struct {
	Config  *config.Config
	Session *session.Session
	Runtime agentruntime.AgentRuntime

	log   *slog.Logger
	out   io.Writer
	sleep func(time.Duration)
}

func New(cfg *config.Config, sess *session.Session, rt agentruntime.AgentRuntime, log *slog.Logger, out io.Writer) *Agent {
	return &Agent{
		Config:  cfg,
		Session: sess,
		Runtime: rt,
		log:     log,
		out:     out,
		sleep:   time.Sleep,
	}
}

func (a *Agent) request(inputText string, endSession bool) *agentruntime.InvocationRequest {
	return &agentruntime.InvocationRequest{
		AgentID:           a.Config.AgentID,
		AgentAliasID:      a.Config.AgentAliasID,
		SessionID:         a.Session.ID,
		InputText:         inputText,
		EnableTrace:       a.Config.EnableTrace,
		EndSession:        endSession,
		MemoryID:          a.Session.MemoryID,
		SessionAttributes: a.Session.Attributes,
	}
}

// Invoke performs one agent turn and returns the accumulated response text.
// When the service throttles, it backs off exponentially (starting at
// throttlePause) and retries up to the configured max_retries; the pause is
// applied even on the final, failing attempt as crude backpressure. All
// other failures are returned after a single attempt.
func (a *Agent) Invoke(ctx context.Context, inputText string) (string, error) {
	req := a.request(inputText, false)

	for attempt := 0; ; attempt++ {
		text, err := a.invokeOnce(ctx, req)
		if err == nil {
			return text, nil
		}

		se, ok := errors.AsServiceError(err)
		if !ok || !se.Throttled() {
			return text, err
		}

		pause := throttlePause << attempt
		a.log.Warn("backing off after throttling", "pause", pause, "attempt", attempt)
		a.sleep(pause)

		if attempt >= a.Config.MaxRetries {
			return text, err
		}
	}
}

// invokeOnce is a single attempt: validate, call, consume the stream to
// exhaustion. It never retries and never sleeps.
func (a *Agent) invokeOnce(ctx context.Context, req *agentruntime.InvocationRequest) (string, error) {
	if err := validate(req); err != nil {
		a.log.Error("invocation rejected", "error", err)
		return "", err
	}

	stream, err := a.Runtime.InvokeAgent(ctx, req)
	if err != nil {
		if se, ok := errors.Classify(err); ok {
			a.logServiceError(se)
			return "", se
		}
		a.log.Error("unexpected error during agent invocation", "error", err)
		return "", errors.Wrapf(err, "agent invocation failed")
	}
	if stream == nil {
		a.log.Error("no completion stream returned from the agent runtime")
		return "", errors.New("no completion stream returned")
	}
	defer stream.Close()

	var text strings.Builder
	for ev := range stream.Events() {
		switch ev.Kind {
		case agentruntime.EventChunk:
			if !ev.HasBytes {
				a.log.Warn("received chunk without a bytes payload")
				continue
			}
			if !utf8.Valid(ev.Bytes) {
				// Dropped chunk, not a terminal condition.
				a.log.Error("failed to decode chunk bytes as UTF-8")
				continue
			}
			fmt.Fprint(a.out, string(ev.Bytes))
			text.Write(ev.Bytes)
		case agentruntime.EventTrace:
			if req.EnableTrace {
				a.log.Info("trace event", "trace", ev.Trace)
			}
		default:
			a.log.Warn("unexpected event type", "event", ev.Raw)
		}
	}

	// End of one agent turn, whether or not the stream ended cleanly.
	fmt.Fprintln(a.out)

	if err := stream.Err(); err != nil {
		if se, ok := errors.Classify(err); ok {
			a.logServiceError(se)
			return text.String(), se
		}
		a.log.Error("response stream ended with an error", "error", err)
		return text.String(), errors.Wrapf(err, "response stream failed")
	}

	return text.String(), nil
}

// EndSession sends the end-session signal. Best effort: failures are logged
// and swallowed, since the remote side expires idle sessions on its own.
func (a *Agent) EndSession(ctx context.Context) {
	a.log.Info("ending session", "session_id", a.Session.ID)
	if _, err := a.invokeOnce(ctx, a.request(endSessionText, true)); err != nil {
		a.log.Warn("failed to properly end session", "error", err)
		return
	}
	a.log.Info("session ended successfully")
}

func validate(req *agentruntime.InvocationRequest) error {
	if req.InputText == "" || req.SessionID == "" || req.AgentAliasID == "" || req.AgentID == "" {
		return errors.New("required parameters missing: inputText, sessionId, agentAliasId, and agentId must be provided")
	}
	return nil
}

func (a *Agent) logServiceError(se *errors.ServiceError) {
	switch se.Code {
	case errors.CodeThrottling:
		// The pause and retry decision belong to Invoke.
		a.log.Warn("API throttling detected", "message", se.Message)
	case errors.CodeValidation:
		a.log.Error("validation error", "message", se.Message)
	case errors.CodeAccessDenied:
		a.log.Error("access denied, check your IAM permissions", "message", se.Message)
	case errors.CodeResourceNotFound:
		a.log.Error("resource not found, check your agent IDs", "message", se.Message)
	default:
		a.log.Error("AWS API error", "code", se.Code, "message", se.Message)
	}
}
