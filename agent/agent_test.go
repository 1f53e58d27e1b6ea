package agent

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/m4xw311/jarvis/agentruntime"
	"github.com/m4xw311/jarvis/config"
	"github.com/m4xw311/jarvis/errors"
	"github.com/m4xw311/jarvis/session"
)

func chunk(text string) agentruntime.Event {
	return agentruntime.Event{Kind: agentruntime.EventChunk, Bytes: []byte(text), HasBytes: true}
}

func newTestAgent(rt agentruntime.AgentRuntime, out io.Writer, logSink io.Writer) *Agent {
	if logSink == nil {
		logSink = io.Discard
	}
	cfg := &config.Config{AgentID: "agent123", AgentAliasID: "alias123"}
	sess := &session.Session{ID: "session123"}
	a := New(cfg, sess, rt, slog.New(slog.NewTextHandler(logSink, nil)), out)
	a.sleep = func(time.Duration) {}
	return a
}

func TestInvokeMissingParamsMakesNoCall(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(a *Agent)
		input  string
	}{
		{"empty input", func(a *Agent) {}, ""},
		{"empty session id", func(a *Agent) { a.Session.ID = "" }, "Hello"},
		{"empty alias id", func(a *Agent) { a.Config.AgentAliasID = "" }, "Hello"},
		{"empty agent id", func(a *Agent) { a.Config.AgentID = "" }, "Hello"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rt := &agentruntime.MockAgentRuntime{}
			a := newTestAgent(rt, io.Discard, nil)
			tc.mutate(a)

			if _, err := a.Invoke(context.Background(), tc.input); err == nil {
				t.Fatal("expected a validation error")
			}
			if len(rt.Requests) != 0 {
				t.Fatalf("expected no network call, got %d", len(rt.Requests))
			}
		})
	}
}

func TestInvokeRendersChunksInOrder(t *testing.T) {
	rt := &agentruntime.MockAgentRuntime{
		Stream: &agentruntime.MockStream{Queued: []agentruntime.Event{
			chunk("Hello, "),
			chunk("world!"),
		}},
	}
	var out bytes.Buffer
	a := newTestAgent(rt, &out, nil)

	text, err := a.Invoke(context.Background(), "Hi")
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if out.String() != "Hello, world!\n" {
		t.Errorf("rendered output = %q, want %q", out.String(), "Hello, world!\n")
	}
	if text != "Hello, world!" {
		t.Errorf("accumulated text = %q, want %q", text, "Hello, world!")
	}
	if !rt.Stream.Closed {
		t.Error("expected the stream to be closed after consumption")
	}

	if len(rt.Requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(rt.Requests))
	}
	req := rt.Requests[0]
	if req.AgentID != "agent123" || req.AgentAliasID != "alias123" || req.SessionID != "session123" {
		t.Errorf("unexpected identifiers in request: %+v", req)
	}
	if req.InputText != "Hi" || req.EndSession {
		t.Errorf("unexpected request payload: %+v", req)
	}
	if req.MemoryID != "" {
		t.Errorf("expected memory id to be omitted when unset, got %q", req.MemoryID)
	}
}

func TestInvokeCarriesMemoryID(t *testing.T) {
	rt := &agentruntime.MockAgentRuntime{}
	a := newTestAgent(rt, io.Discard, nil)
	a.Session.MemoryID = "JARVIS-MEMORY-123"

	if _, err := a.Invoke(context.Background(), "Hi"); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if rt.Requests[0].MemoryID != "JARVIS-MEMORY-123" {
		t.Errorf("expected memory id in request, got %q", rt.Requests[0].MemoryID)
	}
}

func TestInvokeTraceDisabled(t *testing.T) {
	rt := &agentruntime.MockAgentRuntime{
		Stream: &agentruntime.MockStream{Queued: []agentruntime.Event{
			{Kind: agentruntime.EventTrace, Trace: "reasoning"},
			chunk("answer"),
		}},
	}
	var out, logs bytes.Buffer
	a := newTestAgent(rt, &out, &logs)

	if _, err := a.Invoke(context.Background(), "Hi"); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if strings.Contains(logs.String(), "trace event") {
		t.Error("trace content logged while tracing disabled")
	}
	if out.String() != "answer\n" {
		t.Errorf("trace event leaked into rendered output: %q", out.String())
	}
}

func TestInvokeTraceEnabled(t *testing.T) {
	rt := &agentruntime.MockAgentRuntime{
		Stream: &agentruntime.MockStream{Queued: []agentruntime.Event{
			{Kind: agentruntime.EventTrace, Trace: "reasoning"},
		}},
	}
	var out, logs bytes.Buffer
	a := newTestAgent(rt, &out, &logs)
	a.Config.EnableTrace = true

	if _, err := a.Invoke(context.Background(), "Hi"); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !strings.Contains(logs.String(), "trace event") {
		t.Error("expected the trace event to be logged")
	}
	if out.String() != "\n" {
		t.Errorf("trace content must not be rendered, got %q", out.String())
	}
}

func TestInvokeChunkWithoutBytesSkipped(t *testing.T) {
	rt := &agentruntime.MockAgentRuntime{
		Stream: &agentruntime.MockStream{Queued: []agentruntime.Event{
			{Kind: agentruntime.EventChunk},
			chunk("ok"),
		}},
	}
	var out bytes.Buffer
	a := newTestAgent(rt, &out, nil)

	if _, err := a.Invoke(context.Background(), "Hi"); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if out.String() != "ok\n" {
		t.Errorf("rendered output = %q, want %q", out.String(), "ok\n")
	}
}

func TestInvokeInvalidUTF8ChunkSkipped(t *testing.T) {
	rt := &agentruntime.MockAgentRuntime{
		Stream: &agentruntime.MockStream{Queued: []agentruntime.Event{
			{Kind: agentruntime.EventChunk, Bytes: []byte{0xff, 0xfe}, HasBytes: true},
			chunk("still here"),
		}},
	}
	var out bytes.Buffer
	a := newTestAgent(rt, &out, nil)

	if _, err := a.Invoke(context.Background(), "Hi"); err != nil {
		t.Fatalf("expected the stream to survive a bad chunk, got %v", err)
	}
	if out.String() != "still here\n" {
		t.Errorf("rendered output = %q, want %q", out.String(), "still here\n")
	}
}

func TestInvokeUnknownEventSkipped(t *testing.T) {
	rt := &agentruntime.MockAgentRuntime{
		Stream: &agentruntime.MockStream{Queued: []agentruntime.Event{
			{Kind: agentruntime.EventUnknown, Raw: "future event"},
			chunk("ok"),
		}},
	}
	var out bytes.Buffer
	a := newTestAgent(rt, &out, nil)

	if _, err := a.Invoke(context.Background(), "Hi"); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if out.String() != "ok\n" {
		t.Errorf("rendered output = %q, want %q", out.String(), "ok\n")
	}
}

func TestInvokeNoStreamIsFailure(t *testing.T) {
	rt := &agentruntime.MockAgentRuntime{NoStream: true}
	a := newTestAgent(rt, io.Discard, nil)

	if _, err := a.Invoke(context.Background(), "Hi"); err == nil {
		t.Fatal("expected a failure when the response has no stream")
	}
}

func TestInvokeThrottlingPausesAndFails(t *testing.T) {
	rt := &agentruntime.MockAgentRuntime{
		InvokeErr: &smithy.GenericAPIError{Code: errors.CodeThrottling, Message: "slow down"},
	}
	a := newTestAgent(rt, io.Discard, nil)

	var pauses []time.Duration
	a.sleep = func(d time.Duration) { pauses = append(pauses, d) }

	_, err := a.Invoke(context.Background(), "Hi")
	if err == nil {
		t.Fatal("expected a throttling failure")
	}
	se, ok := errors.AsServiceError(err)
	if !ok || !se.Throttled() {
		t.Fatalf("expected a classified throttling error, got %v", err)
	}
	// MaxRetries is zero: one attempt, one base pause, no internal retry.
	if len(rt.Requests) != 1 {
		t.Errorf("expected a single attempt, got %d", len(rt.Requests))
	}
	if len(pauses) != 1 || pauses[0] != 2*time.Second {
		t.Errorf("expected one 2s pause, got %v", pauses)
	}
}

func TestInvokeRetriesOnThrottlingWithBackoff(t *testing.T) {
	rt := &agentruntime.MockAgentRuntime{
		InvokeErr: &smithy.GenericAPIError{Code: errors.CodeThrottling, Message: "slow down"},
	}
	a := newTestAgent(rt, io.Discard, nil)
	a.Config.MaxRetries = 2

	var pauses []time.Duration
	a.sleep = func(d time.Duration) { pauses = append(pauses, d) }

	if _, err := a.Invoke(context.Background(), "Hi"); err == nil {
		t.Fatal("expected failure after retries are exhausted")
	}
	if len(rt.Requests) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(rt.Requests))
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(pauses) != len(want) {
		t.Fatalf("expected pauses %v, got %v", want, pauses)
	}
	for i := range want {
		if pauses[i] != want[i] {
			t.Errorf("pause %d = %v, want %v", i, pauses[i], want[i])
		}
	}
}

func TestInvokeNoRetryOnOtherServiceErrors(t *testing.T) {
	for _, code := range []string{errors.CodeValidation, errors.CodeAccessDenied, errors.CodeResourceNotFound, "InternalServerException"} {
		rt := &agentruntime.MockAgentRuntime{
			InvokeErr: &smithy.GenericAPIError{Code: code, Message: "nope"},
		}
		a := newTestAgent(rt, io.Discard, nil)
		a.Config.MaxRetries = 3

		var pauses []time.Duration
		a.sleep = func(d time.Duration) { pauses = append(pauses, d) }

		if _, err := a.Invoke(context.Background(), "Hi"); err == nil {
			t.Fatalf("%s: expected a failure", code)
		}
		if len(rt.Requests) != 1 {
			t.Errorf("%s: expected a single attempt, got %d", code, len(rt.Requests))
		}
		if len(pauses) != 0 {
			t.Errorf("%s: expected no pause, got %v", code, pauses)
		}
	}
}

func TestInvokeUnclassifiedError(t *testing.T) {
	rt := &agentruntime.MockAgentRuntime{InvokeErr: errors.New("connection reset")}
	a := newTestAgent(rt, io.Discard, nil)
	a.Config.MaxRetries = 3

	_, err := a.Invoke(context.Background(), "Hi")
	if err == nil {
		t.Fatal("expected a failure for an unclassified error")
	}
	if _, ok := errors.AsServiceError(err); ok {
		t.Error("a plain error must not classify as a service error")
	}
	if len(rt.Requests) != 1 {
		t.Errorf("expected a single attempt, got %d", len(rt.Requests))
	}
}

func TestEndSessionSendsSentinel(t *testing.T) {
	rt := &agentruntime.MockAgentRuntime{}
	a := newTestAgent(rt, io.Discard, nil)
	a.Session.MemoryID = "mem-1"

	a.EndSession(context.Background())

	if len(rt.Requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(rt.Requests))
	}
	req := rt.Requests[0]
	if req.InputText != "Goodbye" || !req.EndSession {
		t.Errorf("unexpected end-session request: %+v", req)
	}
	if req.MemoryID != "mem-1" {
		t.Errorf("expected memory id on end-session request, got %q", req.MemoryID)
	}
}

func TestEndSessionSwallowsFailures(t *testing.T) {
	rt := &agentruntime.MockAgentRuntime{
		InvokeErr: &smithy.GenericAPIError{Code: errors.CodeResourceNotFound, Message: "gone"},
	}
	a := newTestAgent(rt, io.Discard, nil)

	// Must not panic or propagate, and stays safe to call repeatedly.
	a.EndSession(context.Background())
	a.EndSession(context.Background())

	if len(rt.Requests) != 2 {
		t.Errorf("expected 2 best-effort attempts, got %d", len(rt.Requests))
	}
}
