// Package agentruntime defines the interface to the remote conversational
// agent runtime and its AWS Bedrock implementation. The agent package
// depends only on the interface, so tests run against the mock.
package agentruntime

import (
	"context"
	"sync"
)

// InvocationRequest carries one turn's worth of input to the remote agent.
// The four identifying fields (AgentID, AgentAliasID, SessionID, InputText)
// are required; MemoryID is omitted from the wire entirely when empty.
type InvocationRequest struct {
	AgentID           string
	AgentAliasID      string
	SessionID         string
	InputText         string
	EnableTrace       bool
	EndSession        bool
	MemoryID          string
	SessionAttributes map[string]string
}

type EventKind int

const (
	EventChunk EventKind = iota
	EventTrace
	EventUnknown
)

// Event is one element of the response stream. Kind selects which of the
// payload fields is meaningful: Bytes for chunks (HasBytes distinguishes an
// empty payload from a chunk that carried no bytes field at all), Trace for
// trace metadata, Raw for anything unrecognized.
type Event struct {
	Kind     EventKind
	Bytes    []byte
	HasBytes bool
	Trace    any
	Raw      any
}

// EventStream yields response events in arrival order. After the Events
// channel is closed, Err reports whether the stream ended cleanly.
type EventStream interface {
	Events() <-chan Event
	Err() error
	Close() error
}

// AgentRuntime is the remote collaborator: one call, one event stream.
type AgentRuntime interface {
	InvokeAgent(ctx context.Context, req *InvocationRequest) (EventStream, error)
}

// MockStream is an EventStream backed by a fixed slice of events.
type MockStream struct {
	Queued   []Event
	FinalErr error
	Closed   bool

	once sync.Once
	ch   chan Event
}

func (m *MockStream) Events() <-chan Event {
	m.once.Do(func() {
		m.ch = make(chan Event, len(m.Queued))
		for _, ev := range m.Queued {
			m.ch <- ev
		}
		close(m.ch)
	})
	return m.ch
}

func (m *MockStream) Err() error { return m.FinalErr }

func (m *MockStream) Close() error {
	m.Closed = true
	return nil
}

// MockAgentRuntime records invocation requests and replays canned responses.
type MockAgentRuntime struct {
	Requests []*InvocationRequest

	Stream    *MockStream
	InvokeErr error
	// NoStream simulates the remote accepting the request but returning
	// nothing to consume.
	NoStream bool
}

func (m *MockAgentRuntime) InvokeAgent(ctx context.Context, req *InvocationRequest) (EventStream, error) {
	m.Requests = append(m.Requests, req)
	if m.InvokeErr != nil {
		return nil, m.InvokeErr
	}
	if m.NoStream {
		return nil, nil
	}
	if m.Stream == nil {
		return &MockStream{}, nil
	}
	return m.Stream, nil
}
