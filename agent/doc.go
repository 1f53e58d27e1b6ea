// Package agent implements the core chat loop against a remote Bedrock
// agent: single invocations with streamed output, throttling-aware retry,
// and best-effort session termination.
//
// # Architecture
//
// The agent package holds the invocation logic shared by any front end; the
// terminal subpackage (agent/terminal) provides the interactive CLI on top
// of it.
//
// One invocation is one call to the runtime followed by consumption of its
// event stream to exhaustion. Chunk payloads are rendered to the output
// sink incrementally, in arrival order, as they come off the wire; trace
// events are logged (only when tracing is enabled) and never mixed into the
// rendered text; malformed or unrecognized events are logged and skipped
// without aborting the stream. A single trailing newline marks the end of
// the turn.
//
// # Error handling
//
// Remote failures are classified into errors.ServiceError by their service
// code and converted to an error result at the invocation boundary; they
// never escape as panics. Throttling is the only retried condition:
// Agent.Invoke backs off exponentially starting at two seconds, bounded by
// the configured max_retries. All invocations for a session are strictly
// sequential; there is no concurrent invocation path.
package agent
