// Package event provides a pub-sub event bus that reports what sessions do
// without coupling them to the CLI or the MCP server.
//
// # Main Types
//
//   - [Event]: Interface that all events implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub dispatcher, safe for concurrent use
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Types
//
// Invocations:
//   - [InvocationStartedEvent]: a command is about to be injected
//   - [InvocationCompletedEvent]: the end marker was observed
//   - [InvocationTimedOutEvent]: the deadline passed before the end marker
//   - [InvocationFailedEvent]: injection failed, the call was canceled, or the session refused it
//
// Transcript:
//   - [TranscriptRotatedEvent]: the tailer switched to a newer transcript file
//   - [TranscriptBrokenEvent]: the transcript disappeared and the session became unusable
//
// Session:
//   - [SessionClosedEvent]: Close released the session's resources
//
// Handlers run synchronously on the publisher's goroutine. A panicking
// handler is recovered and logged; the remaining handlers still run.
//
// # Basic Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//
//	bus.Subscribe(event.TypeInvocationTimedOut, func(e event.Event) {
//	    timedOut := e.(event.InvocationTimedOutEvent)
//	    fmt.Println("no output for", timedOut.Command)
//	})
//
//	// Log everything
//	bus.SubscribeAll(event.LogHandler(logger))
//
// Event types follow the pattern "category.action".
package event
