package event

import (
	"github.com/Iron-Ham/termrelay/internal/logging"
	"github.com/Iron-Ham/termrelay/internal/util"
)

// maxLoggedCommand bounds the command text carried into log lines.
const maxLoggedCommand = 256

// LogHandler returns a handler that writes each event to logger.
// Failures log at warn level, everything else at debug.
func LogHandler(logger *logging.Logger) Handler {
	return func(e Event) {
		switch ev := e.(type) {
		case InvocationStartedEvent:
			logger.Debug(ev.EventType(), "session_id", ev.SessionID, "target", ev.Target,
				"command", util.Abbreviate(ev.Command, maxLoggedCommand), "timeout", ev.Timeout.String())
		case InvocationCompletedEvent:
			logger.Debug(ev.EventType(), "session_id", ev.SessionID, "invocation_id", ev.MarkerID,
				"elapsed_ms", ev.Elapsed.Milliseconds(), "lines_scanned", ev.LinesScanned,
				"output_bytes", ev.OutputBytes)
		case InvocationTimedOutEvent:
			logger.Warn(ev.EventType(), "session_id", ev.SessionID, "invocation_id", ev.MarkerID,
				"command", util.Abbreviate(ev.Command, maxLoggedCommand), "timeout", ev.Timeout.String(), "state", ev.State)
		case InvocationFailedEvent:
			logger.Warn(ev.EventType(), "session_id", ev.SessionID, "invocation_id", ev.MarkerID,
				"command", util.Abbreviate(ev.Command, maxLoggedCommand), "category", ev.Category, "error", errString(ev.Err))
		case TranscriptRotatedEvent:
			logger.Info(ev.EventType(), "session_id", ev.SessionID, "old_path", ev.OldPath,
				"new_path", ev.NewPath)
		case TranscriptBrokenEvent:
			logger.Error(ev.EventType(), "session_id", ev.SessionID, "path", ev.Path,
				"error", errString(ev.Err))
		case SessionClosedEvent:
			logger.Info(ev.EventType(), "session_id", ev.SessionID, "target", ev.Target,
				"invocations", ev.Invocations)
		default:
			logger.Debug(e.EventType())
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
