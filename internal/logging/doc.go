// Package logging provides structured logging for termrelay.
//
// This package wraps Go's log/slog to produce JSON lines. Each component tags
// its logger once, so every entry for one command carries the session and
// invocation it belongs to:
//
//	logger, err := logging.NewLogger("/var/log/termrelay", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	sess := logger.WithSession("s-1").WithComponent("correlate")
//	sess.WithInvocation("ab12cd34").Info("invocation completed", "elapsed_ms", 42)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"invocation completed","session_id":"s-1","component":"correlate","invocation_id":"ab12cd34","elapsed_ms":42}
//
// Logs never go to stdout: the MCP server speaks its protocol there.
//
// For long-running servers use [NewLoggerWithRotation]; rotated files are named
// termrelay.log.1 (newest) through termrelay.log.N, with an optional .gz suffix.
//
// Tests use [NopLogger].
package logging
