// Package session is the facade callers use to run commands in an opaque
// terminal.
//
// A [Session] owns one injection target, one transcript tailer feeding a
// capture.LineBuffer, and one correlate.Correlator:
//
//	inj, _ := inject.FromConfig(cfg.Target, dir, logger)
//	s, err := session.New(session.FromConfig(cfg, dir), inj, session.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	out, err := s.Execute(ctx, "ls", 5*time.Second)
//
// # Ownership
//
// Only one session may drive a target at a time. [New] takes an exclusive
// gofrs/flock lock file named after the target in the configured lock
// directory, plus an in-process claim, and fails with ErrTargetLocked when
// either is held. The lock file carries the holder's PID and hostname.
//
// # Failures
//
// Execute refuses to run after Close (ErrSessionClosed), after the transcript
// has disappeared (ErrSessionBroken), and while another Execute is in flight
// on the same session (ErrSessionBusy). Everything else is the correlator's
// answer: output, ErrTimedOut, ErrCanceled, or the injector's error.
package session
