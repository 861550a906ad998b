// Package tui provides an interactive console for a termrelay session.
//
// The console is a Bubble Tea program: a scrollback viewport of past
// invocations above a single-line command input. Each submitted line runs
// through an Executor while a spinner shows elapsed time; ctrl+c cancels a
// running invocation and quits when idle.
package tui
