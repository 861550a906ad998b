// Package inject delivers keystrokes to the terminal a session drives.
//
// The target is opaque: an [Injector] can bring it into focus, type text
// with a pause between characters, and press Enter. Nothing else about the
// target is observable from here; its output is read back from the emulator's
// transcript by the transcript package.
//
// Backends:
//
//   - [TmuxInjector]: a tmux session, via tmux send-keys
//   - [XdotoolInjector]: an X11 terminal window, via xdotool
//   - [PTYInjector]: a local shell under a pseudo-terminal that writes its own
//     transcript; useful for trying termrelay without a GUI emulator
//
// External commands go through a [Runner] so tests can replace them.
package inject
