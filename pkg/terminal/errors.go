package terminal

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("terminal: aborted")
	// ErrQuit is returned when the user leaves the wizard from the action
	// menu. Progress has been autosaved.
	ErrQuit = errors.New("terminal: quit")
)

// ErrStalled is returned when the wizard does not reach its confirmation
// step within the configured number of rounds.
var ErrStalled = errors.New("terminal: wizard did not reach confirmation")
