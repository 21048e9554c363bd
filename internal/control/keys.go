package control

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Command is a single-key level adjustment: lowercase keys decrease a
// level by Step, uppercase keys increase it.
type Command struct {
	Level string
	Delta float64
}

// KeyQuit requests engine shutdown from the control loop.
const KeyQuit = 'x'

var keymap = map[byte]Command{
	'm': {LevelMic, -Step},
	'M': {LevelMic, +Step},
	'f': {LevelFeedback, -Step},
	'F': {LevelFeedback, +Step},
	'p': {LevelPrediction, -Step},
	'P': {LevelPrediction, +Step},
	'q': {LevelQuantum, -Step},
	'Q': {LevelQuantum, +Step},
	'i': {LevelModel, -Step},
	'I': {LevelModel, +Step},
}

// Lookup resolves a key to its level adjustment.
func Lookup(key byte) (Command, bool) {
	cmd, ok := keymap[key]
	return cmd, ok
}

// Help lists the key bindings for the startup banner.
func Help() string {
	var b strings.Builder
	b.WriteString("controls: ")
	pairs := []struct {
		keys  string
		level string
	}{
		{"m/M", LevelMic},
		{"f/F", LevelFeedback},
		{"p/P", LevelPrediction},
		{"q/Q", LevelQuantum},
		{"i/I", LevelModel},
	}
	for i, p := range pairs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s -/+", p.keys, p.level)
	}
	fmt.Fprintf(&b, ", %c quit", KeyQuit)
	return b.String()
}

// KeyReader delivers single keystrokes from a raw-mode terminal. When
// stdin is not a terminal the reader reports ErrNotTerminal and the
// interactive control surface stays disabled.
type KeyReader struct {
	fd    int
	state *term.State
	keys  chan byte
}

// ErrNotTerminal indicates stdin cannot serve interactive key input.
var ErrNotTerminal = fmt.Errorf("stdin is not a terminal")

// NewKeyReader switches stdin to raw mode and starts delivering keys.
func NewKeyReader() (*KeyReader, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNotTerminal
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to enter raw mode: %w", err)
	}

	r := &KeyReader{
		fd:    fd,
		state: state,
		keys:  make(chan byte, 16),
	}
	go r.readLoop()

	return r, nil
}

// Keys returns the keystroke channel. It is closed when stdin reaches EOF.
func (r *KeyReader) Keys() <-chan byte {
	return r.keys
}

// readLoop pumps raw bytes from stdin. It may stay blocked in the final
// read until process exit; the channel buffer keeps it from stalling the
// consumer.
func (r *KeyReader) readLoop() {
	defer close(r.keys)

	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return
		}
		if n == 1 {
			r.keys <- buf[0]
		}
	}
}

// Close restores the terminal state.
func (r *KeyReader) Close() error {
	return term.Restore(r.fd, r.state)
}
