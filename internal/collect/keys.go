package collect

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Key is a single key press.
type Key byte

const (
	KeyToggle Key = 'r'
	KeyQuit   Key = 'q'
	KeyEscape Key = 0x1b
	keyCtrlC  Key = 0x03
)

// ReadKeys forwards bytes read from r as keys until r returns an error or
// ctx is cancelled. The channel is closed when reading stops. A read that
// is blocked when ctx is cancelled returns only once r yields.
func ReadKeys(ctx context.Context, r io.Reader) <-chan Key {
	keys := make(chan Key, 8)
	go func() {
		defer close(keys)
		buf := make([]byte, 16)
		for {
			n, err := r.Read(buf)
			for _, b := range buf[:n] {
				select {
				case keys <- Key(b):
				case <-ctx.Done():
					return
				}
			}
			if err != nil || ctx.Err() != nil {
				return
			}
		}
	}()
	return keys
}

// TerminalKeys puts f into raw mode and reads single key presses from it.
// The returned restore function puts the terminal back; it must be called
// before the process exits.
func TerminalKeys(ctx context.Context, f *os.File) (<-chan Key, func() error, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, nil, fmt.Errorf("%s is not a terminal", f.Name())
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to enter raw mode: %w", err)
	}
	restore := func() error { return term.Restore(fd, old) }
	return ReadKeys(ctx, f), restore, nil
}
