package display

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/smazurov/viewfinder/internal/logging"
)

// Keyboard reads single-key presses from a terminal without line buffering
// or echo. ISIG stays enabled, so Ctrl-C still raises the interrupt the
// stop flag depends on. A reader goroutine feeds key bytes into a buffered
// channel the render loop drains once per frame.
type Keyboard struct {
	fd     int
	saved  unix.Termios
	events chan byte
	done   chan struct{}
	once   sync.Once
	log    *slog.Logger
}

// OpenKeyboard switches stdin into raw key mode. Fails when stdin is not a
// terminal, which callers treat as "run without keyboard controls".
func OpenKeyboard() (*Keyboard, error) {
	fd := int(os.Stdin.Fd())
	term, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("stdin is not a terminal: %w", err)
	}

	k := &Keyboard{
		fd:     fd,
		saved:  *term,
		events: make(chan byte, 32),
		done:   make(chan struct{}),
		log:    logging.GetLogger("display"),
	}

	raw := *term
	raw.Lflag &^= unix.ICANON | unix.ECHO
	// VMIN=0 VTIME=1 bounds each read at 100ms so the reader goroutine can
	// notice Close instead of blocking on the next keypress forever.
	raw.Cc[unix.VMIN] = 0
	raw.Cc[unix.VTIME] = 1
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return nil, fmt.Errorf("set raw mode: %w", err)
	}

	go k.readLoop()
	return k, nil
}

func (k *Keyboard) readLoop() {
	buf := make([]byte, 1)
	for {
		select {
		case <-k.done:
			return
		default:
		}
		n, err := unix.Read(k.fd, buf)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			k.log.Debug("keyboard reader stopped", "error", err)
			return
		}
		if n == 0 {
			continue
		}
		select {
		case k.events <- buf[0]:
		default:
			// Slow consumer; dropping a keypress beats blocking the reader.
		}
	}
}

// Events is the stream of raw key bytes.
func (k *Keyboard) Events() <-chan byte {
	return k.events
}

// Close restores the saved terminal settings. Safe to call more than once.
func (k *Keyboard) Close() error {
	var err error
	k.once.Do(func() {
		close(k.done)
		err = unix.IoctlSetTermios(k.fd, unix.TCSETS, &k.saved)
	})
	return err
}
