package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examsecure/internal/session"
	"golang.org/x/term"
)

const (
	enableFocusReport  = "\x1b[?1004h"
	disableFocusReport = "\x1b[?1004l"
	enterAltScreen     = "\x1b[?1049h\x1b[?25l"
	leaveAltScreen     = "\x1b[?25h\x1b[?1049l"

	sizePollInterval = 500 * time.Millisecond
)

// Options tune how host events become integrity signals.
type Options struct {
	MinCols      int
	MinRows      int
	BlurDebounce time.Duration
	HiddenAfter  time.Duration
}

// Host is the terminal binding of session.Environment. "Fullscreen" means the
// terminal is at least MinCols x MinRows. Focus comes from xterm focus
// reporting: a focus-out that outlasts BlurDebounce is reported as focus
// lost, and one that outlasts HiddenAfter as the exam being hidden.
type Host struct {
	in   *os.File
	out  io.Writer
	opts Options
	log  zerolog.Logger

	signals chan session.SignalEvent
	inputs  chan Input
	done    chan struct{}

	mu         sync.Mutex
	fullscreen bool
	focused    bool
	visible    bool
	blurGen    int
	restore    *term.State
	closeOnce  sync.Once

	size func() (int, int, error)
}

// NewHost binds to in (usually os.Stdin) and writes control sequences to out.
func NewHost(in *os.File, out io.Writer, opts Options, log zerolog.Logger) *Host {
	h := newHost(out, opts, log)
	h.in = in
	h.size = func() (int, int, error) { return term.GetSize(int(in.Fd())) }
	return h
}

func newHost(out io.Writer, opts Options, log zerolog.Logger) *Host {
	return &Host{
		out:        out,
		opts:       opts,
		log:        log.With().Str("component", "terminal_host").Logger(),
		signals:    make(chan session.SignalEvent, 16),
		inputs:     make(chan Input, 64),
		done:       make(chan struct{}),
		fullscreen: true,
		focused:    true,
		visible:    true,
	}
}

// Signals carries integrity signals for the session loop.
func (h *Host) Signals() <-chan session.SignalEvent { return h.signals }

// Inputs carries navigation keystrokes for the UI.
func (h *Host) Inputs() <-chan Input { return h.inputs }

// Fullscreen implements session.Environment.
func (h *Host) Fullscreen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fullscreen
}

// Visible implements session.Environment.
func (h *Host) Visible() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.visible
}

// Focused implements session.Environment.
func (h *Host) Focused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.focused
}

// Start puts the terminal in raw mode, enables focus reporting, and begins
// reading input and watching the terminal size until ctx ends or Close.
func (h *Host) Start(ctx context.Context) error {
	if h.in == nil {
		return errors.New("terminal host has no input")
	}
	fd := int(h.in.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("stdin is not a terminal")
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	h.mu.Lock()
	h.restore = state
	h.mu.Unlock()

	fmt.Fprint(h.out, enterAltScreen+enableFocusReport)

	if cols, rows, err := h.size(); err == nil {
		h.resize(cols, rows)
	}

	go h.readLoop(h.in)
	go h.watchSize(ctx)
	return nil
}

// Close restores the terminal. It is safe to call more than once.
func (h *Host) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		fmt.Fprint(h.out, disableFocusReport+leaveAltScreen)
		h.mu.Lock()
		state := h.restore
		h.mu.Unlock()
		if state != nil && h.in != nil {
			if err := term.Restore(int(h.in.Fd()), state); err != nil {
				h.log.Error().Err(err).Msg("Failed to restore terminal")
			}
		}
	})
}

// escapeTimeout is how long an unfinished escape sequence waits for the rest
// of its bytes before it is read as a bare Escape.
var escapeTimeout = 50 * time.Millisecond

func (h *Host) readLoop(r io.Reader) {
	chunks := make(chan []byte)
	go h.readChunks(r, chunks)

	var p Parser
	var expire <-chan time.Time
	for {
		var events []Input
		select {
		case data, ok := <-chunks:
			if !ok {
				return
			}
			events = p.Feed(data)
		case <-expire:
			events = p.Flush()
		case <-h.done:
			return
		}
		for _, in := range events {
			h.process(in)
		}

		expire = nil
		if p.Pending() {
			expire = time.After(escapeTimeout)
		}
	}
}

func (h *Host) readChunks(r io.Reader, out chan<- []byte) {
	defer close(out)
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case out <- append([]byte(nil), buf[:n]...):
			case <-h.done:
				return
			}
		}
		if err != nil {
			select {
			case <-h.done:
			default:
				h.log.Warn().Err(err).Msg("Terminal input closed")
			}
			return
		}
	}
}

func (h *Host) watchSize(ctx context.Context) {
	ticker := time.NewTicker(sizePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			cols, rows, err := h.size()
			if err != nil {
				h.log.Debug().Err(err).Msg("Failed to read terminal size")
				continue
			}
			h.resize(cols, rows)
		}
	}
}

// process applies one decoded input event.
func (h *Host) process(in Input) {
	switch in.Kind {
	case InputFocusOut:
		h.mu.Lock()
		h.focused = false
		h.blurGen++
		gen := h.blurGen
		h.mu.Unlock()
		time.AfterFunc(h.opts.BlurDebounce, func() { h.blurElapsed(gen, false) })
		time.AfterFunc(h.opts.HiddenAfter, func() { h.blurElapsed(gen, true) })

	case InputFocusIn:
		h.mu.Lock()
		changed := !h.focused || !h.visible
		h.focused = true
		h.visible = true
		h.blurGen++
		h.mu.Unlock()
		if changed {
			h.emit(session.EnvironmentChanged, "focus regained")
		}

	case InputBlocked:
		h.emit(session.BlockedShortcut, in.Name)

	default:
		select {
		case h.inputs <- in:
		case <-h.done:
		}
	}
}

// blurElapsed fires after a focus-out. It reports only if focus has not come
// back since that focus-out.
func (h *Host) blurElapsed(gen int, hidden bool) {
	h.mu.Lock()
	if gen != h.blurGen || h.focused {
		h.mu.Unlock()
		return
	}
	if hidden {
		h.visible = false
	}
	h.mu.Unlock()

	if hidden {
		h.emit(session.VisibilityHidden, "exam window left for another window")
		return
	}
	h.emit(session.FocusLost, "terminal lost focus")
}

func (h *Host) resize(cols, rows int) {
	full := cols >= h.opts.MinCols && rows >= h.opts.MinRows

	h.mu.Lock()
	changed := full != h.fullscreen
	h.fullscreen = full
	h.mu.Unlock()

	if !changed {
		return
	}
	if full {
		h.emit(session.EnvironmentChanged, "terminal restored")
		return
	}
	h.emit(session.FullscreenExited, fmt.Sprintf("terminal resized to %dx%d, need %dx%d",
		cols, rows, h.opts.MinCols, h.opts.MinRows))
}

func (h *Host) emit(sig session.Signal, detail string) {
	select {
	case h.signals <- session.SignalEvent{Signal: sig, Detail: detail}:
	case <-h.done:
	}
}
