package terminal

import (
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examsecure/internal/session"
)

func newTestHost() *Host {
	return newHost(io.Discard, Options{
		MinCols:      80,
		MinRows:      24,
		BlurDebounce: 10 * time.Millisecond,
		HiddenAfter:  60 * time.Millisecond,
	}, zerolog.Nop())
}

func nextSignal(t *testing.T, h *Host) session.SignalEvent {
	t.Helper()
	select {
	case ev := <-h.Signals():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no signal")
	}
	return session.SignalEvent{}
}

func noSignal(t *testing.T, h *Host, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-h.Signals():
		t.Fatalf("unexpected signal %v (%s)", ev.Signal, ev.Detail)
	case <-time.After(wait):
	}
}

func TestHostResize(t *testing.T) {
	h := newTestHost()
	defer h.Close()

	h.resize(100, 30)
	noSignal(t, h, 20*time.Millisecond)

	h.resize(60, 30)
	if ev := nextSignal(t, h); ev.Signal != session.FullscreenExited {
		t.Fatalf("got %v, want fullscreen exited", ev.Signal)
	}
	if h.Fullscreen() {
		t.Error("Fullscreen() = true after shrink")
	}

	h.resize(60, 20)
	noSignal(t, h, 20*time.Millisecond)

	h.resize(80, 24)
	if ev := nextSignal(t, h); ev.Signal != session.EnvironmentChanged {
		t.Fatalf("got %v, want environment changed", ev.Signal)
	}
	if !session.Compliant(h) {
		t.Error("host not compliant after restore")
	}
}

func TestHostBlurDebounce(t *testing.T) {
	h := newTestHost()
	defer h.Close()

	// Focus returns inside the debounce window: nothing is reported.
	h.process(Input{Kind: InputFocusOut})
	h.process(Input{Kind: InputFocusIn})
	if ev := nextSignal(t, h); ev.Signal != session.EnvironmentChanged {
		t.Fatalf("got %v, want environment changed", ev.Signal)
	}
	noSignal(t, h, 100*time.Millisecond)
}

func TestHostSustainedBlur(t *testing.T) {
	h := newTestHost()
	defer h.Close()

	h.process(Input{Kind: InputFocusOut})
	if h.Focused() {
		t.Fatal("Focused() = true after focus out")
	}
	if ev := nextSignal(t, h); ev.Signal != session.FocusLost {
		t.Fatalf("got %v, want focus lost", ev.Signal)
	}
	if ev := nextSignal(t, h); ev.Signal != session.VisibilityHidden {
		t.Fatalf("got %v, want visibility hidden", ev.Signal)
	}
	if h.Visible() {
		t.Error("Visible() = true after hidden")
	}

	h.process(Input{Kind: InputFocusIn})
	if ev := nextSignal(t, h); ev.Signal != session.EnvironmentChanged {
		t.Fatalf("got %v, want environment changed", ev.Signal)
	}
	if !session.Compliant(h) {
		t.Error("host not compliant after focus in")
	}
}

func TestHostBlockedAndKeys(t *testing.T) {
	h := newTestHost()
	defer h.Close()

	h.process(Input{Kind: InputBlocked, Name: "Ctrl+W"})
	ev := nextSignal(t, h)
	if ev.Signal != session.BlockedShortcut || ev.Detail != "Ctrl+W" {
		t.Fatalf("got %v %q", ev.Signal, ev.Detail)
	}

	h.process(Input{Kind: InputRune, Rune: 'B'})
	select {
	case in := <-h.Inputs():
		if in.Rune != 'B' {
			t.Errorf("input rune = %q", in.Rune)
		}
	case <-time.After(time.Second):
		t.Fatal("no input forwarded")
	}
}

func TestHostTruncatedEscapeDoesNotEatNextKey(t *testing.T) {
	old := escapeTimeout
	escapeTimeout = 10 * time.Millisecond
	t.Cleanup(func() { escapeTimeout = old })

	h := newTestHost()
	r, w := io.Pipe()
	defer w.Close()
	defer h.Close()
	go h.readLoop(r)

	nextInput := func() Input {
		t.Helper()
		select {
		case in := <-h.Inputs():
			return in
		case <-time.After(time.Second):
			t.Fatal("no input forwarded")
		}
		return Input{}
	}

	if _, err := w.Write([]byte("\x1b[")); err != nil {
		t.Fatal(err)
	}
	if in := nextInput(); in.Kind != InputKey || in.Key != KeyEscape {
		t.Fatalf("got %+v, want Escape", in)
	}
	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}
	if in := nextInput(); in.Kind != InputRune || in.Rune != 'x' {
		t.Fatalf("got %+v, want rune x", in)
	}
}
