package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	bspinner "github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/x/ansi"
)

const spinnerInterval = 50 * time.Millisecond

var spinnerFrames = bspinner.MiniDot.Frames

// ErrSpinnerStarted is returned by Start when the spinner has already left
// the idle state.
var ErrSpinnerStarted = errors.New("spinner already started")

// SpinnerState is the lifecycle state of a Spinner as seen by its owner.
type SpinnerState int

const (
	SpinnerIdle SpinnerState = iota
	SpinnerRunning
	SpinnerPaused
	SpinnerStopped
)

func (s SpinnerState) String() string {
	switch s {
	case SpinnerIdle:
		return "idle"
	case SpinnerRunning:
		return "running"
	case SpinnerPaused:
		return "paused"
	case SpinnerStopped:
		return "stopped"
	default:
		return fmt.Sprintf("SpinnerState(%d)", int(s))
	}
}

type spinnerCommandKind int

const (
	cmdContinue spinnerCommandKind = iota
	cmdPause
	cmdStop
)

// spinnerCommand is sent to the animation goroutine. Pause and Stop carry an
// ack channel that is closed once the line has been cleared.
type spinnerCommand struct {
	kind    spinnerCommandKind
	message string
	ack     chan struct{}
}

// Spinner animates a single status line while no other output is printed.
//
// The line belongs to the animation goroutine while the spinner is running.
// Pause and Stop hand it back: they return only after the goroutine has
// cleared the line and shown the cursor, so output printed afterwards cannot
// be overdrawn by a late frame.
type Spinner struct {
	out      io.Writer
	isTTY    bool
	interval time.Duration

	mu    sync.Mutex
	state SpinnerState
	cmds  chan spinnerCommand
	done  chan struct{}
}

// NewSpinner creates an idle spinner drawing to w. Nothing is drawn when w is
// not a terminal.
func NewSpinner(w io.Writer) *Spinner {
	if w == nil {
		w = os.Stdout
	}
	return &Spinner{
		out:      w,
		isTTY:    IsWriterTTY(w),
		interval: spinnerInterval,
	}
}

// State returns the current lifecycle state.
func (s *Spinner) State() SpinnerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins animating message. It fails if the spinner is not idle.
func (s *Spinner) Start(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SpinnerIdle {
		return fmt.Errorf("%w (state %s)", ErrSpinnerStarted, s.state)
	}
	if s.interval <= 0 {
		s.interval = spinnerInterval
	}

	s.cmds = make(chan spinnerCommand)
	s.done = make(chan struct{})
	s.state = SpinnerRunning
	go s.run(message)
	return nil
}

// Continue resumes a paused spinner with a new message. It does nothing if the
// spinner is not paused; in particular a running spinner keeps its message.
func (s *Spinner) Continue(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SpinnerPaused {
		return
	}
	s.cmds <- spinnerCommand{kind: cmdContinue, message: message}
	s.state = SpinnerRunning
}

// Pause clears the line and returns once it is safe to print.
func (s *Spinner) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SpinnerRunning {
		return
	}
	ack := make(chan struct{})
	s.cmds <- spinnerCommand{kind: cmdPause, ack: ack}
	<-ack
	s.state = SpinnerPaused
}

// Stop clears the line, restores the cursor and waits for the animation
// goroutine to exit. Calling Stop more than once is safe.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case SpinnerIdle:
		s.state = SpinnerStopped
		return
	case SpinnerStopped:
		return
	}

	ack := make(chan struct{})
	s.cmds <- spinnerCommand{kind: cmdStop, ack: ack}
	<-ack
	<-s.done
	s.state = SpinnerStopped
}

// frameState is owned by the animation goroutine.
type frameState struct {
	index        uint
	message      string
	running      bool
	cursorHidden bool
}

func (s *Spinner) run(message string) {
	defer close(s.done)

	st := frameState{message: message, running: true}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-s.cmds:
			switch cmd.kind {
			case cmdContinue:
				if !st.running {
					st.running = true
					st.message = cmd.message
				}
			case cmdPause:
				if st.running {
					s.clear(&st)
					st.running = false
				}
				close(cmd.ack)
			case cmdStop:
				s.clear(&st)
				close(cmd.ack)
				return
			}
		case <-ticker.C:
			if st.running {
				s.draw(&st)
			}
		}
	}
}

func (s *Spinner) draw(st *frameState) {
	if !s.isTTY {
		st.index++
		return
	}

	frame := spinnerFrames[st.index%uint(len(spinnerFrames))]
	dots := strings.Repeat(".", int(st.index/5)%4)

	var b strings.Builder
	b.WriteString("\r")
	if !st.cursorHidden {
		b.WriteString(ansi.HideCursor)
		st.cursorHidden = true
	}
	fmt.Fprintf(&b, "%s%s%s %s%-3s", Color(Cyan), frame, Color(Reset), st.message, dots)
	b.WriteString(ansi.EraseLineRight)
	fmt.Fprint(s.out, b.String())
	st.index++
}

func (s *Spinner) clear(st *frameState) {
	if !s.isTTY {
		return
	}
	fmt.Fprint(s.out, "\r"+ansi.EraseEntireLine+ansi.ShowCursor)
	st.cursorHidden = false
}
