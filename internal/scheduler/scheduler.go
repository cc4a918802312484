// Package scheduler decides what the host process does next: handle a
// shutdown, accept an incoming client connection, or run a default FMD
// tick. It is strictly biased in that order, matching the priority a
// single cooperative poll loop would give these events.
package scheduler

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout is how long the scheduler waits for an incoming
// connection before defaulting to PerformFmd.
const DefaultTimeout = 10 * time.Millisecond

// EventKind identifies what the scheduler decided to do next.
type EventKind int

const (
	// Interrupt means ctx was cancelled; the host should shut down.
	Interrupt EventKind = iota
	// Accept means a client connection arrived.
	Accept
	// PerformFmd is the default when nothing else is pending: the host
	// should run an FMD tick against the enclave.
	PerformFmd
)

// Event is the next thing the host should do.
type Event struct {
	Kind EventKind
	Conn net.Conn
}

type acceptResult struct {
	conn net.Conn
	err  error
}

// Scheduler produces the host's next Event from a listener and the
// shutdown context, biased Interrupt > Accept > PerformFmd. A single
// background goroutine owns the listener's Accept loop so that no
// connection is ever accepted and then discarded by a losing select
// case: Go has no way to cancel a blocking Accept call the way the
// original's single-threaded async runtime can drop an un-polled
// future, so the accept loop runs once for the Scheduler's lifetime
// instead of being re-issued on every Next call.
type Scheduler struct {
	listener net.Listener
	timeout  time.Duration
	log      zerolog.Logger
	accepted chan acceptResult
}

// New creates a Scheduler polling listener for incoming client
// connections. A zero timeout defaults to DefaultTimeout.
func New(listener net.Listener, timeout time.Duration, log zerolog.Logger) *Scheduler {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	s := &Scheduler{
		listener: listener,
		timeout:  timeout,
		log:      log,
		accepted: make(chan acceptResult),
	}
	go s.acceptLoop()
	return s
}

func (s *Scheduler) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		s.accepted <- acceptResult{conn, err}
		if err != nil {
			return
		}
	}
}

// Next blocks until the next Event is ready. Interrupt is checked with
// a non-blocking select first so a cancelled context always wins over
// a simultaneously ready accept, since Go's select has no built-in
// priority among multiple ready cases.
func (s *Scheduler) Next(ctx context.Context) Event {
	select {
	case <-ctx.Done():
		return Event{Kind: Interrupt}
	default:
	}

	select {
	case <-ctx.Done():
		return Event{Kind: Interrupt}
	case res := <-s.accepted:
		if res.err != nil {
			s.log.Error().Err(res.err).Msg("accept failed")
			return Event{Kind: PerformFmd}
		}
		return Event{Kind: Accept, Conn: res.conn}
	case <-time.After(s.timeout):
		return Event{Kind: PerformFmd}
	}
}
