// Package stream implements the framed-message transport: a Session per
// accepted TCP connection built on internal/wsproto, and an Acceptor that
// binds the listening socket and hands off new connections.
package stream

import (
	"bufio"
	"context"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dkeye/voicerelay/internal/wsproto"
)

type outboundFrame struct {
	opcode  wsproto.Opcode
	payload []byte
}

// Session owns one framed-stream client: it drives the upgrade handshake,
// the inbound frame-parsing loop, and a single writer goroutine draining
// an outbound queue, giving "at most one write in flight" for free.
type Session struct {
	id         string
	conn       net.Conn
	br         *bufio.Reader
	send       chan outboundFrame
	maxPayload int64
	log        zerolog.Logger

	onBinary func(payload []byte)
	onClose  func()

	mu       sync.Mutex
	shutdown bool
	finish   sync.Once
}

// NewSession wraps an accepted net.Conn. OnBinary and OnClose must be set
// before Start is called.
func NewSession(conn net.Conn, maxPayload int64, log zerolog.Logger) *Session {
	return &Session{
		id:         uuid.NewString(),
		conn:       conn,
		br:         bufio.NewReader(conn),
		send:       make(chan outboundFrame, 64),
		maxPayload: maxPayload,
		log:        log.With().Str("module", "session").Logger(),
	}
}

// ID returns the stable, server-generated ClientId assigned at construction.
func (s *Session) ID() string { return s.id }

// OnBinary registers the callback invoked with the payload of each inbound
// Binary frame.
func (s *Session) OnBinary(fn func(payload []byte)) { s.onBinary = fn }

// OnClose registers the callback invoked once the session tears down, for
// any reason (protocol error, I/O error, or a Close handshake).
func (s *Session) OnClose(fn func()) { s.onClose = fn }

// Send enqueues an AudioPacket as a Binary frame. Fire-and-forget: it never
// blocks and never touches the Room's lock.
func (s *Session) Send(payload []byte) {
	s.enqueue(wsproto.OpBinary, payload)
}

// Start drives the upgrade handshake and then the inbound read loop. It
// blocks until the session tears down; callers run it in its own goroutine.
func (s *Session) Start(ctx context.Context) {
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-stopWatch:
		}
	}()

	if err := wsproto.ServerHandshake(s.br, s.conn); err != nil {
		s.log.Error().Err(err).Str("client", s.id).Msg("handshake failed")
		s.Close()
		return
	}

	go s.writePump()
	s.readLoop()
}

// writePump is the only goroutine that ever writes to s.conn, giving the
// session "at most one write in flight" for free. It keeps draining the
// queue — including a just-enqueued Close echo — even after readLoop has
// asked for shutdown, and only tears the connection down once the queue
// is exhausted or a write fails.
func (s *Session) writePump() {
	for f := range s.send {
		if err := wsproto.WriteFrame(s.conn, f.opcode, f.payload); err != nil {
			s.log.Error().Err(err).Str("client", s.id).Msg("write error")
			break
		}
	}
	_ = s.conn.Close()
	s.finishOnce()
}

func (s *Session) readLoop() {
	defer s.requestShutdown()
	for {
		frame, err := wsproto.ReadFrame(s.br, s.maxPayload)
		if err != nil {
			s.log.Debug().Err(err).Str("client", s.id).Msg("read loop ended")
			return
		}

		switch frame.Opcode {
		case wsproto.OpBinary:
			if s.onBinary != nil {
				s.onBinary(frame.Payload)
			}
		case wsproto.OpText:
			// Text frames carry no audio payload and are dropped.
		case wsproto.OpPing:
			s.enqueue(wsproto.OpPong, frame.Payload)
		case wsproto.OpPong:
			// no-op: this server never sends unsolicited pings.
		case wsproto.OpClose:
			s.enqueue(wsproto.OpClose, frame.Payload)
			return
		case wsproto.OpContinuation:
			s.log.Warn().Str("client", s.id).Msg("fragmented frame rejected")
			return
		}
	}
}

func (s *Session) enqueue(opcode wsproto.Opcode, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return
	}
	select {
	case s.send <- outboundFrame{opcode: opcode, payload: payload}:
	default:
		s.log.Warn().Str("client", s.id).Msg("write queue full, dropping frame")
	}
}

// requestShutdown closes the write queue so writePump drains whatever is
// already buffered — including a just-enqueued Close echo — and then tears
// the connection down itself. It never touches s.conn directly, so a
// pending write is never raced against the socket closing underneath it.
func (s *Session) requestShutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return
	}
	s.shutdown = true
	close(s.send)
}

// Close forces an immediate teardown: it unblocks any goroutine currently
// blocked in a read or write on s.conn. Used for context cancellation,
// where waiting on a graceful drain isn't appropriate.
func (s *Session) Close() {
	s.requestShutdown()
	_ = s.conn.Close()
	s.finishOnce()
}

func (s *Session) finishOnce() {
	s.finish.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
	})
}
