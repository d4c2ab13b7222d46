package stream

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/rs/zerolog"
)

// Acceptor binds a TCP listening socket and constructs a Session for each
// accepted connection, optionally wrapping the byte stream in TLS first.
type Acceptor struct {
	ln         net.Listener
	tlsConfig  *tls.Config
	maxPayload int64
	log        zerolog.Logger
}

// NewAcceptor binds addr immediately so startup failures surface before Run.
func NewAcceptor(addr string, tlsConfig *tls.Config, maxPayload int64, log zerolog.Logger) (*Acceptor, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Acceptor{
		ln:         ln,
		tlsConfig:  tlsConfig,
		maxPayload: maxPayload,
		log:        log.With().Str("module", "acceptor").Logger(),
	}, nil
}

// Addr reports the bound local address, useful when addr was ":0" in tests.
func (a *Acceptor) Addr() net.Addr { return a.ln.Addr() }

// Run accepts connections until ctx is canceled, calling onNewSession for
// each one before spawning its Start loop. onNewSession must register
// OnBinary/OnClose hooks synchronously, before returning.
func (a *Acceptor) Run(ctx context.Context, onNewSession func(*Session)) {
	go func() {
		<-ctx.Done()
		_ = a.ln.Close()
	}()

	for {
		conn, err := a.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			a.log.Error().Err(err).Msg("accept error")
			return
		}

		if a.tlsConfig != nil {
			tlsConn := tls.Server(conn, a.tlsConfig)
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				a.log.Error().Err(err).Msg("tls handshake failed")
				_ = tlsConn.Close()
				continue
			}
			conn = tlsConn
		}

		sess := NewSession(conn, a.maxPayload, a.log)
		onNewSession(sess)
		go sess.Start(ctx)
	}
}
