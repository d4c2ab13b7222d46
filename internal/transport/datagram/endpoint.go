// Package datagram implements the UDP audio transport: bind one port, read
// datagrams, and fire-and-forget send to remembered peer addresses.
package datagram

import (
	"context"
	"net"

	"github.com/rs/zerolog"
)

// Endpoint binds one UDP socket for both inbound reads and outbound sends.
type Endpoint struct {
	conn *net.UDPConn
	log  zerolog.Logger
}

// NewEndpoint binds addr (e.g. ":12345") immediately.
func NewEndpoint(addr string, log zerolog.Logger) (*Endpoint, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	return &Endpoint{conn: conn, log: log.With().Str("module", "datagram").Logger()}, nil
}

// LocalAddr reports the bound local address, useful when addr was ":0" in tests.
func (e *Endpoint) LocalAddr() net.Addr { return e.conn.LocalAddr() }

// Run reads datagrams up to maxDatagram bytes until ctx is canceled. Each
// datagram's source address becomes the reported ClientId (address:port);
// onPacket also receives the resolved *net.UDPAddr so the caller can send
// replies without re-resolving the string.
func (e *Endpoint) Run(ctx context.Context, maxDatagram int, onPacket func(clientID string, addr *net.UDPAddr, payload []byte)) {
	go func() {
		<-ctx.Done()
		_ = e.conn.Close()
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			e.log.Error().Err(err).Msg("read error")
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		onPacket(addr.String(), addr, payload)
	}
}

// SendTo fire-and-forget sends payload to addr. Errors are logged; the
// caller keeps the client registered regardless.
func (e *Endpoint) SendTo(addr *net.UDPAddr, payload []byte) {
	if _, err := e.conn.WriteToUDP(payload, addr); err != nil {
		e.log.Error().Err(err).Str("addr", addr.String()).Msg("send error")
	}
}
