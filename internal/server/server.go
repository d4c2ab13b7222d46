// Package server wires the datagram endpoint and the framed-stream
// acceptor into the Room under a stable client identity, plus a small
// read-only admin HTTP surface.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/dkeye/voicerelay/internal/audio"
	"github.com/dkeye/voicerelay/internal/config"
	"github.com/dkeye/voicerelay/internal/room"
	"github.com/dkeye/voicerelay/internal/transport/datagram"
	"github.com/dkeye/voicerelay/internal/transport/stream"
)

// Server owns the Room and both transports for the lifetime of one process.
type Server struct {
	cfg *config.Config
	log zerolog.Logger

	room     *room.Room
	datagram *datagram.Endpoint
	stream   *stream.Acceptor
}

// New constructs a Server. It does not bind any sockets; call Run for that.
func New(cfg *config.Config, log zerolog.Logger) *Server {
	roomCfg := room.Config{
		MaxHistory:      cfg.MaxHistory,
		ActivityTimeout: cfg.ActivityTimeout,
		MixInterval:     cfg.MixInterval,
	}
	return &Server{
		cfg:  cfg,
		log:  log.With().Str("module", "server").Logger(),
		room: room.New(roomCfg, log),
	}
}

// Bind opens the UDP and TCP sockets (and loads the TLS keypair, if
// configured) without starting any loops. Split out from Run so tests can
// discover the bound ephemeral addresses before traffic flows.
func (s *Server) Bind() error {
	ep, err := datagram.NewEndpoint(fmt.Sprintf(":%d", s.cfg.UDPPort), s.log)
	if err != nil {
		return fmt.Errorf("bind udp port %d: %w", s.cfg.UDPPort, err)
	}
	s.datagram = ep

	var tlsConfig *tls.Config
	if s.cfg.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		if err != nil {
			return fmt.Errorf("load tls keypair: %w", err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	acc, err := stream.NewAcceptor(fmt.Sprintf(":%d", s.cfg.StreamPort), tlsConfig, s.cfg.MaxFramePayload, s.log)
	if err != nil {
		return fmt.Errorf("bind stream port %d: %w", s.cfg.StreamPort, err)
	}
	s.stream = acc
	return nil
}

// DatagramAddr reports the bound UDP address. Valid only after Bind.
func (s *Server) DatagramAddr() net.Addr { return s.datagram.LocalAddr() }

// StreamAddr reports the bound TCP address. Valid only after Bind.
func (s *Server) StreamAddr() net.Addr { return s.stream.Addr() }

// Serve starts the Room's tick loop, both transports' accept/read loops,
// and the optional admin HTTP server, then blocks until ctx is canceled.
// Bind must be called first.
func (s *Server) Serve(ctx context.Context) {
	go s.room.Run(ctx)
	go s.datagram.Run(ctx, s.cfg.MaxDatagramSize, s.handleDatagram)
	go s.stream.Run(ctx, s.handleNewSession)

	if s.cfg.AdminAddr != "" {
		go s.runAdminServer(ctx)
	}

	<-ctx.Done()
}

// Run binds and serves in one call; the shape cmd/server/main.go drives.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Bind(); err != nil {
		return err
	}
	s.Serve(ctx)
	return nil
}

func (s *Server) handleDatagram(clientID string, addr *net.UDPAddr, payload []byte) {
	pkt, err := audio.NewPacket(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("client", clientID).Msg("dropping malformed datagram")
		return
	}

	id := room.ClientID(clientID)
	if _, ok := s.room.GetClient(id); !ok {
		s.room.AddClient(&datagramClient{id: id, addr: addr, ep: s.datagram})
	}
	s.room.Ingest(id, pkt)
}

func (s *Server) handleNewSession(sess *stream.Session) {
	id := room.ClientID(sess.ID())
	s.room.AddClient(&streamClient{id: id, sess: sess})

	sess.OnBinary(func(payload []byte) {
		pkt, err := audio.NewPacket(payload)
		if err != nil {
			s.log.Warn().Err(err).Str("client", sess.ID()).Msg("dropping malformed frame")
			return
		}
		s.room.Ingest(id, pkt)
	})
	sess.OnClose(func() {
		s.room.RemoveClient(id)
	})
}

func (s *Server) runAdminServer(ctx context.Context) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/api/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"members": s.room.MemberCount()})
	})

	srv := &http.Server{Addr: s.cfg.AdminAddr, Handler: r}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Error().Err(err).Msg("admin server error")
	}
}
