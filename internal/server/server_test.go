package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/voicerelay/internal/config"
)

func testServerConfig() *config.Config {
	return &config.Config{
		UDPPort:         0,
		StreamPort:      0,
		MixInterval:     10 * time.Millisecond,
		ActivityTimeout: 5 * time.Second,
		MaxHistory:      50,
		MaxFramePayload: 1024 * 1024,
		MaxDatagramSize: 32 * 1024,
		AdminAddr:       "", // disabled: tests don't need it and avoid a second ephemeral bind
	}
}

func packetOf(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		b[i*2] = byte(uint16(s))
		b[i*2+1] = byte(uint16(s) >> 8)
	}
	return b
}

// Driven end-to-end over real UDP sockets: two datagram clients join by
// sending, and each receives only the other's audio, scaled by headroom.
func TestServerDatagramCrossMix(t *testing.T) {
	srv := New(testServerConfig(), zerolog.Nop())
	require.NoError(t, srv.Bind())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	serverAddr := srv.DatagramAddr().(*net.UDPAddr)

	a, err := net.DialUDP("udp", nil, serverAddr)
	require.NoError(t, err)
	defer a.Close()
	b, err := net.DialUDP("udp", nil, serverAddr)
	require.NoError(t, err)
	defer b.Close()

	aPkt := packetOf(10000, 10000, 10000, 10000, 10000, 10000, 10000, 10000)
	bPkt := packetOf(6000, 6000, 6000, 6000, 6000, 6000, 6000, 6000)

	_, err = a.Write(aPkt)
	require.NoError(t, err)
	_, err = b.Write(bPkt)
	require.NoError(t, err)

	require.NoError(t, a.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, b.SetReadDeadline(time.Now().Add(2*time.Second)))

	bufA := make([]byte, 64)
	n, err := a.Read(bufA)
	require.NoError(t, err)
	require.Equal(t, packetOf(3000, 3000, 3000, 3000, 3000, 3000, 3000, 3000), bufA[:n])

	bufB := make([]byte, 64)
	n, err = b.Read(bufB)
	require.NoError(t, err)
	require.Equal(t, packetOf(5000, 5000, 5000, 5000, 5000, 5000, 5000, 5000), bufB[:n])
}

// A UDP source's ClientId is stable across repeated sends from the same
// address:port, and distinct source ports are distinct ClientIds.
func TestServerDatagramClientIdentityStability(t *testing.T) {
	srv := New(testServerConfig(), zerolog.Nop())
	require.NoError(t, srv.Bind())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	serverAddr := srv.DatagramAddr().(*net.UDPAddr)

	a, err := net.DialUDP("udp", nil, serverAddr)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Write(packetOf(1, 2, 3, 4))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.room.MemberCount() == 1 }, time.Second, time.Millisecond)

	// A second datagram from the same source:port must not register a
	// second member.
	_, err = a.Write(packetOf(5, 6, 7, 8))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, srv.room.MemberCount())

	b, err := net.DialUDP("udp", nil, serverAddr)
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Write(packetOf(9, 10))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.room.MemberCount() == 2 }, time.Second, time.Millisecond)
}
