package server

import (
	"net"

	"github.com/dkeye/voicerelay/internal/audio"
	"github.com/dkeye/voicerelay/internal/room"
	"github.com/dkeye/voicerelay/internal/transport/datagram"
	"github.com/dkeye/voicerelay/internal/transport/stream"
)

// datagramClient is the Client adapter for UDP-attached peers: send is a
// fire-and-forget write to the remembered source address.
type datagramClient struct {
	id   room.ClientID
	addr *net.UDPAddr
	ep   *datagram.Endpoint
}

func (c *datagramClient) ID() room.ClientID { return c.id }

func (c *datagramClient) Send(p audio.Packet) { c.ep.SendTo(c.addr, p) }

// streamClient is the Client adapter for framed-stream peers: send enqueues
// a Binary frame on the session's write queue.
type streamClient struct {
	id   room.ClientID
	sess *stream.Session
}

func (c *streamClient) ID() room.ClientID { return c.id }

func (c *streamClient) Send(p audio.Packet) { c.sess.Send(p) }
