package osc

import (
	"context"
	"net"
	"sync"
)

// Client enables you to send OSC Packets to a specified server and read
// its replies.
type Client struct {
	conn    net.Conn
	framing Framing
	reader  *FrameReader

	mu sync.Mutex // serializes writes
}

// Dial creates a new OSC Client with a UDP connection to the specified server.
func Dial(addr string) (*Client, error) {
	return DialContext(context.Background(), "udp", addr, FramingNone)
}

// DialTCP creates a new OSC Client with a TCP connection to the specified
// server. FramingNone selects FramingOSC10.
func DialTCP(addr string, framing Framing) (*Client, error) {
	return DialContext(context.Background(), "tcp", addr, framing)
}

// DialContext connects to addr on the named network. Stream networks
// substitute FramingOSC10 for FramingNone, datagram networks ignore framing.
func DialContext(ctx context.Context, network, addr string, framing Framing) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return NewClient(conn, framing), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, framing Framing) *Client {
	if _, ok := conn.(net.PacketConn); ok {
		framing = FramingNone
	} else if framing == FramingNone {
		framing = FramingOSC10
	}
	return &Client{
		conn:    conn,
		framing: framing,
		reader:  NewFrameReader(conn, framing),
	}
}

// Send sends an OSC Packet to the server.
func (c *Client) Send(packet Packet) error {
	data, err := packet.MarshalBinary()
	if err != nil {
		return err
	}
	if c.framing != FramingNone {
		if data, err = Frame(c.framing, data); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.conn.Write(data)
	return err
}

// Receive blocks until the next packet from the server arrives. It must not
// be called concurrently.
func (c *Client) Receive() (Packet, error) {
	frame, err := c.reader.ReadFrame()
	if err != nil {
		return nil, err
	}
	return ParsePacket(frame)
}

// Conn returns the underlying connection, e.g. to set deadlines.
func (c *Client) Conn() net.Conn {
	return c.conn
}

// Close closes the connection to the server.
func (c *Client) Close() error {
	return c.conn.Close()
}
