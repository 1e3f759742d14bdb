package osc

import (
	"context"
	"io"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Server represents an OSC server. The server listens on Addr for incoming
// OSC packets and bundles and dispatches them to Dispatcher.
type Server struct {
	// Addr is the address to listen on, e.g. "127.0.0.1:8765".
	Addr string

	// Network is "udp" (the default) or "tcp".
	Network string

	// Framing is the stream framing for TCP. FramingNone selects FramingOSC10.
	// It is ignored for UDP.
	Framing Framing

	// Dispatcher receives every decoded packet. Packets are dropped when
	// it is nil.
	Dispatcher *Dispatcher

	// ReadTimeout bounds each read. For TCP it is an idle timeout after
	// which the connection is closed.
	ReadTimeout time.Duration

	// MaxDepth bounds bundle nesting. Zero means DefaultMaxDepth.
	MaxDepth int

	// MaxFrameSize bounds TCP frames. Zero means DefaultMaxFrameSize.
	MaxFrameSize int

	// DelayBundles postpones the dispatch of a bundle until its time tag.
	DelayBundles bool

	// Logger receives server events. Nil discards them.
	Logger SLogger

	// wg tracks in-flight handlers and connections.
	wg sync.WaitGroup
}

// replyFunc sends a reply message back to the sender of a packet.
type replyFunc func(msg *Message) error

var bufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, MaxPacketSize)
		return &b
	},
}

// ListenAndServe opens Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	switch s.network() {
	case "udp", "udp4", "udp6":
		c, err := lc.ListenPacket(ctx, s.network(), s.Addr)
		if err != nil {
			return err
		}
		defer c.Close()
		return s.Serve(ctx, c)

	case "tcp", "tcp4", "tcp6":
		ln, err := lc.Listen(ctx, s.network(), s.Addr)
		if err != nil {
			return err
		}
		defer ln.Close()
		return s.ServeListener(ctx, ln)

	default:
		return errors.Errorf("unsupported network %q", s.Network)
	}
}

// Serve retrieves incoming OSC packets from the given connection and
// dispatches retrieved OSC packets until ctx is cancelled. Malformed
// datagrams are logged and dropped. Any other read error is returned.
func (s *Server) Serve(ctx context.Context, c net.PacketConn) error {
	log := s.logger()
	log.Info("osc: serving", "network", "udp", "addr", c.LocalAddr())

	stop := context.AfterFunc(ctx, func() {
		// unblock ReadFrom
		c.SetReadDeadline(time.Now())
	})
	defer stop()
	defer s.wg.Wait()

	var tempDelay time.Duration
	for ctx.Err() == nil {
		packet, addr, err := s.readFromConnection(c)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("osc: stopped", "network", "udp", "addr", c.LocalAddr())
				return nil
			}
			var perr *PacketError
			if errors.As(err, &perr) {
				log.Warn("osc: dropping packet", "remote", addr, "err", perr.Err)
				continue
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if isTemporary(err) {
				tempDelay = backoff(tempDelay)
				log.Warn("osc: read failed, retrying", "err", err, "delay", tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0

		log.Debug("osc: packet received", "remote", addr)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(ctx, packet, addr, func(msg *Message) error {
				data, err := msg.MarshalBinary()
				if err != nil {
					return err
				}
				_, err = c.WriteTo(data, addr)
				return err
			})
		}()
	}
	log.Info("osc: stopped", "network", "udp", "addr", c.LocalAddr())
	return nil
}

// ServeListener accepts TCP connections and serves each one in its own
// goroutine until ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	log := s.logger()
	log.Info("osc: serving", "network", "tcp", "addr", ln.Addr(), "framing", s.framing())

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer s.wg.Wait()

	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				log.Info("osc: stopped", "network", "tcp", "addr", ln.Addr())
				return nil
			}
			if isTemporary(err) {
				tempDelay = backoff(tempDelay)
				log.Warn("osc: accept failed, retrying", "err", err, "delay", tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(ctx, conn)
		}()
	}
}

// ServeConn reads framed packets from conn until the peer closes it, ctx
// is cancelled or the framing breaks. Packets on one connection are
// dispatched in order. conn is closed on return.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) error {
	id := uuid.NewString()
	log := s.logger()
	remote := conn.RemoteAddr()
	log.Info("osc: connection accepted", "conn", id, "remote", remote)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	var wmu sync.Mutex
	framing := s.framing()
	reply := func(msg *Message) error {
		data, err := msg.MarshalBinary()
		if err != nil {
			return err
		}
		if data, err = Frame(framing, data); err != nil {
			return err
		}
		wmu.Lock()
		defer wmu.Unlock()
		_, err = conn.Write(data)
		return err
	}

	fr := NewFrameReader(conn, framing)
	fr.SetMaxFrameSize(s.MaxFrameSize)
	decoder := Decoder{MaxDepth: s.MaxDepth}
	for {
		if s.ReadTimeout != 0 {
			if err := conn.SetReadDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
				return err
			}
		}

		frame, err := fr.ReadFrame()
		switch {
		case err == nil:
		case err == io.EOF:
			log.Info("osc: connection closed", "conn", id, "remote", remote)
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			log.Warn("osc: dropping connection", "conn", id, "remote", remote, "err", err)
			return err
		}

		packet, err := decoder.Decode(frame)
		if err != nil {
			log.Warn("osc: dropping packet", "conn", id, "remote", remote, "err", err)
			continue
		}
		log.Debug("osc: packet received", "conn", id, "remote", remote)
		s.serve(ctx, packet, remote, reply)
	}
}

// ReceivePacket listens for incoming OSC packets and returns the packet if
// one is received. A datagram that fails to decode yields a *PacketError.
func (s *Server) ReceivePacket(c net.PacketConn) (Packet, net.Addr, error) {
	return s.readFromConnection(c)
}

// readFromConnection retrieves OSC packets.
func (s *Server) readFromConnection(c net.PacketConn) (Packet, net.Addr, error) {
	if s.ReadTimeout != 0 {
		if err := c.SetReadDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
			return nil, nil, err
		}
	}

	b := bufPool.Get().(*[]byte)
	defer bufPool.Put(b)

	n, a, err := c.ReadFrom(*b)
	if err != nil {
		return nil, a, err
	}

	// Decoded packets do not reference the buffer
	p, err := Decoder{MaxDepth: s.MaxDepth}.Decode((*b)[:n])
	if err != nil {
		return nil, a, &PacketError{Addr: a, Err: err}
	}
	return p, a, nil
}

// serve dispatches one packet and sends the replies. Bundles are delayed
// until their time tag when DelayBundles is set.
func (s *Server) serve(ctx context.Context, p Packet, a net.Addr, reply replyFunc) {
	if b, ok := p.(*Bundle); ok && s.DelayBundles {
		if d := b.Timetag.ExpiresIn(); d > 0 {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				t := time.NewTimer(d)
				defer t.Stop()
				select {
				case <-t.C:
					s.dispatch(p, a, reply)
				case <-ctx.Done():
				}
			}()
			return
		}
	}
	s.dispatch(p, a, reply)
}

func (s *Server) dispatch(p Packet, a net.Addr, reply replyFunc) {
	log := s.logger()
	defer func() {
		if err := recover(); err != nil {
			buf := make([]byte, 4096)
			buf = buf[:runtime.Stack(buf, false)]
			log.Warn("osc: panic in handler", "remote", a, "panic", err, "stack", string(buf))
		}
	}()

	if s.Dispatcher == nil {
		log.Debug("osc: no dispatcher, packet ignored", "remote", a)
		return
	}
	replies, err := s.Dispatcher.Dispatch(p)
	if err != nil {
		log.Warn("osc: dispatch failed", "remote", a, "err", err)
	}
	for _, msg := range replies {
		if err := reply(msg); err != nil {
			log.Warn("osc: reply failed", "remote", a, "address", msg.Address, "err", err)
		}
	}
}

func isTemporary(err error) bool {
	ne, ok := err.(interface{ Temporary() bool })
	return ok && ne.Temporary()
}

// backoff doubles the retry delay after a temporary error, from 5ms up to 1s.
func backoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if max := 1 * time.Second; d > max {
		d = max
	}
	return d
}

func (s *Server) network() string {
	if s.Network == "" {
		return "udp"
	}
	return s.Network
}

func (s *Server) framing() Framing {
	if s.Framing == FramingNone {
		return FramingOSC10
	}
	return s.Framing
}

func (s *Server) logger() SLogger {
	if s.Logger == nil {
		return DefaultSLogger()
	}
	return s.Logger
}
