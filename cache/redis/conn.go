package redis

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"time"
)

type dialFunc func(context.Context, Options) (net.Conn, error)

func defaultDial(ctx context.Context, opts Options) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: opts.DialTimeout}
	return dialer.DialContext(ctx, "tcp", opts.Addr)
}

// conn pairs the raw connection with its buffered reader so replies can
// be decoded without losing buffered bytes between commands.
type conn struct {
	net.Conn
	reader *bufio.Reader
}

func (s *Store) acquire(ctx context.Context) (*conn, error) {
	select {
	case c := <-s.pool:
		return c, nil
	default:
		return s.connect(ctx)
	}
}

// release returns a healthy connection to the pool. Broken connections
// and pool overflow are closed instead.
func (s *Store) release(c *conn, broken bool) {
	if c == nil {
		return
	}
	if broken {
		_ = c.Close()
		return
	}
	select {
	case s.pool <- c:
	default:
		_ = c.Close()
	}
}

func (s *Store) connect(ctx context.Context) (*conn, error) {
	nc, err := s.dialFn(ctx, s.opts)
	if err != nil {
		return nil, err
	}
	c := &conn{Conn: nc, reader: bufio.NewReader(nc)}
	if err := s.handshake(c); err != nil {
		_ = nc.Close()
		return nil, err
	}
	return c, nil
}

func (s *Store) handshake(c *conn) error {
	if s.opts.Password != "" {
		if _, err := s.roundTrip(c, "AUTH", s.opts.Password); err != nil {
			return err
		}
	}
	if s.opts.DB > 0 {
		if _, err := s.roundTrip(c, "SELECT", strconv.Itoa(s.opts.DB)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) roundTrip(c *conn, parts ...string) (any, error) {
	if err := deadline(c.SetWriteDeadline, s.opts.WriteTimeout); err != nil {
		return nil, err
	}
	if _, err := c.Write(encodeCommand(parts...)); err != nil {
		return nil, err
	}
	if err := deadline(c.SetReadDeadline, s.opts.ReadTimeout); err != nil {
		return nil, err
	}
	return decodeReply(c.reader)
}

func deadline(set func(time.Time) error, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}
	return set(time.Now().Add(timeout))
}
