package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/CefBoud/kafkanet/protocol"
	"github.com/CefBoud/kafkanet/types"
)

// ErrClientClosed is returned by requests issued after Close
var ErrClientClosed = errors.New("client connection is closed")

// conn is a single broker connection. Requests are half-duplex with no correlation
// id, so round trips are serialised by mu. A transport error drops the connection
// and the next request dials a new one.
type conn struct {
	mu      sync.Mutex
	netConn net.Conn
	addr    string
	closed  bool
}

func dial(ctx context.Context, addr string) (*conn, error) {
	netConn, err := dialBroker(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &conn{netConn: netConn, addr: addr}, nil
}

func dialBroker(ctx context.Context, addr string) (net.Conn, error) {
	var dialer net.Dialer
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not connect to broker %v: %w", addr, err)
	}
	return netConn, nil
}

// roundTrip sends one request and waits for its response. A failed response is
// returned together with its error.
func (c *conn) roundTrip(ctx context.Context, requestType types.RequestType, payload any) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return protocol.Response{}, ErrClientClosed
	}
	if c.netConn == nil {
		netConn, err := dialBroker(ctx, c.addr)
		if err != nil {
			return protocol.Response{}, err
		}
		c.netConn = netConn
	}

	deadline, _ := ctx.Deadline()
	if err := c.netConn.SetDeadline(deadline); err != nil {
		return protocol.Response{}, err
	}
	netConn := c.netConn
	stop := context.AfterFunc(ctx, func() {
		netConn.SetDeadline(time.Now())
	})
	defer stop()

	err := protocol.WriteRequest(c.netConn, requestType, payload)
	var resp protocol.Response
	if err == nil {
		resp, err = protocol.ReadResponse(c.netConn, 0)
	}
	if err != nil {
		// a partial frame may be in flight, the stream can't be reused
		c.netConn.Close()
		c.netConn = nil
		if ctx.Err() != nil {
			return protocol.Response{}, ctx.Err()
		}
		return protocol.Response{}, fmt.Errorf("request to %v failed: %w", c.addr, err)
	}
	return resp, resp.Err()
}

func (c *conn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.netConn == nil {
		return nil
	}
	err := c.netConn.Close()
	c.netConn = nil
	return err
}
