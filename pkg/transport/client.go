/*
Copyright © 2022 - 2024 SUSE LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rancher/lkboot/pkg/types"
)

// RemoteError is a failure reported by the server
type RemoteError struct {
	Command string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Client sends commands to an lkboot server
type Client struct {
	addr    string
	logger  types.Logger
	dial    DialFunc
	timeout time.Duration
}

type ClientOptions func(c *Client) error

func WithDialer(dial DialFunc) func(c *Client) error {
	return func(c *Client) error {
		c.dial = dial
		return nil
	}
}

// WithTimeout bounds the whole exchange of a command
func WithTimeout(timeout time.Duration) func(c *Client) error {
	return func(c *Client) error {
		c.timeout = timeout
		return nil
	}
}

func NewClient(addr string, logger types.Logger, opts ...ClientOptions) (*Client, error) {
	d := &net.Dialer{}
	c := &Client{addr: addr, logger: logger, dial: d.DialContext}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Command runs a command on the server, streaming length bytes of payload
// if the server asks for them. It returns the response bytes, and a
// *RemoteError if the server reported a failure.
func (c *Client) Command(ctx context.Context, name, arg string, payload io.Reader, length uint32) ([]byte, error) {
	body, err := FormatCommand(name, length, arg)
	if err != nil {
		return nil, err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	conn, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err = WriteMessage(conn, OpCommand, body); err != nil {
		return nil, err
	}

	var response []byte
	for {
		h, msg, err := ReadMessage(conn)
		if err != nil {
			if ctx.Err() != nil {
				return response, ctx.Err()
			}
			return response, err
		}
		switch h.Opcode {
		case OpGoAhead:
			if err = c.send(conn, payload, length); err != nil {
				return response, err
			}
		case OpData:
			response = append(response, msg...)
		case OpLog:
			c.logger.Infof("%s: %s", c.addr, msg)
		case OpOkay:
			return response, nil
		case OpFail:
			return response, &RemoteError{Command: name, Message: string(msg)}
		default:
			return response, fmt.Errorf("%w: unexpected message '%s'", ErrProtocol, h.Opcode)
		}
	}
}

func (c *Client) send(conn net.Conn, payload io.Reader, length uint32) error {
	if payload == nil {
		return fmt.Errorf("server asked for %d bytes of payload but none given", length)
	}
	chunk := make([]byte, MaxBody)
	for remaining := length; remaining > 0; {
		n := uint32(len(chunk))
		if remaining < n {
			n = remaining
		}
		if _, err := io.ReadFull(payload, chunk[:n]); err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}
		if err := WriteMessage(conn, OpData, chunk[:n]); err != nil {
			return err
		}
		remaining -= n
	}
	c.logger.Debugf("sent %d bytes of payload", length)
	return nil
}
