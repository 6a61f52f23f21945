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
	"errors"
	"net"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/rancher/lkboot/pkg/types"
)

// Dispatcher runs a received command
type Dispatcher interface {
	Dispatch(ctx context.Context, s types.Session, name, arg string, length uint32) error
}

// DispatcherFunc adapts a function to a Dispatcher
type DispatcherFunc func(ctx context.Context, s types.Session, name, arg string, length uint32) error

func (f DispatcherFunc) Dispatch(ctx context.Context, s types.Session, name, arg string, length uint32) error {
	return f(ctx, s, name, arg, length)
}

// RemoteLogger is implemented by sessions able to send log lines to the client
type RemoteLogger interface {
	Logf(format string, args ...interface{}) error
}

// Server accepts connections and serves them one after the other, a
// command always runs to completion before the next one is accepted.
type Server struct {
	dispatcher Dispatcher
	logger     types.Logger
}

func NewServer(d Dispatcher, logger types.Logger) *Server {
	return &Server{dispatcher: d, logger: logger}
}

// Serve accepts connections on l until ctx is cancelled
func (srv *Server) Serve(ctx context.Context, l net.Listener) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gCtx.Done()
		return l.Close()
	})
	g.Go(func() error {
		srv.logger.Infof("lkboot listening on %s", l.Addr())
		for {
			conn, err := l.Accept()
			if err != nil {
				if gCtx.Err() != nil {
					return nil
				}
				return err
			}
			if err = srv.HandleConn(gCtx, conn); err != nil {
				srv.logger.Warnf("connection from %s: %s", conn.RemoteAddr(), err)
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// HandleConn serves the single command carried by conn and closes it
func (srv *Server) HandleConn(ctx context.Context, conn net.Conn) (err error) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		if cErr := conn.Close(); cErr != nil && !errors.Is(cErr, net.ErrClosed) {
			err = multierror.Append(err, cErr).ErrorOrNil()
		}
	}()

	h, body, err := ReadMessage(conn)
	if err != nil {
		return err
	}
	if h.Opcode != OpCommand {
		return multierror.Append(ErrProtocol, WriteMessage(conn, OpFail, []byte("expected command"))).ErrorOrNil()
	}
	name, length, arg, err := ParseCommand(body)
	if err != nil {
		return multierror.Append(err, WriteMessage(conn, OpFail, []byte("malformed command"))).ErrorOrNil()
	}

	srv.logger.Debugf("received command '%s' arg '%s' len %d from %s", name, arg, length, conn.RemoteAddr())
	s := newSession(conn, length)
	dErr := srv.dispatcher.Dispatch(ctx, s, name, arg, length)
	if err = s.drain(); err != nil {
		return err
	}
	if dErr != nil {
		msg := dErr.Error()
		if msg == "" {
			msg = "unknown error"
		}
		srv.logger.Debugf("command '%s' failed: %s", name, msg)
		if len(msg) > MaxBody {
			msg = msg[:MaxBody]
		}
		return WriteMessage(conn, OpFail, []byte(msg))
	}
	return WriteMessage(conn, OpOkay, nil)
}
