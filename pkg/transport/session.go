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
	"fmt"
	"io"
)

// session is the server side of a command: payload reads pull D messages
// from the client, writes push D messages back.
type session struct {
	conn      io.ReadWriter
	remaining uint32
	pending   []byte
	goAhead   bool
}

func newSession(conn io.ReadWriter, length uint32) *session {
	return &session{conn: conn, remaining: length}
}

// Read returns payload bytes, io.EOF once the declared payload length was
// consumed. The client is told to start sending on the first read.
func (s *session) Read(p []byte) (int, error) {
	if s.remaining == 0 {
		return 0, io.EOF
	}
	if !s.goAhead {
		if err := WriteMessage(s.conn, OpGoAhead, nil); err != nil {
			return 0, err
		}
		s.goAhead = true
	}
	if len(s.pending) == 0 {
		h, body, err := ReadMessage(s.conn)
		if err != nil {
			return 0, err
		}
		if h.Opcode != OpData {
			return 0, fmt.Errorf("%w: expected data, got '%s'", ErrProtocol, h.Opcode)
		}
		if uint64(len(body)) > uint64(s.remaining) {
			return 0, fmt.Errorf("%w: %d bytes more than declared", ErrProtocol, uint64(len(body))-uint64(s.remaining))
		}
		s.pending = body
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	s.remaining -= uint32(n)
	return n, nil
}

// Write sends response bytes
func (s *session) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > MaxBody {
			chunk = chunk[:MaxBody]
		}
		if err := WriteMessage(s.conn, OpData, chunk); err != nil {
			return written, err
		}
		written += len(chunk)
		p = p[len(chunk):]
	}
	return written, nil
}

// Logf sends a log line to the client
func (s *session) Logf(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if len(msg) > MaxBody {
		msg = msg[:MaxBody]
	}
	return WriteMessage(s.conn, OpLog, []byte(msg))
}

// drain discards the payload the handler did not consume, the client sends
// it all once told to go ahead
func (s *session) drain() error {
	if !s.goAhead {
		return nil
	}
	_, err := io.Copy(io.Discard, s)
	return err
}
