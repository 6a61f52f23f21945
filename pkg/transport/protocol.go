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

// Package transport implements the lkboot wire protocol over stream
// connections. Every message starts with a 4 byte header:
//
//	[OPCODE u8][EXTRA u8][LENGTH u16 little-endian]
//
// followed by LENGTH bytes of body. A connection carries a single command:
// the client sends C with a "name:length:argument" body, the server sends G
// when it is ready to take the payload, which then travels in D messages.
// The server answers with D messages holding response bytes, L messages
// with log lines and finally O on success or F with the failure message.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type Opcode byte

const (
	OpCommand Opcode = 'C'
	OpGoAhead Opcode = 'G'
	OpData    Opcode = 'D'
	OpOkay    Opcode = 'O'
	OpFail    Opcode = 'F'
	OpLog     Opcode = 'L'
)

const (
	HeaderSize = 4
	// MaxBody is the largest body a single message carries
	MaxBody = 0xffff
)

var ErrProtocol = errors.New("lkboot protocol error")

func (o Opcode) String() string {
	return string(rune(o))
}

// Header is the fixed prefix of every message
type Header struct {
	Opcode Opcode
	Extra  uint8
	Length uint16
}

// ReadMessage reads a whole message
func ReadMessage(r io.Reader) (Header, []byte, error) {
	var raw [HeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return Header{}, nil, err
	}
	h := Header{
		Opcode: Opcode(raw[0]),
		Extra:  raw[1],
		Length: binary.LittleEndian.Uint16(raw[2:]),
	}
	body := make([]byte, h.Length)
	if _, err := io.ReadFull(r, body); err != nil {
		return h, nil, err
	}
	return h, body, nil
}

// WriteMessage writes a message with the given body
func WriteMessage(w io.Writer, op Opcode, body []byte) error {
	if len(body) > MaxBody {
		return fmt.Errorf("%w: %d bytes body", ErrProtocol, len(body))
	}
	msg := make([]byte, HeaderSize+len(body))
	msg[0] = byte(op)
	binary.LittleEndian.PutUint16(msg[2:], uint16(len(body)))
	copy(msg[HeaderSize:], body)
	_, err := w.Write(msg)
	return err
}

// FormatCommand encodes a command body
func FormatCommand(name string, length uint32, arg string) ([]byte, error) {
	if name == "" || strings.Contains(name, ":") {
		return nil, fmt.Errorf("invalid command name '%s'", name)
	}
	body := fmt.Sprintf("%s:%d:%s", name, length, arg)
	if len(body) > MaxBody {
		return nil, fmt.Errorf("command too long")
	}
	return []byte(body), nil
}

// ParseCommand decodes a command body. The argument may contain colons.
func ParseCommand(body []byte) (name string, length uint32, arg string, err error) {
	parts := strings.SplitN(string(body), ":", 3)
	if len(parts) != 3 || parts[0] == "" {
		return "", 0, "", fmt.Errorf("%w: malformed command '%s'", ErrProtocol, body)
	}
	n, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return "", 0, "", fmt.Errorf("%w: bad length '%s'", ErrProtocol, parts[1])
	}
	return parts[0], uint32(n), parts[2], nil
}
