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

package mocks

import (
	"bytes"
	"errors"
	"io"

	"github.com/rancher/lkboot/pkg/types"
)

// FakeSession is a transport session fed from an in memory payload
type FakeSession struct {
	in        *bytes.Reader
	Out       bytes.Buffer
	BytesRead int
	ErrWrite  error
}

var _ types.Session = (*FakeSession)(nil)

func NewFakeSession(payload []byte) *FakeSession {
	return &FakeSession{in: bytes.NewReader(payload)}
}

func (s *FakeSession) Read(p []byte) (int, error) {
	n, err := s.in.Read(p)
	s.BytesRead += n
	return n, err
}

func (s *FakeSession) Write(p []byte) (int, error) {
	if s.ErrWrite != nil {
		return 0, s.ErrWrite
	}
	return s.Out.Write(p)
}

// FakeSysparams is a SysparamStore backed by a map
type FakeSysparams map[string][]byte

func (f FakeSysparams) Get(name string) ([]byte, error) {
	if v, ok := f[name]; ok {
		return v, nil
	}
	return nil, types.ErrNotFound
}

// FakePlatform records the board actions requested
type FakePlatform struct {
	FPGA        bool
	Reboots     int
	Resets      int
	ProgramPhys uint64
	Bitstream   []byte
	ErrReboot   error
}

var _ types.Platform = (*FakePlatform)(nil)

func (p *FakePlatform) Reboot() error {
	p.Reboots++
	return p.ErrReboot
}

func (p *FakePlatform) FPGASupported() bool {
	return p.FPGA
}

func (p *FakePlatform) ResetFPGA() error {
	if !p.FPGA {
		return errors.New("no fpga")
	}
	p.Resets++
	return nil
}

func (p *FakePlatform) ProgramFPGA(phys uint64, bitstream []byte) error {
	if !p.FPGA {
		return errors.New("no fpga")
	}
	p.ProgramPhys = phys
	p.Bitstream = append([]byte{}, bitstream...)
	return nil
}

// FakeScheduler keeps scheduled actions until RunAll is called
type FakeScheduler struct {
	Names   []string
	actions []func()
}

func (s *FakeScheduler) Schedule(name string, action func()) {
	s.Names = append(s.Names, name)
	s.actions = append(s.actions, action)
}

// RunAll runs and forgets the scheduled actions
func (s *FakeScheduler) RunAll() {
	actions := s.actions
	s.actions = nil
	for _, a := range actions {
		a()
	}
}

// ErrorReader fails after returning its data
type ErrorReader struct {
	Data []byte
	Err  error
}

func (r *ErrorReader) Read(p []byte) (int, error) {
	if len(r.Data) == 0 {
		return 0, r.Err
	}
	n := copy(p, r.Data)
	r.Data = r.Data[n:]
	return n, nil
}

var _ io.Reader = (*ErrorReader)(nil)
