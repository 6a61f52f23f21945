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

// FakeBlockDevice is an in memory BlockDevice used for testing. It records
// erase and write calls and allows injecting short transfers.
type FakeBlockDevice struct {
	DevName     string
	Data        []byte
	Erasable    uint64
	MmapBase    uint64
	ShortErase  bool
	ShortWrite  bool
	ErrMemMap   error
	EraseCalls  [][2]uint64
	WriteCalls  [][2]uint64
	MemMapCalls int
	PutCalls    int
	mapped      bool
}

var _ types.BlockDevice = (*FakeBlockDevice)(nil)

// NewFakeBlockDevice returns an erased device of the given size
func NewFakeBlockDevice(name string, size uint64) *FakeBlockDevice {
	return &FakeBlockDevice{
		DevName:  name,
		Data:     bytes.Repeat([]byte{0xff}, int(size)),
		Erasable: 4096,
		MmapBase: 0xfc000000,
	}
}

func (d *FakeBlockDevice) Name() string {
	return d.DevName
}

func (d *FakeBlockDevice) Size() uint64 {
	return uint64(len(d.Data))
}

func (d *FakeBlockDevice) EraseSize() uint64 {
	return d.Erasable
}

func (d *FakeBlockDevice) Read(p []byte, off uint64) (int, error) {
	if off >= d.Size() {
		return 0, io.EOF
	}
	return copy(p, d.Data[off:]), nil
}

func (d *FakeBlockDevice) Write(p []byte, off uint64) (int, error) {
	d.WriteCalls = append(d.WriteCalls, [2]uint64{off, uint64(len(p))})
	if d.mapped {
		return 0, errors.New("device is memory mapped")
	}
	if off >= d.Size() {
		return 0, nil
	}
	n := copy(d.Data[off:], p)
	if d.ShortWrite && n > 0 {
		n--
	}
	return n, nil
}

func (d *FakeBlockDevice) Erase(off, length uint64) (uint64, error) {
	d.EraseCalls = append(d.EraseCalls, [2]uint64{off, length})
	if d.mapped {
		return 0, errors.New("device is memory mapped")
	}
	var n uint64
	for i := off; i < off+length && i < d.Size(); i++ {
		d.Data[i] = 0xff
		n++
	}
	if d.ShortErase && n > 0 {
		n--
	}
	return n, nil
}

func (d *FakeBlockDevice) MemMap() ([]byte, uint64, error) {
	d.MemMapCalls++
	if d.ErrMemMap != nil {
		return nil, 0, d.ErrMemMap
	}
	d.mapped = true
	return d.Data, d.MmapBase, nil
}

func (d *FakeBlockDevice) PutMemMap() error {
	d.PutCalls++
	d.mapped = false
	return nil
}

// Mapped reports whether the device is in memory mapped mode
func (d *FakeBlockDevice) Mapped() bool {
	return d.mapped
}

// Touched reports whether anything was erased, written or mapped
func (d *FakeBlockDevice) Touched() bool {
	return len(d.EraseCalls) > 0 || len(d.WriteCalls) > 0 || d.MemMapCalls > 0
}

// ClearCalls forgets the recorded calls
func (d *FakeBlockDevice) ClearCalls() {
	d.EraseCalls = nil
	d.WriteCalls = nil
	d.MemMapCalls = 0
	d.PutCalls = 0
}
