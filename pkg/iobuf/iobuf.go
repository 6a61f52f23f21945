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

// Package iobuf models the shared I/O buffer of the loader. The buffer is
// split in two distinct regions: the payload region, where command payloads
// land, and the argument region at its tail, where boot arguments for the
// next stage are laid out. A payload never extends into the argument region.
package iobuf

import (
	"fmt"
)

// Buffer is the shared I/O buffer with a known physical address
type Buffer struct {
	mem      []byte
	phys     uint64
	argsSize uint64
}

// New allocates a buffer of the given size whose tail argsSize bytes are
// reserved for the boot arguments
func New(size, phys, argsSize uint64) (*Buffer, error) {
	if argsSize >= size {
		return nil, fmt.Errorf("buffer of %d bytes can't reserve %d bytes for arguments", size, argsSize)
	}
	return &Buffer{mem: make([]byte, size), phys: phys, argsSize: argsSize}, nil
}

// Size is the whole buffer size
func (b *Buffer) Size() uint64 {
	return uint64(len(b.mem))
}

// Phys is the physical address of the start of the buffer
func (b *Buffer) Phys() uint64 {
	return b.phys
}

// PayloadCapacity is the largest payload the buffer accepts
func (b *Buffer) PayloadCapacity() uint64 {
	return b.Size() - b.argsSize
}

// Payload returns the payload region
func (b *Buffer) Payload() []byte {
	return b.mem[:b.PayloadCapacity():b.PayloadCapacity()]
}

// PayloadPhys is the physical address of the payload region
func (b *Buffer) PayloadPhys() uint64 {
	return b.phys
}

// Args returns the argument region
func (b *Buffer) Args() []byte {
	return b.mem[b.PayloadCapacity():]
}

// ArgsPhys is the physical address of the argument region
func (b *Buffer) ArgsPhys() uint64 {
	return b.phys + b.PayloadCapacity()
}

// Fits reports whether a payload of length bytes can be staged
func (b *Buffer) Fits(length uint64) bool {
	return length <= b.PayloadCapacity()
}
