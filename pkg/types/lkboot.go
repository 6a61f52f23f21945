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

package types

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by collaborators when the requested item does not exist
var ErrNotFound = errors.New("not found")

// Session is the transport connection a command is being served on.
// Read returns the payload bytes following the command, Write sends
// response bytes back before the final result.
type Session interface {
	io.Reader
	io.Writer
}

// BlockDevice is the storage abstraction the partition table lives on
type BlockDevice interface {
	Name() string
	Size() uint64
	EraseSize() uint64
	// Read and Write return the number of bytes transferred
	Read(p []byte, off uint64) (int, error)
	Write(p []byte, off uint64) (int, error)
	// Erase returns the number of bytes erased
	Erase(off, length uint64) (uint64, error)
	// MemMap switches the device into memory mapped mode and returns a
	// view of the whole device and the address the view is mapped at
	MemMap() ([]byte, uint64, error)
	// PutMemMap puts the device back into block mode
	PutMemMap() error
}

// PartitionEntry is a named region of a BlockDevice
type PartitionEntry struct {
	Name   string `yaml:"name"`
	Offset uint64 `yaml:"offset"`
	Length uint64 `yaml:"length"`
	Flags  uint32 `yaml:"flags,omitempty"`
}

// PartitionTable is the persistent directory of partitions of a device
type PartitionTable interface {
	FoundValid() bool
	Find(name string) (PartitionEntry, error)
	Allocate(size uint64, flags uint32) (uint64, error)
	Add(name string, offset, length uint64, flags uint32) error
	Remove(name string) error
	List() []PartitionEntry
	// Device returns nil if the table is not backed by any device
	Device() BlockDevice
}

// SysparamStore gives access to the system parameters of the board
type SysparamStore interface {
	Get(name string) ([]byte, error)
}

// Platform provides the board level actions the loader can trigger
type Platform interface {
	// Reboot performs a software reset, it does not return on success
	Reboot() error
	FPGASupported() bool
	ResetFPGA() error
	ProgramFPGA(phys uint64, bitstream []byte) error
}

// HTTPClient downloads remote payloads
type HTTPClient interface {
	GetURL(ctx context.Context, log Logger, url string, destination string) (string, error)
}
