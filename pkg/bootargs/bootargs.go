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

// Package bootargs lays out the boot argument record handed to the next
// stage program.
//
// Record layout, all fields little-endian:
//
//	[MAGIC u32][VERSION u32][USED u32][RESERVED u32]
//	{[TAG u32][LEN u32][DATA LEN bytes, padded to 4]}...
//	[TAG_END u32][0 u32]
package bootargs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rancher/lkboot/pkg/constants"
)

const (
	headerSize = 16
	tagHdrSize = 8

	TagEnd       = uint32(0)
	TagCmdLine   = uint32(1)
	TagBootImage = uint32(2)

	bootImageTagSize = 8 + 8 + constants.BootDeviceNameLen
)

var (
	ErrNoSpace    = errors.New("boot arguments region is full")
	ErrNotStarted = errors.New("boot arguments region not initialized")
	ErrBadRecord  = errors.New("invalid boot arguments record")
)

// BootImagePointer tells the next stage where the full boot image lives
type BootImagePointer struct {
	Device string
	Offset uint64
	Length uint64
}

// Record is the decoded content of a boot arguments region
type Record struct {
	CmdLine   string
	BootImage *BootImagePointer
}

// Builder serializes a Record into a memory region
type Builder struct {
	region []byte
	used   int
}

// Start initializes an empty record at the beginning of region
func Start(region []byte) (*Builder, error) {
	if len(region) < headerSize+tagHdrSize {
		return nil, ErrNoSpace
	}
	b := &Builder{region: region, used: headerSize}
	binary.LittleEndian.PutUint32(region[0:], constants.BootArgsMagic)
	binary.LittleEndian.PutUint32(region[4:], constants.BootArgsVersion)
	binary.LittleEndian.PutUint32(region[12:], 0)
	b.terminate()
	return b, nil
}

func (b *Builder) terminate() {
	binary.LittleEndian.PutUint32(b.region[b.used:], TagEnd)
	binary.LittleEndian.PutUint32(b.region[b.used+4:], 0)
	binary.LittleEndian.PutUint32(b.region[8:], uint32(b.used+tagHdrSize))
}

func (b *Builder) addTag(tag uint32, data []byte) error {
	if b == nil || b.region == nil {
		return ErrNotStarted
	}
	padded := (len(data) + 3) &^ 3
	// room for this tag plus the end tag
	if b.used+tagHdrSize+padded+tagHdrSize > len(b.region) {
		return ErrNoSpace
	}
	binary.LittleEndian.PutUint32(b.region[b.used:], tag)
	binary.LittleEndian.PutUint32(b.region[b.used+4:], uint32(len(data)))
	n := copy(b.region[b.used+tagHdrSize:], data)
	for i := b.used + tagHdrSize + n; i < b.used+tagHdrSize+padded; i++ {
		b.region[i] = 0
	}
	b.used += tagHdrSize + padded
	b.terminate()
	return nil
}

// AddCommandLine appends a NUL terminated command line
func (b *Builder) AddCommandLine(cmdline string) error {
	return b.addTag(TagCmdLine, append([]byte(cmdline), 0))
}

// AddBootImagePointer appends a record telling where the boot image can be found
func (b *Builder) AddBootImagePointer(device string, offset, length uint64) error {
	if len(device) >= constants.BootDeviceNameLen {
		return fmt.Errorf("device name '%s' too long", device)
	}
	data := make([]byte, bootImageTagSize)
	binary.LittleEndian.PutUint64(data[0:], offset)
	binary.LittleEndian.PutUint64(data[8:], length)
	copy(data[16:], device)
	return b.addTag(TagBootImage, data)
}

// HandoffValues returns the machine words passed to the next stage for a
// record placed at physical address phys
func HandoffValues(phys uint64) [4]uint64 {
	return [4]uint64{uint64(constants.BootArgsMagic), phys, 0, 0}
}

// Parse decodes the record found at the beginning of region
func Parse(region []byte) (*Record, error) {
	if len(region) < headerSize+tagHdrSize {
		return nil, ErrBadRecord
	}
	if binary.LittleEndian.Uint32(region[0:]) != constants.BootArgsMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrBadRecord)
	}
	used := int(binary.LittleEndian.Uint32(region[8:]))
	if used > len(region) || used < headerSize+tagHdrSize {
		return nil, fmt.Errorf("%w: bad length %d", ErrBadRecord, used)
	}

	rec := &Record{}
	off := headerSize
	for off+tagHdrSize <= used {
		tag := binary.LittleEndian.Uint32(region[off:])
		length := int(binary.LittleEndian.Uint32(region[off+4:]))
		if tag == TagEnd {
			return rec, nil
		}
		data := region[off+tagHdrSize:]
		if length > len(data) {
			return nil, fmt.Errorf("%w: tag %d overflows the record", ErrBadRecord, tag)
		}
		data = data[:length]
		switch tag {
		case TagCmdLine:
			rec.CmdLine = string(bytes.TrimRight(data, "\x00"))
		case TagBootImage:
			if length != bootImageTagSize {
				return nil, fmt.Errorf("%w: boot image tag of %d bytes", ErrBadRecord, length)
			}
			rec.BootImage = &BootImagePointer{
				Offset: binary.LittleEndian.Uint64(data[0:]),
				Length: binary.LittleEndian.Uint64(data[8:]),
				Device: string(bytes.TrimRight(data[16:], "\x00")),
			}
		}
		off += tagHdrSize + ((length + 3) &^ 3)
	}
	return nil, fmt.Errorf("%w: missing end tag", ErrBadRecord)
}
