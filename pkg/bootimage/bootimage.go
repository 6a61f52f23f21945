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

// Package bootimage reads and writes boot image containers. A container is a
// table of 64 byte entries followed by the section data:
//
//	entry 0:  [KIND=1 u32][MAGIC 16][VERSION u32][COUNT u32][pad]
//	entry N:  [KIND=2 u32][TYPE 4][OFFSET u32][LENGTH u32][NAME 16][SHA256 32]
//
// Offsets are relative to the start of the container.
package bootimage

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	EntrySize   = 64
	Version     = uint32(1)
	MaxSections = 63
	// SectionAlign is the alignment of section data inside the container
	SectionAlign = 4096

	kindHeader = uint32(1)
	kindFile   = uint32(2)
	nameLen    = 16
)

var magic = [16]byte{'<', 'l', 'k', '-', 'b', 'o', 'o', 't', 'i', 'm', 'a', 'g', 'e', '>'}

// SectionType identifies the content of a section, up to 4 characters
type SectionType string

const (
	TypeLK   SectionType = "lk"
	TypeFPGA SectionType = "fpga"
)

var (
	ErrNotBootImage    = errors.New("not a boot image")
	ErrSectionNotFound = errors.New("section not found")
)

// Section is one file bundled in the container
type Section struct {
	Type   SectionType
	Name   string
	Offset uint64
	Data   []byte
}

// BootImage is an opened container
type BootImage struct {
	region   []byte
	sections []Section
	size     uint64
}

func typeBytes(t SectionType) [4]byte {
	var b [4]byte
	copy(b[:], t)
	return b
}

func cstring(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}

// Open parses the container found at the start of region. Section data
// digests are verified, any inconsistency means the region is not a
// boot image.
func Open(region []byte) (*BootImage, error) {
	if len(region) < EntrySize {
		return nil, fmt.Errorf("%w: region too small", ErrNotBootImage)
	}
	if binary.LittleEndian.Uint32(region[0:]) != kindHeader || !bytes.Equal(region[4:20], magic[:]) {
		return nil, fmt.Errorf("%w: bad header", ErrNotBootImage)
	}
	if v := binary.LittleEndian.Uint32(region[20:]); v != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrNotBootImage, v)
	}
	count := binary.LittleEndian.Uint32(region[24:])
	if count > MaxSections || uint64(count+1)*EntrySize > uint64(len(region)) {
		return nil, fmt.Errorf("%w: bad section count %d", ErrNotBootImage, count)
	}

	tableEnd := uint64(count+1) * EntrySize
	bi := &BootImage{region: region, size: tableEnd}
	for i := uint32(1); i <= count; i++ {
		e := region[i*EntrySize : (i+1)*EntrySize]
		if binary.LittleEndian.Uint32(e[0:]) != kindFile {
			return nil, fmt.Errorf("%w: entry %d is not a file", ErrNotBootImage, i)
		}
		offset := uint64(binary.LittleEndian.Uint32(e[8:]))
		length := uint64(binary.LittleEndian.Uint32(e[12:]))
		if offset < tableEnd || offset+length > uint64(len(region)) {
			return nil, fmt.Errorf("%w: entry %d out of bounds", ErrNotBootImage, i)
		}
		data := region[offset : offset+length]
		sum := sha256.Sum256(data)
		if !bytes.Equal(sum[:], e[32:64]) {
			return nil, fmt.Errorf("%w: entry %d digest mismatch", ErrNotBootImage, i)
		}
		bi.sections = append(bi.sections, Section{
			Type:   SectionType(cstring(e[4:8])),
			Name:   cstring(e[16:32]),
			Offset: offset,
			Data:   data,
		})
		if offset+length > bi.size {
			bi.size = offset + length
		}
	}
	return bi, nil
}

// Section returns the first section of the given type
func (bi *BootImage) Section(t SectionType) (Section, error) {
	for _, s := range bi.sections {
		if s.Type == t {
			return s, nil
		}
	}
	return Section{}, fmt.Errorf("%w: %s", ErrSectionNotFound, t)
}

// Sections returns all the sections of the container
func (bi *BootImage) Sections() []Section {
	return bi.sections
}

// Range returns the offset and size of the whole container within the opened region
func (bi *BootImage) Range() (uint64, uint64) {
	return 0, bi.size
}

// Build creates a container holding the given sections in order. Offsets
// in the given sections are ignored.
func Build(sections ...Section) ([]byte, error) {
	if len(sections) > MaxSections {
		return nil, fmt.Errorf("too many sections: %d", len(sections))
	}
	offset := uint64(len(sections)+1) * EntrySize
	var layout []uint64
	for _, s := range sections {
		if len(s.Type) == 0 || len(s.Type) > 4 {
			return nil, fmt.Errorf("invalid section type '%s'", s.Type)
		}
		if len(s.Name) >= nameLen {
			return nil, fmt.Errorf("section name '%s' too long", s.Name)
		}
		offset = alignUp(offset, SectionAlign)
		layout = append(layout, offset)
		offset += uint64(len(s.Data))
	}
	if offset > 0xffffffff {
		return nil, fmt.Errorf("boot image too large: %d bytes", offset)
	}

	out := make([]byte, offset)
	binary.LittleEndian.PutUint32(out[0:], kindHeader)
	copy(out[4:20], magic[:])
	binary.LittleEndian.PutUint32(out[20:], Version)
	binary.LittleEndian.PutUint32(out[24:], uint32(len(sections)))
	for i, s := range sections {
		e := out[(i+1)*EntrySize : (i+2)*EntrySize]
		t := typeBytes(s.Type)
		binary.LittleEndian.PutUint32(e[0:], kindFile)
		copy(e[4:8], t[:])
		binary.LittleEndian.PutUint32(e[8:], uint32(layout[i]))
		binary.LittleEndian.PutUint32(e[12:], uint32(len(s.Data)))
		copy(e[16:32], s.Name)
		sum := sha256.Sum256(s.Data)
		copy(e[32:64], sum[:])
		copy(out[layout[i]:], s.Data)
	}
	return out, nil
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) / align * align
}
