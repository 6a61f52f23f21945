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

package bootimage

// Kind tells how a staged region has to be booted
type Kind int

const (
	// Raw is an executable image jumped to at its first byte
	Raw Kind = iota
	// Container is a boot image container
	Container
)

func (k Kind) String() string {
	switch k {
	case Container:
		return "bootimage"
	default:
		return "raw"
	}
}

// Classification is the result of sniffing a memory region
type Classification struct {
	Kind  Kind
	Image *BootImage
	// Loader is the loader section of a container, nil if it has none
	Loader *Section
	// Err is the reason why the region was not taken as a container
	Err error
}

// Classify decides whether region holds a boot image container or a raw
// image and, for containers, locates the loader section.
func Classify(region []byte) Classification {
	bi, err := Open(region)
	if err != nil {
		return Classification{Kind: Raw, Err: err}
	}
	c := Classification{Kind: Container, Image: bi}
	if s, err := bi.Section(TypeLK); err == nil {
		c.Loader = &s
	}
	return c
}
