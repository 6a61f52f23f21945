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
	"fmt"
	"time"

	"github.com/docker/go-units"

	"github.com/rancher/lkboot/pkg/constants"
)

// ByteSize is a size in bytes that can be expressed in config files
// with human readable units (e.g. "16MiB")
type ByteSize uint64

func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}

// ParseByteSize parses a human readable size using binary units
func ParseByteSize(s string) (ByteSize, error) {
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative size '%s'", s)
	}
	return ByteSize(n), nil
}

// Config is the runtime configuration shared by the lkboot components
type Config struct {
	Logger     Logger         `yaml:"-" mapstructure:"-"`
	Fs         FS             `yaml:"-" mapstructure:"-"`
	Device     DeviceConfig   `yaml:"device,omitempty" mapstructure:"device"`
	IOBuffer   IOBufferConfig `yaml:"iobuffer,omitempty" mapstructure:"iobuffer"`
	AllocAlign ByteSize       `yaml:"alloc-align,omitempty" mapstructure:"alloc-align"`
	BootDelay  time.Duration  `yaml:"boot-delay,omitempty" mapstructure:"boot-delay"`
	CmdLine    string         `yaml:"cmdline,omitempty" mapstructure:"cmdline"`
	Listen     string         `yaml:"listen,omitempty" mapstructure:"listen"`
	Sysparam   SysparamConfig `yaml:"sysparam,omitempty" mapstructure:"sysparam"`
	FPGA       FPGAConfig     `yaml:"fpga,omitempty" mapstructure:"fpga"`
	Handoff    HandoffConfig  `yaml:"handoff,omitempty" mapstructure:"handoff"`
	Tracing    TracingConfig  `yaml:"tracing,omitempty" mapstructure:"tracing"`
}

// DeviceConfig describes the flash device holding the partition table
type DeviceConfig struct {
	Path      string   `yaml:"path,omitempty" mapstructure:"path"`
	Name      string   `yaml:"name,omitempty" mapstructure:"name"`
	Size      ByteSize `yaml:"size,omitempty" mapstructure:"size"`
	EraseSize ByteSize `yaml:"erase-size,omitempty" mapstructure:"erase-size"`
	MmapBase  uint64   `yaml:"mmap-base,omitempty" mapstructure:"mmap-base"`
}

// IOBufferConfig describes the shared I/O buffer
type IOBufferConfig struct {
	Size     ByteSize `yaml:"size,omitempty" mapstructure:"size"`
	Phys     uint64   `yaml:"phys,omitempty" mapstructure:"phys"`
	ArgsSize ByteSize `yaml:"args-size,omitempty" mapstructure:"args-size"`
}

type SysparamConfig struct {
	Type string `yaml:"type,omitempty" mapstructure:"type"`
	Path string `yaml:"path,omitempty" mapstructure:"path"`
	GUID string `yaml:"guid,omitempty" mapstructure:"guid"`
}

// FPGAConfig enables the fpga command when a devcfg path is set
type FPGAConfig struct {
	Devcfg string `yaml:"devcfg,omitempty" mapstructure:"devcfg"`
}

type HandoffConfig struct {
	Dir string `yaml:"dir,omitempty" mapstructure:"dir"`
}

// TracingConfig enables exporting command traces to an OTLP/HTTP collector
type TracingConfig struct {
	Endpoint string `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
}

// Sanitize checks the consistency of the configuration
func (c *Config) Sanitize() error {
	if c.IOBuffer.ArgsSize >= c.IOBuffer.Size {
		return fmt.Errorf("iobuffer of %s can't hold a boot arguments region of %s", c.IOBuffer.Size, c.IOBuffer.ArgsSize)
	}
	if c.Device.EraseSize == 0 {
		return fmt.Errorf("device erase size can't be zero")
	}
	if c.Sysparam.Type == "" {
		c.Sysparam.Type = constants.SysparamNone
	}
	return nil
}
