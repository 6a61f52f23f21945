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

package config

import (
	"github.com/twpayne/go-vfs/v4"

	"github.com/rancher/lkboot/pkg/constants"
	"github.com/rancher/lkboot/pkg/types"
)

type GenericOptions func(a *types.Config) error

func WithFs(fs types.FS) func(r *types.Config) error {
	return func(r *types.Config) error {
		r.Fs = fs
		return nil
	}
}

func WithLogger(logger types.Logger) func(r *types.Config) error {
	return func(r *types.Config) error {
		r.Logger = logger
		return nil
	}
}

func WithDevice(path string) func(r *types.Config) error {
	return func(r *types.Config) error {
		r.Device.Path = path
		return nil
	}
}

// WithIOBuffer sets the size and the physical address of the shared I/O buffer
func WithIOBuffer(size uint64, phys uint64) func(r *types.Config) error {
	return func(r *types.Config) error {
		r.IOBuffer.Size = types.ByteSize(size)
		r.IOBuffer.Phys = phys
		return nil
	}
}

func WithAllocAlign(align uint64) func(r *types.Config) error {
	return func(r *types.Config) error {
		r.AllocAlign = types.ByteSize(align)
		return nil
	}
}

// NewConfig returns a configuration with the lkboot defaults, options are
// applied on top of them
func NewConfig(opts ...GenericOptions) *types.Config {
	log := types.NewLogger()

	c := &types.Config{
		Fs:     vfs.OSFS,
		Logger: log,
		Device: types.DeviceConfig{
			Path:      constants.DefaultDevicePath,
			Name:      constants.BootDevice,
			EraseSize: types.ByteSize(constants.DefaultEraseSize),
			MmapBase:  constants.DefaultMmapBase,
		},
		IOBuffer: types.IOBufferConfig{
			Size:     types.ByteSize(constants.DefaultIOBufferSize),
			Phys:     constants.DefaultIOBufferPhys,
			ArgsSize: types.ByteSize(constants.BootArgsSize),
		},
		AllocAlign: types.ByteSize(constants.DefaultAllocAlign),
		BootDelay:  constants.DeferredDelay,
		CmdLine:    constants.DefaultCommandLine,
		Listen:     constants.DefaultAddr,
		Sysparam: types.SysparamConfig{
			Type: constants.SysparamNone,
			Path: constants.SysparamPath,
			GUID: constants.SysparamGUID,
		},
		Handoff: types.HandoffConfig{
			Dir: constants.HandoffDir,
		},
	}
	for _, o := range opts {
		err := o(c)
		if err != nil {
			log.Errorf("error applying config option: %s", err.Error())
			return nil
		}
	}

	return c
}
