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

// Package platform implements the board hooks of a loader running hosted
// on a Linux system: reboot by re-executing the loader and FPGA programming
// through the devcfg character device.
package platform

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/rancher/lkboot/pkg/types"
	"github.com/rancher/lkboot/pkg/utils"
)

var ErrNoFPGA = errors.New("no fpga")

// ExecFunc replaces the running process image
type ExecFunc func(argv0 string, argv []string, envv []string) error

// Hosted is the Platform of a loader running as a Linux process
type Hosted struct {
	fs     types.FS
	logger types.Logger
	devcfg string
	exec   ExecFunc
	reset  bool
}

var _ types.Platform = (*Hosted)(nil)

type Options func(p *Hosted) error

func WithExec(exec ExecFunc) func(p *Hosted) error {
	return func(p *Hosted) error {
		p.exec = exec
		return nil
	}
}

func WithDevcfg(path string) func(p *Hosted) error {
	return func(p *Hosted) error {
		p.devcfg = path
		return nil
	}
}

// NewHosted returns the hosted platform for the given configuration
func NewHosted(cfg *types.Config, opts ...Options) (*Hosted, error) {
	p := &Hosted{
		fs:     cfg.Fs,
		logger: cfg.Logger,
		devcfg: cfg.FPGA.Devcfg,
		exec:   syscall.Exec,
	}
	for _, o := range opts {
		if err := o(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Reboot restarts the loader from scratch. It does not return on success.
func (p *Hosted) Reboot() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving loader executable: %w", err)
	}
	p.logger.Infof("rebooting")
	return p.exec(exe, os.Args, os.Environ())
}

func (p *Hosted) FPGASupported() bool {
	return p.devcfg != ""
}

// ResetFPGA puts the fabric in reset until the next ProgramFPGA call
func (p *Hosted) ResetFPGA() error {
	if !p.FPGASupported() {
		return ErrNoFPGA
	}
	ok, err := utils.Exists(p.fs, p.devcfg)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("fpga configuration device %s not found", p.devcfg)
	}
	p.logger.Debugf("resetting fpga through %s", p.devcfg)
	p.reset = true
	return nil
}

// ProgramFPGA loads bitstream, staged at physical address phys, into the fabric
func (p *Hosted) ProgramFPGA(phys uint64, bitstream []byte) error {
	if !p.FPGASupported() {
		return ErrNoFPGA
	}
	if !p.reset {
		return fmt.Errorf("fpga must be reset before programming")
	}
	p.logger.Infof("programming fpga from 0x%x, %d bytes", phys, len(bitstream))
	f, err := p.fs.OpenFile(p.devcfg, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := f.Write(bitstream)
	if err != nil {
		return err
	}
	if n != len(bitstream) {
		return fmt.Errorf("short write to %s: %d of %d bytes", p.devcfg, n, len(bitstream))
	}
	p.reset = false
	return nil
}
