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

// Package sysparam provides the stores the getsysparam command reads
// system parameters from.
package sysparam

import (
	"errors"
	"fmt"

	efilib "github.com/canonical/go-efilib"
	"github.com/joho/godotenv"

	"github.com/rancher/lkboot/pkg/constants"
	"github.com/rancher/lkboot/pkg/efi"
	"github.com/rancher/lkboot/pkg/types"
)

// EnvStore reads parameters from an env formatted file (KEY=value lines).
// The file is read on every lookup so edits are picked up without restart.
type EnvStore struct {
	fs   types.FS
	path string
}

var _ types.SysparamStore = (*EnvStore)(nil)

func NewEnvStore(fs types.FS, path string) *EnvStore {
	return &EnvStore{fs: fs, path: path}
}

func (s *EnvStore) Get(name string) ([]byte, error) {
	f, err := s.fs.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	params, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	v, ok := params[name]
	if !ok {
		return nil, fmt.Errorf("sysparam '%s': %w", name, types.ErrNotFound)
	}
	return []byte(v), nil
}

// EFIStore reads parameters stored as firmware variables under a vendor GUID
type EFIStore struct {
	vars efi.Variables
	guid efilib.GUID
}

var _ types.SysparamStore = (*EFIStore)(nil)

func NewEFIStore(vars efi.Variables, guid string) (*EFIStore, error) {
	g, err := efi.ParseGUID(guid)
	if err != nil {
		return nil, fmt.Errorf("invalid sysparam guid '%s': %w", guid, err)
	}
	if !efi.VariablesSupported(vars) {
		return nil, fmt.Errorf("efi variables not supported")
	}
	return &EFIStore{vars: vars, guid: g}, nil
}

func (s *EFIStore) Get(name string) ([]byte, error) {
	data, _, err := s.vars.GetVariable(s.guid, name)
	if errors.Is(err, efilib.ErrVarNotExist) {
		return nil, fmt.Errorf("sysparam '%s': %w", name, types.ErrNotFound)
	}
	return data, err
}

// NoneStore is the store of boards without system parameters
type NoneStore struct{}

func (NoneStore) Get(name string) ([]byte, error) {
	return nil, fmt.Errorf("sysparam '%s': %w", name, types.ErrNotFound)
}

// NewStore returns the store configured in cfg
func NewStore(cfg *types.Config) (types.SysparamStore, error) {
	switch cfg.Sysparam.Type {
	case constants.SysparamEnv:
		return NewEnvStore(cfg.Fs, cfg.Sysparam.Path), nil
	case constants.SysparamEFI:
		return NewEFIStore(efi.RealEFIVariables{}, cfg.Sysparam.GUID)
	case constants.SysparamNone, "":
		return NoneStore{}, nil
	default:
		return nil, fmt.Errorf("unknown sysparam store type '%s'", cfg.Sysparam.Type)
	}
}
