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

package cmd

import (
	"github.com/rancher/lkboot/pkg/bio"
	lkerror "github.com/rancher/lkboot/pkg/error"
	"github.com/rancher/lkboot/pkg/ptable"
	"github.com/rancher/lkboot/pkg/types"
)

// openDevice opens the configured flash device and scans its partition table
func openDevice(cfg *types.Config) (*bio.FileDevice, *ptable.Table, error) {
	dev, err := bio.Open(
		cfg.Fs, cfg.Device.Path,
		bio.WithName(cfg.Device.Name),
		bio.WithEraseSize(uint64(cfg.Device.EraseSize)),
		bio.WithMmapBase(cfg.Device.MmapBase),
		bio.WithLogger(cfg.Logger),
	)
	if err != nil {
		cfg.Logger.Errorf("failed opening device %s: %v", cfg.Device.Path, err)
		return nil, nil, lkerror.NewFromError(err, lkerror.OpeningDevice)
	}
	table, err := ptable.New(dev, ptable.WithLogger(cfg.Logger))
	if err != nil {
		_ = dev.Close()
		cfg.Logger.Errorf("failed reading partition table of %s: %v", cfg.Device.Path, err)
		return nil, nil, lkerror.NewFromError(err, lkerror.PartitionTable)
	}
	return dev, table, nil
}
