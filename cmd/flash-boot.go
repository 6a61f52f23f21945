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
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rancher/lkboot/cmd/config"
	lkerror "github.com/rancher/lkboot/pkg/error"
	"github.com/rancher/lkboot/pkg/lkboot"
)

func NewFlashBootCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "flash-boot",
		Short: "Boot the system partition of the flash device",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ReadConfigRun(viper.GetString("config-dir"), cmd.Flags())
			if err != nil {
				if cfg != nil {
					cfg.Logger.Errorf("Error reading config: %s\n", err)
				}
				return lkerror.NewFromError(err, lkerror.ReadingConfig)
			}
			cmd.SilenceUsage = true

			dev, table, err := openDevice(cfg)
			if err != nil {
				return err
			}
			defer dev.Close()

			d, err := lkboot.NewDispatcher(cfg, lkboot.WithPartitionTable(table))
			if err != nil {
				return lkerror.NewFromError(err, lkerror.FlashBoot)
			}
			if err = d.FlashBoot(); err != nil {
				cfg.Logger.Errorf("flash boot failed: %v", err)
				return lkerror.NewFromError(err, lkerror.FlashBoot)
			}
			return nil
		},
	}
	root.AddCommand(c)
	addDeviceFlags(c)
	addBootFlags(c)
	return c
}

// register the subcommand into rootCmd
var _ = NewFlashBootCmd(rootCmd)
