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
	"fmt"
	"text/tabwriter"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rancher/lkboot/cmd/config"
	"github.com/rancher/lkboot/pkg/bio"
	lkerror "github.com/rancher/lkboot/pkg/error"
	"github.com/rancher/lkboot/pkg/types"
	"github.com/rancher/lkboot/pkg/utils"
)

func NewPtableCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "ptable",
		Short: "Manage the partition table of the flash device",
	}
	root.AddCommand(c)
	newPtableInitCmd(c)
	newPtableListCmd(c)
	return c
}

func newPtableInitCmd(parent *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "init",
		Short: "Write an empty partition table, creating the device image if needed",
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

			size, _ := cmd.Flags().GetString("size")
			if size != "" {
				s, err := types.ParseByteSize(size)
				if err != nil {
					return lkerror.NewFromError(err, lkerror.PartitionTable)
				}
				cfg.Device.Size = s
			}
			exists, err := utils.Exists(cfg.Fs, cfg.Device.Path)
			if err != nil {
				return lkerror.NewFromError(err, lkerror.OpeningDevice)
			}
			if cfg.Device.Size > 0 && !exists {
				cfg.Logger.Infof("creating device image %s of %s", cfg.Device.Path, cfg.Device.Size)
				err = bio.Create(cfg.Fs, cfg.Device.Path, uint64(cfg.Device.Size))
				if err != nil {
					return lkerror.NewFromError(err, lkerror.OpeningDevice)
				}
			}

			dev, table, err := openDevice(cfg)
			if err != nil {
				return err
			}
			defer dev.Close()

			if table.FoundValid() {
				if force, _ := cmd.Flags().GetBool("force"); !force {
					return lkerror.New(fmt.Sprintf("%s already holds a partition table", cfg.Device.Path), lkerror.PartitionTable)
				}
			}
			if err = table.Init(); err != nil {
				return lkerror.NewFromError(err, lkerror.PartitionTable)
			}
			cfg.Logger.Infof("partition table written to %s", cfg.Device.Path)
			return nil
		},
	}
	parent.AddCommand(c)
	addDeviceFlags(c)
	c.Flags().String("size", "", "Create the device image with this size if it does not exist (e.g. '16MiB')")
	c.Flags().Bool("force", false, "Overwrite an existing partition table")
	return c
}

func newPtableListCmd(parent *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "list",
		Short: "List the partitions of the flash device",
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

			if !table.FoundValid() {
				return lkerror.New(fmt.Sprintf("no partition table found on %s", cfg.Device.Path), lkerror.PartitionTable)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tOFFSET\tLENGTH\tSIZE")
			for _, p := range table.List() {
				fmt.Fprintf(w, "%s\t0x%x\t0x%x\t%s\n", p.Name, p.Offset, p.Length, units.BytesSize(float64(p.Length)))
			}
			return w.Flush()
		},
	}
	parent.AddCommand(c)
	addDeviceFlags(c)
	return c
}

// register the subcommand into rootCmd
var _ = NewPtableCmd(rootCmd)
