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
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rancher/lkboot/cmd/config"
	"github.com/rancher/lkboot/pkg/bootimage"
	lkerror "github.com/rancher/lkboot/pkg/error"
	"github.com/rancher/lkboot/pkg/types"
	"github.com/rancher/lkboot/pkg/utils"
)

// parseSections turns TYPE=PATH arguments into boot image sections
func parseSections(fs types.FS, specs []string) ([]bootimage.Section, error) {
	var sections []bootimage.Section
	for _, s := range specs {
		t, path, ok := strings.Cut(s, "=")
		if !ok || t == "" || path == "" {
			return nil, fmt.Errorf("invalid section '%s', expected TYPE=PATH", s)
		}
		data, err := fs.ReadFile(path)
		if err != nil {
			return nil, err
		}
		name := filepath.Base(path)
		if len(name) > 15 {
			name = name[:15]
		}
		sections = append(sections, bootimage.Section{
			Type: bootimage.SectionType(t),
			Name: name,
			Data: data,
		})
	}
	return sections, nil
}

func NewMkBootImageCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "mkbootimage",
		Short: "Create a boot image container",
		Args:  cobra.ExactArgs(0),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			sections, _ := cmd.Flags().GetStringArray("section")
			if len(sections) == 0 {
				return fmt.Errorf("at least one section must be supplied")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ReadConfigRun(viper.GetString("config-dir"), cmd.Flags())
			if err != nil {
				if cfg != nil {
					cfg.Logger.Errorf("Error reading config: %s\n", err)
				}
				return lkerror.NewFromError(err, lkerror.ReadingConfig)
			}
			cmd.SilenceUsage = true

			specs, _ := cmd.Flags().GetStringArray("section")
			output, _ := cmd.Flags().GetString("output")

			sections, err := parseSections(cfg.Fs, specs)
			if err != nil {
				return lkerror.NewFromError(err, lkerror.CreateBootImage)
			}
			image, err := bootimage.Build(sections...)
			if err != nil {
				return lkerror.NewFromError(err, lkerror.CreateBootImage)
			}
			bi, err := bootimage.Open(image)
			if err != nil {
				return lkerror.NewFromError(err, lkerror.CreateBootImage)
			}
			for _, s := range bi.Sections() {
				cfg.Logger.Debugf("section %s '%s' at 0x%x, %d bytes", s.Type, s.Name, s.Offset, len(s.Data))
			}
			if err = utils.WriteFileAtomic(cfg.Fs, output, image); err != nil {
				return lkerror.NewFromError(err, lkerror.CreateBootImage)
			}
			cfg.Logger.Infof("boot image %s written: %d sections, %s", output, len(sections), units.BytesSize(float64(len(image))))
			return nil
		},
	}
	root.AddCommand(c)
	c.Flags().StringP("output", "o", "bootimage.bin", "Path of the boot image to create")
	c.Flags().StringArrayP("section", "s", []string{}, "Section to bundle as TYPE=PATH (e.g. 'lk=lk.bin'), can be repeated")
	return c
}

// register the subcommand into rootCmd
var _ = NewMkBootImageCmd(rootCmd)
