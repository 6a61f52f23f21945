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
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rancher/lkboot/pkg/constants"
)

// addDeviceFlags adds flags describing the flash device
func addDeviceFlags(cmd *cobra.Command) {
	cmd.Flags().String("device", "", "Path of the flash device image")
	cmd.Flags().String("device-name", "", "Name of the flash device as reported to the booted system")
	cmd.Flags().String("erase-size", "", "Erase block size of the flash device (e.g. '4KiB')")
}

// addBootFlags adds flags used to hand the system over to a booted image
func addBootFlags(cmd *cobra.Command) {
	cmd.Flags().String("iobuffer-size", "", "Size of the shared I/O buffer (e.g. '16MiB')")
	cmd.Flags().String("cmdline", "", "Command line passed to the booted image")
	cmd.Flags().String("handoff-dir", "", "Directory the boot image is handed off to")
}

// addServeFlags adds flags of the command server
func addServeFlags(cmd *cobra.Command) {
	addDeviceFlags(cmd)
	addBootFlags(cmd)
	cmd.Flags().String("alloc-align", "", "Alignment of newly allocated partitions (e.g. '256KiB')")
	cmd.Flags().String("listen", "", "Address to listen on")
	cmd.Flags().Var(newEnumFlag([]string{constants.SysparamEnv, constants.SysparamEFI, constants.SysparamNone}, ""), "sysparam", "System parameters backend")
	cmd.Flags().String("sysparam-path", "", "Path of the system parameters file of the 'env' backend")
	cmd.Flags().String("fpga-devcfg", "", "FPGA configuration device, enables the fpga command")
	cmd.Flags().String("trace-endpoint", "", "OTLP/HTTP endpoint to export command traces to")
	cmd.Flags().Bool("autoboot", false, "Boot the system partition before serving commands")
}

// enum is a pflag.Value that only accepts a fixed set of values
type enum struct {
	allowed []string
	value   string
}

var _ pflag.Value = (*enum)(nil)

func newEnumFlag(allowed []string, d string) *enum {
	return &enum{allowed: allowed, value: d}
}

func (e *enum) String() string {
	return e.value
}

func (e *enum) Set(p string) error {
	for _, a := range e.allowed {
		if a == p {
			e.value = p
			return nil
		}
	}
	return fmt.Errorf("invalid value '%s', must be one of: %s", p, strings.Join(e.allowed, ", "))
}

func (e *enum) Type() string {
	return "string"
}
