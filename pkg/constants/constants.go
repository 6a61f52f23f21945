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

package constants

import (
	"os"
	"time"
)

const (
	ConfigDir   = "/etc/lkboot"
	ConfigFile  = "config.yaml"
	EnvPrefix   = "LKBOOT"
	DefaultPort = 1023
	DefaultAddr = ":1023"

	// Boot device and partitions
	BootDevice          = "spi0"
	DefaultDevicePath   = "/var/lib/lkboot/spi0.img"
	SystemPartName      = "system"
	DefaultEraseSize    = uint64(4 * 1024)
	DefaultMmapBase     = uint64(0xfc000000)
	PtableReservedSize  = uint64(64 * 1024)
	PtableMagic         = "LKPTABLE"
	PtableVersion       = 1
	ZynqAllocAlign      = uint64(256 * 1024)
	DefaultAllocAlign   = uint64(0)
	ErasedByte          = byte(0xff)
	MaxPartitionNameLen = 15

	// Shared I/O buffer
	DefaultIOBufferSize = uint64(16 * 1024 * 1024)
	DefaultIOBufferPhys = uint64(0x10000000)
	BootArgsSize        = uint64(64 * 1024)

	// Boot arguments
	DefaultCommandLine = "what what"
	PmemTag            = "pmem"
	BootArgsMagic      = uint32(0x4c4b4254) // "LKBT"
	BootArgsVersion    = uint32(1)
	BootDeviceNameLen  = 16

	// Deferred actions
	DeferredDelay = 250 * time.Millisecond
	BootTask      = "boot"
	RebootTask    = "reboot"

	// Platform
	FPGADevcfg = "/dev/xdevcfg"
	HandoffDir = "/run/lkboot/handoff"

	// System parameters
	SysparamEnv  = "env"
	SysparamEFI  = "efi"
	SysparamNone = "none"
	SysparamPath = "/etc/lkboot/sysparam.env"
	// SysparamGUID is the vendor GUID used to store system parameters as EFI variables
	SysparamGUID = "6b1e2c54-6f3e-4d3a-9a1c-2f8d0b5e7c11"

	// Default directory and file fileModes
	DirPerm  = os.ModeDir | os.ModePerm
	FilePerm = 0666
)

// Built-in command names
const (
	CmdFlash       = "flash"
	CmdErase       = "erase"
	CmdRemove      = "remove"
	CmdFPGA        = "fpga"
	CmdBoot        = "boot"
	CmdGetSysparam = "getsysparam"
	CmdReboot      = "reboot"
)

// GetBuiltinCommands returns the command names handled by the dispatcher itself
func GetBuiltinCommands() []string {
	return []string{CmdFlash, CmdErase, CmdRemove, CmdFPGA, CmdBoot, CmdGetSysparam, CmdReboot}
}
