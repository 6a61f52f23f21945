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

// provides a custom error interface and result codes to use on lkboot
package error

//
// Provided result codes for lkboot

// To make it easy to generate them you have to respect the structure:
//
// comment that explains the error
// const NamedConstant = ERRORCODE
//
// Codes below 10 classify command failures, the rest are cli exit codes.

// Malformed or oversized command, rejected before any side effect
const InvalidInput = 2

// No room left on the device to allocate a partition
const ResourceExhausted = 3

// Short read or write on the transport
const TransportIO = 4

// Block device erased or wrote fewer bytes than requested
const StorageIO = 5

// Partition table changed between create and lookup
const LookupConsistency = 6

// Partition, table, device or boot image not found
const NotFound = 7

// Operation not supported on this platform
const Unsupported = 8

// A terminal action is already scheduled
const Busy = 9

// Error reading the lkboot config
const ReadingConfig = 10

// Error opening the block device
const OpeningDevice = 11

// Error creating or reading the partition table
const PartitionTable = 12

// Error serving the lkboot protocol
const ServeFailed = 13

// Error sending a command to a remote lkboot server
const SendFailed = 14

// Error creating a boot image
const CreateBootImage = 15

// Error booting from flash
const FlashBoot = 16

// Error opening a file
const OpenFile = 24

// Unknown error
const Unknown int = 255
