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

package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/twpayne/go-vfs/v4"

	"github.com/rancher/lkboot/pkg/constants"
	"github.com/rancher/lkboot/pkg/types"
)

// Exists checks if a file or directory exists.
func Exists(fs types.FS, path string) (bool, error) {
	_, err := fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// MkdirAll creates a directory and all its parents if not existing
func MkdirAll(fs types.FS, name string, mode os.FileMode) error {
	return vfs.MkdirAll(fs, name, mode)
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, readers never see a partially written file
func WriteFileAtomic(fs types.FS, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := MkdirAll(fs, dir, constants.DirPerm); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp", filepath.Base(path)))
	if err := fs.WriteFile(tmp, data, constants.FilePerm); err != nil {
		return err
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return err
	}
	return nil
}
