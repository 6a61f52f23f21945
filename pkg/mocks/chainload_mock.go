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

package mocks

import (
	"github.com/rancher/lkboot/pkg/chainload"
)

// FakeInvoker records the handoff descriptors it is given. Unlike a real
// invoker it returns, with ErrTransfer.
type FakeInvoker struct {
	Transfers   []chainload.Descriptor
	ErrTransfer error
}

var _ chainload.Invoker = (*FakeInvoker)(nil)

func (i *FakeInvoker) Transfer(d chainload.Descriptor) error {
	d.Image = append([]byte{}, d.Image...)
	i.Transfers = append(i.Transfers, d)
	return i.ErrTransfer
}

// Last returns the most recent transfer
func (i *FakeInvoker) Last() chainload.Descriptor {
	return i.Transfers[len(i.Transfers)-1]
}
