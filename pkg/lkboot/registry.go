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

package lkboot

import (
	"context"
	"errors"
	"sync"

	"github.com/rancher/lkboot/pkg/types"
)

// HandlerFunc serves a command. The payload, length bytes long, is read
// from the session by the handler itself if it wants it. A nil error is
// success, otherwise the error message is the failure reported back.
type HandlerFunc func(ctx context.Context, s types.Session, arg string, length uint32, cookie any) error

// Command is a registered command handler
type Command struct {
	Name    string
	Handler HandlerFunc
	Cookie  any
}

// Registry holds the commands contributed by collaborators. Lookups walk
// the commands from the most recently registered to the oldest one, so a
// later registration shadows an earlier one with the same name.
type Registry struct {
	mu       sync.RWMutex
	commands []Command
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a command. Commands are never unregistered.
func (r *Registry) Register(name string, handler HandlerFunc, cookie any) error {
	if name == "" {
		return errors.New("empty command name")
	}
	if handler == nil {
		return errors.New("nil command handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, Command{Name: name, Handler: handler, Cookie: cookie})
	return nil
}

// Lookup returns the first command matching name in search order
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.commands) - 1; i >= 0; i-- {
		if r.commands[i].Name == name {
			return r.commands[i], true
		}
	}
	return Command{}, false
}

// Names lists the registered command names in search order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for i := len(r.commands) - 1; i >= 0; i-- {
		names = append(names, r.commands[i].Name)
	}
	return names
}
