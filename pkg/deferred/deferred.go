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

// Package deferred runs actions that end the control flow of the loader,
// boot and reboot, a short while after the command that triggered them
// reported its result.
package deferred

import (
	"sync"
	"time"

	"github.com/rancher/lkboot/pkg/types"
)

// Scheduler runs actions asynchronously. Scheduled actions have no result
// and can't be cancelled.
type Scheduler interface {
	Schedule(name string, action func())
}

// TimerScheduler runs every action on its own goroutine after a fixed delay
type TimerScheduler struct {
	delay   time.Duration
	logger  types.Logger
	mu      sync.Mutex
	pending int
	wg      sync.WaitGroup
}

var _ Scheduler = (*TimerScheduler)(nil)

func NewTimerScheduler(delay time.Duration, logger types.Logger) *TimerScheduler {
	return &TimerScheduler{delay: delay, logger: logger}
}

func (s *TimerScheduler) Schedule(name string, action func()) {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
	s.wg.Add(1)

	s.logger.Debugf("scheduling %s in %s", name, s.delay)
	time.AfterFunc(s.delay, func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.pending--
			s.mu.Unlock()
		}()
		s.logger.Debugf("running %s", name)
		action()
	})
}

// Pending reports whether some scheduled action did not complete yet
func (s *TimerScheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending > 0
}

// Wait blocks until all scheduled actions returned
func (s *TimerScheduler) Wait() {
	s.wg.Wait()
}
