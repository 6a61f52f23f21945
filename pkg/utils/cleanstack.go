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
	"github.com/hashicorp/go-multierror"
)

type cleanKind int

const (
	always cleanKind = iota
	errorOnly
	successOnly
)

type CleanFunc func() error

type cleanJob struct {
	run  CleanFunc
	kind cleanKind
}

// CleanStack is a LIFO list of cleanup tasks. Tasks can be set to run always,
// only when the guarded operation failed or only when it succeeded.
type CleanStack struct {
	jobs []cleanJob
}

func NewCleanStack() *CleanStack {
	return &CleanStack{}
}

// Push adds a task that always runs
func (c *CleanStack) Push(f CleanFunc) {
	c.jobs = append(c.jobs, cleanJob{run: f, kind: always})
}

// PushErrorOnly adds a task that only runs on failure
func (c *CleanStack) PushErrorOnly(f CleanFunc) {
	c.jobs = append(c.jobs, cleanJob{run: f, kind: errorOnly})
}

// PushSuccessOnly adds a task that only runs on success
func (c *CleanStack) PushSuccessOnly(f CleanFunc) {
	c.jobs = append(c.jobs, cleanJob{run: f, kind: successOnly})
}

// Len is the number of pending tasks
func (c *CleanStack) Len() int {
	return len(c.jobs)
}

// Cleanup runs all pending tasks in reverse order. The given error is
// returned untouched if no task fails, otherwise task errors are appended
// to it.
func (c *CleanStack) Cleanup(err error) error {
	failed := err != nil
	var errs *multierror.Error
	for len(c.jobs) > 0 {
		job := c.jobs[len(c.jobs)-1]
		c.jobs = c.jobs[:len(c.jobs)-1]
		if (job.kind == errorOnly && !failed) || (job.kind == successOnly && failed) {
			continue
		}
		if jErr := job.run(); jErr != nil {
			errs = multierror.Append(errs, jErr)
		}
	}
	if errs == nil {
		return err
	}
	if err != nil {
		return multierror.Append(err, errs.Errors...)
	}
	return errs.ErrorOrNil()
}
