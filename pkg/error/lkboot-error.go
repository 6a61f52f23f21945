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

package error

// LkbootError is our custom error to pass around result codes in the error.
// The message is what travels back to the transport, so it must stay short
// and human readable.
type LkbootError struct {
	err  string
	code int
}

func (e *LkbootError) Error() string {
	return e.err
}

// Code returns the error class of the failure
func (e *LkbootError) Code() int {
	return e.code
}

// ExitCode is the process exit code for the failure when surfaced by the cli
func (e *LkbootError) ExitCode() int {
	return e.code
}

// NewFromError generates an LkbootError from an existing error,
// maintaining its error message
func NewFromError(err error, code int) error {
	if err == nil {
		return nil
	}

	errorMsg := ""
	if err.Error() != "" {
		errorMsg = err.Error()
	}
	return &LkbootError{err: errorMsg, code: code}
}

// New generates an LkbootError from a string
func New(err string, code int) error {
	return &LkbootError{err: err, code: code}
}

// CodeOf returns the code of the given error if it is an LkbootError,
// Unknown otherwise
func CodeOf(err error) int {
	if e, ok := err.(*LkbootError); ok {
		return e.code
	}
	return Unknown
}
