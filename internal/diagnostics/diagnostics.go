/*
Copyright 2020 GramLabs, Inc.

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

// Package diagnostics defines the error taxonomy shared by the render and
// generate pipelines, and the mapping from error kind to process exit code.
package diagnostics

import "fmt"

// Kind identifies which pipeline stage produced an Error.
type Kind string

const (
	Compile              Kind = "Compile"
	RuntimeInit          Kind = "Runtime.Init"
	RuntimeExecution     Kind = "Runtime.Execution"
	BuildNotCalled       Kind = "Runtime.BuildNotCalled"
	BuildCalledMultiple  Kind = "Runtime.BuildCalledMultiple"
	StrictJSON           Kind = "Runtime.StrictJson"
	SandboxViolation     Kind = "Runtime.SandboxViolation"
	Timeout              Kind = "Runtime.Timeout"
	OutOfMemory          Kind = "Runtime.OutOfMemory"
	EmitSerialize        Kind = "Emit.Serialize"
	OpenAPIParse         Kind = "OpenApi.Parse"
	OpenAPIUnresolvedRef Kind = "OpenApi.UnresolvedRef"
)

// Error wraps a component-local failure with its taxonomy Kind and any
// structured fields the kind carries (Count, Path, Reason, Messages, Key,
// Ref). The source error is always preserved via Unwrap.
type Error struct {
	Kind     Kind
	Cause    error
	Count    int
	Path     string
	Reason   string
	Messages []string
	Key      string
	Ref      string
}

func (e *Error) Error() string {
	switch e.Kind {
	case BuildCalledMultiple:
		return fmt.Sprintf("%s: build() called %d times", e.Kind, e.Count)
	case StrictJSON:
		return fmt.Sprintf("%s: %s at %s", e.Kind, e.Reason, e.Path)
	case SandboxViolation:
		return fmt.Sprintf("%s: %s escapes project root", e.Kind, e.Path)
	case OpenAPIUnresolvedRef:
		return fmt.Sprintf("%s: %s: unresolved ref %s", e.Kind, e.Key, e.Ref)
	case OpenAPIParse:
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Key, e.Reason)
	case Compile:
		if len(e.Messages) > 0 {
			return fmt.Sprintf("%s: %v", e.Kind, e.Messages)
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind wrapping cause.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// ExitCode implements the stable exit-code table (spec.md §6, confirmed
// verbatim by the original implementation's husako-cli exit_code mapping).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if !asError(err, &e) {
		return 1
	}
	switch e.Kind {
	case Compile:
		return 3
	case RuntimeInit, RuntimeExecution, Timeout, OutOfMemory:
		return 4
	case BuildNotCalled, BuildCalledMultiple, StrictJSON:
		return 7
	case EmitSerialize:
		return 7
	case OpenAPIParse, OpenAPIUnresolvedRef:
		return 6
	case SandboxViolation:
		return 4
	default:
		return 1
	}
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
