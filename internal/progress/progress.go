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

// Package progress defines a collaborator contract for reporting
// long-running work, without committing core to any particular terminal UI
// library. The render and generate commands do not report progress through
// it.
package progress

// Reporter starts tasks. NopReporter is the only implementation in this
// module.
type Reporter interface {
	StartTask(message string) TaskHandle
}

// TaskHandle tracks a single in-progress task.
type TaskHandle interface {
	SetMessage(message string)
	FinishOK(message string)
	FinishErr(message string)
}

// NopReporter discards every call. It is the default for library callers
// that don't care about progress output.
type NopReporter struct{}

// StartTask returns a handle that discards every subsequent call.
func (NopReporter) StartTask(string) TaskHandle { return nopTaskHandle{} }

type nopTaskHandle struct{}

func (nopTaskHandle) SetMessage(string) {}
func (nopTaskHandle) FinishOK(string)   {}
func (nopTaskHandle) FinishErr(string)  {}
