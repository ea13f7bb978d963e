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

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thestormforge/husako/internal/diagnostics"
	"github.com/thestormforge/husako/internal/ordered"
	"github.com/thestormforge/husako/internal/sdk"
)

// stubResolver serves the builtin "husako" module plus a single
// caller-provided entry module, avoiding a dependency on internal/loader
// for these unit tests.
type stubResolver struct{}

func (stubResolver) Resolve(specifier, _ string) (string, []byte, error) {
	if src, ok := sdk.Module(specifier); ok {
		return specifier, []byte(src), nil
	}
	return "", nil, assertNever{specifier}
}

type assertNever struct{ specifier string }

func (a assertNever) Error() string { return "unexpected resolve: " + a.specifier }

func TestRunCapturesBuildPayload(t *testing.T) {
	src := `
const {build} = require("husako");
build([{apiVersion: "v1", kind: "Namespace", metadata: {name: "test"}}]);
`
	out, err := Run("entry.js", []byte(src), Options{Resolver: stubResolver{}})
	require.NoError(t, err)

	docs, ok := out.([]interface{})
	require.True(t, ok)
	require.Len(t, docs, 1)

	doc, ok := docs[0].(*ordered.Map)
	require.True(t, ok)
	v, ok := doc.Get("kind")
	require.True(t, ok)
	assert.Equal(t, "Namespace", v)
}

func TestRunBuildNotCalled(t *testing.T) {
	src := `const {build} = require("husako"); const x = 1;`
	_, err := Run("entry.js", []byte(src), Options{Resolver: stubResolver{}})
	require.Error(t, err)
	assert.Equal(t, diagnostics.BuildNotCalled, err.(*diagnostics.Error).Kind)
}

func TestRunBuildCalledMultipleTimes(t *testing.T) {
	src := `
const {build} = require("husako");
build([{kind: "A"}]);
build([{kind: "B"}]);
`
	_, err := Run("entry.js", []byte(src), Options{Resolver: stubResolver{}})
	require.Error(t, err)
	derr := err.(*diagnostics.Error)
	assert.Equal(t, diagnostics.BuildCalledMultiple, derr.Kind)
	assert.Equal(t, 2, derr.Count)
}

func TestRunStrictJSONRejectsFunctionValue(t *testing.T) {
	src := `
const {build} = require("husako");
build([{spec: {x: function() {}}}]);
`
	_, err := Run("entry.js", []byte(src), Options{Resolver: stubResolver{}})
	require.Error(t, err)
	derr := err.(*diagnostics.Error)
	assert.Equal(t, diagnostics.StrictJSON, derr.Kind)
	assert.Equal(t, "function", derr.Reason)
	assert.Equal(t, ".spec.x", derr.Path)
}

func TestRunMetadataChainIsMaterializedByBuild(t *testing.T) {
	src := `
const {build, metadata} = require("husako");
build([metadata().name("x").namespace("default")]);
`
	out, err := Run("entry.js", []byte(src), Options{Resolver: stubResolver{}})
	require.NoError(t, err)
	docs := out.([]interface{})
	doc := docs[0].(*ordered.Map)
	name, _ := doc.Get("name")
	assert.Equal(t, "x", name)
}

func TestRunEmptyBuildArrayYieldsEmptySlice(t *testing.T) {
	src := `const {build} = require("husako"); build([]);`
	out, err := Run("entry.js", []byte(src), Options{Resolver: stubResolver{}})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{}, out)
}

// sandboxViolationResolver serves the builtin SDK but fails every other
// specifier with a SandboxViolation, as internal/loader does for a path
// outside the project root.
type sandboxViolationResolver struct{}

func (sandboxViolationResolver) Resolve(specifier, _ string) (string, []byte, error) {
	if src, ok := sdk.Module(specifier); ok {
		return specifier, []byte(src), nil
	}
	return "", nil, &diagnostics.Error{Kind: diagnostics.SandboxViolation, Path: specifier}
}

func TestRunPreservesSandboxViolationKindThroughRequire(t *testing.T) {
	src := `const {build} = require("../../etc/passwd");`
	_, err := Run("entry.js", []byte(src), Options{Resolver: sandboxViolationResolver{}})
	require.Error(t, err)
	derr, ok := err.(*diagnostics.Error)
	require.True(t, ok)
	assert.Equal(t, diagnostics.SandboxViolation, derr.Kind)
}
