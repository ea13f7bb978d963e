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

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thestormforge/husako/internal/diagnostics"
)

func TestRenderMinimal(t *testing.T) {
	src := `import { build } from "husako"; build([{apiVersion: "v1", kind: "Namespace", metadata: {name: "test"}}]);`
	out, err := Render(src, "test.ts", Options{ProjectRoot: t.TempDir()})
	require.NoError(t, err)
	assert.Contains(t, out, "apiVersion: v1")
	assert.Contains(t, out, "kind: Namespace")
	assert.Contains(t, out, "name: test")
}

func TestRenderMultiDocumentOrder(t *testing.T) {
	src := `import { build } from "husako"; build([{kind: "A"}, {kind: "B"}]);`
	out, err := Render(src, "test.ts", Options{ProjectRoot: t.TempDir()})
	require.NoError(t, err)

	idxA := indexOf(out, "kind: A")
	idxSep := indexOf(out, "---")
	idxB := indexOf(out, "kind: B")
	require.True(t, idxA >= 0 && idxSep > idxA && idxB > idxSep)
}

func TestRenderTypedBuilderViaPluginModule(t *testing.T) {
	deploymentSDK := `
import { Chain } from "husako/_base";

export function Deployment() {
  return new Chain({ apiVersion: "apps/v1", kind: "Deployment" });
}
`
	src := `
import { build, metadata } from "husako";
import { Deployment } from "deployment-sdk";
build([
  Deployment()._set("metadata", metadata().name("x").namespace("default"))._set("replicas", 2)
]);
`
	out, err := Render(src, "test.ts", Options{
		ProjectRoot:   t.TempDir(),
		PluginModules: map[string][]byte{"deployment-sdk": []byte(deploymentSDK)},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "apiVersion: apps/v1")
	assert.Contains(t, out, "kind: Deployment")
	assert.Contains(t, out, "name: x")
	assert.Contains(t, out, "replicas: 2")
}

func TestRenderStrictJSONViolationReportsPath(t *testing.T) {
	src := `import { build } from "husako"; build([{spec: {x: function(){}}}]);`
	_, err := Render(src, "test.ts", Options{ProjectRoot: t.TempDir()})
	require.Error(t, err)
	derr := err.(*diagnostics.Error)
	assert.Equal(t, diagnostics.StrictJSON, derr.Kind)
	assert.Equal(t, ".spec.x", derr.Path)
}

func TestRenderSandboxViolation(t *testing.T) {
	dir := t.TempDir()
	src := `import { helper } from "../../etc/passwd"; import { build } from "husako"; build([]);`
	_, err := Render(src, "test.ts", Options{ProjectRoot: dir, AllowOutsideRoot: false})
	require.Error(t, err)
	assert.Equal(t, diagnostics.SandboxViolation, err.(*diagnostics.Error).Kind)
}

func TestRenderEmptyResourceListSucceeds(t *testing.T) {
	src := `import { build } from "husako"; build([]);`
	out, err := Render(src, "test.ts", Options{ProjectRoot: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestRenderMissingBuildFails(t *testing.T) {
	src := `import { build } from "husako"; const x = 1;`
	_, err := Render(src, "test.ts", Options{ProjectRoot: t.TempDir()})
	require.Error(t, err)
	assert.Equal(t, diagnostics.BuildNotCalled, err.(*diagnostics.Error).Kind)
}

func TestRenderBuildCalledTwiceFails(t *testing.T) {
	src := `import { build } from "husako"; build([{kind:"A"}]); build([{kind:"B"}]);`
	_, err := Render(src, "test.ts", Options{ProjectRoot: t.TempDir()})
	require.Error(t, err)
	derr := err.(*diagnostics.Error)
	assert.Equal(t, diagnostics.BuildCalledMultiple, derr.Kind)
	assert.Equal(t, 2, derr.Count)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
