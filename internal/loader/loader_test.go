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

package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thestormforge/husako/internal/diagnostics"
)

func TestResolveBuiltinSDK(t *testing.T) {
	l := New(Options{ProjectRoot: t.TempDir()})
	name, src, err := l.Resolve("husako", "")
	require.NoError(t, err)
	assert.Equal(t, "husako", name)
	assert.Contains(t, string(src), "__husako_build")
}

func TestResolveBundledSubmodule(t *testing.T) {
	l := New(Options{ProjectRoot: t.TempDir()})
	_, src, err := l.Resolve("husako/_base", "")
	require.NoError(t, err)
	assert.Contains(t, string(src), "class Chain")
}

func TestResolveVirtualRoot(t *testing.T) {
	dir := t.TempDir()
	typesDir := filepath.Join(dir, "types")
	require.NoError(t, os.MkdirAll(filepath.Join(typesDir, "k8s/apps"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(typesDir, "k8s/apps/v1.js"), []byte("export function Deployment(){}"), 0o644))

	l := New(Options{ProjectRoot: dir, GeneratedTypesDir: typesDir})
	_, src, err := l.Resolve("k8s/apps/v1", "")
	require.NoError(t, err)
	assert.Contains(t, string(src), "Deployment")
}

func TestResolvePluginModule(t *testing.T) {
	l := New(Options{ProjectRoot: t.TempDir(), PluginModules: map[string][]byte{"my-plugin": []byte("export const x = 1;")}})
	_, src, err := l.Resolve("my-plugin", "")
	require.NoError(t, err)
	assert.Equal(t, "export const x = 1;", string(src))
}

func TestResolveRelativeFileWithinRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helper.js"), []byte("export const y = 2;"), 0o644))

	l := New(Options{ProjectRoot: dir})
	entry := filepath.Join(dir, "main.js")
	_, src, err := l.Resolve("./helper.js", entry)
	require.NoError(t, err)
	assert.Equal(t, "export const y = 2;", string(src))
}

func TestResolveRelativeFileCompilesTypedExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helper.ts"), []byte("const z: number = 3; export { z };"), 0o644))

	l := New(Options{ProjectRoot: dir})
	entry := filepath.Join(dir, "main.ts")
	_, src, err := l.Resolve("./helper.ts", entry)
	require.NoError(t, err)
	assert.NotContains(t, string(src), "number")
	assert.Contains(t, string(src), "const z = 3;")
}

func TestResolveSandboxViolationOutsideRoot(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "main.js")

	l := New(Options{ProjectRoot: dir, AllowOutsideRoot: false})
	_, _, err := l.Resolve("../../etc/passwd", entry)
	require.Error(t, err)
	assert.Equal(t, diagnostics.SandboxViolation, err.(*diagnostics.Error).Kind)
}

func TestResolveAllowOutsideRootPermitsEscape(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "shared.js"), []byte("export const w = 4;"), 0o644))

	entry := filepath.Join(dir, "main.js")
	rel, err := filepath.Rel(dir, filepath.Join(outside, "shared.js"))
	require.NoError(t, err)

	l := New(Options{ProjectRoot: dir, AllowOutsideRoot: true})
	_, src, err := l.Resolve(rel, entry)
	require.NoError(t, err)
	assert.Equal(t, "export const w = 4;", string(src))
}

func TestResolveCachesByResolvedName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "helper.js")
	require.NoError(t, os.WriteFile(path, []byte("export const v = 1;"), 0o644))

	l := New(Options{ProjectRoot: dir})
	entry := filepath.Join(dir, "main.js")
	_, first, err := l.Resolve("./helper.js", entry)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("export const v = 2;"), 0o644))
	_, second, err := l.Resolve("./helper.js", entry)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}
