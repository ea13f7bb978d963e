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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thestormforge/husako/internal/config"
)

func TestRenderOnceWritesToStdout(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.ts")
	src := `import { build } from "husako"; build([{apiVersion: "v1", kind: "Namespace", metadata: {name: "test"}}]);`
	require.NoError(t, os.WriteFile(file, []byte(src), 0o644))

	var out bytes.Buffer
	o := &Options{
		Config: &config.HusakoConfig{},
		File:   file,
	}
	o.Out = &out
	require.NoError(t, o.Config.Load(func(cfg *config.Config) error {
		cfg.ProjectRoot = dir
		return nil
	}))

	require.NoError(t, o.renderOnce())
	assert.Contains(t, out.String(), "kind: Namespace")
}

func TestRenderOnceWritesToOutputFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.ts")
	outFile := filepath.Join(dir, "out.yaml")
	src := `import { build } from "husako"; build([{kind: "A"}]);`
	require.NoError(t, os.WriteFile(file, []byte(src), 0o644))

	o := &Options{
		Config:     &config.HusakoConfig{},
		File:       file,
		OutputFile: outFile,
	}
	require.NoError(t, o.Config.Load(func(cfg *config.Config) error {
		cfg.ProjectRoot = dir
		return nil
	}))

	require.NoError(t, o.renderOnce())
	b, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), "kind: A")
}
