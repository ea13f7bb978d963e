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

// Package render composes compile, loader, engine, and emit into the
// single render(source, filename, options) entry point.
package render

import (
	"path/filepath"

	"github.com/thestormforge/husako/internal/compile"
	"github.com/thestormforge/husako/internal/emit"
	"github.com/thestormforge/husako/internal/engine"
	"github.com/thestormforge/husako/internal/loader"
)

// Options mirrors spec.md §3's RenderOptions entity.
type Options struct {
	ProjectRoot       string
	AllowOutsideRoot  bool
	TimeoutMS         int
	MaxHeapMB         int
	GeneratedTypesDir string
	PluginModules     map[string][]byte
}

// Render transpiles source (logically named filename), executes it, and
// emits the captured payload as canonical YAML. Each call owns its own
// module loader and engine instance; nothing survives the call.
func Render(source, filename string, opts Options) (string, error) {
	js, err := compile.Compile(source, filename)
	if err != nil {
		return "", err
	}

	l := loader.New(loader.Options{
		ProjectRoot:       opts.ProjectRoot,
		AllowOutsideRoot:  opts.AllowOutsideRoot,
		GeneratedTypesDir: opts.GeneratedTypesDir,
		PluginModules:     opts.PluginModules,
	})

	entryPath := filename
	if !filepath.IsAbs(entryPath) {
		entryPath = filepath.Join(opts.ProjectRoot, filename)
	}

	payload, err := engine.Run(entryPath, []byte(js), engine.Options{
		Resolver:  l,
		TimeoutMS: opts.TimeoutMS,
		MaxHeapMB: opts.MaxHeapMB,
	})
	if err != nil {
		return "", err
	}

	return emit.Serialize(payload)
}
