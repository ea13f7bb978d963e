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

// Package loader resolves and loads script modules for the engine host:
// the builtin SDK, generated types under registered virtual roots, plugin
// modules held in memory, and project files on disk, enforcing the
// project-root sandbox for the last of those.
package loader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/thestormforge/husako/internal/compile"
	"github.com/thestormforge/husako/internal/diagnostics"
	"github.com/thestormforge/husako/internal/sdk"
)

// defaultVirtualRoots are the registered prefixes mapped into
// GeneratedTypesDir; additional roots (e.g. a project-specific CRD group)
// can be supplied via Options.VirtualRoots.
var defaultVirtualRoots = []string{"k8s", "helm", "fluxcd"}

// Options configures a Loader for one render run.
type Options struct {
	ProjectRoot       string
	AllowOutsideRoot  bool
	GeneratedTypesDir string
	PluginModules     map[string][]byte
	VirtualRoots      []string
}

// Loader resolves module specifiers and loads their bytes, caching by
// resolved name for the lifetime of one render.
type Loader struct {
	opts  Options
	roots []string
	cache map[string][]byte
}

// New builds a Loader for one render run. Its cache is private to this
// instance and never shared across renders.
func New(opts Options) *Loader {
	roots := opts.VirtualRoots
	if roots == nil {
		roots = defaultVirtualRoots
	}
	return &Loader{opts: opts, roots: roots, cache: make(map[string][]byte)}
}

// Resolve maps specifier s, imported from module importer (the empty
// string for the entry module), to a resolved name and its bytes ready
// for the engine. Typed-extension sources are compiled to plain script
// before being returned.
func (l *Loader) Resolve(s, importer string) (resolvedName string, source []byte, err error) {
	resolvedName, isSandboxed, err := l.resolveName(s, importer)
	if err != nil {
		return "", nil, err
	}

	if cached, ok := l.cache[resolvedName]; ok {
		return resolvedName, cached, nil
	}

	raw, fromDisk, err := l.readBytes(s, resolvedName, isSandboxed)
	if err != nil {
		return "", nil, err
	}

	out := raw
	if fromDisk && isTypedExtension(resolvedName) {
		js, err := compile.Compile(string(raw), resolvedName)
		if err != nil {
			return "", nil, err
		}
		out = []byte(js)
	}

	l.cache[resolvedName] = out
	return resolvedName, out, nil
}

// resolveName implements the 5-step specifier resolution. isSandboxed
// reports whether the result is a real filesystem path the sandbox rule
// must be checked against (builtin/virtual/plugin modules are exempt).
func (l *Loader) resolveName(s, importer string) (name string, isSandboxed bool, err error) {
	// 1 & 2: builtin SDK and its bundled submodules.
	if _, ok := sdk.Module(s); ok {
		return s, false, nil
	}

	// 3: registered virtual roots resolve against GeneratedTypesDir.
	if root, rest, ok := matchVirtualRoot(s, l.roots); ok {
		return filepath.Join(l.opts.GeneratedTypesDir, root, rest+".js"), false, nil
	}

	// 4: plugin modules held in memory.
	if _, ok := l.opts.PluginModules[s]; ok {
		return s, false, nil
	}

	// 5: path relative to the importing module, canonicalized.
	base := l.opts.ProjectRoot
	if importer != "" {
		base = filepath.Dir(importer)
	}
	resolved := filepath.Clean(filepath.Join(base, s))
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", false, &diagnostics.Error{Kind: diagnostics.RuntimeInit, Cause: err}
	}
	return abs, true, nil
}

// readBytes fetches the bytes for an already-resolved name, applying the
// sandbox rule first when the name is a real filesystem path.
func (l *Loader) readBytes(specifier, resolvedName string, isSandboxed bool) ([]byte, bool, error) {
	if src, ok := sdk.Module(specifier); ok {
		return []byte(src), false, nil
	}
	if b, ok := l.opts.PluginModules[specifier]; ok {
		return b, false, nil
	}

	if isSandboxed && !l.opts.AllowOutsideRoot {
		root, err := filepath.Abs(l.opts.ProjectRoot)
		if err != nil {
			return nil, false, &diagnostics.Error{Kind: diagnostics.RuntimeInit, Cause: err}
		}
		if !withinRoot(root, resolvedName) {
			return nil, false, &diagnostics.Error{Kind: diagnostics.SandboxViolation, Path: resolvedName}
		}
	}

	b, err := os.ReadFile(resolvedName)
	if err != nil {
		return nil, false, &diagnostics.Error{Kind: diagnostics.RuntimeInit, Cause: err}
	}
	return b, isSandboxed, nil
}

func withinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

func matchVirtualRoot(specifier string, roots []string) (root, rest string, ok bool) {
	for _, r := range roots {
		prefix := r + "/"
		if strings.HasPrefix(specifier, prefix) {
			return r, strings.TrimPrefix(specifier, prefix), true
		}
	}
	return "", "", false
}

func isTypedExtension(name string) bool {
	switch filepath.Ext(name) {
	case ".ts", ".husako":
		return true
	default:
		return false
	}
}
