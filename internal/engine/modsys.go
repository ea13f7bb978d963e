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
	"regexp"
	"strings"

	"github.com/dop251/goja"

	"github.com/thestormforge/husako/internal/diagnostics"
)

// goja has no native ES module linkage, so every module body is rewritten
// into a CommonJS-shaped function `(exports, require) => { ... }` before
// being compiled. The rewrite only recognizes the subset of import/export
// syntax the builtin SDK and generated artifacts actually emit (named
// imports/exports, export function/const/class declarations) — this is
// not a general bundler.
var (
	namedImportRe  = regexp.MustCompile(`import\s*\{([^}]*)\}\s*from\s*["']([^"']+)["'];?`)
	exportClauseRe = regexp.MustCompile(`export\s*\{([^}]*)\};?`)
	exportDeclRe   = regexp.MustCompile(`export\s+(function|class|const|let|var)\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
)

func esmToCjs(src string) string {
	var exported []string

	src = namedImportRe.ReplaceAllStringFunc(src, func(m string) string {
		parts := namedImportRe.FindStringSubmatch(m)
		names := splitClauseNames(parts[1])
		specifier := parts[2]
		return "const {" + strings.Join(names, ", ") + "} = require(\"" + specifier + "\");"
	})

	src = exportClauseRe.ReplaceAllStringFunc(src, func(m string) string {
		parts := exportClauseRe.FindStringSubmatch(m)
		names := splitClauseNames(parts[1])
		exported = append(exported, names...)
		return ""
	})

	src = exportDeclRe.ReplaceAllStringFunc(src, func(m string) string {
		parts := exportDeclRe.FindStringSubmatch(m)
		exported = append(exported, parts[2])
		return parts[1] + " " + parts[2]
	})

	var b strings.Builder
	b.WriteString(src)
	for _, name := range exported {
		b.WriteString("\nexports.")
		b.WriteString(name)
		b.WriteString(" = ")
		b.WriteString(name)
		b.WriteString(";")
	}
	return b.String()
}

func splitClauseNames(clause string) []string {
	var out []string
	for _, part := range strings.Split(clause, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if idx := strings.Index(name, " as "); idx >= 0 {
			name = strings.TrimSpace(name[:idx])
		}
		out = append(out, name)
	}
	return out
}

// moduleRegistry caches compiled module exports by resolved name for one
// render run, matching the loader's "cache by resolved name within the
// load lifetime" rule.
type moduleRegistry struct {
	vm      *goja.Runtime
	resolve func(specifier, importer string) (resolvedName string, source []byte, err error)
	exports map[string]*goja.Object

	// resolveErr holds the first error resolve() itself returned (already a
	// *diagnostics.Error of the correct kind, e.g. SandboxViolation), set by
	// requireFn before it panics to unwind the goja call stack. A thrown Go
	// error loses its concrete type once it crosses that panic/recover
	// boundary, so Run checks this field instead of the error fn() returns.
	resolveErr error
}

func newModuleRegistry(vm *goja.Runtime, resolve func(string, string) (string, []byte, error)) *moduleRegistry {
	return &moduleRegistry{vm: vm, resolve: resolve, exports: make(map[string]*goja.Object)}
}

// run compiles and evaluates the module named name with body src (already
// type-erased plain script), returning its CommonJS exports object.
func (r *moduleRegistry) run(name string, src []byte) (*goja.Object, error) {
	if exp, ok := r.exports[name]; ok {
		return exp, nil
	}

	wrapped := "(function(exports, require) {\n" + esmToCjs(string(src)) + "\n})"
	prog, err := goja.Compile(name, wrapped, true)
	if err != nil {
		return nil, &diagnostics.Error{Kind: diagnostics.RuntimeInit, Cause: err}
	}
	fnValue, err := r.vm.RunProgram(prog)
	if err != nil {
		return nil, &diagnostics.Error{Kind: diagnostics.RuntimeExecution, Cause: err}
	}
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return nil, &diagnostics.Error{Kind: diagnostics.RuntimeInit, Cause: errNotAFunction}
	}

	exportsObj := r.vm.NewObject()
	r.exports[name] = exportsObj

	requireFn := func(call goja.FunctionCall) goja.Value {
		specifier := call.Argument(0).String()
		resolvedName, source, err := r.resolve(specifier, name)
		if err != nil {
			if r.resolveErr == nil {
				r.resolveErr = err
			}
			panic(r.vm.NewGoError(err))
		}
		childExports, err := r.run(resolvedName, source)
		if err != nil {
			panic(r.vm.NewGoError(err))
		}
		return childExports
	}

	if _, err := fn(goja.Undefined(), exportsObj, r.vm.ToValue(requireFn)); err != nil {
		delete(r.exports, name)
		return nil, &diagnostics.Error{Kind: diagnostics.RuntimeExecution, Cause: err}
	}
	return exportsObj, nil
}

var errNotAFunction = &diagnostics.Error{Kind: diagnostics.RuntimeInit, Reason: "module wrapper did not evaluate to a function"}
