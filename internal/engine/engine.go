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

// Package engine runs one compiled script in an embedded ECMAScript
// interpreter (goja), exposing only a single host function, build(docs),
// and bounding the run by wall-clock timeout and heap size.
package engine

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/dop251/goja"

	"github.com/thestormforge/husako/internal/diagnostics"
	"github.com/thestormforge/husako/internal/ordered"
)

// Resolver resolves and loads a module's bytes, already type-erased when
// needed. It is satisfied by *loader.Loader.
type Resolver interface {
	Resolve(specifier, importer string) (resolvedName string, source []byte, err error)
}

// Options configures one run.
type Options struct {
	Resolver  Resolver
	TimeoutMS int
	MaxHeapMB int
}

// Host wraps one goja.Runtime scoped to a single render call. Nothing
// about it is reused across renders.
type Host struct {
	vm         *goja.Runtime
	opts       Options
	buildCalls int
	payload    goja.Value
	interrupt  diagnostics.Kind
}

// Run evaluates entrySource (named entryName, already type-erased) as the
// program's entry module and returns the strict-JSON payload captured by
// its single build(...) call.
func Run(entryName string, entrySource []byte, opts Options) (interface{}, error) {
	h := &Host{vm: goja.New(), opts: opts}

	h.vm.Set("__husako_build", func(call goja.FunctionCall) goja.Value {
		h.buildCalls++
		h.payload = call.Argument(0)
		return goja.Undefined()
	})

	stop := h.startWatchdog()
	defer stop()

	registry := newModuleRegistry(h.vm, opts.Resolver.Resolve)
	if _, err := registry.run(entryName, entrySource); err != nil {
		if h.interrupt != "" {
			return nil, &diagnostics.Error{Kind: h.interrupt, Cause: err}
		}
		if registry.resolveErr != nil {
			return nil, registry.resolveErr
		}
		return nil, err
	}

	switch {
	case h.buildCalls == 0:
		return nil, &diagnostics.Error{Kind: diagnostics.BuildNotCalled}
	case h.buildCalls > 1:
		return nil, &diagnostics.Error{Kind: diagnostics.BuildCalledMultiple, Count: h.buildCalls}
	}

	return toStrictPayload(h.payload)
}

// toStrictPayload converts the build(...) argument into a Payload: a Go
// slice of documents, each independently strict-JSON-converted with its
// own path starting at the document root (so a nested failure reports
// e.g. ".spec.x", not "[0].spec.x"). A non-array argument is treated as
// the single document that argument represents.
func toStrictPayload(payload goja.Value) (interface{}, error) {
	obj, ok := payload.(*goja.Object)
	if !ok || obj.ClassName() != "Array" {
		return toStrictJSON(payload, "", make(map[*goja.Object]bool))
	}

	length := int(obj.Get("length").ToInteger())
	docs := make([]interface{}, 0, length)
	for i := 0; i < length; i++ {
		doc, err := toStrictJSON(obj.Get(fmt.Sprintf("%d", i)), "", make(map[*goja.Object]bool))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// startWatchdog arms the wall-clock timeout and heap-cap interrupts, and
// returns a function that disarms them once the run completes.
func (h *Host) startWatchdog() func() {
	done := make(chan struct{})
	var timer *time.Timer
	if h.opts.TimeoutMS > 0 {
		timer = time.AfterFunc(time.Duration(h.opts.TimeoutMS)*time.Millisecond, func() {
			h.interrupt = diagnostics.Timeout
			h.vm.Interrupt(errors.New("timeout"))
		})
	}
	if h.opts.MaxHeapMB > 0 {
		go func() {
			ticker := time.NewTicker(25 * time.Millisecond)
			defer ticker.Stop()
			var mem runtime.MemStats
			limit := uint64(h.opts.MaxHeapMB) * 1024 * 1024
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					runtime.ReadMemStats(&mem)
					if mem.HeapAlloc > limit {
						h.interrupt = diagnostics.OutOfMemory
						h.vm.Interrupt(errors.New("out of memory"))
						return
					}
				}
			}
		}()
	}
	return func() {
		close(done)
		if timer != nil {
			timer.Stop()
		}
	}
}

// toStrictJSON walks a goja.Value, converting it to a Go value built only
// from ordered maps, slices, strings, finite float64/int64, bools, and
// nil. Objects exposing a callable _build method (the SDK chain terminal)
// are substituted by the result of calling it instead of being rejected
// for carrying functions.
func toStrictJSON(v goja.Value, path string, seen map[*goja.Object]bool) (interface{}, error) {
	if v == nil || goja.IsUndefined(v) {
		return nil, &diagnostics.Error{Kind: diagnostics.StrictJSON, Reason: "undefined", Path: path}
	}
	if goja.IsNull(v) {
		return nil, nil
	}

	if obj, ok := v.(*goja.Object); ok {
		if builder := obj.Get("_build"); builder != nil && !goja.IsUndefined(builder) {
			if fn, ok := goja.AssertFunction(builder); ok {
				result, err := fn(obj)
				if err != nil {
					return nil, &diagnostics.Error{Kind: diagnostics.RuntimeExecution, Cause: err}
				}
				return toStrictJSON(result, path, seen)
			}
		}

		switch obj.ClassName() {
		case "Function":
			return nil, &diagnostics.Error{Kind: diagnostics.StrictJSON, Reason: "function", Path: path}
		case "Symbol":
			return nil, &diagnostics.Error{Kind: diagnostics.StrictJSON, Reason: "symbol", Path: path}
		case "Array":
			if seen[obj] {
				return nil, &diagnostics.Error{Kind: diagnostics.StrictJSON, Reason: "cycle", Path: path}
			}
			seen[obj] = true
			defer delete(seen, obj)

			length := int(obj.Get("length").ToInteger())
			out := make([]interface{}, 0, length)
			for i := 0; i < length; i++ {
				elem, err := toStrictJSON(obj.Get(fmt.Sprintf("%d", i)), fmt.Sprintf("%s[%d]", path, i), seen)
				if err != nil {
					return nil, err
				}
				out = append(out, elem)
			}
			return out, nil
		default:
			if seen[obj] {
				return nil, &diagnostics.Error{Kind: diagnostics.StrictJSON, Reason: "cycle", Path: path}
			}
			seen[obj] = true
			defer delete(seen, obj)

			out := ordered.NewMap()
			for _, key := range obj.Keys() {
				child, err := toStrictJSON(obj.Get(key), path+"."+key, seen)
				if err != nil {
					return nil, err
				}
				out.Set(key, child)
			}
			return out, nil
		}
	}

	switch val := v.Export().(type) {
	case int64:
		return val, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, &diagnostics.Error{Kind: diagnostics.StrictJSON, Reason: "non-finite number", Path: path}
		}
		return val, nil
	case string:
		return val, nil
	case bool:
		return val, nil
	default:
		return nil, &diagnostics.Error{Kind: diagnostics.StrictJSON, Reason: "unrepresentable value", Path: path}
	}
}
