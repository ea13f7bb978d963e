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

// Package gen is the generate orchestrator (spec.md §4.J): schema map in,
// {path -> artifact bytes} map out, deterministic and idempotent.
package gen

import (
	"encoding/json"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/thestormforge/husako/internal/chain"
	"github.com/thestormforge/husako/internal/gen/declarations"
	"github.com/thestormforge/husako/internal/gen/runtime"
	"github.com/thestormforge/husako/internal/schema"
)

// Options is the generate entry point's input: discovery-key order matters
// and is preserved through to Normalize and chain IR derivation.
type Options struct {
	Specs []schema.RawSpec
}

// Result is the generate entry point's output.
type Result struct {
	Artifacts   map[string][]byte
	Diagnostics []schema.Diagnostic
}

const typesRoot = ".husako/types/"

// Generate walks Options.Specs through Normalize, then chain.Build, then
// the declarations and runtime emitters, one discovery key at a time.
// Per-key emission is parallelized with an errgroup since discovery keys
// never mutate shared state; the result map is assembled deterministically
// from each key's own bytes, so goroutine scheduling never affects output.
func Generate(opts Options) (*Result, error) {
	corpus, diags, err := schema.Normalize(opts.Specs)
	if err != nil {
		return nil, err
	}

	ir := chain.Build(corpus)

	byModule := groupByModule(ir)

	artifacts := make(map[string][]byte)
	meta := make(map[string]map[string]chain.FieldConstraint)

	var g errgroup.Group
	type keyed struct {
		declPath, runtimePath string
		declBytes, runBytes   []byte
	}
	outputs := make([]keyed, len(corpus.Modules))

	for i, mod := range corpus.Modules {
		i, mod := i, mod
		g.Go(func() error {
			grouped := byModule[mod.DiscoveryKey]
			declBytes := declarations.Emit(grouped.chains, grouped.starters)
			runBytes := runtime.Emit(grouped.chains, grouped.starters)
			outputs[i] = keyed{
				declPath:   typesRoot + mod.DiscoveryKey + ".d.ts",
				runtimePath: typesRoot + mod.DiscoveryKey + ".js",
				declBytes:  declBytes,
				runBytes:   runBytes,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, o := range outputs {
		artifacts[o.declPath] = o.declBytes
		artifacts[o.runtimePath] = o.runBytes
	}

	for _, c := range ir.Chains {
		meta[c.Name] = ir.Constraints[c.Name]
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}
	artifacts[typesRoot+"_chains.meta.json"] = metaBytes

	return &Result{Artifacts: artifacts, Diagnostics: diags}, nil
}

type moduleChains struct {
	chains   []*chain.Chain
	starters []*chain.Starter
}

// groupByModule partitions the IR's flat Chains/Starters lists back by the
// discovery key each was derived from (encoded as the "<key>#..." prefix
// of Chain.TargetKey).
func groupByModule(ir *chain.IR) map[string]moduleChains {
	byKey := make(map[string]moduleChains)

	chainModule := make(map[string]string, len(ir.Chains))
	for _, c := range ir.Chains {
		key := moduleKeyOf(c.TargetKey)
		chainModule[c.Name] = key
		g := byKey[key]
		g.chains = append(g.chains, c)
		byKey[key] = g
	}

	for _, s := range ir.Starters {
		key := chainModule[s.ChainName]
		g := byKey[key]
		g.starters = append(g.starters, s)
		byKey[key] = g
	}

	return byKey
}

func moduleKeyOf(targetKey string) string {
	if idx := strings.Index(targetKey, "#"); idx >= 0 {
		return targetKey[:idx]
	}
	return targetKey
}
