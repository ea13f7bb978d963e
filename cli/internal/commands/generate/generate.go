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

// Package generate implements the `generate` CLI command: it resolves
// schema sources (spec.md §1's "out of scope... bytes -> schema JSON
// producer" collaborators), hands the resulting schema map to
// internal/gen, and writes the resulting artifacts under the project's
// generated types directory.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/apiextensions-apiserver/pkg/apis/apiextensions"

	"github.com/thestormforge/husako/cli/internal/commander"
	"github.com/thestormforge/husako/internal/config"
	"github.com/thestormforge/husako/internal/gen"
	"github.com/thestormforge/husako/internal/pkgsource"
	"github.com/thestormforge/husako/internal/schema"
)

// Options is the configuration for the generate command.
type Options struct {
	Config *config.HusakoConfig

	commander.IOStreams

	Sources map[string]pkgsource.Source
}

// NewCommand returns the `generate` cobra command.
func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate typed chain builders from configured schema sources",
		Args:  cobra.NoArgs,

		PreRun: func(cmd *cobra.Command, args []string) { commander.SetStreams(&o.IOStreams, cmd) },
		RunE:   commander.WithContextE(o.run),
	}
	return cmd
}

func (o *Options) run(ctx context.Context) error {
	cfg := o.Config.Data()

	sources := o.Sources
	if sources == nil {
		sources = sourcesFromConfig(cfg)
	}

	resolved, err := resolveAll(ctx, sources)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(resolved))
	for k := range resolved {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	specs := make([]schema.RawSpec, 0, len(keys))
	for _, key := range keys {
		var raw apiextensions.JSONSchemaProps
		if err := json.Unmarshal(resolved[key], &raw); err != nil {
			return err
		}
		specs = append(specs, schema.RawSpec{Key: key, Schema: raw})
	}

	result, err := gen.Generate(gen.Options{Specs: specs})
	if err != nil {
		return err
	}

	for _, d := range result.Diagnostics {
		if o.ErrOut != nil {
			fmt.Fprintln(o.ErrOut, "diagnostic:", d.Key, d.Message, d.Ref)
		}
	}

	return writeArtifacts(cfg.ProjectRoot, result.Artifacts)
}

func sourcesFromConfig(cfg config.Config) map[string]pkgsource.Source {
	sources := make(map[string]pkgsource.Source, len(cfg.ChartSources))
	for _, cs := range cfg.ChartSources {
		sources[cs.Name] = &pkgsource.FileSource{
			Name:        cs.Name,
			Path:        filepath.Join(cfg.SchemaStore, cs.Name+".json"),
			ProjectRoot: cfg.ProjectRoot,
		}
	}
	return sources
}

func resolveAll(ctx context.Context, sources map[string]pkgsource.Source) (map[string]json.RawMessage, error) {
	return pkgsource.ResolveAll(ctx, sources)
}

func writeArtifacts(projectRoot string, artifacts map[string][]byte) error {
	paths := make([]string, 0, len(artifacts))
	for p := range artifacts {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var g errgroup.Group
	for _, p := range paths {
		p := p
		g.Go(func() error {
			full := filepath.Join(projectRoot, p)
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return err
			}
			return os.WriteFile(full, artifacts[p], 0o644)
		})
	}
	return g.Wait()
}
