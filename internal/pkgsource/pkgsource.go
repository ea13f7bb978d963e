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

// Package pkgsource resolves a chart/package reference to its values
// schema document. Only the file-based source is implemented here;
// network-backed sources (git, OCI, registry, ArtifactHub) are collaborator
// seams left for a transport layer, out of scope for the core pipeline.
package pkgsource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Source resolves a single named package to its JSON values schema.
type Source interface {
	Fetch(ctx context.Context) (json.RawMessage, error)
}

// FileSource resolves a schema from a file on disk, relative to
// ProjectRoot.
type FileSource struct {
	Name        string
	Path        string
	ProjectRoot string
}

// Fetch reads and minimally validates the schema file. The schema must
// either declare type "object" or carry a "properties" member, matching
// the validation the original chart resolver performs.
func (s FileSource) Fetch(_ context.Context) (json.RawMessage, error) {
	resolved := s.Path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(s.ProjectRoot, resolved)
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("chart %q: file not found: %s", s.Name, resolved)
		}
		return nil, fmt.Errorf("chart %q: read %s: %w", s.Name, resolved, err)
	}

	var probe struct {
		Type       string          `json:"type"`
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(content, &probe); err != nil {
		return nil, fmt.Errorf("chart %q: invalid JSON in %s: %w", s.Name, resolved, err)
	}
	if probe.Type != "object" && probe.Properties == nil {
		return nil, fmt.Errorf("chart %q: schema must have type \"object\" or \"properties\"", s.Name)
	}

	return json.RawMessage(content), nil
}

// ResolveAll fetches every named chart source, returning chart name to
// schema document.
func ResolveAll(ctx context.Context, sources map[string]Source) (map[string]json.RawMessage, error) {
	result := make(map[string]json.RawMessage, len(sources))
	for name, source := range sources {
		schema, err := source.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		result[name] = schema
	}
	return result, nil
}
