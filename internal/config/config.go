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

// Package config loads the husako project configuration: project root,
// sandbox policy, resource bounds, and schema/chart sources. It never
// reaches into render or generate directly — it only produces a typed
// Config record those packages treat as input.
package config

import (
	"os"
	"strconv"

	"sigs.k8s.io/yaml"
)

// ChartSource names one Helm chart that contributes a values schema to
// generate, consumed by the out-of-core package-source collaborators.
type ChartSource struct {
	Name    string `json:"name"`
	Repo    string `json:"repo"`
	Chart   string `json:"chart"`
	Version string `json:"version"`
}

// Config is the project-wide configuration record every render/generate
// call is seeded from.
type Config struct {
	ProjectRoot       string        `json:"projectRoot,omitempty"`
	AllowOutsideRoot  bool          `json:"allowOutsideRoot,omitempty"`
	TimeoutMS         int           `json:"timeoutMs,omitempty"`
	MaxHeapMB         int           `json:"maxHeapMb,omitempty"`
	SchemaStore       string        `json:"schemaStore,omitempty"`
	GeneratedTypesDir string        `json:"generatedTypesDir,omitempty"`
	VirtualRoots      []string      `json:"virtualRoots,omitempty"`
	ChartSources      []ChartSource `json:"chartSources,omitempty"`
}

// Loader populates or overrides fields of cfg; loaders run in sequence and
// each may see and adjust the previous loader's result.
type Loader func(cfg *Config) error

// HusakoConfig is the mutable holder Load populates, mirroring the
// teacher's RedSkyConfig/Load-chain shape.
type HusakoConfig struct {
	// Filename is the project config file path; if empty, defaults to
	// "husako.yaml" under ProjectRoot once defaultLoader has run.
	Filename string

	data Config
}

// Load runs the standard loader chain (defaults, file, environment) plus
// any extra loaders, in order. Later loaders may override earlier ones.
func (c *HusakoConfig) Load(extra ...Loader) error {
	loaders := []Loader{defaultLoader, c.fileLoader, envLoader}
	loaders = append(loaders, extra...)
	for _, l := range loaders {
		if err := l(&c.data); err != nil {
			return err
		}
	}
	return nil
}

// Data returns the currently loaded configuration.
func (c *HusakoConfig) Data() Config { return c.data }

var defaultVirtualRoots = []string{"k8s", "helm", "fluxcd"}

func defaultLoader(cfg *Config) error {
	if cfg.ProjectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		cfg.ProjectRoot = wd
	}
	if cfg.TimeoutMS == 0 {
		cfg.TimeoutMS = 30000
	}
	if cfg.MaxHeapMB == 0 {
		cfg.MaxHeapMB = 256
	}
	if cfg.GeneratedTypesDir == "" {
		cfg.GeneratedTypesDir = cfg.ProjectRoot + "/.husako/types"
	}
	if cfg.SchemaStore == "" {
		cfg.SchemaStore = cfg.ProjectRoot + "/.husako/cache"
	}
	if len(cfg.VirtualRoots) == 0 {
		cfg.VirtualRoots = append([]string(nil), defaultVirtualRoots...)
	}
	return nil
}

// fileLoader reads c.Filename (defaulting to "<ProjectRoot>/husako.yaml") if
// it exists, overlaying any fields it sets onto cfg. A missing file is not
// an error: a husako project need not have one.
func (c *HusakoConfig) fileLoader(cfg *Config) error {
	filename := c.Filename
	if filename == "" {
		filename = cfg.ProjectRoot + "/husako.yaml"
	}

	b, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var fromFile Config
	if err := yaml.Unmarshal(b, &fromFile); err != nil {
		return err
	}
	overlay(cfg, &fromFile)
	return nil
}

// envLoader overrides cfg with HUSAKO_* environment variables, matching the
// teacher's layered-config philosophy of file then environment.
func envLoader(cfg *Config) error {
	if v := os.Getenv("HUSAKO_PROJECT_ROOT"); v != "" {
		cfg.ProjectRoot = v
	}
	if v := os.Getenv("HUSAKO_ALLOW_OUTSIDE_ROOT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		cfg.AllowOutsideRoot = b
	}
	if v := os.Getenv("HUSAKO_TIMEOUT_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		cfg.TimeoutMS = n
	}
	if v := os.Getenv("HUSAKO_MAX_HEAP_MB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		cfg.MaxHeapMB = n
	}
	return nil
}

func overlay(dst, src *Config) {
	if src.ProjectRoot != "" {
		dst.ProjectRoot = src.ProjectRoot
	}
	if src.AllowOutsideRoot {
		dst.AllowOutsideRoot = true
	}
	if src.TimeoutMS != 0 {
		dst.TimeoutMS = src.TimeoutMS
	}
	if src.MaxHeapMB != 0 {
		dst.MaxHeapMB = src.MaxHeapMB
	}
	if src.SchemaStore != "" {
		dst.SchemaStore = src.SchemaStore
	}
	if src.GeneratedTypesDir != "" {
		dst.GeneratedTypesDir = src.GeneratedTypesDir
	}
	if len(src.VirtualRoots) > 0 {
		dst.VirtualRoots = src.VirtualRoots
	}
	if len(src.ChartSources) > 0 {
		dst.ChartSources = src.ChartSources
	}
}
