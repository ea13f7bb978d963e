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

package schema

import (
	"fmt"
	"sort"
	"strings"

	"k8s.io/apiextensions-apiserver/pkg/apis/apiextensions"
)

// Normalize walks specs in order and builds the Schema IR. It never
// touches the network or disk: every raw schema is already in memory.
func Normalize(specs []RawSpec) (*Corpus, []Diagnostic, error) {
	raw := newRawIndex(specs)
	corpus := &Corpus{byKey: make(map[string]*Module, len(specs))}
	var diags []Diagnostic

	for _, spec := range specs {
		mod := &Module{
			DiscoveryKey: spec.Key,
			SharedTypes:  make(map[string]*TypeDef),
		}

		for _, name := range raw.definitionNames(spec.Key) {
			def := raw.definition(spec.Key, name)
			b := &builder{moduleKey: spec.Key, raw: raw}
			t := b.build(def, name)
			diags = append(diags, b.diags...)
			mod.SharedTypes[name] = t
			mod.SharedTypeNames = append(mod.SharedTypeNames, name)
		}
		sort.Strings(mod.SharedTypeNames)

		if apiVersion, kind, ok := kindMarkers(spec.Schema); ok {
			b := &builder{moduleKey: spec.Key, raw: raw}
			top := b.build(spec.Schema, spec.Key)
			diags = append(diags, b.diags...)
			mod.Kinds = append(mod.Kinds, &KindDef{APIVersion: apiVersion, Kind: kind, TopLevel: top})
		}

		corpus.Modules = append(corpus.Modules, mod)
		corpus.byKey[spec.Key] = mod
	}

	return corpus, diags, nil
}

// kindMarkers detects a Kubernetes-style Kind marker from constant
// apiVersion and kind properties (a single-value enum or a default).
// x-kubernetes-group-version-kind is not consulted.
func kindMarkers(s apiextensions.JSONSchemaProps) (apiVersion, kind string, ok bool) {
	if av, ok1 := constProperty(s, "apiVersion"); ok1 {
		if k, ok2 := constProperty(s, "kind"); ok2 {
			return av, k, true
		}
	}
	return "", "", false
}

func constProperty(s apiextensions.JSONSchemaProps, name string) (string, bool) {
	prop, ok := s.Properties[name]
	if !ok {
		return "", false
	}
	if len(prop.Enum) == 1 {
		return fmt.Sprintf("%v", prop.Enum[0]), true
	}
	if prop.Default != nil {
		return fmt.Sprintf("%v", *prop.Default), true
	}
	return "", false
}

// builder converts one raw schema rooted at moduleKey into a TypeDef,
// collecting non-fatal diagnostics along the way.
type builder struct {
	moduleKey string
	raw       *rawIndex
	diags     []Diagnostic
}

func (b *builder) build(s apiextensions.JSONSchemaProps, path string) *TypeDef {
	if len(s.AllOf) > 0 {
		merged, diags := mergeAllOf(b.raw, b.moduleKey, s)
		b.diags = append(b.diags, diags...)
		s = merged
	}

	if s.Ref != nil {
		qualified, resolved, ok := b.raw.resolveRef(b.moduleKey, *s.Ref)
		if !ok {
			b.diags = append(b.diags, Diagnostic{Key: b.moduleKey, Message: "unresolved $ref", Ref: *s.Ref})
			return &TypeDef{Kind: KindAnyJSON}
		}
		_ = resolved
		return &TypeDef{Kind: KindRef, RefName: qualified}
	}

	if len(s.Enum) > 0 {
		values := make([]string, 0, len(s.Enum))
		for _, v := range s.Enum {
			values = append(values, fmt.Sprintf("%v", v))
		}
		return &TypeDef{Kind: KindEnum, EnumValues: values}
	}

	switch s.Type {
	case "object", "":
		if len(s.Properties) == 0 && s.Type != "object" {
			break
		}
		names := make([]string, 0, len(s.Properties))
		for name := range s.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		required := make(map[string]bool, len(s.Required))
		for _, r := range s.Required {
			required[r] = true
		}

		fields := make([]Field, 0, len(names))
		for _, name := range names {
			prop := s.Properties[name]
			fieldType := b.build(prop, path+"."+name)
			fields = append(fields, Field{
				Name:        name,
				Type:        fieldType,
				Required:    required[name],
				Pattern:     prop.Pattern,
				Minimum:     prop.Minimum,
				Maximum:     prop.Maximum,
				Description: prop.Description,
			})
		}
		return &TypeDef{Kind: KindObject, Fields: fields}
	case "array":
		elem := &TypeDef{Kind: KindAnyJSON}
		if s.Items != nil && s.Items.Schema != nil {
			elem = b.build(*s.Items.Schema, path+"[]")
		} else if s.Items != nil && len(s.Items.JSONSchemas) > 0 {
			elem = b.build(s.Items.JSONSchemas[0], path+"[]")
		}
		return &TypeDef{Kind: KindArray, Elem: elem}
	case "string":
		return &TypeDef{Kind: KindScalar, Scalar: "string"}
	case "integer":
		return &TypeDef{Kind: KindScalar, Scalar: "int"}
	case "number":
		return &TypeDef{Kind: KindScalar, Scalar: "num"}
	case "boolean":
		return &TypeDef{Kind: KindScalar, Scalar: "bool"}
	}
	return &TypeDef{Kind: KindAnyJSON}
}

// mergeAllOf merges s.AllOf top-down: intersect required (actually union,
// since every member's required fields must all be present), union
// properties, combine pattern, take the tightest numeric bounds.
// Conflicting, non-representable scalar kinds are reported as a diagnostic
// and collapse later to AnyJson when the merged schema reaches build().
func mergeAllOf(raw *rawIndex, moduleKey string, s apiextensions.JSONSchemaProps) (apiextensions.JSONSchemaProps, []Diagnostic) {
	var diags []Diagnostic
	conflict := false
	merged := s
	merged.AllOf = nil
	if merged.Properties == nil {
		merged.Properties = map[string]apiextensions.JSONSchemaProps{}
	}

	for _, member := range s.AllOf {
		resolvedMember := member
		if member.Ref != nil {
			_, m, ok := raw.resolveRef(moduleKey, *member.Ref)
			if !ok {
				diags = append(diags, Diagnostic{Key: moduleKey, Message: "unresolved $ref in allOf", Ref: *member.Ref})
				continue
			}
			resolvedMember = m
		}
		if len(resolvedMember.AllOf) > 0 {
			nested, nestedDiags := mergeAllOf(raw, moduleKey, resolvedMember)
			diags = append(diags, nestedDiags...)
			resolvedMember = nested
		}

		for name, prop := range resolvedMember.Properties {
			merged.Properties[name] = prop
		}
		merged.Required = append(merged.Required, resolvedMember.Required...)
		if merged.Pattern == "" {
			merged.Pattern = resolvedMember.Pattern
		}
		merged.Minimum = tighterMin(merged.Minimum, resolvedMember.Minimum)
		merged.Maximum = tighterMax(merged.Maximum, resolvedMember.Maximum)
		if merged.Type == "" {
			merged.Type = resolvedMember.Type
		} else if resolvedMember.Type != "" && resolvedMember.Type != merged.Type {
			conflict = true
		}
	}
	if conflict {
		diags = append(diags, Diagnostic{Key: moduleKey, Message: "conflicting types in allOf"})
		merged.Type = ""
		merged.Properties = nil
		return merged, diags
	}
	if merged.Type == "" {
		merged.Type = "object"
	}
	return merged, diags
}

func tighterMin(a, b *float64) *float64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if *b > *a {
		return b
	}
	return a
}

func tighterMax(a, b *float64) *float64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if *b < *a {
		return b
	}
	return a
}

// rawIndex provides raw, pre-TypeDef lookups for $ref and allOf
// resolution: definitions are kept at the apiextensions.JSONSchemaProps
// level because merging allOf requires each member's actual Properties/
// Required, not a lazily-resolved Ref handle.
type rawIndex struct {
	bySpecKey map[string]apiextensions.JSONSchemaProps
	defs      map[string]map[string]apiextensions.JSONSchemaProps
}

func newRawIndex(specs []RawSpec) *rawIndex {
	idx := &rawIndex{
		bySpecKey: make(map[string]apiextensions.JSONSchemaProps, len(specs)),
		defs:      make(map[string]map[string]apiextensions.JSONSchemaProps, len(specs)),
	}
	for _, spec := range specs {
		idx.bySpecKey[spec.Key] = spec.Schema
		idx.defs[spec.Key] = spec.Schema.Definitions
	}
	return idx
}

func (r *rawIndex) definitionNames(key string) []string {
	names := make([]string, 0, len(r.defs[key]))
	for name := range r.defs[key] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *rawIndex) definition(key, name string) apiextensions.JSONSchemaProps {
	return r.defs[key][name]
}

// resolveRef parses ref ("#/definitions/Name" local, or
// "<moduleKey>#/definitions/Name" cross-module) and returns the qualified
// name used as TypeDef.RefName plus the raw schema it points to.
func (r *rawIndex) resolveRef(fromModuleKey, ref string) (qualifiedName string, resolved apiextensions.JSONSchemaProps, ok bool) {
	moduleKey := fromModuleKey
	pointer := ref
	if idx := strings.Index(ref, "#"); idx > 0 {
		moduleKey = ref[:idx]
		pointer = ref[idx:]
	}
	name := strings.TrimPrefix(pointer, "#/definitions/")
	defsForModule, hasModule := r.defs[moduleKey]
	if !hasModule {
		return "", apiextensions.JSONSchemaProps{}, false
	}
	def, hasDef := defsForModule[name]
	if !hasDef {
		return "", apiextensions.JSONSchemaProps{}, false
	}
	return moduleKey + "#" + name, def, true
}
