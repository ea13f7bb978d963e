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

// Package schema loads an OpenAPI-v3-subset schema corpus (including CRD
// and Helm values schemas) and normalizes it into the internal Schema IR:
// Module/KindDef/TypeDef trees with $ref resolved and allOf pre-merged.
package schema

import (
	"k8s.io/apiextensions-apiserver/pkg/apis/apiextensions"
)

// TypeKind discriminates the TypeDef union.
type TypeKind int

const (
	KindObject TypeKind = iota
	KindArray
	KindScalar
	KindEnum
	KindRef
	KindAnyJSON
)

// TypeDef is the discriminated union described by spec.md §3: exactly one
// of its kind-specific fields is meaningful for a given Kind.
type TypeDef struct {
	Kind TypeKind

	Fields []Field  // KindObject
	Elem   *TypeDef // KindArray
	Scalar string   // KindScalar: "string" | "int" | "num" | "bool"

	EnumValues []string // KindEnum
	RefName    string   // KindRef: "<discoveryKey>#<definitionName>"
}

// Field is one member of an Object TypeDef.
type Field struct {
	Name        string
	Type        *TypeDef
	Required    bool
	Pattern     string
	Enum        []string
	Minimum     *float64
	Maximum     *float64
	Description string
}

// KindDef is a top-level object schema carrying an apiVersion+kind pair —
// a chain starter candidate.
type KindDef struct {
	APIVersion string
	Kind       string
	TopLevel   *TypeDef
}

// Module holds everything discovered under one discovery key, in
// deterministic order: Kinds in the order they were declared in the raw
// spec, SharedTypeNames sorted lexicographically (definitions have no
// inherent order in JSON Schema).
type Module struct {
	DiscoveryKey    string
	Kinds           []*KindDef
	SharedTypes     map[string]*TypeDef
	SharedTypeNames []string
}

// Diagnostic is a non-fatal condition recorded during normalization.
type Diagnostic struct {
	Key     string
	Message string
	Ref     string
}

// RawSpec is one entry of the input spec map. Specs is an explicit slice,
// not a native Go map, because discovery-key order is part of the
// contract (spec.md §5: "Discovery keys are processed in the input map's
// declared order").
type RawSpec struct {
	Key    string
	Schema apiextensions.JSONSchemaProps
}

// Corpus is the normalized Schema IR for one generate call.
type Corpus struct {
	Modules []*Module

	byKey map[string]*Module
}

// ModuleByKey looks up a normalized module by discovery key.
func (c *Corpus) ModuleByKey(key string) (*Module, bool) {
	m, ok := c.byKey[key]
	return m, ok
}
