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

// Package chain derives the Chain IR (spec.md §3/§4.G) from a normalized
// Schema IR: one fluent builder type per object TypeDef, a Starter per
// KindDef, and a flat constraints side-table for non-code consumers.
package chain

import (
	"sort"

	"github.com/thestormforge/husako/internal/schema"
)

// MethodKind discriminates the Method union.
type MethodKind int

const (
	MethodField MethodKind = iota
	MethodTerminal
	MethodMetadataAttach
)

// Method is one ordered member of a Chain.
type Method struct {
	Kind MethodKind
	Name string

	// ChildChainName is set when the field's value is itself a Chain
	// (object field, or array-of-objects whose element is an object).
	ChildChainName string
	IsArray        bool

	Field *schema.Field
}

// Chain is one fluent builder type, named after the shared type or Kind it
// was derived from.
type Chain struct {
	Name      string
	TargetKey string // SharedTypes key or KindDef qualified name this was derived from
	Methods   []Method
}

// Starter is a zero-arg function pre-seeding a root Chain with a KindDef's
// apiVersion/kind markers.
type Starter struct {
	Name       string // PascalCase, e.g. "Deployment"
	APIVersion string
	Kind       string
	ChainName  string
}

// FieldConstraint is one entry of a chain's row in the constraints
// side-table.
type FieldConstraint struct {
	Type     string
	Required bool
	Pattern  string   `json:"pattern,omitempty"`
	Values   []string `json:"values,omitempty"`
	Minimum  *float64 `json:"minimum,omitempty"`
	Maximum  *float64 `json:"maximum,omitempty"`
}

// IR is the output of deriving Chain IR from one normalized Corpus: every
// Chain (keyed by name), every Starter, and the constraints side-table.
type IR struct {
	Chains      []*Chain
	Starters    []*Starter
	Constraints map[string]map[string]FieldConstraint // chain name -> field name -> constraint

	chainByName map[string]*Chain
}

const metadataChainName = "MetadataChain"

// Build derives Chain IR from a normalized Corpus. Modules are processed in
// the order the Corpus holds them (the discovery-key input order); within a
// module, Kinds then SharedTypeNames (already lexicographically sorted).
// Starter name collisions across modules are resolved by keeping the first
// in insertion order and group-qualifying subsequent ones.
func Build(corpus *schema.Corpus) *IR {
	ir := &IR{
		Constraints: make(map[string]map[string]FieldConstraint),
		chainByName: make(map[string]*Chain),
	}

	seenStarterNames := make(map[string]bool)

	for _, mod := range corpus.Modules {
		for _, kd := range mod.Kinds {
			chainName := pascalCase(kd.Kind)
			starterName := chainName
			if seenStarterNames[starterName] {
				starterName = pascalCase(mod.DiscoveryKey) + chainName
			}
			seenStarterNames[chainName] = true

			c := ir.deriveChain(chainName, mod.DiscoveryKey+"#"+kd.Kind, kd.TopLevel)
			ir.Starters = append(ir.Starters, &Starter{
				Name:       starterName,
				APIVersion: kd.APIVersion,
				Kind:       kd.Kind,
				ChainName:  c.Name,
			})
		}
		for _, name := range mod.SharedTypeNames {
			t := mod.SharedTypes[name]
			if t.Kind != schema.KindObject {
				continue
			}
			ir.deriveChain(pascalCase(name), mod.DiscoveryKey+"#"+name, t)
		}
	}

	return ir
}

// deriveChain converts one object TypeDef into a Chain, registering it by
// name (idempotent: a TargetKey already converted is returned as-is).
func (ir *IR) deriveChain(name, targetKey string, t *schema.TypeDef) *Chain {
	if existing, ok := ir.chainByName[name]; ok && existing.TargetKey == targetKey {
		return existing
	}

	c := &Chain{Name: name, TargetKey: targetKey}
	ir.chainByName[name] = c
	ir.Chains = append(ir.Chains, c)

	fieldConstraints := make(map[string]FieldConstraint)

	for _, f := range t.Fields {
		if f.Name == "metadata" {
			c.Methods = append(c.Methods, Method{
				Kind:           MethodMetadataAttach,
				Name:           f.Name,
				ChildChainName: metadataChainName,
				Field:          fieldRef(f),
			})
			fieldConstraints[f.Name] = constraintFor(f)
			continue
		}

		m := Method{Kind: MethodField, Name: f.Name, Field: fieldRef(f)}

		switch f.Type.Kind {
		case schema.KindObject:
			child := ir.deriveChain(pascalCase(name)+pascalCase(f.Name), targetKey+"."+f.Name, f.Type)
			m.ChildChainName = child.Name
		case schema.KindArray:
			m.IsArray = true
			if f.Type.Elem != nil && f.Type.Elem.Kind == schema.KindObject {
				child := ir.deriveChain(pascalCase(name)+pascalCase(f.Name)+"Item", targetKey+"."+f.Name+"[]", f.Type.Elem)
				m.ChildChainName = child.Name
			}
		}

		c.Methods = append(c.Methods, m)
		fieldConstraints[f.Name] = constraintFor(f)
	}

	c.Methods = append(c.Methods, Method{Kind: MethodTerminal, Name: "_build"})

	ir.Constraints[name] = fieldConstraints
	return c
}

func fieldRef(f schema.Field) *schema.Field {
	cp := f
	return &cp
}

func constraintFor(f schema.Field) FieldConstraint {
	fc := FieldConstraint{
		Type:     typeLabel(f.Type),
		Required: f.Required,
		Pattern:  f.Pattern,
		Minimum:  f.Minimum,
		Maximum:  f.Maximum,
	}
	if f.Type.Kind == schema.KindEnum {
		values := append([]string(nil), f.Type.EnumValues...)
		sort.Strings(values)
		fc.Values = values
	}
	return fc
}

func typeLabel(t *schema.TypeDef) string {
	switch t.Kind {
	case schema.KindObject:
		return "object"
	case schema.KindArray:
		return "array"
	case schema.KindScalar:
		return t.Scalar
	case schema.KindEnum:
		return "enum"
	case schema.KindRef:
		return "ref:" + t.RefName
	default:
		return "any"
	}
}

// pascalCase converts a schema field/discovery-key fragment into a
// PascalCase Go-safe identifier fragment, splitting on '/', '-', '_', '.'.
func pascalCase(s string) string {
	out := make([]byte, 0, len(s))
	upperNext := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '/' || c == '-' || c == '_' || c == '.':
			upperNext = true
		case upperNext:
			out = append(out, upperByte(c))
			upperNext = false
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

func upperByte(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}
