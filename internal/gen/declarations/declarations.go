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

// Package declarations emits the typed declarations artifact (spec.md
// §4.H) for one discovery key's Chain IR: method signatures and parameter
// types only, no runtime logic. Output bytes are a pure function of the
// Chain IR, so two calls on the same IR produce identical bytes.
package declarations

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/thestormforge/husako/internal/chain"
	"github.com/thestormforge/husako/internal/schema"
)

// Emit renders a .d.ts-shaped declarations file for chains and starters
// belonging to one discovery key.
func Emit(chains []*chain.Chain, starters []*chain.Starter) []byte {
	var buf bytes.Buffer

	buf.WriteString("// Code generated by husako generate. DO NOT EDIT.\n\n")
	buf.WriteString("import { Chain } from \"husako/_base\";\n")
	buf.WriteString("import { MetadataChain } from \"husako\";\n\n")

	sorted := make([]*chain.Chain, len(chains))
	copy(sorted, chains)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, c := range sorted {
		fmt.Fprintf(&buf, "export declare class %s extends Chain {\n", ClassName(c.Name))
		for _, m := range c.Methods {
			writeMethodSignature(&buf, m)
		}
		buf.WriteString("}\n\n")
	}

	sortedStarters := make([]*chain.Starter, len(starters))
	copy(sortedStarters, starters)
	sort.Slice(sortedStarters, func(i, j int) bool { return sortedStarters[i].Name < sortedStarters[j].Name })

	for _, s := range sortedStarters {
		fmt.Fprintf(&buf, "export declare function %s(): %s;\n", s.Name, ClassName(s.ChainName))
	}

	return buf.Bytes()
}

// ClassName is the JS class identifier for a Chain IR name: suffixed with
// "Chain" so it never collides with the zero-arg Starter function sharing
// the bare Kind name in the same module scope.
func ClassName(chainName string) string {
	return chainName + "Chain"
}

func writeMethodSignature(buf *bytes.Buffer, m chain.Method) {
	switch m.Kind {
	case chain.MethodTerminal:
		buf.WriteString("  _build(): any;\n")
	case chain.MethodMetadataAttach:
		fmt.Fprintf(buf, "  %s(value: MetadataChain): this;\n", m.Name)
	case chain.MethodField:
		paramType := fieldParamType(m)
		fmt.Fprintf(buf, "  %s(value: %s): this;\n", m.Name, paramType)
	}
}

func fieldParamType(m chain.Method) string {
	base := "any"
	if m.ChildChainName != "" {
		base = ClassName(m.ChildChainName)
	} else if m.Field != nil {
		base = scalarTSType(m.Field.Type)
	}
	if m.IsArray {
		return base + "[]"
	}
	return base
}

func scalarTSType(t *schema.TypeDef) string {
	if t == nil {
		return "any"
	}
	switch t.Kind {
	case schema.KindScalar:
		switch t.Scalar {
		case "int", "num":
			return "number"
		case "bool":
			return "boolean"
		default:
			return "string"
		}
	case schema.KindEnum:
		values := make([]string, 0, len(t.EnumValues))
		for _, v := range t.EnumValues {
			values = append(values, fmt.Sprintf("%q", v))
		}
		return strings.Join(values, " | ")
	default:
		return "any"
	}
}
