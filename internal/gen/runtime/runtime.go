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

// Package runtime emits the executable builder artifact (spec.md §4.I) for
// one discovery key's Chain IR: a husako/_base Chain subclass per Chain,
// plus a Starter function per KindDef. metadata() and friends live in the
// builtin SDK; this artifact neither imports nor re-emits them.
package runtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/thestormforge/husako/internal/chain"
	"github.com/thestormforge/husako/internal/gen/declarations"
)

// Emit renders the runtime module for chains and starters belonging to one
// discovery key. Field keys are pre-seeded as undefined in declaration
// order in each constructor, so _build() (husako/_base's materialize)
// always emits keys in declaration order regardless of setter call order;
// last-write-wins setters never move a key's position.
func Emit(chains []*chain.Chain, starters []*chain.Starter) []byte {
	var buf bytes.Buffer

	buf.WriteString("// Code generated by husako generate. DO NOT EDIT.\n\n")
	buf.WriteString("import { Chain } from \"husako/_base\";\n\n")

	sorted := make([]*chain.Chain, len(chains))
	copy(sorted, chains)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, c := range sorted {
		writeChainClass(&buf, c)
	}

	sortedStarters := make([]*chain.Starter, len(starters))
	copy(sortedStarters, starters)
	sort.Slice(sortedStarters, func(i, j int) bool { return sortedStarters[i].Name < sortedStarters[j].Name })

	for _, s := range sortedStarters {
		fmt.Fprintf(&buf, "export function %s() {\n", s.Name)
		fmt.Fprintf(&buf, "  return new %s(%s, %s);\n", declarations.ClassName(s.ChainName), jsString(s.APIVersion), jsString(s.Kind))
		buf.WriteString("}\n\n")
	}

	return buf.Bytes()
}

func writeChainClass(buf *bytes.Buffer, c *chain.Chain) {
	fmt.Fprintf(buf, "export class %s extends Chain {\n", declarations.ClassName(c.Name))

	hasMarkers := false
	for _, m := range c.Methods {
		if m.Kind == chain.MethodField && (m.Name == "apiVersion" || m.Name == "kind") {
			hasMarkers = true
		}
	}

	var fields []string
	if hasMarkers {
		fields = append(fields, "apiVersion: apiVersion", "kind: kind")
	}
	for _, m := range c.Methods {
		if m.Kind != chain.MethodField && m.Kind != chain.MethodMetadataAttach {
			continue
		}
		if m.Name == "apiVersion" || m.Name == "kind" {
			continue
		}
		fields = append(fields, fmt.Sprintf("%s: undefined", m.Name))
	}

	if hasMarkers {
		buf.WriteString("  constructor(apiVersion, kind) {\n")
	} else {
		buf.WriteString("  constructor() {\n")
	}
	fmt.Fprintf(buf, "    super({ %s });\n", strings.Join(fields, ", "))
	buf.WriteString("  }\n\n")

	for _, m := range c.Methods {
		switch m.Kind {
		case chain.MethodField, chain.MethodMetadataAttach:
			fmt.Fprintf(buf, "  %s(value) {\n    return this._set(%s, value);\n  }\n\n", m.Name, jsString(m.Name))
		}
	}

	buf.WriteString("}\n\n")
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
