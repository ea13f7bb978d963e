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

// Package emit turns the JSON value produced by the engine host into
// canonical multi-document YAML text.
package emit

import (
	"bytes"
	"encoding/json"

	"sigs.k8s.io/kustomize/kyaml/kio"
	"sigs.k8s.io/kustomize/kyaml/yaml"

	"github.com/thestormforge/husako/internal/diagnostics"
)

// Serialize renders value as YAML. If value is a slice, each element is
// emitted as its own document, in order, separated by "---\n"; an empty
// slice yields the empty string. Any other value is emitted as a single
// document.
//
// sigs.k8s.io/yaml.Marshal cannot be used here: it round-trips through
// gopkg.in/yaml.v2's untyped map, which discards key order and
// re-marshals alphabetically. Going through kyaml's RNode instead keeps
// the field order the engine host's ordered.Map (and, through it, the
// chain declaration order) already established.
func Serialize(value interface{}) (string, error) {
	docs, ok := value.([]interface{})
	if !ok {
		docs = []interface{}{value}
	}
	if len(docs) == 0 {
		return "", nil
	}

	nodes := make([]*yaml.RNode, 0, len(docs))
	for _, doc := range docs {
		node, err := toRNode(doc)
		if err != nil {
			return "", err
		}
		nodes = append(nodes, node)
	}

	var buf bytes.Buffer
	if err := (kio.ByteWriter{Writer: &buf}).Write(nodes); err != nil {
		return "", &diagnostics.Error{Kind: diagnostics.EmitSerialize, Cause: err}
	}
	return buf.String(), nil
}

func toRNode(value interface{}) (*yaml.RNode, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, &diagnostics.Error{Kind: diagnostics.EmitSerialize, Cause: err}
	}
	node, err := yaml.ConvertJSONToYamlNode(string(data))
	if err != nil {
		return nil, &diagnostics.Error{Kind: diagnostics.EmitSerialize, Cause: err}
	}
	return node, nil
}
