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

// Package sdk embeds the builtin script modules: the "husako" entry point
// scripts import build/metadata from, and its bundled submodules
// "husako/_base" and "husako/test". These never touch the project
// filesystem; they're compiled into the binary and initialized once.
package sdk

import _ "embed"

//go:embed js/husako.js
var husakoModule string

//go:embed js/base.js
var baseModule string

//go:embed js/test.js
var testModule string

// Module returns the source for specifier, and whether it is one of the
// builtin module names.
func Module(specifier string) (string, bool) {
	switch specifier {
	case "husako":
		return husakoModule, true
	case "husako/_base":
		return baseModule, true
	case "husako/test":
		return testModule, true
	default:
		return "", false
	}
}
