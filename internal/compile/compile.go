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

// Package compile performs type erasure on the typed-script surface,
// turning it into plain script the engine host can execute. It is not a
// full TypeScript parser: it recognizes only the constructs the language
// surface actually uses (type annotations, interface/type declarations,
// as/satisfies assertions, call-site generic arguments) and otherwise
// passes source through byte for byte.
package compile

import (
	"strings"

	"github.com/thestormforge/husako/internal/diagnostics"
)

// Compile transpiles source (logically named filename, used only for
// error messages) into plain script. The output is deterministic: the
// same input always produces byte-identical output.
func Compile(source, filename string) (string, error) {
	toks, err := scan(source, filename)
	if err != nil {
		return "", err
	}
	return strip(toks), nil
}

type tokenKind int

const (
	tokCode tokenKind = iota
	tokString
	tokTemplate
	tokComment
	tokTypeAnnotation
	tokInterfaceOrTypeDecl
	tokAsOrSatisfies
	tokGenericArgs
)

type token struct {
	kind tokenKind
	text string
}

// scan walks source once, classifying regions so erasure never touches
// string/template/comment contents, and marking the TypeScript-only
// constructs to be dropped by strip.
func scan(source, filename string) ([]token, error) {
	var toks []token
	i, n := 0, len(source)
	depthParen, depthBrace, depthBracket := 0, 0, 0
	// braceIsObjectLiteral[k] records whether the k-th currently open '{'
	// opens an object literal (colons inside are key/value separators) as
	// opposed to a block statement (colons inside, e.g. a labeled
	// statement, are not type-annotation-relevant either, but the
	// distinction matters for nested object-literal detection).
	var braceIsObjectLiteral []bool
	// ternaryDepths holds, for each ternary '?' still waiting for its ':',
	// the paren+brace+bracket depth it was seen at.
	var ternaryDepths []int
	_ = filename

	for i < n {
		c := source[i]

		switch {
		case c == '/' && i+1 < n && source[i+1] == '/':
			j := strings.IndexByte(source[i:], '\n')
			if j < 0 {
				toks = append(toks, token{tokComment, source[i:]})
				i = n
			} else {
				toks = append(toks, token{tokComment, source[i : i+j]})
				i += j
			}

		case c == '/' && i+1 < n && source[i+1] == '*':
			end := strings.Index(source[i+2:], "*/")
			if end < 0 {
				return nil, &diagnostics.Error{Kind: diagnostics.Compile, Messages: []string{"unterminated block comment"}}
			}
			stop := i + 2 + end + 2
			toks = append(toks, token{tokComment, source[i:stop]})
			i = stop

		case c == '"' || c == '\'':
			stop, err := scanQuoted(source, i, c)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, source[i:stop]})
			i = stop

		case c == '`':
			stop, err := scanTemplate(source, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokTemplate, source[i:stop]})
			i = stop

		case matchKeyword(source, i, "interface"):
			stop, err := scanBraceBlock(source, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokInterfaceOrTypeDecl, source[i:stop]})
			i = stop

		case matchKeyword(source, i, "type") && isTypeAliasDecl(source, i):
			stop := scanToSemicolonOrNewline(source, i)
			toks = append(toks, token{tokInterfaceOrTypeDecl, source[i:stop]})
			i = stop

		case matchKeyword(source, i, "as") && isAssertionContext(toks):
			for len(toks) > 0 && toks[len(toks)-1].kind == tokCode && strings.TrimSpace(toks[len(toks)-1].text) == "" {
				toks = toks[:len(toks)-1]
			}
			j := i + len("as")
			stop := scanTypeExpr(source, j)
			toks = append(toks, token{tokAsOrSatisfies, source[i:stop]})
			i = stop

		case matchKeyword(source, i, "satisfies"):
			j := i + len("satisfies")
			stop := scanTypeExpr(source, j)
			toks = append(toks, token{tokAsOrSatisfies, source[i:stop]})
			i = stop

		case c == ':' && len(ternaryDepths) > 0 && ternaryDepths[len(ternaryDepths)-1] == depthParen+depthBrace+depthBracket:
			ternaryDepths = ternaryDepths[:len(ternaryDepths)-1]
			toks = append(toks, token{tokCode, ":"})
			i++

		case c == ':' && colonStartsTypeAnnotation(toks, braceIsObjectLiteral):
			if k := len(toks) - 1; k >= 0 && toks[k].kind == tokCode && toks[k].text == "?" {
				toks[k].kind = tokTypeAnnotation // optional-parameter marker
			}
			stop := scanTypeExpr(source, i+1)
			for stop > i+1 && strings.IndexByte(" \t\n", source[stop-1]) >= 0 {
				stop--
			}
			toks = append(toks, token{tokTypeAnnotation, source[i:stop]})
			i = stop

		case c == '<' && genericArgsFollow(source, i, toks):
			stop, ok := scanGenericArgs(source, i)
			if ok {
				toks = append(toks, token{tokGenericArgs, source[i:stop]})
				i = stop
				continue
			}
			toks = append(toks, token{tokCode, string(c)})
			i++

		default:
			switch c {
			case '(':
				depthParen++
			case ')':
				depthParen--
			case '{':
				depthBrace++
				braceIsObjectLiteral = append(braceIsObjectLiteral, bracePrecededByValuePosition(toks))
			case '}':
				depthBrace--
				if len(braceIsObjectLiteral) > 0 {
					braceIsObjectLiteral = braceIsObjectLiteral[:len(braceIsObjectLiteral)-1]
				}
			case '[':
				depthBracket++
			case ']':
				depthBracket--
			case '?':
				if !(i+1 < n && strings.IndexByte("?.:,)", source[i+1]) >= 0) && !(i > 0 && source[i-1] == '?') {
					ternaryDepths = append(ternaryDepths, depthParen+depthBrace+depthBracket)
				}
			}
			toks = append(toks, token{tokCode, string(c)})
			i++
		}
	}

	return toks, nil
}

// strip drops every TypeScript-only token and concatenates what remains.
func strip(toks []token) string {
	var b strings.Builder
	for _, t := range toks {
		switch t.kind {
		case tokTypeAnnotation, tokInterfaceOrTypeDecl, tokAsOrSatisfies, tokGenericArgs:
			continue
		default:
			b.WriteString(t.text)
		}
	}
	return b.String()
}

func scanQuoted(source string, start int, quote byte) (int, error) {
	i := start + 1
	n := len(source)
	for i < n {
		if source[i] == '\\' {
			i += 2
			continue
		}
		if source[i] == quote {
			return i + 1, nil
		}
		i++
	}
	return 0, &diagnostics.Error{Kind: diagnostics.Compile, Messages: []string{"unterminated string literal"}}
}

func scanTemplate(source string, start int) (int, error) {
	i := start + 1
	n := len(source)
	depth := 0
	for i < n {
		switch {
		case source[i] == '\\':
			i += 2
		case source[i] == '`' && depth == 0:
			return i + 1, nil
		case strings.HasPrefix(source[i:], "${"):
			depth++
			i += 2
		case source[i] == '}' && depth > 0:
			depth--
			i++
		default:
			i++
		}
	}
	return 0, &diagnostics.Error{Kind: diagnostics.Compile, Messages: []string{"unterminated template literal"}}
}

func scanBraceBlock(source string, start int) (int, error) {
	i := strings.IndexByte(source[start:], '{')
	if i < 0 {
		return 0, &diagnostics.Error{Kind: diagnostics.Compile, Messages: []string{"expected '{' after interface"}}
	}
	i += start
	depth := 0
	n := len(source)
	for i < n {
		switch source[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
		i++
	}
	return 0, &diagnostics.Error{Kind: diagnostics.Compile, Messages: []string{"unterminated interface body"}}
}

func scanToSemicolonOrNewline(source string, start int) int {
	depth := 0
	n := len(source)
	i := start
	for i < n {
		switch source[i] {
		case '{', '(', '[':
			depth++
		case '}', ')', ']':
			depth--
		case ';':
			if depth <= 0 {
				return i + 1
			}
		case '\n':
			if depth <= 0 {
				return i
			}
		}
		i++
	}
	return n
}

// scanTypeExpr consumes a type expression starting at i (right after a
// ':'/'as'/'satisfies' keyword) up to the next position where the
// surrounding expression resumes: a top-level ',', ')', ']', '}', ';',
// '=' (for default params), a top-level '{' that follows a complete type
// (a function body after a return type), or end of input.
func scanTypeExpr(source string, start int) int {
	i := start
	n := len(source)
	depth := 0
	for i < n {
		c := source[i]
		switch c {
		case '(', '[', '{', '<':
			if t := strings.TrimRight(source[start:i], " \t\n"); c == '{' && depth == 0 && t != "" && (isIdentByte(t[len(t)-1]) || strings.IndexByte(">])}", t[len(t)-1]) >= 0) {
				return i
			}
			depth++
		case ')', ']', '}', '>':
			if depth == 0 {
				return i
			}
			depth--
		case ',', ';':
			if depth == 0 {
				return i
			}
		case '=':
			if depth == 0 && !(i+1 < n && source[i+1] == '=') {
				return i
			}
		case '"', '\'':
			stop, err := scanQuoted(source, i, c)
			if err != nil {
				return n
			}
			i = stop
			continue
		case '`':
			stop, err := scanTemplate(source, i)
			if err != nil {
				return n
			}
			i = stop
			continue
		}
		i++
	}
	return n
}

func scanGenericArgs(source string, start int) (int, bool) {
	i := start + 1
	n := len(source)
	depth := 1
	for i < n {
		switch source[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		case ';', '{':
			return 0, false
		}
		i++
	}
	return 0, false
}

func matchKeyword(source string, i int, kw string) bool {
	if !strings.HasPrefix(source[i:], kw) {
		return false
	}
	if i > 0 && isIdentByte(source[i-1]) {
		return false
	}
	end := i + len(kw)
	if end < len(source) && isIdentByte(source[end]) {
		return false
	}
	return true
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// isTypeAliasDecl distinguishes a `type Foo = ...` declaration from the
// unrelated identifier "type" appearing as a property/variable name.
func isTypeAliasDecl(source string, i int) bool {
	j := i + len("type")
	for j < len(source) && source[j] == ' ' {
		j++
	}
	if j >= len(source) || !isIdentStart(source[j]) {
		return false
	}
	// Must precede "<name> = " or "<name><generic> = " eventually, at
	// statement position: the previous non-space token must be a
	// statement boundary (';', '{', '}', newline, or start of input).
	k := i - 1
	for k >= 0 && (source[k] == ' ' || source[k] == '\t') {
		k--
	}
	if k < 0 {
		return true
	}
	switch source[k] {
	case ';', '{', '}', '\n':
		return true
	}
	return false
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// isAssertionContext reports whether "as" appears after an expression
// (i.e. not as part of an import/export rename clause, which keeps the
// literal "as").
func isAssertionContext(toks []token) bool {
	stmt := ""
	for i := len(toks) - 1; i >= 0 && !(toks[i].kind == tokCode && (toks[i].text == ";" || toks[i].text == "}")); i-- {
		if toks[i].kind != tokComment {
			stmt = toks[i].text + stmt
		}
	}
	stmt = strings.TrimSpace(stmt)
	if rest := strings.TrimSpace(strings.TrimPrefix(stmt, "export")); rest != stmt && (strings.HasPrefix(rest, "{") || strings.HasPrefix(rest, "*")) {
		return false
	}
	return stmt != "" && !matchKeyword(stmt, 0, "import")
}

// colonStartsTypeAnnotation filters out colons that are object-literal
// key/value separators (ternary ':' branches are already matched to their
// '?' by scan before this is consulted). A ':' only starts a type
// annotation directly after an identifier, ')', ']', or '?' used as an
// optional-parameter marker, and only when the innermost currently open
// brace (if any) is a block, not an object literal.
func colonStartsTypeAnnotation(toks []token, braceIsObjectLiteral []bool) bool {
	if n := len(braceIsObjectLiteral); n > 0 && braceIsObjectLiteral[n-1] {
		return false
	}
	for i := len(toks) - 1; i >= 0; i-- {
		t := toks[i]
		if t.kind == tokComment {
			continue
		}
		trimmed := strings.TrimRight(t.text, " \t\n")
		if trimmed == "" {
			continue
		}
		last := trimmed[len(trimmed)-1]
		return isIdentByte(last) || last == ')' || last == ']' || last == '?'
	}
	return false
}

// bracePrecededByValuePosition decides whether an about-to-open '{' opens
// an object literal (the preceding token leaves us expecting an
// expression: '=', '(', ',', '[', ':', 'return', or start of input) as
// opposed to a block statement (preceded by ')', or nothing distinguishing
// it from statement position).
func bracePrecededByValuePosition(toks []token) bool {
	for i := len(toks) - 1; i >= 0; i-- {
		t := toks[i]
		if t.kind == tokComment {
			continue
		}
		trimmed := strings.TrimRight(t.text, " \t\n")
		if trimmed == "" {
			continue
		}
		if strings.HasSuffix(trimmed, "return") {
			return true
		}
		last := trimmed[len(trimmed)-1]
		switch last {
		case '=', '(', ',', '[', ':':
			return true
		default:
			return false
		}
	}
	return true
}

func genericArgsFollow(source string, i int, toks []token) bool {
	// Only treat '<' as generic-argument opening when it immediately
	// follows an identifier character (a call target or type name) with
	// no preceding operator — excludes "a < b" comparisons, which are
	// always preceded by whitespace-surrounded operands in a binary
	// expression, not an identifier glued directly to '<'.
	if i == 0 {
		return false
	}
	prev := source[i-1]
	return isIdentByte(prev)
}
