package signature

import (
	"context"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// parse runs a fresh parser; sitter parsers are not safe for concurrent use.
func parse(ctx context.Context, lang *sitter.Language, content []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)
	return parser.ParseCtx(ctx, nil, content)
}

// =============================================================================
// GO
// =============================================================================

func analyzeGo(ctx context.Context, content []byte, sig *Signature) error {
	tree, err := parse(ctx, golang.GetLanguage(), content)
	if err != nil {
		return err
	}
	defer tree.Close()

	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		fn := root.NamedChild(i)
		if fn.Type() != "function_declaration" {
			continue
		}
		name := fn.ChildByFieldName("name")
		if name == nil || name.Content(content) != EntryName {
			continue
		}
		sig.HasEntry = true
		params := fn.ChildByFieldName("parameters")
		if params == nil {
			return nil
		}
		for j := 0; j < int(params.NamedChildCount()); j++ {
			decl := params.NamedChild(j)
			switch decl.Type() {
			case "variadic_parameter_declaration":
				sig.reject("variadic parameter " + strings.TrimSpace(decl.Content(content)))
			case "parameter_declaration":
				typ := ""
				if t := decl.ChildByFieldName("type"); t != nil {
					typ = t.Content(content)
				}
				var names []string
				for k := 0; k < int(decl.NamedChildCount()); k++ {
					if c := decl.NamedChild(k); c.Type() == "identifier" {
						names = append(names, c.Content(content))
					}
				}
				if len(names) == 0 {
					sig.reject("unnamed parameter of type " + typ)
					continue
				}
				for _, n := range names {
					if n == "_" {
						sig.reject("blank parameter of type " + typ)
						continue
					}
					sig.addRequired(n, typ)
				}
			}
		}
		return nil
	}
	return nil
}

// =============================================================================
// PYTHON
// =============================================================================

func analyzePython(ctx context.Context, content []byte, sig *Signature) error {
	tree, err := parse(ctx, python.GetLanguage(), content)
	if err != nil {
		return err
	}
	defer tree.Close()

	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		fn := root.NamedChild(i)
		if fn.Type() == "decorated_definition" {
			if def := fn.ChildByFieldName("definition"); def != nil {
				fn = def
			}
		}
		if fn.Type() != "function_definition" {
			continue
		}
		name := fn.ChildByFieldName("name")
		if name == nil || name.Content(content) != EntryName {
			continue
		}
		// a later definition replaces an earlier one, as at runtime
		sig.HasEntry = true
		sig.Order, sig.Required, sig.Optional, sig.Unsupported = nil, nil, nil, nil
		sig.Types = map[string]string{}
		if params := fn.ChildByFieldName("parameters"); params != nil {
			pythonParameters(params, content, sig)
		}
	}
	return nil
}

func pythonParameters(params *sitter.Node, content []byte, sig *Signature) {
	for j := 0; j < int(params.ChildCount()); j++ {
		p := params.Child(j)
		switch p.Type() {
		case "identifier":
			sig.addRequired(p.Content(content), "")
		case "typed_parameter":
			typ := fieldText(p, "type", content)
			inner := p.NamedChild(0)
			switch {
			case inner == nil:
			case inner.Type() == "list_splat_pattern":
				sig.reject("variadic positional parameter " + inner.Content(content))
			case inner.Type() == "dictionary_splat_pattern":
				sig.reject("keyword-variadic parameter " + inner.Content(content))
			default:
				sig.addRequired(inner.Content(content), typ)
			}
		case "default_parameter", "typed_default_parameter":
			sig.addOptional(fieldText(p, "name", content), fieldText(p, "type", content))
		case "list_splat_pattern":
			sig.reject("variadic positional parameter " + p.Content(content))
		case "dictionary_splat_pattern":
			sig.reject("keyword-variadic parameter " + p.Content(content))
		case "positional_separator", "/":
			if len(sig.Order) > 0 {
				sig.reject("positional-only parameters " + strings.Join(sig.Order, ", "))
			}
		}
	}
}

// =============================================================================
// JAVASCRIPT / TYPESCRIPT
// =============================================================================

func analyzeJavaScript(ctx context.Context, content []byte, sig *Signature, ts bool) error {
	lang := javascript.GetLanguage()
	if ts {
		lang = typescript.GetLanguage()
	}
	tree, err := parse(ctx, lang, content)
	if err != nil {
		return err
	}
	defer tree.Close()

	params := findJSEntry(tree.RootNode(), content)
	if params == nil {
		return nil
	}
	sig.HasEntry = true
	if params.Type() == "identifier" {
		// arrow function with a single bare parameter
		sig.addRequired(params.Content(content), "")
		return nil
	}
	for j := 0; j < int(params.NamedChildCount()); j++ {
		jsParameter(params.NamedChild(j), content, sig)
	}
	return nil
}

// findJSEntry returns the parameter node of a top-level main function or
// main arrow function, looking through export statements.
func findJSEntry(root *sitter.Node, content []byte) *sitter.Node {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n.Type() == "export_statement" {
			if decl := n.ChildByFieldName("declaration"); decl != nil {
				n = decl
			}
		}
		switch n.Type() {
		case "function_declaration", "generator_function_declaration":
			if fieldText(n, "name", content) == EntryName {
				return n.ChildByFieldName("parameters")
			}
		case "lexical_declaration", "variable_declaration":
			for k := 0; k < int(n.NamedChildCount()); k++ {
				d := n.NamedChild(k)
				if d.Type() != "variable_declarator" || fieldText(d, "name", content) != EntryName {
					continue
				}
				v := d.ChildByFieldName("value")
				if v == nil {
					continue
				}
				switch v.Type() {
				case "arrow_function", "function", "function_expression":
					if p := v.ChildByFieldName("parameters"); p != nil {
						return p
					}
					if p := v.ChildByFieldName("parameter"); p != nil {
						return p
					}
				}
			}
		}
	}
	return nil
}

func jsParameter(p *sitter.Node, content []byte, sig *Signature) {
	switch p.Type() {
	case "identifier":
		sig.addRequired(p.Content(content), "")
	case "assignment_pattern":
		sig.addOptional(fieldText(p, "left", content), "")
	case "rest_pattern":
		sig.reject("rest parameter " + p.Content(content))
	case "object_pattern", "array_pattern":
		sig.reject("destructured parameter " + p.Content(content))
	case "required_parameter", "optional_parameter":
		pattern := p.ChildByFieldName("pattern")
		if pattern == nil {
			return
		}
		typ := strings.TrimSpace(strings.TrimPrefix(fieldText(p, "type", content), ":"))
		switch pattern.Type() {
		case "rest_pattern":
			sig.reject("rest parameter " + pattern.Content(content))
		case "identifier":
			if p.Type() == "optional_parameter" || p.ChildByFieldName("value") != nil {
				sig.addOptional(pattern.Content(content), typ)
			} else {
				sig.addRequired(pattern.Content(content), typ)
			}
		default:
			sig.reject("destructured parameter " + pattern.Content(content))
		}
	}
}

func fieldText(n *sitter.Node, field string, content []byte) string {
	if c := n.ChildByFieldName(field); c != nil {
		return c.Content(content)
	}
	return ""
}

// =============================================================================
// CLOJURE
// =============================================================================

var clojureEntryRe = regexp.MustCompile(`\(defn-?\s+main\s*(?:"[^"]*"\s*)?\[([^\]]*)\]`)

// analyzeClojure reads the first arity of (defn main [...]).
func analyzeClojure(code string, sig *Signature) {
	m := clojureEntryRe.FindStringSubmatch(code)
	if m == nil {
		return
	}
	sig.HasEntry = true
	fields := strings.Fields(m[1])
	for i, f := range fields {
		switch {
		case f == "&":
			rest := ""
			if i+1 < len(fields) {
				rest = fields[i+1]
			}
			sig.reject("variadic parameter & " + rest)
			return
		case strings.HasPrefix(f, "{") || strings.HasPrefix(f, "["):
			sig.reject("destructured parameter " + f)
			return
		default:
			sig.addRequired(f, "")
		}
	}
}
