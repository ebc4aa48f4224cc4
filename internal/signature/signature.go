// Package signature discovers the parameter list of a code blob's entry
// function without executing it.
//
// Go, Python, JavaScript and TypeScript are parsed with tree-sitter. Clojure
// gets a best-effort scan of its defn form, and Bash has no named parameters.
package signature

import (
	"context"
	"fmt"
	"strings"

	"viewer/internal/language"
	"viewer/internal/logging"
)

// EntryName is the conventional entry-function name.
const EntryName = "main"

// Signature describes an entry function's parameters.
type Signature struct {
	Language  language.Language `json:"language"`
	EntryName string            `json:"entry_name"`
	HasEntry  bool              `json:"has_entry"`

	// Order lists every bindable parameter in declaration order.
	Order    []string `json:"order"`
	Required []string `json:"required"`
	Optional []string `json:"optional"`

	// Types holds declared parameter types where the language has them.
	Types map[string]string `json:"types,omitempty"`

	// Unsupported is non-empty iff the function uses positional-only,
	// variadic or keyword-variadic parameters.
	Unsupported []string `json:"unsupported,omitempty"`
}

// Supported reports whether parameters can be bound by name.
func (s Signature) Supported() bool { return len(s.Unsupported) == 0 }

// IsOptional reports whether name has a declared default.
func (s Signature) IsOptional(name string) bool {
	for _, o := range s.Optional {
		if o == name {
			return true
		}
	}
	return false
}

// Analyze returns the signature of the entry function in code. Code without
// an entry function yields a signature with HasEntry false and no parameters.
func Analyze(ctx context.Context, lang language.Language, code string) (Signature, error) {
	timer := logging.StartTimer(logging.CategoryClassify, "signature analysis")
	defer timer.Stop()

	sig := Signature{Language: lang, EntryName: EntryName, Types: map[string]string{}}

	var err error
	switch lang {
	case language.Go:
		err = analyzeGo(ctx, []byte(code), &sig)
	case language.Python:
		err = analyzePython(ctx, []byte(code), &sig)
	case language.JavaScript:
		err = analyzeJavaScript(ctx, []byte(code), &sig, false)
	case language.TypeScript:
		err = analyzeJavaScript(ctx, []byte(code), &sig, true)
	case language.Clojure:
		analyzeClojure(code, &sig)
	case language.Bash:
		// positional arguments only; chained input arrives on stdin
	default:
		return sig, fmt.Errorf("no signature analyzer for language %q", lang)
	}
	if err != nil {
		return sig, fmt.Errorf("analyze %s signature: %w", lang, err)
	}

	logging.ClassifyDebug("signature %s: entry=%v order=%v unsupported=%v",
		lang, sig.HasEntry, sig.Order, sig.Unsupported)
	return sig, nil
}

func (s *Signature) addRequired(name, typ string) {
	s.Order = append(s.Order, name)
	s.Required = append(s.Required, name)
	if typ != "" {
		s.Types[name] = typ
	}
}

func (s *Signature) addOptional(name, typ string) {
	s.Order = append(s.Order, name)
	s.Optional = append(s.Optional, name)
	if typ != "" {
		s.Types[name] = typ
	}
}

func (s *Signature) reject(reason string) {
	s.Unsupported = append(s.Unsupported, reason)
}

// Describe renders the signature as "main(a, b=…)" for diagnostics.
func (s Signature) Describe() string {
	if !s.HasEntry {
		return "(no entry function)"
	}
	parts := make([]string, 0, len(s.Order))
	for _, name := range s.Order {
		if s.IsOptional(name) {
			parts = append(parts, name+"=…")
		} else {
			parts = append(parts, name)
		}
	}
	return fmt.Sprintf("%s(%s)", s.EntryName, strings.Join(parts, ", "))
}
