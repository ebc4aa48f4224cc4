package segment

import (
	"context"
	"fmt"

	"viewer/internal/cid"
	"viewer/internal/language"
	"viewer/internal/logging"
)

// Classifier decides the kind and policy of path segments. It holds no
// per-request state; every lookup goes to its collaborators.
type Classifier struct {
	Servers ServerLookup
	Aliases AliasLookup
	Content ContentFetcher

	// Builtin reports names of built-in servers, which are always enabled
	// and take priority over stored servers.
	Builtin func(name string) bool
}

// ClassifyPath classifies every segment of path. Segments to the right of a
// built-in server belong to its regions and are not checked for chaining
// here; the built-in classifies them again when it evaluates them.
func (c *Classifier) ClassifyPath(ctx context.Context, parts []string) []Segment {
	out := make([]Segment, len(parts))
	region := false
	for i, text := range parts {
		out[i] = c.classify(ctx, text, i, len(parts), !region)
		out[i].Region = region
		if out[i].Builtin && out[i].Policy == PolicyExecute {
			region = true
		}
	}
	return out
}

// ClassifyTokens classifies every segment of path without the chaining
// check. Callers that group segments decide chaining themselves.
func (c *Classifier) ClassifyTokens(ctx context.Context, parts []string) []Segment {
	out := make([]Segment, len(parts))
	for i, text := range parts {
		out[i] = c.classify(ctx, text, i, len(parts), false)
	}
	return out
}

// Classify classifies one segment at position (0 is leftmost) of total.
func (c *Classifier) Classify(ctx context.Context, text string, position, total int) Segment {
	return c.classify(ctx, text, position, total, true)
}

func (c *Classifier) classify(ctx context.Context, text string, position, total int, checkChaining bool) Segment {
	seg := Segment{Text: text, Name: text, Position: position, Total: total}

	stem, ext, hasSuffix := language.SplitSuffix(text)
	c.resolveKind(ctx, &seg, text, stem, hasSuffix)
	if seg.HasErrors() {
		logging.ClassifyDebug("segment %d/%d %q: %s", position, total, text, seg.Errors[0].Message)
		return seg
	}

	// policy from suffix
	switch {
	case seg.Suffix == "" && seg.Kind == KindParameter:
		seg.Policy = PolicyLiteral
	case seg.Suffix == "":
		seg.Policy = PolicyExecute
	case seg.Kind == KindParameter:
		_, executable := language.ExecutableSuffix(ext)
		_, data := language.DataSuffix(ext)
		if executable || data {
			seg.AddError(ErrDataExtensionMisuse, fmt.Sprintf("suffix .%s on a parameter; only servers, aliases and content identifiers take suffixes", ext))
		} else {
			seg.AddError(ErrUnrecognizedExtension, fmt.Sprintf("unrecognized extension .%s", ext))
		}
	default:
		if lang, ok := language.ExecutableSuffix(seg.Suffix); ok {
			seg.Policy = PolicyExecute
			seg.Language = lang
		} else if ct, ok := language.DataSuffix(seg.Suffix); ok {
			seg.Policy = PolicyContents
			seg.ContentType = ct
		} else {
			seg.AddError(ErrUnrecognizedExtension, fmt.Sprintf("unrecognized extension .%s", seg.Suffix))
		}
	}

	if seg.Kind == KindParameter || seg.Policy == PolicyError {
		logging.ClassifyDebug("segment %d/%d %q: kind=%s policy=%s", position, total, text, seg.Kind, seg.Policy)
		return seg
	}

	c.resolveLanguage(&seg)

	if checkChaining && position > 0 && seg.Policy == PolicyExecute && !seg.SupportsChaining {
		seg.AddError(ErrChainingUnsupported, ChainingUnsupportedMessage)
	}

	logging.ClassifyDebug("segment %d/%d %q: kind=%s policy=%s lang=%s chain=%v",
		position, total, text, seg.Kind, seg.Policy, seg.Language, seg.SupportsChaining)
	return seg
}

// resolveKind applies the kind priority. Names are tried with the suffix
// first so that a server whose name contains a dot still matches.
func (c *Classifier) resolveKind(ctx context.Context, seg *Segment, text, stem string, hasSuffix bool) {
	names := []string{text}
	if hasSuffix {
		names = append(names, stem)
	}
	suffixFor := func(name string) string {
		if name == text {
			return ""
		}
		return text[len(stem)+1:]
	}

	// 1. servers
	for _, name := range names {
		if c.Builtin != nil && c.Builtin(name) {
			seg.Kind, seg.Name, seg.ServerName, seg.Builtin = KindServer, name, name, true
			seg.Suffix = suffixFor(name)
			return
		}
		if c.Servers == nil {
			continue
		}
		def, found, err := c.Servers.LookupServer(ctx, name)
		if err != nil {
			seg.Kind = KindParameter
			seg.AddError(ErrLookupFailed, fmt.Sprintf("server lookup failed: %v", err))
			return
		}
		if found && def.Enabled {
			seg.Kind, seg.Name, seg.ServerName = KindServer, name, name
			seg.Suffix = suffixFor(name)
			seg.Code = def.Definition
			seg.Language = def.Language
			return
		}
		if found {
			seg.Disabled = true
		}
	}

	// 2. aliases with internal targets
	if c.Aliases != nil {
		for _, name := range names {
			target, err := c.Aliases.LookupAliasTarget(ctx, "/"+name)
			if err != nil {
				seg.Kind = KindParameter
				seg.AddError(ErrLookupFailed, fmt.Sprintf("alias lookup failed: %v", err))
				return
			}
			if target.Matched && target.IsRelative {
				seg.Kind, seg.Name = KindAlias, name
				seg.Suffix = suffixFor(name)
				seg.AliasName = target.Name
				seg.AliasTarget = target.TargetPath
				return
			}
		}
	}

	// 3. content identifiers
	candidate := text
	if hasSuffix {
		candidate = stem
	}
	if cid.LooksLike(candidate) {
		seg.Kind, seg.Name = KindCID, candidate
		seg.Suffix = suffixFor(candidate)
		id, err := cid.Parse(candidate)
		if err != nil {
			seg.AddError(ErrInvalidContentIdentifier, err.Error())
			return
		}
		seg.CID = id.Value()
		if lit, ok := id.Literal(); ok {
			seg.Code = string(lit)
		} else if c.Content != nil {
			data, found, err := c.Content.FetchContent(ctx, id)
			if err != nil {
				seg.AddError(ErrLookupFailed, fmt.Sprintf("content lookup failed: %v", err))
				return
			}
			if found {
				seg.Code = string(data)
			} else {
				seg.NotFound = true
			}
		}
		return
	}

	// 4. parameter
	seg.Kind = KindParameter
	if hasSuffix {
		seg.Suffix = text[len(stem)+1:]
	}
}

// resolveLanguage sets the implementation language and chaining support.
// An executable suffix has already set the language.
func (c *Classifier) resolveLanguage(seg *Segment) {
	switch {
	case seg.Builtin:
		seg.Language = language.Host
		seg.SupportsChaining = true
		return
	case seg.Kind == KindAlias:
		// the target path receives the chained input
		seg.SupportsChaining = true
		return
	case seg.NotFound:
		// reported when the segment runs
		seg.SupportsChaining = true
		return
	}
	if seg.Language == "" {
		seg.Language = language.Detect(seg.Code)
	}
	seg.SupportsChaining = language.SupportsChaining(seg.Language, seg.Code)
}
