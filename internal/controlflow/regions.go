package controlflow

import "fmt"

// construct describes a control-flow form: the token that opens it and the
// keywords that separate its regions, in order. The first required keywords
// must appear before a nested form counts as complete.
type construct struct {
	opener   string
	keywords []string
	required int
}

var (
	ifConstruct  = construct{opener: "if", keywords: []string{"then", "else"}, required: 1}
	tryConstruct = construct{opener: "try", keywords: []string{"catch"}, required: 1}
	doConstruct  = construct{opener: "do", keywords: []string{"while"}, required: 0}

	constructs = []construct{ifConstruct, tryConstruct, doConstruct}
)

func (c construct) keywordIndex(tok string) int {
	for i, kw := range c.keywords {
		if kw == tok {
			return i
		}
	}
	return -1
}

func isKeyword(tok string) bool {
	for _, c := range constructs {
		if c.keywordIndex(tok) >= 0 {
			return true
		}
	}
	return false
}

func openerOf(tok string) (construct, bool) {
	for _, c := range constructs {
		if c.opener == tok {
			return c, true
		}
	}
	return construct{}, false
}

// frame is a nested form seen while splitting.
type frame struct {
	c    construct
	next int
}

// regions is a split sub-path. Head holds the tokens before the first
// keyword; Parts holds the tokens after each keyword that appeared.
type regions struct {
	Head  []string
	Parts map[string][]string
}

func (r regions) has(keyword string) bool {
	_, ok := r.Parts[keyword]
	return ok
}

// split divides args into the regions of c. Keywords belonging to forms
// nested inside a region stay in that region: a nested form claims keywords
// until it has all its required ones and the next keyword does not fit it.
func split(c construct, args []string) (regions, error) {
	out := regions{Parts: map[string][]string{}}
	current := ""
	next := 0
	var stack []frame

	add := func(tok string) {
		if current == "" {
			out.Head = append(out.Head, tok)
		} else {
			out.Parts[current] = append(out.Parts[current], tok)
		}
	}

	for _, tok := range args {
		if inner, ok := openerOf(tok); ok {
			stack = append(stack, frame{c: inner})
			add(tok)
			continue
		}
		if !isKeyword(tok) {
			add(tok)
			continue
		}

		claimed := false
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if j := top.c.keywordIndex(tok); j >= top.next {
				top.next = j + 1
				if top.next == len(top.c.keywords) {
					// the last region runs to wherever the enclosing form resumes
					stack = stack[:len(stack)-1]
				}
				claimed = true
				break
			}
			if top.next < top.c.required {
				// an incomplete nested form keeps everything
				claimed = true
				break
			}
			stack = stack[:len(stack)-1]
		}
		if claimed {
			add(tok)
			continue
		}

		if j := c.keywordIndex(tok); j >= next {
			current = tok
			next = j + 1
			out.Parts[tok] = []string{}
			continue
		}
		add(tok)
	}

	for i := 0; i < c.required; i++ {
		if !out.has(c.keywords[i]) {
			return out, fmt.Errorf("/%s requires a /%s region", c.opener, c.keywords[i])
		}
	}
	return out, nil
}
