package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	directivePattern = regexp.MustCompile(`(?s)\[TOOL:\s*([\w_]+)\s+with\s+args:\s*(\{.*?\})\]`)
	// leftoverPattern catches near-miss directives such as [TOOL: name] so
	// they never reach the display text once a response requested tools.
	leftoverPattern  = regexp.MustCompile(`\[TOOL:[^\]]*\]?`)
)

// Directive is one [TOOL: ...] match. Err is a *DirectiveParseError when
// RawArgs is not a JSON object; Args is nil in that case.
type Directive struct {
	Tool    string
	RawArgs string
	Args    map[string]any
	Err     error
}

// Parsed is the result of scanning one model response.
type Parsed struct {
	Directives []Directive
	// Display is the response with every directive and near-miss directive
	// removed and trimmed.
	Display string
}

// ParseDirectives scans text for directives in order of appearance.
func ParseDirectives(text string) Parsed {
	matches := directivePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return Parsed{Display: strings.TrimSpace(text)}
	}

	directives := make([]Directive, 0, len(matches))
	for _, m := range matches {
		d := Directive{Tool: m[1], RawArgs: m[2]}
		var args map[string]any
		if err := json.Unmarshal([]byte(m[2]), &args); err != nil {
			d.Err = &DirectiveParseError{Tool: d.Tool, Raw: d.RawArgs, Err: err}
		} else {
			d.Args = args
		}
		directives = append(directives, d)
	}

	return Parsed{
		Directives: directives,
		Display:    strings.TrimSpace(leftoverPattern.ReplaceAllLiteralString(directivePattern.ReplaceAllLiteralString(text, ""), "")),
	}
}
