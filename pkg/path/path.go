// Package path parses teddy path expressions into traversal steps.
//
// Grammar, informally:
//
//	path     = segment { "." segment | "[" segment "]" }
//	segment  = "" | "*"                 wildcard
//	         | digits                   index
//	         | "^" text                 key, forced object on write
//	         | template "=" template    filter
//	         | template                 key, possibly with {placeholders}
//	template = { text | "{" path "}" }
//
// Bracket and dot forms are equivalent: "a.b=1" and "a[b=1]" parse the same.
// Inside brackets a quoted segment ("a['x.y']") is a literal key.
package path

import (
	"strconv"
	"strings"
)

// Kind classifies a Step.
type Kind int

const (
	// Key is a literal object key.
	Key Kind = iota
	// Index is a literal non-negative array index.
	Index
	// Variable is a key computed from {placeholders}.
	Variable
	// Filter selects the first element whose FilterKey equals FilterValue.
	Filter
	// Wildcard applies the rest of the path to every element.
	Wildcard
)

func (k Kind) String() string {
	switch k {
	case Key:
		return "key"
	case Index:
		return "index"
	case Variable:
		return "variable"
	case Filter:
		return "filter"
	case Wildcard:
		return "wildcard"
	}
	return "unknown"
}

// Part is one piece of a Template: literal text, or a placeholder whose
// sub-path is resolved against the caller's variables.
type Part struct {
	Text string
	Var  *Path
}

// Template is a sequence of literal text and placeholders.
type Template []Part

// Literal returns the template text when it has no placeholders.
func (t Template) Literal() (string, bool) {
	var b strings.Builder
	for _, p := range t {
		if p.Var != nil {
			return "", false
		}
		b.WriteString(p.Text)
	}
	return b.String(), true
}

// Single returns the placeholder when the template is exactly one placeholder.
func (t Template) Single() (*Path, bool) {
	if len(t) == 1 && t[0].Var != nil {
		return t[0].Var, true
	}
	return nil, false
}

func (t Template) String() string {
	var b strings.Builder
	for _, p := range t {
		if p.Var != nil {
			b.WriteByte('{')
			b.WriteString(p.Var.String())
			b.WriteByte('}')
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// Step is one parsed segment.
type Step struct {
	Kind Kind

	// Key holds the literal key for Key steps and the digits for Index steps.
	Key string

	// Index is the numeric value of an Index step.
	Index int

	// Forced marks a "^" prefix: writes create an object here even when the
	// key looks numeric.
	Forced bool

	// Template is the key template of a Variable step.
	Template Template

	// FilterKey and FilterValue are the two sides of a Filter step.
	FilterKey   Template
	FilterValue Template
}

func (s Step) String() string {
	switch s.Kind {
	case Wildcard:
		return "*"
	case Index:
		return s.Key
	case Variable:
		if s.Forced {
			return "^" + s.Template.String()
		}
		return s.Template.String()
	case Filter:
		return s.FilterKey.String() + "=" + s.FilterValue.String()
	}
	if s.Forced {
		return "^" + s.Key
	}
	return s.Key
}

// Path is a parsed path expression.
type Path struct {
	raw   string
	Steps []Step
}

// String returns the raw expression.
func (p *Path) String() string {
	return p.raw
}

// Len returns the number of steps.
func (p *Path) Len() int {
	return len(p.Steps)
}

// HasPrefixKey reports whether the first step is the literal key k.
func (p *Path) HasPrefixKey(k string) bool {
	return len(p.Steps) > 0 && p.Steps[0].Kind == Key && p.Steps[0].Key == k
}

// Parse parses raw into a Path. The empty string parses to zero steps.
func Parse(raw string) (*Path, error) {
	return parseAt(raw, raw, 0)
}

// MustParse is like Parse but panics on error.
func MustParse(raw string) *Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

type segment struct {
	text    string
	offset  int
	bracket bool
}

// parseAt parses raw, reporting errors relative to the outer expression full
// at the given base offset.
func parseAt(full, raw string, base int) (*Path, error) {
	segs, err := split(full, raw, base)
	if err != nil {
		return nil, err
	}
	p := &Path{raw: raw, Steps: make([]Step, 0, len(segs))}
	for _, seg := range segs {
		step, err := classify(full, seg)
		if err != nil {
			return nil, err
		}
		p.Steps = append(p.Steps, step)
	}
	return p, nil
}

// split cuts raw into dot and bracket segments, honouring brace nesting.
func split(full, raw string, base int) ([]segment, error) {
	if raw == "" {
		return nil, nil
	}

	var (
		segs    []segment
		cur     strings.Builder
		start   = 0
		open    = true
		braces  = 0
		braceAt = -1
	)

	emit := func(end int) {
		segs = append(segs, segment{text: cur.String(), offset: base + start})
		cur.Reset()
		start = end + 1
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '{':
			if braces == 0 {
				braceAt = i
			}
			if !open {
				start = i
			}
			braces++
			cur.WriteByte(c)
			open = true
		case c == '}':
			braces--
			if braces < 0 {
				return nil, newParseError(full, base+i, "unexpected '}'")
			}
			cur.WriteByte(c)
		case braces > 0:
			cur.WriteByte(c)
		case c == '.':
			emit(i)
			open = true
		case c == '[':
			if cur.Len() > 0 {
				emit(i - 1)
			}
			end, err := matchBracket(full, raw, base, i)
			if err != nil {
				return nil, err
			}
			segs = append(segs, segment{text: raw[i+1 : end], offset: base + i + 1, bracket: true})
			i = end
			open = false
			if i+1 < len(raw) && raw[i+1] == '.' {
				i++
				open = true
			}
			start = i + 1
		case c == ']':
			return nil, newParseError(full, base+i, "unexpected ']'")
		default:
			if !open {
				start = i
			}
			cur.WriteByte(c)
			open = true
		}
	}
	if braces > 0 {
		return nil, newParseError(full, base+braceAt, "unclosed '{'")
	}
	if open {
		segs = append(segs, segment{text: cur.String(), offset: base + start})
	}
	return segs, nil
}

// matchBracket returns the index of the ']' closing the '[' at open.
func matchBracket(full, raw string, base, open int) (int, error) {
	depth := 0
	var quote byte
	for i := open; i < len(raw); i++ {
		c := raw[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			if i == open+1 {
				quote = c
			}
		case '[', '{':
			depth++
		case '}':
			depth--
		case ']':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
		if depth < 0 {
			return 0, newParseError(full, base+i, "unbalanced brackets")
		}
	}
	return 0, newParseError(full, base+open, "unclosed '['")
}

func classify(full string, seg segment) (Step, error) {
	text := seg.text
	if text == "" || text == "*" {
		return Step{Kind: Wildcard}, nil
	}
	if seg.bracket && len(text) >= 2 && (text[0] == '\'' || text[0] == '"') && text[len(text)-1] == text[0] {
		return Step{Kind: Key, Key: text[1 : len(text)-1]}, nil
	}

	if eq := topLevelEquals(text); eq >= 0 {
		k, err := parseTemplate(full, text[:eq], seg.offset)
		if err != nil {
			return Step{}, err
		}
		v, err := parseTemplate(full, text[eq+1:], seg.offset+eq+1)
		if err != nil {
			return Step{}, err
		}
		return Step{Kind: Filter, FilterKey: k, FilterValue: v}, nil
	}

	forced := false
	offset := seg.offset
	if text[0] == '^' {
		forced = true
		text = text[1:]
		offset++
	}

	if strings.ContainsAny(text, "{}") {
		tpl, err := parseTemplate(full, text, offset)
		if err != nil {
			return Step{}, err
		}
		return Step{Kind: Variable, Template: tpl, Forced: forced}, nil
	}

	if !forced && isDigits(text) {
		if n, err := strconv.Atoi(text); err == nil {
			return Step{Kind: Index, Key: text, Index: n}, nil
		}
	}
	return Step{Kind: Key, Key: text, Forced: forced}, nil
}

// parseTemplate splits text into literal parts and placeholders.
func parseTemplate(full, text string, offset int) (Template, error) {
	var (
		tpl Template
		lit strings.Builder
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '{':
			end := matchBrace(text, i)
			if end < 0 {
				return nil, newParseError(full, offset+i, "unclosed '{'")
			}
			inner := strings.TrimSpace(text[i+1 : end])
			if inner == "" {
				return nil, newParseError(full, offset+i, "empty placeholder")
			}
			sub, err := parseAt(full, inner, offset+i+1)
			if err != nil {
				return nil, err
			}
			if lit.Len() > 0 {
				tpl = append(tpl, Part{Text: lit.String()})
				lit.Reset()
			}
			tpl = append(tpl, Part{Var: sub})
			i = end
		case '}':
			return nil, newParseError(full, offset+i, "unexpected '}'")
		default:
			lit.WriteByte(c)
		}
	}
	if lit.Len() > 0 || len(tpl) == 0 {
		tpl = append(tpl, Part{Text: lit.String()})
	}
	return tpl, nil
}

func matchBrace(text string, open int) int {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// topLevelEquals returns the index of the first '=' outside placeholders.
func topLevelEquals(text string) int {
	depth := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
		case '=':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// LooksLikeIndex reports whether s is a non-negative integer literal.
func LooksLikeIndex(s string) bool {
	return isDigits(s)
}

// TrimKey returns p without a leading literal key k, or p itself when the
// first step is something else.
func (p *Path) TrimKey(k string) *Path {
	if !p.HasPrefixKey(k) {
		return p
	}
	raw := strings.TrimPrefix(p.raw, k)
	raw = strings.TrimPrefix(raw, ".")
	return &Path{raw: raw, Steps: p.Steps[1:]}
}

// Split returns the steps before the first wildcard, and the steps after it.
// ok is false when p has no wildcard.
func (p *Path) Split() (before, after []Step, ok bool) {
	for i, s := range p.Steps {
		if s.Kind == Wildcard {
			return p.Steps[:i], p.Steps[i+1:], true
		}
	}
	return p.Steps, nil, false
}
