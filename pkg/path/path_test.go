package path

import (
	"errors"
	"testing"
)

func kinds(p *Path) []Kind {
	out := make([]Kind, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Kind
	}
	return out
}

func equalKinds(a, b []Kind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParseKinds(t *testing.T) {
	tests := []struct {
		raw  string
		want []Kind
	}{
		{"", []Kind{}},
		{"a", []Kind{Key}},
		{"a.b.c", []Kind{Key, Key, Key}},
		{"a.0.b", []Kind{Key, Index, Key}},
		{"a[0].b", []Kind{Key, Index, Key}},
		{"a[0][1]", []Kind{Key, Index, Index}},
		{"a.^0.b", []Kind{Key, Key, Key}},
		{"a.*.b", []Kind{Key, Wildcard, Key}},
		{"a..b", []Kind{Key, Wildcard, Key}},
		{"a[*]", []Kind{Key, Wildcard}},
		{"a.", []Kind{Key, Wildcard}},
		{"pages.{index}.title", []Kind{Key, Variable, Key}},
		{"a[{i}]", []Kind{Key, Variable}},
		{"item_{id}", []Kind{Variable}},
		{"products[id=2]", []Kind{Key, Filter}},
		{"products.id=2", []Kind{Key, Filter}},
		{"products[{k}={v}].name", []Kind{Key, Filter, Key}},
		{"a['x.y']", []Kind{Key, Key}},
		{"[0]", []Kind{Index}},
		{"a.[0]", []Kind{Key, Index}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.raw, err)
			}
			if got := kinds(p); !equalKinds(got, tt.want) {
				t.Errorf("Parse(%q) kinds = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseForcedKey(t *testing.T) {
	p := MustParse("a.^0.b")
	s := p.Steps[1]
	if s.Kind != Key || s.Key != "0" || !s.Forced {
		t.Errorf("expected forced key 0, got %+v", s)
	}

	idx := MustParse("list.12").Steps[1]
	if idx.Kind != Index || idx.Index != 12 {
		t.Errorf("expected index 12, got %+v", idx)
	}
}

func TestParseBracketAndDotFiltersEqual(t *testing.T) {
	a := MustParse("a.b=1").Steps[1]
	b := MustParse("a[b=1]").Steps[1]
	if a.String() != b.String() || a.Kind != Filter || b.Kind != Filter {
		t.Errorf("expected equal filters, got %q and %q", a.String(), b.String())
	}
	k, _ := a.FilterKey.Literal()
	v, _ := a.FilterValue.Literal()
	if k != "b" || v != "1" {
		t.Errorf("expected b=1, got %s=%s", k, v)
	}
}

func TestParseVariables(t *testing.T) {
	s := MustParse("pages.{page.index}.title").Steps[1]
	inner, ok := s.Template.Single()
	if !ok {
		t.Fatalf("expected single placeholder, got %+v", s.Template)
	}
	if got := kinds(inner); !equalKinds(got, []Kind{Key, Key}) {
		t.Errorf("expected inner path page.index, got %v", got)
	}

	mixed := MustParse("item_{id}_x").Steps[0]
	if len(mixed.Template) != 3 {
		t.Fatalf("expected 3 template parts, got %d", len(mixed.Template))
	}
	if _, ok := mixed.Template.Single(); ok {
		t.Error("mixed template should not report a single placeholder")
	}

	nested := MustParse("a.{b.{c}}").Steps[1]
	outer, _ := nested.Template.Single()
	if outer.Steps[1].Kind != Variable {
		t.Errorf("expected nested placeholder, got %v", kinds(outer))
	}

	filter := MustParse("list[{k}={v}]").Steps[1]
	if _, ok := filter.FilterKey.Single(); !ok {
		t.Error("expected filter key placeholder")
	}
	if _, ok := filter.FilterValue.Single(); !ok {
		t.Error("expected filter value placeholder")
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"a[0",
		"a]0",
		"a{b",
		"a}b",
		"a.{}",
		"a[{b]",
		"a.{b.c",
	}
	for _, raw := range bad {
		_, err := Parse(raw)
		if err == nil {
			t.Errorf("Parse(%q) should fail", raw)
			continue
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q) error should be *ParseError, got %T", raw, err)
		}
		if !errors.Is(err, ErrSyntax) {
			t.Errorf("Parse(%q) error should wrap ErrSyntax", raw)
		}
	}
}

func TestParseDoesNotValidateKeys(t *testing.T) {
	if _, err := Parse("does.not.exist[9].anywhere"); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestPathString(t *testing.T) {
	raw := "products[id={id}].name"
	p := MustParse(raw)
	if p.String() != raw {
		t.Errorf("expected %q, got %q", raw, p.String())
	}
	if !MustParse("_state.a").HasPrefixKey("_state") {
		t.Error("expected _state prefix")
	}
}

func TestCache(t *testing.T) {
	c, err := NewCache(16)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer c.Close()

	first, err := c.Parse("a.b[0]")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c.Wait()
	second, err := c.Parse("a.b[0]")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !equalKinds(kinds(first), kinds(second)) {
		t.Errorf("cached parse differs: %v vs %v", kinds(first), kinds(second))
	}

	if _, err := c.Parse("a[0"); err == nil {
		t.Error("expected error from cache parse")
	}

	var nilCache *Cache
	if _, err := nilCache.Parse("a"); err != nil {
		t.Errorf("nil cache should parse directly, got %v", err)
	}
}
