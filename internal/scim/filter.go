package scim

import (
	"fmt"
	"strings"
)

// Filter is a parsed equality comparison, the only filter shape the
// service supports: <attr> eq "<literal>".
type Filter struct {
	Attribute string
	Value     string
}

// Matches reports whether a mapped attribute value satisfies the
// filter. Comparison is exact string equality against the value as it
// appears on the wire resource.
func (f *Filter) Matches(value string) bool {
	return value == f.Value
}

// ParseFilter parses a filter expression. The eq keyword is matched
// case-insensitively and the attribute must be one of allowed
// (case-insensitive, canonicalized to the allowed spelling). Unknown
// attributes, other operators and boolean combinators all fail with
// invalidFilter rather than degrading to an unfiltered result.
func ParseFilter(input string, allowed ...string) (*Filter, error) {
	p := &filterParser{input: input}

	p.skipWhitespace()
	attr, err := p.parseAttributeName()
	if err != nil {
		return nil, err
	}

	if err := p.parseEqOperator(); err != nil {
		return nil, err
	}

	value, err := p.parseQuotedString()
	if err != nil {
		return nil, err
	}

	p.skipWhitespace()
	if p.pos < len(p.input) {
		return nil, ErrInvalidFilter(fmt.Sprintf("unexpected %q after comparison; combinators are not supported", p.input[p.pos:]))
	}

	canonical := ""
	for _, a := range allowed {
		if strings.EqualFold(attr, a) {
			canonical = a
			break
		}
	}
	if canonical == "" {
		return nil, ErrInvalidFilter(fmt.Sprintf("unsupported filter attribute %q", attr))
	}

	return &Filter{Attribute: canonical, Value: value}, nil
}

// filterParser scans a filter expression left to right
type filterParser struct {
	input string
	pos   int
}

func (p *filterParser) skipWhitespace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *filterParser) parseAttributeName() (string, error) {
	start := p.pos
	for p.pos < len(p.input) && isAttributeChar(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", ErrInvalidFilter("expected attribute name")
	}
	return p.input[start:p.pos], nil
}

func (p *filterParser) parseEqOperator() error {
	p.skipWhitespace()
	start := p.pos
	for p.pos < len(p.input) && isAttributeChar(p.input[p.pos]) {
		p.pos++
	}
	op := p.input[start:p.pos]
	if op == "" {
		return ErrInvalidFilter("expected operator after attribute")
	}
	if !strings.EqualFold(op, "eq") {
		return ErrInvalidFilter(fmt.Sprintf("unsupported operator %q; only eq is supported", op))
	}
	return nil
}

func (p *filterParser) parseQuotedString() (string, error) {
	p.skipWhitespace()
	if p.pos >= len(p.input) || p.input[p.pos] != '"' {
		return "", ErrInvalidFilter("expected quoted string value")
	}
	p.pos++

	var sb strings.Builder
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		switch ch {
		case '"':
			p.pos++
			return sb.String(), nil
		case '\\':
			p.pos++
			if p.pos >= len(p.input) {
				return "", ErrInvalidFilter("unterminated escape sequence")
			}
			switch p.input[p.pos] {
			case '"', '\\':
				sb.WriteByte(p.input[p.pos])
			default:
				return "", ErrInvalidFilter(fmt.Sprintf("unsupported escape sequence \\%c", p.input[p.pos]))
			}
			p.pos++
		default:
			sb.WriteByte(ch)
			p.pos++
		}
	}
	return "", ErrInvalidFilter("unterminated string value")
}

func isAttributeChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}
