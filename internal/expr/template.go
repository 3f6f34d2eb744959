package expr

import (
	"strings"

	"github.com/roach88/appsim/internal/ir"
)

// Template is a parsed string template: literal runs interleaved with
// ${expr} substitutions.
//
// "$$" writes a literal "$". When "$$" is directly followed by "{", the
// second "$" opens a substitution, so "$${params.amount}" renders as "$100".
// A "$" not followed by "$" or "{" is literal.
type Template struct {
	Source string
	Parts  []TemplatePart
}

// TemplatePart is either literal text or an expression (Expr != nil).
type TemplatePart struct {
	Text string
	Expr Expr
}

// IsTemplate reports whether s contains a substitution.
func IsTemplate(s string) bool {
	return strings.Contains(s, "${")
}

// ParseTemplate parses a template source.
func ParseTemplate(src string) (*Template, error) {
	t := &Template{Source: src}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			t.Parts = append(t.Parts, TemplatePart{Text: lit.String()})
			lit.Reset()
		}
	}

	i := 0
	for i < len(src) {
		c := src[i]
		if c != '$' {
			lit.WriteByte(c)
			i++
			continue
		}
		switch {
		case i+1 < len(src) && src[i+1] == '$':
			lit.WriteByte('$')
			if i+2 < len(src) && src[i+2] == '{' {
				i++ // the second '$' opens ${...}
			} else {
				i += 2
			}
		case i+1 < len(src) && src[i+1] == '{':
			end, err := closingBrace(src, i+2)
			if err != nil {
				return nil, err
			}
			inner := src[i+2 : end]
			e, err := Parse(inner)
			if err != nil {
				if xe, ok := err.(*Error); ok && xe.Pos >= 0 {
					xe.Pos += i + 2
				}
				return nil, err
			}
			flush()
			t.Parts = append(t.Parts, TemplatePart{Expr: e})
			i = end + 1
		default:
			lit.WriteByte('$')
			i++
		}
	}
	flush()
	return t, nil
}

// closingBrace finds the "}" that ends a substitution starting at from,
// skipping braces inside quoted strings.
func closingBrace(src string, from int) (int, error) {
	var quote byte
	for i := from; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0 && c == '\\':
			i++
		case quote != 0 && c == quote:
			quote = 0
		case quote != 0:
		case c == '"' || c == '\'':
			quote = c
		case c == '}':
			return i, nil
		}
	}
	return 0, syntaxError(from-2, "unterminated ${ in template")
}

// Exprs returns the embedded expressions.
func (t *Template) Exprs() []Expr {
	var out []Expr
	for _, p := range t.Parts {
		if p.Expr != nil {
			out = append(out, p.Expr)
		}
	}
	return out
}

// Render evaluates every substitution and concatenates the result.
// Values are rendered with ir.Stringify.
func (t *Template) Render(env Env) (string, error) {
	var b strings.Builder
	for _, p := range t.Parts {
		if p.Expr == nil {
			b.WriteString(p.Text)
			continue
		}
		v, err := Eval(p.Expr, env)
		if err != nil {
			return "", err
		}
		b.WriteString(ir.Stringify(v))
	}
	return b.String(), nil
}
