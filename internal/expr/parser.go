package expr

import (
	"strconv"

	"github.com/roach88/appsim/internal/ir"
)

// keywords may not be used as bare identifiers. They are still valid
// field names after ".".
var keywords = map[string]bool{
	"true": true, "false": true, "null": true,
	"and": true, "or": true, "not": true,
}

// Parse parses an expression. The whole source must be consumed.
func Parse(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, syntaxError(0, "empty expression")
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, syntaxError(t.pos, "unexpected %q", t.text)
	}
	return e, nil
}

// MustParse is like Parse but panics on error. Use only in tests.
func MustParse(src string) Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// accept consumes the next token if it is one of the given operators or
// word operators, returning the normalized operator.
func (p *parser) accept(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokOp && t.kind != tokIdent {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.next()
			switch op {
			case "and":
				return "&&", true
			case "or":
				return "||", true
			case "not":
				return "!", true
			}
			return op, true
		}
	}
	return "", false
}

func (p *parser) expect(op string) error {
	t := p.peek()
	if t.kind != tokOp || t.text != op {
		if t.kind == tokEOF {
			return syntaxError(t.pos, "expected %q, got end of expression", op)
		}
		return syntaxError(t.pos, "expected %q, got %q", op, t.text)
	}
	p.next()
	return nil
}

func (p *parser) binaryLevel(sub func() (Expr, error), ops ...string) (Expr, error) {
	left, err := sub()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.accept(ops...)
		if !ok {
			return left, nil
		}
		right, err := sub()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseOr() (Expr, error) {
	return p.binaryLevel(p.parseAnd, "||", "or")
}

func (p *parser) parseAnd() (Expr, error) {
	return p.binaryLevel(p.parseEquality, "&&", "and")
}

func (p *parser) parseEquality() (Expr, error) {
	return p.binaryLevel(p.parseComparison, "==", "!=")
}

func (p *parser) parseComparison() (Expr, error) {
	return p.binaryLevel(p.parseAdditive, "<=", ">=", "<", ">")
}

func (p *parser) parseAdditive() (Expr, error) {
	return p.binaryLevel(p.parseMultiplicative, "+", "-")
}

func (p *parser) parseMultiplicative() (Expr, error) {
	return p.binaryLevel(p.parseUnary, "*", "/", "%")
}

func (p *parser) parseUnary() (Expr, error) {
	if op, ok := p.accept("!", "not", "-"); ok {
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op, X: x}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.accept("."); ok {
			t := p.next()
			if t.kind != tokIdent {
				return nil, syntaxError(t.pos, "expected field name after \".\"")
			}
			e = &Member{Object: e, Name: t.text}
			continue
		}
		if _, ok := p.accept("["); ok {
			idx, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			e = &Index{Object: e, Index: idx}
			continue
		}
		return e, nil
	}
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, syntaxError(t.pos, "invalid number %q", t.text)
		}
		return &Literal{Value: ir.IRNumber(f)}, nil

	case tokString:
		return &Literal{Value: ir.IRString(t.text)}, nil

	case tokIdent:
		switch t.text {
		case "true":
			return &Literal{Value: ir.IRBool(true)}, nil
		case "false":
			return &Literal{Value: ir.IRBool(false)}, nil
		case "null":
			return &Literal{Value: ir.IRNull{}}, nil
		}
		if keywords[t.text] {
			return nil, syntaxError(t.pos, "unexpected keyword %q", t.text)
		}
		if _, ok := p.accept("("); ok {
			args, err := p.parseList(")")
			if err != nil {
				return nil, err
			}
			return &Call{Func: t.text, Args: args}, nil
		}
		return &Ident{Name: t.text}, nil

	case tokOp:
		switch t.text {
		case "(":
			e, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return e, nil
		case "[":
			elems, err := p.parseList("]")
			if err != nil {
				return nil, err
			}
			return &ArrayLit{Elems: elems}, nil
		}
		return nil, syntaxError(t.pos, "unexpected %q", t.text)

	default:
		return nil, syntaxError(t.pos, "unexpected end of expression")
	}
}

// parseList parses comma-separated expressions up to the closing operator.
func (p *parser) parseList(closing string) ([]Expr, error) {
	var items []Expr
	if _, ok := p.accept(closing); ok {
		return items, nil
	}
	for {
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		items = append(items, e)
		if _, ok := p.accept(","); ok {
			continue
		}
		if err := p.expect(closing); err != nil {
			return nil, err
		}
		return items, nil
	}
}
