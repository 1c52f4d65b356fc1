package vrml

import (
	"fmt"
)

// Node is a parsed VRML node. Nodes reached through USE are the same
// pointer as their DEF.
type Node struct {
	Type   string
	Name   string
	Fields map[string]*Value
}

// Value holds whatever followed a field name. Only the slices matching the
// field's type are filled.
type Value struct {
	Numbers []float64
	Nodes   []*Node
	Words   []string
}

// Field returns the named field or nil.
func (n *Node) Field(name string) *Value {
	if n == nil {
		return nil
	}
	return n.Fields[name]
}

// Node returns the first node of a field, e.g. Shape.geometry.
func (n *Node) Node(name string) *Node {
	v := n.Field(name)
	if v == nil || len(v.Nodes) == 0 {
		return nil
	}
	return v.Nodes[0]
}

// Numbers returns the numeric content of a field, or def when unset.
func (n *Node) Numbers(name string, def ...float64) []float64 {
	v := n.Field(name)
	if v == nil || len(v.Numbers) == 0 {
		return def
	}
	return v.Numbers
}

// Bool reads an SFBool field.
func (n *Node) Bool(name string, def bool) bool {
	v := n.Field(name)
	if v == nil || len(v.Words) == 0 {
		return def
	}
	switch v.Words[0] {
	case "TRUE":
		return true
	case "FALSE":
		return false
	}
	return def
}

type parser struct {
	lex  *lexer
	defs map[string]*Node
}

// ParseNodes parses a VRML 2.0 document into its top-level nodes.
// PROTO, EXTERNPROTO and ROUTE statements are skipped.
func ParseNodes(src []byte) ([]*Node, error) {
	p := &parser{lex: newLexer(src), defs: make(map[string]*Node)}
	var nodes []*Node
	for {
		t, err := p.lex.Next()
		if err != nil {
			return nil, err
		}
		if t.kind == tokEOF {
			return nodes, nil
		}
		if t.kind != tokWord {
			return nil, fmt.Errorf("line %d: unexpected %s at top level", t.line, t)
		}
		switch t.text {
		case "PROTO", "EXTERNPROTO":
			if err := p.skipProto(); err != nil {
				return nil, err
			}
			continue
		case "ROUTE":
			if err := p.skipRoute(); err != nil {
				return nil, err
			}
			continue
		}
		n, err := p.nodeFrom(t)
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, n)
		}
	}
}

// nodeFrom parses a node whose first word (type, DEF or USE) is t.
func (p *parser) nodeFrom(t token) (*Node, error) {
	switch t.text {
	case "NULL":
		return nil, nil
	case "USE":
		name, err := p.expect(tokWord)
		if err != nil {
			return nil, err
		}
		n, ok := p.defs[name.text]
		if !ok {
			return nil, fmt.Errorf("line %d: USE of undefined node %q", name.line, name.text)
		}
		return n, nil
	case "DEF":
		name, err := p.expect(tokWord)
		if err != nil {
			return nil, err
		}
		typ, err := p.expect(tokWord)
		if err != nil {
			return nil, err
		}
		n, err := p.body(typ.text)
		if err != nil {
			return nil, err
		}
		n.Name = name.text
		p.defs[name.text] = n
		return n, nil
	}
	return p.body(t.text)
}

func (p *parser) body(typ string) (*Node, error) {
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, fmt.Errorf("node %s: %w", typ, err)
	}
	n := &Node{Type: typ, Fields: make(map[string]*Value)}
	for {
		t, err := p.lex.Next()
		if err != nil {
			return nil, err
		}
		switch t.kind {
		case tokRBrace:
			return n, nil
		case tokEOF:
			return nil, fmt.Errorf("node %s: unexpected end of file", typ)
		case tokWord:
			if t.text == "ROUTE" {
				if err := p.skipRoute(); err != nil {
					return nil, err
				}
				continue
			}
			v, done, err := p.value()
			if err != nil {
				return nil, fmt.Errorf("node %s field %s: %w", typ, t.text, err)
			}
			n.Fields[t.text] = v
			if done {
				return n, nil
			}
		default:
			return nil, fmt.Errorf("line %d: node %s: unexpected %s", t.line, typ, t)
		}
	}
}

// value parses a field value. done is set when the enclosing node's closing
// brace was consumed because the field had no value.
func (p *parser) value() (v *Value, done bool, err error) {
	v = &Value{}
	t, err := p.lex.Next()
	if err != nil {
		return nil, false, err
	}
	switch t.kind {
	case tokRBrace:
		return v, true, nil
	case tokNumber:
		v.Numbers = append(v.Numbers, t.num)
		for {
			nt, err := p.lex.Peek()
			if err != nil {
				return nil, false, err
			}
			if nt.kind != tokNumber {
				return v, false, nil
			}
			p.lex.Next()
			v.Numbers = append(v.Numbers, nt.num)
		}
	case tokString:
		v.Words = append(v.Words, t.text)
		return v, false, nil
	case tokLBracket:
		return v, false, p.list(v)
	case tokWord:
		return v, false, p.word(t, v)
	}
	return nil, false, fmt.Errorf("line %d: unexpected %s", t.line, t)
}

func (p *parser) list(v *Value) error {
	for {
		t, err := p.lex.Next()
		if err != nil {
			return err
		}
		switch t.kind {
		case tokRBracket:
			return nil
		case tokEOF:
			return fmt.Errorf("unterminated list")
		case tokNumber:
			v.Numbers = append(v.Numbers, t.num)
		case tokString:
			v.Words = append(v.Words, t.text)
		case tokWord:
			if err := p.word(t, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("line %d: unexpected %s in list", t.line, t)
		}
	}
}

// word stores either a node (DEF, USE or Type {...}) or a bare word such as TRUE.
func (p *parser) word(t token, v *Value) error {
	isNode := t.text == "DEF" || t.text == "USE"
	if !isNode {
		nt, err := p.lex.Peek()
		if err != nil {
			return err
		}
		isNode = nt.kind == tokLBrace
	}
	if !isNode {
		v.Words = append(v.Words, t.text)
		return nil
	}
	n, err := p.nodeFrom(t)
	if err != nil {
		return err
	}
	if n != nil {
		v.Nodes = append(v.Nodes, n)
	}
	return nil
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t, err := p.lex.Next()
	if err != nil {
		return token{}, err
	}
	if t.kind != kind {
		return token{}, fmt.Errorf("line %d: unexpected %s", t.line, t)
	}
	return t, nil
}

// skipProto drops "name [ interface ] { body }" for PROTO and
// "name [ interface ] url" for EXTERNPROTO.
func (p *parser) skipProto() error {
	if _, err := p.expect(tokWord); err != nil {
		return err
	}
	if _, err := p.expect(tokLBracket); err != nil {
		return err
	}
	if err := p.skipUntil(tokRBracket, tokLBracket); err != nil {
		return err
	}
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	switch t.kind {
	case tokLBrace:
		return p.skipUntil(tokRBrace, tokLBrace)
	case tokLBracket:
		return p.skipUntil(tokRBracket, tokLBracket)
	}
	return nil
}

func (p *parser) skipUntil(closeKind, openKind tokenKind) error {
	depth := 1
	for depth > 0 {
		t, err := p.lex.Next()
		if err != nil {
			return err
		}
		switch t.kind {
		case tokEOF:
			return fmt.Errorf("unexpected end of file")
		case openKind:
			depth++
		case closeKind:
			depth--
		}
	}
	return nil
}

// skipRoute drops "from.field TO to.field".
func (p *parser) skipRoute() error {
	for i := 0; i < 3; i++ {
		if _, err := p.expect(tokWord); err != nil {
			return err
		}
	}
	return nil
}
