// Package sgf reads Smart Game Format records and replays their main line
// into board positions.
package sgf

import (
	"fmt"
	"strings"
)

// ParseError reports malformed SGF text at a byte offset.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sgf: offset %d: %s", e.Offset, e.Msg)
}

type Property struct {
	Ident  string
	Values []string
}

type Node struct {
	Properties []Property
}

// Values returns all values of the property, or nil when absent.
func (n *Node) Values(ident string) []string {
	for _, p := range n.Properties {
		if p.Ident == ident {
			return p.Values
		}
	}
	return nil
}

// Get returns the first value of the property.
func (n *Node) Get(ident string) (string, bool) {
	for _, p := range n.Properties {
		if p.Ident == ident && len(p.Values) > 0 {
			return p.Values[0], true
		}
	}
	return "", false
}

func (n *Node) Has(ident string) bool {
	for _, p := range n.Properties {
		if p.Ident == ident {
			return true
		}
	}
	return false
}

type GameTree struct {
	Nodes      []*Node
	Variations []*GameTree
}

// MainLine returns the nodes of the game following the first variation at
// every branch.
func (g *GameTree) MainLine() []*Node {
	var out []*Node
	for t := g; t != nil; {
		out = append(out, t.Nodes...)
		if len(t.Variations) == 0 {
			break
		}
		t = t.Variations[0]
	}
	return out
}

// Parse reads the first game tree of an SGF collection. Anything after the
// first tree is ignored.
func Parse(text string) (*GameTree, error) {
	p := &parser{src: strings.TrimPrefix(text, "\ufeff")}
	p.skipSpace()
	if p.eof() || p.peek() != '(' {
		return nil, p.errorf("expected '(' to start a game tree")
	}
	return p.tree()
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool  { return p.pos >= len(p.src) }
func (p *parser) peek() byte { return p.src[p.pos] }

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.peek() {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) tree() (*GameTree, error) {
	p.pos++ // '('
	t := &GameTree{}

	p.skipSpace()
	for !p.eof() && p.peek() == ';' {
		n, err := p.node()
		if err != nil {
			return nil, err
		}
		t.Nodes = append(t.Nodes, n)
		p.skipSpace()
	}
	if len(t.Nodes) == 0 {
		return nil, p.errorf("game tree has no nodes")
	}

	for !p.eof() && p.peek() == '(' {
		sub, err := p.tree()
		if err != nil {
			return nil, err
		}
		t.Variations = append(t.Variations, sub)
		p.skipSpace()
	}

	if p.eof() {
		return nil, p.errorf("unterminated game tree")
	}
	if p.peek() != ')' {
		return nil, p.errorf("unexpected %q in game tree", p.peek())
	}
	p.pos++
	return t, nil
}

func (p *parser) node() (*Node, error) {
	p.pos++ // ';'
	n := &Node{}
	for {
		p.skipSpace()
		if p.eof() || !isLetter(p.peek()) {
			return n, nil
		}

		start := p.pos
		var ident strings.Builder
		for !p.eof() && isLetter(p.peek()) {
			// FF[3] allowed lowercase letters inside identifiers (AddBlack -> AB).
			if c := p.peek(); c >= 'A' && c <= 'Z' {
				ident.WriteByte(c)
			}
			p.pos++
		}
		if ident.Len() == 0 {
			p.pos = start
			return nil, p.errorf("property identifier has no uppercase letters")
		}

		p.skipSpace()
		if p.eof() || p.peek() != '[' {
			return nil, p.errorf("property %s has no value", ident.String())
		}

		prop := Property{Ident: ident.String()}
		for !p.eof() && p.peek() == '[' {
			v, err := p.value()
			if err != nil {
				return nil, err
			}
			prop.Values = append(prop.Values, v)
			p.skipSpace()
		}
		n.Properties = append(n.Properties, prop)
	}
}

func (p *parser) value() (string, error) {
	open := p.pos
	p.pos++ // '['
	var sb strings.Builder
	for !p.eof() {
		c := p.peek()
		switch c {
		case ']':
			p.pos++
			return sb.String(), nil
		case '\\':
			p.pos++
			if p.eof() {
				continue
			}
			esc := p.peek()
			p.pos++
			// Escaped line breaks are soft breaks and are removed.
			if esc == '\n' || esc == '\r' {
				if !p.eof() && (p.peek() == '\n' || p.peek() == '\r') && p.peek() != esc {
					p.pos++
				}
				continue
			}
			sb.WriteByte(esc)
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", &ParseError{Offset: open, Msg: "unterminated property value"}
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
