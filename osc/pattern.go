package osc

import (
	"strings"

	"github.com/pkg/errors"
)

// opKind is the instruction type of a compiled address pattern.
type opKind uint8

const (
	opLiteral   opKind = iota // a run of literal bytes
	opAnyChar                 // '?'
	opAnyRun                  // '*'
	opClass                   // '[...]'
	opAlternate               // '{a,b,...}'
)

// patternSpecials are the bytes with a meaning in an address pattern.
const patternSpecials = "*?[]{}"

// charClass is a set of bytes.
type charClass [4]uint64

func (c *charClass) add(b byte)          { c[b>>6] |= 1 << (b & 63) }
func (c *charClass) remove(b byte)       { c[b>>6] &^= 1 << (b & 63) }
func (c *charClass) contains(b byte) bool { return c[b>>6]&(1<<(b&63)) != 0 }

type instruction struct {
	kind    opKind
	literal string
	class   charClass
	alts    []string
}

// pattern is an address pattern compiled once at registration time.
//
// No wildcard matches '/', so wildcards never span address segments. Only
// an alternative containing a literal '/' does.
type pattern struct {
	source    string
	ops       []instruction
	literal   bool // no wildcards, compare the source directly
	backtrack bool // has '*' or '{}'
}

// compilePattern parses an OSC address pattern.
func compilePattern(src string) (*pattern, error) {
	p := &pattern{source: src}
	if !strings.ContainsAny(src, patternSpecials) {
		p.literal = true
		return p, nil
	}

	for i := 0; i < len(src); {
		switch c := src[i]; c {
		case '*':
			// consecutive stars are one star
			for i < len(src) && src[i] == '*' {
				i++
			}
			p.ops = append(p.ops, instruction{kind: opAnyRun})
			p.backtrack = true

		case '?':
			p.ops = append(p.ops, instruction{kind: opAnyChar})
			i++

		case '[':
			end := strings.IndexByte(src[i+1:], ']')
			if end < 0 {
				return nil, errors.Wrapf(ErrInvalidPattern, "%q: unterminated '['", src)
			}
			class, err := parseClass(src[i+1 : i+1+end])
			if err != nil {
				return nil, errors.Wrapf(err, "%q", src)
			}
			p.ops = append(p.ops, instruction{kind: opClass, class: class})
			i += end + 2

		case '{':
			end := strings.IndexByte(src[i+1:], '}')
			if end < 0 {
				return nil, errors.Wrapf(ErrInvalidPattern, "%q: unterminated '{'", src)
			}
			body := src[i+1 : i+1+end]
			if strings.ContainsAny(body, patternSpecials) {
				return nil, errors.Wrapf(ErrInvalidPattern, "%q: wildcards are not allowed inside '{}'", src)
			}
			p.ops = append(p.ops, instruction{kind: opAlternate, alts: strings.Split(body, ",")})
			p.backtrack = true
			i += end + 2

		case ']', '}':
			return nil, errors.Wrapf(ErrInvalidPattern, "%q: unbalanced %q", src, c)

		default:
			end := strings.IndexAny(src[i:], patternSpecials)
			if end < 0 {
				end = len(src) - i
			}
			p.ops = append(p.ops, instruction{kind: opLiteral, literal: src[i : i+end]})
			i += end
		}
	}

	return p, nil
}

// parseClass parses the body of a '[...]' expression. A leading '!' negates
// the class, "a-z" is an inclusive range and a '-' at either end is literal.
func parseClass(body string) (charClass, error) {
	var class charClass

	negate := strings.HasPrefix(body, "!")
	if negate {
		body = body[1:]
	}
	if body == "" {
		return class, errors.Wrap(ErrInvalidPattern, "empty character class")
	}

	for j := 0; j < len(body); j++ {
		lo := body[j]
		if j+2 < len(body) && body[j+1] == '-' {
			hi := body[j+2]
			if lo > hi {
				return class, errors.Wrapf(ErrInvalidPattern, "invalid range %c-%c", lo, hi)
			}
			for b := int(lo); b <= int(hi); b++ {
				class.add(byte(b))
			}
			j += 2
			continue
		}
		class.add(lo)
	}

	if negate {
		for k := range class {
			class[k] = ^class[k]
		}
	}
	class.remove('/')
	return class, nil
}

// match reports whether addr matches the whole pattern.
func (p *pattern) match(addr string) bool {
	if p.literal {
		return addr == p.source
	}

	// failed memoizes (instruction, position) states already known not to
	// match, which keeps '*' and '{}' backtracking polynomial.
	var failed []bool
	if p.backtrack {
		failed = make([]bool, (len(p.ops)+1)*(len(addr)+1))
	}
	return p.matchAt(0, addr, 0, failed)
}

func (p *pattern) matchAt(op int, s string, pos int, failed []bool) bool {
	for ; op < len(p.ops); op++ {
		in := &p.ops[op]
		switch in.kind {
		case opLiteral:
			if !strings.HasPrefix(s[pos:], in.literal) {
				return false
			}
			pos += len(in.literal)

		case opAnyChar:
			if pos >= len(s) || s[pos] == '/' {
				return false
			}
			pos++

		case opClass:
			if pos >= len(s) || !in.class.contains(s[pos]) {
				return false
			}
			pos++

		case opAnyRun, opAlternate:
			key := op*(len(s)+1) + pos
			if failed[key] {
				return false
			}
			if p.branch(op, s, pos, failed) {
				return true
			}
			failed[key] = true
			return false
		}
	}
	return pos == len(s)
}

// branch tries every way the '*' or '{}' instruction at op can consume s[pos:].
func (p *pattern) branch(op int, s string, pos int, failed []bool) bool {
	in := &p.ops[op]
	if in.kind == opAnyRun {
		end := strings.IndexByte(s[pos:], '/')
		if end < 0 {
			end = len(s)
		} else {
			end += pos
		}
		for i := end; i >= pos; i-- {
			if p.matchAt(op+1, s, i, failed) {
				return true
			}
		}
		return false
	}

	for _, alt := range in.alts {
		if strings.HasPrefix(s[pos:], alt) && p.matchAt(op+1, s, pos+len(alt), failed) {
			return true
		}
	}
	return false
}
