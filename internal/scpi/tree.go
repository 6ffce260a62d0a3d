// Package scpi implements the command dispatcher: a table of mnemonic
// patterns with bracket-optional segments, an incremental line parser that
// survives arbitrary chunk boundaries, the pending-error queue and the
// definite-length binary block encoding.
package scpi

import (
	"fmt"
	"strings"
)

// Handler executes one command. It returns a protocol error code
// (pkg/protocol) or 0; replies are written through the Context.
type Handler func(ctx *Context) int

// Command binds a pattern to its handler. Patterns use the instrument's
// SCPI subset: colon-separated mnemonics with an uppercase short form
// ("CONFigure"), optional bracketed segments ("[DMM:]", "[:VOLTage]") and a
// trailing "?" for queries.
type Command struct {
	Pattern string
	Handler Handler
}

type segment struct {
	short    string
	full     string
	optional bool
}

func (s segment) matches(part string) bool {
	up := strings.ToUpper(part)
	return up == s.short || up == s.full
}

func newSegment(text string, optional bool) segment {
	i := 0
	for i < len(text) {
		c := text[i]
		if c >= 'a' && c <= 'z' {
			break
		}
		i++
	}
	return segment{
		short:    strings.ToUpper(text[:i]),
		full:     strings.ToUpper(text),
		optional: optional,
	}
}

type compiledCommand struct {
	pattern  string
	segments []segment
	query    bool
	handler  Handler
}

func compilePattern(pattern string) (segs []segment, query bool, err error) {
	p := pattern
	if strings.HasSuffix(p, "?") {
		query = true
		p = p[:len(p)-1]
	}
	for i := 0; i < len(p); {
		switch p[i] {
		case ':':
			i++
		case '[':
			j := strings.IndexByte(p[i:], ']')
			if j < 0 {
				return nil, false, fmt.Errorf("pattern %q: unterminated bracket", pattern)
			}
			inner := strings.Trim(p[i+1:i+j], ":")
			if inner == "" {
				return nil, false, fmt.Errorf("pattern %q: empty bracket", pattern)
			}
			segs = append(segs, newSegment(inner, true))
			i += j + 1
		default:
			j := i
			for j < len(p) && p[j] != ':' && p[j] != '[' {
				j++
			}
			segs = append(segs, newSegment(p[i:j], false))
			i = j
		}
	}
	if len(segs) == 0 {
		return nil, false, fmt.Errorf("pattern %q: no segments", pattern)
	}
	return segs, query, nil
}

// matchParts tries to consume every input part with the pattern segments,
// skipping optional segments that do not match. All input must be consumed
// and every required segment satisfied.
func matchParts(segs []segment, parts []string) bool {
	si, pi := 0, 0
	for si < len(segs) {
		seg := segs[si]
		if pi < len(parts) && seg.matches(parts[pi]) {
			si++
			pi++
			continue
		}
		if seg.optional {
			si++
			continue
		}
		return false
	}
	return pi == len(parts)
}
