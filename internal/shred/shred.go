// Package shred implements the hierarchical keyword shredder: deterministic
// multi-level tokenization of a cell's text into keywords carrying
// by-value parent references, per the four delimiter classes.
package shred

import "bytes"

// MaxLevel is the highest split level. Children of a split at level 2 or 3
// are emitted at level 3; a level-3 token is still split on the level-3
// delimiter class, and its children stay at level 3.
const MaxLevel = 3

// delimiterClasses holds, per level, the exact byte set that introduces a
// split boundary at that level. Order matters: level 0 is tried first.
var delimiterClasses = [MaxLevel + 1][]byte{
	0: []byte(" \r\n\t'\"<>()|,!;{}*"),
	1: []byte("/@=:\\?&"),
	2: []byte(".$#`~^+"),
	3: []byte("-_"),
}

// Emission is one (keyword, parent, level) tuple produced by shredding a
// cell. Parent is empty for level-0 tokens (no parent). Parent is recorded
// by value, not by pointer, so the on-disk form needs no fixups.
type Emission struct {
	Keyword string
	Parent  string // empty means "no parent" (this is a level-0 token)
	Level   uint8
}

// Shredder turns cell text into deterministic keyword emissions. It holds
// no per-call mutable state and is safe for concurrent use.
type Shredder struct{}

// New creates a Shredder.
func New() *Shredder {
	return &Shredder{}
}

// token is a live intermediate during splitting: text plus the level at
// which it was produced (0 for the original cell).
type token struct {
	text  string
	level uint8
}

// Shred produces the ordered emissions for cell: the whole cell at level 0,
// then recursively split tokens through levels 1..3, parent emitted before
// its children, children in left-to-right order.
func (s *Shredder) Shred(cell string) []Emission {
	if cell == "" {
		return nil
	}

	var out []Emission
	out = append(out, Emission{Keyword: cell, Parent: "", Level: 0})

	var walk func(t token)
	walk = func(t token) {
		if t.level > MaxLevel {
			return
		}
		for level := t.level; level <= MaxLevel; level++ {
			children, split := splitOnClass(t.text, delimiterClasses[level])
			if !split {
				continue // no boundary at this level; token stays live for next level
			}
			childLevel := level + 1
			if childLevel > MaxLevel {
				childLevel = MaxLevel
			}
			for _, c := range children {
				if c == t.text {
					// no actual split occurred for this sub-token; keep it
					// live without re-emitting, then continue splitting it
					// at subsequent levels from where we are.
					continue
				}
				out = append(out, Emission{Keyword: c, Parent: t.text, Level: childLevel})
				walk(token{text: c, level: childLevel})
			}
			return // this level produced a split; remaining levels handled by recursive walk calls
		}
	}

	walk(token{text: cell, level: 0})
	return out
}

// splitOnClass splits s on any maximal run of bytes in class, discarding
// empty sub-tokens from collapsed adjacent delimiters. It reports whether a
// split boundary was actually found (s itself is returned unsplit, split
// false, when no delimiter byte from class occurs in s).
func splitOnClass(s string, class []byte) ([]string, bool) {
	isDelim := func(b byte) bool {
		return bytes.IndexByte(class, b) >= 0
	}

	found := false
	for i := 0; i < len(s); i++ {
		if isDelim(s[i]) {
			found = true
			break
		}
	}
	if !found {
		return []string{s}, false
	}

	var out []string
	start := -1
	for i := 0; i < len(s); i++ {
		if isDelim(s[i]) {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out, true
}

// QueryToken is a single leaf token from single-input (query) shredding,
// plus its full parent chain up to the original query string.
type QueryToken struct {
	Text        string
	ParentChain []string // ordered nearest-parent-first, ending at the root cell
}

// ShredQuery shreds a single query string in single-input mode: it returns
// only the leaves of the split tree (no intermediate parents emitted as
// standalone results), each carrying its full parent chain for phrase
// verification.
func ShredQuery(query string) []QueryToken {
	if query == "" {
		return nil
	}

	var leaves []QueryToken
	var walk func(text string, level uint8, chain []string)
	walk = func(text string, level uint8, chain []string) {
		if level > MaxLevel {
			leaves = append(leaves, QueryToken{Text: text, ParentChain: append([]string(nil), chain...)})
			return
		}
		for l := level; l <= MaxLevel; l++ {
			children, split := splitOnClass(text, delimiterClasses[l])
			if !split {
				continue
			}
			childLevel := l + 1
			if childLevel > MaxLevel {
				childLevel = MaxLevel
			}
			for _, c := range children {
				if c == text {
					continue
				}
				newChain := append(append([]string(nil), text), chain...)
				walk(c, childLevel, newChain)
			}
			return
		}
		// no split found at any remaining level: text is a leaf
		leaves = append(leaves, QueryToken{Text: text, ParentChain: append([]string(nil), chain...)})
	}

	walk(query, 0, nil)
	return leaves
}
