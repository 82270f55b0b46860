// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package irparse

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/gx-org/affinecfg/ir/fmterr"
)

// cursor reads a source character by character and tracks positions.
type cursor struct {
	file      string
	src       string
	off       int
	line, col int
}

func newCursor(file, src string) *cursor {
	return &cursor{file: file, src: src, line: 1, col: 1}
}

func (c *cursor) pos() fmterr.Pos {
	return fmterr.Pos{File: c.file, Line: c.line, Col: c.col}
}

func (c *cursor) errorf(format string, a ...any) error {
	return fmterr.Errorf(c.pos(), format, a...)
}

func (c *cursor) eof() bool {
	return c.off >= len(c.src)
}

func (c *cursor) peek() byte {
	if c.eof() {
		return 0
	}
	return c.src[c.off]
}

func (c *cursor) peekAt(i int) byte {
	if c.off+i >= len(c.src) {
		return 0
	}
	return c.src[c.off+i]
}

func (c *cursor) advance(n int) {
	for i := 0; i < n && !c.eof(); i++ {
		if c.src[c.off] == '\n' {
			c.line++
			c.col = 1
		} else {
			c.col++
		}
		c.off++
	}
}

// skipSpace skips blanks and comments.
// Newlines are skipped only if multiline is set.
func (c *cursor) skipSpace(multiline bool) {
	for !c.eof() {
		switch ch := c.peek(); {
		case ch == ' ' || ch == '\t' || ch == '\r':
			c.advance(1)
		case ch == '\n' && multiline:
			c.advance(1)
		case ch == '/' && c.peekAt(1) == '/':
			for !c.eof() && c.peek() != '\n' {
				c.advance(1)
			}
		default:
			return
		}
	}
}

// inline skips blanks on the current line.
func (c *cursor) inline() {
	c.skipSpace(false)
}

func (c *cursor) hasPrefix(s string) bool {
	return strings.HasPrefix(c.src[c.off:], s)
}

// accept consumes s if the source continues with s.
func (c *cursor) accept(s string) bool {
	if !c.hasPrefix(s) {
		return false
	}
	c.advance(len(s))
	return true
}

func (c *cursor) expect(s string) error {
	if !c.accept(s) {
		return c.errorf("expected %q but got %s", s, c.near())
	}
	return nil
}

// near returns a short description of what follows the cursor.
func (c *cursor) near() string {
	if c.eof() {
		return "end of file"
	}
	rest := c.src[c.off:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	if len(rest) > 16 {
		rest = rest[:16] + "..."
	}
	return strconv.Quote(rest)
}

func isIdentByte(ch byte) bool {
	return ch == '_' || ch == '.' || ch == '$' || ch < unicode.MaxASCII && (unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch)))
}

func (c *cursor) ident() string {
	start := c.off
	for !c.eof() && isIdentByte(c.peek()) {
		c.advance(1)
	}
	return c.src[start:c.off]
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func (c *cursor) integer() (int64, error) {
	start := c.off
	if c.peek() == '-' {
		c.advance(1)
	}
	for !c.eof() && isDigit(c.peek()) {
		c.advance(1)
	}
	v, err := strconv.ParseInt(c.src[start:c.off], 10, 64)
	if err != nil {
		return 0, c.errorf("invalid integer %q", c.src[start:c.off])
	}
	return v, nil
}

// quoted reads a double-quoted string.
func (c *cursor) quoted() (string, error) {
	start := c.off
	if c.peek() != '"' {
		return "", c.errorf("expected a string but got %s", c.near())
	}
	c.advance(1)
	for !c.eof() && c.peek() != '"' {
		if c.peek() == '\\' {
			c.advance(1)
		}
		c.advance(1)
	}
	if err := c.expect(`"`); err != nil {
		return "", err
	}
	s, err := strconv.Unquote(c.src[start:c.off])
	if err != nil {
		return "", c.errorf("invalid string %s: %v", c.src[start:c.off], err)
	}
	return s, nil
}

// angled returns the raw text up to the '>' closing an opening '<' already consumed.
// Arrows and comparisons nested in parentheses are skipped.
func (c *cursor) angled() (string, error) {
	start := c.off
	depth := 0
	for !c.eof() {
		switch ch := c.peek(); ch {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '>':
			if depth == 0 && c.src[c.off-1] != '-' {
				s := c.src[start:c.off]
				c.advance(1)
				return s, nil
			}
		case '\n':
			return "", c.errorf("unterminated <...>")
		}
		c.advance(1)
	}
	return "", c.errorf("unterminated <...>")
}
