/*
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cmonster

import (
	"io"
	"strings"

	"github.com/ljsking/cmonster/token"
)

// Format writes tokens to w, recreating the original layout from their
// positions: newlines when a token's line is past the cursor, spaces up
// to its column. Tokens without a valid position (synthetic ones from
// expansion callbacks) fall back to a single separating space when they
// carry the leading-whitespace flag. When the stream crosses into another
// source unit the cursor resynchronizes on a fresh line.
func Format(w io.Writer, toks []token.Token) error {
	f := &formatter{w: w, line: 1, col: 1}
	for _, t := range toks {
		if err := f.write(t); err != nil {
			return err
		}
	}
	return nil
}

type formatter struct {
	w    io.Writer
	line int
	col  int
	unit int
}

func (f *formatter) write(t token.Token) error {
	var pad string
	switch {
	case !t.Pos.IsValid():
		if t.HasLeadingSpace() && f.col > 1 {
			pad = " "
			f.col++
		}
	case f.unit != 0 && t.Pos.Unit != f.unit:
		if f.col > 1 {
			pad = "\n"
		}
		pad += strings.Repeat(" ", t.Pos.Col-1)
		f.unit, f.line, f.col = t.Pos.Unit, t.Pos.Line, t.Pos.Col
	default:
		if t.Pos.Line > f.line {
			pad = strings.Repeat("\n", t.Pos.Line-f.line)
			f.line = t.Pos.Line
			f.col = 1
		}
		if t.Pos.Col > f.col {
			pad += strings.Repeat(" ", t.Pos.Col-f.col)
			f.col = t.Pos.Col
		} else if pad == "" && t.HasLeadingSpace() && f.col > 1 {
			pad = " "
			f.col++
		}
		f.unit = t.Pos.Unit
	}
	if _, err := io.WriteString(f.w, pad+t.Text); err != nil {
		return err
	}
	f.col += len(t.Text)
	return nil
}
