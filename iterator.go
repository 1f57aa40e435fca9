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
	"github.com/ljsking/cmonster/token"
)

// TokenIterator walks the fully expanded output of a preprocessing run
// with one token of lookahead, so HasNext can answer before the last
// token has been handed out.
type TokenIterator struct {
	p    *Preprocessor
	next token.Token
	err  error
}

// CreateIterator starts the main pass and returns an iterator over its
// expanded output.
func (p *Preprocessor) CreateIterator() *TokenIterator {
	it := &TokenIterator{p: p}
	it.next, it.err = p.Next(true)
	return it
}

// HasNext reports whether another token (or a pending error) remains.
func (it *TokenIterator) HasNext() bool {
	return it.err != nil || it.next.Kind != token.EOF
}

// Next returns the current token and advances. Once the underlying pass
// fails, the same error is returned from every subsequent call.
func (it *TokenIterator) Next() (token.Token, error) {
	if it.err != nil {
		return token.Token{Kind: token.EOF}, it.err
	}
	t := it.next
	it.next, it.err = it.p.Next(true)
	return t, nil
}
