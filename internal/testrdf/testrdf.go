// Package testrdf holds tiny N-Triples fixtures used by the ntingest
// package tests.
package testrdf

// Simple is three distinct, well-formed triples: the first two share a
// subject, the first and third share a predicate, no object repeats.
const Simple = `<http://example.org/a> <http://example.org/p1> <http://example.org/b> .
<http://example.org/a> <http://example.org/p2> "hello" .
<http://example.org/c> <http://example.org/p1> <http://example.org/d> .
`

// DuplicateLines is two syntactically identical lines, for dedup tests.
const DuplicateLines = `<http://example.org/a> <http://example.org/b> "c" .
<http://example.org/a> <http://example.org/b> "c" .
`

// WithBlankAndMalformed mixes a blank-node subject, a blank-node object,
// and one malformed line among otherwise-valid triples.
const WithBlankAndMalformed = `<http://example.org/a> <http://example.org/p> <http://example.org/b> .
_:b1 <http://example.org/p> <http://example.org/b> .
<http://example.org/a> <http://example.org/p> _:b2 .
this is not a valid triple line
<http://example.org/c> <http://example.org/p> "literal" .
`
