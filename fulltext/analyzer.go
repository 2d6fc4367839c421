package fulltext

import (
	"strings"
	"unicode"
)

// Stage distinguishes the two points an Analyzer runs at: documents are
// indexed once but queried many times, and a filter may behave
// differently at each (an EdgeNgramFilter, for instance, expands a
// document's terms into every prefix at index time but leaves a query
// term untouched).
type Stage int

const (
	StageIndexing Stage = iota
	StageQuerying
)

// Offset is a half-open byte range into the original content a term was
// extracted from, used to drive Highlight.
type Offset struct {
	Start, End int
}

// Token is one term produced by a Tokenizer, with every byte range in the
// source content it came from (a term can repeat).
type Token struct {
	Term    string
	Offsets []Offset
}

// Tokenizer splits content into an ordered sequence of Tokens.
type Tokenizer interface {
	Tokenize(content string) []Token
}

// Filter transforms the token stream produced by a Tokenizer, or by an
// earlier Filter in the chain. Filters may split, drop, or fold tokens;
// they receive the Stage so indexing-only expansions (e.g. edge n-grams)
// don't also rewrite the query side.
type Filter interface {
	Filter(stage Stage, tokens []Token) []Token
}

// Analyzer is the tokenizer+filter chain configured per DEFINE ANALYZER.
type Analyzer struct {
	Tokenizer Tokenizer
	Filters   []Filter
}

// Analyze runs content through the tokenizer and every filter in order.
func (a *Analyzer) Analyze(stage Stage, content string) []Token {
	var tokens []Token
	if a.Tokenizer != nil {
		tokens = a.Tokenizer.Tokenize(content)
	}
	for _, f := range a.Filters {
		tokens = f.Filter(stage, tokens)
	}
	return tokens
}

// BlankTokenizer splits on runs of Unicode whitespace, the simplest of
// the shipped tokenizers and the default for DEFINE ANALYZER ...
// TOKENIZERS BLANK.
type BlankTokenizer struct{}

func (BlankTokenizer) Tokenize(content string) []Token {
	var tokens []Token
	start := -1
	for i, r := range content {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, Token{Term: content[start:i], Offsets: []Offset{{start, i}}})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Term: content[start:], Offsets: []Offset{{start, len(content)}}})
	}
	return tokens
}

func runeClass(r rune) int {
	switch {
	case unicode.IsSpace(r):
		return 0
	case unicode.IsDigit(r):
		return 1
	case unicode.IsLetter(r):
		return 2
	default:
		return 3
	}
}

// ClassTokenizer splits on transitions between Unicode character classes
// (space, digit, letter, other), so "foo123bar!" yields "foo", "123",
// "bar", "!" as separate tokens.
type ClassTokenizer struct{}

func (ClassTokenizer) Tokenize(content string) []Token {
	var tokens []Token
	start := -1
	class := -1
	flush := func(end int) {
		if start >= 0 && class != 0 {
			tokens = append(tokens, Token{Term: content[start:end], Offsets: []Offset{{start, end}}})
		}
		start = -1
	}
	for i, r := range content {
		c := runeClass(r)
		if c != class {
			flush(i)
			start = i
			class = c
		}
	}
	flush(len(content))
	return tokens
}

// LowercaseFilter folds every term to lowercase at both stages.
type LowercaseFilter struct{}

func (LowercaseFilter) Filter(stage Stage, tokens []Token) []Token {
	out := make([]Token, len(tokens))
	for i, t := range tokens {
		t.Term = strings.ToLower(t.Term)
		out[i] = t
	}
	return out
}

// asciiFold maps the common decomposable Latin-1 Supplement letters to
// their base ASCII form. No normalization library appears anywhere in
// the example corpus, so AsciiFilter folds via this table instead of a
// full Unicode NFKD decomposition.
var asciiFold = map[rune]rune{
	'À': 'A', 'Á': 'A', 'Â': 'A', 'Ã': 'A', 'Ä': 'A', 'Å': 'A',
	'à': 'a', 'á': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a', 'å': 'a',
	'È': 'E', 'É': 'E', 'Ê': 'E', 'Ë': 'E', 'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e',
	'Ì': 'I', 'Í': 'I', 'Î': 'I', 'Ï': 'I', 'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i',
	'Ò': 'O', 'Ó': 'O', 'Ô': 'O', 'Õ': 'O', 'Ö': 'O', 'ò': 'o', 'ó': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'Ù': 'U', 'Ú': 'U', 'Û': 'U', 'Ü': 'U', 'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u',
	'Ç': 'C', 'ç': 'c', 'Ñ': 'N', 'ñ': 'n', 'Ý': 'Y', 'ý': 'y', 'ÿ': 'y',
}

// AsciiFilter folds accented Latin letters to their base ASCII form.
type AsciiFilter struct{}

func (AsciiFilter) Filter(stage Stage, tokens []Token) []Token {
	out := make([]Token, len(tokens))
	for i, t := range tokens {
		t.Term = strings.Map(func(r rune) rune {
			if f, ok := asciiFold[r]; ok {
				return f
			}
			return r
		}, t.Term)
		out[i] = t
	}
	return out
}

// NgramFilter expands each token into every substring of length [Min,Max]
// runes, indexing-only: queries match against the same n-grams without
// re-expanding their own (shorter) query term.
type NgramFilter struct {
	Min, Max int
}

func (f NgramFilter) Filter(stage Stage, tokens []Token) []Token {
	var out []Token
	for _, t := range tokens {
		runes := []rune(t.Term)
		if stage != StageIndexing {
			out = append(out, t)
			continue
		}
		for n := f.Min; n <= f.Max && n <= len(runes); n++ {
			for i := 0; i+n <= len(runes); i++ {
				out = append(out, Token{Term: string(runes[i : i+n])})
			}
		}
	}
	return out
}

// EdgeNgramFilter expands each token into every prefix of length
// [Min,Max] runes, the shape DEFINE ANALYZER ... FILTERS EDGENGRAM(2,10)
// uses for autocomplete-style indexes.
type EdgeNgramFilter struct {
	Min, Max int
}

func (f EdgeNgramFilter) Filter(stage Stage, tokens []Token) []Token {
	var out []Token
	for _, t := range tokens {
		runes := []rune(t.Term)
		if stage != StageIndexing {
			out = append(out, t)
			continue
		}
		max := f.Max
		if max > len(runes) {
			max = len(runes)
		}
		for n := f.Min; n <= max; n++ {
			out = append(out, Token{Term: string(runes[:n])})
		}
	}
	return out
}

// SnowballFilter is a documented extension point for language-specific
// stemming. No stemming library appears anywhere in the example corpus,
// so this is an interface with no shipped implementation; a caller that
// needs stemming must supply its own Filter satisfying this shape.
type SnowballFilter interface {
	Filter
	Language() string
}
