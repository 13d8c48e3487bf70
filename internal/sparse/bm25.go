// Package sparse builds BM25-style lexical sparse vectors from chunk text
// (spec.md §4.5/§6): a term-id -> weight mapping computed client-side so it
// can be attached to a hybrid insert alongside the dense vector. Tokenization
// rides bleve's analysis pipeline (unicode tokenizer, lowercase filter,
// English stopwords, Porter stemmer) with an extra code-aware pass that
// splits camelCase and snake_case identifiers, since source identifiers
// rarely tokenize usefully as plain English words.
package sparse

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	unicodetok "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

// Vector is a sparse term-weight representation: parallel index/value
// slices sorted by index, the shape Qdrant's named sparse vectors expect.
type Vector struct {
	Indices []uint32
	Values  []float32
}

// Builder tokenizes and weights chunk content into a Vector. It holds no
// mutable state beyond the analysis pipeline, so one Builder serves every
// chunk in a run.
type Builder struct {
	tokenizer analysis.Tokenizer
	lower     analysis.TokenFilter
	stopWords analysis.TokenFilter
	stemmer   analysis.TokenFilter
}

// NewBuilder constructs the standard analyzer chain: unicode tokenizer,
// lowercase, English stopword removal, Porter stemming.
func NewBuilder() *Builder {
	return &Builder{
		tokenizer: unicodetok.NewUnicodeTokenizer(),
		lower:     lowercase.NewLowerCaseFilter(),
		stopWords: stop.NewStopTokensFilter(en.StopWords),
		stemmer:   porter.NewPorterStemmer(),
	}
}

// Build computes a term-frequency weighted sparse vector for content.
// Weight is a log-dampened term frequency (1 + ln(tf)), which rewards
// repeated identifiers without letting a single hot symbol dominate the
// fused score; BM25's document-length and corpus-IDF terms are left to
// the collection-wide scoring the vector store itself would apply if it
// computed sparse vectors server-side.
func (b *Builder) Build(content string) Vector {
	counts := make(map[uint32]int)
	order := make([]uint32, 0, 64)

	for _, raw := range splitIdentifiers(content) {
		for _, term := range b.analyze(raw) {
			id := termID(term)
			if _, seen := counts[id]; !seen {
				order = append(order, id)
			}
			counts[id]++
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	v := Vector{
		Indices: make([]uint32, len(order)),
		Values:  make([]float32, len(order)),
	}
	for i, id := range order {
		tf := counts[id]
		v.Indices[i] = id
		v.Values[i] = float32(1 + math.Log(float64(tf)))
	}
	return v
}

// analyze runs one identifier-shaped word through the bleve token filter
// chain and returns its surviving stemmed terms (zero or one, almost
// always, but a filter is free to drop or split tokens).
func (b *Builder) analyze(word string) []string {
	stream := analysis.TokenStream{{Term: []byte(word), Type: analysis.AlphaNumeric}}
	stream = b.lower.Filter(stream)
	stream = b.stopWords.Filter(stream)
	stream = b.stemmer.Filter(stream)

	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		terms = append(terms, string(tok.Term))
	}
	return terms
}

// splitIdentifiers tokenizes raw source text with bleve's unicode
// tokenizer, then further splits camelCase and snake_case identifiers so
// "getUserById" contributes "get", "user", "by", "id" individually.
func splitIdentifiers(content string) []string {
	stream := unicodetok.NewUnicodeTokenizer().Tokenize([]byte(content))

	var words []string
	for _, tok := range stream {
		if tok.Type != analysis.AlphaNumeric {
			continue
		}
		words = append(words, splitCodeWord(string(tok.Term))...)
	}
	return words
}

// splitCodeWord splits snake_case first, then camelCase/PascalCase within
// each resulting part, discarding fragments shorter than two runes.
func splitCodeWord(word string) []string {
	var parts []string
	if strings.Contains(word, "_") {
		for _, p := range strings.Split(word, "_") {
			if p != "" {
				parts = append(parts, splitCamelCase(p)...)
			}
		}
	} else {
		parts = splitCamelCase(word)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if len([]rune(p)) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

// splitCamelCase splits "getUserByID" into ["get", "User", "By", "ID"].
func splitCamelCase(s string) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}

	var result []string
	var cur strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				if cur.Len() > 0 {
					result = append(result, cur.String())
					cur.Reset()
				}
			}
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		result = append(result, cur.String())
	}
	return result
}

// termID maps a stemmed term to the stable numeric index Qdrant's sparse
// vectors require, via a 32-bit FNV-1a hash of the term bytes.
func termID(term string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	return h.Sum32()
}
