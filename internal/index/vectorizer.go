package index

import (
	"math"
	"sort"
)

// SparseVector holds the non-zero entries of one row, ordered by column.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// Vocabulary maps terms to matrix columns and carries each column's
// inverse document frequency.
type Vocabulary struct {
	columns map[string]int
	idf     []float64
}

func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.idf)
}

// fit learns the vocabulary and smoothed IDF from docs:
//
//	idf(t) = ln((1 + n) / (1 + df(t))) + 1
//
// Columns are assigned in lexical term order.
func fit(docs [][]string) *Vocabulary {
	df := make(map[string]int)
	for _, tokens := range docs {
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v := &Vocabulary{
		columns: make(map[string]int, len(terms)),
		idf:     make([]float64, len(terms)),
	}
	for i, term := range terms {
		v.columns[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return v
}

// transform weights raw term counts by IDF and L2-normalises the result.
// Tokens outside the vocabulary are ignored; a text with no known tokens
// yields the zero vector.
func (v *Vocabulary) transform(tokens []string) SparseVector {
	counts := make(map[int]int)
	for _, tok := range tokens {
		if col, ok := v.columns[tok]; ok {
			counts[col]++
		}
	}
	if len(counts) == 0 {
		return SparseVector{}
	}
	vec := SparseVector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for col := range counts {
		vec.Indices = append(vec.Indices, col)
	}
	sort.Ints(vec.Indices)
	var norm float64
	for _, col := range vec.Indices {
		w := float64(counts[col]) * v.idf[col]
		vec.Values = append(vec.Values, w)
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for i := range vec.Values {
		vec.Values[i] /= norm
	}
	return vec
}

// cosine returns the cosine similarity of two L2-normalised vectors,
// clamped to [0, 1]. A zero vector scores 0 against anything.
func cosine(a, b SparseVector) float64 {
	if len(a.Indices) == 0 || len(b.Indices) == 0 {
		return 0
	}
	var dot float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			dot += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return clamp(dot)
}

func clamp(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
