package fulltext

import "math"

// BM25Params holds the two tunable BM25 constants; DefaultBM25 matches
// the values used throughout the reference full-text literature and the
// original implementation this index is grounded on.
type BM25Params struct {
	K1 float64
	B  float64
}

// DefaultBM25 returns k1=1.2, b=0.75.
func DefaultBM25() BM25Params { return BM25Params{K1: 1.2, B: 0.75} }

// Score computes the BM25 relevance of one term in one document:
//
//	idf   = max(0, ln((N - n + 0.5) / (n + 0.5)))
//	tf'   = 1 + ln(tf)                            (Lv & Zhai lower-bound)
//	norm  = (1 - b) + b * docLength / avgDocLength
//	score = idf * (k1 + 1) * tf' / (tf' + k1 * norm)
//
// N is the total document count, n the number of documents containing
// the term. A zero tf contributes 0, and the result is never negative.
func (p BM25Params) Score(tf float64, n, N uint64, docLength, avgDocLength float64) float64 {
	if tf <= 0 || N == 0 {
		return 0
	}
	idf := math.Log((float64(N) - float64(n) + 0.5) / (float64(n) + 0.5))
	if idf < 0 {
		idf = 0
	}
	if avgDocLength <= 0 {
		avgDocLength = 1
	}
	tfPrime := 1 + math.Log(tf)
	norm := (1 - p.B) + p.B*docLength/avgDocLength
	denom := tfPrime + p.K1*norm
	if denom == 0 {
		return 0
	}
	score := idf * (p.K1 + 1) * tfPrime / denom
	if score < 0 {
		return 0
	}
	return score
}
