package textprim

import (
	"math"
	"regexp"
	"strings"
)

// Overlap holds machine-translation style overlap scores of a candidate against a
// single reference.
type Overlap struct {
	BLEU   float64 `json:"bleu"`
	METEOR float64 `json:"meteor"`
	ROUGE1 float64 `json:"rouge1"`
	ROUGEL float64 `json:"rougeL"`
}

// TranslationOverlap scores candidate against reference.
func TranslationOverlap(reference, candidate string) Overlap {
	r, c := strings.Fields(reference), strings.Fields(candidate)
	rr, rc := rougeTokens(reference), rougeTokens(candidate)
	return Overlap{
		BLEU:   SentenceBLEU(r, c),
		METEOR: MeteorExact(r, c),
		ROUGE1: rougeN1(rr, rc),
		ROUGEL: rougeL(rr, rc),
	}
}

const bleuEpsilon = 0.1

// SentenceBLEU is uniform-weight 4-gram BLEU with additive-epsilon smoothing for
// n-gram orders that have no matches. Returns 0 when either side is empty or no
// unigram matches.
func SentenceBLEU(reference, candidate []string) float64 {
	if len(reference) == 0 || len(candidate) == 0 {
		return 0
	}
	const maxN = 4
	var logSum float64
	for n := 1; n <= maxN; n++ {
		num, den := modifiedPrecision(reference, candidate, n)
		if n == 1 && num == 0 {
			return 0
		}
		p := float64(num) / float64(den)
		if num == 0 {
			p = bleuEpsilon / float64(den)
		}
		logSum += math.Log(p) / maxN
	}
	return brevityPenalty(len(reference), len(candidate)) * math.Exp(logSum)
}

func modifiedPrecision(reference, candidate []string, n int) (num, den int) {
	cand := ngramCounts(candidate, n)
	ref := ngramCounts(reference, n)
	total := 0
	for g, c := range cand {
		total += c
		num += min(c, ref[g])
	}
	return num, max(1, total)
}

func ngramCounts(tokens []string, n int) map[string]int {
	out := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		out[strings.Join(tokens[i:i+n], "\x00")]++
	}
	return out
}

func brevityPenalty(refLen, candLen int) float64 {
	if candLen > refLen {
		return 1
	}
	if candLen == 0 {
		return 0
	}
	return math.Exp(1 - float64(refLen)/float64(candLen))
}

// MeteorExact is METEOR restricted to exact token matches (alpha 0.9, beta 3, gamma 0.5).
func MeteorExact(reference, candidate []string) float64 {
	if len(reference) == 0 || len(candidate) == 0 {
		return 0
	}
	used := make([]bool, len(reference))
	type match struct{ c, r int }
	var matches []match
	for i, tok := range candidate {
		for j, ref := range reference {
			if !used[j] && ref == tok {
				used[j] = true
				matches = append(matches, match{i, j})
				break
			}
		}
	}
	m := len(matches)
	if m == 0 {
		return 0
	}
	chunks := 1
	for k := 1; k < m; k++ {
		if matches[k].c != matches[k-1].c+1 || matches[k].r != matches[k-1].r+1 {
			chunks++
		}
	}
	p := float64(m) / float64(len(candidate))
	r := float64(m) / float64(len(reference))
	const alpha, beta, gamma = 0.9, 3.0, 0.5
	fmean := p * r / (alpha*p + (1-alpha)*r)
	penalty := gamma * math.Pow(float64(chunks)/float64(m), beta)
	return fmean * (1 - penalty)
}

var rougeNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func rougeTokens(s string) []string {
	return strings.Fields(rougeNonAlnum.ReplaceAllString(strings.ToLower(s), " "))
}

func rougeN1(reference, candidate []string) float64 {
	if len(reference) == 0 || len(candidate) == 0 {
		return 0
	}
	ref := ngramCounts(reference, 1)
	overlap := 0
	for g, c := range ngramCounts(candidate, 1) {
		overlap += min(c, ref[g])
	}
	return fmeasure(overlap, len(reference), len(candidate))
}

func rougeL(reference, candidate []string) float64 {
	if len(reference) == 0 || len(candidate) == 0 {
		return 0
	}
	return fmeasure(lcsLength(reference, candidate), len(reference), len(candidate))
}

func lcsLength(a, b []string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func fmeasure(overlap, refLen, candLen int) float64 {
	if overlap == 0 {
		return 0
	}
	p := float64(overlap) / float64(candLen)
	r := float64(overlap) / float64(refLen)
	return 2 * p * r / (p + r)
}
