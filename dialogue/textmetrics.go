package dialogue

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue/textprim"
)

var (
	sentenceSplitRe = regexp.MustCompile(`[.!?]+`)
	wordTokenRe     = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)
)

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// SentenceCount is the number of pieces left after splitting the trimmed text on runs
// of sentence punctuation; a trailing terminator contributes an empty final piece.
func SentenceCount(text string) int {
	return len(sentenceSplitRe.Split(strings.TrimSpace(text), -1))
}

// wordTokens returns the lowercase word-character runs of text.
func wordTokens(text string) []string {
	return wordTokenRe.FindAllString(strings.ToLower(text), -1)
}

// Entropy is the Shannon entropy (bits) of the whitespace-token distribution.
func Entropy(text string) float64 {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return 0
	}
	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	total := float64(len(tokens))
	var h float64
	for _, c := range freq {
		p := float64(c) / total
		h -= p * math.Log2(p)
	}
	return h
}

// Syllables estimates syllables in one word: vowel clusters, minus a silent trailing
// "e", plus a consonant-"le" ending, at least 1.
func Syllables(word string) int {
	w := []rune(strings.ToLower(word))
	n := 0
	prevVowel := false
	for _, r := range w {
		v := isVowel(r)
		if v && !prevVowel {
			n++
		}
		prevVowel = v
	}
	if len(w) > 0 && w[len(w)-1] == 'e' {
		n--
	}
	if len(w) > 2 && w[len(w)-1] == 'e' && w[len(w)-2] == 'l' && !isVowel(w[len(w)-3]) {
		n++
	}
	return max(1, n)
}

func isVowel(r rune) bool {
	return strings.ContainsRune("aeiouy", r)
}

// Readability is the Flesch reading-ease score rounded to two decimals, 0 for empty text.
func Readability(text string) float64 {
	sentences := SentenceCount(text)
	words := strings.Fields(text)
	if sentences == 0 || len(words) == 0 {
		return 0
	}
	syl := 0
	for _, w := range words {
		syl += Syllables(w)
	}
	wc := float64(len(words))
	fre := 206.835 - 1.015*(wc/float64(sentences)) - 84.6*(float64(syl)/wc)
	return textprim.Round(fre, 2)
}

// LexicalDiversity is the type/token ratio over word tokens, 0 for text without any.
func LexicalDiversity(text string) float64 {
	tokens := wordTokens(text)
	if len(tokens) == 0 {
		return 0
	}
	return float64(len(uniqueSet(tokens))) / float64(len(tokens))
}

// Richness reports the rounded type/token ratio and unique words per 100.
func Richness(text string) LexicalRichness {
	ttr := LexicalDiversity(text)
	return LexicalRichness{
		TTR:          textprim.Round(ttr, 3),
		UniquePer100: textprim.Round(ttr*100, 1),
	}
}

func uniqueSet(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		out[t] = struct{}{}
	}
	return out
}

// contentWords is the stopword-filtered set of word tokens.
func (c *Catalog) contentWords(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range wordTokens(text) {
		if !c.IsStopword(t) {
			out[t] = struct{}{}
		}
	}
	return out
}

// longWords is the set of word tokens of at least four characters.
func longWords(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range wordTokens(text) {
		if utf8.RuneCountInString(t) >= 4 {
			out[t] = struct{}{}
		}
	}
	return out
}

func intersectCount(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
