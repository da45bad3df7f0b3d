// Package text normalizes user-generated text before classification. The
// goal is anti-obfuscation: homoglyph swaps, leetspeak, zero-width padding,
// character-separated words and repeated-letter stretching are all folded
// back to a canonical form so the classifier scores what the reader sees.
package text

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Zero-width and invisible characters removed outright.
var zeroWidthChars = map[rune]struct{}{
	'\u200b': {}, // zero width space
	'\u200c': {}, // zero width non-joiner
	'\u200d': {}, // zero width joiner
	'\u2060': {}, // word joiner
	'\ufeff': {}, // BOM
	'\u00ad': {}, // soft hyphen
	'\u034f': {}, // combining grapheme joiner
	'\u2063': {}, // invisible separator
	'\u2064': {}, // invisible plus
}

// Unusual whitespace mapped to a plain ASCII space.
var invisibleWhitespace = map[rune]struct{}{
	'\u00a0': {}, '\u2000': {}, '\u2001': {}, '\u2002': {}, '\u2003': {},
	'\u2004': {}, '\u2005': {}, '\u2006': {}, '\u2007': {}, '\u2008': {},
	'\u2009': {}, '\u200a': {}, '\u202f': {}, '\u205f': {}, '\u3000': {},
}

// Lookalike characters folded to their Latin equivalents. Cyrillic and Greek
// rows cover the common manual swaps; fullwidth forms are folded
// arithmetically in foldHomoglyph.
var homoglyphs = map[rune]string{
	// Cyrillic
	'а': "a", 'е': "e", 'і': "i", 'о': "o", 'р': "p", 'с': "c", 'у': "y",
	'х': "x", 'м': "m", 'н': "n", 'т': "t", 'к': "k", 'в': "v",
	'ь': "", 'ъ': "",
	// Greek
	'α': "a", 'β': "b", 'ε': "e", 'η': "n", 'ι': "i", 'κ': "k", 'μ': "m",
	'ν': "v", 'ο': "o", 'ρ': "p", 'τ': "t", 'υ': "u", 'χ': "x",
	// Math and symbol lookalikes
	'ℓ': "l", 'ⅰ': "i", 'ⅱ': "ii", '×': "x", '∂': "d", '∞': "oo",
	'∫': "f", '†': "t", '‡': "t",
}

// Leetspeak substitutions undone after homoglyph folding. '*' is absent on
// purpose: it acts as a separator, not a letter stand-in.
var leetspeak = map[rune]string{
	'0': "o", '1': "i", '2': "z", '3': "e", '4': "a", '5': "s",
	'6': "g", '7': "t", '8': "b", '9': "g",
	'@': "a", '$': "s", '!': "i", '|': "i", '+': "t",
	'(': "c", '[': "c", ')': "d", '{': "c", '}': "d", '<': "c", '>': "d",
	'^': "a", '#': "h", '%': "x", '~': "n", '`': "", '\\': "l", '/': "l",
}

const separatorChars = ".-_ *~^'\"`|/\\+=#@:;,!?()[]{}<>•·°◦○●"

// Words longer than this are left alone by separator stripping so normal
// punctuation inside sentences survives.
const maxObfuscatedWordLen = 20

var (
	sepBetweenRe     = regexp.MustCompile(`(\p{L})[.\-_*~^'"` + "`" + `|/\\+=#@:;,!?()\[\]{}<>•·°◦○●]+(\p{L})`)
	urlRe            = regexp.MustCompile(`https?://\S+|www\.\S+`)
	emailRe          = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	whitespaceRunRe  = regexp.MustCompile(`\s+`)
	diacriticRemover = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Normalize canonicalizes text for scoring. Steps, in order: NFC, lowercase,
// URL/email removal, zero-width stripping, homoglyph folding, leetspeak
// reversal, repeated-run collapse (3+ to 2), separator stripping inside
// obfuscated words, whitespace collapse.
//
// Normalize is idempotent: every step maps its own output to itself.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	s = urlRe.ReplaceAllString(s, " ")
	s = emailRe.ReplaceAllString(s, " ")
	s = stripInvisible(s)
	s = foldHomoglyphs(s)
	s = foldLeetspeak(s)
	s = collapseRuns(s)
	s = stripSeparators(s)
	s = whitespaceRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// StripDiacritics removes Vietnamese tone marks and diacritics so that
// diacritic-dodging spellings still match rule patterns. Used as a parallel
// text version by rule pre-checks, never as a replacement for Normalize.
func StripDiacritics(s string) string {
	out, _, err := transform.String(diacriticRemover, s)
	if err != nil {
		return s
	}
	out = strings.ReplaceAll(out, "đ", "d")
	out = strings.ReplaceAll(out, "Đ", "D")
	return out
}

func stripInvisible(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if _, ok := zeroWidthChars[r]; ok {
			continue
		}
		if _, ok := invisibleWhitespace[r]; ok {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func foldHomoglyphs(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if rep, ok := homoglyphs[r]; ok {
			b.WriteString(rep)
			continue
		}
		// fullwidth ASCII block
		if r >= '！' && r <= '～' {
			b.WriteRune(r - 0xfee0)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// collapseRuns caps repeated-rune runs at two: "ngooooon" -> "ngoon".
// Runs of exactly two are left alone so doubled letters survive.
func collapseRuns(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	runLen := 0
	for _, r := range s {
		if r == prev {
			runLen++
		} else {
			prev = r
			runLen = 1
		}
		if runLen > 2 {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func foldLeetspeak(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if rep, ok := leetspeak[r]; ok {
			b.WriteString(rep)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// stripSeparators undoes character-spacing tricks: single letters separated
// by whitespace are joined ("n g u" -> "ngu"), and separators inside short
// words are removed between letters ("d.m" -> "dm") until a fixed point.
func stripSeparators(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}

	joined := make([]string, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		if !isSingleLetter(fields[i]) {
			joined = append(joined, fields[i])
			continue
		}
		run := fields[i]
		for i+1 < len(fields) && isSingleLetter(fields[i+1]) {
			i++
			run += fields[i]
		}
		joined = append(joined, run)
	}

	for i, word := range joined {
		if len(word) > maxObfuscatedWordLen || !strings.ContainsAny(word, separatorChars) {
			continue
		}
		prev := ""
		for prev != word {
			prev = word
			word = sepBetweenRe.ReplaceAllString(word, "$1$2")
		}
		joined[i] = word
	}

	return strings.Join(joined, " ")
}

func isSingleLetter(s string) bool {
	rs := []rune(s)
	return len(rs) == 1 && unicode.IsLetter(rs[0])
}
