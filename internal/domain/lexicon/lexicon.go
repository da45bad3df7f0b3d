// Package lexicon is the rule layer of the moderation pipeline: curated word
// lists and PII patterns that catch unambiguous violations without a model
// round trip. Matching runs against normalized, diacritic-stripped text so
// obfuscated variants collapse onto the canonical entries.
package lexicon

import (
	"regexp"
	"strings"
)

// entry is one lexicon word or phrase. safe lists substrings whose presence
// marks a benign use of an otherwise flagged word ("lon bia" is a beverage
// can, not profanity).
type entry struct {
	word string
	safe []string
}

var criticalProfanity = []entry{
	{word: "dit"},
	{word: "dit me"},
	{word: "dit ma"},
	{word: "du ma"},
	{word: "du me"},
	{word: "dm"},
	{word: "dcm"},
	{word: "dkm"},
	{word: "clm"},
	{word: "ctm"},
	{word: "cmm"},
	{word: "vcl"},
	{word: "vkl"},
	{word: "vai lon"},
	{word: "lon", safe: []string{"lon bia", "bia lon", "lon nuoc", "nuoc lon", "lon coca", "lon pepsi", "hai long", "vui long", "long tin", "long tot", "tam long"}},
	{word: "cac", safe: []string{"cac ban", "cac anh", "cac chi", "cac em", "cac bac", "cac ong", "cac ba", "cac chau", "cac con", "mot cach", "bang cach", "theo cach", "cac loai", "cac kieu"}},
	{word: "cak"},
	{word: "buoi", safe: []string{"buoi sang", "buoi chieu", "buoi toi", "buoi trua", "buoi hoc", "buoi hop", "buoi le"}},
	{word: "chich nhau"},
	{word: "deo", safe: []string{"deo kinh", "deo nhan", "deo vong", "deo khau trang"}},
	{word: "khon nan"},
	{word: "mat day"},
	{word: "me kiep"},
	{word: "fuck"},
	{word: "fucking"},
	{word: "fuk"},
	{word: "fck"},
	{word: "motherfucker"},
	{word: "shit"},
	{word: "bitch"},
	{word: "asshole"},
	{word: "bastard"},
	{word: "cunt"},
	{word: "whore"},
	{word: "slut"},
}

var hateSpeech = []entry{
	{word: "pe de"},
	{word: "pede"},
	{word: "be de"},
	{word: "bede"},
	{word: "do gay"},
	{word: "thang gay"},
	{word: "bon gay"},
	{word: "do dong tinh"},
	{word: "bon dong tinh"},
	{word: "dong tinh benh hoan"},
	{word: "bon bien thai"},
	{word: "faggot"},
	{word: "fag"},
	{word: "dyke"},
	{word: "tranny"},
	{word: "tau khua"},
	{word: "thang tau"},
	{word: "bon tau"},
	{word: "khi den"},
	{word: "moi den"},
	{word: "moi ro"},
	{word: "chink"},
	{word: "ching chong"},
	{word: "nigger"},
	{word: "nigga"},
	{word: "dan ba ngu"},
	{word: "con gai ngu"},
	{word: "dan ba vo dung"},
}

var sexualContent = []entry{
	{word: "bu cu"},
	{word: "bu cac"},
	{word: "bu lon"},
	{word: "liem lon"},
	{word: "mut cu"},
	{word: "dit nhau"},
	{word: "lam tinh"},
	{word: "quan he tinh duc"},
	{word: "xuat tinh"},
	{word: "khoa than"},
	{word: "tran truong"},
	{word: "dam dang"},
	{word: "dam duc"},
	{word: "gai goi"},
	{word: "gai bao"},
	{word: "ban dam"},
	{word: "di nha nghi"},
	{word: "ngu voi", safe: []string{"ngu voi con", "ngu voi be"}},
	{word: "bao nhieu mot dem"},
	{word: "blowjob"},
	{word: "blow job"},
	{word: "handjob"},
	{word: "oral sex"},
	{word: "anal sex"},
	{word: "wanna fuck"},
	{word: "orgasm"},
	{word: "stripper"},
}

// category pairs a compiled matcher with its source entries.
type category struct {
	entries  []entry
	patterns []*regexp.Regexp
}

func compile(entries []entry) category {
	c := category{entries: entries, patterns: make([]*regexp.Regexp, len(entries))}
	for i, e := range entries {
		c.patterns[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(e.word) + `\b`)
	}
	return c
}

var (
	criticalCategory = compile(criticalProfanity)
	hateCategory     = compile(hateSpeech)
	sexualCategory   = compile(sexualContent)
)

// match returns the entries found in the text, skipping hits whose safe
// context is also present.
func (c category) match(text string) []string {
	var found []string
	for i, p := range c.patterns {
		if !p.MatchString(text) {
			continue
		}
		if hasSafeContext(text, c.entries[i].safe) {
			continue
		}
		found = append(found, c.entries[i].word)
	}
	return found
}

func hasSafeContext(text string, safe []string) bool {
	for _, s := range safe {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

// CriticalProfanity returns severe profanity entries found in the text. The
// input must already be normalized and diacritic-stripped.
func CriticalProfanity(stripped string) []string {
	return criticalCategory.match(stripped)
}

// HateSpeech returns discriminatory entries found in the text.
func HateSpeech(stripped string) []string {
	return hateCategory.match(stripped)
}

// SexualContent returns explicit or soliciting entries found in the text.
func SexualContent(stripped string) []string {
	return sexualCategory.match(stripped)
}
