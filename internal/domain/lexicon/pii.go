package lexicon

import "regexp"

// PII detection runs against the raw text, not the normalized form, because
// normalization strips the URLs and addresses we are looking for.
var (
	piiPhone = []*regexp.Regexp{
		regexp.MustCompile(`\b0\d{9,10}\b`),
		regexp.MustCompile(`\b84\d{9,10}\b`),
		regexp.MustCompile(`\+84\d{9,10}\b`),
		regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
	}
	piiEmail  = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	piiURL    = regexp.MustCompile(`https?://[^\s]+`)
	piiSocial = regexp.MustCompile(`(?i)\b(?:zalo|telegram|viber|whatsapp)[:\s]+\d+`)
)

// PIIResult holds the personally identifying fragments found in a text,
// keyed by kind. Kinds with no hits are omitted.
type PIIResult map[string][]string

// Detected returns true if any PII kind matched.
func (r PIIResult) Detected() bool {
	return len(r) > 0
}

// Kinds returns the matched kinds in a fixed order for deterministic
// reasoning strings.
func (r PIIResult) Kinds() []string {
	var kinds []string
	for _, k := range []string{"phones", "emails", "urls", "social"} {
		if len(r[k]) > 0 {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// DetectPII scans raw text for phone numbers, email addresses, URLs and
// social-media contact handles.
func DetectPII(raw string) PIIResult {
	result := PIIResult{}

	var phones []string
	for _, p := range piiPhone {
		phones = append(phones, p.FindAllString(raw, -1)...)
	}
	if len(phones) > 0 {
		result["phones"] = phones
	}
	if emails := piiEmail.FindAllString(raw, -1); len(emails) > 0 {
		result["emails"] = emails
	}
	if urls := piiURL.FindAllString(raw, -1); len(urls) > 0 {
		result["urls"] = urls
	}
	if social := piiSocial.FindAllString(raw, -1); len(social) > 0 {
		result["social"] = social
	}
	return result
}
