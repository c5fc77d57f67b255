package domain

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minHeaderLen      = 8
	minBulletLen      = 10
	minDescriptionLen = 10
	maxBareNameRunes  = 80
)

var (
	// bulletRe matches "- x", "* x", "• x", "1. x" and "1) x".
	bulletRe = regexp.MustCompile(`^(?:[-*•]|\d{1,2}[.)])\s+(.+)$`)

	// nameSplitRe captures the text before the first " - ", " – ", ": " or "(".
	nameSplitRe = regexp.MustCompile(`^(.+?)(?:\s+[-–—]\s+|:\s+|\s*\()`)

	// phoneRe covers 1-800-555-1234, (210) 555-1234, 210-555-1234,
	// 210.555.1234 and 210 555 1234.
	phoneRe = regexp.MustCompile(`(?:\b1[-.\s]\d{3}[-.\s]\d{3}[-.\s]\d{4}\b|\(\d{3}\)\s*\d{3}[-.\s]\d{4}\b|\b\d{3}[-.]\d{3}[-.]\d{4}\b|\b\d{3}\s\d{3}\s\d{4}\b)`)

	// addressRe matches "<number> <street words> <suffix>" with an optional
	// suite and ", City, ST 12345" tail.
	addressRe = regexp.MustCompile(`\b\d{1,6}\s+(?:[A-Za-z0-9.'#]+\s+){0,5}?(?i:street|st|avenue|ave|road|rd|boulevard|blvd|drive|dr|lane|ln|way|court|ct|highway|hwy|parkway|pkwy|place|pl|circle|cir|loop|trail|trl)\b\.?(?:,?\s+(?i:suite|ste|#)\s*\w+)?(?:,\s*[A-Za-z .]+,\s*[A-Z]{2}(?:\s+\d{5}(?:-\d{4})?)?)?`)

	urlRe = regexp.MustCompile(`(?:https?://|www\.)[^\s)\]]+`)

	// labelRe strips field labels left behind once their values are extracted.
	labelRe = regexp.MustCompile(`(?i)\b(?:phone|tel|telephone|call|address|location|website|web|url)\s*:\s*`)

	emptyParensRe = regexp.MustCompile(`\(\s*[,;]?\s*\)`)
	markdownRe    = regexp.MustCompile("\\*\\*|__|`|\\[|\\]")
)

// ParseProse extracts resources from a free-text LLM answer made of section
// headers followed by bulleted entries. Extraction is best effort: lines that
// fit neither shape are ignored.
func ParseProse(text string, source Source, postalCode string) []RawResult {
	var (
		out      []RawResult
		category string
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := bulletRe.FindStringSubmatch(line); m != nil {
			if len(line) <= minBulletLen {
				continue
			}
			r := parseBullet(m[1])
			r.Source = source
			r.Category = category
			r.PostalCode = postalCode
			out = append(out, r)
			continue
		}

		if len(line) > minHeaderLen {
			category = cleanHeader(line)
		}
	}

	return out
}

func parseBullet(content string) RawResult {
	content = cleanText(markdownRe.ReplaceAllString(content, ""))

	name, rest := splitName(content)

	var r RawResult
	if phones := phoneRe.FindAllString(content, -1); len(phones) > 0 {
		r.Phone = phones[0]
	}
	r.Address = strings.TrimRight(addressRe.FindString(rest), " ,.")
	if u := urlRe.FindString(rest); u != "" {
		r.Website = strings.TrimRight(u, ".,;")
	}

	name = phoneRe.ReplaceAllString(name, "")
	name = strings.Trim(cleanText(name), " -–—:;,.#*_\"")
	if name == "" {
		name = PlaceholderName
	}
	r.Name = name

	r.Description = describeRemainder(rest, r)
	return r
}

// splitName separates the leading name from the remainder of a bullet. When
// no separator is present the name ends at the first phone, address or URL.
func splitName(content string) (string, string) {
	if m := nameSplitRe.FindStringSubmatchIndex(content); m != nil {
		name := content[m[2]:m[3]]
		rest := content[m[3]:]
		return name, rest
	}

	cut := len(content)
	for _, re := range []*regexp.Regexp{phoneRe, addressRe, urlRe} {
		if loc := re.FindStringIndex(content); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	name, rest := content[:cut], content[cut:]
	if utf8.RuneCountInString(name) > maxBareNameRunes {
		return "", content
	}
	return name, rest
}

// describeRemainder is whatever text is left once the extracted fields are
// removed; it is cleared when too short or made only of punctuation.
func describeRemainder(rest string, r RawResult) string {
	desc := phoneRe.ReplaceAllString(rest, "")
	if r.Address != "" {
		desc = strings.Replace(desc, r.Address, "", 1)
	}
	desc = urlRe.ReplaceAllString(desc, "")
	desc = labelRe.ReplaceAllString(desc, "")
	desc = emptyParensRe.ReplaceAllString(desc, "")
	desc = cleanText(desc)
	desc = strings.TrimLeft(desc, " -–—:;,.|)")
	desc = strings.TrimRight(desc, " -–—:;,|(")
	desc = cleanText(desc)

	if len(desc) < minDescriptionLen || punctuationOnly(desc) {
		return ""
	}
	return desc
}

func cleanHeader(line string) string {
	line = strings.TrimLeft(line, "# ")
	line = markdownRe.ReplaceAllString(line, "")
	line = strings.TrimRight(strings.TrimSpace(line), ":")
	return cleanText(line)
}

func punctuationOnly(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
