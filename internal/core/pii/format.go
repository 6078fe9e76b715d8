package pii

import "unicode/utf8"

// maxFormatLen skips format probing on values longer than any signature we
// recognize; long free text never gets a signature
const maxFormatLen = 256

// FormatOf reports the coarse format signature of a string value and the
// category tied to that signature ("" when the shape alone is not
// sensitive). Only the signature leaves this function, never the value
func (p *Pack) FormatOf(value string) (sig, category string, ok bool) {
	if value == "" || len(value) > maxFormatLen || !utf8.ValidString(value) {
		return "", "", false
	}
	for i, re := range p.compiled {
		if re.MatchString(value) {
			return p.Formats[i].ID, p.Formats[i].Category, true
		}
	}
	return "", "", false
}
