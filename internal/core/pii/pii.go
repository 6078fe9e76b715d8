// Package pii classifies document fields that likely hold personal data, by
// field name and by value format, without ever retaining a value. Rules come
// from an embedded pack that scan policies can extend
package pii

// Classifier bundles name and format classification for the sampler
type Classifier struct {
	pack *Pack
	m    *Matcher
}

// NewClassifier compiles a classifier over p; p must not be extended afterwards
func NewClassifier(p *Pack) *Classifier {
	return &Classifier{pack: p, m: NewMatcher(p)}
}

// ByName reports the category a field path's name implies
func (c *Classifier) ByName(path string) (string, bool) {
	return c.m.Classify(path)
}

// ByFormat reports a value's shape signature and any category it implies
func (c *Classifier) ByFormat(value string) (sig, category string, ok bool) {
	return c.pack.FormatOf(value)
}
