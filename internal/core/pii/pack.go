package pii

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"datalens/internal/core/ident"
)

//go:embed pack.yaml
var packYAML []byte

// Categories carried by the default pack. Policy extensions may introduce
// their own; a category is just a label on the redaction
const (
	CategoryEmail        = "email"
	CategoryPhone        = "phone"
	CategoryGovernmentID = "government_id"
	CategoryCredential   = "credential"
	CategoryCard         = "card"
	CategoryDOB          = "dob"
	CategoryAddress      = "address"
	CategoryName         = "name"
	CategoryIP           = "ip"
	CategoryDemographic  = "demographic"
)

// NameRule flags fields whose folded name tokens contain Term
type NameRule struct {
	Term     string `yaml:"term"`
	Category string `yaml:"category"`
}

// FormatRule names the shape of a string value. An empty category describes
// shape only and flags nothing
type FormatRule struct {
	ID       string `yaml:"id"`
	Pattern  string `yaml:"pattern"`
	Category string `yaml:"category"`
}

type rawPack struct {
	Version int          `yaml:"version"`
	Names   []NameRule   `yaml:"names"`
	Formats []FormatRule `yaml:"formats"`
}

// Pack is a compiled classification rule set: the embedded defaults plus any
// policy extensions. Extend before constructing a Matcher
type Pack struct {
	Version  int
	Names    []NameRule
	Formats  []FormatRule
	compiled []*regexp.Regexp
}

// Load parses and compiles the embedded default pack
func Load() (*Pack, error) {
	var raw rawPack
	if err := yaml.Unmarshal(packYAML, &raw); err != nil {
		return nil, fmt.Errorf("pii: parse embedded pack: %w", err)
	}
	if raw.Version == 0 {
		return nil, fmt.Errorf("pii: embedded pack missing version")
	}
	p := &Pack{Version: raw.Version}
	if err := p.Extend(raw.Names, raw.Formats); err != nil {
		return nil, err
	}
	return p, nil
}

// Extend adds rules from a scan policy. Terms are folded and tokenized the
// same way field names are at match time; duplicate terms keep the earlier
// rule. Name order stays deterministic; format order is append order because
// the first matching format wins
func (p *Pack) Extend(names []NameRule, formats []FormatRule) error {
	folder := ident.New()
	have := make(map[string]bool, len(p.Names))
	for _, n := range p.Names {
		have[n.Term] = true
	}
	for _, n := range names {
		term := normalizeTerm(folder, n.Term)
		if term == "" {
			return fmt.Errorf("pii: name rule with empty term (category %q)", n.Category)
		}
		if n.Category == "" {
			return fmt.Errorf("pii: name rule %q missing category", n.Term)
		}
		if have[term] {
			continue
		}
		have[term] = true
		p.Names = append(p.Names, NameRule{Term: term, Category: n.Category})
	}
	sort.Slice(p.Names, func(i, j int) bool { return p.Names[i].Term < p.Names[j].Term })

	for _, f := range formats {
		if f.ID == "" || f.Pattern == "" {
			return fmt.Errorf("pii: format rule needs id and pattern, got %+v", f)
		}
		re, err := regexp.Compile("^(?:" + f.Pattern + ")$")
		if err != nil {
			return fmt.Errorf("pii: format %q: %w", f.ID, err)
		}
		p.Formats = append(p.Formats, f)
		p.compiled = append(p.compiled, re)
	}
	return nil
}

// normalizeTerm folds a rule term into the token-joined form field names are
// scanned in: "Social_Security" and "SocialSecurity" both become
// "social security"
func normalizeTerm(folder *ident.Folder, term string) string {
	toks := ident.Tokens(term)
	for i, tok := range toks {
		toks[i] = folder.Fold(tok)
	}
	return strings.Join(toks, " ")
}
