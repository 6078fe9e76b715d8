// Package policy loads the per-repository scan policy. Defaults are embedded;
// a .datalens.yaml at the repository root (or an explicit --policy path)
// overlays them key by key
package policy

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"datalens/internal/core/lang"
	"datalens/internal/core/pii"
)

// DefaultFilename is looked up at the repository root when no explicit
// policy path is given
const DefaultFilename = ".datalens.yaml"

//go:embed policy.yaml
var defaultYAML []byte

// SamplerPolicy bounds the sampling pass against the live data store
type SamplerPolicy struct {
	Enabled       bool    `yaml:"enabled"`
	MinConfidence float64 `yaml:"min_confidence"`
	SampleSize    int     `yaml:"sample_size"`
	ByteBudget    int     `yaml:"byte_budget"`
	Concurrency   int     `yaml:"concurrency"`
}

type rawPolicy struct {
	Version   int      `yaml:"version"`
	Include   []string `yaml:"include"`
	Exclude   []string `yaml:"exclude"`
	Languages []string `yaml:"languages"`
	Resolver  struct {
		HopLimit int `yaml:"hop_limit"`
	} `yaml:"resolver"`
	Retirement struct {
		FullScanMisses int `yaml:"full_scan_misses"`
	} `yaml:"retirement"`
	Sampler SamplerPolicy `yaml:"sampler"`
	PII     struct {
		Names   []pii.NameRule   `yaml:"names"`
		Formats []pii.FormatRule `yaml:"formats"`
	} `yaml:"pii"`
}

// Policy is a compiled scan policy
type Policy struct {
	Version          int
	HopLimit         int
	RetirementMisses int
	Sampler          SamplerPolicy

	include   []glob.Glob
	exclude   []glob.Glob
	languages map[lang.Language]bool

	piiNames   []pii.NameRule
	piiFormats []pii.FormatRule
}

// Default compiles the embedded defaults
func Default() (*Policy, error) {
	raw, err := defaults()
	if err != nil {
		return nil, err
	}
	return compile(raw)
}

// Load overlays the policy file at path onto the embedded defaults. A key
// present in the file replaces the default; an absent key inherits it
func Load(path string) (*Policy, error) {
	raw, err := defaults()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("policy: parse %s: %w", path, err)
	}
	return compile(raw)
}

// ForRepo resolves the effective policy for a repository: an explicit
// override path wins, then <root>/.datalens.yaml when present, then the
// embedded defaults
func ForRepo(root, override string) (*Policy, error) {
	if override != "" {
		return Load(override)
	}
	path := filepath.Join(root, DefaultFilename)
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}
	return Default()
}

func defaults() (rawPolicy, error) {
	var raw rawPolicy
	if err := yaml.Unmarshal(defaultYAML, &raw); err != nil {
		return raw, fmt.Errorf("policy: parse embedded defaults: %w", err)
	}
	return raw, nil
}

func compile(raw rawPolicy) (*Policy, error) {
	if raw.Version == 0 {
		return nil, fmt.Errorf("policy: missing version")
	}
	if raw.Resolver.HopLimit < 0 {
		return nil, fmt.Errorf("policy: resolver.hop_limit must be >= 0, got %d", raw.Resolver.HopLimit)
	}
	if raw.Retirement.FullScanMisses < 1 {
		return nil, fmt.Errorf("policy: retirement.full_scan_misses must be >= 1, got %d", raw.Retirement.FullScanMisses)
	}
	s := raw.Sampler
	if s.MinConfidence < 0 || s.MinConfidence > 1 {
		return nil, fmt.Errorf("policy: sampler.min_confidence must be in [0,1], got %v", s.MinConfidence)
	}
	if s.SampleSize < 1 || s.ByteBudget < 1 || s.Concurrency < 1 {
		return nil, fmt.Errorf("policy: sampler sizes must be positive, got %+v", s)
	}

	p := &Policy{
		Version:          raw.Version,
		HopLimit:         raw.Resolver.HopLimit,
		RetirementMisses: raw.Retirement.FullScanMisses,
		Sampler:          s,
		piiNames:         raw.PII.Names,
		piiFormats:       raw.PII.Formats,
	}

	var err error
	if p.include, err = compileGlobs(raw.Include); err != nil {
		return nil, fmt.Errorf("policy: include: %w", err)
	}
	if p.exclude, err = compileGlobs(raw.Exclude); err != nil {
		return nil, fmt.Errorf("policy: exclude: %w", err)
	}

	if len(raw.Languages) > 0 {
		p.languages = make(map[lang.Language]bool, len(raw.Languages))
		for _, name := range raw.Languages {
			l := lang.Language(name)
			if !known(l) {
				return nil, fmt.Errorf("policy: unknown language %q", name)
			}
			p.languages[l] = true
		}
	}
	return p, nil
}

// compileGlobs compiles patterns with '/' as separator. A leading "**/"
// also matches at the repository root, so "**/vendor/**" covers both
// vendor/x and a/vendor/x
func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	add := func(pattern string) error {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return fmt.Errorf("pattern %q: %w", pattern, err)
		}
		out = append(out, g)
		return nil
	}
	for _, pattern := range patterns {
		if err := add(pattern); err != nil {
			return nil, err
		}
		if rooted, ok := strings.CutPrefix(pattern, "**/"); ok {
			if err := add(rooted); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func known(l lang.Language) bool {
	for _, k := range lang.All() {
		if l == k {
			return true
		}
	}
	return false
}

// Allows reports whether a repository-relative path is in scope. Paths are
// matched with '/' separators; exclude wins over include
func (p *Policy) Allows(path string) bool {
	path = filepath.ToSlash(path)
	for _, g := range p.exclude {
		if g.Match(path) {
			return false
		}
	}
	if len(p.include) == 0 {
		return true
	}
	for _, g := range p.include {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// AllowsLanguage reports whether the policy scans l. An empty languages
// list allows every recognized language
func (p *Policy) AllowsLanguage(l lang.Language) bool {
	if !l.Known() {
		return false
	}
	if p.languages == nil {
		return true
	}
	return p.languages[l]
}

// ExtendPII adds the policy's extra classification rules to a compiled pack
func (p *Policy) ExtendPII(pack *pii.Pack) error {
	if len(p.piiNames) == 0 && len(p.piiFormats) == 0 {
		return nil
	}
	if err := pack.Extend(p.piiNames, p.piiFormats); err != nil {
		return fmt.Errorf("policy: pii extensions: %w", err)
	}
	return nil
}
