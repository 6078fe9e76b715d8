package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"datalens/internal/core/lang"
	"datalens/internal/core/pii"
)

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	return path
}

func TestDefaultPolicy(t *testing.T) {
	p, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if p.HopLimit != 5 {
		t.Fatalf("HopLimit = %d, want 5", p.HopLimit)
	}
	if p.RetirementMisses != 3 {
		t.Fatalf("RetirementMisses = %d, want 3", p.RetirementMisses)
	}
	s := p.Sampler
	if !s.Enabled || s.MinConfidence != 0.9 || s.SampleSize != 20 || s.ByteBudget != 1<<20 || s.Concurrency != 2 {
		t.Fatalf("Sampler = %+v", s)
	}

	for path, want := range map[string]bool{
		"internal/orders/repo.go":    true,
		"vendor/lib/x.go":            false,
		"a/vendor/lib/x.go":          false,
		"web/node_modules/m/i.js":    false,
		"web/app.min.js":             false,
		"services/api/testdata/f.py": false,
	} {
		if got := p.Allows(path); got != want {
			t.Fatalf("Allows(%q) = %v, want %v", path, got, want)
		}
	}

	for _, l := range lang.All() {
		if !p.AllowsLanguage(l) {
			t.Fatalf("default policy must allow %s", l)
		}
	}
	if p.AllowsLanguage(lang.Unknown) {
		t.Fatalf("unknown language must never be allowed")
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writePolicy(t, `
languages: [go, python]
exclude:
  - "**/gen/**"
resolver:
  hop_limit: 2
`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.HopLimit != 2 {
		t.Fatalf("HopLimit = %d, want override 2", p.HopLimit)
	}
	if p.RetirementMisses != 3 {
		t.Fatalf("RetirementMisses = %d, want inherited 3", p.RetirementMisses)
	}
	if !p.AllowsLanguage(lang.Python) || p.AllowsLanguage(lang.TypeScript) {
		t.Fatalf("language filter not applied")
	}
	if !p.Allows("vendor/lib/x.go") {
		t.Fatalf("file exclude list must replace the default list")
	}
	if p.Allows("x/gen/y.go") || p.Allows("gen/y.go") {
		t.Fatalf("gen exclude not applied")
	}
}

func TestForRepo(t *testing.T) {
	root := t.TempDir()
	if _, err := ForRepo(root, ""); err != nil {
		t.Fatalf("bare root must fall back to defaults: %v", err)
	}

	rootPolicy := filepath.Join(root, DefaultFilename)
	if err := os.WriteFile(rootPolicy, []byte("resolver:\n  hop_limit: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := ForRepo(root, "")
	if err != nil {
		t.Fatalf("ForRepo: %v", err)
	}
	if p.HopLimit != 1 {
		t.Fatalf("root policy not discovered, HopLimit = %d", p.HopLimit)
	}

	override := writePolicy(t, "resolver:\n  hop_limit: 4\n")
	p, err = ForRepo(root, override)
	if err != nil {
		t.Fatalf("ForRepo override: %v", err)
	}
	if p.HopLimit != 4 {
		t.Fatalf("override must win, HopLimit = %d", p.HopLimit)
	}

	if _, err := ForRepo(root, filepath.Join(root, "missing.yaml")); err == nil {
		t.Fatalf("missing explicit policy must error")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"min confidence", "sampler:\n  min_confidence: 1.5\n", "min_confidence"},
		{"misses", "retirement:\n  full_scan_misses: 0\n", "full_scan_misses"},
		{"glob", "exclude: [\"[\"]\n", "pattern"},
		{"language", "languages: [rust]\n", "unknown language"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writePolicy(t, tc.body))
			if err == nil {
				t.Fatalf("want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestExtendPII(t *testing.T) {
	p, err := Load(writePolicy(t, `
pii:
  names:
    - term: mrn
      category: government_id
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	pack, err := pii.Load()
	if err != nil {
		t.Fatalf("pii.Load: %v", err)
	}
	c := pii.NewClassifier(pack)
	if _, ok := c.ByName("mrn"); ok {
		t.Fatalf("mrn must not be flagged before the extension")
	}

	if err := p.ExtendPII(pack); err != nil {
		t.Fatalf("ExtendPII: %v", err)
	}
	c = pii.NewClassifier(pack)
	category, ok := c.ByName("patient_mrn")
	if !ok {
		t.Fatalf("policy extension not applied to the classifier")
	}
	if category != "government_id" {
		t.Fatalf("category = %q, want government_id", category)
	}
}
