package pii

import "testing"

func TestClassify_Table(t *testing.T) {
	m := NewMatcher(mustPack(t))

	tests := []struct {
		path string
		cat  string
		ok   bool
	}{
		{"ssn", CategoryGovernmentID, true},
		{"customerSSN", CategoryGovernmentID, true},
		{"social_security_number", CategoryGovernmentID, true},
		{"user.email", CategoryEmail, true},
		{"Customer.HomeEmail", CategoryEmail, true},
		{"billing.phone_number", CategoryPhone, true},
		{"password_hash", CategoryCredential, true},
		{"apiKey", CategoryCredential, true},
		{"date_of_birth", CategoryDOB, true},
		{"shipping_address", CategoryAddress, true},
		{"first_name", CategoryName, true},
		{"clientIp", CategoryIP, true},
		{"ＳＳＮ", CategoryGovernmentID, true}, // fullwidth folds before matching

		{"status", "", false},
		{"created_at", "", false},
		{"order_total", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		cat, ok := m.Classify(tc.path)
		if ok != tc.ok || cat != tc.cat {
			t.Fatalf("Classify(%q) = %q, %v; want %q, %v", tc.path, cat, ok, tc.cat, tc.ok)
		}
	}
}

func TestClassify_WholeTokensOnly(t *testing.T) {
	m := NewMatcher(mustPack(t))

	// "shipping" contains "pin" but not as a token
	if cat, ok := m.Classify("shipping"); ok {
		t.Fatalf("substring matched inside a token: %q", cat)
	}
	if cat, ok := m.Classify("spinner_count"); ok {
		t.Fatalf("substring matched inside a token: %q", cat)
	}
	// as its own token it fires
	if cat, ok := m.Classify("card_pin"); !ok || cat != CategoryCredential {
		t.Fatalf("whole-token pin should match: %q %v", cat, ok)
	}
}

func TestClassify_LongestTermWins(t *testing.T) {
	p := mustPack(t)
	if err := p.Extend([]NameRule{{Term: "security_number", Category: "custom"}}, nil); err != nil {
		t.Fatalf("extend: %v", err)
	}
	m := NewMatcher(p)

	// both "social security" and the longer "social security number" match;
	// the longest rule decides
	cat, ok := m.Classify("social_security_number")
	if !ok || cat != CategoryGovernmentID {
		t.Fatalf("longest term should win: %q %v", cat, ok)
	}
}
