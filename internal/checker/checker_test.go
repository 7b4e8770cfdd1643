package checker

import (
	"testing"

	"linkreg/internal/config"
	"linkreg/internal/rst"
)

func mustParse(t *testing.T, input string) *rst.Document {
	t.Helper()
	doc, err := rst.Parse("test", input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

func findRule(findings []Finding, rule Rule) *Finding {
	for i := range findings {
		if findings[i].Rule == rule {
			return &findings[i]
		}
	}
	return nil
}

func TestCheckCleanFile(t *testing.T) {
	doc := mustParse(t, `.. Documentation tools

.. _Sphinx: http://sphinx.pocoo.org/
.. _graphviz: http://www.graphviz.org/
`)
	findings := Check(doc, config.Default())
	if len(findings) != 0 {
		t.Errorf("expected no findings, got %v", findings)
	}
}

func TestCheckDuplicateLabels(t *testing.T) {
	doc := mustParse(t, ".. _nipy: http://nipy.org\n.. _NiPy: http://nipy.org/other\n")
	findings := Check(doc, config.Default())
	f := findRule(findings, RuleDuplicateLabel)
	if f == nil {
		t.Fatalf("expected a duplicate-label finding, got %v", findings)
	}
	if f.Line != 2 {
		t.Errorf("duplicate flagged on line %d, want 2 (the second occurrence)", f.Line)
	}
	if f.Label != "NiPy" {
		t.Errorf("duplicate flagged label %q, want %q", f.Label, "NiPy")
	}
}

func TestCheckDuplicateQuotedVsBare(t *testing.T) {
	doc := mustParse(t, ".. _`nipy`: http://nipy.org\n.. _nipy: http://nipy.org\n")
	findings := Check(doc, config.Default())
	if findRule(findings, RuleDuplicateLabel) == nil {
		t.Errorf("quoted and bare spellings of the same label should collide, got %v", findings)
	}
}

func TestCheckEmptyTarget(t *testing.T) {
	doc := mustParse(t, ".. _orphan:\n")
	findings := Check(doc, config.Default())
	if findRule(findings, RuleEmptyTarget) == nil {
		t.Errorf("expected an empty-target finding, got %v", findings)
	}
}

func TestCheckMissingScheme(t *testing.T) {
	doc := mustParse(t, ".. _nipy: nipy.org\n")
	findings := Check(doc, config.Default())
	if findRule(findings, RuleMissingScheme) == nil {
		t.Errorf("expected a missing-scheme finding, got %v", findings)
	}
}

func TestCheckSchemeNotAllowed(t *testing.T) {
	doc := mustParse(t, ".. _repo: ftp://ftp.example.com/pub\n")
	findings := Check(doc, config.Default())
	if findRule(findings, RuleBadScheme) == nil {
		t.Errorf("expected a scheme-not-allowed finding, got %v", findings)
	}

	policy := config.Default()
	policy.AllowedSchemes = append(policy.AllowedSchemes, "ftp")
	findings = Check(doc, policy)
	if findRule(findings, RuleBadScheme) != nil {
		t.Errorf("ftp allowed by policy but still flagged: %v", findings)
	}
}

func TestCheckMalformedLine(t *testing.T) {
	doc := mustParse(t, "stray prose\n.. _ok: http://example.com\n")
	findings := Check(doc, config.Default())
	f := findRule(findings, RuleMalformedLine)
	if f == nil {
		t.Fatalf("expected a malformed-line finding, got %v", findings)
	}
	if f.Line != 1 {
		t.Errorf("malformed line flagged at %d, want 1", f.Line)
	}
}

func TestCheckDuplicateTargets(t *testing.T) {
	doc := mustParse(t, ".. _a: http://example.com\n.. _b: http://example.com\n")

	// Allowed by default
	findings := Check(doc, config.Default())
	if findRule(findings, RuleDuplicateTarget) != nil {
		t.Errorf("duplicate targets flagged under default policy: %v", findings)
	}

	policy := config.Default()
	policy.AllowDuplicateTargets = false
	findings = Check(doc, policy)
	if findRule(findings, RuleDuplicateTarget) == nil {
		t.Errorf("expected a duplicate-target finding, got %v", findings)
	}
}

func TestCheckLabelTooLong(t *testing.T) {
	policy := config.Default()
	policy.MaxLabelLength = 8
	doc := mustParse(t, ".. _averyverylonglabel: http://example.com\n")
	findings := Check(doc, policy)
	if findRule(findings, RuleLabelTooLong) == nil {
		t.Errorf("expected a label-too-long finding, got %v", findings)
	}
}

func TestCheckFindingsSortedByLine(t *testing.T) {
	doc := mustParse(t, ".. _c: nowhere\n.. _b: \n.. _a: ftp://x.example/\n")
	findings := Check(doc, config.Default())
	if len(findings) < 3 {
		t.Fatalf("expected at least 3 findings, got %v", findings)
	}
	for i := 1; i < len(findings); i++ {
		if findings[i].Line < findings[i-1].Line {
			t.Errorf("findings out of order: %v", findings)
			break
		}
	}
}

func TestValidateTarget(t *testing.T) {
	policy := config.Default()
	tests := []struct {
		target string
		err    error
	}{
		{"http://nipy.org", nil},
		{"https://nipy.org/devel", nil},
		{"", ErrEmptyTarget},
		{"nipy.org", ErrMissingScheme},
		{"ftp://ftp.example.com", ErrSchemeNotAllowed},
		{"http://", ErrInvalidTargetHost},
		{"http://xn--!!!.example", ErrInvalidTargetIDN},
	}
	for _, test := range tests {
		if err := ValidateTarget(test.target, policy); err != test.err {
			t.Errorf("ValidateTarget(%q) = %v, want %v", test.target, err, test.err)
		}
	}
}
