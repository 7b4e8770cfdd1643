// Package checker validates parsed link-registry documents: label
// uniqueness, target well-formedness and per-entry policy rules.
package checker

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/idna"

	"linkreg/internal/config"
	"linkreg/internal/rst"
)

var (
	ErrEmptyLabel        = errors.New("label is empty")
	ErrLabelTooLong      = errors.New("label exceeds the configured maximum length")
	ErrEmptyTarget       = errors.New("target is empty")
	ErrMissingScheme     = errors.New("target is missing a URL scheme")
	ErrSchemeNotAllowed  = errors.New("target scheme is not allowed by policy")
	ErrInvalidTargetURL  = errors.New("target is not a valid URL")
	ErrInvalidTargetHost = errors.New("target host is empty")
	ErrInvalidTargetIDN  = errors.New("target host is an invalid IDN")
)

// Rule identifies a validation rule a finding belongs to.
type Rule string

const (
	RuleDuplicateLabel  Rule = "duplicate-label"
	RuleDuplicateTarget Rule = "duplicate-target"
	RuleEmptyLabel      Rule = "empty-label"
	RuleLabelTooLong    Rule = "label-too-long"
	RuleEmptyTarget     Rule = "empty-target"
	RuleMissingScheme   Rule = "missing-scheme"
	RuleBadScheme       Rule = "scheme-not-allowed"
	RuleBadTarget       Rule = "bad-target"
	RuleMalformedLine   Rule = "malformed-line"
)

// Finding is a single violation found in a document.
type Finding struct {
	Rule    Rule
	Line    int
	Label   string
	Message string
}

func (f Finding) String() string {
	if f.Label == "" {
		return fmt.Sprintf("%d: %s: %s", f.Line, f.Rule, f.Message)
	}
	return fmt.Sprintf("%d: %s: %q: %s", f.Line, f.Rule, f.Label, f.Message)
}

// ValidateLabel checks a label against the structural rules and policy.
func ValidateLabel(label string, policy *config.Policy) error {
	if strings.TrimSpace(label) == "" {
		return ErrEmptyLabel
	}
	if policy.MaxLabelLength > 0 && len(label) > policy.MaxLabelLength {
		return ErrLabelTooLong
	}
	return nil
}

// ValidateTarget checks a target URL against the structural rules and
// policy. Punycode hostname labels are validated through the idna package.
func ValidateTarget(target string, policy *config.Policy) error {
	if target == "" {
		return ErrEmptyTarget
	}
	u, err := url.Parse(target)
	if err != nil {
		return ErrInvalidTargetURL
	}
	if u.Scheme == "" {
		return ErrMissingScheme
	}
	if !policy.SchemeAllowed(u.Scheme) {
		return ErrSchemeNotAllowed
	}
	host := u.Hostname()
	if host == "" {
		return ErrInvalidTargetHost
	}
	for _, label := range strings.Split(host, ".") {
		if strings.HasPrefix(label, "xn--") {
			if _, err := idna.Registration.ToUnicode(label); err != nil {
				return ErrInvalidTargetIDN
			}
		}
	}
	return nil
}

// Check validates a parsed document and returns all findings sorted by
// line number. Labels equal under case-insensitive comparison violate the
// duplicate-label rule; the second and later occurrences are flagged.
func Check(doc *rst.Document, policy *config.Policy) []Finding {
	var findings []Finding

	seenLabels := make(map[string]int)  // label key -> first line
	seenTargets := make(map[string]int) // target -> first line

	for _, e := range doc.Entries() {
		if err := ValidateLabel(e.Label, policy); err != nil {
			findings = append(findings, Finding{
				Rule:    labelRule(err),
				Line:    e.Line,
				Label:   e.Label,
				Message: err.Error(),
			})
		}
		if err := ValidateTarget(e.Target, policy); err != nil {
			findings = append(findings, Finding{
				Rule:    targetRule(err),
				Line:    e.Line,
				Label:   e.Label,
				Message: err.Error(),
			})
		}

		key := rst.Key(e.Label)
		if first, ok := seenLabels[key]; ok {
			findings = append(findings, Finding{
				Rule:    RuleDuplicateLabel,
				Line:    e.Line,
				Label:   e.Label,
				Message: fmt.Sprintf("duplicates label first defined on line %d", first),
			})
		} else {
			seenLabels[key] = e.Line
		}

		if !policy.AllowDuplicateTargets && e.Target != "" {
			if first, ok := seenTargets[e.Target]; ok {
				findings = append(findings, Finding{
					Rule:    RuleDuplicateTarget,
					Line:    e.Line,
					Label:   e.Label,
					Message: fmt.Sprintf("duplicates target first used on line %d", first),
				})
			} else {
				seenTargets[e.Target] = e.Line
			}
		}
	}

	for _, m := range doc.Malformed {
		findings = append(findings, Finding{
			Rule:    RuleMalformedLine,
			Line:    m.Line,
			Message: fmt.Sprintf("unrecognized line %q", m.Text),
		})
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Line != findings[j].Line {
			return findings[i].Line < findings[j].Line
		}
		return findings[i].Rule < findings[j].Rule
	})

	return findings
}

func labelRule(err error) Rule {
	switch {
	case errors.Is(err, ErrLabelTooLong):
		return RuleLabelTooLong
	default:
		return RuleEmptyLabel
	}
}

func targetRule(err error) Rule {
	switch {
	case errors.Is(err, ErrEmptyTarget):
		return RuleEmptyTarget
	case errors.Is(err, ErrMissingScheme):
		return RuleMissingScheme
	case errors.Is(err, ErrSchemeNotAllowed):
		return RuleBadScheme
	default:
		return RuleBadTarget
	}
}
