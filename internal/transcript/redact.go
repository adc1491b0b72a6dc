package transcript

import (
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Rule is one redaction pattern. Matches are replaced with Placeholder,
// which defaults to "[REDACTED-<NAME>]".
type Rule struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Placeholder string `yaml:"placeholder,omitempty"`

	re *regexp.Regexp
}

// Redactor applies an ordered set of redaction rules to transcript text.
type Redactor struct {
	rules []Rule
}

// defaultRules covers the identifiers that show up in dictated
// transcripts: SSNs, phone numbers, email addresses, and MRNs.
func defaultRules() []Rule {
	return []Rule{
		{Name: "ssn", Pattern: `\b\d{3}-\d{2}-\d{4}\b`},
		{Name: "phone", Pattern: `(?:\(\d{3}\)\s?|\b\d{3}[-.])\d{3}[-.]\d{4}\b`},
		{Name: "email", Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`},
		{Name: "mrn", Pattern: `(?i)\bMRN[:#\s]*\d{6,10}\b`},
	}
}

// NewRedactor compiles the built-in rules.
func NewRedactor() (*Redactor, error) {
	return newRedactor(defaultRules())
}

// NewRedactorFromFile compiles rules from a YAML file. File rules run in
// addition to the built-in ones; a rules file never narrows coverage.
func NewRedactorFromFile(path string) (*Redactor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "transcript: read rules %s", path)
	}

	var wrapper struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "transcript: parse rules")
	}

	return newRedactor(append(defaultRules(), wrapper.Rules...))
}

func newRedactor(rules []Rule) (*Redactor, error) {
	for i := range rules {
		re, err := regexp.Compile(rules[i].Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "transcript: compile rule %s", rules[i].Name)
		}
		rules[i].re = re
	}
	return &Redactor{rules: rules}, nil
}

// Redact replaces every match of every rule in order.
func (r *Redactor) Redact(text string) string {
	total := 0
	for _, rule := range r.rules {
		n := len(rule.re.FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		total += n

		placeholder := rule.Placeholder
		if placeholder == "" {
			placeholder = "[REDACTED-" + strings.ToUpper(rule.Name) + "]"
		}
		text = rule.re.ReplaceAllString(text, placeholder)
	}
	if total > 0 {
		zap.L().Debug("transcript: redactions applied", zap.Int("count", total))
	}
	return text
}
