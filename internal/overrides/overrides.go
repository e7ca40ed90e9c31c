// Package overrides implements identification overrides: a YAML/JSON rule
// set applied after identification, matched by conjunction of whichever
// predicates a rule specifies.
package overrides

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Rule is one override rule (§3 IdentificationOverride, §6).
type Rule struct {
	Name        string   `yaml:"name" json:"name"`
	Paths       []string `yaml:"paths" json:"paths"`
	PathEquals  string   `yaml:"path_equals" json:"path_equals"`
	PathRegex   string   `yaml:"path_regex" json:"path_regex"`
	NameRegex   string   `yaml:"name_regex" json:"name_regex"`
	PathGlob    string   `yaml:"path_glob" json:"path_glob"`
	Contains    string   `yaml:"contains" json:"contains"`
	Extension   string   `yaml:"extension" json:"extension"`
	StartsWith  string   `yaml:"starts_with" json:"starts_with"`
	EndsWith    string   `yaml:"ends_with" json:"ends_with"`
	PlatformID  string   `yaml:"platform_id" json:"platform_id"`
	Confidence  *float64 `yaml:"confidence" json:"confidence"`

	pathRegexCompiled *regexp.Regexp
	nameRegexCompiled *regexp.Regexp
}

// EffectiveConfidence returns the rule's confidence, defaulting to 1.0.
func (r *Rule) EffectiveConfidence() float64 {
	if r.Confidence == nil {
		return 1.0
	}
	return *r.Confidence
}

type ruleDocument struct {
	Rules []Rule `yaml:"rules" json:"rules"`
}

// Load reads a rules file that is either a top-level list or
// {rules: [...]}, compiling any regex predicates up front so Match is
// allocation-free per call.
func Load(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read overrides")
	}

	var rules []Rule
	isJSON := strings.EqualFold(filepath.Ext(path), ".json")

	// Try the bare-list shape first, then the {rules: [...]} shape.
	if isJSON {
		if err := json.Unmarshal(data, &rules); err != nil {
			var doc ruleDocument
			if err2 := json.Unmarshal(data, &doc); err2 != nil {
				return nil, errors.Wrap(err, "parse overrides JSON")
			}
			rules = doc.Rules
		}
	} else {
		if err := yaml.Unmarshal(data, &rules); err != nil || len(rules) == 0 {
			var doc ruleDocument
			if err2 := yaml.Unmarshal(data, &doc); err2 == nil && len(doc.Rules) > 0 {
				rules = doc.Rules
			} else if err != nil {
				return nil, errors.Wrap(err, "parse overrides YAML")
			}
		}
	}

	for i := range rules {
		if rules[i].PathRegex != "" {
			re, err := regexp.Compile(rules[i].PathRegex)
			if err != nil {
				return nil, errors.Wrapf(err, "rule %q: invalid path_regex", rules[i].Name)
			}
			rules[i].pathRegexCompiled = re
		}
		if rules[i].NameRegex != "" {
			re, err := regexp.Compile(rules[i].NameRegex)
			if err != nil {
				return nil, errors.Wrapf(err, "rule %q: invalid name_regex", rules[i].Name)
			}
			rules[i].nameRegexCompiled = re
		}
	}
	return rules, nil
}

// Match reports whether every predicate the rule specifies holds for
// path (conjunction — an unspecified predicate is vacuously true).
func (r *Rule) Match(path string) bool {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))

	if len(r.Paths) > 0 && !containsPath(r.Paths, path) {
		return false
	}
	if r.PathEquals != "" && r.PathEquals != path {
		return false
	}
	if r.pathRegexCompiled != nil && !r.pathRegexCompiled.MatchString(path) {
		return false
	}
	if r.nameRegexCompiled != nil && !r.nameRegexCompiled.MatchString(name) {
		return false
	}
	if r.PathGlob != "" {
		ok, err := filepath.Match(r.PathGlob, path)
		if err != nil || !ok {
			// also try matching against the base name for convenience
			ok2, err2 := filepath.Match(r.PathGlob, name)
			if err2 != nil || !ok2 {
				return false
			}
		}
	}
	if r.Contains != "" && !strings.Contains(path, r.Contains) {
		return false
	}
	if r.Extension != "" && !strings.EqualFold(r.Extension, ext) {
		return false
	}
	if r.StartsWith != "" && !strings.HasPrefix(name, r.StartsWith) {
		return false
	}
	if r.EndsWith != "" && !strings.HasSuffix(name, r.EndsWith) {
		return false
	}
	return true
}

func containsPath(list []string, path string) bool {
	for _, p := range list {
		if p == path {
			return true
		}
	}
	return false
}

// FirstMatch returns the first rule (in declaration order) matching path.
func FirstMatch(rules []Rule, path string) (*Rule, bool) {
	for i := range rules {
		if rules[i].Match(path) {
			return &rules[i], true
		}
	}
	return nil, false
}
