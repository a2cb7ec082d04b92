package assess

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/phonoscope/internal/classify"
)

// Rule names a family of substitutions that share a linguistic cause.
type Rule struct {
	Name  string `yaml:"name"`
	Pairs []Pair `yaml:"pairs"`
}

// Pair is one expected → produced substitution.
type Pair struct {
	Expected  string `yaml:"expected"`
	Predicted string `yaml:"predicted"`
}

// RuleHit counts how often a rule fired for one pair.
type RuleHit struct {
	Rule      string `json:"rule"`
	Expected  string `json:"expected"`
	Predicted string `json:"predicted"`
	Count     int    `json:"count"`
}

// DefaultRules returns the built-in rules for English learners.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "VOICING_ERROR_FRICATIVE", Pairs: []Pair{{"z", "s"}, {"s", "z"}}},
		{Name: "TH_FRONTING_OR_STOPPING", Pairs: []Pair{{"θ", "s"}, {"ð", "d"}, {"ð", "z"}}},
		{Name: "VOWEL_TENSE_LAX", Pairs: []Pair{{"ɪ", "i"}, {"i", "ɪ"}, {"ʊ", "u"}, {"u", "ʊ"}}},
	}
}

// RuleSet matches substitutions against rules. When several rules list the
// same pair, the first one wins.
type RuleSet struct {
	rules []Rule
	index map[Pair]string
}

// NewRuleSet indexes rules.
func NewRuleSet(rules []Rule) (*RuleSet, error) {
	rs := &RuleSet{rules: rules, index: make(map[Pair]string)}
	var errs []error
	for i, r := range rules {
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("rules[%d]: name is required", i))
		}
		for j, p := range r.Pairs {
			if p.Expected == "" || p.Predicted == "" {
				errs = append(errs, fmt.Errorf("rules[%d].pairs[%d]: expected and predicted are required", i, j))
				continue
			}
			if _, ok := rs.index[p]; !ok {
				rs.index[p] = r.Name
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("assess: rules: %w", err)
	}
	return rs, nil
}

// rulesFile is the YAML schema of a rules file.
type rulesFile struct {
	// Replace drops the built-in rules instead of appending to them.
	Replace bool   `yaml:"replace"`
	Rules   []Rule `yaml:"rules"`
}

// LoadRules reads a YAML rules file from r. Its rules are appended to
// [DefaultRules] unless the file sets replace: true.
//
//	rules:
//	  - name: FINAL_DEVOICING
//	    pairs:
//	      - {expected: d, predicted: t}
//	      - {expected: ɡ, predicted: k}
func LoadRules(r io.Reader) (*RuleSet, error) {
	var f rulesFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("assess: decode rules: %w", err)
	}
	rules := f.Rules
	if !f.Replace {
		rules = append(DefaultRules(), f.Rules...)
	}
	return NewRuleSet(rules)
}

// LoadRulesFile opens path and calls [LoadRules].
func LoadRulesFile(path string) (*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("assess: open rules %q: %w", path, err)
	}
	defer f.Close()
	return LoadRules(f)
}

// Rules returns the rules in match order.
func (rs *RuleSet) Rules() []Rule {
	return slices.Clone(rs.rules)
}

// Apply counts rule hits among the substitutions in mistakes. Hits are
// sorted by rule, expected, then predicted symbol.
func (rs *RuleSet) Apply(mistakes []classify.Mistake) []RuleHit {
	counts := make(map[RuleHit]int)
	for _, m := range mistakes {
		if m.Kind != classify.Substitution {
			continue
		}
		p := Pair{Expected: m.Expected(), Predicted: m.Produced()}
		name, ok := rs.index[p]
		if !ok {
			continue
		}
		counts[RuleHit{Rule: name, Expected: p.Expected, Predicted: p.Predicted}]++
	}
	hits := make([]RuleHit, 0, len(counts))
	for h, n := range counts {
		h.Count = n
		hits = append(hits, h)
	}
	slices.SortFunc(hits, func(a, b RuleHit) int {
		return cmp.Or(
			cmp.Compare(a.Rule, b.Rule),
			cmp.Compare(a.Expected, b.Expected),
			cmp.Compare(a.Predicted, b.Predicted),
		)
	})
	return hits
}

// SubstitutionHistogram counts substitutions keyed "expected→produced".
func SubstitutionHistogram(mistakes []classify.Mistake) map[string]int {
	h := make(map[string]int)
	for _, m := range mistakes {
		if m.Kind != classify.Substitution {
			continue
		}
		h[m.Expected()+"→"+m.Produced()]++
	}
	return h
}
