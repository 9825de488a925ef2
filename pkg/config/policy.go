package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultJuryPolicyYAML = `# defense jury policy
president_min_grade: SENIOR_LECTURER

# Bands are matched from the highest min_score down; the last band must start at 0.
mention_bands:
  - name: EXCELLENT
    min_score: 18
  - name: VERY_GOOD
    min_score: 15
  - name: GOOD
    min_score: 12
  - name: FAIR
    min_score: 10
  - name: INSUFFICIENT
    min_score: 0
`

// MentionBandRule maps the lowest final score of a band to its name.
type MentionBandRule struct {
	Name     string  `yaml:"name"`
	MinScore float64 `yaml:"min_score"`
}

// JuryPolicy models the optional policy file referenced by JURY_POLICY_FILE.
type JuryPolicy struct {
	PresidentMinGrade string            `yaml:"president_min_grade"`
	MentionBands      []MentionBandRule `yaml:"mention_bands"`
}

// DefaultJuryPolicy returns the built-in policy.
func DefaultJuryPolicy() JuryPolicy {
	policy, err := ParseJuryPolicy([]byte(defaultJuryPolicyYAML))
	if err != nil {
		panic(fmt.Sprintf("default jury policy is invalid: %v", err))
	}
	return policy
}

// LoadJuryPolicy reads the policy file, falling back to defaults when path is empty.
// Fields missing from the file keep their default values.
func LoadJuryPolicy(path string) (JuryPolicy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultJuryPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return JuryPolicy{}, fmt.Errorf("read jury policy %s: %w", path, err)
	}
	return ParseJuryPolicy(data)
}

// ParseJuryPolicy decodes and validates policy YAML.
func ParseJuryPolicy(data []byte) (JuryPolicy, error) {
	var policy JuryPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return JuryPolicy{}, fmt.Errorf("parse jury policy: %w", err)
	}
	if len(policy.MentionBands) == 0 {
		policy.MentionBands = DefaultJuryPolicy().MentionBands
	}
	if policy.PresidentMinGrade == "" {
		policy.PresidentMinGrade = "SENIOR_LECTURER"
	}
	policy.PresidentMinGrade = strings.ToUpper(strings.TrimSpace(policy.PresidentMinGrade))
	if err := policy.normalize(); err != nil {
		return JuryPolicy{}, err
	}
	return policy, nil
}

func (p *JuryPolicy) normalize() error {
	if len(p.MentionBands) == 0 {
		return errors.New("jury policy requires at least one mention band")
	}
	seen := make(map[string]struct{}, len(p.MentionBands))
	for i := range p.MentionBands {
		band := &p.MentionBands[i]
		band.Name = strings.ToUpper(strings.TrimSpace(band.Name))
		if band.Name == "" {
			return errors.New("mention band name is required")
		}
		if band.MinScore < 0 || band.MinScore > 20 {
			return fmt.Errorf("mention band %s min_score must be between 0 and 20", band.Name)
		}
		if _, dup := seen[band.Name]; dup {
			return fmt.Errorf("mention band %s declared twice", band.Name)
		}
		seen[band.Name] = struct{}{}
	}
	sort.SliceStable(p.MentionBands, func(i, j int) bool {
		return p.MentionBands[i].MinScore > p.MentionBands[j].MinScore
	})
	if last := p.MentionBands[len(p.MentionBands)-1]; last.MinScore != 0 {
		return fmt.Errorf("lowest mention band %s must start at 0", last.Name)
	}
	return nil
}
