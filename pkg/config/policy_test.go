package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultJuryPolicy(t *testing.T) {
	policy := DefaultJuryPolicy()

	assert.Equal(t, "SENIOR_LECTURER", policy.PresidentMinGrade)
	require.Len(t, policy.MentionBands, 5)
	assert.Equal(t, "EXCELLENT", policy.MentionBands[0].Name)
	assert.Equal(t, 0.0, policy.MentionBands[4].MinScore)
}

func TestLoadJuryPolicyEmptyPathUsesDefaults(t *testing.T) {
	policy, err := LoadJuryPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DefaultJuryPolicy(), policy)
}

func TestLoadJuryPolicyFromFileSortsBands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `president_min_grade: professor
mention_bands:
  - name: pass
    min_score: 10
  - name: fail
    min_score: 0
  - name: honours
    min_score: 16
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	policy, err := LoadJuryPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, "PROFESSOR", policy.PresidentMinGrade)
	require.Len(t, policy.MentionBands, 3)
	assert.Equal(t, "HONOURS", policy.MentionBands[0].Name)
	assert.Equal(t, "PASS", policy.MentionBands[1].Name)
	assert.Equal(t, "FAIL", policy.MentionBands[2].Name)
}

func TestParseJuryPolicyRejectsMissingZeroBand(t *testing.T) {
	_, err := ParseJuryPolicy([]byte(`mention_bands:
  - name: pass
    min_score: 10
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must start at 0")
}

func TestParseJuryPolicyRejectsDuplicateBand(t *testing.T) {
	_, err := ParseJuryPolicy([]byte(`mention_bands:
  - name: pass
    min_score: 10
  - name: PASS
    min_score: 0
`))
	require.Error(t, err)
}
