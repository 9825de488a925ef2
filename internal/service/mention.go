package service

import (
	"sort"

	"github.com/noah-isme/defense-jury-api/pkg/config"
)

// MentionScale maps a final score to its honours band.
type MentionScale struct {
	bands []config.MentionBandRule
}

// NewMentionScale builds a scale from policy bands, falling back to the built-in bands.
func NewMentionScale(bands []config.MentionBandRule) MentionScale {
	if len(bands) == 0 {
		bands = config.DefaultJuryPolicy().MentionBands
	}
	sorted := append([]config.MentionBandRule(nil), bands...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinScore > sorted[j].MinScore })
	return MentionScale{bands: sorted}
}

// For returns the band of score. Scores below every threshold take the lowest band.
func (m MentionScale) For(score float64) string {
	if len(m.bands) == 0 {
		return ""
	}
	for _, band := range m.bands {
		if score >= band.MinScore {
			return band.Name
		}
	}
	return m.bands[len(m.bands)-1].Name
}
