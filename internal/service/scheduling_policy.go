package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/defense-jury-api/internal/models"
	"github.com/noah-isme/defense-jury-api/pkg/config"
)

// SchedulingPolicy holds the resolved rules used to compose and place sittings.
type SchedulingPolicy struct {
	MaxGroupSize         int
	PerCandidateDuration time.Duration
	WorkdayStart         time.Duration
	WorkdayEnd           time.Duration
	AudienceAllowance    int
	PresidentMinGrade    models.AcademicGrade
	Location             *time.Location
}

// DefaultSchedulingPolicy mirrors the configuration defaults.
func DefaultSchedulingPolicy() SchedulingPolicy {
	return SchedulingPolicy{
		MaxGroupSize:         3,
		PerCandidateDuration: 45 * time.Minute,
		WorkdayStart:         8 * time.Hour,
		WorkdayEnd:           17 * time.Hour,
		AudienceAllowance:    5,
		PresidentMinGrade:    models.GradeSeniorLecturer,
		Location:             time.UTC,
	}
}

// NewSchedulingPolicy resolves jury configuration. A policy file, when configured,
// takes precedence over JURY_PRESIDENT_MIN_GRADE.
func NewSchedulingPolicy(cfg config.JuryConfig, policy config.JuryPolicy) (SchedulingPolicy, error) {
	p := DefaultSchedulingPolicy()
	if cfg.MaxGroupSize > 0 {
		p.MaxGroupSize = cfg.MaxGroupSize
	}
	if cfg.PerCandidateDuration > 0 {
		p.PerCandidateDuration = cfg.PerCandidateDuration
	}
	if cfg.AudienceAllowance >= 0 {
		p.AudienceAllowance = cfg.AudienceAllowance
	}
	if cfg.WorkdayStart != "" {
		start, err := parseClock(cfg.WorkdayStart)
		if err != nil {
			return SchedulingPolicy{}, err
		}
		p.WorkdayStart = start
	}
	if cfg.WorkdayEnd != "" {
		end, err := parseClock(cfg.WorkdayEnd)
		if err != nil {
			return SchedulingPolicy{}, err
		}
		p.WorkdayEnd = end
	}
	if p.WorkdayEnd <= p.WorkdayStart {
		return SchedulingPolicy{}, fmt.Errorf("workday end %s must be after start %s", cfg.WorkdayEnd, cfg.WorkdayStart)
	}
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return SchedulingPolicy{}, fmt.Errorf("load jury timezone: %w", err)
		}
		p.Location = loc
	}

	rawGrade := cfg.PresidentMinGrade
	if strings.TrimSpace(cfg.PolicyFile) != "" && policy.PresidentMinGrade != "" {
		rawGrade = policy.PresidentMinGrade
	}
	if rawGrade != "" {
		grade, ok := models.ParseAcademicGrade(rawGrade)
		if !ok {
			return SchedulingPolicy{}, fmt.Errorf("unknown president minimum grade %q", rawGrade)
		}
		p.PresidentMinGrade = grade
	}
	return p, nil
}

// SittingLength is the duration of a sitting defending n candidates.
func (p SchedulingPolicy) SittingLength(n int) time.Duration {
	return time.Duration(n) * p.PerCandidateDuration
}

// RequiredCapacity is the number of seats a sitting occupies.
func (p SchedulingPolicy) RequiredCapacity(members, candidates int) int {
	return members + candidates + p.AudienceAllowance
}

// WithinWorkday reports whether [start, end) fits inside the working hours of start's day.
func (p SchedulingPolicy) WithinWorkday(start, end time.Time) bool {
	local := start.In(p.location())
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.location())
	open := day.Add(p.WorkdayStart)
	closing := day.Add(p.WorkdayEnd)
	return !start.Before(open) && !end.After(closing) && end.After(start)
}

// ParseDates converts YYYY-MM-DD values into sorted, de-duplicated midnights.
func (p SchedulingPolicy) ParseDates(raw []string) ([]time.Time, error) {
	seen := make(map[string]struct{}, len(raw))
	dates := make([]time.Time, 0, len(raw))
	for _, value := range raw {
		value = strings.TrimSpace(value)
		if _, dup := seen[value]; dup {
			continue
		}
		day, err := time.ParseInLocation("2006-01-02", value, p.location())
		if err != nil {
			return nil, fmt.Errorf("invalid defense date %q", value)
		}
		seen[value] = struct{}{}
		dates = append(dates, day)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (p SchedulingPolicy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

func parseClock(raw string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", raw)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
