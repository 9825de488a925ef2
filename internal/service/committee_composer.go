package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

// candidateGroup is a set of candidates that will defend in one sitting.
type candidateGroup struct {
	Program    string
	Candidates []models.Candidate
}

func (g candidateGroup) ids() []string {
	ids := make([]string, len(g.Candidates))
	for i, c := range g.Candidates {
		ids[i] = c.ID
	}
	return ids
}

// groupCandidates packs the session's eligible pool into ceil(n/maxGroupSize) balanced
// groups, keeping candidates that share a pair id together. Input must be id ordered;
// program plays no part in the packing.
func groupCandidates(candidates []models.Candidate, maxGroupSize int) []candidateGroup {
	if maxGroupSize <= 0 {
		maxGroupSize = 1
	}

	type unit struct {
		members []models.Candidate
	}
	var units []*unit
	pairs := make(map[string]*unit)
	for _, c := range candidates {
		if c.PairID != nil && *c.PairID != "" {
			if u, ok := pairs[*c.PairID]; ok {
				u.members = append(u.members, c)
				continue
			}
			u := &unit{members: []models.Candidate{c}}
			pairs[*c.PairID] = u
			units = append(units, u)
			continue
		}
		units = append(units, &unit{members: []models.Candidate{c}})
	}
	if len(units) == 0 {
		return nil
	}

	total := len(candidates)
	k := (total + maxGroupSize - 1) / maxGroupSize
	targets := make([]int, k)
	for i := range targets {
		targets[i] = total / k
		if i < total%k {
			targets[i]++
		}
	}

	buckets := make([][]models.Candidate, k)
	for _, u := range units {
		placed := false
		for i := range buckets {
			if len(buckets[i])+len(u.members) <= targets[i] {
				buckets[i] = append(buckets[i], u.members...)
				placed = true
				break
			}
		}
		if !placed {
			buckets = append(buckets, append([]models.Candidate(nil), u.members...))
			targets = append(targets, len(u.members))
		}
	}

	var groups []candidateGroup
	for _, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		sort.SliceStable(bucket, func(i, j int) bool { return bucket[i].ID < bucket[j].ID })
		groups = append(groups, candidateGroup{Program: groupProgram(bucket), Candidates: bucket})
	}
	return groups
}

// groupProgram lists the distinct programs of a group in first-seen order.
func groupProgram(candidates []models.Candidate) string {
	var programs []string
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.Program]; ok || c.Program == "" {
			continue
		}
		seen[c.Program] = struct{}{}
		programs = append(programs, c.Program)
	}
	return strings.Join(programs, ", ")
}

// committeeComposer assigns voting members and supervisor observers. It remembers
// the assignments of the current run so later sittings see the added load.
type committeeComposer struct {
	evaluators []models.Evaluator
	order      map[string]int
	load       map[string]int
	minGrade   models.AcademicGrade
}

func newCommitteeComposer(evaluators []models.Evaluator, minGrade models.AcademicGrade) *committeeComposer {
	c := &committeeComposer{
		evaluators: evaluators,
		order:      make(map[string]int, len(evaluators)),
		load:       make(map[string]int, len(evaluators)),
		minGrade:   minGrade,
	}
	for i, e := range evaluators {
		c.order[e.ID] = i
		c.load[e.ID] = e.CommittedSlotCount
	}
	return c
}

// Compose picks the committee for group. ok is false when fewer than three
// conflict-free evaluators are available or none of them may preside.
func (c *committeeComposer) Compose(group candidateGroup) (members []models.SittingMember, ok bool) {
	supervisors := make(map[string]struct{}, len(group.Candidates))
	for _, candidate := range group.Candidates {
		supervisors[candidate.SupervisorID] = struct{}{}
	}

	pool := make([]models.Evaluator, 0, len(c.evaluators))
	for _, e := range c.evaluators {
		if !e.Available {
			continue
		}
		if _, conflict := supervisors[e.ID]; conflict {
			continue
		}
		pool = append(pool, e)
	}
	sort.SliceStable(pool, func(i, j int) bool {
		li, lj := c.load[pool[i].ID], c.load[pool[j].ID]
		if li != lj {
			return li < lj
		}
		return c.order[pool[i].ID] < c.order[pool[j].ID]
	})

	president := -1
	for i, e := range pool {
		if e.Grade.AtLeast(c.minGrade) {
			president = i
			break
		}
	}
	if president < 0 || len(pool) < 3 {
		return nil, false
	}

	members = append(members, models.SittingMember{EvaluatorID: pool[president].ID, Role: models.JuryRolePresident})
	rest := []models.JuryRole{models.JuryRoleRapporteur, models.JuryRoleExaminer}
	for i := 0; i < len(pool) && len(rest) > 0; i++ {
		if i == president {
			continue
		}
		members = append(members, models.SittingMember{EvaluatorID: pool[i].ID, Role: rest[0]})
		rest = rest[1:]
	}
	return append(members, supervisorObservers(group.Candidates)...), true
}

// commit adds one slot of load to each voting member.
func (c *committeeComposer) commit(members []models.SittingMember) {
	for _, m := range members {
		if m.Role.IsVoting() {
			c.load[m.EvaluatorID]++
		}
	}
}

// supervisorObservers returns one observer per distinct supervisor, linked to
// the first of their candidates in sitting order.
func supervisorObservers(candidates []models.Candidate) []models.SittingMember {
	seen := make(map[string]struct{}, len(candidates))
	var observers []models.SittingMember
	for _, candidate := range candidates {
		if candidate.SupervisorID == "" {
			continue
		}
		if _, dup := seen[candidate.SupervisorID]; dup {
			continue
		}
		seen[candidate.SupervisorID] = struct{}{}
		candidateID := candidate.ID
		observers = append(observers, models.SittingMember{
			EvaluatorID: candidate.SupervisorID,
			Role:        models.JuryRoleSupervisorObserver,
			CandidateID: &candidateID,
		})
	}
	return observers
}
