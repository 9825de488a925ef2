package service

import (
	"sort"
	"time"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

// placement is where and when a sitting will be held.
type placement struct {
	RoomID   string
	StartsAt time.Time
	EndsAt   time.Time
}

// roomTimeAllocator carves sitting windows out of the working hours of the
// requested dates and picks the smallest room that fits.
type roomTimeAllocator struct {
	policy SchedulingPolicy
	dates  []time.Time
	rooms  []models.Room
	busy   *occupancy
}

func newRoomTimeAllocator(policy SchedulingPolicy, dates []time.Time, rooms []models.Room, busy *occupancy) *roomTimeAllocator {
	sorted := make([]models.Room, 0, len(rooms))
	for _, room := range rooms {
		if room.Available {
			sorted = append(sorted, room)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Capacity != sorted[j].Capacity {
			return sorted[i].Capacity < sorted[j].Capacity
		}
		return sorted[i].ID < sorted[j].ID
	})
	return &roomTimeAllocator{policy: policy, dates: dates, rooms: sorted, busy: busy}
}

// Allocate finds the earliest window, then the best-fit room, in which the room
// and every member are free. It does not reserve anything.
func (a *roomTimeAllocator) Allocate(members []models.SittingMember, candidateCount int) (placement, models.InfeasibilityReason) {
	required := a.policy.RequiredCapacity(len(members), candidateCount)
	fitting := make([]models.Room, 0, len(a.rooms))
	for _, room := range a.rooms {
		if room.Capacity >= required {
			fitting = append(fitting, room)
		}
	}
	if len(fitting) == 0 {
		return placement{}, models.ReasonNoRoomAvailable
	}

	length := a.policy.SittingLength(candidateCount)
	step := a.policy.PerCandidateDuration
	memberIDs := memberEvaluatorIDs(members)
	for _, day := range a.dates {
		open := day.Add(a.policy.WorkdayStart)
		closing := day.Add(a.policy.WorkdayEnd)
		for start := open; !start.Add(length).After(closing); start = start.Add(step) {
			end := start.Add(length)
			if !a.membersFree(memberIDs, start, end) {
				continue
			}
			for _, room := range fitting {
				if a.busy.roomFree(room.ID, start, end) {
					return placement{RoomID: room.ID, StartsAt: start, EndsAt: end}, ""
				}
			}
		}
	}
	return placement{}, models.ReasonTimeWindowExhausted
}

// commit reserves the placement for later allocations of the same run.
func (a *roomTimeAllocator) commit(p placement, members []models.SittingMember) {
	a.busy.reserve("", p.RoomID, memberEvaluatorIDs(members), p.StartsAt, p.EndsAt)
}

func (a *roomTimeAllocator) membersFree(ids []string, start, end time.Time) bool {
	for _, id := range ids {
		if !a.busy.evaluatorFree(id, start, end) {
			return false
		}
	}
	return true
}

func memberEvaluatorIDs(members []models.SittingMember) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.EvaluatorID
	}
	return ids
}
