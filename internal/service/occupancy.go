package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

// occupancy tracks when rooms and evaluators are committed. It is seeded from the
// database and extended with placements made during the same operation.
type occupancy struct {
	rooms      map[string][]models.BusyInterval
	evaluators map[string][]models.BusyInterval
}

// newOccupancy indexes busy intervals, dropping those that belong to an ignored sitting.
func newOccupancy(roomBusy, evaluatorBusy []models.BusyInterval, ignoreSittings ...string) *occupancy {
	ignored := make(map[string]struct{}, len(ignoreSittings))
	for _, id := range ignoreSittings {
		ignored[id] = struct{}{}
	}
	o := &occupancy{
		rooms:      make(map[string][]models.BusyInterval),
		evaluators: make(map[string][]models.BusyInterval),
	}
	keep := func(b models.BusyInterval) bool {
		if b.SittingID == nil {
			return true
		}
		_, skip := ignored[*b.SittingID]
		return !skip
	}
	for _, b := range roomBusy {
		if keep(b) {
			o.rooms[b.ResourceID] = append(o.rooms[b.ResourceID], b)
		}
	}
	for _, b := range evaluatorBusy {
		if keep(b) {
			o.evaluators[b.ResourceID] = append(o.evaluators[b.ResourceID], b)
		}
	}
	return o
}

func (o *occupancy) roomFree(roomID string, start, end time.Time) bool {
	return free(o.rooms[roomID], start, end)
}

func (o *occupancy) evaluatorFree(evaluatorID string, start, end time.Time) bool {
	return free(o.evaluators[evaluatorID], start, end)
}

// conflicts describes every commitment that prevents the room and members from meeting in [start, end).
func (o *occupancy) conflicts(roomID string, memberIDs []string, start, end time.Time) []string {
	var out []string
	if roomID != "" && !o.roomFree(roomID, start, end) {
		out = append(out, fmt.Sprintf("room %s is already reserved", roomID))
	}
	for _, id := range memberIDs {
		if !o.evaluatorFree(id, start, end) {
			out = append(out, fmt.Sprintf("evaluator %s is already committed", id))
		}
	}
	return out
}

func (o *occupancy) reserve(sittingID, roomID string, memberIDs []string, start, end time.Time) {
	var ref *string
	if sittingID != "" {
		ref = &sittingID
	}
	if roomID != "" {
		o.rooms[roomID] = append(o.rooms[roomID], models.BusyInterval{ResourceID: roomID, SittingID: ref, StartsAt: start, EndsAt: end})
	}
	for _, id := range memberIDs {
		o.evaluators[id] = append(o.evaluators[id], models.BusyInterval{ResourceID: id, SittingID: ref, StartsAt: start, EndsAt: end})
	}
}

func free(intervals []models.BusyInterval, start, end time.Time) bool {
	for _, b := range intervals {
		if b.Overlaps(start, end) {
			return false
		}
	}
	return true
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
