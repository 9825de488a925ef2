package models

import "time"

// Room is a defense room from the room directory.
type Room struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Building  string    `db:"building" json:"building"`
	Floor     string    `db:"floor" json:"floor"`
	Capacity  int       `db:"capacity" json:"capacity"`
	Available bool      `db:"available" json:"available"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RoomReservation blocks a room for a time range. SittingID is nil for reservations
// made outside the defense scheduler.
type RoomReservation struct {
	ID        string    `db:"id" json:"id"`
	RoomID    string    `db:"room_id" json:"room_id"`
	SittingID *string   `db:"sitting_id" json:"sitting_id,omitempty"`
	StartsAt  time.Time `db:"starts_at" json:"starts_at"`
	EndsAt    time.Time `db:"ends_at" json:"ends_at"`
	Purpose   string    `db:"purpose" json:"purpose"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Overlaps reports whether the reservation intersects [start, end).
func (r RoomReservation) Overlaps(start, end time.Time) bool {
	return r.StartsAt.Before(end) && start.Before(r.EndsAt)
}
