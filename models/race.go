package models

import "time"

// Race представляет этап сезона.
//
// IsProcessed is monotonic: once settlement has run it never resets, and
// PPMData is present if and only if IsProcessed is true.
type Race struct {
	ID                 int       `json:"id" db:"id"`
	RoundNumber        int       `json:"round_number" db:"round_number"`
	Name               string    `json:"name" db:"name"`
	SubmissionDeadline time.Time `json:"submission_deadline" db:"submission_deadline"`
	IsLocked           bool      `json:"is_locked" db:"is_locked"`
	IsProcessed        bool      `json:"is_processed" db:"is_processed"`
	PPMData            *PPMData  `json:"ppm_data,omitempty" db:"ppm_data"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// DeadlinePassed reports whether submissions are closed by time alone.
func (r *Race) DeadlinePassed(now time.Time) bool {
	return now.After(r.SubmissionDeadline)
}

// PPMData фиксирует результат переоценки стоимости после этапа.
type PPMData struct {
	PPM              float64        `json:"ppm"`
	VenuePoints      float64        `json:"venue_points"`
	TotalDriverValue float64        `json:"total_driver_value"`
	Updates          []DriverUpdate `json:"updates"`
	ProcessedAt      time.Time      `json:"processed_at"`
}

// DriverUpdate is one driver's row in a settlement: what the venue's point
// pool implied the driver should score, what they actually scored, and the
// value move that followed.
type DriverUpdate struct {
	DriverID       int     `json:"driver_id"`
	DriverName     string  `json:"driver_name"`
	PointsGained   float64 `json:"points_gained"`
	ExpectedPoints float64 `json:"expected_points"`
	Change         float64 `json:"change"`
	OldValue       float64 `json:"old_value"`
	NewValue       float64 `json:"new_value"`
}

// RaceResult is one (driver, points) pair from the results sheet.
type RaceResult struct {
	DriverID     int     `json:"driver_id"`
	PointsGained float64 `json:"points_gained"`
}
