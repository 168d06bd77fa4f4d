package models

import "time"

// MaxRosterSize — верхний предел количества гонщиков в составе.
const MaxRosterSize = 6

// Roster — выбор гонщиков одного менеджера на один этап.
//
// At most one roster exists per (manager, race) pair; the storage layer
// enforces it with a unique constraint.
type Roster struct {
	ID           int       `json:"id" db:"id"`
	ManagerID    int       `json:"manager_id" db:"manager_id"`
	RaceID       int       `json:"race_id" db:"race_id"`
	DriverIDs    []int     `json:"driver_ids" db:"driver_ids"`
	BudgetUsed   float64   `json:"budget_used" db:"budget_used"`
	PointsEarned float64   `json:"points_earned" db:"points_earned"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Manager *Manager `json:"manager,omitempty" db:"-"`
	Drivers []Driver `json:"drivers,omitempty" db:"-"`
}
