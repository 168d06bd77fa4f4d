package models

import "time"

type ManagerRole string

const (
	RoleAdmin ManagerRole = "admin"
	RoleUser  ManagerRole = "user"
)

// Manager — участник лиги, владеющий бюджетом и составами в рамках сезона.
type Manager struct {
	ID           int         `json:"id" db:"id"`
	Username     string      `json:"username" db:"username"`
	PasswordHash string      `json:"-" db:"password_hash"`
	Role         ManagerRole `json:"role" db:"role"`
	Budget       float64     `json:"budget" db:"budget"`
	Points       float64     `json:"points" db:"points"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}

func (m *Manager) IsAdmin() bool {
	return m.Role == RoleAdmin
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
