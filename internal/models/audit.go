package models

import "time"

// AuditLog records security-relevant events (logins, bookings, account changes).
type AuditLog struct {
	ID        string
	UserType  string
	UserID    int64
	Action    string
	Details   string
	CreatedAt time.Time
}
