package models

import "time"

// QueueLedger holds the per (visit date, lane) counters. LastIssuedNumber
// only moves through the store's atomic increment; CurrentNumber never
// exceeds it.
type QueueLedger struct {
	QueueID           string    `json:"queue_id"`
	VisitDate         string    `json:"visit_date"`
	QueueType         QueueType `json:"queue_type"`
	LastIssuedNumber  int       `json:"last_issued_number"`
	CurrentNumber     int       `json:"current_number"`
	AvgServiceMinutes float64   `json:"avg_service_time_minutes"`
	QueueStatus       string    `json:"queue_status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	UpdatedBy         string    `json:"updated_by,omitempty"`
}

const QueueStatusOpen = "OPEN"

// Patient is the last-write-wins contact snapshot captured at check-in.
type Patient struct {
	UserID      string    `json:"user_id"`
	FullName    string    `json:"full_name"`
	PhoneNumber string    `json:"phone_number"`
	NationalID  string    `json:"national_id,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
