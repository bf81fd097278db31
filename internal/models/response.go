package models

import "time"

// PatientInfo is the contact block echoed back on ticket responses.
type PatientInfo struct {
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	NationalID  string `json:"national_id,omitempty"`
}

// TicketResponse is the user-facing view of a ticket: the stored record
// plus fields derived from the ledger at read time.
type TicketResponse struct {
	TicketCode           string      `json:"ticket_code"`
	TicketNumber         int         `json:"ticket_number"`
	QueueType            QueueType   `json:"queue_type"`
	VisitDate            string      `json:"visit_date"`
	TicketStatus         string      `json:"ticket_status"`
	CurrentNumber        int         `json:"current_number"`
	WaitingBefore        int         `json:"waiting_before"`
	EstimatedWaitMinutes int         `json:"estimated_wait_minutes"`
	IssuedAt             time.Time   `json:"issued_at"`
	CalledAt             *time.Time  `json:"called_at,omitempty"`
	PatientInfo          PatientInfo `json:"patient_info"`
}

// AdminAdvanceResponse reports the cursor move performed by an operator.
type AdminAdvanceResponse struct {
	QueueID          string    `json:"queue_id"`
	QueueType        QueueType `json:"queue_type"`
	VisitDate        string    `json:"visit_date"`
	PreviousNumber   int       `json:"previous_number"`
	CurrentNumber    int       `json:"current_number"`
	LastIssuedNumber int       `json:"last_issued_number"`
	UpdatedAt        time.Time `json:"updated_at"`
}
