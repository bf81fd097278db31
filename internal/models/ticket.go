package models

import (
	"fmt"
	"time"
)

// Ticket is one visitor's claim on a position in a queue. Identified by
// (QueueID, TicketNumber); TicketCode is the human-readable form printed
// on the stub, e.g. "BHYT-007".
type Ticket struct {
	QueueID      string     `json:"queue_id"`
	TicketNumber int        `json:"ticket_number"`
	TicketCode   string     `json:"ticket_code"`
	VisitDate    string     `json:"visit_date"`
	QueueType    QueueType  `json:"queue_type"`
	Status       string     `json:"status"`
	IssuedAt     time.Time  `json:"issued_at"`
	CalledAt     *time.Time `json:"called_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	MissedAt     *time.Time `json:"missed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	UserID       string     `json:"user_id"`
	PatientName  string     `json:"patient_name"`
	PatientPhone string     `json:"patient_phone"`
	NationalID   string     `json:"national_id,omitempty"`
	ReissueCount int        `json:"reissue_count"`
	ReissuedFrom string     `json:"reissued_from_ticket_code,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

const (
	StatusWaiting   = "WAITING"
	StatusCalling   = "CALLING"
	StatusDone      = "DONE"
	StatusCancelled = "CANCELLED"
	StatusMissed    = "MISSED"
)

// Active reports whether the ticket still holds a live place in the queue.
func (t Ticket) Active() bool {
	return t.Status == StatusWaiting || t.Status == StatusCalling
}

// QueueType is the walk-in lane: BHYT (insured) or DV (self-pay).
type QueueType string

const (
	QueueTypeBHYT QueueType = "BHYT"
	QueueTypeDV   QueueType = "DV"
)

func (q QueueType) Valid() bool {
	return q == QueueTypeBHYT || q == QueueTypeDV
}

const ticketNumberPad = 3

// FormatTicketCode renders the printable code, zero-padded to three digits.
func FormatTicketCode(queueType QueueType, ticketNumber int) string {
	return fmt.Sprintf("%s-%0*d", queueType, ticketNumberPad, ticketNumber)
}

// BuildQueueID builds the composite ledger key for a visit date and lane.
func BuildQueueID(visitDate string, queueType QueueType) string {
	return fmt.Sprintf("DATE#%s#TYPE#%s", visitDate, queueType)
}
