package store

import (
	"context"
	"time"

	"patientportal/queue-service/internal/models"
)

// LedgerDefaults seed a ledger row created on first check-in for a
// (visit date, lane) pair.
type LedgerDefaults struct {
	AvgServiceMinutes float64
	CreatedAt         time.Time
}

// AdvanceCurrentInput carries an operator cursor move. AvgServiceMinutes
// is written only when non-nil (the smoothed estimate is recomputed only
// when the previous ticket had a call timestamp).
type AdvanceCurrentInput struct {
	VisitDate         string
	QueueType         models.QueueType
	CurrentNumber     int
	AvgServiceMinutes *float64
	UpdatedBy         string
	UpdatedAt         time.Time
}

// LedgerStore owns the per-queue counters. EnsureAndIncrementIssued is the
// one operation that must be atomic against concurrent callers: it creates
// the ledger row if absent (current=0, issued=0, default avg) and increments
// last_issued_number by exactly one, returning the post-increment value.
// Implementations must use the store's native upsert-increment primitive,
// never read-modify-write.
type LedgerStore interface {
	EnsureAndIncrementIssued(ctx context.Context, visitDate string, queueType models.QueueType, defaults LedgerDefaults) (int, error)
	GetLedger(ctx context.Context, visitDate string, queueType models.QueueType) (models.QueueLedger, error)
	AdvanceCurrent(ctx context.Context, input AdvanceCurrentInput) error
}

// TicketStore owns per-ticket records. PutTicket is an unconditional
// upsert; UpdateTicketStatus sets the status plus its matching timestamp
// column (called_at / completed_at / missed_at).
type TicketStore interface {
	PutTicket(ctx context.Context, ticket models.Ticket) error
	GetTicketByNumber(ctx context.Context, visitDate string, queueType models.QueueType, ticketNumber int) (models.Ticket, error)
	QueryTicketRange(ctx context.Context, visitDate string, queueType models.QueueType, startNumber, endNumber int) ([]models.Ticket, error)
	QueryUserTickets(ctx context.Context, userID, visitDate string) ([]models.Ticket, error)
	UpdateTicketStatus(ctx context.Context, visitDate string, queueType models.QueueType, ticketNumber int, newStatus string, at time.Time) error
}

// PatientStore keeps the last-write-wins contact snapshot.
type PatientStore interface {
	UpsertPatient(ctx context.Context, patient models.Patient) error
}

// Store is the full persistence surface the queue operations depend on.
type Store interface {
	LedgerStore
	TicketStore
	PatientStore
}
