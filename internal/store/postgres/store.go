package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"patientportal/queue-service/internal/audit"
	"patientportal/queue-service/internal/models"
	"patientportal/queue-service/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements store.Store on Postgres. Ticket numbers flow through the
// upsert-increment in EnsureAndIncrementIssued; every other write is either
// an unconditional upsert or a partial update, so no operation here needs a
// compare-and-swap retry loop.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) EnsureAndIncrementIssued(ctx context.Context, visitDate string, queueType models.QueueType, defaults store.LedgerDefaults) (int, error) {
	createdAt := defaults.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var issued int
	row := s.pool.QueryRow(ctx, `
		INSERT INTO queue_ledgers (
			visit_date, queue_type, last_issued_number, current_number,
			avg_service_minutes, queue_status, created_at, updated_at
		) VALUES ($1, $2, 1, 0, $3, $4, $5, $5)
		ON CONFLICT (visit_date, queue_type)
		DO UPDATE SET last_issued_number = queue_ledgers.last_issued_number + 1,
			updated_at = $5
		RETURNING last_issued_number
	`, visitDate, queueType, defaults.AvgServiceMinutes, models.QueueStatusOpen, createdAt)
	if err := row.Scan(&issued); err != nil {
		return 0, err
	}
	return issued, nil
}

func (s *Store) GetLedger(ctx context.Context, visitDate string, queueType models.QueueType) (models.QueueLedger, error) {
	var ledger models.QueueLedger
	var updatedBy string
	row := s.pool.QueryRow(ctx, `
		SELECT visit_date, queue_type, last_issued_number, current_number,
			avg_service_minutes, queue_status, created_at, updated_at, updated_by
		FROM queue_ledgers
		WHERE visit_date = $1 AND queue_type = $2
	`, visitDate, queueType)
	if err := row.Scan(&ledger.VisitDate, &ledger.QueueType, &ledger.LastIssuedNumber, &ledger.CurrentNumber,
		&ledger.AvgServiceMinutes, &ledger.QueueStatus, &ledger.CreatedAt, &ledger.UpdatedAt, &updatedBy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueLedger{}, store.ErrLedgerNotFound
		}
		return models.QueueLedger{}, err
	}
	ledger.QueueID = models.BuildQueueID(ledger.VisitDate, ledger.QueueType)
	ledger.UpdatedBy = updatedBy
	return ledger, nil
}

func (s *Store) AdvanceCurrent(ctx context.Context, input store.AdvanceCurrentInput) error {
	updatedAt := input.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		UPDATE queue_ledgers
		SET current_number = $3, updated_at = $4, updated_by = $5
		WHERE visit_date = $1 AND queue_type = $2
	`
	args := []any{input.VisitDate, input.QueueType, input.CurrentNumber, updatedAt, input.UpdatedBy}
	if input.AvgServiceMinutes != nil {
		query = `
			UPDATE queue_ledgers
			SET current_number = $3, updated_at = $4, updated_by = $5, avg_service_minutes = $6
			WHERE visit_date = $1 AND queue_type = $2
		`
		args = append(args, *input.AvgServiceMinutes)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrLedgerNotFound
	}
	return nil
}

func (s *Store) PutTicket(ctx context.Context, ticket models.Ticket) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tickets (
			visit_date, queue_type, ticket_number, ticket_code, status, issued_at,
			called_at, completed_at, missed_at, cancelled_at,
			user_id, patient_name, patient_phone, national_id,
			reissue_count, reissued_from, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (visit_date, queue_type, ticket_number)
		DO UPDATE SET status = EXCLUDED.status,
			called_at = EXCLUDED.called_at,
			completed_at = EXCLUDED.completed_at,
			missed_at = EXCLUDED.missed_at,
			cancelled_at = EXCLUDED.cancelled_at,
			reissue_count = EXCLUDED.reissue_count,
			reissued_from = EXCLUDED.reissued_from,
			notes = EXCLUDED.notes
	`, ticket.VisitDate, ticket.QueueType, ticket.TicketNumber, ticket.TicketCode, ticket.Status, ticket.IssuedAt,
		ticket.CalledAt, ticket.CompletedAt, ticket.MissedAt, ticket.CancelledAt,
		ticket.UserID, ticket.PatientName, ticket.PatientPhone, nullIfEmpty(ticket.NationalID),
		ticket.ReissueCount, nullIfEmpty(ticket.ReissuedFrom), nullIfEmpty(ticket.Notes))
	return err
}

const ticketColumns = `
	visit_date, queue_type, ticket_number, ticket_code, status, issued_at,
	called_at, completed_at, missed_at, cancelled_at,
	user_id, patient_name, patient_phone, national_id,
	reissue_count, reissued_from, notes`

func (s *Store) GetTicketByNumber(ctx context.Context, visitDate string, queueType models.QueueType, ticketNumber int) (models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE visit_date = $1 AND queue_type = $2 AND ticket_number = $3
	`, visitDate, queueType, ticketNumber)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) QueryTicketRange(ctx context.Context, visitDate string, queueType models.QueueType, startNumber, endNumber int) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE visit_date = $1 AND queue_type = $2
			AND ticket_number BETWEEN $3 AND $4
		ORDER BY ticket_number ASC
	`, visitDate, queueType, startNumber, endNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (s *Store) QueryUserTickets(ctx context.Context, userID, visitDate string) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE user_id = $1 AND visit_date = $2
		ORDER BY ticket_number DESC
	`, userID, visitDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (s *Store) UpdateTicketStatus(ctx context.Context, visitDate string, queueType models.QueueType, ticketNumber int, newStatus string, at time.Time) error {
	query := `UPDATE tickets SET status = $4`
	switch newStatus {
	case models.StatusCalling:
		query += `, called_at = $5`
	case models.StatusDone:
		query += `, completed_at = $5`
	case models.StatusMissed:
		query += `, missed_at = $5`
	case models.StatusCancelled:
		query += `, cancelled_at = $5`
	}
	query += ` WHERE visit_date = $1 AND queue_type = $2 AND ticket_number = $3`

	args := []any{visitDate, queueType, ticketNumber, newStatus}
	switch newStatus {
	case models.StatusCalling, models.StatusDone, models.StatusMissed, models.StatusCancelled:
		args = append(args, at)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrTicketNotFound
	}
	return nil
}

func (s *Store) UpsertPatient(ctx context.Context, patient models.Patient) error {
	updatedAt := patient.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO patients (user_id, full_name, phone_number, national_id, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id)
		DO UPDATE SET full_name = EXCLUDED.full_name,
			phone_number = EXCLUDED.phone_number,
			national_id = EXCLUDED.national_id,
			updated_at = EXCLUDED.updated_at
	`, patient.UserID, patient.FullName, patient.PhoneNumber, nullIfEmpty(patient.NationalID), updatedAt)
	return err
}

// InsertAuditEntry makes Store usable as a durable audit sink.
func (s *Store) InsertAuditEntry(ctx context.Context, entry audit.Entry) error {
	var details []byte
	if entry.Details != nil {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		details = encoded
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (audit_id, action, actor_id, queue_id, ticket_number, details_json, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (audit_id) DO NOTHING
	`, entry.AuditID, entry.Action, entry.ActorID, entry.QueueID, entry.TicketNumber, details, entry.Timestamp, entry.PrevHash, entry.Hash)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (models.Ticket, error) {
	var ticket models.Ticket
	var calledAt, completedAt, missedAt, cancelledAt sql.NullTime
	var nationalID, reissuedFrom, notes sql.NullString
	if err := row.Scan(&ticket.VisitDate, &ticket.QueueType, &ticket.TicketNumber, &ticket.TicketCode, &ticket.Status, &ticket.IssuedAt,
		&calledAt, &completedAt, &missedAt, &cancelledAt,
		&ticket.UserID, &ticket.PatientName, &ticket.PatientPhone, &nationalID,
		&ticket.ReissueCount, &reissuedFrom, &notes); err != nil {
		return models.Ticket{}, err
	}
	ticket.QueueID = models.BuildQueueID(ticket.VisitDate, ticket.QueueType)
	ticket.CalledAt = nullTimePtr(calledAt)
	ticket.CompletedAt = nullTimePtr(completedAt)
	ticket.MissedAt = nullTimePtr(missedAt)
	ticket.CancelledAt = nullTimePtr(cancelledAt)
	ticket.NationalID = nationalID.String
	ticket.ReissuedFrom = reissuedFrom.String
	ticket.Notes = notes.String
	return ticket, nil
}

func scanTickets(rows pgx.Rows) ([]models.Ticket, error) {
	var tickets []models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
