// Package queue implements the walk-in queue workflows: check-in, status
// lookup, ticket reissue, and the operator advance. All shared state lives
// in the store; safety under concurrent requests rests on the ledger's
// atomic issuance increment and on lazily corrected reads, never on locks.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"patientportal/queue-service/internal/apperr"
	"patientportal/queue-service/internal/audit"
	"patientportal/queue-service/internal/models"
	"patientportal/queue-service/internal/store"
)

type CheckInInput struct {
	FullName    string
	PhoneNumber string
	NationalID  string
	QueueType   models.QueueType
	VisitDate   string
}

type StatusQueryInput struct {
	QueueType models.QueueType
	VisitDate string
}

type ReissueTicketInput struct {
	QueueType models.QueueType
	VisitDate string
}

type AdminAdvanceInput struct {
	QueueType models.QueueType
	VisitDate string
	Step      int
}

type Options struct {
	Location                 *time.Location
	QueueCloseHour           int
	DefaultAvgServiceMinutes float64
	MaxReissueCount          int
	ReissueProximity         int
	MaxAdvanceStep           int
	Now                      func() time.Time
}

type Service struct {
	store store.Store
	audit audit.Sink
	log   *slog.Logger

	loc              *time.Location
	closeHour        int
	defaultAvg       float64
	maxReissue       int
	reissueProximity int
	maxStep          int
	now              func() time.Time
}

func NewService(st store.Store, auditSink audit.Sink, log *slog.Logger, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	closeHour := opts.QueueCloseHour
	if closeHour <= 0 {
		closeHour = 24
	}
	defaultAvg := opts.DefaultAvgServiceMinutes
	if defaultAvg <= 0 {
		defaultAvg = 5
	}
	maxReissue := opts.MaxReissueCount
	if maxReissue <= 0 {
		maxReissue = 3
	}
	reissueProximity := opts.ReissueProximity
	if reissueProximity <= 0 {
		reissueProximity = 3
	}
	maxStep := opts.MaxAdvanceStep
	if maxStep <= 0 {
		maxStep = 10
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:            st,
		audit:            auditSink,
		log:              log,
		loc:              loc,
		closeHour:        closeHour,
		defaultAvg:       defaultAvg,
		maxReissue:       maxReissue,
		reissueProximity: reissueProximity,
		maxStep:          maxStep,
		now:              now,
	}
}

// today is the civil date at the configured location, from wall-clock
// parts. Using UTC here would hand out tomorrow's tickets late in the
// evening for any timezone east of Greenwich.
func (s *Service) today() string {
	return s.now().In(s.loc).Format("2006-01-02")
}

func (s *Service) queueOpen() bool {
	return s.now().In(s.loc).Hour() < s.closeHour
}

// CheckIn issues the next ticket number for the requested lane, or returns
// the caller's existing active ticket unchanged (idempotent re-check-in).
func (s *Service) CheckIn(ctx context.Context, userID string, input CheckInInput) (models.TicketResponse, error) {
	visitDate := input.VisitDate
	if visitDate == "" {
		visitDate = s.today()
	}
	now := s.now().UTC()
	queueID := models.BuildQueueID(visitDate, input.QueueType)

	s.log.InfoContext(ctx, "check-in requested", "user_id", userID, "queue_type", input.QueueType, "visit_date", visitDate)

	if visitDate == s.today() && !s.queueOpen() {
		return models.TicketResponse{}, apperr.Fail(apperr.CodeQueueClosedForToday, http.StatusBadRequest, map[string]any{
			"visit_date": visitDate,
			"queue_type": input.QueueType,
		})
	}

	existing, err := s.store.QueryUserTickets(ctx, userID, visitDate)
	if err != nil {
		return models.TicketResponse{}, apperr.Internal(err)
	}
	for _, ticket := range existing {
		if ticket.QueueType == input.QueueType && ticket.Active() {
			s.log.InfoContext(ctx, "active ticket already issued", "user_id", userID, "ticket_code", ticket.TicketCode)
			return s.buildTicketResponse(ctx, ticket)
		}
	}

	patient := models.Patient{
		UserID:      userID,
		FullName:    input.FullName,
		PhoneNumber: input.PhoneNumber,
		NationalID:  input.NationalID,
		UpdatedAt:   now,
	}
	if err := s.store.UpsertPatient(ctx, patient); err != nil {
		return models.TicketResponse{}, apperr.Internal(err)
	}

	ticketNumber, err := s.store.EnsureAndIncrementIssued(ctx, visitDate, input.QueueType, store.LedgerDefaults{
		AvgServiceMinutes: s.defaultAvg,
		CreatedAt:         now,
	})
	if err != nil {
		return models.TicketResponse{}, apperr.Internal(err)
	}

	ticket := models.Ticket{
		QueueID:      queueID,
		TicketNumber: ticketNumber,
		TicketCode:   models.FormatTicketCode(input.QueueType, ticketNumber),
		VisitDate:    visitDate,
		QueueType:    input.QueueType,
		Status:       models.StatusWaiting,
		IssuedAt:     now,
		UserID:       userID,
		PatientName:  input.FullName,
		PatientPhone: input.PhoneNumber,
		NationalID:   input.NationalID,
	}
	if err := s.store.PutTicket(ctx, ticket); err != nil {
		return models.TicketResponse{}, apperr.Internal(err)
	}

	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionCheckIn,
		ActorID:      userID,
		QueueID:      queueID,
		TicketNumber: ticketNumber,
		Details: map[string]any{
			"ticket_code": ticket.TicketCode,
			"queue_type":  input.QueueType,
		},
	})

	return s.buildTicketResponse(ctx, ticket)
}

// GetStatus resolves the caller's active ticket for the lane and returns
// its computed status.
func (s *Service) GetStatus(ctx context.Context, userID string, input StatusQueryInput) (models.TicketResponse, error) {
	visitDate := input.VisitDate
	if visitDate == "" {
		visitDate = s.today()
	}

	tickets, err := s.store.QueryUserTickets(ctx, userID, visitDate)
	if err != nil {
		return models.TicketResponse{}, apperr.Internal(err)
	}
	if len(tickets) == 0 {
		return models.TicketResponse{}, apperr.Fail(apperr.CodeNoTicketFound, http.StatusNotFound, map[string]any{
			"visit_date": visitDate,
			"queue_type": input.QueueType,
		})
	}

	for _, ticket := range tickets {
		if ticket.QueueType == input.QueueType && ticket.Active() {
			return s.buildTicketResponse(ctx, ticket)
		}
	}

	return models.TicketResponse{}, apperr.Fail(apperr.CodeNoActiveTicketFound, http.StatusNotFound, map[string]any{
		"visit_date":        visitDate,
		"queue_type":        input.QueueType,
		"existing_statuses": ticketStatuses(tickets),
	})
}

// ReissueTicket cancels the caller's waiting ticket and issues a fresh,
// later number on the same ledger, carrying the patient snapshot over.
func (s *Service) ReissueTicket(ctx context.Context, userID string, input ReissueTicketInput) (models.TicketResponse, error) {
	visitDate := input.VisitDate
	if visitDate == "" {
		visitDate = s.today()
	}
	now := s.now().UTC()
	queueID := models.BuildQueueID(visitDate, input.QueueType)

	if visitDate == s.today() && !s.queueOpen() {
		return models.TicketResponse{}, apperr.Fail(apperr.CodeQueueClosedForToday, http.StatusBadRequest, map[string]any{
			"visit_date": visitDate,
			"queue_type": input.QueueType,
		})
	}

	tickets, err := s.store.QueryUserTickets(ctx, userID, visitDate)
	if err != nil {
		return models.TicketResponse{}, apperr.Internal(err)
	}
	if len(tickets) == 0 {
		return models.TicketResponse{}, apperr.Fail(apperr.CodeNoTicketFound, http.StatusNotFound, map[string]any{
			"visit_date": visitDate,
			"queue_type": input.QueueType,
		})
	}

	var oldTicket *models.Ticket
	for i := range tickets {
		if tickets[i].QueueType == input.QueueType && tickets[i].Status == models.StatusWaiting {
			oldTicket = &tickets[i]
			break
		}
	}
	if oldTicket == nil {
		return models.TicketResponse{}, apperr.Fail(apperr.CodeNoWaitingTicketToReissue, http.StatusBadRequest, map[string]any{
			"visit_date": visitDate,
			"queue_type": input.QueueType,
			"found":      ticketStatuses(tickets),
		})
	}

	if oldTicket.ReissueCount >= s.maxReissue {
		return models.TicketResponse{}, apperr.Fail(apperr.CodeMaxReissueLimitReached, http.StatusBadRequest, map[string]any{
			"max":           s.maxReissue,
			"reissue_count": oldTicket.ReissueCount,
		})
	}

	ledger, err := s.store.GetLedger(ctx, visitDate, input.QueueType)
	if err != nil {
		if errors.Is(err, store.ErrLedgerNotFound) {
			return models.TicketResponse{}, apperr.Fail(apperr.CodeQueueNotFound, http.StatusNotFound, map[string]any{
				"queue_id":   queueID,
				"queue_type": input.QueueType,
				"visit_date": visitDate,
			})
		}
		return models.TicketResponse{}, apperr.Internal(err)
	}

	if oldTicket.TicketNumber <= ledger.CurrentNumber+s.reissueProximity {
		return models.TicketResponse{}, apperr.Fail(apperr.CodeCannotReissueNearTurn, http.StatusBadRequest, map[string]any{
			"old_ticket_number": oldTicket.TicketNumber,
			"current_number":    ledger.CurrentNumber,
			"threshold":         s.reissueProximity,
		})
	}

	s.log.InfoContext(ctx, "cancelling ticket for reissue", "ticket_code", oldTicket.TicketCode, "reissue_count", oldTicket.ReissueCount)

	cancelled := *oldTicket
	cancelled.Status = models.StatusCancelled
	cancelled.CancelledAt = &now
	cancelled.Notes = fmt.Sprintf("Reissued by user (attempt %d)", oldTicket.ReissueCount+1)
	if err := s.store.PutTicket(ctx, cancelled); err != nil {
		return models.TicketResponse{}, apperr.Internal(err)
	}

	newNumber, err := s.store.EnsureAndIncrementIssued(ctx, visitDate, input.QueueType, store.LedgerDefaults{
		AvgServiceMinutes: s.defaultAvg,
		CreatedAt:         now,
	})
	if err != nil {
		return models.TicketResponse{}, apperr.Internal(err)
	}

	newTicket := models.Ticket{
		QueueID:      queueID,
		TicketNumber: newNumber,
		TicketCode:   models.FormatTicketCode(input.QueueType, newNumber),
		VisitDate:    visitDate,
		QueueType:    input.QueueType,
		Status:       models.StatusWaiting,
		IssuedAt:     now,
		UserID:       userID,
		PatientName:  oldTicket.PatientName,
		PatientPhone: oldTicket.PatientPhone,
		NationalID:   oldTicket.NationalID,
		ReissueCount: oldTicket.ReissueCount + 1,
		ReissuedFrom: oldTicket.TicketCode,
	}
	if err := s.store.PutTicket(ctx, newTicket); err != nil {
		return models.TicketResponse{}, apperr.Internal(err)
	}

	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionReissue,
		ActorID:      userID,
		QueueID:      queueID,
		TicketNumber: newNumber,
		Details: map[string]any{
			"old_ticket_code": oldTicket.TicketCode,
			"new_ticket_code": newTicket.TicketCode,
			"reissue_count":   newTicket.ReissueCount,
		},
	})

	return s.buildTicketResponse(ctx, newTicket)
}

// AdminAdvanceQueue moves the serving cursor forward by step positions and
// derives DONE/MISSED/CALLING transitions for the tickets it passes. The
// ledger write and the per-ticket updates are independent writes; a crash
// in between is healed by the lazy recomputation on the next read of each
// affected ticket.
func (s *Service) AdminAdvanceQueue(ctx context.Context, adminUserID string, input AdminAdvanceInput) (models.AdminAdvanceResponse, error) {
	visitDate := input.VisitDate
	if visitDate == "" {
		visitDate = s.today()
	}
	step := input.Step

	if step <= 0 {
		return models.AdminAdvanceResponse{}, apperr.Fail(apperr.CodeInvalidStep, http.StatusBadRequest, map[string]any{"step": step})
	}
	if step > s.maxStep {
		return models.AdminAdvanceResponse{}, apperr.Fail(apperr.CodeStepTooLarge, http.StatusBadRequest, map[string]any{"step": step, "max": s.maxStep})
	}

	queueID := models.BuildQueueID(visitDate, input.QueueType)
	now := s.now().UTC()

	ledger, err := s.store.GetLedger(ctx, visitDate, input.QueueType)
	if err != nil {
		if errors.Is(err, store.ErrLedgerNotFound) {
			return models.AdminAdvanceResponse{}, apperr.Fail(apperr.CodeQueueNotFound, http.StatusNotFound, map[string]any{
				"queue_id":   queueID,
				"queue_type": input.QueueType,
				"visit_date": visitDate,
			})
		}
		return models.AdminAdvanceResponse{}, apperr.Internal(err)
	}

	previousNumber := ledger.CurrentNumber
	lastIssued := ledger.LastIssuedNumber

	if lastIssued == 0 {
		return models.AdminAdvanceResponse{}, apperr.Fail(apperr.CodeNoTicketsIssuedYet, http.StatusBadRequest, map[string]any{"queue_id": queueID})
	}
	if previousNumber >= lastIssued {
		return models.AdminAdvanceResponse{}, apperr.Fail(apperr.CodeQueueAlreadyFinished, http.StatusBadRequest, map[string]any{
			"current_number": previousNumber,
			"last_issued":    lastIssued,
		})
	}

	newCurrentNumber := previousNumber + step
	if newCurrentNumber > lastIssued {
		newCurrentNumber = lastIssued
	}

	s.log.InfoContext(ctx, "advancing queue", "queue_id", queueID, "from", previousNumber, "to", newCurrentNumber, "last_issued", lastIssued)

	// Fold the previous ticket's actual service time into the rolling
	// estimate, but only when that ticket was actually called.
	var newAvg *float64
	if previousNumber > 0 {
		prevTicket, err := s.store.GetTicketByNumber(ctx, visitDate, input.QueueType, previousNumber)
		if err == nil && prevTicket.CalledAt != nil {
			actual := math.Round(now.Sub(*prevTicket.CalledAt).Minutes())
			if actual > 0 {
				smoothed := math.Round(ledger.AvgServiceMinutes*0.7 + actual*0.3)
				newAvg = &smoothed
				s.log.InfoContext(ctx, "updated avg service time", "old", ledger.AvgServiceMinutes, "new", smoothed)
			}
		} else if err != nil && !errors.Is(err, store.ErrTicketNotFound) {
			return models.AdminAdvanceResponse{}, apperr.Internal(err)
		}
	}

	if err := s.store.AdvanceCurrent(ctx, store.AdvanceCurrentInput{
		VisitDate:         visitDate,
		QueueType:         input.QueueType,
		CurrentNumber:     newCurrentNumber,
		AvgServiceMinutes: newAvg,
		UpdatedBy:         adminUserID,
		UpdatedAt:         now,
	}); err != nil {
		return models.AdminAdvanceResponse{}, apperr.Internal(err)
	}

	if previousNumber > 0 && previousNumber <= lastIssued {
		s.markTicket(ctx, visitDate, input.QueueType, previousNumber, models.StatusDone, now)
	}

	// Tickets skipped over that are still WAITING become MISSED. Tickets
	// already in a terminal state in the gap are left untouched.
	if newCurrentNumber > previousNumber+1 {
		skipped, err := s.store.QueryTicketRange(ctx, visitDate, input.QueueType, previousNumber+1, newCurrentNumber-1)
		if err != nil {
			return models.AdminAdvanceResponse{}, apperr.Internal(err)
		}
		for _, ticket := range skipped {
			if ticket.Status == models.StatusWaiting {
				s.markTicket(ctx, visitDate, input.QueueType, ticket.TicketNumber, models.StatusMissed, now)
			}
		}
	}

	if newCurrentNumber > 0 && newCurrentNumber <= lastIssued {
		s.markTicket(ctx, visitDate, input.QueueType, newCurrentNumber, models.StatusCalling, now)
	}

	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionAdvanceQueue,
		ActorID:      adminUserID,
		QueueID:      queueID,
		TicketNumber: newCurrentNumber,
		Details: map[string]any{
			"previous_number":    previousNumber,
			"new_current_number": newCurrentNumber,
			"step":               step,
			"avg_service_time":   newAvg,
		},
	})

	return models.AdminAdvanceResponse{
		QueueID:          queueID,
		QueueType:        input.QueueType,
		VisitDate:        visitDate,
		PreviousNumber:   previousNumber,
		CurrentNumber:    newCurrentNumber,
		LastIssuedNumber: lastIssued,
		UpdatedAt:        now,
	}, nil
}

// markTicket applies a derived transition. A missing record is tolerated:
// the number may be reserved on the ledger while the ticket row is still
// in flight, and the lazy recomputation corrects it on the next read.
func (s *Service) markTicket(ctx context.Context, visitDate string, queueType models.QueueType, ticketNumber int, status string, at time.Time) {
	err := s.store.UpdateTicketStatus(ctx, visitDate, queueType, ticketNumber, status, at)
	if err != nil && !errors.Is(err, store.ErrTicketNotFound) {
		s.log.ErrorContext(ctx, "ticket status update failed", "ticket_number", ticketNumber, "status", status, "error", err)
	}
}

// buildTicketResponse computes the user-facing view of a ticket: logical
// status derived from the ledger cursor, the count of waiting tickets
// ahead, and the wait estimate. A stored status that disagrees with the
// cursor is corrected in place (lazy correction); the correction write is
// best effort.
func (s *Service) buildTicketResponse(ctx context.Context, ticket models.Ticket) (models.TicketResponse, error) {
	ledger, err := s.store.GetLedger(ctx, ticket.VisitDate, ticket.QueueType)
	if err != nil {
		return models.TicketResponse{}, apperr.Internal(err)
	}

	logicalStatus := ticket.Status
	if ticket.Active() {
		switch {
		case ledger.CurrentNumber == ticket.TicketNumber:
			logicalStatus = models.StatusCalling
		case ledger.CurrentNumber > ticket.TicketNumber:
			logicalStatus = models.StatusMissed
		default:
			logicalStatus = models.StatusWaiting
		}
	}

	if logicalStatus != ticket.Status && store.ValidTransition(ticket.Status, logicalStatus) {
		if err := s.store.UpdateTicketStatus(ctx, ticket.VisitDate, ticket.QueueType, ticket.TicketNumber, logicalStatus, s.now().UTC()); err != nil {
			s.log.WarnContext(ctx, "lazy status correction failed", "ticket_code", ticket.TicketCode, "error", err)
		}
	}

	waitingBefore := 0
	estimatedWaitMinutes := 0
	if logicalStatus == models.StatusWaiting {
		start := ledger.CurrentNumber + 1
		end := ticket.TicketNumber - 1
		if start <= end {
			between, err := s.store.QueryTicketRange(ctx, ticket.VisitDate, ticket.QueueType, start, end)
			if err != nil {
				return models.TicketResponse{}, apperr.Internal(err)
			}
			for _, t := range between {
				if t.Status == models.StatusWaiting {
					waitingBefore++
				}
			}
		}
		estimatedWaitMinutes = int(math.Round(float64(waitingBefore+1) * ledger.AvgServiceMinutes))
	}

	return models.TicketResponse{
		TicketCode:           ticket.TicketCode,
		TicketNumber:         ticket.TicketNumber,
		QueueType:            ticket.QueueType,
		VisitDate:            ticket.VisitDate,
		TicketStatus:         logicalStatus,
		CurrentNumber:        ledger.CurrentNumber,
		WaitingBefore:        waitingBefore,
		EstimatedWaitMinutes: estimatedWaitMinutes,
		IssuedAt:             ticket.IssuedAt,
		CalledAt:             ticket.CalledAt,
		PatientInfo: models.PatientInfo{
			FullName:    ticket.PatientName,
			PhoneNumber: ticket.PatientPhone,
			NationalID:  ticket.NationalID,
		},
	}, nil
}

func ticketStatuses(tickets []models.Ticket) []map[string]any {
	statuses := make([]map[string]any, 0, len(tickets))
	for _, ticket := range tickets {
		statuses = append(statuses, map[string]any{
			"code":   ticket.TicketCode,
			"status": ticket.Status,
		})
	}
	return statuses
}
