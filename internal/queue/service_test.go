package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"patientportal/queue-service/internal/apperr"
	"patientportal/queue-service/internal/audit"
	"patientportal/queue-service/internal/models"
	"patientportal/queue-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory store.Store. EnsureAndIncrementIssued holds the
// mutex across the whole create-or-increment, mirroring the atomicity the
// postgres upsert-increment provides.
type memStore struct {
	mu       sync.Mutex
	ledgers  map[string]*models.QueueLedger
	tickets  map[string]map[int]models.Ticket
	patients map[string]models.Patient
}

func newMemStore() *memStore {
	return &memStore{
		ledgers:  make(map[string]*models.QueueLedger),
		tickets:  make(map[string]map[int]models.Ticket),
		patients: make(map[string]models.Patient),
	}
}

func queueKey(visitDate string, queueType models.QueueType) string {
	return visitDate + "|" + string(queueType)
}

func (m *memStore) EnsureAndIncrementIssued(_ context.Context, visitDate string, queueType models.QueueType, defaults store.LedgerDefaults) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := queueKey(visitDate, queueType)
	ledger, ok := m.ledgers[key]
	if !ok {
		ledger = &models.QueueLedger{
			QueueID:           models.BuildQueueID(visitDate, queueType),
			VisitDate:         visitDate,
			QueueType:         queueType,
			AvgServiceMinutes: defaults.AvgServiceMinutes,
			QueueStatus:       models.QueueStatusOpen,
			CreatedAt:         defaults.CreatedAt,
		}
		m.ledgers[key] = ledger
	}
	ledger.LastIssuedNumber++
	return ledger.LastIssuedNumber, nil
}

func (m *memStore) GetLedger(_ context.Context, visitDate string, queueType models.QueueType) (models.QueueLedger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ledger, ok := m.ledgers[queueKey(visitDate, queueType)]
	if !ok {
		return models.QueueLedger{}, store.ErrLedgerNotFound
	}
	return *ledger, nil
}

func (m *memStore) AdvanceCurrent(_ context.Context, input store.AdvanceCurrentInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ledger, ok := m.ledgers[queueKey(input.VisitDate, input.QueueType)]
	if !ok {
		return store.ErrLedgerNotFound
	}
	ledger.CurrentNumber = input.CurrentNumber
	if input.AvgServiceMinutes != nil {
		ledger.AvgServiceMinutes = *input.AvgServiceMinutes
	}
	ledger.UpdatedAt = input.UpdatedAt
	ledger.UpdatedBy = input.UpdatedBy
	return nil
}

func (m *memStore) PutTicket(_ context.Context, ticket models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := queueKey(ticket.VisitDate, ticket.QueueType)
	if m.tickets[key] == nil {
		m.tickets[key] = make(map[int]models.Ticket)
	}
	m.tickets[key][ticket.TicketNumber] = ticket
	return nil
}

func (m *memStore) GetTicketByNumber(_ context.Context, visitDate string, queueType models.QueueType, ticketNumber int) (models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticket, ok := m.tickets[queueKey(visitDate, queueType)][ticketNumber]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return ticket, nil
}

func (m *memStore) QueryTicketRange(_ context.Context, visitDate string, queueType models.QueueType, startNumber, endNumber int) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tickets []models.Ticket
	for number := startNumber; number <= endNumber; number++ {
		if ticket, ok := m.tickets[queueKey(visitDate, queueType)][number]; ok {
			tickets = append(tickets, ticket)
		}
	}
	return tickets, nil
}

func (m *memStore) QueryUserTickets(_ context.Context, userID, visitDate string) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tickets []models.Ticket
	for _, byNumber := range m.tickets {
		for _, ticket := range byNumber {
			if ticket.UserID == userID && ticket.VisitDate == visitDate {
				tickets = append(tickets, ticket)
			}
		}
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].TicketNumber > tickets[j].TicketNumber })
	return tickets, nil
}

func (m *memStore) UpdateTicketStatus(_ context.Context, visitDate string, queueType models.QueueType, ticketNumber int, newStatus string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := queueKey(visitDate, queueType)
	ticket, ok := m.tickets[key][ticketNumber]
	if !ok {
		return store.ErrTicketNotFound
	}
	ticket.Status = newStatus
	switch newStatus {
	case models.StatusCalling:
		ticket.CalledAt = &at
	case models.StatusDone:
		ticket.CompletedAt = &at
	case models.StatusMissed:
		ticket.MissedAt = &at
	case models.StatusCancelled:
		ticket.CancelledAt = &at
	}
	m.tickets[key][ticketNumber] = ticket
	return nil
}

func (m *memStore) UpsertPatient(_ context.Context, patient models.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[patient.UserID] = patient
	return nil
}

func (m *memStore) ticket(t *testing.T, visitDate string, queueType models.QueueType, number int) models.Ticket {
	t.Helper()
	ticket, err := m.GetTicketByNumber(context.Background(), visitDate, queueType, number)
	require.NoError(t, err)
	return ticket
}

type recordingSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingSink) Record(_ context.Context, entry audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

const testDate = "2026-03-09"

var testNow = time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC)

func newTestService(st store.Store, sink audit.Sink) *Service {
	if sink == nil {
		sink = &recordingSink{}
	}
	return NewService(st, sink, nil, Options{
		Location: time.UTC,
		Now:      func() time.Time { return testNow },
	})
}

func checkInInput(queueType models.QueueType) CheckInInput {
	return CheckInInput{
		FullName:    "Nguyen Van A",
		PhoneNumber: "0901234567",
		NationalID:  "012345678901",
		QueueType:   queueType,
		VisitDate:   testDate,
	}
}

func errCode(t *testing.T, err error) apperr.Code {
	t.Helper()
	appErr := apperr.From(err)
	require.NotNil(t, appErr, "expected AppError, got %v", err)
	return appErr.Code
}

func TestCheckInIssuesSequentialTickets(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		resp, err := svc.CheckIn(ctx, fmt.Sprintf("user-%d", i), checkInInput(models.QueueTypeBHYT))
		require.NoError(t, err)
		assert.Equal(t, i, resp.TicketNumber)
		assert.Equal(t, fmt.Sprintf("BHYT-%03d", i), resp.TicketCode)
		assert.Equal(t, models.StatusWaiting, resp.TicketStatus)
	}

	// Each lane has its own ledger.
	resp, err := svc.CheckIn(ctx, "user-dv", checkInInput(models.QueueTypeDV))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TicketNumber)
	assert.Equal(t, "DV-001", resp.TicketCode)
}

func TestCheckInWaitEstimates(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	first, err := svc.CheckIn(ctx, "user-1", checkInInput(models.QueueTypeBHYT))
	require.NoError(t, err)
	assert.Equal(t, 0, first.WaitingBefore)
	assert.Equal(t, 5, first.EstimatedWaitMinutes)

	second, err := svc.CheckIn(ctx, "user-2", checkInInput(models.QueueTypeBHYT))
	require.NoError(t, err)
	assert.Equal(t, 1, second.WaitingBefore)
	assert.Equal(t, 10, second.EstimatedWaitMinutes)
}

func TestCheckInIdempotent(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	first, err := svc.CheckIn(ctx, "user-1", checkInInput(models.QueueTypeBHYT))
	require.NoError(t, err)

	second, err := svc.CheckIn(ctx, "user-1", checkInInput(models.QueueTypeBHYT))
	require.NoError(t, err)
	assert.Equal(t, first.TicketCode, second.TicketCode)
	assert.Equal(t, first.TicketNumber, second.TicketNumber)

	ledger, err := st.GetLedger(ctx, testDate, models.QueueTypeBHYT)
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.LastIssuedNumber, "duplicate check-in must not issue a number")
}

func TestCheckInConcurrentNumbersArePermutation(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	const n = 50
	numbers := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := svc.CheckIn(ctx, fmt.Sprintf("user-%d", i), checkInInput(models.QueueTypeBHYT))
			if err != nil {
				t.Errorf("check-in failed: %v", err)
				return
			}
			numbers <- resp.TicketNumber
		}(i)
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int]bool)
	for number := range numbers {
		assert.False(t, seen[number], "duplicate ticket number %d", number)
		seen[number] = true
	}
	require.Len(t, seen, n)
	for i := 1; i <= n; i++ {
		assert.True(t, seen[i], "gap at ticket number %d", i)
	}
}

func TestCheckInClosedQueue(t *testing.T) {
	st := newMemStore()
	sink := &recordingSink{}
	svc := NewService(st, sink, nil, Options{
		Location:       time.UTC,
		QueueCloseHour: 9,
		Now:            func() time.Time { return testNow }, // 09:30
	})

	_, err := svc.CheckIn(context.Background(), "user-1", checkInInput(models.QueueTypeBHYT))
	assert.Equal(t, apperr.CodeQueueClosedForToday, errCode(t, err))

	// A future visit date is not subject to today's closing hour.
	input := checkInInput(models.QueueTypeBHYT)
	input.VisitDate = "2026-03-10"
	_, err = svc.CheckIn(context.Background(), "user-1", input)
	assert.NoError(t, err)
}

func TestGetStatusFailures(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	_, err := svc.GetStatus(ctx, "user-1", StatusQueryInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate})
	assert.Equal(t, apperr.CodeNoTicketFound, errCode(t, err))

	resp, err := svc.CheckIn(ctx, "user-1", checkInInput(models.QueueTypeBHYT))
	require.NoError(t, err)

	// Complete the ticket and the lookup reports no active ticket, with
	// the existing codes in the details.
	require.NoError(t, st.UpdateTicketStatus(ctx, testDate, models.QueueTypeBHYT, resp.TicketNumber, models.StatusDone, testNow))
	_, err = svc.GetStatus(ctx, "user-1", StatusQueryInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate})
	appErr := apperr.From(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperr.CodeNoActiveTicketFound, appErr.Code)
	assert.NotEmpty(t, appErr.Details["existing_statuses"])
}

func TestGetStatusLazyCorrection(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	resp, err := svc.CheckIn(ctx, "user-1", checkInInput(models.QueueTypeBHYT))
	require.NoError(t, err)

	// Simulate a crash after the cursor moved past the ticket but before
	// its status was corrected.
	require.NoError(t, st.AdvanceCurrent(ctx, store.AdvanceCurrentInput{
		VisitDate:     testDate,
		QueueType:     models.QueueTypeBHYT,
		CurrentNumber: resp.TicketNumber + 1,
		UpdatedAt:     testNow,
	}))

	status, err := svc.GetStatus(ctx, "user-1", StatusQueryInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate})
	require.NoError(t, err)
	assert.Equal(t, models.StatusMissed, status.TicketStatus)

	// The correction was persisted, not just reported.
	stored := st.ticket(t, testDate, models.QueueTypeBHYT, resp.TicketNumber)
	assert.Equal(t, models.StatusMissed, stored.Status)
}

func TestWaitEstimateCountsOnlyWaitingTickets(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := svc.CheckIn(ctx, fmt.Sprintf("user-%d", i), checkInInput(models.QueueTypeBHYT))
		require.NoError(t, err)
	}
	require.NoError(t, st.AdvanceCurrent(ctx, store.AdvanceCurrentInput{
		VisitDate: testDate, QueueType: models.QueueTypeBHYT, CurrentNumber: 1, UpdatedAt: testNow,
	}))
	require.NoError(t, st.UpdateTicketStatus(ctx, testDate, models.QueueTypeBHYT, 2, models.StatusCancelled, testNow))
	require.NoError(t, st.UpdateTicketStatus(ctx, testDate, models.QueueTypeBHYT, 4, models.StatusMissed, testNow))

	status, err := svc.GetStatus(ctx, "user-5", StatusQueryInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate})
	require.NoError(t, err)
	// Only ticket 3 still waits between the cursor and ticket 5.
	assert.Equal(t, 1, status.WaitingBefore)
	assert.Equal(t, 10, status.EstimatedWaitMinutes)
}

func TestReissueTicket(t *testing.T) {
	st := newMemStore()
	sink := &recordingSink{}
	svc := newTestService(st, sink)
	ctx := context.Background()

	// Five tickets so user-5 is far enough from the cursor to reissue.
	for i := 1; i <= 5; i++ {
		_, err := svc.CheckIn(ctx, fmt.Sprintf("user-%d", i), checkInInput(models.QueueTypeBHYT))
		require.NoError(t, err)
	}

	resp, err := svc.ReissueTicket(ctx, "user-5", ReissueTicketInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate})
	require.NoError(t, err)
	assert.Equal(t, 6, resp.TicketNumber)
	assert.Equal(t, "BHYT-006", resp.TicketCode)
	assert.Equal(t, models.StatusWaiting, resp.TicketStatus)

	old := st.ticket(t, testDate, models.QueueTypeBHYT, 5)
	assert.Equal(t, models.StatusCancelled, old.Status)
	assert.NotNil(t, old.CancelledAt)
	assert.Contains(t, old.Notes, "attempt 1")

	created := st.ticket(t, testDate, models.QueueTypeBHYT, 6)
	assert.Equal(t, "BHYT-005", created.ReissuedFrom)
	assert.Equal(t, 1, created.ReissueCount)
	assert.Equal(t, "Nguyen Van A", created.PatientName)
}

func TestReissueNearTurnRejected(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	_, err := svc.CheckIn(ctx, "user-1", checkInInput(models.QueueTypeBHYT))
	require.NoError(t, err)

	// Ticket 1 with current 0 is within the proximity window (1 <= 0+3).
	_, err = svc.ReissueTicket(ctx, "user-1", ReissueTicketInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate})
	assert.Equal(t, apperr.CodeCannotReissueNearTurn, errCode(t, err))
}

func TestReissueMaxLimit(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := svc.CheckIn(ctx, fmt.Sprintf("user-%d", i), checkInInput(models.QueueTypeBHYT))
		require.NoError(t, err)
	}

	ticket := st.ticket(t, testDate, models.QueueTypeBHYT, 5)
	ticket.ReissueCount = 3
	require.NoError(t, st.PutTicket(ctx, ticket))

	_, err := svc.ReissueTicket(ctx, "user-5", ReissueTicketInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate})
	assert.Equal(t, apperr.CodeMaxReissueLimitReached, errCode(t, err))
}

func TestReissueRequiresWaitingTicket(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	_, err := svc.ReissueTicket(ctx, "user-1", ReissueTicketInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate})
	assert.Equal(t, apperr.CodeNoTicketFound, errCode(t, err))

	resp, err := svc.CheckIn(ctx, "user-1", checkInInput(models.QueueTypeBHYT))
	require.NoError(t, err)
	require.NoError(t, st.UpdateTicketStatus(ctx, testDate, models.QueueTypeBHYT, resp.TicketNumber, models.StatusCalling, testNow))

	_, err = svc.ReissueTicket(ctx, "user-1", ReissueTicketInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate})
	assert.Equal(t, apperr.CodeNoWaitingTicketToReissue, errCode(t, err))
}

func TestAdminAdvanceScenario(t *testing.T) {
	st := newMemStore()
	sink := &recordingSink{}
	svc := newTestService(st, sink)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := svc.CheckIn(ctx, fmt.Sprintf("user-%d", i), checkInInput(models.QueueTypeBHYT))
		require.NoError(t, err)
	}

	first, err := svc.AdminAdvanceQueue(ctx, "admin-1", AdminAdvanceInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate, Step: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, first.PreviousNumber)
	assert.Equal(t, 1, first.CurrentNumber)
	assert.Equal(t, 3, first.LastIssuedNumber)

	assert.Equal(t, models.StatusCalling, st.ticket(t, testDate, models.QueueTypeBHYT, 1).Status)
	assert.Equal(t, models.StatusWaiting, st.ticket(t, testDate, models.QueueTypeBHYT, 2).Status)
	assert.Equal(t, models.StatusWaiting, st.ticket(t, testDate, models.QueueTypeBHYT, 3).Status)

	second, err := svc.AdminAdvanceQueue(ctx, "admin-1", AdminAdvanceInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate, Step: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, second.PreviousNumber)
	assert.Equal(t, 3, second.CurrentNumber)

	assert.Equal(t, models.StatusDone, st.ticket(t, testDate, models.QueueTypeBHYT, 1).Status)
	assert.Equal(t, models.StatusMissed, st.ticket(t, testDate, models.QueueTypeBHYT, 2).Status)
	assert.Equal(t, models.StatusCalling, st.ticket(t, testDate, models.QueueTypeBHYT, 3).Status)

	// Cursor never exceeds the last issued number.
	ledger, err := st.GetLedger(ctx, testDate, models.QueueTypeBHYT)
	require.NoError(t, err)
	assert.LessOrEqual(t, ledger.CurrentNumber, ledger.LastIssuedNumber)
}

func TestAdminAdvanceClampsToLastIssued(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		_, err := svc.CheckIn(ctx, fmt.Sprintf("user-%d", i), checkInInput(models.QueueTypeBHYT))
		require.NoError(t, err)
	}

	resp, err := svc.AdminAdvanceQueue(ctx, "admin-1", AdminAdvanceInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate, Step: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.CurrentNumber)
}

func TestAdminAdvanceValidation(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		step int
		want apperr.Code
	}{
		{"zero step", 0, apperr.CodeInvalidStep},
		{"negative step", -2, apperr.CodeInvalidStep},
		{"step too large", 11, apperr.CodeStepTooLarge},
		{"no ledger", 1, apperr.CodeQueueNotFound},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AdminAdvanceQueue(ctx, "admin-1", AdminAdvanceInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate, Step: tt.step})
			assert.Equal(t, tt.want, errCode(t, err))
		})
	}

	// Ledger present but nothing issued yet.
	st.mu.Lock()
	st.ledgers[queueKey(testDate, models.QueueTypeDV)] = &models.QueueLedger{
		QueueID:           models.BuildQueueID(testDate, models.QueueTypeDV),
		VisitDate:         testDate,
		QueueType:         models.QueueTypeDV,
		AvgServiceMinutes: 5,
		QueueStatus:       models.QueueStatusOpen,
	}
	st.mu.Unlock()
	_, err := svc.AdminAdvanceQueue(ctx, "admin-1", AdminAdvanceInput{QueueType: models.QueueTypeDV, VisitDate: testDate, Step: 1})
	assert.Equal(t, apperr.CodeNoTicketsIssuedYet, errCode(t, err))

	// Drain the queue, then a further advance reports it finished.
	_, err = svc.CheckIn(ctx, "user-1", checkInInput(models.QueueTypeBHYT))
	require.NoError(t, err)
	_, err = svc.AdminAdvanceQueue(ctx, "admin-1", AdminAdvanceInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate, Step: 1})
	require.NoError(t, err)
	_, err = svc.AdminAdvanceQueue(ctx, "admin-1", AdminAdvanceInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate, Step: 1})
	assert.Equal(t, apperr.CodeQueueAlreadyFinished, errCode(t, err))
}

func TestAdminAdvanceSmoothsServiceTime(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		_, err := svc.CheckIn(ctx, fmt.Sprintf("user-%d", i), checkInInput(models.QueueTypeBHYT))
		require.NoError(t, err)
	}

	// Ticket 1 was called ten minutes ago.
	calledAt := testNow.Add(-10 * time.Minute)
	require.NoError(t, st.UpdateTicketStatus(ctx, testDate, models.QueueTypeBHYT, 1, models.StatusCalling, calledAt))
	require.NoError(t, st.AdvanceCurrent(ctx, store.AdvanceCurrentInput{
		VisitDate: testDate, QueueType: models.QueueTypeBHYT, CurrentNumber: 1, UpdatedAt: calledAt,
	}))

	_, err := svc.AdminAdvanceQueue(ctx, "admin-1", AdminAdvanceInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate, Step: 1})
	require.NoError(t, err)

	ledger, err := st.GetLedger(ctx, testDate, models.QueueTypeBHYT)
	require.NoError(t, err)
	// round(5*0.7 + 10*0.3) = round(6.5) = 7
	assert.Equal(t, float64(7), ledger.AvgServiceMinutes)
}

func TestAuditTrailRecorded(t *testing.T) {
	st := newMemStore()
	sink := &recordingSink{}
	svc := newTestService(st, sink)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := svc.CheckIn(ctx, fmt.Sprintf("user-%d", i), checkInInput(models.QueueTypeBHYT))
		require.NoError(t, err)
	}
	_, err := svc.ReissueTicket(ctx, "user-5", ReissueTicketInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate})
	require.NoError(t, err)
	_, err = svc.AdminAdvanceQueue(ctx, "admin-1", AdminAdvanceInput{QueueType: models.QueueTypeBHYT, VisitDate: testDate, Step: 1})
	require.NoError(t, err)

	var actions []string
	for _, entry := range sink.entries {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []string{
		audit.ActionCheckIn, audit.ActionCheckIn, audit.ActionCheckIn,
		audit.ActionCheckIn, audit.ActionCheckIn,
		audit.ActionReissue, audit.ActionAdvanceQueue,
	}, actions)
	assert.Equal(t, "admin-1", sink.entries[len(sink.entries)-1].ActorID)
}
