package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureInserter struct {
	entries []Entry
	err     error
}

func (c *captureInserter) InsertAuditEntry(_ context.Context, entry Entry) error {
	if c.err != nil {
		return c.err
	}
	c.entries = append(c.entries, entry)
	return nil
}

func record(logger *Logger, action, actor string, number int) {
	logger.Record(context.Background(), Entry{
		Action:       action,
		ActorID:      actor,
		QueueID:      "DATE#2026-03-09#TYPE#BHYT",
		TicketNumber: number,
		Details:      map[string]any{"ticket_code": "BHYT-001"},
	})
}

func TestRecordChainsEntries(t *testing.T) {
	inserter := &captureInserter{}
	logger := NewLogger(slog.Default(), inserter)

	record(logger, ActionCheckIn, "user-1", 1)
	record(logger, ActionCheckIn, "user-2", 2)
	record(logger, ActionAdvanceQueue, "admin-1", 1)

	require.Len(t, inserter.entries, 3)
	assert.Empty(t, inserter.entries[0].PrevHash)
	for i, entry := range inserter.entries {
		assert.NotEmpty(t, entry.Hash)
		assert.NotEmpty(t, entry.AuditID)
		if i > 0 {
			assert.Equal(t, inserter.entries[i-1].Hash, entry.PrevHash)
		}
	}
	assert.NoError(t, VerifyChain(inserter.entries))
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	inserter := &captureInserter{}
	logger := NewLogger(slog.Default(), inserter)

	record(logger, ActionCheckIn, "user-1", 1)
	record(logger, ActionReissue, "user-1", 2)
	record(logger, ActionAdvanceQueue, "admin-1", 1)

	// Rewriting any recorded field breaks the recomputed hash.
	tampered := make([]Entry, len(inserter.entries))
	copy(tampered, inserter.entries)
	tampered[1].ActorID = "someone-else"
	assert.Error(t, VerifyChain(tampered))

	// Dropping an entry breaks the link to its successor.
	assert.Error(t, VerifyChain([]Entry{inserter.entries[0], inserter.entries[2]}))
}

func TestRecordSwallowsInsertFailure(t *testing.T) {
	inserter := &captureInserter{err: errors.New("db down")}
	logger := NewLogger(slog.Default(), inserter)

	// Must not panic or surface the error; the chain still advances.
	record(logger, ActionCheckIn, "user-1", 1)
	record(logger, ActionCheckIn, "user-2", 2)
	assert.NotEmpty(t, logger.prevHash)
}

func TestRecordWithoutStore(t *testing.T) {
	logger := NewLogger(slog.Default(), nil)
	record(logger, ActionCheckIn, "user-1", 1)
	assert.NotEmpty(t, logger.prevHash)
}
