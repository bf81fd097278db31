// Package audit records every mutating queue action. The trail is
// write-only: nothing in the service reads it back, and a failed audit
// write never fails the operation that produced it. Entries are
// hash-chained so the stored trail is tamper-evident: each entry carries
// the hash of its predecessor, and rewriting any row breaks every hash
// after it.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	ActionCheckIn      = "CHECK_IN"
	ActionReissue      = "REISSUE"
	ActionAdvanceQueue = "ADVANCE_QUEUE"
)

type Entry struct {
	AuditID      string         `json:"audit_id"`
	Action       string         `json:"action"`
	ActorID      string         `json:"actor_id"`
	QueueID      string         `json:"queue_id"`
	TicketNumber int            `json:"ticket_number,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	PrevHash     string         `json:"prev_hash"`
	Hash         string         `json:"hash"`
}

// Sink accepts audit entries fire-and-forget.
type Sink interface {
	Record(ctx context.Context, entry Entry)
}

// Inserter is the durable half of the sink, satisfied by the postgres store.
type Inserter interface {
	InsertAuditEntry(ctx context.Context, entry Entry) error
}

// ComputeEntryHash is the chain link: the hash covers the previous hash and
// every field of the entry except the hash itself. Details are canonicalized
// through json.Marshal, which emits map keys in sorted order.
func ComputeEntryHash(prevHash string, entry Entry) string {
	details, _ := json.Marshal(entry.Details)
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s|%s",
		prevHash, entry.Action, entry.ActorID, entry.QueueID, entry.TicketNumber,
		entry.Timestamp.UTC().Format(time.RFC3339Nano), details)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// VerifyChain walks entries in recording order and reports the first broken
// link or recomputed-hash mismatch.
func VerifyChain(entries []Entry) error {
	prevHash := ""
	for i, entry := range entries {
		if i > 0 {
			prevHash = entries[i-1].Hash
		}
		if entry.PrevHash != prevHash {
			return fmt.Errorf("audit entry %s: prev_hash mismatch", entry.AuditID)
		}
		if got := ComputeEntryHash(entry.PrevHash, entry); got != entry.Hash {
			return fmt.Errorf("audit entry %s: hash mismatch", entry.AuditID)
		}
	}
	return nil
}

// Logger writes every entry to the structured log and, when an Inserter is
// configured, to the audit_log table as well. Insert failures are logged
// and swallowed. The chain head lives in memory; a restart starts a new
// chain segment, which VerifyChain treats as a fresh trail.
type Logger struct {
	log   *slog.Logger
	store Inserter

	mu       sync.Mutex
	prevHash string
}

func NewLogger(log *slog.Logger, store Inserter) *Logger {
	return &Logger{log: log, store: store}
}

func (l *Logger) Record(ctx context.Context, entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.AuditID == "" {
		entry.AuditID = fmt.Sprintf("%s#%s#%s", entry.Timestamp.Format(time.RFC3339Nano), entry.ActorID, uuid.NewString())
	}

	l.mu.Lock()
	entry.PrevHash = l.prevHash
	entry.Hash = ComputeEntryHash(entry.PrevHash, entry)
	l.prevHash = entry.Hash
	l.mu.Unlock()

	l.log.InfoContext(ctx, "audit",
		"action", entry.Action,
		"actor_id", entry.ActorID,
		"queue_id", entry.QueueID,
		"ticket_number", entry.TicketNumber,
		"details", entry.Details,
		"hash", entry.Hash,
	)

	if l.store == nil {
		return
	}
	if err := l.store.InsertAuditEntry(ctx, entry); err != nil {
		l.log.ErrorContext(ctx, "audit insert failed", "action", entry.Action, "error", err)
	}
}
