package store

import "errors"

var (
	ErrLedgerNotFound = errors.New("queue ledger not found")
	ErrTicketNotFound = errors.New("ticket not found")
)
