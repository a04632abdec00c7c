package domain

import "time"

// CreditTransaction is one entry in the append-only credit ledger. Amount is
// negative for debits, positive for grants and refunds.
type CreditTransaction struct {
	ID        string
	OwnerID   string
	Amount    int64
	Reason    string
	RequestID string
	CreatedAt time.Time
}

const (
	CreditReasonGeneration = "generation"
	CreditReasonRefund     = "refund"
	CreditReasonGrant      = "grant"
)
