package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies a district fund movement.
type TransactionType string

const (
	TransactionAllocation  TransactionType = "allocation"
	TransactionRelease     TransactionType = "release"
	TransactionExpenditure TransactionType = "expenditure"
	TransactionRefund      TransactionType = "refund"
)

// IsValidTransactionType reports whether s names a known transaction type.
func IsValidTransactionType(s string) bool {
	switch TransactionType(s) {
	case TransactionAllocation, TransactionRelease, TransactionExpenditure, TransactionRefund:
		return true
	}
	return false
}

// TransactionStatus is the settlement state of a fund transaction.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionCancelled TransactionStatus = "cancelled"
)

// IsValidTransactionStatus reports whether s names a known transaction status.
func IsValidTransactionStatus(s string) bool {
	switch TransactionStatus(s) {
	case TransactionPending, TransactionCompleted, TransactionCancelled:
		return true
	}
	return false
}

// FundTransaction is one recorded movement of district funds. Amount is in paise.
type FundTransaction struct {
	ID          uuid.UUID         `json:"id"`
	DistrictID  uuid.UUID         `json:"district_id"`
	Amount      int64             `json:"amount"`
	Description string            `json:"description"`
	Type        TransactionType   `json:"type"`
	Status      TransactionStatus `json:"status"`
	CreatedBy   *uuid.UUID        `json:"created_by,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// MaxTransactionListLimit caps transaction listings.
const MaxTransactionListLimit = 100

// TransactionFilter narrows transaction listings, newest first.
type TransactionFilter struct {
	DistrictID *uuid.UUID
	Status     *TransactionStatus
	Limit      int
}
