package model

import "time"

// Receipt is a loan or return receipt. FileID is set once a signed copy
// has been uploaded.
type Receipt struct {
	ID        int64     `json:"id"`
	LoanID    int64     `json:"loan_id"`
	Type      string    `json:"receipt_type"`
	FileID    *string   `json:"file_id,omitempty"`
	FileMime  string    `json:"file_mime,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Receipt types.
const (
	ReceiptTypeLoan   = "LOAN"
	ReceiptTypeReturn = "RETURN"
)
