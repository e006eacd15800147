package lending

import "github.com/erazemk/nycklar/internal/model"

// AttachmentState is where a receipt is in its upload lifecycle.
type AttachmentState string

// Attachment states. Uploading again keeps a receipt in HAS_FILE.
const (
	AttachmentNone    AttachmentState = "NONE"
	AttachmentCreated AttachmentState = "CREATED_NO_FILE"
	AttachmentHasFile AttachmentState = "HAS_FILE"
)

// Attachment returns the attachment state of a receipt.
func Attachment(r *model.Receipt) AttachmentState {
	switch {
	case r == nil:
		return AttachmentNone
	case hasFile(r):
		return AttachmentHasFile
	default:
		return AttachmentCreated
	}
}

// ReceiptActions says which receipt actions a loan currently allows.
type ReceiptActions struct {
	CanPrint      bool `json:"can_print"`
	CanUpload     bool `json:"can_upload"`
	CanViewLoan   bool `json:"can_view_loan"`
	CanViewReturn bool `json:"can_view_return"`
}

// ResolveActions derives the allowed actions from a loan's receipts.
// Printing an unsigned receipt is only offered until a signed one is on file.
func ResolveActions(loanReceipt, returnReceipt *model.Receipt) ReceiptActions {
	return ReceiptActions{
		CanPrint:      !hasFile(loanReceipt),
		CanUpload:     true,
		CanViewLoan:   hasFile(loanReceipt),
		CanViewReturn: hasFile(returnReceipt),
	}
}

// SplitReceipts picks the loan and return receipt of a loan out of a list.
// The first match of each type wins.
func SplitReceipts(receipts []model.Receipt, loanID int64) (loanReceipt, returnReceipt *model.Receipt) {
	for i := range receipts {
		r := &receipts[i]
		if r.LoanID != loanID {
			continue
		}
		switch r.Type {
		case model.ReceiptTypeLoan:
			if loanReceipt == nil {
				loanReceipt = r
			}
		case model.ReceiptTypeReturn:
			if returnReceipt == nil {
				returnReceipt = r
			}
		}
	}
	return loanReceipt, returnReceipt
}

// hasFile goes by presence of the file id alone. The store only ever writes
// generated UUIDs there, never an empty string.
func hasFile(r *model.Receipt) bool {
	return r != nil && r.FileID != nil
}
