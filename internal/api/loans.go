package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/nycklar/internal/blob"
	"github.com/erazemk/nycklar/internal/lending"
	"github.com/erazemk/nycklar/internal/model"
	"github.com/erazemk/nycklar/internal/store"
)

// LoansHandler handles loan endpoints.
type LoansHandler struct {
	DB    *sql.DB
	Files blob.Store
}

type createLoanRequest struct {
	HolderCode          string  `json:"holder_code"`
	SecondaryHolderCode string  `json:"secondary_holder_code"`
	Kind                string  `json:"kind"`
	Notes               string  `json:"notes"`
	KeyIDs              []int64 `json:"key_ids"`
	BundleID            int64   `json:"bundle_id"`
}

type pickupRequest struct {
	PickedUpAt *time.Time `json:"picked_up_at"`
}

type returnRequest struct {
	ReturnedAt                *time.Time `json:"returned_at"`
	AvailableToNextTenantFrom *time.Time `json:"available_to_next_tenant_from"`
}

type loanDetail struct {
	Loan     model.Loan             `json:"loan"`
	Status   lending.LoanStatus     `json:"status"`
	Receipts []model.Receipt        `json:"receipts"`
	Actions  lending.ReceiptActions `json:"actions"`
}

// List handles GET /api/loans.
func (h *LoansHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.LoanFilter{
		HolderCode: q.Get("holder"),
		Status:     q.Get("status"),
	}
	if filter.Status != "" && filter.Status != store.LoanFilterOpen && filter.Status != store.LoanFilterReturned {
		jsonError(w, http.StatusBadRequest, "status must be open or returned")
		return
	}
	if k := q.Get("key_id"); k != "" {
		keyID, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid key id")
			return
		}
		filter.KeyID = keyID
	}

	loans, err := store.ListLoans(r.Context(), h.DB, filter)
	if err != nil {
		storeError(w, err, "list loans")
		return
	}
	if loans == nil {
		loans = []model.Loan{}
	}
	jsonResponse(w, http.StatusOK, loans)
}

// Create handles POST /api/loans. Keys are given directly, or all keys of
// a bundle are loaned at once.
func (h *LoansHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Kind != "" && req.Kind != model.LoanKindTenant && req.Kind != model.LoanKindMaintenance {
		jsonError(w, http.StatusBadRequest, "invalid loan kind")
		return
	}

	keyIDs := req.KeyIDs
	if req.BundleID != 0 {
		bundle, err := store.GetBundle(r.Context(), h.DB, req.BundleID)
		if err != nil {
			storeError(w, err, "create loan")
			return
		}
		if bundle == nil {
			jsonError(w, http.StatusNotFound, "bundle not found")
			return
		}
		keyIDs = lending.PlanAddition(keyIDs, bundle.KeyIDs)
	}
	if len(keyIDs) == 0 {
		jsonError(w, http.StatusBadRequest, "at least one key required")
		return
	}

	claims := GetClaims(r.Context())
	loan, err := store.CreateLoan(r.Context(), h.DB, store.LoanInput{
		HolderCode:          req.HolderCode,
		SecondaryHolderCode: req.SecondaryHolderCode,
		Kind:                req.Kind,
		Notes:               req.Notes,
		KeyIDs:              keyIDs,
		CreatedBy:           &claims.UserID,
	})
	if err != nil {
		storeError(w, err, "create loan")
		return
	}

	loanEvents.WithLabelValues(eventCreated).Inc()
	slog.Info("loan created", "user", claims.Username, "loan_id", loan.ID, "holder", loan.HolderCode, "keys", len(loan.KeyIDs))
	jsonResponse(w, http.StatusCreated, loan)
}

// Get handles GET /api/loans/{id}.
func (h *LoansHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	loan, err := store.GetLoan(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get loan")
		return
	}
	if loan == nil {
		jsonError(w, http.StatusNotFound, "loan not found")
		return
	}

	receipts, err := store.ListReceipts(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "list receipts")
		return
	}
	if receipts == nil {
		receipts = []model.Receipt{}
	}

	jsonResponse(w, http.StatusOK, loanDetail{
		Loan:     *loan,
		Status:   lending.Classify(loan),
		Receipts: receipts,
		Actions:  lending.ResolveActions(lending.SplitReceipts(receipts, id)),
	})
}

// PickUp handles POST /api/loans/{id}/pickup.
func (h *LoansHandler) PickUp(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	var req pickupRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	at := time.Now()
	if req.PickedUpAt != nil {
		at = *req.PickedUpAt
	}

	if err := store.PickUpLoan(r.Context(), h.DB, id, at); err != nil {
		storeError(w, err, "pick up loan")
		return
	}

	loanEvents.WithLabelValues(eventPickedUp).Inc()
	slog.Info("loan picked up", "user", GetClaims(r.Context()).Username, "loan_id", id)
	loan, _ := store.GetLoan(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, loan)
}

// Return handles POST /api/loans/{id}/return.
func (h *LoansHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	var req returnRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	at := time.Now()
	if req.ReturnedAt != nil {
		at = *req.ReturnedAt
	}

	if err := store.ReturnLoan(r.Context(), h.DB, id, at, req.AvailableToNextTenantFrom); err != nil {
		storeError(w, err, "return loan")
		return
	}

	loanEvents.WithLabelValues(eventReturned).Inc()
	slog.Info("loan returned", "user", GetClaims(r.Context()).Username, "loan_id", id)
	loan, _ := store.GetLoan(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, loan)
}

// Delete handles DELETE /api/loans/{id}.
func (h *LoansHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	if err := store.DeleteLoan(r.Context(), h.DB, h.Files, id); err != nil {
		storeError(w, err, "delete loan")
		return
	}

	loanEvents.WithLabelValues(eventDeleted).Inc()
	slog.Info("loan deleted", "user", GetClaims(r.Context()).Username, "loan_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "loan deleted"})
}
