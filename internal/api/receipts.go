package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/nycklar/internal/blob"
	"github.com/erazemk/nycklar/internal/lending"
	"github.com/erazemk/nycklar/internal/model"
	"github.com/erazemk/nycklar/internal/store"
)

// MaxReceiptSize bounds uploaded receipt files.
const MaxReceiptSize = 10 << 20

// ReceiptsHandler handles receipts and their signed files.
type ReceiptsHandler struct {
	DB    *sql.DB
	Files blob.Store
}

type createReceiptRequest struct {
	Type string `json:"receipt_type"`
}

type receiptView struct {
	model.Receipt
	State lending.AttachmentState `json:"state"`
}

type receiptsResponse struct {
	Receipts []receiptView         `json:"receipts"`
	Actions  lending.ReceiptActions `json:"actions"`
}

// List handles GET /api/loans/{id}/receipts.
func (h *ReceiptsHandler) List(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	loan, err := store.GetLoan(r.Context(), h.DB, loanID)
	if err != nil {
		storeError(w, err, "get loan")
		return
	}
	if loan == nil {
		jsonError(w, http.StatusNotFound, "loan not found")
		return
	}

	receipts, err := store.ListReceipts(r.Context(), h.DB, loanID)
	if err != nil {
		storeError(w, err, "list receipts")
		return
	}

	resp := receiptsResponse{
		Receipts: make([]receiptView, 0, len(receipts)),
		Actions:  lending.ResolveActions(lending.SplitReceipts(receipts, loanID)),
	}
	for _, rc := range receipts {
		resp.Receipts = append(resp.Receipts, receiptView{Receipt: rc, State: lending.Attachment(&rc)})
	}
	jsonResponse(w, http.StatusOK, resp)
}

// Create handles POST /api/loans/{id}/receipts.
func (h *ReceiptsHandler) Create(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	var req createReceiptRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type != model.ReceiptTypeLoan && req.Type != model.ReceiptTypeReturn {
		jsonError(w, http.StatusBadRequest, "receipt_type must be LOAN or RETURN")
		return
	}

	receipt, err := store.CreateReceipt(r.Context(), h.DB, loanID, req.Type)
	if err != nil {
		storeError(w, err, "create receipt")
		return
	}
	jsonResponse(w, http.StatusCreated, receipt)
}

// UploadFile handles PUT /api/receipts/{id}/file as a multipart form with
// a "file" field.
func (h *ReceiptsHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid receipt id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxReceiptSize)
	if err := r.ParseMultipartForm(MaxReceiptSize); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	receipt, err := store.AttachReceiptFile(r.Context(), h.DB, h.Files, id, file)
	if err != nil {
		storeError(w, err, "save receipt file")
		return
	}

	receiptFiles.WithLabelValues("attached").Inc()
	slog.Info("receipt file uploaded", "user", GetClaims(r.Context()).Username,
		"receipt_id", id, "loan_id", receipt.LoanID, "type", receipt.Type)
	jsonResponse(w, http.StatusOK, receipt)
}

// GetFile handles GET /api/receipts/{id}/file.
func (h *ReceiptsHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid receipt id")
		return
	}

	data, mime, err := store.GetReceiptFile(r.Context(), h.DB, h.Files, id)
	if err != nil {
		storeError(w, err, "get receipt file")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, no-cache")
	w.Write(data)
}

// DeleteFile handles DELETE /api/receipts/{id}/file.
func (h *ReceiptsHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid receipt id")
		return
	}

	if err := store.DeleteReceiptFile(r.Context(), h.DB, h.Files, id); err != nil {
		storeError(w, err, "delete receipt file")
		return
	}

	receiptFiles.WithLabelValues("removed").Inc()
	slog.Info("receipt file deleted", "user", GetClaims(r.Context()).Username, "receipt_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "receipt file deleted"})
}
