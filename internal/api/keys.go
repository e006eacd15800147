package api

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/erazemk/nycklar/internal/lending"
	"github.com/erazemk/nycklar/internal/model"
	"github.com/erazemk/nycklar/internal/store"
)

// KeysHandler handles key endpoints and the grouped key views.
type KeysHandler struct {
	DB  *sql.DB
	Now func() time.Time
}

type keyRequest struct {
	Name             string `json:"name"`
	Kind             string `json:"kind"`
	Type             string `json:"type"`
	SequenceNumber   *int   `json:"sequence_number"`
	RentalObjectCode string `json:"rental_object_code"`
}

type disposedRequest struct {
	Disposed bool `json:"disposed"`
}

// keyView is a key with its status tags.
type keyView struct {
	model.Key
	Status lending.KeyStatus `json:"status"`
}

type holderView struct {
	Key        string     `json:"key"`
	HolderCode string     `json:"holder_code,omitempty"`
	HolderName string     `json:"holder_name,omitempty"`
	Loans      []loanView `json:"loans"`
}

type loanView struct {
	Key  string     `json:"key"`
	Loan model.Loan `json:"loan"`
	Keys []keyView  `json:"keys"`
}

type unloanedView struct {
	Key          string      `json:"key"`
	PreviousLoan *model.Loan `json:"previous_loan,omitempty"`
	Keys         []keyView   `json:"keys"`
}

type overviewResponse struct {
	Loaned   []holderView   `json:"loaned"`
	Unloaned []unloanedView `json:"unloaned"`
	Disposed []keyView      `json:"disposed"`
}

type keyGroupView struct {
	Key  string    `json:"key"`
	Keys []keyView `json:"keys"`
}

func (h *KeysHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (req keyRequest) input() store.KeyInput {
	return store.KeyInput{
		Name:             req.Name,
		Kind:             req.Kind,
		Type:             req.Type,
		SequenceNumber:   req.SequenceNumber,
		RentalObjectCode: req.RentalObjectCode,
	}
}

func (req keyRequest) validate() string {
	if req.Name == "" {
		return "name required"
	}
	if req.Kind != "" && req.Kind != model.KeyKindKey && req.Kind != model.KeyKindCard {
		return "invalid kind"
	}
	if req.SequenceNumber != nil && *req.SequenceNumber < 0 {
		return "sequence number must not be negative"
	}
	return ""
}

// List handles GET /api/keys.
func (h *KeysHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.KeyFilter{
		RentalObjectCode: r.URL.Query().Get("rental_object_code"),
		Type:             r.URL.Query().Get("type"),
	}
	if d := r.URL.Query().Get("disposed"); d != "" {
		disposed, err := strconv.ParseBool(d)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid disposed filter")
			return
		}
		filter.Disposed = &disposed
	}

	keys, err := store.ListKeysWithLoans(r.Context(), h.DB, filter)
	if err != nil {
		storeError(w, err, "list keys")
		return
	}
	lending.SortKeys(keys)
	jsonResponse(w, http.StatusOK, h.views(keys))
}

// Create handles POST /api/keys.
func (h *KeysHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	key, err := store.CreateKey(r.Context(), h.DB, req.input())
	if err != nil {
		storeError(w, err, "create key")
		return
	}

	slog.Info("key created", "user", GetClaims(r.Context()).Username, "key", key.Name, "key_id", key.ID)
	jsonResponse(w, http.StatusCreated, key)
}

// Get handles GET /api/keys/{id}.
func (h *KeysHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid key id")
		return
	}

	key, err := store.GetKey(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get key")
		return
	}
	if key == nil {
		jsonError(w, http.StatusNotFound, "key not found")
		return
	}
	jsonResponse(w, http.StatusOK, keyView{Key: *key, Status: lending.Describe(*key, h.now())})
}

// Update handles PUT /api/keys/{id}.
func (h *KeysHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid key id")
		return
	}

	var req keyRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Kind == "" {
		req.Kind = model.KeyKindKey
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	if err := store.UpdateKey(r.Context(), h.DB, id, req.input()); err != nil {
		storeError(w, err, "update key")
		return
	}

	key, _ := store.GetKey(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, key)
}

// SetDisposed handles PUT /api/keys/{id}/disposed.
func (h *KeysHandler) SetDisposed(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid key id")
		return
	}

	var req disposedRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.SetKeyDisposed(r.Context(), h.DB, id, req.Disposed); err != nil {
		storeError(w, err, "update key")
		return
	}

	slog.Info("key disposal changed", "user", GetClaims(r.Context()).Username, "key_id", id, "disposed", req.Disposed)
	key, _ := store.GetKey(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, key)
}

// Delete handles DELETE /api/keys/{id}.
func (h *KeysHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid key id")
		return
	}

	if err := store.DeleteKey(r.Context(), h.DB, id); err != nil {
		storeError(w, err, "delete key")
		return
	}

	slog.Info("key deleted", "user", GetClaims(r.Context()).Username, "key_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "key deleted"})
}

// Overview handles GET /api/keys/overview.
//
// The response carries an ETag over its rendered body, so clients can tell
// whether a view they hold is current.
func (h *KeysHandler) Overview(w http.ResponseWriter, r *http.Request) {
	keys, err := store.ListKeysWithLoans(r.Context(), h.DB, store.KeyFilter{
		RentalObjectCode: r.URL.Query().Get("rental_object_code"),
	})
	if err != nil {
		storeError(w, err, "list keys")
		return
	}
	names, err := store.HolderNames(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "list holders")
		return
	}

	now := h.now()
	statuses := make(map[int64]lending.KeyStatus, len(keys))
	for _, k := range keys {
		statuses[k.ID] = lending.Describe(k, now)
	}

	view := lending.Group(keys)
	resp := overviewResponse{
		Loaned:   make([]holderView, 0, len(view.Loaned)),
		Unloaned: make([]unloanedView, 0, len(view.Unloaned)),
		Disposed: tagged(view.Disposed, statuses),
	}
	for _, hg := range view.Loaned {
		hv := holderView{
			Key:        hg.Key,
			HolderCode: hg.HolderCode,
			HolderName: names[hg.HolderCode],
			Loans:      make([]loanView, 0, len(hg.Loans)),
		}
		for _, lg := range hg.Loans {
			hv.Loans = append(hv.Loans, loanView{Key: lg.Key, Loan: lg.Loan, Keys: tagged(lg.Keys, statuses)})
		}
		resp.Loaned = append(resp.Loaned, hv)
	}
	for _, ug := range view.Unloaned {
		resp.Unloaned = append(resp.Unloaned, unloanedView{
			Key:          ug.Key,
			PreviousLoan: ug.PreviousLoan,
			Keys:         tagged(ug.Keys, statuses),
		})
	}

	body, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to encode overview", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to encode overview")
		return
	}

	etag := bodyETag(body)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(append(body, '\n'))
}

// Grouped handles GET /api/keys/grouped?by=rental_object|type.
func (h *KeysHandler) Grouped(w http.ResponseWriter, r *http.Request) {
	var selector func(model.Key) string
	switch r.URL.Query().Get("by") {
	case "", "rental_object":
		selector = lending.ByRentalObject
	case "type":
		selector = lending.ByType
	default:
		jsonError(w, http.StatusBadRequest, "by must be rental_object or type")
		return
	}

	keys, err := store.ListKeysWithLoans(r.Context(), h.DB, store.KeyFilter{})
	if err != nil {
		storeError(w, err, "list keys")
		return
	}

	groups := lending.GroupBy(keys, selector)
	resp := make([]keyGroupView, 0, len(groups))
	for _, g := range groups {
		resp = append(resp, keyGroupView{Key: g.Key, Keys: h.views(g.Items)})
	}
	jsonResponse(w, http.StatusOK, resp)
}

func (h *KeysHandler) views(keys []model.Key) []keyView {
	now := h.now()
	out := make([]keyView, 0, len(keys))
	for _, k := range keys {
		out = append(out, keyView{Key: k, Status: lending.Describe(k, now)})
	}
	return out
}

func tagged(keys []model.Key, statuses map[int64]lending.KeyStatus) []keyView {
	out := make([]keyView, 0, len(keys))
	for _, k := range keys {
		out = append(out, keyView{Key: k, Status: statuses[k.ID]})
	}
	return out
}

// bodyETag is a strong validator over the rendered response, so any
// visible change (holder names, notes, status tags) yields a new tag.
func bodyETag(body []byte) string {
	return `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`
}
