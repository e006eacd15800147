package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/nycklar/internal/model"
	"github.com/erazemk/nycklar/internal/store"
)

// BundlesHandler handles bundle endpoints.
type BundlesHandler struct {
	DB *sql.DB
}

type createBundleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type bundleKeysRequest struct {
	KeyIDs  []int64 `json:"key_ids"`
	Confirm bool    `json:"confirm"`
}

// List handles GET /api/bundles.
func (h *BundlesHandler) List(w http.ResponseWriter, r *http.Request) {
	bundles, err := store.ListBundles(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "list bundles")
		return
	}
	if bundles == nil {
		bundles = []model.Bundle{}
	}
	jsonResponse(w, http.StatusOK, bundles)
}

// Create handles POST /api/bundles.
func (h *BundlesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBundleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	bundle, err := store.CreateBundle(r.Context(), h.DB, req.Name, req.Description)
	if err != nil {
		storeError(w, err, "create bundle")
		return
	}

	slog.Info("bundle created", "user", GetClaims(r.Context()).Username, "bundle", bundle.Name)
	jsonResponse(w, http.StatusCreated, bundle)
}

// Get handles GET /api/bundles/{id}.
func (h *BundlesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid bundle id")
		return
	}

	bundle, err := store.GetBundle(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get bundle")
		return
	}
	if bundle == nil {
		jsonError(w, http.StatusNotFound, "bundle not found")
		return
	}
	jsonResponse(w, http.StatusOK, bundle)
}

// Delete handles DELETE /api/bundles/{id}.
func (h *BundlesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid bundle id")
		return
	}

	if err := store.DeleteBundle(r.Context(), h.DB, id); err != nil {
		storeError(w, err, "delete bundle")
		return
	}

	slog.Info("bundle deleted", "user", GetClaims(r.Context()).Username, "bundle_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "bundle deleted"})
}

// AddKeys handles POST /api/bundles/{id}/keys.
func (h *BundlesHandler) AddKeys(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid bundle id")
		return
	}

	var req bundleKeysRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.KeyIDs) == 0 {
		jsonError(w, http.StatusBadRequest, "key_ids required")
		return
	}

	bundle, err := store.AddBundleKeys(r.Context(), h.DB, id, req.KeyIDs)
	if err != nil {
		storeError(w, err, "add bundle keys")
		return
	}
	jsonResponse(w, http.StatusOK, bundle)
}

// RemoveKeys handles POST /api/bundles/{id}/keys/remove.
//
// When some of the keys are out on loan and confirm is not set, nothing is
// removed and the response is 409 with the removal plan so the client can
// ask for confirmation.
func (h *BundlesHandler) RemoveKeys(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid bundle id")
		return
	}

	var req bundleKeysRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.KeyIDs) == 0 {
		jsonError(w, http.StatusBadRequest, "key_ids required")
		return
	}

	plan, err := store.RemoveBundleKeys(r.Context(), h.DB, id, req.KeyIDs, req.Confirm)
	if errors.Is(err, store.ErrConfirmationRequired) {
		jsonResponse(w, http.StatusConflict, map[string]any{
			"error": err.Error(),
			"plan":  plan,
		})
		return
	}
	if err != nil {
		storeError(w, err, "remove bundle keys")
		return
	}

	slog.Info("bundle keys removed", "user", GetClaims(r.Context()).Username, "bundle_id", id,
		"removed", len(plan.Safe)+len(plan.Warn), "loaned", len(plan.Warn))
	jsonResponse(w, http.StatusOK, map[string]any{"plan": plan})
}
