package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/nycklar/internal/model"
	"github.com/erazemk/nycklar/internal/store"
)

// ContactsHandler handles contact CRUD endpoints.
type ContactsHandler struct {
	DB *sql.DB
}

type contactRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func validContactType(t string) bool {
	return t == model.ContactTypePerson || t == model.ContactTypeCompany
}

// List handles GET /api/contacts.
func (h *ContactsHandler) List(w http.ResponseWriter, r *http.Request) {
	contactType := r.URL.Query().Get("type")
	if contactType != "" && !validContactType(contactType) {
		jsonError(w, http.StatusBadRequest, "invalid contact type")
		return
	}

	contacts, err := store.ListContacts(r.Context(), h.DB, contactType)
	if err != nil {
		storeError(w, err, "list contacts")
		return
	}
	if contacts == nil {
		contacts = []model.Contact{}
	}
	jsonResponse(w, http.StatusOK, contacts)
}

// Create handles POST /api/contacts.
func (h *ContactsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Code == "" || req.Name == "" {
		jsonError(w, http.StatusBadRequest, "code and name required")
		return
	}
	if req.Type == "" {
		req.Type = model.ContactTypePerson
	}
	if !validContactType(req.Type) {
		jsonError(w, http.StatusBadRequest, "invalid contact type")
		return
	}

	existing, err := store.GetContactByCode(r.Context(), h.DB, req.Code)
	if err != nil {
		storeError(w, err, "create contact")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, "contact code already exists")
		return
	}

	contact, err := store.CreateContact(r.Context(), h.DB, req.Code, req.Name, req.Type)
	if err != nil {
		storeError(w, err, "create contact")
		return
	}

	slog.Info("contact created", "user", GetClaims(r.Context()).Username, "code", contact.Code)
	jsonResponse(w, http.StatusCreated, contact)
}

// Get handles GET /api/contacts/{id}.
func (h *ContactsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid contact id")
		return
	}

	contact, err := store.GetContact(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get contact")
		return
	}
	if contact == nil {
		jsonError(w, http.StatusNotFound, "contact not found")
		return
	}
	jsonResponse(w, http.StatusOK, contact)
}

// Update handles PUT /api/contacts/{id}.
func (h *ContactsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid contact id")
		return
	}

	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || !validContactType(req.Type) {
		jsonError(w, http.StatusBadRequest, "name and valid type required")
		return
	}

	if err := store.UpdateContact(r.Context(), h.DB, id, req.Name, req.Type); err != nil {
		storeError(w, err, "update contact")
		return
	}

	contact, _ := store.GetContact(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, contact)
}

// Delete handles DELETE /api/contacts/{id}.
func (h *ContactsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid contact id")
		return
	}

	if err := store.DeleteContact(r.Context(), h.DB, id); err != nil {
		storeError(w, err, "delete contact")
		return
	}

	slog.Info("contact deleted", "user", GetClaims(r.Context()).Username, "contact_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "contact deleted"})
}
