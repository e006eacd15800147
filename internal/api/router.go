package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/nycklar/internal/blob"
	"github.com/erazemk/nycklar/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, files blob.Store) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	contactsHandler := &ContactsHandler{DB: db}
	keysHandler := &KeysHandler{DB: db}
	loansHandler := &LoansHandler{DB: db, Files: files}
	bundlesHandler := &BundlesHandler{DB: db}
	receiptsHandler := &ReceiptsHandler{DB: db, Files: files}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Contacts: read (all roles), write (manager+).
	mux.Handle("GET /api/contacts", authMW(http.HandlerFunc(contactsHandler.List)))
	mux.Handle("POST /api/contacts", authMW(requireManager(http.HandlerFunc(contactsHandler.Create))))
	mux.Handle("GET /api/contacts/{id}", authMW(http.HandlerFunc(contactsHandler.Get)))
	mux.Handle("PUT /api/contacts/{id}", authMW(requireManager(http.HandlerFunc(contactsHandler.Update))))
	mux.Handle("DELETE /api/contacts/{id}", authMW(requireManager(http.HandlerFunc(contactsHandler.Delete))))

	// Keys: read (all roles), write (manager+).
	mux.Handle("GET /api/keys", authMW(http.HandlerFunc(keysHandler.List)))
	mux.Handle("GET /api/keys/overview", authMW(http.HandlerFunc(keysHandler.Overview)))
	mux.Handle("GET /api/keys/grouped", authMW(http.HandlerFunc(keysHandler.Grouped)))
	mux.Handle("POST /api/keys", authMW(requireManager(http.HandlerFunc(keysHandler.Create))))
	mux.Handle("GET /api/keys/{id}", authMW(http.HandlerFunc(keysHandler.Get)))
	mux.Handle("PUT /api/keys/{id}", authMW(requireManager(http.HandlerFunc(keysHandler.Update))))
	mux.Handle("PUT /api/keys/{id}/disposed", authMW(requireManager(http.HandlerFunc(keysHandler.SetDisposed))))
	mux.Handle("DELETE /api/keys/{id}", authMW(requireManager(http.HandlerFunc(keysHandler.Delete))))

	// Loans (all roles), delete (manager+).
	mux.Handle("GET /api/loans", authMW(http.HandlerFunc(loansHandler.List)))
	mux.Handle("POST /api/loans", authMW(http.HandlerFunc(loansHandler.Create)))
	mux.Handle("GET /api/loans/{id}", authMW(http.HandlerFunc(loansHandler.Get)))
	mux.Handle("POST /api/loans/{id}/pickup", authMW(http.HandlerFunc(loansHandler.PickUp)))
	mux.Handle("POST /api/loans/{id}/return", authMW(http.HandlerFunc(loansHandler.Return)))
	mux.Handle("DELETE /api/loans/{id}", authMW(requireManager(http.HandlerFunc(loansHandler.Delete))))

	// Bundles: read (all roles), write (manager+).
	mux.Handle("GET /api/bundles", authMW(http.HandlerFunc(bundlesHandler.List)))
	mux.Handle("POST /api/bundles", authMW(requireManager(http.HandlerFunc(bundlesHandler.Create))))
	mux.Handle("GET /api/bundles/{id}", authMW(http.HandlerFunc(bundlesHandler.Get)))
	mux.Handle("DELETE /api/bundles/{id}", authMW(requireManager(http.HandlerFunc(bundlesHandler.Delete))))
	mux.Handle("POST /api/bundles/{id}/keys", authMW(requireManager(http.HandlerFunc(bundlesHandler.AddKeys))))
	mux.Handle("POST /api/bundles/{id}/keys/remove", authMW(requireManager(http.HandlerFunc(bundlesHandler.RemoveKeys))))

	// Receipts (all roles).
	mux.Handle("GET /api/loans/{id}/receipts", authMW(http.HandlerFunc(receiptsHandler.List)))
	mux.Handle("POST /api/loans/{id}/receipts", authMW(http.HandlerFunc(receiptsHandler.Create)))
	mux.Handle("PUT /api/receipts/{id}/file", authMW(http.HandlerFunc(receiptsHandler.UploadFile)))
	mux.Handle("GET /api/receipts/{id}/file", authMW(http.HandlerFunc(receiptsHandler.GetFile)))
	mux.Handle("DELETE /api/receipts/{id}/file", authMW(http.HandlerFunc(receiptsHandler.DeleteFile)))

	return mux
}
