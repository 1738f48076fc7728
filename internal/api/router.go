package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/najdeno/internal/lostfound"
	"github.com/erazemk/najdeno/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, registry *lostfound.Registry, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{Registry: registry}
	claimsHandler := &ClaimsHandler{Registry: registry}
	notificationsHandler := &NotificationsHandler{Registry: registry}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireStaff := RequireRole(model.RoleStaff)
	requireStudent := RequireRole(model.RoleStudent)

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

	// Items: read (all roles), write (staff+).
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(requireStaff(http.HandlerFunc(itemsHandler.Create))))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{id}", authMW(requireStaff(http.HandlerFunc(itemsHandler.Update))))
	mux.Handle("DELETE /api/items/{id}", authMW(requireStaff(http.HandlerFunc(itemsHandler.Delete))))
	mux.Handle("POST /api/items/{id}/resale", authMW(requireStaff(http.HandlerFunc(itemsHandler.Resale))))

	// Lost reports and matching.
	mux.Handle("POST /api/reports", authMW(requireStudent(http.HandlerFunc(itemsHandler.Report))))
	mux.Handle("POST /api/matches/preview", authMW(http.HandlerFunc(itemsHandler.PreviewMatches)))

	// Claims: filed by anyone, reviewed by staff, decided by admins.
	mux.Handle("POST /api/claims", authMW(http.HandlerFunc(claimsHandler.Create)))
	mux.Handle("GET /api/claims", authMW(requireStaff(http.HandlerFunc(claimsHandler.List))))
	mux.Handle("GET /api/claims/{id}", authMW(requireStaff(http.HandlerFunc(claimsHandler.Get))))
	mux.Handle("POST /api/claims/{id}/decision", authMW(requireAdmin(http.HandlerFunc(claimsHandler.Decide))))

	// Notifications.
	mux.Handle("GET /api/notifications", authMW(http.HandlerFunc(notificationsHandler.List)))
	mux.Handle("POST /api/notifications", authMW(requireAdmin(http.HandlerFunc(notificationsHandler.Create))))
	mux.Handle("POST /api/notifications/{id}/read", authMW(http.HandlerFunc(notificationsHandler.MarkRead)))

	return mux
}
