package api

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/jaego/internal/blob"
	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/nara"
	"github.com/erazemk/jaego/internal/ratelimit"
)

// Deps are the collaborators the API needs.
type Deps struct {
	DB        *sqlx.DB
	JWTSecret string
	TokenTTL  time.Duration
	Blobs     blob.Store
	Monitor   *nara.Monitor

	// Limiter applies to every API request, LoginLimiter to login attempts.
	// Either may be nil to disable limiting.
	Limiter      ratelimit.Limiter
	LoginLimiter ratelimit.Limiter

	// TrustedProxies may set X-Forwarded-For and X-Real-IP. Requests from
	// any other peer are keyed by their own address.
	TrustedProxies []netip.Prefix
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	db := d.DB

	authHandler := &AuthHandler{DB: db, JWTSecret: d.JWTSecret, TokenTTL: d.TokenTTL, LoginLimiter: d.LoginLimiter}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db, Blobs: d.Blobs}
	stockHandler := &StockHandler{DB: db}
	closingHandler := &ClosingHandler{DB: db}
	tripsHandler := &TripsHandler{DB: db}
	leavesHandler := &LeavesHandler{DB: db}
	scheduleHandler := &ScheduleHandler{DB: db}
	diaryHandler := &DiaryHandler{DB: db}
	reportsHandler := &ReportsHandler{DB: db}
	projectsHandler := &ProjectsHandler{DB: db}
	todosHandler := &TodosHandler{DB: db}

	authMW := AuthMiddleware(d.JWTSecret, db)
	level := func(min string) func(http.Handler) http.Handler { return RequireLevel(db, min) }
	perm := func(p model.Permission) func(http.Handler) http.Handler { return RequirePermission(db, p) }

	requireAdmin := level(model.LevelAdmin)
	requireStaff := level(model.Level3)

	handle := func(pattern string, h http.HandlerFunc, mws ...func(http.Handler) http.Handler) {
		var handler http.Handler = h
		for i := len(mws) - 1; i >= 0; i-- {
			handler = mws[i](handler)
		}
		mux.Handle(pattern, authMW(handler))
	}

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	handle("POST /api/auth/logout", authHandler.Logout)
	handle("GET /api/auth/me", authHandler.Me)
	handle("PUT /api/auth/password", authHandler.ChangePassword)

	// Users: staff may read, administrators write.
	handle("GET /api/users", usersHandler.List, requireStaff)
	handle("POST /api/users", usersHandler.Create, requireAdmin)
	handle("GET /api/users/{id}", usersHandler.Get, requireStaff)
	handle("PUT /api/users/{id}", usersHandler.Update, requireAdmin)
	handle("PUT /api/users/{id}/password", usersHandler.ResetPassword, requireAdmin)
	handle("PUT /api/users/{id}/annual-leave", usersHandler.SetAnnualLeave, requireAdmin)
	handle("DELETE /api/users/{id}", usersHandler.Delete, requireAdmin)

	// Items.
	handle("GET /api/items", itemsHandler.List, perm(model.PermStockRead))
	handle("POST /api/items", itemsHandler.Create, perm(model.PermStockWrite))
	handle("GET /api/items/{id}", itemsHandler.Get, perm(model.PermStockRead))
	handle("PUT /api/items/{id}", itemsHandler.Update, perm(model.PermStockWrite))
	handle("DELETE /api/items/{id}", itemsHandler.Delete, perm(model.PermStockDelete))
	handle("PUT /api/items/{id}/image", itemsHandler.UploadImage, perm(model.PermStockWrite))
	handle("GET /api/items/{id}/image", itemsHandler.GetImage, perm(model.PermStockRead))
	handle("POST /api/search", itemsHandler.Search, perm(model.PermStockRead))

	// Stock movements.
	handle("POST /api/stock/in", stockHandler.In, perm(model.PermStockWrite))
	handle("POST /api/stock/out", stockHandler.Out, perm(model.PermStockWrite))
	handle("POST /api/stock/transaction", stockHandler.Transaction, perm(model.PermStockWrite))
	handle("POST /api/stock/bulk", stockHandler.Bulk, perm(model.PermStockWrite))
	handle("POST /api/stock/adjust", stockHandler.Adjust, perm(model.PermStockAdjustment))
	handle("POST /api/stock/disposal", stockHandler.Disposal, perm(model.PermStockDisposal))
	handle("POST /api/stock/import", stockHandler.Import, perm(model.PermStockWrite))
	handle("GET /api/stock/history", stockHandler.History, perm(model.PermStockRead))

	// Closing (admin only).
	handle("POST /api/stock/closing", closingHandler.Close, requireAdmin)
	handle("GET /api/stock/closing", closingHandler.List, requireAdmin)
	handle("GET /api/stock/closing/{id}", closingHandler.Get, requireAdmin)
	handle("DELETE /api/stock/closing/{id}", closingHandler.Rollback, requireAdmin)

	// Business trips.
	handle("GET /api/business-trips", tripsHandler.List)
	handle("POST /api/business-trips", tripsHandler.Create)
	handle("GET /api/business-trips/unreported", tripsHandler.Unreported)
	handle("GET /api/business-trips/{id}", tripsHandler.Get)
	handle("PUT /api/business-trips/{id}", tripsHandler.Update)
	handle("DELETE /api/business-trips/{id}", tripsHandler.Delete)
	handle("PUT /api/business-trips/{id}/status", tripsHandler.SetStatus, perm(model.PermWorkflowApprove))
	handle("PUT /api/business-trips/{id}/report", tripsHandler.Report)

	// Leave requests.
	handle("GET /api/leave-requests", leavesHandler.List)
	handle("POST /api/leave-requests", leavesHandler.Create)
	handle("GET /api/leave-requests/{id}", leavesHandler.Get)
	handle("PUT /api/leave-requests/{id}", leavesHandler.Update)
	handle("DELETE /api/leave-requests/{id}", leavesHandler.Delete)
	handle("PUT /api/leave-requests/{id}/status", leavesHandler.SetStatus, perm(model.PermWorkflowApprove))

	// Schedule: everyone reads the calendar, staff manage events.
	handle("GET /api/schedule", scheduleHandler.Calendar)
	handle("POST /api/schedule", scheduleHandler.Create, requireStaff)
	handle("GET /api/schedule/{id}", scheduleHandler.Get)
	handle("PUT /api/schedule/{id}", scheduleHandler.Update, requireStaff)
	handle("DELETE /api/schedule/{id}", scheduleHandler.Delete, requireStaff)

	// Work diary.
	handle("GET /api/work-diary", diaryHandler.List)
	handle("POST /api/work-diary", diaryHandler.Create)
	handle("GET /api/work-diary/stats", diaryHandler.Stats, requireStaff)
	handle("GET /api/work-diary/{id}", diaryHandler.Get)
	handle("PUT /api/work-diary/{id}", diaryHandler.Update)
	handle("DELETE /api/work-diary/{id}", diaryHandler.Delete)

	// Projects: everyone reads, level 5 manages projects and motor specs.
	manageProjects := level(model.Level5)
	handle("GET /api/projects", projectsHandler.List)
	handle("POST /api/projects", projectsHandler.Create, manageProjects)
	handle("GET /api/projects/{id}", projectsHandler.Get)
	handle("PUT /api/projects/{id}", projectsHandler.Update, manageProjects)
	handle("DELETE /api/projects/{id}", projectsHandler.Delete, manageProjects)
	handle("GET /api/projects/{id}/motors", projectsHandler.ListMotors)
	handle("POST /api/projects/{id}/motors", projectsHandler.CreateMotor, manageProjects)
	handle("PUT /api/projects/{id}/motors/{motorId}", projectsHandler.UpdateMotor, manageProjects)
	handle("DELETE /api/projects/{id}/motors/{motorId}", projectsHandler.DeleteMotor, manageProjects)

	// Personal todos.
	handle("GET /api/todos", todosHandler.List)
	handle("POST /api/todos", todosHandler.Create)
	handle("PUT /api/todos/{id}", todosHandler.Update)
	handle("DELETE /api/todos/{id}", todosHandler.Delete)

	// Bid monitoring.
	if d.Monitor != nil {
		naraHandler := &NaraHandler{DB: db, Monitor: d.Monitor}
		view := perm(model.PermMonitoringView)
		manage := level(model.Level5)

		handle("GET /api/nara-monitoring/status", naraHandler.Status, view)
		handle("GET /api/nara-monitoring/bids", naraHandler.Bids, view)
		handle("GET /api/nara-monitoring/config", naraHandler.GetConfig, view)
		handle("PUT /api/nara-monitoring/config", naraHandler.PutConfig, manage)
		handle("POST /api/nara-monitoring/start", naraHandler.Start, manage)
		handle("POST /api/nara-monitoring/stop", naraHandler.Stop, manage)
		handle("POST /api/nara-monitoring/search", naraHandler.Search, manage)
		handle("POST /api/nara-monitoring/cleanup", naraHandler.Cleanup, manage)
		handle("DELETE /api/nara-monitoring/errors", naraHandler.ClearErrors, manage)
	}

	// Audit log and exports.
	handle("GET /api/audit-logs", reportsHandler.AuditLogs, perm(model.PermAuditRead))
	handle("GET /api/reports/stock.xlsx", reportsHandler.Stock, perm(model.PermReportExport))
	handle("GET /api/reports/stock-history.xlsx", reportsHandler.History, perm(model.PermReportExport))
	handle("GET /api/reports/closing/{file}", reportsHandler.Closing, perm(model.PermReportExport))
	handle("GET /api/reports/work-diary.xlsx", reportsHandler.WorkDiary, requireStaff)

	return ClientIPMiddleware(d.TrustedProxies)(RateLimitMiddleware(d.Limiter, "api:")(mux))
}
