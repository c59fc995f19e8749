package server

import (
	"log/slog"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/paytrace/installments/internal/auth"
	"github.com/paytrace/installments/internal/config"
	"github.com/paytrace/installments/internal/handlers"
	"github.com/paytrace/installments/internal/httpx"
	"github.com/paytrace/installments/internal/services"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, cfg config.Config) http.Handler {
	mux := http.NewServeMux()

	tokens := auth.NewTokens(cfg.JWTSecret)
	accounts := services.NewAccountService(db)
	installments := services.NewInstallmentService(db)

	// Token verification re-resolves the user so deleted accounts lose
	// access immediately.
	verify := auth.UserVerifier(accounts.Exists)
	protect := func(h http.HandlerFunc) http.Handler {
		return auth.RequireAuth(tokens, verify, h)
	}

	// --- Health endpoints ---
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth endpoints
	ah := handlers.NewAuthHandler(accounts, tokens)
	mux.HandleFunc("POST /auth/signup", ah.Signup)
	mux.HandleFunc("POST /auth/login", ah.Login)
	mux.Handle("DELETE /auth/me", protect(ah.DeleteMe))

	// Installment endpoints. The literal /installments/pay pattern takes
	// precedence over /installments/{id} for the batch toggle.
	ih := handlers.NewInstallmentHandler(installments)
	mux.Handle("POST /installments", protect(ih.Create))
	mux.Handle("GET /installments", protect(ih.List))
	mux.Handle("PUT /installments/pay", protect(ih.ToggleBatch))
	mux.Handle("GET /installments/{id}", protect(ih.Get))
	mux.Handle("PUT /installments/{id}", protect(ih.Update))
	mux.Handle("PUT /installments/{planId}/pay/{paymentId}", protect(ih.TogglePayment))
	mux.Handle("DELETE /installments/{id}", protect(ih.Delete))

	return withRecover(withLogging(mux))
}

// statusRecorder captures the status code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic recovered", "panic", rec, "path", r.URL.Path)
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
