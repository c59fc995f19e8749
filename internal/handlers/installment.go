package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/paytrace/installments/internal/auth"
	"github.com/paytrace/installments/internal/httpx"
	"github.com/paytrace/installments/internal/services"
	"github.com/paytrace/installments/internal/validation"
)

// InstallmentHandler serves the CRUD and toggle endpoints. Ownership is a
// query predicate, never a post-hoc check: a plan that exists under another
// user is indistinguishable from one that does not exist.
type InstallmentHandler struct {
	Svc *services.InstallmentService
}

func NewInstallmentHandler(svc *services.InstallmentService) *InstallmentHandler {
	return &InstallmentHandler{Svc: svc}
}

// Create: POST /installments
func (h *InstallmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "token_not_provided", nil)
		return
	}
	var in validation.InstallmentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	valid, verr := validation.ValidateInstallment(in)
	if verr != nil {
		writeValidationError(w, verr)
		return
	}
	inst, err := h.Svc.Create(uid, valid)
	if err != nil {
		slog.Error("create installment", "error", err, "user_id", uid)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, inst)
}

// List: GET /installments
func (h *InstallmentHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "token_not_provided", nil)
		return
	}
	out, err := h.Svc.List(uid)
	if err != nil {
		slog.Error("list installments", "error", err, "user_id", uid)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// Get: GET /installments/{id}
func (h *InstallmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "token_not_provided", nil)
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "installment_not_found", nil)
		return
	}
	inst, err := h.Svc.Get(uid, id)
	if err != nil {
		h.writeServiceError(w, err, uid)
		return
	}
	httpx.JSON(w, http.StatusOK, inst)
}

// Update: PUT /installments/{id} — full replace, validated as a whole.
func (h *InstallmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "token_not_provided", nil)
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "installment_not_found", nil)
		return
	}
	var in validation.InstallmentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	valid, verr := validation.ValidateInstallment(in)
	if verr != nil {
		writeValidationError(w, verr)
		return
	}
	inst, err := h.Svc.Update(uid, id, valid)
	if err != nil {
		h.writeServiceError(w, err, uid)
		return
	}
	httpx.JSON(w, http.StatusOK, inst)
}

// TogglePayment: PUT /installments/{planId}/pay/{paymentId}
func (h *InstallmentHandler) TogglePayment(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "token_not_provided", nil)
		return
	}
	planID, ok := pathID(r, "planId")
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "installment_not_found", nil)
		return
	}
	payment, err := h.Svc.TogglePayment(uid, planID, r.PathValue("paymentId"))
	if err != nil {
		h.writeServiceError(w, err, uid)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

// ToggleBatch: PUT /installments/pay — flips a set of payments across plans
// in one request.
func (h *InstallmentHandler) ToggleBatch(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "token_not_provided", nil)
		return
	}
	var refs []services.PaymentRef
	if err := json.NewDecoder(r.Body).Decode(&refs); err != nil || len(refs) == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "payments_array_required", nil)
		return
	}
	out, err := h.Svc.ToggleBatch(uid, refs)
	if err != nil {
		slog.Error("toggle payments", "error", err, "user_id", uid)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// Delete: DELETE /installments/{id}
func (h *InstallmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "token_not_provided", nil)
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "installment_not_found", nil)
		return
	}
	if err := h.Svc.Delete(uid, id); err != nil {
		h.writeServiceError(w, err, uid)
		return
	}
	httpx.Message(w, http.StatusOK, "installment deleted")
}

func (h *InstallmentHandler) writeServiceError(w http.ResponseWriter, err error, uid uint) {
	if errors.Is(err, services.ErrNotFound) {
		httpx.JSONError(w, http.StatusNotFound, "installment_not_found", nil)
		return
	}
	slog.Error("installment operation", "error", err, "user_id", uid)
	httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
}

// pathID parses a numeric {id} path segment. A malformed id can never name
// an existing plan, so it maps to not-found rather than bad-request.
func pathID(r *http.Request, name string) (uint, bool) {
	id64, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id64), true
}
