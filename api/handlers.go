/*
handlers.go - HTTP handlers for the delivery management API

PURPOSE:
  Exposes the delivery scheduling and billing core via REST. Handles HTTP
  request/response, JSON serialization, and delegates to domain services.

ENDPOINTS:
  Customers:
    GET    /api/customers                              List customers
    GET    /api/customers/{id}                         Customer details
    GET    /api/customers/{id}/calendar?year=&month=   Resolved month
    GET    /api/customers/{id}/ar-summary?year=&month= AR view
    GET    /api/customers/{id}/temporary-changes?year=&month=
    POST   /api/customers/{id}/temporary-changes
    PUT    /api/customers/{id}/temporary-changes/{changeID}
    DELETE /api/customers/{id}/temporary-changes/{changeID}
    POST   /api/customers/{id}/undo                    Revert last mutation
    POST   /api/customers/{id}/invoices/confirm
    POST   /api/customers/{id}/invoices/unconfirm
    POST   /api/customers/{id}/payments

  Admin (master data, each with one undo slot per entity type):
    /api/admin/courses, /api/admin/staff, /api/admin/manufacturers,
    /api/admin/company, /api/admin/institution,
    POST /api/admin/undo/{entity}

  Scenarios:
    GET  /api/scenarios       List demo fixtures
    POST /api/scenarios/load  Reset and seed from a fixture

ERROR HANDLING:
  Domain errors map to status codes with errors.Is, never string matching:
  - 400: validation failures, mutations against a confirmed month
  - 404: unknown customer/product/change/entity
  - 409: schedule conflicts and undo integrity failures
  - 500: everything else
  An undo against an empty ledger is not an error: 200 "nothing_to_undo".

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo fixture loading
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/JETKIDS/trae-milk2-sub002/delivery"
	"github.com/JETKIDS/trae-milk2-sub002/invoice"
	"github.com/JETKIDS/trae-milk2-sub002/master"
	"github.com/JETKIDS/trae-milk2-sub002/schedule"
	"github.com/JETKIDS/trae-milk2-sub002/store/sqlite"
	"github.com/JETKIDS/trae-milk2-sub002/undo"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Deliveries *delivery.Service
	Masters    *master.Service
	Store      *sqlite.Store

	validate  *validator.Validate
	scenarios []scenarioFile
}

// NewHandler wires the handler. scenarioDir may be empty; the scenario
// endpoints then report no fixtures.
func NewHandler(deliveries *delivery.Service, masters *master.Service, store *sqlite.Store, scenarioDir string) (*Handler, error) {
	h := &Handler{
		Deliveries: deliveries,
		Masters:    masters,
		Store:      store,
		validate:   validator.New(),
	}
	if scenarioDir != "" {
		scenarios, err := loadScenarioDir(scenarioDir)
		if err != nil {
			return nil, err
		}
		h.scenarios = scenarios
	}
	return h, nil
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Store.ListCustomers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = CustomerDTO{ID: c.ID, Name: c.Name, CourseID: c.CourseID, Rounded: c.Rounded}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := schedule.CustomerID(chi.URLParam(r, "id"))
	c, err := h.Store.GetCustomer(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "customer not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, CustomerDTO{ID: c.ID, Name: c.Name, CourseID: c.CourseID, Rounded: c.Rounded})
}

// GetCalendar resolves the customer's delivery calendar for one month.
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	id := schedule.CustomerID(chi.URLParam(r, "id"))
	year, month, ok := monthQuery(w, r)
	if !ok {
		return
	}

	days, err := h.Deliveries.Calendar(r.Context(), id, year, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CalendarResponse{
		CustomerID: id,
		Year:       year,
		Month:      month,
		Days:       days,
		Total:      schedule.MonthlyTotal(days).String(),
	})
}

// GetARSummary returns the accounts-receivable view for one month.
func (h *Handler) GetARSummary(w http.ResponseWriter, r *http.Request) {
	id := schedule.CustomerID(chi.URLParam(r, "id"))
	year, month, ok := monthQuery(w, r)
	if !ok {
		return
	}

	summary, err := h.Deliveries.Summary(r.Context(), id, year, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// =============================================================================
// TEMPORARY CHANGES
// =============================================================================

func (h *Handler) ListChanges(w http.ResponseWriter, r *http.Request) {
	id := schedule.CustomerID(chi.URLParam(r, "id"))
	year, month, ok := monthQuery(w, r)
	if !ok {
		return
	}
	if !schedule.ValidYearMonth(year, month) {
		writeError(w, http.StatusBadRequest, "year/month out of range", nil)
		return
	}

	changes, err := h.Store.ListChanges(r.Context(), id, schedule.YearMonth{Year: year, Month: time.Month(month)})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ChangeDTO, len(changes))
	for i, ch := range changes {
		dtos[i] = toChangeDTO(ch)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateChange(w http.ResponseWriter, r *http.Request) {
	id := schedule.CustomerID(chi.URLParam(r, "id"))

	var req ChangeRequest
	if !h.decode(w, r, &req) {
		return
	}
	ch, err := req.toChange(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}

	created, months, err := h.Deliveries.CreateChange(r.Context(), ch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMutationResponse(created, months))
}

func (h *Handler) UpdateChange(w http.ResponseWriter, r *http.Request) {
	id := schedule.CustomerID(chi.URLParam(r, "id"))
	changeID := chi.URLParam(r, "changeID")

	var req ChangeRequest
	if !h.decode(w, r, &req) {
		return
	}
	ch, err := req.toChange(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}
	ch.ID = changeID

	updated, months, err := h.Deliveries.UpdateChange(r.Context(), ch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMutationResponse(updated, months))
}

func (h *Handler) DeleteChange(w http.ResponseWriter, r *http.Request) {
	id := schedule.CustomerID(chi.URLParam(r, "id"))
	changeID := chi.URLParam(r, "changeID")

	months, err := h.Deliveries.DeleteChange(r.Context(), id, changeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMutationResponse(nil, months))
}

// UndoCustomer reverts the customer's most recent temporary-change
// mutation. An empty ledger is reported, not failed.
func (h *Handler) UndoCustomer(w http.ResponseWriter, r *http.Request) {
	id := schedule.CustomerID(chi.URLParam(r, "id"))

	result, err := h.Deliveries.Undo(r.Context(), id)
	if errors.Is(err, undo.ErrNothingToUndo) {
		writeJSON(w, http.StatusOK, UndoResponse{Status: "nothing_to_undo"})
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	months := make([]string, len(result.Months))
	for i, ym := range result.Months {
		months[i] = ym.String()
	}
	writeJSON(w, http.StatusOK, UndoResponse{Status: "reverted", Action: result.Entry.Action, AffectedMonths: months})
}

// =============================================================================
// INVOICES & PAYMENTS
// =============================================================================

func (h *Handler) ConfirmInvoice(w http.ResponseWriter, r *http.Request) {
	id := schedule.CustomerID(chi.URLParam(r, "id"))

	var req ConfirmRequest
	if !h.decode(w, r, &req) {
		return
	}

	inv, err := h.Deliveries.Confirm(r.Context(), id, req.Year, req.Month, req.Rounded)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) UnconfirmInvoice(w http.ResponseWriter, r *http.Request) {
	id := schedule.CustomerID(chi.URLParam(r, "id"))

	var req ConfirmRequest
	if !h.decode(w, r, &req) {
		return
	}

	inv, err := h.Deliveries.Unconfirm(r.Context(), id, req.Year, req.Month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id := schedule.CustomerID(chi.URLParam(r, "id"))

	var req PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}

	payment, err := h.Deliveries.RecordPayment(r.Context(), delivery.Payment{
		CustomerID: id,
		Date:       date,
		Amount:     req.Amount,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     payment.ID,
		"date":   payment.Date,
		"amount": payment.Amount,
	})
}

func toInvoiceDTO(inv *invoice.Invoice) InvoiceDTO {
	dto := InvoiceDTO{
		CustomerID: inv.CustomerID,
		Year:       inv.Month.Year,
		Month:      int(inv.Month.Month),
		Amount:     inv.Amount,
		Rounded:    inv.Rounded,
		Status:     string(inv.Status),
	}
	if inv.ConfirmedAt != nil {
		dto.ConfirmedAt = inv.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// ADMIN: COURSES
// =============================================================================

func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.Masters.ListCourses(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req CourseRequest
	if !h.decode(w, r, &req) {
		return
	}
	course, err := h.Masters.CreateCourse(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

func (h *Handler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	var req CourseRequest
	if !h.decode(w, r, &req) {
		return
	}
	course, err := h.Masters.UpdateCourse(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (h *Handler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	if err := h.Masters.DeleteCourse(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// ADMIN: STAFF & MANUFACTURERS
// =============================================================================

func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.Masters.ListStaff(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, staff)
}

func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req PersonRequest
	if !h.decode(w, r, &req) {
		return
	}
	st, err := h.Masters.CreateStaff(r.Context(), master.Staff{Name: req.Name, Phone: req.Phone})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *Handler) UpdateStaff(w http.ResponseWriter, r *http.Request) {
	var req PersonRequest
	if !h.decode(w, r, &req) {
		return
	}
	st, err := h.Masters.UpdateStaff(r.Context(), master.Staff{
		ID:    chi.URLParam(r, "id"),
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) DeleteStaff(w http.ResponseWriter, r *http.Request) {
	if err := h.Masters.DeleteStaff(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) ListManufacturers(w http.ResponseWriter, r *http.Request) {
	makers, err := h.Masters.ListManufacturers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, makers)
}

func (h *Handler) CreateManufacturer(w http.ResponseWriter, r *http.Request) {
	var req PersonRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.Masters.CreateManufacturer(r.Context(), master.Manufacturer{Name: req.Name, Phone: req.Phone})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) UpdateManufacturer(w http.ResponseWriter, r *http.Request) {
	var req PersonRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.Masters.UpdateManufacturer(r.Context(), master.Manufacturer{
		ID:    chi.URLParam(r, "id"),
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) DeleteManufacturer(w http.ResponseWriter, r *http.Request) {
	if err := h.Masters.DeleteManufacturer(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// ADMIN: SINGLETONS
// =============================================================================

func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	c, err := h.Masters.GetCompany(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	var req OrganizationRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.Masters.UpdateCompany(r.Context(), master.Company{
		Name:    req.Name,
		Address: req.Address,
		Phone:   req.Phone,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) GetInstitution(w http.ResponseWriter, r *http.Request) {
	inst, err := h.Masters.GetInstitution(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (h *Handler) UpdateInstitution(w http.ResponseWriter, r *http.Request) {
	var req OrganizationRequest
	if !h.decode(w, r, &req) {
		return
	}
	inst, err := h.Masters.UpdateInstitution(r.Context(), master.Institution{
		Name:    req.Name,
		Address: req.Address,
		Phone:   req.Phone,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// UndoMaster reverts the most recent mutation for one entity type.
func (h *Handler) UndoMaster(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	result, err := h.Masters.Undo(r.Context(), entity)
	if errors.Is(err, undo.ErrNothingToUndo) {
		writeJSON(w, http.StatusOK, UndoResponse{Status: "nothing_to_undo"})
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UndoResponse{Status: "reverted", Action: result.Entry.Action})
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// REQUEST/RESPONSE PLUMBING
// =============================================================================

// decode parses and validates the request body; on failure it writes the
// 400 itself and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return false
	}
	return true
}

func monthQuery(w http.ResponseWriter, r *http.Request) (year, month int, ok bool) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year query parameter is required", err)
		return 0, 0, false
	}
	month, err = strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "month query parameter is required", err)
		return 0, 0, false
	}
	return year, month, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := errorResponse{Error: message}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case delivery.IsValidation(err) || errors.Is(err, master.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case delivery.IsNotFound(err) || errors.Is(err, master.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case delivery.IsConflict(err) || delivery.IsIntegrity(err):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, undo.ErrUnsupportedAction):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
