/*
dto.go - Request and response shapes for the HTTP API

Request bodies are validated with go-playground/validator before any
service call; structural failures never reach the domain layer. Domain
types marshal themselves (schedule.Date as "2006-01-02", decimals as
strings), so most responses are domain structs passed straight through.
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/JETKIDS/trae-milk2-sub002/schedule"
	"github.com/JETKIDS/trae-milk2-sub002/undo"
)

// =============================================================================
// CUSTOMER-SIDE REQUESTS
// =============================================================================

// ChangeRequest creates or updates a temporary change. Date is the
// delivery date, not the booking date. ProductID stays empty only for a
// whole-day skip.
type ChangeRequest struct {
	Date      string           `json:"date" validate:"required,datetime=2006-01-02"`
	Type      string           `json:"type" validate:"required,oneof=skip add modify"`
	ProductID string           `json:"product_id,omitempty"`
	Quantity  *int             `json:"quantity,omitempty" validate:"omitempty,min=0"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Reason    string           `json:"reason,omitempty" validate:"max=200"`
}

func (req ChangeRequest) toChange(id schedule.CustomerID) (schedule.TemporaryChange, error) {
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		return schedule.TemporaryChange{}, err
	}
	return schedule.TemporaryChange{
		CustomerID: id,
		ProductID:  schedule.ProductID(req.ProductID),
		Date:       date,
		Type:       schedule.ChangeType(req.Type),
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		Reason:     req.Reason,
	}, nil
}

// ConfirmRequest finalizes one billing month. Rounded, when set, forces
// the rounding policy instead of using the customer's own flag.
type ConfirmRequest struct {
	Year    int   `json:"year" validate:"required,min=2000,max=2100"`
	Month   int   `json:"month" validate:"required,min=1,max=12"`
	Rounded *bool `json:"rounded,omitempty"`
}

type PaymentRequest struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
}

// =============================================================================
// ADMIN REQUESTS
// =============================================================================

type CourseRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type PersonRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Phone string `json:"phone,omitempty" validate:"max=30"`
}

type OrganizationRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Address string `json:"address,omitempty" validate:"max=200"`
	Phone   string `json:"phone,omitempty" validate:"max=30"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// CalendarResponse wraps a resolved month.
type CalendarResponse struct {
	CustomerID schedule.CustomerID    `json:"customer_id"`
	Year       int                    `json:"year"`
	Month      int                    `json:"month"`
	Days       []schedule.CalendarDay `json:"days"`
	Total      string                 `json:"monthly_total"`
}

// ChangeDTO is the wire form of a temporary change.
type ChangeDTO struct {
	ID        string           `json:"id"`
	Date      schedule.Date    `json:"date"`
	Type      string           `json:"type"`
	ProductID string           `json:"product_id,omitempty"`
	Quantity  *int             `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

func toChangeDTO(ch schedule.TemporaryChange) ChangeDTO {
	return ChangeDTO{
		ID:        ch.ID,
		Date:      ch.Date,
		Type:      string(ch.Type),
		ProductID: string(ch.ProductID),
		Quantity:  ch.Quantity,
		UnitPrice: ch.UnitPrice,
		Reason:    ch.Reason,
	}
}

// ChangeMutationResponse wraps a mutation result with the billing months
// whose totals the mutation touched.
type ChangeMutationResponse struct {
	Change         *ChangeDTO `json:"change,omitempty"`
	AffectedMonths []string   `json:"affected_months"`
}

func toMutationResponse(ch *schedule.TemporaryChange, months []schedule.YearMonth) ChangeMutationResponse {
	resp := ChangeMutationResponse{AffectedMonths: make([]string, len(months))}
	for i, ym := range months {
		resp.AffectedMonths[i] = ym.String()
	}
	if ch != nil {
		dto := toChangeDTO(*ch)
		resp.Change = &dto
	}
	return resp
}

// InvoiceDTO is the wire form of a confirmation record.
type InvoiceDTO struct {
	CustomerID  schedule.CustomerID `json:"customer_id"`
	Year        int                 `json:"year"`
	Month       int                 `json:"month"`
	Amount      int64               `json:"amount"`
	Rounded     bool                `json:"rounded"`
	Status      string              `json:"status"`
	ConfirmedAt string              `json:"confirmed_at,omitempty"`
}

// UndoResponse reports what an undo reverted. Status is "reverted" or
// "nothing_to_undo"; Action is empty for the latter.
type UndoResponse struct {
	Status         string      `json:"status"`
	Action         undo.Action `json:"action,omitempty"`
	AffectedMonths []string    `json:"affected_months,omitempty"`
}

type CustomerDTO struct {
	ID       schedule.CustomerID `json:"id"`
	Name     string              `json:"name"`
	CourseID string              `json:"course_id,omitempty"`
	Rounded  bool                `json:"rounded"`
}

// ScenarioDTO describes one loadable demo fixture.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
