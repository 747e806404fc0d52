/*
scenarios.go - Demo fixture loading for testing and demonstrations

PURPOSE:
  Loads YAML fixture files from a scenario directory and seeds the
  database from them on request. Each fixture is a self-contained world:
  masters, customers, recurring patterns, temporary changes, payments.

FIXTURE FORMAT (YAML):
  id: spring-demo
  name: Spring demo
  products:
    - {id: milk-180, name: "Milk 180ml", unit: bottle, price: "100"}
  customers:
    - {id: cust-001, name: "Tanaka", rounded: true}
  patterns:
    - id: pat-001
      customer: cust-001
      product: milk-180
      weekdays: [1, 4]
      quantity: 2
      unit_price: "100"
      start: 2025-01-01

HOW LOADING WORKS:
 1. Reset database (clear all data)
 2. Insert masters (courses, products, company)
 3. Insert customers, patterns, changes, payments

NOTE:
  Loading resets the database. Only wire the scenario routes in
  development/demo environments.

SEE ALSO:
  - server.go: Scenario route wiring
  - store/sqlite/sqlite.go: Reset and the seed insert paths
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/JETKIDS/trae-milk2-sub002/delivery"
	"github.com/JETKIDS/trae-milk2-sub002/master"
	"github.com/JETKIDS/trae-milk2-sub002/schedule"
)

// =============================================================================
// FIXTURE FORMAT
// =============================================================================

type scenarioFile struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	Company   *organizationSeed `yaml:"company"`
	Courses   []string          `yaml:"courses"`
	Products  []productSeed     `yaml:"products"`
	Customers []customerSeed    `yaml:"customers"`
	Patterns  []patternSeed     `yaml:"patterns"`
	Changes   []changeSeed      `yaml:"changes"`
	Payments  []paymentSeed     `yaml:"payments"`
}

type organizationSeed struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Phone   string `yaml:"phone"`
}

type productSeed struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Unit  string `yaml:"unit"`
	Price string `yaml:"price"`
}

type customerSeed struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Course  string `yaml:"course"`
	Rounded bool   `yaml:"rounded"`
}

type patternSeed struct {
	ID            string      `yaml:"id"`
	Customer      string      `yaml:"customer"`
	Product       string      `yaml:"product"`
	Weekdays      []int       `yaml:"weekdays"`
	Quantity      int         `yaml:"quantity"`
	QuantityByDay map[int]int `yaml:"quantity_by_day"`
	UnitPrice     string      `yaml:"unit_price"`
	Start         string      `yaml:"start"`
	End           string      `yaml:"end"`
}

type changeSeed struct {
	ID        string  `yaml:"id"`
	Customer  string  `yaml:"customer"`
	Product   string  `yaml:"product"`
	Date      string  `yaml:"date"`
	Type      string  `yaml:"type"`
	Quantity  *int    `yaml:"quantity"`
	UnitPrice *string `yaml:"unit_price"`
	Reason    string  `yaml:"reason"`
}

type paymentSeed struct {
	ID       string `yaml:"id"`
	Customer string `yaml:"customer"`
	Date     string `yaml:"date"`
	Amount   int64  `yaml:"amount"`
}

func loadScenarioDir(dir string) ([]scenarioFile, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var scenarios []scenarioFile
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
		}
		var sc scenarioFile
		if err := yaml.Unmarshal(raw, &sc); err != nil {
			return nil, fmt.Errorf("failed to parse scenario %s: %w", path, err)
		}
		if sc.ID == "" {
			return nil, fmt.Errorf("scenario %s has no id", path)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available fixtures.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(h.scenarios))
	for i, sc := range h.scenarios {
		dtos[i] = ScenarioDTO{ID: sc.ID, Name: sc.Name, Description: sc.Description}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario resets the database and seeds it from the named fixture.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	var found *scenarioFile
	for i := range h.scenarios {
		if h.scenarios[i].ID == req.ScenarioID {
			found = &h.scenarios[i]
			break
		}
	}
	if found == nil {
		writeError(w, http.StatusBadRequest, "unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset database", err)
		return
	}
	if err := h.seed(ctx, *found); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data without seeding.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SEEDING
// =============================================================================

// seed writes fixture rows directly through the store so no undo entries
// are produced; a freshly loaded scenario has nothing to revert.
func (h *Handler) seed(ctx context.Context, sc scenarioFile) error {
	if sc.Company != nil {
		company := master.Company{
			Name:    sc.Company.Name,
			Address: sc.Company.Address,
			Phone:   sc.Company.Phone,
		}
		if err := h.Store.SaveCompany(ctx, company); err != nil {
			return err
		}
	}

	for i, name := range sc.Courses {
		course := master.Course{
			ID:        uuid.NewString(),
			Code:      i + 1,
			Name:      name,
			CreatedAt: time.Now().UTC(),
		}
		if err := h.Store.InsertCourse(ctx, course); err != nil {
			return err
		}
	}

	for _, p := range sc.Products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return fmt.Errorf("product %s: bad price %q: %w", p.ID, p.Price, err)
		}
		info := schedule.ProductInfo{
			ID:    schedule.ProductID(p.ID),
			Name:  p.Name,
			Unit:  p.Unit,
			Price: price,
		}
		if err := h.Store.SaveProduct(ctx, info); err != nil {
			return err
		}
	}

	for _, c := range sc.Customers {
		customer := delivery.Customer{
			ID:       schedule.CustomerID(c.ID),
			Name:     c.Name,
			CourseID: c.Course,
			Rounded:  c.Rounded,
		}
		if err := h.Store.SaveCustomer(ctx, customer); err != nil {
			return err
		}
	}

	for _, p := range sc.Patterns {
		pattern, err := p.toPattern()
		if err != nil {
			return err
		}
		if err := h.Store.SavePattern(ctx, pattern); err != nil {
			return err
		}
	}

	for _, c := range sc.Changes {
		change, err := c.toChange()
		if err != nil {
			return err
		}
		if err := h.Store.InsertChange(ctx, change); err != nil {
			return err
		}
	}

	for _, p := range sc.Payments {
		date, err := schedule.ParseDate(p.Date)
		if err != nil {
			return fmt.Errorf("payment %s: %w", p.ID, err)
		}
		payment := delivery.Payment{
			ID:         orUUID(p.ID),
			CustomerID: schedule.CustomerID(p.Customer),
			Date:       date,
			Amount:     p.Amount,
		}
		if err := h.Store.InsertPayment(ctx, payment); err != nil {
			return err
		}
	}

	return nil
}

func (p patternSeed) toPattern() (schedule.Pattern, error) {
	price, err := decimal.NewFromString(p.UnitPrice)
	if err != nil {
		return schedule.Pattern{}, fmt.Errorf("pattern %s: bad unit price %q: %w", p.ID, p.UnitPrice, err)
	}
	start, err := schedule.ParseDate(p.Start)
	if err != nil {
		return schedule.Pattern{}, fmt.Errorf("pattern %s: %w", p.ID, err)
	}
	pattern := schedule.Pattern{
		ID:            orUUID(p.ID),
		CustomerID:    schedule.CustomerID(p.Customer),
		ProductID:     schedule.ProductID(p.Product),
		Weekdays:      p.Weekdays,
		Quantity:      p.Quantity,
		QuantityByDay: p.QuantityByDay,
		UnitPrice:     price,
		StartDate:     start,
		Active:        true,
	}
	if p.End != "" {
		end, err := schedule.ParseDate(p.End)
		if err != nil {
			return schedule.Pattern{}, fmt.Errorf("pattern %s: %w", p.ID, err)
		}
		pattern.EndDate = &end
	}
	return pattern, nil
}

func (c changeSeed) toChange() (schedule.TemporaryChange, error) {
	date, err := schedule.ParseDate(c.Date)
	if err != nil {
		return schedule.TemporaryChange{}, fmt.Errorf("change %s: %w", c.ID, err)
	}
	change := schedule.TemporaryChange{
		ID:         orUUID(c.ID),
		CustomerID: schedule.CustomerID(c.Customer),
		ProductID:  schedule.ProductID(c.Product),
		Date:       date,
		Type:       schedule.ChangeType(c.Type),
		Quantity:   c.Quantity,
		Reason:     c.Reason,
		CreatedAt:  time.Now().UTC(),
	}
	if c.UnitPrice != nil {
		price, err := decimal.NewFromString(*c.UnitPrice)
		if err != nil {
			return schedule.TemporaryChange{}, fmt.Errorf("change %s: bad unit price %q: %w", c.ID, *c.UnitPrice, err)
		}
		change.UnitPrice = &price
	}
	return change, nil
}

func orUUID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
