package api_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JETKIDS/trae-milk2-sub002/api"
	"github.com/JETKIDS/trae-milk2-sub002/delivery"
	"github.com/JETKIDS/trae-milk2-sub002/master"
	"github.com/JETKIDS/trae-milk2-sub002/store/sqlite"
)

const demoScenario = `
id: demo
name: Demo world
description: One customer on a Mon/Thu milk pattern
company:
  name: Hillside Dairy
courses:
  - North route
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
    start: "2025-01-01"
changes:
  - {id: chg-001, customer: cust-001, product: milk-180, date: "2025-01-13", type: skip}
payments:
  - {id: pay-001, customer: cust-001, date: "2025-01-05", amount: 500}
`

func newScenarioServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.yaml"), []byte(demoScenario), 0o644))

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	deliveries := delivery.NewService(store, store, store)
	masters := master.NewService(store, store)
	handler, err := api.NewHandler(deliveries, masters, store, dir)
	require.NoError(t, err)

	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(server.Close)
	return server
}

func TestListScenarios(t *testing.T) {
	server := newScenarioServer(t)

	resp := do(t, http.MethodGet, server.URL+"/api/scenarios/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var scenarios []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	decodeBody(t, resp, &scenarios)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "demo", scenarios[0].ID)
	assert.Equal(t, "Demo world", scenarios[0].Name)
}

func TestLoadScenario_SeedsWorld(t *testing.T) {
	server := newScenarioServer(t)

	resp := do(t, http.MethodPost, server.URL+"/api/scenarios/load", map[string]any{
		"scenario_id": "demo",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The seeded skip shows up in the resolved month.
	resp = do(t, http.MethodGet, server.URL+"/api/customers/cust-001/calendar?year=2025&month=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var calendar struct {
		Total string `json:"monthly_total"`
	}
	decodeBody(t, resp, &calendar)
	assert.Equal(t, "1600", calendar.Total)

	// Seeding writes directly through the store: nothing to undo.
	resp = do(t, http.MethodPost, server.URL+"/api/customers/cust-001/undo", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Status string `json:"status"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "nothing_to_undo", body.Status)
}

func TestLoadScenario_UnknownID(t *testing.T) {
	server := newScenarioServer(t)

	resp := do(t, http.MethodPost, server.URL+"/api/scenarios/load", map[string]any{
		"scenario_id": "nope",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResetDatabase(t *testing.T) {
	server := newScenarioServer(t)

	resp := do(t, http.MethodPost, server.URL+"/api/scenarios/load", map[string]any{
		"scenario_id": "demo",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPost, server.URL+"/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, server.URL+"/api/customers/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var customers []any
	decodeBody(t, resp, &customers)
	assert.Empty(t, customers)
}
