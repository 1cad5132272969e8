package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/production-engine/api"
	"github.com/warp/production-engine/store/sqlite"
)

var testSecret = []byte("test-secret")

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(api.NewHandler(store, testSecret).Router())
	t.Cleanup(srv.Close)
	return srv
}

func mintToken(t *testing.T, id, nome string, funcoes ...string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":      id,
		"nome":    nome,
		"funcoes": funcoes,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestRequestWithoutTokenIsUnauthorized(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/pedidos", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequestWithBadSignatureIsUnauthorized(t *testing.T) {
	srv := newTestServer(t)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": "op-x"})
	signed, err := forged.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/pedidos", signed, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRouteForbiddenForOperator(t *testing.T) {
	srv := newTestServer(t)
	operator := mintToken(t, "op-a", "Maria", "corte")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/pedidos", operator, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHealthIsUnauthenticated(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// ORDER / SERVICE LIFECYCLE OVER HTTP
// =============================================================================

type serviceResp struct {
	ID         string   `json:"id"`
	Status     string   `json:"status"`
	UnitPrice  *float64 `json:"precoUnitario"`
	Executions []struct {
		OperatorID string `json:"userId"`
		Quantity   *int   `json:"quantidadeExecutada"`
		Reason     string `json:"motivoPausa"`
	} `json:"execucoes"`
}

func createOrderWithService(t *testing.T, srv *httptest.Server, adminToken string) (orderID, serviceID string) {
	t.Helper()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/pedidos", adminToken, map[string]string{
		"numeroPedido": "PED-001",
		"cliente":      "Cliente A",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order struct {
		ID string `json:"id"`
	}
	decodeInto(t, resp, &order)

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/pedidos/%s/servicos", srv.URL, order.ID), adminToken, map[string]any{
		"tipoServico":   "corte",
		"quantidade":    100,
		"precoUnitario": 2.5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var svc serviceResp
	decodeInto(t, resp, &svc)
	return order.ID, svc.ID
}

func TestStartPauseFinishOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	adminToken := mintToken(t, "op-adm", "Chefe", "admin")
	operatorA := mintToken(t, "op-a", "Maria", "corte")
	operatorB := mintToken(t, "op-b", "João", "corte")
	_, serviceID := createOrderWithService(t, srv, adminToken)

	// Maria starts
	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/servicos/%s/iniciar", srv.URL, serviceID), operatorA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var svc serviceResp
	decodeInto(t, resp, &svc)
	assert.Equal(t, "in_progress", svc.Status)

	// Maria pauses at 40
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/servicos/%s/pausar", srv.URL, serviceID), operatorA, map[string]any{
		"quantidadeExecutada": 40,
		"motivo":              "fim do turno",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &svc)
	assert.Equal(t, "paused", svc.Status)

	// João finishes the remaining 60
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/servicos/%s/iniciar", srv.URL, serviceID), operatorB, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/servicos/%s/finalizar", srv.URL, serviceID), operatorB, map[string]any{
		"quantidadeExecutada": 60,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &svc)
	assert.Equal(t, "finished", svc.Status)
	assert.Len(t, svc.Executions, 2)
}

func TestPauseWithoutBodyClosesWithZeroQuantity(t *testing.T) {
	srv := newTestServer(t)
	adminToken := mintToken(t, "op-adm", "Chefe", "admin")
	operator := mintToken(t, "op-a", "Maria", "corte")
	_, serviceID := createOrderWithService(t, srv, adminToken)

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/servicos/%s/iniciar", srv.URL, serviceID), operator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// A pause without a body is a zero-quantity close.
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/servicos/%s/pausar", srv.URL, serviceID), operator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var svc serviceResp
	decodeInto(t, resp, &svc)
	assert.Equal(t, "paused", svc.Status)
	require.Len(t, svc.Executions, 1)
	require.NotNil(t, svc.Executions[0].Quantity)
	assert.Equal(t, 0, *svc.Executions[0].Quantity)

	// Same for a finish with an empty JSON object.
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/servicos/%s/iniciar", srv.URL, serviceID), operator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/servicos/%s/finalizar", srv.URL, serviceID), operator, map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &svc)
	assert.Equal(t, "paused", svc.Status)
}

func TestStartForbiddenForWrongRole(t *testing.T) {
	srv := newTestServer(t)
	adminToken := mintToken(t, "op-adm", "Chefe", "admin")
	costureira := mintToken(t, "op-c", "Ana", "costura")
	_, serviceID := createOrderWithService(t, srv, adminToken)

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/servicos/%s/iniciar", srv.URL, serviceID), costureira, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestFinishOverRemainingConflicts(t *testing.T) {
	srv := newTestServer(t)
	adminToken := mintToken(t, "op-adm", "Chefe", "admin")
	operatorA := mintToken(t, "op-a", "Maria", "corte")
	_, serviceID := createOrderWithService(t, srv, adminToken)

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/servicos/%s/iniciar", srv.URL, serviceID), operatorA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/servicos/%s/finalizar", srv.URL, serviceID), operatorA, map[string]any{
		"quantidadeExecutada": 150,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetOrderByNumberGatesPrices(t *testing.T) {
	srv := newTestServer(t)
	adminToken := mintToken(t, "op-adm", "Chefe", "admin")
	operator := mintToken(t, "op-a", "Maria", "corte")
	createOrderWithService(t, srv, adminToken)

	var body struct {
		Number   string        `json:"numeroPedido"`
		Services []serviceResp `json:"servicos"`
	}

	// Admin sees the unit price
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/pedidos/PED-001", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &body)
	require.Len(t, body.Services, 1)
	require.NotNil(t, body.Services[0].UnitPrice)
	assert.InDelta(t, 2.5, *body.Services[0].UnitPrice, 1e-9)

	// An operator sees the same order without prices
	body.Services = nil
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/pedidos/PED-001", operator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &body)
	require.Len(t, body.Services, 1)
	assert.Nil(t, body.Services[0].UnitPrice)
}

func TestDeleteOrderWithExecutionsConflicts(t *testing.T) {
	srv := newTestServer(t)
	adminToken := mintToken(t, "op-adm", "Chefe", "admin")
	operator := mintToken(t, "op-a", "Maria", "corte")
	orderID, serviceID := createOrderWithService(t, srv, adminToken)

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/servicos/%s/iniciar", srv.URL, serviceID), operator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/pedidos/"+orderID, adminToken, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// =============================================================================
// REPORTS OVER HTTP
// =============================================================================

func TestReportGatesMonetaryFieldsByRole(t *testing.T) {
	srv := newTestServer(t)
	adminToken := mintToken(t, "op-adm", "Chefe", "admin")
	operator := mintToken(t, "op-a", "Maria", "corte")
	_, serviceID := createOrderWithService(t, srv, adminToken)

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/servicos/%s/iniciar", srv.URL, serviceID), operator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/servicos/%s/pausar", srv.URL, serviceID), operator, map[string]any{
		"quantidadeExecutada": 40,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var rep struct {
		Operators []struct {
			Name          string   `json:"nome"`
			TotalQuantity int      `json:"totalQuantidade"`
			TotalValue    *float64 `json:"totalValor"`
			Executions    []struct {
				UnitPrice  *float64 `json:"precoUnitario"`
				TotalValue *float64 `json:"valorTotal"`
				Quantity   int      `json:"quantidade"`
			} `json:"execucoes"`
		} `json:"operadores"`
	}

	// Admin report carries monetary totals
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/servicos/relatorios?period=day", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &rep)
	require.Len(t, rep.Operators, 1)
	assert.Equal(t, "Maria", rep.Operators[0].Name)
	assert.Equal(t, 40, rep.Operators[0].TotalQuantity)
	require.NotNil(t, rep.Operators[0].TotalValue)
	assert.InDelta(t, 100.0, *rep.Operators[0].TotalValue, 1e-9)
	require.Len(t, rep.Operators[0].Executions, 1)
	require.NotNil(t, rep.Operators[0].Executions[0].UnitPrice)

	// Operator report has the same quantities with money stripped
	rep.Operators = nil
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/servicos/relatorios?period=day", operator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &rep)
	require.Len(t, rep.Operators, 1)
	assert.Equal(t, 40, rep.Operators[0].TotalQuantity)
	assert.Nil(t, rep.Operators[0].TotalValue)
	require.Len(t, rep.Operators[0].Executions, 1)
	assert.Nil(t, rep.Operators[0].Executions[0].UnitPrice)
	assert.Nil(t, rep.Operators[0].Executions[0].TotalValue)
}

func TestReportRejectsInvalidPeriod(t *testing.T) {
	srv := newTestServer(t)
	adminToken := mintToken(t, "op-adm", "Chefe", "admin")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/servicos/relatorios?period=year", adminToken, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReportCustomPeriodRequiresBothDates(t *testing.T) {
	srv := newTestServer(t)
	adminToken := mintToken(t, "op-adm", "Chefe", "admin")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/servicos/relatorios?period=custom&startDate=2026-08-01", adminToken, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReportCustomPeriodRejectsInvertedDates(t *testing.T) {
	srv := newTestServer(t)
	adminToken := mintToken(t, "op-adm", "Chefe", "admin")

	resp := doJSON(t, http.MethodGet,
		srv.URL+"/api/servicos/relatorios?period=custom&startDate=2026-08-10&endDate=2026-08-01", adminToken, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReportEchoesPeriod(t *testing.T) {
	srv := newTestServer(t)
	adminToken := mintToken(t, "op-adm", "Chefe", "admin")

	var rep struct {
		Period string `json:"period"`
	}
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/servicos/relatorios?period=week", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &rep)
	assert.Equal(t, "week", rep.Period)

	// Absent period defaults to day.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/servicos/relatorios", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &rep)
	assert.Equal(t, "day", rep.Period)
}

// =============================================================================
// CATALOG OVER HTTP
// =============================================================================

func TestCatalogImportSkipsDuplicates(t *testing.T) {
	srv := newTestServer(t)
	adminToken := mintToken(t, "op-adm", "Chefe", "admin")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/catalogo", adminToken, map[string]any{
		"nome":        "Corte reto",
		"funcao":      "corte",
		"precoPadrao": 1.75,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/catalogo/import", adminToken, map[string]any{
		"itens": []map[string]any{
			{"nome": "Corte reto", "funcao": "corte"},
			{"nome": "Bainha", "funcao": "costura", "precoPadrao": 0.9},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Imported int `json:"importados"`
	}
	decodeInto(t, resp, &result)
	assert.Equal(t, 1, result.Imported)
}

func TestCatalogRejectsInvalidItem(t *testing.T) {
	srv := newTestServer(t)
	adminToken := mintToken(t, "op-adm", "Chefe", "admin")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/catalogo", adminToken, map[string]any{
		"nome":   "ab",
		"funcao": "corte",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
