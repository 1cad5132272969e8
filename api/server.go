/*
server.go - HTTP router and response plumbing

PURPOSE:
  Wires the REST surface over the execution engine, report aggregator and
  catalog. Every /api route requires a bearer token; the administrative
  surface additionally requires the admin role.

ROUTES:
  GET    /health                                liveness, unauthenticated

  POST   /api/pedidos                           create order          (admin)
  GET    /api/pedidos                           list orders           (admin)
  GET    /api/pedidos/{numeroPedido}            order + services      (any operator)
  DELETE /api/pedidos/{id}                      delete order          (admin)
  POST   /api/pedidos/{id}/servicos             add service           (admin)
  PUT    /api/servicos/{id}                     update service        (admin)
  DELETE /api/servicos/{id}                     delete service        (admin)

  POST   /api/servicos/{id}/iniciar             start execution
  POST   /api/servicos/{id}/pausar              pause with quantity
  POST   /api/servicos/{id}/finalizar           finish with quantity

  GET    /api/servicos/relatorios               production report

  GET    /api/catalogo                          list catalog          (admin)
  POST   /api/catalogo                          create item           (admin)
  PUT    /api/catalogo/{id}                     update item           (admin)
  DELETE /api/catalogo/{id}                     delete item           (admin)
  POST   /api/catalogo/import                   bulk import           (admin)

  GET    /api/users                             list operators        (admin)

ERROR MAPPING:
  Engine sentinels map onto status codes in one place (errorStatus):
  not-found 404, forbidden 403, state conflicts 409, everything else a
  caller caused 400, storage faults 503.
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/production-engine/catalog"
	"github.com/warp/production-engine/execution"
	"github.com/warp/production-engine/store/sqlite"
)

// Handler holds the API dependencies.
type Handler struct {
	store     *sqlite.Store
	machine   *execution.Machine
	jwtSecret []byte
}

// NewHandler creates the API handler over a SQLite store.
func NewHandler(store *sqlite.Store, jwtSecret []byte) *Handler {
	return &Handler{
		store:     store,
		machine:   execution.NewMachine(store),
		jwtSecret: jwtSecret,
	}
}

// Router builds the chi router with all routes and middleware.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authenticate)

		// Any authenticated operator
		r.Get("/pedidos/{numeroPedido}", h.getOrderByNumber)
		r.Post("/servicos/{id}/iniciar", h.startService)
		r.Post("/servicos/{id}/pausar", h.pauseService)
		r.Post("/servicos/{id}/finalizar", h.finishService)
		r.Get("/servicos/relatorios", h.getReport)

		// Administrative surface
		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)

			r.Post("/pedidos", h.createOrder)
			r.Get("/pedidos", h.listOrders)
			r.Delete("/pedidos/{id}", h.deleteOrder)
			r.Post("/pedidos/{id}/servicos", h.createService)
			r.Put("/servicos/{id}", h.updateService)
			r.Delete("/servicos/{id}", h.deleteService)

			r.Get("/catalogo", h.listCatalog)
			r.Post("/catalogo", h.createCatalogItem)
			r.Put("/catalogo/{id}", h.updateCatalogItem)
			r.Delete("/catalogo/{id}", h.deleteCatalogItem)
			r.Post("/catalogo/import", h.importCatalog)

			r.Get("/users", h.listUsers)
		})
	})

	return r
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeEngineError maps an engine error onto an HTTP response. Quantity
// violations carry what remains so the UI can correct the operator's input.
func writeEngineError(w http.ResponseWriter, err error) {
	var qerr *execution.QuantityError
	if errors.As(err, &qerr) {
		writeJSON(w, errorStatus(err), map[string]any{
			"error":               err.Error(),
			"quantidadeInformada": qerr.Requested,
			"quantidadeRestante":  qerr.Remaining,
		})
		return
	}
	writeError(w, errorStatus(err), err.Error())
}

func errorStatus(err error) int {
	switch {
	case execution.IsNotFound(err),
		errors.Is(err, catalog.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, execution.ErrForbidden):
		return http.StatusForbidden
	case execution.IsInvalidState(err),
		errors.Is(err, execution.ErrDuplicateOpenRecord),
		errors.Is(err, execution.ErrOrderHasExecutions),
		errors.Is(err, catalog.ErrDuplicateName),
		errors.Is(err, sqlite.ErrDuplicateOrderNumber):
		return http.StatusConflict
	case execution.IsClientError(err),
		errors.Is(err, catalog.ErrValidation):
		return http.StatusBadRequest
	case execution.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
