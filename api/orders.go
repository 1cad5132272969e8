/*
orders.go - Order and service CRUD handlers

PURPOSE:
  Administrative handlers for orders and their services, plus the one
  order read any operator may perform (lookup by order number, the shape
  the shop-floor UI works from).

PRICE VISIBILITY:
  Unit prices in service payloads are admin-only. The lookup-by-number
  handler serves both audiences, so it gates the price fields on the
  caller's roles before serializing.
*/
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/production-engine/execution"
)

// =============================================================================
// ORDERS
// =============================================================================

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Number = strings.TrimSpace(req.Number)
	req.Customer = strings.TrimSpace(req.Customer)
	if req.Number == "" || req.Customer == "" {
		writeError(w, http.StatusBadRequest, "numeroPedido and cliente are required")
		return
	}

	order := execution.Order{
		ID:        execution.OrderID(uuid.NewString()),
		Number:    req.Number,
		Customer:  req.Customer,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.SaveOrder(r.Context(), order); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDTO(order))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListOrders(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]orderDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, toOrderDTO(o))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// getOrderByNumber returns an order with its services and their ledgers.
// Open to any operator; price fields appear only for admins.
func (h *Handler) getOrderByNumber(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())
	number := chi.URLParam(r, "numeroPedido")

	order, err := h.store.GetOrderByNumber(r.Context(), number)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if order == nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	services, err := h.store.ListServicesByOrder(r.Context(), order.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	includePrices := execution.IsAdmin(identity.Roles)
	operators := make(map[execution.OperatorID]*execution.Operator)
	dto := toOrderDTO(*order)
	for _, svc := range services {
		records, err := h.store.ListRecords(r.Context(), svc.ID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		for _, rec := range records {
			if _, seen := operators[rec.OperatorID]; seen {
				continue
			}
			op, err := h.store.GetUser(r.Context(), rec.OperatorID)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			operators[rec.OperatorID] = op
		}
		dto.Services = append(dto.Services, toServiceDTO(svc, records, operators, includePrices))
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id := execution.OrderID(chi.URLParam(r, "id"))
	if err := h.store.DeleteOrder(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SERVICES
// =============================================================================

func (h *Handler) createService(w http.ResponseWriter, r *http.Request) {
	orderID := execution.OrderID(chi.URLParam(r, "id"))
	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if order == nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	var req serviceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svc := execution.Service{
		ID:        execution.ServiceID(uuid.NewString()),
		OrderID:   orderID,
		CatalogID: req.CatalogID,
		Kind:      strings.ToLower(strings.TrimSpace(req.Kind)),
		Target:    req.Target,
		Notes:     strings.TrimSpace(req.Notes),
		Status:    execution.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if req.UnitPrice != nil {
		svc.UnitPrice = decimal.NewFromFloat(*req.UnitPrice)
	}

	// A catalog reference fills in whatever the request left out.
	if req.CatalogID != "" {
		item, err := h.store.GetCatalogItem(r.Context(), req.CatalogID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if item == nil {
			writeError(w, http.StatusBadRequest, "catalog item not found")
			return
		}
		if svc.Kind == "" {
			svc.Kind = item.Kind
		}
		if req.UnitPrice == nil {
			svc.UnitPrice = item.DefaultPrice
		}
	}

	if svc.Kind == "" {
		writeError(w, http.StatusBadRequest, "tipoServico is required")
		return
	}
	if svc.Target <= 0 {
		writeError(w, http.StatusBadRequest, "quantidade must be > 0")
		return
	}
	if svc.UnitPrice.IsNegative() {
		writeError(w, http.StatusBadRequest, "precoUnitario must be >= 0")
		return
	}

	if err := h.store.SaveService(r.Context(), svc); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toServiceDTO(svc, nil, nil, true))
}

func (h *Handler) updateService(w http.ResponseWriter, r *http.Request) {
	id := execution.ServiceID(chi.URLParam(r, "id"))
	svc, err := h.store.GetService(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if svc == nil {
		writeError(w, http.StatusNotFound, "service not found")
		return
	}

	var req serviceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if kind := strings.ToLower(strings.TrimSpace(req.Kind)); kind != "" {
		svc.Kind = kind
	}
	if req.Target > 0 {
		svc.Target = req.Target
	}
	if req.UnitPrice != nil {
		if *req.UnitPrice < 0 {
			writeError(w, http.StatusBadRequest, "precoUnitario must be >= 0")
			return
		}
		svc.UnitPrice = decimal.NewFromFloat(*req.UnitPrice)
	}
	if req.Notes != "" {
		svc.Notes = strings.TrimSpace(req.Notes)
	}

	if err := h.store.UpdateService(r.Context(), *svc); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toServiceDTO(*svc, nil, nil, true))
}

func (h *Handler) deleteService(w http.ResponseWriter, r *http.Request) {
	id := execution.ServiceID(chi.URLParam(r, "id"))
	svc, err := h.store.GetService(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if svc == nil {
		writeError(w, http.StatusNotFound, "service not found")
		return
	}

	// Recorded production is immutable, same rule as order deletion.
	records, err := h.store.ListRecords(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if len(records) > 0 {
		writeError(w, http.StatusConflict, "service has execution records")
		return
	}

	if err := h.store.DeleteService(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
