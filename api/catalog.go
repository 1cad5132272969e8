/*
catalog.go - Service catalog and operator listing handlers

PURPOSE:
  Administrative CRUD over the service catalog, the bulk import endpoint,
  and the operator listing the report UI's filter dropdown consumes.
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/production-engine/catalog"
)

// =============================================================================
// CATALOG
// =============================================================================

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListCatalogItems(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]catalogItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, toCatalogItemDTO(item))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) createCatalogItem(w http.ResponseWriter, r *http.Request) {
	var req catalogItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item := req.toItem(uuid.NewString())
	item.Normalize()
	if err := item.Validate(); err != nil {
		writeEngineError(w, err)
		return
	}

	if err := h.store.SaveCatalogItem(r.Context(), item); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCatalogItemDTO(item))
}

func (h *Handler) updateCatalogItem(w http.ResponseWriter, r *http.Request) {
	var req catalogItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item := req.toItem(chi.URLParam(r, "id"))
	item.Normalize()
	if err := item.Validate(); err != nil {
		writeEngineError(w, err)
		return
	}

	if err := h.store.UpdateCatalogItem(r.Context(), item); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCatalogItemDTO(item))
}

func (h *Handler) deleteCatalogItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteCatalogItem(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) importCatalog(w http.ResponseWriter, r *http.Request) {
	var req catalogImportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]catalog.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = it.toItem(uuid.NewString())
	}

	prepared, err := catalog.PrepareImport(items)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	imported, err := h.store.ImportCatalogItems(r.Context(), prepared)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, catalogImportResponse{Imported: imported})
}

// =============================================================================
// USERS
// =============================================================================

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]operatorDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, operatorDTO{
			ID:    string(u.ID),
			Name:  u.Name,
			Roles: u.Roles,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}
