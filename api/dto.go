/*
dto.go - Wire shapes and domain mapping

PURPOSE:
  Request/response DTOs with the field names clients depend on, and the
  mapping between them and domain types. Monetary fields are pointers so
  the projection for non-privileged callers omits them entirely instead of
  zeroing them.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/production-engine/catalog"
	"github.com/warp/production-engine/execution"
)

// =============================================================================
// ORDERS
// =============================================================================

type createOrderRequest struct {
	Number   string `json:"numeroPedido"`
	Customer string `json:"cliente"`
}

type orderDTO struct {
	ID        string       `json:"id"`
	Number    string       `json:"numeroPedido"`
	Customer  string       `json:"cliente"`
	CreatedAt time.Time    `json:"dataCriacao"`
	Services  []serviceDTO `json:"servicos,omitempty"`
}

func toOrderDTO(o execution.Order) orderDTO {
	return orderDTO{
		ID:        string(o.ID),
		Number:    o.Number,
		Customer:  o.Customer,
		CreatedAt: o.CreatedAt,
	}
}

// =============================================================================
// SERVICES
// =============================================================================

type serviceRequest struct {
	Kind      string   `json:"tipoServico"`
	Target    int      `json:"quantidade"`
	UnitPrice *float64 `json:"precoUnitario"`
	Notes     string   `json:"observacoes"`
	CatalogID string   `json:"catalogoId"`
}

type serviceDTO struct {
	ID         string           `json:"id"`
	OrderID    string           `json:"pedidoId"`
	CatalogID  string           `json:"catalogoId,omitempty"`
	Kind       string           `json:"tipoServico"`
	Target     int              `json:"quantidade"`
	UnitPrice  *float64         `json:"precoUnitario,omitempty"`
	Notes      string           `json:"observacoes,omitempty"`
	Status     execution.Status `json:"status"`
	CreatedAt  time.Time        `json:"createdAt"`
	Executions []recordDTO      `json:"execucoes,omitempty"`
}

type recordDTO struct {
	ID          string       `json:"id"`
	OperatorID  string       `json:"userId"`
	StartedAt   time.Time    `json:"horaInicio"`
	EndedAt     *time.Time   `json:"horaFim"`
	Quantity    *int         `json:"quantidadeExecutada"`
	PauseReason string       `json:"motivoPausa,omitempty"`
	Operator    *operatorDTO `json:"user,omitempty"`
}

type operatorDTO struct {
	ID    string   `json:"id"`
	Name  string   `json:"nome"`
	Roles []string `json:"funcoes"`
}

// toServiceDTO maps a service, optionally with its ledger. Prices appear
// only when includePrices is set (admin callers).
func toServiceDTO(svc execution.Service, records []execution.ExecutionRecord,
	operators map[execution.OperatorID]*execution.Operator, includePrices bool) serviceDTO {

	dto := serviceDTO{
		ID:        string(svc.ID),
		OrderID:   string(svc.OrderID),
		CatalogID: svc.CatalogID,
		Kind:      svc.Kind,
		Target:    svc.Target,
		Notes:     svc.Notes,
		Status:    svc.Status,
		CreatedAt: svc.CreatedAt,
	}
	if includePrices {
		price, _ := svc.UnitPrice.Float64()
		dto.UnitPrice = &price
	}
	for _, rec := range records {
		rdto := recordDTO{
			ID:          string(rec.ID),
			OperatorID:  string(rec.OperatorID),
			StartedAt:   rec.StartedAt,
			EndedAt:     rec.EndedAt,
			Quantity:    rec.Quantity,
			PauseReason: rec.PauseReason,
		}
		if op := operators[rec.OperatorID]; op != nil {
			rdto.Operator = &operatorDTO{
				ID:    string(op.ID),
				Name:  op.Name,
				Roles: op.Roles,
			}
		}
		dto.Executions = append(dto.Executions, rdto)
	}
	return dto
}

// =============================================================================
// EXECUTION TRANSITIONS
// =============================================================================

type closeRequest struct {
	Quantity *int   `json:"quantidadeExecutada"`
	Reason   string `json:"motivo"`
}

// quantity returns the produced quantity, zero when the field was omitted.
func (req closeRequest) quantity() int {
	if req.Quantity == nil {
		return 0
	}
	return *req.Quantity
}

// =============================================================================
// CATALOG
// =============================================================================

type catalogItemRequest struct {
	Name         string   `json:"nome"`
	Kind         string   `json:"funcao"`
	DefaultPrice *float64 `json:"precoPadrao"`
}

type catalogItemDTO struct {
	ID           string  `json:"id"`
	Name         string  `json:"nome"`
	Kind         string  `json:"funcao"`
	DefaultPrice float64 `json:"precoPadrao"`
}

type catalogImportRequest struct {
	Items []catalogItemRequest `json:"itens"`
}

type catalogImportResponse struct {
	Imported int `json:"importados"`
}

func (req catalogItemRequest) toItem(id string) catalog.Item {
	item := catalog.Item{ID: id, Name: req.Name, Kind: req.Kind}
	if req.DefaultPrice != nil {
		item.DefaultPrice = decimal.NewFromFloat(*req.DefaultPrice)
	}
	return item
}

func toCatalogItemDTO(item catalog.Item) catalogItemDTO {
	price, _ := item.DefaultPrice.Float64()
	return catalogItemDTO{
		ID:           item.ID,
		Name:         item.Name,
		Kind:         item.Kind,
		DefaultPrice: price,
	}
}
