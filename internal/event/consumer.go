package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smartcycle/discounts/internal/cache"
	"github.com/smartcycle/discounts/internal/catalog"
	"github.com/smartcycle/discounts/pkg/kafka"
)

// Catalog event types this service reacts to.
const (
	TypeProductUpdated = "product.updated"
	TypeProductDeleted = "product.deleted"
)

// ProductPayload is the data section of catalog change events. Update
// events carry the full item snapshot so the local catalog mirror can
// be kept current without calling back into the product service.
type ProductPayload struct {
	ProductID     string  `json:"product_id"`
	Name          string  `json:"name"`
	SKU           string  `json:"sku"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	SalePrice     float64 `json:"sale_price"`
	StockQuantity float64 `json:"stock_quantity"`
	Rating        float64 `json:"rating"`
	InStock       bool    `json:"in_stock"`
	Featured      bool    `json:"featured"`
	Category      string  `json:"category"`
	Brand         string  `json:"brand"`
	Status        string  `json:"status"`
}

func (p ProductPayload) item() catalog.Item {
	return catalog.Item{
		ID:            p.ProductID,
		Name:          p.Name,
		SKU:           p.SKU,
		Description:   p.Description,
		Price:         p.Price,
		SalePrice:     p.SalePrice,
		StockQuantity: p.StockQuantity,
		Rating:        p.Rating,
		InStock:       p.InStock,
		Featured:      p.Featured,
		Category:      p.Category,
		Brand:         p.Brand,
		Status:        p.Status,
	}
}

// CatalogWriter is the mutable side of the local catalog mirror.
type CatalogWriter interface {
	Put(item catalog.Item)
	Delete(id string)
}

// CatalogHandler keeps the local catalog mirror in sync with catalog
// change events and invalidates cached compiled selections that
// reference the changed item. Entries are only marked stale;
// recompilation happens lazily on the next eligibility read.
type CatalogHandler struct {
	catalog CatalogWriter
	store   cache.Store
	logger  *slog.Logger
}

// NewCatalogHandler creates a catalog change handler over the mirror
// and the cache.
func NewCatalogHandler(cat CatalogWriter, store cache.Store, log *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: cat, store: store, logger: log}
}

// Handle implements kafka.Handler. Unrecognized event types are
// acknowledged without action.
func (h *CatalogHandler) Handle(ctx context.Context, evt *kafka.Event) error {
	switch evt.EventType {
	case TypeProductUpdated, TypeProductDeleted:
	default:
		return nil
	}

	var payload ProductPayload
	if err := evt.UnmarshalData(&payload); err != nil {
		return fmt.Errorf("decoding %s payload: %w", evt.EventType, err)
	}
	if payload.ProductID == "" {
		h.logger.WarnContext(ctx, "catalog event without product id",
			slog.String("event_type", evt.EventType),
			slog.String("event_id", evt.EventID))
		return nil
	}

	switch evt.EventType {
	case TypeProductUpdated:
		h.catalog.Put(payload.item())
	case TypeProductDeleted:
		h.catalog.Delete(payload.ProductID)
	}

	affected, err := h.store.MarkStaleByItem(ctx, payload.ProductID)
	if err != nil {
		return fmt.Errorf("marking cache stale for item %s: %w", payload.ProductID, err)
	}
	if len(affected) > 0 {
		h.logger.InfoContext(ctx, "marked compiled selections stale",
			slog.String("event_type", evt.EventType),
			slog.String("product_id", payload.ProductID),
			slog.Int("campaigns", len(affected)))
	}
	return nil
}
