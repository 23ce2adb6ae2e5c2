// Package catalog defines the read-side view of sellable items that
// campaign selection operates on.
package catalog

import "context"

// Item is the projection of a catalog product used by condition
// evaluation. Numeric and boolean attributes are typed; select
// attributes are plain strings.
type Item struct {
	ID            string  `json:"id"`
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

// NumericAttr returns the named numeric attribute of the item.
func (i Item) NumericAttr(property string) (float64, bool) {
	switch property {
	case "price":
		return i.Price, true
	case "sale_price":
		return i.SalePrice, true
	case "stock_quantity":
		return i.StockQuantity, true
	case "rating":
		return i.Rating, true
	}
	return 0, false
}

// TextAttr returns the named text attribute of the item.
func (i Item) TextAttr(property string) (string, bool) {
	switch property {
	case "name":
		return i.Name, true
	case "sku":
		return i.SKU, true
	case "description":
		return i.Description, true
	}
	return "", false
}

// BoolAttr returns the named boolean attribute of the item.
func (i Item) BoolAttr(property string) (bool, bool) {
	switch property {
	case "in_stock":
		return i.InStock, true
	case "featured":
		return i.Featured, true
	}
	return false, false
}

// SelectAttr returns the named select attribute of the item.
func (i Item) SelectAttr(property string) (string, bool) {
	switch property {
	case "category":
		return i.Category, true
	case "brand":
		return i.Brand, true
	case "status":
		return i.Status, true
	}
	return "", false
}

// Catalog is the source of items for selection compilation and
// point lookups during eligibility resolution.
type Catalog interface {
	// ResolveItem returns the item with the given id, or
	// pkg/errors.ErrNotFound if no such item exists.
	ResolveItem(ctx context.Context, id string) (Item, error)

	// ListItems returns every item in the catalog in a stable order.
	ListItems(ctx context.Context) ([]Item, error)
}
