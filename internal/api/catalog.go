package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
)

// Sellers

var trendyolSellerID = regexp.MustCompile(`m-(\d+)`)

// SellerInput is the payload for AddSeller.
type SellerInput struct {
	Name string
	URL  string
	Note string
}

// ParseSellerID extracts the Trendyol seller id from a store URL such as
// https://www.trendyol.com/magaza/acme-m-788905?sst=0.
func ParseSellerID(storeURL string) (int64, bool) {
	m := trendyolSellerID.FindStringSubmatch(storeURL)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (s *Service) Sellers(ctx context.Context) (json.RawMessage, error) {
	return s.client.Get(ctx, "/api/sellers", nil)
}

// AddSeller registers a seller. The Trendyol seller id is parsed from the URL
// and sent as null when the URL has none.
func (s *Service) AddSeller(ctx context.Context, in SellerInput) (json.RawMessage, error) {
	var sellerID any
	if id, ok := ParseSellerID(in.URL); ok {
		sellerID = id
	}
	return s.client.Post(ctx, "/api/sellers", map[string]any{
		"trendyol_seller_id": sellerID,
		"name":               in.Name,
		"url":                in.URL,
		"note":               in.Note,
	})
}

func (s *Service) DeleteSeller(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.client.Delete(ctx, fmt.Sprintf("/api/sellers/%d", id))
}

func (s *Service) SyncSellerProducts(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.client.Post(ctx, fmt.Sprintf("/api/sellers/%d/sync-products", id), nil)
}

// Products

// ProductQuery filters Products.
type ProductQuery struct {
	Page       int
	PerPage    int
	SellerID   int64
	SyncedOnly bool
}

func (q ProductQuery) params() map[string]any {
	p := map[string]any{
		"page":     orInt(q.Page, 1),
		"per_page": orInt(q.PerPage, 20),
	}
	if q.SellerID != 0 {
		p["seller_id"] = q.SellerID
	}
	if q.SyncedOnly {
		p["synced_only"] = true
	}
	return p
}

func (s *Service) Products(ctx context.Context, q ProductQuery) (json.RawMessage, error) {
	return s.client.Get(ctx, "/api/products", q.params())
}

func (s *Service) Product(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.client.Get(ctx, fmt.Sprintf("/api/products/%d", id), nil)
}

// CheckProductStock asks the server to re-check a product's stock. The
// result is live data and bypasses the cache.
func (s *Service) CheckProductStock(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.client.Request(ctx, Request{
		Method:   http.MethodGet,
		Endpoint: fmt.Sprintf("/api/products/%d/check-stock", id),
		NoCache:  true,
	})
}

// SyncProductsToShopify uploads products with the given profit margin in
// percent. A non-positive margin uses 50.
func (s *Service) SyncProductsToShopify(ctx context.Context, ids []int64, profitMargin float64) (json.RawMessage, error) {
	if profitMargin <= 0 {
		profitMargin = 50
	}
	return s.client.Post(ctx, "/api/products/sync-to-shopify", map[string]any{
		"product_ids":   ids,
		"profit_margin": profitMargin,
	})
}

// PriceUpdate selects how BulkUpdatePrice changes prices. Nil fields are
// sent as null.
type PriceUpdate struct {
	MarginPercentage *float64
	FixedIncrease    *float64
	FixedPrice       *float64
}

func (s *Service) BulkUpdatePrice(ctx context.Context, ids []int64, u PriceUpdate) (json.RawMessage, error) {
	return s.client.Post(ctx, "/api/products/bulk/update-price", map[string]any{
		"product_ids":       ids,
		"margin_percentage": u.MarginPercentage,
		"fixed_increase":    u.FixedIncrease,
		"fixed_price":       u.FixedPrice,
	})
}

func (s *Service) BulkDeleteProducts(ctx context.Context, ids []int64) (json.RawMessage, error) {
	return s.client.Post(ctx, "/api/products/bulk/delete", map[string]any{"product_ids": ids})
}

func (s *Service) BulkSyncToShopify(ctx context.Context, ids []int64) (json.RawMessage, error) {
	return s.client.Post(ctx, "/api/products/bulk/sync-shopify", map[string]any{"product_ids": ids})
}

func (s *Service) BulkStockUpdate(ctx context.Context) (json.RawMessage, error) {
	return s.client.Post(ctx, "/api/products/bulk/stock-update", nil)
}

// Orders

// OrderQuery filters Orders.
type OrderQuery struct {
	Status  string
	Page    int
	PerPage int
}

func (q OrderQuery) params() map[string]any {
	p := map[string]any{
		"page":     orInt(q.Page, 1),
		"per_page": orInt(q.PerPage, 20),
	}
	if q.Status != "" {
		p["status"] = q.Status
	}
	return p
}

func (s *Service) Orders(ctx context.Context, q OrderQuery) (json.RawMessage, error) {
	return s.client.Get(ctx, "/api/orders", q.params())
}

func (s *Service) Order(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.client.Get(ctx, fmt.Sprintf("/api/orders/%d", id), nil)
}

func (s *Service) FetchOrdersFromShopify(ctx context.Context) (json.RawMessage, error) {
	return s.client.Post(ctx, "/api/orders/fetch-from-shopify", nil)
}

// UpdateOrderStatus sets an order's status. notes may be empty.
func (s *Service) UpdateOrderStatus(ctx context.Context, id int64, status, notes string) (json.RawMessage, error) {
	body := map[string]any{"status": status, "notes": nil}
	if notes != "" {
		body["notes"] = notes
	}
	return s.client.Put(ctx, fmt.Sprintf("/api/orders/%d/status", id), body)
}

// ProcessOrder places the order with the supplier.
func (s *Service) ProcessOrder(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.client.Post(ctx, fmt.Sprintf("/api/orders/%d/process", id), nil)
}

func (s *Service) OrderShipment(ctx context.Context, orderID int64) (json.RawMessage, error) {
	return s.client.Get(ctx, fmt.Sprintf("/api/orders/%d/shipment", orderID), nil)
}

func (s *Service) OrderAutomationStatus(ctx context.Context) (json.RawMessage, error) {
	return s.client.Get(ctx, "/api/order-automation/status", nil)
}

func (s *Service) StartOrderAutomation(ctx context.Context) (json.RawMessage, error) {
	return s.client.Post(ctx, "/api/order-automation/start", nil)
}

func (s *Service) StopOrderAutomation(ctx context.Context) (json.RawMessage, error) {
	return s.client.Post(ctx, "/api/order-automation/stop", nil)
}

// Stock

func (s *Service) SyncStock(ctx context.Context) (json.RawMessage, error) {
	return s.client.Post(ctx, "/api/stock/sync", nil)
}

func (s *Service) StockSyncStatus(ctx context.Context) (json.RawMessage, error) {
	return s.client.Request(ctx, Request{Method: http.MethodGet, Endpoint: "/api/stock/status", NoCache: true})
}

func (s *Service) StartAutoSync(ctx context.Context) (json.RawMessage, error) {
	return s.client.Post(ctx, "/api/stock/auto-sync/start", nil)
}

func (s *Service) StopAutoSync(ctx context.Context) (json.RawMessage, error) {
	return s.client.Post(ctx, "/api/stock/auto-sync/stop", nil)
}

// Settings

func (s *Service) Settings(ctx context.Context) (json.RawMessage, error) {
	return s.client.Get(ctx, "/api/settings", nil)
}

func (s *Service) UpdateSettings(ctx context.Context, settings map[string]any) (json.RawMessage, error) {
	return s.client.Put(ctx, "/api/settings", settings)
}

func (s *Service) TestShopifyConnection(ctx context.Context) (json.RawMessage, error) {
	return s.client.Post(ctx, "/api/settings/test-shopify", nil)
}

// Reports

func (s *Service) DashboardStats(ctx context.Context) (json.RawMessage, error) {
	return s.client.Get(ctx, "/api/reports/dashboard", nil)
}

// SalesReport returns sales for period ("day", "week", "month"). Empty means week.
func (s *Service) SalesReport(ctx context.Context, period string) (json.RawMessage, error) {
	if period == "" {
		period = "week"
	}
	return s.client.Get(ctx, "/api/reports/sales", map[string]any{"period": period})
}

func (s *Service) TopProducts(ctx context.Context, limit int) (json.RawMessage, error) {
	return s.client.Get(ctx, "/api/reports/top-products", map[string]any{"limit": orInt(limit, 10)})
}

func (s *Service) ProfitAnalysis(ctx context.Context) (json.RawMessage, error) {
	return s.client.Get(ctx, "/api/reports/profit-analysis", nil)
}

func (s *Service) ActivityLog(ctx context.Context, limit int) (json.RawMessage, error) {
	return s.client.Get(ctx, "/api/reports/activity-log", map[string]any{"limit": orInt(limit, 50)})
}

// Shopify stores

// StoreInput is the payload for AddStore.
type StoreInput struct {
	ShopName    string
	AccessToken string
	StoreName   string
	IsDefault   bool
}

func (s *Service) Stores(ctx context.Context) (json.RawMessage, error) {
	return s.client.Get(ctx, "/api/shopify-stores", nil)
}

func (s *Service) Store(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.client.Get(ctx, fmt.Sprintf("/api/shopify-stores/%d", id), nil)
}

func (s *Service) AddStore(ctx context.Context, in StoreInput) (json.RawMessage, error) {
	var storeName any
	if in.StoreName != "" {
		storeName = in.StoreName
	}
	return s.client.Post(ctx, "/api/shopify-stores", map[string]any{
		"shop_name":    in.ShopName,
		"access_token": in.AccessToken,
		"store_name":   storeName,
		"is_default":   in.IsDefault,
	})
}

func (s *Service) SetDefaultStore(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.client.Post(ctx, fmt.Sprintf("/api/shopify-stores/%d/set-default", id), nil)
}

func (s *Service) TestStore(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.client.Post(ctx, fmt.Sprintf("/api/shopify-stores/%d/test", id), nil)
}

func (s *Service) DeleteStore(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.client.Delete(ctx, fmt.Sprintf("/api/shopify-stores/%d", id))
}

// Shipments

// ShipmentInput is the payload for CreateShipment. OrderID zero means no order.
type ShipmentInput struct {
	TrackingNumber string
	Carrier        string
	CarrierName    string
	OrderID        int64
}

func (s *Service) Carriers(ctx context.Context) (json.RawMessage, error) {
	return s.client.Get(ctx, "/api/carriers", nil)
}

func (s *Service) Shipments(ctx context.Context) (json.RawMessage, error) {
	return s.client.Get(ctx, "/api/shipments", nil)
}

func (s *Service) Shipment(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.client.Get(ctx, fmt.Sprintf("/api/shipments/%d", id), nil)
}

func (s *Service) CreateShipment(ctx context.Context, in ShipmentInput) (json.RawMessage, error) {
	var orderID, carrierName any
	if in.OrderID != 0 {
		orderID = in.OrderID
	}
	if in.CarrierName != "" {
		carrierName = in.CarrierName
	}
	return s.client.Post(ctx, "/api/shipments", map[string]any{
		"tracking_number": in.TrackingNumber,
		"carrier":         in.Carrier,
		"order_id":        orderID,
		"carrier_name":    carrierName,
	})
}

func (s *Service) DeleteShipment(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.client.Delete(ctx, fmt.Sprintf("/api/shipments/%d", id))
}
