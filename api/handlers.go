/*
handlers.go - HTTP API handlers for the shop

PURPOSE:
  Exposes the pos Controller and the report Aggregator to the browser UI
  running on the same machine. Handles HTTP request/response and JSON; all
  business rules stay in pos.

ENDPOINTS:
  Catalog:
    GET    /api/products                  List products
    POST   /api/products                  Add product
    GET    /api/products/{id}             Get product
    PUT    /api/products/{id}             Edit product
    POST   /api/products/{id}/adjust      Manual stock correction

  Clients:
    GET    /api/clients                   List clients
    POST   /api/clients                   Register client
    GET    /api/clients/{id}              Get client
    GET    /api/clients/{id}/statement    Credit sales and payments
    POST   /api/clients/{id}/payments     Record payment
    GET    /api/payments                  Payment journal

  Sales:
    GET    /api/sales?from=&to=           Sale journal, newest first
    POST   /api/sales                     Commit a sale in one call

  Cart:
    GET    /api/cart                      Current cart
    DELETE /api/cart                      Empty cart
    POST   /api/cart/items                Add one unit
    PUT    /api/cart/items/{productId}    Set quantity (clamped)
    DELETE /api/cart/items/{productId}    Remove line
    POST   /api/cart/checkout             Commit the cart

  Reports:
    GET    /api/reports/daily?date=       Day cut
    GET    /api/reports/categories        Category breakdown
    GET    /api/reports/products          Product summary
    GET    /api/reports/ledger-check      Ledger self-check

  Admin:
    GET    /api/status                    Save status and counts
    POST   /api/reset                     Re-seed bootstrap data (empty journal only)

UNSAVED CHANGES:
  Every mutation response carries "X-Unsaved-Changes: true" while the most
  recent durable save has failed. The commit itself has still happened.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, failed shape validation, bad catalog/client input
  - 404: Unknown product or client
  - 409: Reset after sales or payments exist
  - 422: Business rule refused (stock, missing client, amount, cart limit)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/warp/tortipos/pos"
	"github.com/warp/tortipos/report"
	"go.uber.org/zap"
)

const unsavedHeader = "X-Unsaved-Changes"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Controller *pos.Controller
	Reports    *report.Aggregator
	Now        func() time.Time

	validate *validator.Validate
	log      *zap.Logger

	// The operator's working cart. One counter, one cart.
	cartMu sync.Mutex
	cart   *pos.Cart
}

func NewHandler(c *pos.Controller, reports *report.Aggregator, log *zap.Logger) *Handler {
	return &Handler{
		Controller: c,
		Reports:    reports,
		Now:        time.Now,
		validate:   validator.New(),
		log:        log.Named("api"),
		cart:       pos.NewCart(c),
	}
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Controller.Products())
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := pos.ProductID(chi.URLParam(r, "id"))
	p, ok := h.Controller.Product(id)
	if !ok {
		h.writeDomainError(w, r, &pos.UnknownProductError{ProductID: id})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.Controller.AddProduct(req.input())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeMutation(w, http.StatusCreated, p)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.Controller.UpdateProduct(pos.ProductID(chi.URLParam(r, "id")), req.input())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeMutation(w, http.StatusOK, p)
}

func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req AdjustStockRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.Controller.AdjustStock(pos.ProductID(chi.URLParam(r, "id")), req.Delta)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeMutation(w, http.StatusOK, p)
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Controller.Clients())
}

func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id := pos.ClientID(chi.URLParam(r, "id"))
	c, ok := h.Controller.Client(id)
	if !ok {
		h.writeDomainError(w, r, &pos.UnknownClientError{ClientID: id})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	c, err := h.Controller.AddClient(pos.ClientInput{Name: req.Name, Address: req.Address, Phone: req.Phone})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeMutation(w, http.StatusCreated, c)
}

func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	st, err := report.ClientStatement(h.Controller.Snapshot(), pos.ClientID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.Controller.RecordPayment(pos.ClientID(chi.URLParam(r, "id")), req.Amount)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeMutation(w, http.StatusCreated, p)
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Controller.Payments())
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// ListSales returns sales in [from, to), newest first. Both bounds are
// optional YYYY-MM-DD dates in the shop's timezone; to is inclusive of that
// whole day.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.dateRange(r, time.Time{}, h.Now().AddDate(100, 0, 0))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "Invalid date range (use YYYY-MM-DD)", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Reports.SalesBetween(h.Controller.Snapshot(), from, to))
}

// CreateSale commits items in one call, snapshotting price and cost from the
// catalog as the cart would.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req SaleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	method, err := pos.ParsePaymentMethod(req.Method)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	items := make([]pos.SaleItem, 0, len(req.Items))
	for _, line := range req.Items {
		id := pos.ProductID(line.ProductID)
		p, ok := h.Controller.Product(id)
		if !ok {
			h.writeDomainError(w, r, &pos.UnknownProductError{ProductID: id})
			return
		}
		items = append(items, pos.SaleItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  line.Quantity,
			Price:     p.SellPrice,
			Cost:      p.BuyPrice,
		})
	}

	res, err := h.Controller.CommitSale(items, method, pos.ClientID(req.ClientID))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeMutation(w, http.StatusCreated, SaleResponse{Sale: res.Sale, Warnings: res.Warnings})
}

// =============================================================================
// CART HANDLERS
// =============================================================================

func (h *Handler) cartDTO() CartDTO {
	items := h.cart.Items()
	if items == nil {
		items = []pos.SaleItem{}
	}
	return CartDTO{Items: items, Total: h.cart.Total()}
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.cartMu.Lock()
	defer h.cartMu.Unlock()
	writeJSON(w, http.StatusOK, h.cartDTO())
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.cartMu.Lock()
	defer h.cartMu.Unlock()
	h.cart.Clear()
	writeJSON(w, http.StatusOK, h.cartDTO())
}

// AddCartItem adds one unit. Refused with 422 when the cart already holds
// every unit in stock.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req CartItemRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	id := pos.ProductID(req.ProductID)
	p, ok := h.Controller.Product(id)
	if !ok {
		h.writeDomainError(w, r, &pos.UnknownProductError{ProductID: id})
		return
	}

	h.cartMu.Lock()
	defer h.cartMu.Unlock()
	if !h.cart.AddItem(p) {
		writeError(w, http.StatusUnprocessableEntity, "stock_limit", "No more units of "+p.Name+" in stock", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.cartDTO())
}

func (h *Handler) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req CartQuantityRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	h.cartMu.Lock()
	defer h.cartMu.Unlock()
	h.cart.SetQuantity(pos.ProductID(chi.URLParam(r, "productId")), req.Quantity)
	writeJSON(w, http.StatusOK, h.cartDTO())
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	h.cartMu.Lock()
	defer h.cartMu.Unlock()
	h.cart.RemoveItem(pos.ProductID(chi.URLParam(r, "productId")))
	writeJSON(w, http.StatusOK, h.cartDTO())
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	method, err := pos.ParsePaymentMethod(req.Method)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.cartMu.Lock()
	defer h.cartMu.Unlock()
	res, err := h.Controller.Checkout(h.cart, method, pos.ClientID(req.ClientID))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeMutation(w, http.StatusCreated, SaleResponse{Sale: res.Sale, Warnings: res.Warnings})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

func (h *Handler) DailyReport(w http.ResponseWriter, r *http.Request) {
	day := h.Now()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.ParseInLocation(time.DateOnly, v, h.Reports.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "Invalid date (use YYYY-MM-DD)", err)
			return
		}
		day = d
	}
	writeJSON(w, http.StatusOK, h.Reports.DaySummary(h.Controller.Snapshot(), day))
}

func (h *Handler) CategoryReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.todayRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "Invalid date range (use YYYY-MM-DD)", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Reports.CategoryBreakdown(h.Controller.Snapshot(), from, to))
}

func (h *Handler) ProductReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.todayRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "Invalid date range (use YYYY-MM-DD)", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Reports.ProductSummary(h.Controller.Snapshot(), from, to))
}

func (h *Handler) LedgerCheck(w http.ResponseWriter, r *http.Request) {
	check := report.VerifyLedger(h.Controller.Snapshot())
	if !check.OK {
		h.log.Error("ledger check failed",
			zap.Int("sale_violations", len(check.Sales)),
			zap.Int("client_violations", len(check.Clients)))
	}
	writeJSON(w, http.StatusOK, check)
}

// todayRange defaults both bounds to the current day.
func (h *Handler) todayRange(r *http.Request) (time.Time, time.Time, error) {
	from, to := h.Reports.DayBounds(h.Now())
	return h.dateRange(r, from, to)
}

// dateRange reads optional from/to dates; to covers its whole day.
func (h *Handler) dateRange(r *http.Request, from, to time.Time) (time.Time, time.Time, error) {
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		d, err := time.ParseInLocation(time.DateOnly, v, h.Reports.Location)
		if err != nil {
			return from, to, err
		}
		from = d
	}
	if v := q.Get("to"); v != "" {
		d, err := time.ParseInLocation(time.DateOnly, v, h.Reports.Location)
		if err != nil {
			return from, to, err
		}
		_, to = h.Reports.DayBounds(d)
	}
	return from, to, nil
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.Controller.SaveStatus()
	snap := h.Controller.Snapshot()
	dto := StatusDTO{
		Unsaved:   st.Unsaved,
		LastError: st.LastError,
		Products:  len(snap.Products),
		Clients:   len(snap.Clients),
		Sales:     len(snap.Sales),
		Payments:  len(snap.Payments),
	}
	if !st.LastSavedAt.IsZero() {
		dto.LastSavedAt = &st.LastSavedAt
	}
	writeJSON(w, http.StatusOK, dto)
}

// Reset restores the bootstrap catalog and clients. Refused with 409 once
// anything has been sold or paid.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.cartMu.Lock()
	defer h.cartMu.Unlock()
	if err := h.Controller.Reset(); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.cart.Clear()
	h.writeMutation(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeMutation is writeJSON plus the unsaved-changes header.
func (h *Handler) writeMutation(w http.ResponseWriter, status int, data any) {
	if h.Controller.SaveStatus().Unsaved {
		w.Header().Set(unsavedHeader, "true")
	}
	writeJSON(w, status, data)
}

func writeError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// On failure it writes a 400 and returns false.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		resp := ErrorResponse{Error: "Validation failed", Code: "invalid_input", Details: err.Error()}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			resp.Fields = make(map[string]string, len(verrs))
			for _, fe := range verrs {
				resp.Fields[fe.Field()] = fe.Tag()
			}
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return false
	}
	return true
}

// writeDomainError maps pos errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	writeError(w, status, code, err.Error(), nil)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, pos.ErrInsufficientStock):
		return http.StatusUnprocessableEntity, "insufficient_stock"
	case errors.Is(err, pos.ErrMissingClientReference):
		return http.StatusUnprocessableEntity, "missing_client"
	case errors.Is(err, pos.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "invalid_amount"
	case errors.Is(err, pos.ErrJournalNotEmpty):
		return http.StatusConflict, "journal_not_empty"
	case pos.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case pos.IsValidationError(err):
		return http.StatusBadRequest, "invalid_input"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
