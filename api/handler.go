package api

import (
	"errors"
	"net/http"

	"pos_ledger/internal/calendar"
	"pos_ledger/internal/catalog"
	"pos_ledger/internal/pos"
	"pos_ledger/internal/sales"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// salesHandler implements the checkout and order endpoints.
type salesHandler struct {
	store  *pos.Store
	logger *zap.Logger
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(store *pos.Store, logger *zap.Logger) *salesHandler {
	return &salesHandler{
		store:  store,
		logger: logger,
	}
}

type checkoutLine struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type checkoutRequest struct {
	Items          []checkoutLine `json:"items" binding:"required"`
	PaymentMethod  string         `json:"payment_method" binding:"required"`
	CustomerName   string         `json:"customer_name"`
	RouteToKitchen bool           `json:"route_to_kitchen"`
}

// handleCheckout handles the POST /sales endpoint. Lines are priced from the
// catalog at the time of the request.
func (h *salesHandler) handleCheckout(ctx *gin.Context) {
	var req checkoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	method, err := sales.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var cart sales.Cart
	for _, line := range req.Items {
		if line.Quantity < 1 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be at least 1"})
			return
		}
		p, err := h.store.Product(line.ProductID)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "unknown product " + line.ProductID})
			return
		}
		// repeated lines for the same product add up
		qty := line.Quantity
		for _, it := range cart.Items() {
			if it.ID == p.ID {
				qty += it.Quantity
			}
		}
		cart.Add(p)
		cart.SetQuantity(p.ID, qty)
	}

	sale, err := h.store.Checkout(sales.Checkout{
		Items:          cart.Items(),
		PaymentMethod:  method,
		CustomerName:   req.CustomerName,
		RouteToKitchen: req.RouteToKitchen,
	})
	if err != nil {
		h.logger.Warn("checkout rejected", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, sale)
}

// handleUpdateStatus handles the PATCH /sales/:id endpoint.
func (h *salesHandler) handleUpdateStatus(ctx *gin.Context) {
	saleID := ctx.Param("id")
	var req struct {
		Status string `json:"status"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	status, err := sales.ParseStatus(req.Status)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid status value"})
		return
	}

	sale, applied := h.store.UpdateSaleStatus(saleID, status)
	switch {
	case applied:
		ctx.JSON(http.StatusOK, sale)
	case sale.ID == "":
		ctx.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
	default:
		ctx.JSON(http.StatusConflict, gin.H{"error": "invalid status transition", "sale": sale})
	}
}

// handleGetSale handles the GET /sales/:id endpoint.
func (h *salesHandler) handleGetSale(ctx *gin.Context) {
	sale, err := h.store.Sale(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, sales.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	ctx.JSON(http.StatusOK, sale)
}

// handleListSales handles the GET /sales endpoint. The day query parameter
// defaults to today.
func (h *salesHandler) handleListSales(ctx *gin.Context) {
	day := h.store.Today()
	if q := ctx.Query("day"); q != "" {
		d, err := calendar.ParseDay(q)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		day = d
	}
	ctx.JSON(http.StatusOK, gin.H{"day": day, "results": h.store.SalesOn(day)})
}

// handleQueue handles the GET /sales/queue endpoint.
func (h *salesHandler) handleQueue(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"results": h.store.KitchenQueue()})
}

// productHandler implements the catalog endpoints.
type productHandler struct {
	store  *pos.Store
	logger *zap.Logger
}

type productRequest struct {
	Name     string          `json:"name" binding:"required"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

func (r productRequest) product(id string) catalog.Product {
	return catalog.Product{ID: id, Name: r.Name, Price: r.Price, Category: r.Category}
}

func (h *productHandler) handleList(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"results": h.store.Products()})
}

func (h *productHandler) handleCreate(ctx *gin.Context) {
	var req productRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	p, err := h.store.AddProduct(req.product(""))
	if err != nil {
		h.productError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, p)
}

func (h *productHandler) handleUpdate(ctx *gin.Context) {
	var req productRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	p, err := h.store.UpdateProduct(req.product(ctx.Param("id")))
	if err != nil {
		h.productError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, p)
}

func (h *productHandler) handleDelete(ctx *gin.Context) {
	if !h.store.DeleteProduct(ctx.Param("id")) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *productHandler) productError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
	case errors.Is(err, catalog.ErrInvalidProduct), errors.Is(err, catalog.ErrDuplicateID):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("product operation failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
