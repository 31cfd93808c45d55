package api

import (
	"net/http"

	"pos_ledger/internal/pos"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InitRoutes registers the terminal endpoints on the given Gin engine.
// localCurrency is the ISO code cash-cut lines settled in local currency are
// displayed in.
func InitRoutes(e *gin.Engine, store *pos.Store, localCurrency string, logger *zap.Logger) {
	salesHandler := NewSalesHandler(store, logger)
	products := &productHandler{store: store, logger: logger}
	ledger := &ledgerHandler{store: store, localCurrency: localCurrency, logger: logger}

	e.POST("/sales", salesHandler.handleCheckout)
	e.GET("/sales", salesHandler.handleListSales)
	e.GET("/sales/queue", salesHandler.handleQueue)
	e.GET("/sales/:id", salesHandler.handleGetSale)
	e.PATCH("/sales/:id", salesHandler.handleUpdateStatus)

	e.GET("/products", products.handleList)
	e.POST("/products", products.handleCreate)
	e.PUT("/products/:id", products.handleUpdate)
	e.DELETE("/products/:id", products.handleDelete)

	e.GET("/expenses", ledger.handleListExpenses)
	e.POST("/expenses", ledger.handleAddExpense)
	e.DELETE("/expenses/:id", ledger.handleDeleteExpense)

	e.GET("/rate", ledger.handleGetRate)
	e.PUT("/rate", ledger.handleSetRate)
	e.POST("/rate/refresh", ledger.handleRefreshRate)

	e.GET("/reports/cash-cut", ledger.handleCashCut)

	e.GET("/backup", ledger.handleExport)
	e.POST("/backup", ledger.handleImport)

	e.GET("/sync", ledger.handleSync)
	e.POST("/sync/pull", ledger.handlePull)
	e.GET("/events", ledger.handleEvents)

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
}
