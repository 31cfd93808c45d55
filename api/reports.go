package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"pos_ledger/internal/backup"
	"pos_ledger/internal/calendar"
	"pos_ledger/internal/currency"
	"pos_ledger/internal/expenses"
	"pos_ledger/internal/pos"
	"pos_ledger/internal/reconcile"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ledgerHandler implements the expense, exchange rate, report, backup and
// sync endpoints.
type ledgerHandler struct {
	store         *pos.Store
	localCurrency string
	logger        *zap.Logger
}

func (h *ledgerHandler) handleAddExpense(ctx *gin.Context) {
	var req struct {
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Category    string          `json:"category"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if req.Category == "" {
		req.Category = string(expenses.CategoryExpense)
	}

	e, err := h.store.AddExpense(req.Amount, req.Description, expenses.Category(req.Category))
	if err != nil {
		switch {
		case errors.Is(err, expenses.ErrInvalidAmount),
			errors.Is(err, expenses.ErrEmptyDescription),
			errors.Is(err, expenses.ErrInvalidCategory):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("failed to add expense", zap.Error(err))
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	ctx.JSON(http.StatusCreated, e)
}

func (h *ledgerHandler) handleListExpenses(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"results": h.store.Expenses()})
}

func (h *ledgerHandler) handleDeleteExpense(ctx *gin.Context) {
	if !h.store.DeleteExpense(ctx.Param("id")) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "expense not found"})
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *ledgerHandler) handleGetRate(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.store.Rate())
}

func (h *ledgerHandler) handleSetRate(ctx *gin.Context) {
	var req struct {
		Rate decimal.Decimal `json:"rate"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if err := h.store.SetRate(req.Rate); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, h.store.Rate())
}

// handleRefreshRate handles POST /rate/refresh. A failed refresh keeps the
// previous rate, which is returned alongside the error.
func (h *ledgerHandler) handleRefreshRate(ctx *gin.Context) {
	if _, err := h.store.RefreshRate(ctx.Request.Context()); err != nil {
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "rate": h.store.Rate()})
		return
	}
	ctx.JSON(http.StatusOK, h.store.Rate())
}

type cashCutLine struct {
	reconcile.Bucket
	Display string `json:"display"`
}

// handleCashCut handles GET /reports/cash-cut. start and end default to today.
func (h *ledgerHandler) handleCashCut(ctx *gin.Context) {
	start, err := h.dayParam(ctx, "start")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	end, err := h.dayParam(ctx, "end")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.store.Report(start, end)
	if err != nil {
		if errors.Is(err, reconcile.ErrInvalidRange) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("failed to build report", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	lines := make([]cashCutLine, 0, len(report.CashCut))
	for _, b := range report.CashCut {
		code := currency.USD
		if b.Local {
			code = h.localCurrency
		}
		lines = append(lines, cashCutLine{Bucket: b, Display: currency.Format(b.Amount, code)})
	}
	ctx.JSON(http.StatusOK, gin.H{"report": report, "cash_cut": lines})
}

func (h *ledgerHandler) dayParam(ctx *gin.Context, name string) (calendar.Day, error) {
	q := ctx.Query(name)
	if q == "" {
		return h.store.Today(), nil
	}
	d, err := calendar.ParseDay(q)
	if err != nil {
		return "", fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}

func (h *ledgerHandler) handleExport(ctx *gin.Context) {
	name := fmt.Sprintf("pos-backup-%s.json", h.store.Today())
	ctx.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	ctx.Header("Content-Type", "application/json")
	if err := h.store.Export(ctx.Writer); err != nil {
		h.logger.Error("failed to export backup", zap.Error(err))
		ctx.Status(http.StatusInternalServerError)
	}
}

func (h *ledgerHandler) handleImport(ctx *gin.Context) {
	if err := h.store.Import(ctx.Request.Body); err != nil {
		if errors.Is(err, backup.ErrInvalidBackup) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("failed to import backup", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	snap := h.store.Snapshot()
	ctx.JSON(http.StatusOK, gin.H{
		"products": len(snap.Products),
		"sales":    len(snap.Sales),
		"expenses": len(snap.Expenses),
	})
}

func (h *ledgerHandler) handleSync(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": h.store.SyncStatus(), "log": h.store.SyncLog()})
}

func (h *ledgerHandler) handlePull(ctx *gin.Context) {
	if err := h.store.Pull(ctx.Request.Context()); err != nil {
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "status": h.store.SyncStatus()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": h.store.SyncStatus()})
}

// handleEvents streams store events as server-sent events until the client
// goes away.
func (h *ledgerHandler) handleEvents(ctx *gin.Context) {
	events, stop := h.store.Subscribe()
	defer stop()

	ctx.Stream(func(w io.Writer) bool {
		select {
		case e, ok := <-events:
			if !ok {
				return false
			}
			ctx.SSEvent(e.Type(), e)
			return true
		case <-ctx.Request.Context().Done():
			return false
		}
	})
}
