package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ngmgroup/ngm-hub-core/internal/domain/expense"
	"github.com/ngmgroup/ngm-hub-core/internal/export"
	"github.com/ngmgroup/ngm-hub-core/internal/scan"
	"github.com/ngmgroup/ngm-hub-core/internal/service"
	"github.com/ngmgroup/ngm-hub-core/internal/storage"
	"github.com/ngmgroup/ngm-hub-core/pkg/utils"
)

// maxReceiptBytes bounds scan uploads
const maxReceiptBytes = 20 << 20

// ScanMetrics reports extraction-method usage counts
type ScanMetrics interface {
	CountByMethod(ctx context.Context) (map[string]int, error)
}

// Handler exposes the expense core over HTTP
type Handler struct {
	expenses *service.ExpenseService
	status   *service.StatusService
	scanner  *scan.Pipeline
	exporter *export.AuditExporter
	receipts storage.ReceiptStore
	metrics  ScanMetrics
	logger   *zap.Logger
}

// NewHandler creates the API handler
func NewHandler(expenses *service.ExpenseService, status *service.StatusService, scanner *scan.Pipeline, exporter *export.AuditExporter, receipts storage.ReceiptStore, metrics ScanMetrics, logger *zap.Logger) *Handler {
	return &Handler{
		expenses: expenses,
		status:   status,
		scanner:  scanner,
		exporter: exporter,
		receipts: receipts,
		metrics:  metrics,
		logger:   logger,
	}
}

// Register mounts all routes on the router group
func (h *Handler) Register(api *gin.RouterGroup) {
	api.POST("/expenses", h.createExpense)
	api.GET("/expenses/:id", h.getExpense)
	api.PATCH("/expenses/:id", h.updateExpense)
	api.DELETE("/expenses/:id", h.deleteExpense)
	api.PATCH("/expenses/:id/status", h.changeStatus)
	api.POST("/expenses/:id/request-deletion", h.requestDeletion)
	api.GET("/expenses/:id/audit", h.auditTrail)
	api.GET("/expenses/:id/audit/export", h.auditExport)
	api.POST("/receipts/scan", h.scanReceipt)
	api.GET("/metrics/scans", h.scanMetrics)
}

type createExpenseRequest struct {
	ProjectID       string `json:"project_id" binding:"required"`
	VendorID        string `json:"vendor_id"`
	AccountID       string `json:"account_id"`
	Amount          string `json:"amount" binding:"required"`
	LineDescription string `json:"line_description" binding:"required"`
	TransactionDate string `json:"transaction_date"`
	TransactionType string `json:"transaction_type"`
	PaymentMethodID string `json:"payment_method_id"`
	BillReference   string `json:"bill_reference"`
	ReceiptURL      string `json:"receipt_url"`
}

func (h *Handler) createExpense(c *gin.Context) {
	var req createExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	e, err := h.expenses.Create(c.Request.Context(), service.CreateInput{
		ProjectID:       req.ProjectID,
		VendorID:        req.VendorID,
		AccountID:       req.AccountID,
		Amount:          req.Amount,
		LineDescription: utils.SanitizeString(req.LineDescription),
		TransactionDate: req.TransactionDate,
		TransactionType: req.TransactionType,
		PaymentMethodID: req.PaymentMethodID,
		BillReference:   req.BillReference,
		ReceiptURL:      req.ReceiptURL,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) getExpense(c *gin.Context) {
	e, err := h.expenses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

type updateExpenseRequest struct {
	AccountID       *string `json:"account_id"`
	Amount          *string `json:"amount"`
	LineDescription *string `json:"line_description"`
	TransactionDate *string `json:"transaction_date"`
	TransactionType *string `json:"transaction_type"`
	VendorID        *string `json:"vendor_id"`
	PaymentMethodID *string `json:"payment_method_id"`
	BillReference   *string `json:"bill_reference"`
	ReceiptURL      *string `json:"receipt_url"`
	Status          *string `json:"status"`
	Actor           string  `json:"actor" binding:"required"`
	Reason          string  `json:"reason"`
}

func (h *Handler) updateExpense(c *gin.Context) {
	var req updateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := expense.Patch{
		AccountID:       req.AccountID,
		LineDescription: req.LineDescription,
		TransactionDate: req.TransactionDate,
		TransactionType: req.TransactionType,
		VendorID:        req.VendorID,
		PaymentMethodID: req.PaymentMethodID,
		BillReference:   req.BillReference,
		ReceiptURL:      req.ReceiptURL,
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid amount %q", *req.Amount)})
			return
		}
		rounded := amount.Round(2)
		patch.Amount = &rounded
	}
	if req.Status != nil {
		status := expense.Status(*req.Status)
		patch.Status = &status
	}

	e, err := h.expenses.Update(c.Request.Context(), c.Param("id"), patch, req.Actor, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

type deleteExpenseRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

func (h *Handler) deleteExpense(c *gin.Context) {
	var req deleteExpenseRequest
	// Body is optional: pending expenses need neither actor nor reason
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.expenses.Delete(c.Request.Context(), c.Param("id"), req.Actor, req.Reason); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type changeStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Actor  string `json:"actor" binding:"required"`
	Reason string `json:"reason"`
}

func (h *Handler) changeStatus(c *gin.Context) {
	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	e, err := h.status.Transition(c.Request.Context(), c.Param("id"), expense.Status(req.Status), req.Actor, req.Reason, nil)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

type requestDeletionRequest struct {
	Actor string `json:"actor" binding:"required"`
}

func (h *Handler) requestDeletion(c *gin.Context) {
	var req requestDeletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	e, err := h.status.RequestDeletion(c.Request.Context(), c.Param("id"), req.Actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) auditTrail(c *gin.Context) {
	statusEntries, fieldEntries, err := h.expenses.AuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status_log": statusEntries,
		"change_log": fieldEntries,
	})
}

func (h *Handler) auditExport(c *gin.Context) {
	id := c.Param("id")
	statusEntries, fieldEntries, err := h.expenses.AuditTrail(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	data, err := h.exporter.Export(id, statusEntries, fieldEntries)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=audit-%s.xlsx", id))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *Handler) scanReceipt(c *gin.Context) {
	file, header, err := c.Request.FormFile("receipt")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receipt file is required"})
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if err := utils.ValidateScanMIME(mimeType); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxReceiptBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}
	if len(data) > maxReceiptBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receipt exceeds size limit"})
		return
	}

	result, err := h.scanner.Scan(c.Request.Context(), scan.Request{
		Data:              data,
		MIMEType:          mimeType,
		Mode:              c.PostForm("mode"),
		CorrectionContext: c.PostForm("correction_context"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	// With a project the drafts are persisted; without one the caller gets
	// the transient result to review first
	if projectID := c.PostForm("project_id"); projectID != "" {
		receiptURL := c.PostForm("receipt_url")
		if receiptURL == "" && h.receipts != nil {
			key, err := h.receipts.Save(projectID, mimeType, data)
			if err != nil {
				h.writeError(c, err)
				return
			}
			receiptURL = key
		}

		created, err := h.expenses.CreateFromScan(c.Request.Context(), projectID, receiptURL, result)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"scan": result, "expenses": created})
		return
	}

	c.JSON(http.StatusOK, gin.H{"scan": result})
}

func (h *Handler) scanMetrics(c *gin.Context) {
	counts, err := h.metrics.CountByMethod(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"by_method": counts})
}

// writeError maps domain errors onto HTTP status codes
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, expense.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, expense.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, expense.ErrStatusConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, expense.ErrValidation), errors.Is(err, expense.ErrReasonRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, scan.ErrExtraction):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Unhandled API error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
