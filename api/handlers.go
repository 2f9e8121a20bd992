package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mmdatafocus/invoice-sieve/appctx"
	"github.com/mmdatafocus/invoice-sieve/internal/apperr"
	"github.com/mmdatafocus/invoice-sieve/internal/orchestrator"
)

// Handler exposes the sieve's REST surface over an Orchestrator.
type Handler struct {
	orch *orchestrator.Orchestrator
}

func NewHandler(orch *orchestrator.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// ScoreInvoice handles POST /scoreInvoice.
func (h *Handler) ScoreInvoice(c *gin.Context) {
	tenantID, ok := appctx.GetString(c.Request.Context(), appctx.ContextKeyTenantId)
	if !ok || tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	actor, _ := appctx.GetString(c.Request.Context(), appctx.ContextKeyActor)

	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(rawBody))

	var in InvoiceIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := toOrchestratorRequest(tenantID, actor, c.GetHeader("Idempotency-Key"), in, rawBody)

	result, err := h.orch.Score(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toScoreResponse(result, traceIDFromHeaders(c)))
}

// GetDecision handles GET /invoice/:invoice_id/decision.
func (h *Handler) GetDecision(c *gin.Context) {
	tenantID, ok := appctx.GetString(c.Request.Context(), appctx.ContextKeyTenantId)
	if !ok || tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	invoiceID := c.Param("invoice_id")
	result, err := h.orch.GetLatestDecision(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDecisionOut(result))
}

// Healthz handles GET /healthz. It carries no auth and no dependency
// check: liveness, not readiness.
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrSchema):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrAuth):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrTenantMismatch):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrDataQuality), errors.Is(err, apperr.ErrDegraded):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// traceIDFromHeaders mirrors the teacher's upload-path
// requestIDFromHeaders: prefer a caller-supplied correlation id over
// minting one, so a request can be followed across services.
func traceIDFromHeaders(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader("X-Correlation-Id")); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.GetHeader("X-Request-Id")); id != "" {
		return id
	}
	return uuid.NewString()
}

func toOrchestratorRequest(tenantID, actor, idempotencyKey string, in InvoiceIn, raw []byte) orchestrator.Request {
	lines := make([]orchestrator.LineItemInput, len(in.LineItems))
	for i, li := range in.LineItems {
		lines[i] = orchestrator.LineItemInput{
			Desc:       li.Desc,
			Qty:        li.Qty,
			UnitPrice:  li.UnitPrice,
			Amount:     li.Amount,
			SKU:        li.SKU,
			GLCode:     li.GLCode,
			CostCenter: li.CostCenter,
		}
	}
	return orchestrator.Request{
		TenantID:       tenantID,
		Actor:          actor,
		IdempotencyKey: idempotencyKey,
		InvoiceID:      in.InvoiceID,
		VendorID:       in.VendorID,
		VendorName:     in.VendorName,
		InvoiceNumber:  in.InvoiceNumber,
		InvoiceDate:    in.InvoiceDate,
		Currency:       in.Currency,
		Total:          in.Total,
		TaxTotal:       in.TaxTotal,
		PONumber:       in.PONumber,
		RemitAccount:   in.RemitBankIBANOrAccount,
		RemitName:      in.RemitName,
		PDFHash:        in.PDFHash,
		Terms:          in.Terms,
		LineItems:      lines,
		RawPayload:     raw,
	}
}

func toScoreResponse(r *orchestrator.Result, traceID string) ScoreResponse {
	return ScoreResponse{
		RiskScore:    r.RiskScore,
		Decision:     string(r.Decision),
		ReasonCodes:  r.ReasonCodes,
		TopMatches:   toTopMatches(r.TopMatches),
		Explanations: toExplanations(r.Explanations),
		TraceID:      traceID,
	}
}

func toDecisionOut(r *orchestrator.Result) DecisionOut {
	return DecisionOut{
		RiskScore:    r.RiskScore,
		Decision:     string(r.Decision),
		ReasonCodes:  r.ReasonCodes,
		TopMatches:   toTopMatches(r.TopMatches),
		Explanations: toExplanations(r.Explanations),
	}
}

func toTopMatches(in []orchestrator.TopMatch) []TopMatch {
	out := make([]TopMatch, len(in))
	for i, m := range in {
		out[i] = TopMatch{InvoiceID: m.InvoiceID, Similarity: m.Similarity, Features: m.Features}
	}
	return out
}

func toExplanations(in []orchestrator.Explanation) []FeatureExplanation {
	out := make([]FeatureExplanation, len(in))
	for i, e := range in {
		out[i] = FeatureExplanation{Feature: e.Feature, Value: e.Value}
	}
	return out
}
