package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/tms-reconciler/internal/common"
	"github.com/joseph-ayodele/tms-reconciler/internal/reconcile"
	"github.com/joseph-ayodele/tms-reconciler/internal/request"
)

// maximum accepted request body
const maxBodyBytes = 8 << 20

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthFunc reports whether the service dependencies are reachable.
type HealthFunc func(ctx context.Context) error

// HTTPHandler exposes reconcile.Service over gin.
type HTTPHandler struct {
	svc    *reconcile.Service
	health HealthFunc
	logger *zap.Logger
}

func NewHTTPHandler(svc *reconcile.Service, health HealthFunc, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{svc: svc, health: health, logger: logger}
}

// NewRouter builds the gin engine with the middleware chain and every route.
func NewRouter(h *HTTPHandler, serviceName string) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.Use(Recovery(h.logger))
	r.Use(GinLogger(h.logger))
	r.Use(Tracing(serviceName)...)
	h.Register(r)
	return r
}

// Register mounts the routes on r.
func (h *HTTPHandler) Register(r gin.IRoutes) {
	r.GET("/healthz", h.healthz)
	r.POST("/rpc/validate_dcli_invoice", h.validate)
	r.POST("/rpc/export_validation", h.export)
	r.POST("/rpc/detect_duplicate_moves", h.detectDuplicates)
	r.POST("/invoices", h.saveInvoice)
	r.POST("/invoices/:vendor/:invoiceId/submit", h.submitInvoice)
}

func (h *HTTPHandler) healthz(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			ginLogger(c).Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) parse(c *gin.Context) (*request.ValidateRequest, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		h.fail(c, common.MalformedRequest("read body: %v", err))
		return nil, false
	}
	req, err := request.Parse(body)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return req, true
}

func (h *HTTPHandler) validate(c *gin.Context) {
	req, ok := h.parse(c)
	if !ok {
		return
	}
	res, err := h.svc.ValidateInvoice(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *HTTPHandler) export(c *gin.Context) {
	req, ok := h.parse(c)
	if !ok {
		return
	}
	out, err := h.svc.ExportValidation(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+out.FileName+`"`)
	c.Data(http.StatusOK, out.ContentType, out.Data)
}

func (h *HTTPHandler) detectDuplicates(c *gin.Context) {
	req, ok := h.parse(c)
	if !ok {
		return
	}
	report, err := h.svc.DetectDuplicates(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *HTTPHandler) saveInvoice(c *gin.Context) {
	req, ok := h.parse(c)
	if !ok {
		return
	}
	header, err := h.svc.SaveInvoice(c.Request.Context(), req.Invoice())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, header)
}

func (h *HTTPHandler) submitInvoice(c *gin.Context) {
	header, err := h.svc.SubmitInvoice(c.Request.Context(), c.Param("vendor"), c.Param("invoiceId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, header)
}

func (h *HTTPHandler) fail(c *gin.Context, err error) {
	code := HTTPStatus(err)
	body := errorBody{Code: "INTERNAL", Message: "internal error"}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		body.Code = appErr.Code
	}
	if code < http.StatusInternalServerError {
		body.Message = err.Error()
	} else {
		ginLogger(c).Error("request failed", zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(code, body)
}

// HTTPStatus maps an application error onto an HTTP status code. The reconciliation
// policy is server configuration, so an invalid one is a server fault.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrMalformedRequest), errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
