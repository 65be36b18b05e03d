package report

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/labreport/internal/model"
	reportService "github.com/jwalitptl/labreport/internal/service/report"
	"github.com/jwalitptl/labreport/pkg/errors"
	"github.com/jwalitptl/labreport/pkg/httputil"
)

type Handler struct {
	service reportService.ReportService
}

func NewHandler(service reportService.ReportService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	reports := r.Group("/reports")
	{
		reports.POST("", h.CreateReport)
		reports.GET("/:id", h.GetReport)
		reports.DELETE("/:id", h.DiscardReport)
		reports.PUT("/:id/patient", h.UpdatePatient)
		reports.PUT("/:id/tests", h.SelectReport)
		reports.POST("/:id/tests/rows", h.AddManualRow)
		reports.PUT("/:id/tests/rows/:index", h.EditManualRow)
		reports.PUT("/:id/tests/rows/:index/result", h.SetResult)
		reports.POST("/:id/tests/save", h.SaveTests)
		reports.PUT("/:id/options", h.SetOptions)
		reports.GET("/:id/preview", h.Preview)
		reports.GET("/:id/pdf", h.ExportPDF)
		reports.GET("/:id/xlsx", h.ExportXLSX)
		reports.POST("/:id/email", h.EmailReport)
	}
}

type addRowResponse struct {
	Index  int          `json:"index"`
	Report *model.Draft `json:"report"`
}

func (h *Handler) CreateReport(c *gin.Context) {
	draft, err := h.service.Create(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Header("Location", c.FullPath()+"/"+draft.ID.String())
	httputil.RespondWithSuccess(c, http.StatusCreated, draft)
}

func (h *Handler) GetReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	draft, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, draft)
}

func (h *Handler) DiscardReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	if err := h.service.Discard(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdatePatient answers a failed validation with the draft as well, so the
// form keeps what was typed.
func (h *Handler) UpdatePatient(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	var req model.PatientUpdate
	if err := httputil.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	draft, err := h.service.UpdatePatient(c.Request.Context(), id, req)
	if err != nil && draft != nil {
		httputil.RespondWithErrorData(c, err, draft)
		return
	}
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, draft)
}

func (h *Handler) SelectReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	var req model.SelectReportRequest
	if err := httputil.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	draft, err := h.service.SelectReport(c.Request.Context(), id, req.ReportType)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, draft)
}

func (h *Handler) AddManualRow(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	draft, index, err := h.service.AddManualRow(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, addRowResponse{Index: index, Report: draft})
}

func (h *Handler) EditManualRow(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	index, ok := rowIndex(c)
	if !ok {
		return
	}

	var req model.ManualRowRequest
	if err := httputil.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	draft, err := h.service.EditManualRow(c.Request.Context(), id, index, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, draft)
}

func (h *Handler) SetResult(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	index, ok := rowIndex(c)
	if !ok {
		return
	}

	var req model.ResultRequest
	if err := httputil.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	draft, err := h.service.SetResult(c.Request.Context(), id, index, req.Result)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, draft)
}

func (h *Handler) SaveTests(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	draft, err := h.service.SaveTests(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, draft)
}

func (h *Handler) SetOptions(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	var req model.OptionsUpdate
	if err := httputil.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	draft, err := h.service.SetOptions(c.Request.Context(), id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, draft)
}

func (h *Handler) Preview(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	layout, err := h.service.Preview(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, layout)
}

func (h *Handler) ExportPDF(c *gin.Context) {
	h.export(c, "pdf")
}

func (h *Handler) ExportXLSX(c *gin.Context) {
	h.export(c, "xlsx")
}

func (h *Handler) export(c *gin.Context, format string) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	doc, err := h.service.Export(c.Request.Context(), id, format)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if doc.Pages > 0 {
		c.Header("X-Page-Count", strconv.Itoa(doc.Pages))
	}
	httputil.RespondWithFile(c, doc.Filename, doc.ContentType, doc.Data)
}

func (h *Handler) EmailReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	var req model.EmailRequest
	if err := httputil.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.EmailReport(c.Request.Context(), id, req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, &httputil.Response{
		Status:  httputil.StatusSuccess,
		Message: "report sent to " + req.To,
	})
}

func reportID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid report ID", err))
		return uuid.Nil, false
	}
	return id, true
}

func rowIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid row index", err))
		return 0, false
	}
	return index, true
}
