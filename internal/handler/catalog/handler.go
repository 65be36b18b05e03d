package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	catalogService "github.com/jwalitptl/labreport/internal/service/catalog"
	"github.com/jwalitptl/labreport/pkg/errors"
	"github.com/jwalitptl/labreport/pkg/httputil"
)

// Handler serves the read-only lists the report form is built from.
type Handler struct {
	catalog *catalogService.Catalog
	doctors []string
}

func NewHandler(catalog *catalogService.Catalog, doctors []string) *Handler {
	return &Handler{catalog: catalog, doctors: doctors}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	catalog := r.Group("/catalog")
	{
		catalog.GET("", h.ListTypes)
		catalog.GET("/:type", h.GetType)
	}
	r.GET("/doctors", h.ListDoctors)
}

type rowResponse struct {
	Name  string `json:"name"`
	Range string `json:"range"`
	Unit  string `json:"unit"`
}

type typeResponse struct {
	ReportType string        `json:"report_type"`
	Rows       []rowResponse `json:"rows"`
}

func (h *Handler) ListTypes(c *gin.Context) {
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"types": h.catalog.Types()})
}

func (h *Handler) GetType(c *gin.Context) {
	reportType := c.Param("type")
	rows, err := h.catalog.Rows(reportType)
	if err != nil {
		httputil.RespondWithError(c, errors.NewNotFound("report type", err))
		return
	}

	resp := typeResponse{ReportType: reportType, Rows: make([]rowResponse, 0, len(rows))}
	for _, r := range rows {
		resp.Rows = append(resp.Rows, rowResponse{Name: r.Name(), Range: r.Range(), Unit: r.Unit()})
	}
	httputil.RespondWithSuccess(c, http.StatusOK, resp)
}

func (h *Handler) ListDoctors(c *gin.Context) {
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"doctors": h.doctors})
}
