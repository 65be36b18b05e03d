package sequence

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/labreport/internal/model"
	sequenceService "github.com/jwalitptl/labreport/internal/service/sequence"
	"github.com/jwalitptl/labreport/pkg/errors"
	"github.com/jwalitptl/labreport/pkg/httputil"
)

type Handler struct {
	service sequenceService.SequenceService
	backend string
}

func NewHandler(service sequenceService.SequenceService, backend string) *Handler {
	return &Handler{service: service, backend: backend}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/sequence", h.GetState)
}

type stateResponse struct {
	Backend string                `json:"backend"`
	State   *model.SequencerState `json:"state"`
}

// GetState reports the last issued counter; state is null before the first
// identifier is issued.
func (h *Handler) GetState(c *gin.Context) {
	state, err := h.service.Current(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, errors.NewUnavailable("sequence store unavailable", err))
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, stateResponse{Backend: h.backend, State: state})
}
