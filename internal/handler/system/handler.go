package system

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vespl/caseflow-api/internal/handler"
	"github.com/vespl/caseflow-api/internal/scheduler"
)

type Handler struct {
	sched *scheduler.Scheduler
}

func NewHandler(sched *scheduler.Scheduler) *Handler {
	return &Handler{sched: sched}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/scheduler/status", h.schedulerStatus)
}

func (h *Handler) schedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.sched.Status()))
}
