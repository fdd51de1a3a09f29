package notification

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vespl/caseflow-api/internal/handler"
	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/service/notification"
)

type Handler struct {
	svc *notification.Service
}

func NewHandler(svc *notification.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/notifications", h.enqueue)
}

type enqueueRequest struct {
	CaseID            string        `json:"case_id" binding:"omitempty,uuid"`
	TemplateCode      string        `json:"template_code" binding:"required"`
	RecipientUserID   string        `json:"recipient_user_id" binding:"omitempty,uuid"`
	RecipientRole     string        `json:"recipient_role"`
	RecipientLocation string        `json:"recipient_location"`
	Context           model.JSONMap `json:"context"`
	DedupMinutes      int           `json:"dedup_minutes" binding:"omitempty,min=0"`
}

func (h *Handler) enqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	enq := notification.EnqueueRequest{
		TemplateCode: req.TemplateCode,
		TriggerEvent: model.TriggerManual,
		Context:      req.Context,
		DedupWindow:  time.Duration(req.DedupMinutes) * time.Minute,
		Recipient: model.Recipient{
			Role:     req.RecipientRole,
			Location: req.RecipientLocation,
		},
	}
	if req.CaseID != "" {
		id, _ := uuid.Parse(req.CaseID)
		enq.CaseID = &id
	}
	if req.RecipientUserID != "" {
		id, _ := uuid.Parse(req.RecipientUserID)
		enq.Recipient.UserID = &id
	}

	enqueued, err := h.svc.Enqueue(c.Request.Context(), enq)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, handler.NewSuccessResponse(gin.H{"enqueued": enqueued}))
}
