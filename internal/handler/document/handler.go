package document

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vespl/caseflow-api/internal/handler"
	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/service/sequence"
)

type Handler struct {
	svc *sequence.Service
}

func NewHandler(svc *sequence.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/documents/numbers", h.nextNumber)
}

type nextNumberRequest struct {
	DocumentType string `json:"document_type" binding:"required,doctype"`
}

func (h *Handler) nextNumber(c *gin.Context) {
	var req nextNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	number, err := h.svc.NextDocumentNumber(c.Request.Context(), model.DocumentType(req.DocumentType))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{"number": number}))
}
