package caseflow

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vespl/caseflow-api/internal/handler"
	"github.com/vespl/caseflow-api/internal/middleware"
	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/service/caseflow"
)

type Handler struct {
	svc *caseflow.Service
}

func NewHandler(svc *caseflow.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	cases := r.Group("/cases")
	{
		cases.POST("", h.createCase)
		cases.GET("", h.listCases)
		cases.GET("/:id", h.getCase)
		cases.GET("/:id/history", h.getCaseHistory)
		cases.POST("/:id/transitions", h.transition)
	}
	history := r.Group("/history/:refType/:refID")
	{
		history.GET("", h.getHistory)
		history.POST("", h.recordHistory)
	}
}

type createCaseRequest struct {
	Title      string `json:"title" binding:"required"`
	Priority   string `json:"priority" binding:"omitempty,oneof=low medium high"`
	ClientID   string `json:"client_id" binding:"required,uuid"`
	AssigneeID string `json:"assignee_id" binding:"required,uuid"`
}

func (h *Handler) createCase(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing actor"))
		return
	}

	var req createCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	clientID, _ := uuid.Parse(req.ClientID)
	assigneeID, _ := uuid.Parse(req.AssigneeID)

	created, err := h.svc.CreateCase(c.Request.Context(), caseflow.CreateCaseInput{
		Title:      req.Title,
		Priority:   model.Priority(req.Priority),
		ClientID:   clientID,
		AssigneeID: assigneeID,
		ActorID:    actor.ID,
	})
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) getCase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid case id"))
		return
	}

	found, err := h.svc.GetCase(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(found))
}

func (h *Handler) listCases(c *gin.Context) {
	var filter model.CaseFilter
	if v := c.Query("status"); v != "" {
		status := model.CaseStatus(v)
		filter.Status = &status
	}
	if v := c.Query("state"); v != "" {
		state := model.CaseState(v)
		filter.State = &state
	}
	if v := c.Query("priority"); v != "" {
		priority := model.Priority(v)
		filter.Priority = &priority
	}
	if err := c.ShouldBindQuery(&filter.Pagination); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	cases, err := h.svc.ListCases(c.Request.Context(), filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(cases))
}

type transitionRequest struct {
	ToState string `json:"to_state" binding:"required,casestate"`
	Note    string `json:"note"`
}

func (h *Handler) transition(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing actor"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid case id"))
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	tr, err := h.svc.Transition(c.Request.Context(), id, model.CaseState(req.ToState), actor.ID, req.Note)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(tr))
}

func (h *Handler) getCaseHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid case id"))
		return
	}

	trs, err := h.svc.GetCaseHistory(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(trs))
}

type recordHistoryRequest struct {
	StatusLabel string `json:"status_label" binding:"required"`
	Note        string `json:"note"`
}

func (h *Handler) recordHistory(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing actor"))
		return
	}

	refID, err := uuid.Parse(c.Param("refID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid reference id"))
		return
	}

	var req recordHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	tr, err := h.svc.RecordHistory(c.Request.Context(),
		model.ReferenceType(c.Param("refType")), refID,
		req.StatusLabel, req.Note, actor.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(tr))
}

func (h *Handler) getHistory(c *gin.Context) {
	refID, err := uuid.Parse(c.Param("refID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid reference id"))
		return
	}

	trs, err := h.svc.GetHistory(c.Request.Context(), model.ReferenceType(c.Param("refType")), refID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(trs))
}
