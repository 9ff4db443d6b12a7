package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YusufStar/code-craft/internal/domain"
	"github.com/YusufStar/code-craft/internal/service"
)

// ExecuteHandler exposes the execution gateway over HTTP.
type ExecuteHandler struct {
	executionService *service.ExecutionService
}

// NewExecuteHandler creates an ExecuteHandler.
func NewExecuteHandler(executionService *service.ExecutionService) *ExecuteHandler {
	if executionService == nil {
		panic("executionService must be non-nil for ExecuteHandler")
	}
	return &ExecuteHandler{executionService: executionService}
}

// RunRequest is the execution input. RoomID is optional: with it the run is
// gated on canPlay and the output is broadcast to the room, without it the
// run is private to the caller.
type RunRequest struct {
	RoomID   *uint  `json:"room_id"`
	Language string `json:"language"`
	Version  string `json:"version"`
	Code     string `json:"code" binding:"required"`
}

// Run handles POST /api/execute.
func (h *ExecuteHandler) Run(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	result, err := h.executionService.Run(c.Request.Context(), userID, req.RoomID, req.Language, req.Version, req.Code)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{
		"status": result.Status,
		"stdout": result.Stdout,
		"stderr": result.Stderr,
		"output": result.RenderOutput(),
	})
}

// SubmitRequest runs a solution against a set of test cases.
type SubmitRequest struct {
	Language string               `json:"language"`
	Version  string               `json:"version"`
	Code     string               `json:"code" binding:"required"`
	Cases    []domain.ProblemCase `json:"cases" binding:"required,min=1"`
}

// Submit handles POST /api/execute/submit.
func (h *ExecuteHandler) Submit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	result, err := h.executionService.RunProblem(c.Request.Context(), userID, req.Language, req.Version, req.Code, req.Cases)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}
