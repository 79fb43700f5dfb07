package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
	"github.com/noah-isme/sma-timetable-engine/internal/models"
	"github.com/noah-isme/sma-timetable-engine/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
	"github.com/noah-isme/sma-timetable-engine/pkg/response"
)

const maxTeachers = 512

type timetablePreviewResponse struct {
	Mode     string                         `json:"mode"`
	Proposal *dto.GenerateTimetableResponse `json:"proposal"`
}

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	Save(ctx context.Context, req dto.SaveTimetableRequest) (string, error)
	List(ctx context.Context, query dto.TimetableQuery) ([]models.TimetableRun, error)
	GetSlots(ctx context.Context, runID string) ([]models.TimetableSlot, error)
	Delete(ctx context.Context, runID string) error
	ExportCSV(ctx context.Context, runID string, w io.Writer) error
}

// TimetableHandler exposes the generation and run-management endpoints.
type TimetableHandler struct {
	service timetableGenerator
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.GeneratorService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Generate runs the engine for the posted instance and returns a preview
// proposal. Nothing is persisted until the proposal is saved.
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	if len(req.Teachers) > maxTeachers {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "teachers exceeds supported limit"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetablePreviewResponse{Mode: "preview", Proposal: result}, nil)
}

// Save persists a previewed proposal as a versioned run.
func (h *TimetableHandler) Save(c *gin.Context) {
	var req dto.SaveTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	id, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"runId": id})
}

// List returns stored runs for a term.
func (h *TimetableHandler) List(c *gin.Context) {
	query := dto.TimetableQuery{TermID: c.Query("termId")}
	runs, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, nil)
}

// Slots returns the stored grid of one run.
func (h *TimetableHandler) Slots(c *gin.Context) {
	slots, err := h.service.GetSlots(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Export renders the run as CSV blocks, one block per class. The export
// is buffered so lookup failures still produce a JSON error envelope.
func (h *TimetableHandler) Export(c *gin.Context) {
	runID := c.Param("id")
	var buf bytes.Buffer
	if err := h.service.ExportCSV(c.Request.Context(), runID, &buf); err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "timetable-"+runID+".csv"))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Delete removes a draft run.
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
