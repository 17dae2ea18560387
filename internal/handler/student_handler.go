package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster-api/internal/dto"
	"github.com/noah-isme/sma-roster-api/internal/middleware"
	"github.com/noah-isme/sma-roster-api/internal/models"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
	"github.com/noah-isme/sma-roster-api/pkg/response"
)

const maxImportSize = 10 << 20

type studentService interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Student, error)
	History(ctx context.Context, id string) ([]models.AuditLog, error)
	NextIndexNumber(ctx context.Context, classID string) (*dto.NextIndexNumberResponse, error)
	Create(ctx context.Context, req dto.CreateStudentRequest, actor *models.JWTClaims) (*models.Student, error)
	Update(ctx context.Context, id string, req dto.UpdateStudentRequest, actor *models.JWTClaims) (*models.Student, error)
	Deactivate(ctx context.Context, id string, actor *models.JWTClaims) error
	Export(ctx context.Context, filter models.StudentFilter, format string) (*dto.ExportFile, error)
	Import(ctx context.Context, r io.Reader, actor *models.JWTClaims) (*dto.ImportStudentsResult, error)
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students studentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name or index number"
// @Param classId query string false "Filter by class"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := studentFilter(c)
	filter.Page, filter.PageSize = pageParams(c)

	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// History godoc
// @Summary Student audit history
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/history [get]
func (h *StudentHandler) History(c *gin.Context) {
	logs, err := h.students.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// NextIndexNumber godoc
// @Summary Preview the next index number
// @Description Unlocked preview; the number is only reserved on create
// @Tags Students
// @Produce json
// @Param classId query string false "Class ID for per-class numbering"
// @Success 200 {object} response.Envelope
// @Router /students/next-index-number [get]
func (h *StudentHandler) NextIndexNumber(c *gin.Context) {
	res, err := h.students.NextIndexNumber(c.Request.Context(), strings.TrimSpace(c.Query("classId")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Create godoc
// @Summary Create student
// @Description Creates a student and allocates the next index number
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CreateStudentRequest
	if !bindJSON(c, &req) {
		return
	}
	student, err := h.students.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.UpdateStudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.UpdateStudentRequest
	if !bindJSON(c, &req) {
		return
	}
	student, err := h.students.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Delete godoc
// @Summary Deactivate student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if err := h.students.Deactivate(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export the student roster
// @Tags Students
// @Produce octet-stream
// @Param format query string false "csv, pdf or xlsx"
// @Param classId query string false "Filter by class"
// @Success 200 {file} binary
// @Router /students/export [get]
func (h *StudentHandler) Export(c *gin.Context) {
	file, err := h.students.Export(c.Request.Context(), studentFilter(c), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Import godoc
// @Summary Import students from a spreadsheet
// @Description Rows go through the regular create path; failed rows are reported
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "XLSX roster"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/import [post]
func (h *StudentHandler) Import(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	if header.Size > maxImportSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds 10MB"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read upload"))
		return
	}
	defer file.Close()

	result, err := h.students.Import(c.Request.Context(), file, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "failed_rows", len(result.Failed))
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

func studentFilter(c *gin.Context) models.StudentFilter {
	return models.StudentFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		ClassID:   c.Query("classId"),
		ClassName: c.Query("className"),
		Active:    boolQuery(c, "active"),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
}
