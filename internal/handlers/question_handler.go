// Package handlers provides the HTTP API for question selection and accounts.
package handlers

import (
	"math/rand"
	"net/http"

	"speakapp/internal/middleware"
	"speakapp/internal/models"
	"speakapp/internal/observability"
	"speakapp/internal/services"
	contextutils "speakapp/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// QuestionHandler serves the question selection endpoints.
type QuestionHandler struct {
	rotator services.Rotator
	store   services.QuestionStorer
	logger  *observability.Logger
}

// NewQuestionHandler creates a new question handler
func NewQuestionHandler(rotator services.Rotator, store services.QuestionStorer, logger *observability.Logger) *QuestionHandler {
	return &QuestionHandler{
		rotator: rotator,
		store:   store,
		logger:  logger,
	}
}

// recordUsageRequest is the body for POST /v1/questions/record-usage.
type recordUsageRequest struct {
	QuestionText      string `json:"questionText" binding:"required"`
	Section           string `json:"section" binding:"required,section"`
	PracticeSessionID string `json:"practiceSessionId"`
	TestSection       string `json:"testSection"`
}

// GetSection handles GET /v1/questions/section/:section.
func (h *QuestionHandler) GetSection(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "GetSection")
	var err error
	defer observability.FinishSpan(span, &err)

	section, parseErr := models.ParseSection(c.Param("section"))
	if parseErr != nil {
		err = parseErr
		HandleValidationError(c, "section", c.Param("section"), "must be part1, part2, or part3")
		return
	}

	result, err := h.rotator.SelectForSection(ctx, OptionalUserID(c), section)
	if err != nil {
		h.logger.Error(ctx, "Failed to select questions for section", err, map[string]interface{}{
			"section": section.String(),
		})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetCompleteTest handles GET /v1/questions/complete-test. The response keys
// follow the section names so clients can render a full three-part test.
func (h *QuestionHandler) GetCompleteTest(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "GetCompleteTest")
	var err error
	defer observability.FinishSpan(span, &err)

	test, err := h.rotator.SelectCompleteTest(ctx, OptionalUserID(c))
	if err != nil {
		h.logger.Error(ctx, "Failed to assemble complete test", err, nil)
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"part1":             test.Part1,
		"part2":             test.Part2,
		"part3":             test.Part3,
		"practiceSessionId": uuid.NewString(),
	})
}

// GetRandom handles GET /v1/questions/random: a shaped selection for a
// uniformly random section.
func (h *QuestionHandler) GetRandom(c *gin.Context) {
	sections := models.AllSections()
	section := sections[rand.Intn(len(sections))]
	h.serveSection(c, section)
}

// GetRandomBySection handles GET /v1/questions/random/:section.
func (h *QuestionHandler) GetRandomBySection(c *gin.Context) {
	section, err := models.ParseSection(c.Param("section"))
	if err != nil {
		HandleValidationError(c, "section", c.Param("section"), "must be part1, part2, or part3")
		return
	}
	h.serveSection(c, section)
}

func (h *QuestionHandler) serveSection(c *gin.Context, section models.Section) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "serveSection",
		observability.AttributeSection(section),
	)
	var err error
	defer observability.FinishSpan(span, &err)

	result, err := h.rotator.SelectForSection(ctx, OptionalUserID(c), section)
	if err != nil {
		h.logger.Error(ctx, "Failed to select random questions", err, map[string]interface{}{
			"section": section.String(),
		})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RecordUsage handles POST /v1/questions/record-usage. Requires an
// authenticated session. The response is always 200 with a success flag;
// consumption recording is advisory and the client keeps working either way.
func (h *QuestionHandler) RecordUsage(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "RecordUsage")
	var err error
	defer observability.FinishSpan(span, &err)

	userID := c.GetInt(middleware.UserIDKey)

	var req recordUsageRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		err = bindErr
		StandardizeHTTPError(c, http.StatusBadRequest, "Missing required fields", bindErr.Error())
		return
	}

	section, parseErr := models.ParseSection(req.Section)
	if parseErr != nil {
		err = parseErr
		HandleValidationError(c, "section", req.Section, "must be part1, part2, or part3")
		return
	}

	sessionID := req.PracticeSessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if err = h.rotator.RecordConsumption(ctx, userID, req.QuestionText, section, sessionID, req.TestSection); err != nil {
		h.logger.Warn(ctx, "Failed to record question usage", map[string]interface{}{
			"user_id": userID,
			"section": section.String(),
			"error":   err.Error(),
		})
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Question usage not recorded"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Question usage recorded"})
}

// Count handles GET /v1/questions/count, optionally filtered by ?section=.
func (h *QuestionHandler) Count(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "Count")
	var err error
	defer observability.FinishSpan(span, &err)

	var section *models.Section
	if raw := c.Query("section"); raw != "" {
		parsed, parseErr := models.ParseSection(raw)
		if parseErr != nil {
			err = parseErr
			HandleValidationError(c, "section", raw, "must be part1, part2, or part3")
			return
		}
		section = &parsed
	}

	count, err := h.store.CountActive(ctx, section)
	if err != nil {
		h.logger.Error(ctx, "Failed to count questions", err, nil)
		HandleAppError(c, contextutils.WrapError(err, "failed to count questions"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}
