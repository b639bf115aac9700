package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"speakapp/internal/config"
	"speakapp/internal/middleware"
	"speakapp/internal/models"
	"speakapp/internal/observability"
	"speakapp/internal/services"
)

type mockRotator struct {
	mock.Mock
}

func (m *mockRotator) SelectForSection(ctx context.Context, userID *int, section models.Section) (*models.SelectionResult, error) {
	args := m.Called(ctx, userID, section)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SelectionResult), args.Error(1)
}

func (m *mockRotator) SelectCompleteTest(ctx context.Context, userID *int) (*models.CompleteTest, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CompleteTest), args.Error(1)
}

func (m *mockRotator) RecordConsumption(ctx context.Context, userID int, questionText string, section models.Section, practiceSessionID, testSection string) error {
	return m.Called(ctx, userID, questionText, section, practiceSessionID, testSection).Error(0)
}

type stubStore struct {
	count    int
	countErr error
}

func (s *stubStore) EligibleForUser(context.Context, int, models.Section, time.Time, int) ([]models.Question, error) {
	return nil, nil
}
func (s *stubStore) OrderedByUsage(context.Context, models.Section, int) ([]models.Question, error) {
	return nil, nil
}
func (s *stubStore) Part3GroupsForUser(context.Context, int, time.Time) (map[string][]models.Question, error) {
	return nil, nil
}
func (s *stubStore) Part3Groups(context.Context) (map[string][]models.Question, error) {
	return nil, nil
}
func (s *stubStore) GetOrCreate(context.Context, models.Question) (*models.Question, error) {
	return nil, nil
}
func (s *stubStore) MarkUsed(context.Context, int) error { return nil }
func (s *stubStore) AppendHistory(context.Context, models.UserQuestionHistory) error {
	return nil
}
func (s *stubStore) CountActive(context.Context, *models.Section) (int, error) {
	return s.count, s.countErr
}
func (s *stubStore) CountAll(context.Context) (int, error) { return s.count, s.countErr }
func (s *stubStore) Deactivate(context.Context, int) error { return nil }
func (s *stubStore) GetByID(context.Context, int) (*models.Question, error) {
	return nil, nil
}

var _ services.QuestionStorer = (*stubStore)(nil)

func newTestRouter(rotator services.Rotator, store services.QuestionStorer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	RegisterValidators()

	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	handler := NewQuestionHandler(rotator, store, logger)

	router := gin.New()
	router.Use(sessions.Sessions("test-session", cookie.NewStore([]byte("test-secret"))))

	router.GET("/v1/questions/section/:section", handler.GetSection)
	router.GET("/v1/questions/random/:section", handler.GetRandomBySection)
	router.GET("/v1/questions/complete-test", handler.GetCompleteTest)
	router.GET("/v1/questions/count", handler.Count)
	router.POST("/v1/questions/record-usage", middleware.RequireAuth(), handler.RecordUsage)
	router.POST("/v1/questions/record-usage-authed", fakeAuth(42), handler.RecordUsage)

	return router
}

// fakeAuth injects an authenticated user without a real session round trip
func fakeAuth(userID int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Set(middleware.UsernameKey, "testuser")
		c.Next()
	}
}

func TestGetSectionReturnsShapedResult(t *testing.T) {
	rotator := new(mockRotator)
	router := newTestRouter(rotator, &stubStore{})

	rotator.On("SelectForSection", mock.Anything, (*int)(nil), models.SectionPart1).
		Return(&models.SelectionResult{
			Kind:      models.ShapeFlatList,
			Section:   models.SectionPart1,
			Questions: []string{"q1", "q2", "q3", "q4"},
		}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/questions/section/part1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "questions", body["type"])
	assert.Equal(t, "part1", body["section"])
	assert.Len(t, body["questions"], 4)
}

func TestGetSectionInvalidSection(t *testing.T) {
	rotator := new(mockRotator)
	router := newTestRouter(rotator, &stubStore{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/questions/section/part9", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	rotator.AssertNotCalled(t, "SelectForSection", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetSectionCueCardWireShape(t *testing.T) {
	rotator := new(mockRotator)
	router := newTestRouter(rotator, &stubStore{})

	rotator.On("SelectForSection", mock.Anything, (*int)(nil), models.SectionPart2).
		Return(&models.SelectionResult{
			Kind:         models.ShapeCueCard,
			Section:      models.SectionPart2,
			Topic:        "Describe a memorable trip you have taken",
			BulletPoints: []string{"Where did you go?"},
		}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/questions/section/part2", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "cue_card", body["type"])
	assert.Equal(t, "Describe a memorable trip you have taken", body["topic"])
	assert.Len(t, body["bulletPoints"], 1)
}

func TestGetCompleteTest(t *testing.T) {
	rotator := new(mockRotator)
	router := newTestRouter(rotator, &stubStore{})

	rotator.On("SelectCompleteTest", mock.Anything, (*int)(nil)).
		Return(&models.CompleteTest{
			Part1: &models.SelectionResult{Kind: models.ShapeFlatList, Section: models.SectionPart1, Questions: []string{"q1"}},
			Part2: &models.SelectionResult{Kind: models.ShapeCueCard, Section: models.SectionPart2, Topic: "t"},
			Part3: &models.SelectionResult{Kind: models.ShapeGroupedList, Section: models.SectionPart3, Questions: []string{"q2"}, Topic: "travel_tourism"},
		}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/questions/complete-test", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "part1")
	assert.Contains(t, body, "part2")
	assert.Contains(t, body, "part3")
	assert.NotEmpty(t, body["practiceSessionId"])
}

func TestRecordUsageRequiresAuth(t *testing.T) {
	rotator := new(mockRotator)
	router := newTestRouter(rotator, &stubStore{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/questions/record-usage",
		strings.NewReader(`{"questionText":"q","section":"part1"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	rotator.AssertNotCalled(t, "RecordConsumption", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordUsageSuccess(t *testing.T) {
	rotator := new(mockRotator)
	router := newTestRouter(rotator, &stubStore{})

	rotator.On("RecordConsumption", mock.Anything, 42, "What do you do for work or study?",
		models.SectionPart1, "sess-1", "part1").Return(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/questions/record-usage-authed",
		strings.NewReader(`{"questionText":"What do you do for work or study?","section":"part1","practiceSessionId":"sess-1","testSection":"part1"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
}

func TestRecordUsageFailureStillReturns200(t *testing.T) {
	rotator := new(mockRotator)
	router := newTestRouter(rotator, &stubStore{})

	rotator.On("RecordConsumption", mock.Anything, 42, mock.Anything, models.SectionPart2, mock.Anything, mock.Anything).
		Return(errors.New("db down"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/questions/record-usage-authed",
		strings.NewReader(`{"questionText":"Describe a trip","section":"part2"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

func TestRecordUsageMissingFields(t *testing.T) {
	rotator := new(mockRotator)
	router := newTestRouter(rotator, &stubStore{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/questions/record-usage-authed",
		strings.NewReader(`{"section":"part1"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCount(t *testing.T) {
	rotator := new(mockRotator)
	router := newTestRouter(rotator, &stubStore{count: 32})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/questions/count", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(32), body["count"])
}

func TestCountInvalidSectionFilter(t *testing.T) {
	rotator := new(mockRotator)
	router := newTestRouter(rotator, &stubStore{count: 32})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/questions/count?section=nope", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
