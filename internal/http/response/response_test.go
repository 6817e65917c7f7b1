package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

func run(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h(c)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestSuccessEnvelope(t *testing.T) {
	w, body := run(t, func(c *gin.Context) { Success(c, gin.H{"id": 1}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.NotNil(t, body["data"])
	assert.Nil(t, body["error"])
}

func TestPaginatedEnvelope(t *testing.T) {
	_, body := run(t, func(c *gin.Context) { Paginated(c, []int{1, 2}, 5, 2, 2) })
	p := body["pagination"].(map[string]any)
	assert.Equal(t, 5.0, p["total"])
	assert.Equal(t, true, p["has_more"])
}

func TestErrorEnvelope_AppError(t *testing.T) {
	w, body := run(t, func(c *gin.Context) { Error(c, apperror.ErrProposalNotFound) })
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, body["success"])
	e := body["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", e["code"])
	assert.Equal(t, "предложение не найдено", e["message"])
}

func TestErrorEnvelope_MasksUntypedErrors(t *testing.T) {
	w, body := run(t, func(c *gin.Context) { Error(c, errors.New("pq: relation does not exist")) })
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	e := body["error"].(map[string]any)
	assert.Equal(t, "INTERNAL_ERROR", e["code"])
	assert.Equal(t, "внутренняя ошибка сервера", e["message"])
}

func TestErrorEnvelope_GoneStatus(t *testing.T) {
	w, _ := run(t, func(c *gin.Context) { Error(c, apperror.New(apperror.ErrCodeGone, "ссылка истекла")) })
	assert.Equal(t, http.StatusGone, w.Code)
}
