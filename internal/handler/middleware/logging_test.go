//go:build unit

package middleware_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"quizrush/internal/handler/middleware"
	"quizrush/internal/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogConfig() config.LogConfig {
	return config.LogConfig{Level: "info", TimeFormat: "2006-01-02 15:04:05.000"}
}

func TestLoggingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	perform := func(t *testing.T, logger *slog.Logger, status int) {
		t.Helper()

		engine := gin.New()
		engine.Use(middleware.LoggingMiddleware(logger, testLogConfig()))
		engine.GET("/ping", func(c *gin.Context) {
			c.Status(status)
		})

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		require.Equal(t, status, rec.Code)
	}

	t.Run("success: request logs go to the injected logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		perform(t, logger, http.StatusOK)

		out := buf.String()
		assert.Contains(t, out, "Request started")
		assert.Contains(t, out, "Request completed")
		assert.Contains(t, out, "request_id")
		assert.Contains(t, out, `"status_code":200`)
	})

	t.Run("success: server errors log at error level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		perform(t, logger, http.StatusInternalServerError)

		assert.Contains(t, buf.String(), `"level":"ERROR"`)
	})
}
