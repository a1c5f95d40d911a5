package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestGinMiddleware(t *testing.T) {
	t.Run("logs 2xx at info with request fields", func(t *testing.T) {
		log, logs := newObservedLogger()

		r := gin.New()
		r.Use(func(c *gin.Context) { c.Set("request_id", "req-1") })
		r.Use(GinMiddleware(log))
		r.GET("/documents", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/documents?page=2", nil)
		r.ServeHTTP(w, req)

		entries := logs.FilterMessage("http request").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.InfoLevel, entries[0].Level)

		fields := entries[0].ContextMap()
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "GET", fields["method"])
		assert.Equal(t, "/documents", fields["path"])
		assert.Equal(t, "page=2", fields["query"])
		assert.EqualValues(t, http.StatusOK, fields["status"])
	})

	t.Run("levels by status class", func(t *testing.T) {
		log, logs := newObservedLogger()

		r := gin.New()
		r.Use(GinMiddleware(log))
		r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
		r.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/broken", nil))

		entries := logs.FilterMessage("http request").All()
		require.Len(t, entries, 2)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	})

	t.Run("threads request id into the request context", func(t *testing.T) {
		log, _ := newObservedLogger()

		var seen string
		r := gin.New()
		r.Use(func(c *gin.Context) { c.Set("request_id", "req-9") })
		r.Use(GinMiddleware(log))
		r.GET("/x", func(c *gin.Context) {
			seen = RequestIDFromContext(c.Request.Context())
			c.Status(http.StatusOK)
		})

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, "req-9", seen)
	})
}

func TestRecovery(t *testing.T) {
	log, logs := newObservedLogger()

	r := gin.New()
	r.Use(Recovery(log))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	entries := logs.FilterMessage("panic recovered").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0].ContextMap()["error"])
}

func TestGetGinLogger(t *testing.T) {
	t.Run("returns scoped logger when set", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		log, _ := newObservedLogger()
		c.Set("logger", log)

		assert.Same(t, log, GetGinLogger(c))
	})

	t.Run("falls back to nop", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		assert.NotNil(t, GetGinLogger(c))
	})
}
