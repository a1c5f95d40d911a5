package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func ok(c *gin.Context) { c.Status(http.StatusOK) }

func TestRouter_Setup(t *testing.T) {
	t.Run("mounts groups under the versioned prefix", func(t *testing.T) {
		engine := gin.New()

		settlement := NewDomainGroup("settlement", "/settlement").
			POST("/settle", ok).
			GET("/documents", ok)
		ledger := NewDomainGroup("ledger", "/ledger").
			GET("/entries", ok)

		NewRouter(engine).Register(settlement).Register(ledger).Setup()

		assert.Equal(t, http.StatusOK, perform(engine, http.MethodPost, "/api/v1/settlement/settle").Code)
		assert.Equal(t, http.StatusOK, perform(engine, http.MethodGet, "/api/v1/settlement/documents").Code)
		assert.Equal(t, http.StatusOK, perform(engine, http.MethodGet, "/api/v1/ledger/entries").Code)
		assert.Equal(t, http.StatusNotFound, perform(engine, http.MethodGet, "/settlement/documents").Code)
	})

	t.Run("respects a custom API version", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("system", "/system").GET("/ping", ok)
		NewRouter(engine, WithAPIVersion("v2")).Register(g).Setup()

		assert.Equal(t, http.StatusOK, perform(engine, http.MethodGet, "/api/v2/system/ping").Code)
		assert.Equal(t, http.StatusNotFound, perform(engine, http.MethodGet, "/api/v1/system/ping").Code)
	})
}

func TestDomainGroup(t *testing.T) {
	t.Run("registers all verbs", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("accounts", "/accounts").
			GET("", ok).
			POST("", ok).
			PUT("/:code/name", ok).
			PATCH("/:code", ok).
			DELETE("/:code", ok)
		NewRouter(engine).Register(g).Setup()

		assert.Equal(t, http.StatusOK, perform(engine, http.MethodGet, "/api/v1/accounts").Code)
		assert.Equal(t, http.StatusOK, perform(engine, http.MethodPost, "/api/v1/accounts").Code)
		assert.Equal(t, http.StatusOK, perform(engine, http.MethodPut, "/api/v1/accounts/1122/name").Code)
		assert.Equal(t, http.StatusOK, perform(engine, http.MethodPatch, "/api/v1/accounts/1122").Code)
		assert.Equal(t, http.StatusOK, perform(engine, http.MethodDelete, "/api/v1/accounts/1122").Code)
	})

	t.Run("static segment wins over parameter sibling", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("ledger", "/ledger").
			GET("/entries/number/:number", func(c *gin.Context) {
				c.String(http.StatusOK, "by-number")
			}).
			GET("/entries/:id", func(c *gin.Context) {
				c.String(http.StatusOK, "by-id")
			})
		NewRouter(engine).Register(g).Setup()

		w := perform(engine, http.MethodGet, "/api/v1/ledger/entries/number/JE-2026-001")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "by-number", w.Body.String())

		w = perform(engine, http.MethodGet, "/api/v1/ledger/entries/abc")
		assert.Equal(t, "by-id", w.Body.String())
	})

	t.Run("group middleware runs before handlers", func(t *testing.T) {
		engine := gin.New()
		var order []string
		g := NewDomainGroup("settlement", "/settlement").
			Use(func(c *gin.Context) {
				order = append(order, "mw")
				c.Next()
			}).
			GET("/documents", func(c *gin.Context) {
				order = append(order, "handler")
				c.Status(http.StatusOK)
			})
		NewRouter(engine).Register(g).Setup()

		perform(engine, http.MethodGet, "/api/v1/settlement/documents")
		assert.Equal(t, []string{"mw", "handler"}, order)
	})

	t.Run("exposes name and prefix", func(t *testing.T) {
		g := NewDomainGroup("ledger", "/ledger")
		assert.Equal(t, "ledger", g.Name())
		assert.Equal(t, "/ledger", g.Prefix())
	})
}
