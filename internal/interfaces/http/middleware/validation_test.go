package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/setoff/internal/interfaces/http/dto"
)

type settleBody struct {
	Direction string  `json:"direction" binding:"required,oneof=RECEIVABLE PAYABLE"`
	Total     float64 `json:"total_amount" binding:"required,gt=0"`
	LineID    string  `json:"line_id" binding:"omitempty,uuid"`
}

func bindAndReport(t *testing.T, body string) dto.Response {
	t.Helper()
	SetupValidator()

	r := gin.New()
	r.POST("/settle", func(c *gin.Context) {
		var req settleBody
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/settle", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var resp dto.Response
	if w.Code != http.StatusOK {
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return resp
}

func TestHandleValidationError(t *testing.T) {
	t.Run("reports json field names", func(t *testing.T) {
		resp := bindAndReport(t, `{"total_amount": 100}`)

		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "direction", resp.Error.Details[0].Field)
		assert.Equal(t, "is required", resp.Error.Details[0].Message)
	})

	t.Run("describes oneof and gt failures", func(t *testing.T) {
		resp := bindAndReport(t, `{"direction": "SIDEWAYS", "total_amount": -5}`)

		require.NotNil(t, resp.Error)
		byField := map[string]string{}
		for _, d := range resp.Error.Details {
			byField[d.Field] = d.Message
		}
		assert.Equal(t, "must be one of: RECEIVABLE PAYABLE", byField["direction"])
		assert.Equal(t, "must be greater than 0", byField["total_amount"])
	})

	t.Run("describes uuid failures", func(t *testing.T) {
		resp := bindAndReport(t, `{"direction": "RECEIVABLE", "total_amount": 1, "line_id": "nope"}`)

		require.NotNil(t, resp.Error)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "line_id", resp.Error.Details[0].Field)
		assert.Equal(t, "must be a valid UUID", resp.Error.Details[0].Message)
	})

	t.Run("valid body passes", func(t *testing.T) {
		resp := bindAndReport(t, `{"direction": "PAYABLE", "total_amount": 250.5}`)
		assert.Nil(t, resp.Error)
	})
}

func TestFormatValidationErrors_NonValidatorError(t *testing.T) {
	resp := FormatValidationErrors(assert.AnError, "req-1")
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Empty(t, resp.Error.Details)
	assert.Equal(t, "req-1", resp.Error.RequestID)
}
