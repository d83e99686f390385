package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validatedInput struct {
	CustomerID string   `json:"customer_id" binding:"required,uuid"`
	Name       string   `json:"name" binding:"notblank,max=10"`
	Type       string   `json:"type" binding:"required,oneof=CASH CHECK CARD"`
	Items      []string `json:"items" binding:"required,min=1"`
}

func newValidationRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.POST("/test", func(c *gin.Context) {
		var req validatedInput
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return router
}

func post(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleValidationError(t *testing.T) {
	router := newValidationRouter()

	t.Run("reports each field by its JSON name", func(t *testing.T) {
		w := post(router, `{"customer_id":"nope","name":"   ","type":"BARTER","items":[]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

		messages := map[string]string{}
		for _, d := range resp.Error.Details {
			messages[d.Field] = d.Message
		}
		assert.Equal(t, "Invalid UUID format", messages["customer_id"])
		assert.Equal(t, "This field is required", messages["name"])
		assert.Equal(t, "Must be one of: CASH CHECK CARD", messages["type"])
		assert.Equal(t, "Must contain at least 1 items", messages["items"])
	})

	t.Run("malformed JSON", func(t *testing.T) {
		w := post(router, `{"customer_id":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeInvalidJSON)
	})

	t.Run("valid input passes", func(t *testing.T) {
		w := post(router, `{"customer_id":"8b0f1f9e-2a47-4c55-9b8c-0d3c5f0b1a11","name":"ok","type":"CASH","items":["a"]}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
