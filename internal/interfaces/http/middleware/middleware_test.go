package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/bomsync/internal/infrastructure/logger"
	"github.com/erp/bomsync/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/ping", func(c *gin.Context) {
		assert.Equal(t, GetRequestID(c), logger.GetRequestID(c.Request.Context()))
		c.Status(http.StatusNoContent)
	})

	t.Run("generates an id when none is sent", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

		_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
		assert.NoError(t, err)
	})

	t.Run("keeps a client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, "wc-webhook-7781")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, "wc-webhook-7781", w.Header().Get(RequestIDHeader))
	})

	t.Run("replaces an oversized client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", MaxRequestIDLength+1))
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Len(t, w.Header().Get(RequestIDHeader), 36)
	})
}

func TestTenant(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID(), Tenant())

	var seen uuid.UUID
	var seenInCtx string
	engine.GET("/stock", func(c *gin.Context) {
		seen = GetTenantID(c)
		seenInCtx = logger.GetTenantID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not a uuid", "acme"},
		{"nil uuid", uuid.Nil.String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/stock", nil)
			if tt.header != "" {
				req.Header.Set(TenantHeader, tt.header)
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decode(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
		})
	}

	t.Run("stores a valid tenant", func(t *testing.T) {
		tenantID := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "/stock", nil)
		req.Header.Set(TenantHeader, tenantID.String())
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, tenantID, seen)
		assert.Equal(t, tenantID.String(), seenInCtx)
	})
}

func TestGetTenantID_Unset(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, uuid.Nil, GetTenantID(c))
}

type lineRequest struct {
	OrderRef string  `json:"order_ref" binding:"required,max=8"`
	Items    []int64 `json:"items" binding:"required,min=1"`
	Quantity int64   `json:"quantity" binding:"gt=0"`
}

func TestHandleBindError(t *testing.T) {
	SetupValidator()

	engine := gin.New()
	engine.Use(RequestID())
	engine.POST("/orders", func(c *gin.Context) {
		var req lineRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleBindError(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	t.Run("lists invalid fields by json name", func(t *testing.T) {
		w := post(`{"order_ref":"WC-100000","items":[],"quantity":0}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		resp := decode(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

		messages := map[string]string{}
		for _, d := range resp.Error.Details {
			messages[d.Field] = d.Message
		}
		assert.Equal(t, "Must be at most 8 characters", messages["order_ref"])
		assert.Equal(t, "Must have at least 1 elements", messages["items"])
		assert.Equal(t, "Must be greater than 0", messages["quantity"])
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		w := post(`{"order_ref":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
		assert.Empty(t, resp.Error.Details)
	})

	t.Run("valid body passes", func(t *testing.T) {
		w := post(`{"order_ref":"WC-1","items":[81],"quantity":2}`)
		assert.Equal(t, http.StatusAccepted, w.Code)
	})
}
