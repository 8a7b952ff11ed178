package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyMiddleware(map[string]string{"tenant-key-123": "tenant1"}))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"tenant": TenantID(c),
			"same":   SameTenant(c, c.Query("tenant_id")),
		})
	})
	return r
}

func TestAPIKeyMiddleware_Rejects(t *testing.T) {
	for _, key := range []string{"", "wrong"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-API-Key", key)
		newAuthRouter().ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
}

func TestAPIKeyMiddleware_SetsTenant(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-API-Key", "tenant-key-123")
	newAuthRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tenant":"tenant1","same":true}`, w.Body.String())
}

func TestSameTenant(t *testing.T) {
	for q, want := range map[string]bool{"tenant1": true, "tenant2": false} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami?tenant_id="+q, nil)
		req.Header.Set("X-API-Key", "tenant-key-123")
		newAuthRouter().ServeHTTP(w, req)

		if want {
			assert.Contains(t, w.Body.String(), `"same":true`)
		} else {
			assert.Contains(t, w.Body.String(), `"same":false`)
		}
	}
}
