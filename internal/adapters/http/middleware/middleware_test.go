package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(router *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	router.ServeHTTP(w, req)

	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	return resp
}

func TestIDMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		middleware gin.HandlerFunc
		header     string
		fromGin    func(*gin.Context) string
		fromCtx    func(context.Context) string
	}{
		{"request id", RequestID(), HeaderRequestID, GetRequestID, RequestIDFromContext},
		{"correlation id", CorrelationID(), HeaderCorrelationID, GetCorrelationID, CorrelationIDFromContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var fromGin, fromCtx string

			router := gin.New()
			router.Use(tt.middleware)
			router.GET("/test", func(c *gin.Context) {
				fromGin = tt.fromGin(c)
				fromCtx = tt.fromCtx(c.Request.Context())
				c.Status(http.StatusOK)
			})

			w := serve(router, http.MethodGet, "/test", nil)
			generated := w.Header().Get(tt.header)
			assert.Len(t, generated, 36)
			assert.Equal(t, generated, fromGin)
			assert.Equal(t, generated, fromCtx)

			w = serve(router, http.MethodGet, "/test", http.Header{tt.header: {"upstream-42"}})
			assert.Equal(t, "upstream-42", w.Header().Get(tt.header))
			assert.Equal(t, "upstream-42", fromGin)
			assert.Equal(t, "upstream-42", fromCtx)
		})
	}
}

func TestIDFromContext_NotSet(t *testing.T) {
	t.Parallel()

	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.Empty(t, CorrelationIDFromContext(context.Background()))
}

func TestIDMiddleware_EnrichesLogger(t *testing.T) {
	var buf bytes.Buffer

	base := slog.New(slog.NewJSONHandler(&buf, nil))

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), base))
		c.Next()
	})
	router.Use(RequestID(), CorrelationID())
	router.GET("/test", func(c *gin.Context) {
		logging.FromContext(c.Request.Context()).Info("handled")
		c.Status(http.StatusOK)
	})

	serve(router, http.MethodGet, "/test", http.Header{
		HeaderRequestID:     {"req-1"},
		HeaderCorrelationID: {"corr-1"},
	})

	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.Contains(t, buf.String(), `"correlation_id":"corr-1"`)
}

type staticIdentity struct {
	id domain.Identity
	ok bool
}

func (s staticIdentity) Identity() (domain.Identity, bool) { return s.id, s.ok }

func TestRequireSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		src        staticIdentity
		wantStatus int
	}{
		{"signed out", staticIdentity{}, http.StatusUnauthorized},
		{"identity without user id", staticIdentity{ok: true}, http.StatusUnauthorized},
		{
			"signed in",
			staticIdentity{id: domain.Identity{UserID: "user-1", Email: "ada@example.com"}, ok: true},
			http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handlerRan := false

			router := gin.New()
			router.GET("/private", RequireSession(tt.src), func(c *gin.Context) {
				handlerRan = true

				id, ok := GetIdentity(c)
				require.True(t, ok)
				c.String(http.StatusOK, id.UserID)
			})

			w := serve(router, http.MethodGet, "/private", nil)
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusOK {
				assert.True(t, handlerRan)
				assert.Equal(t, "user-1", w.Body.String())

				return
			}

			assert.False(t, handlerRan)
			resp := decodeError(t, w)
			assert.Equal(t, dto.ErrorCodeUnauthorized, resp.Error.Code)
			assert.Equal(t, "sign in required", resp.Error.Message)
		})
	}
}

func TestGetIdentity_Missing(t *testing.T) {
	t.Parallel()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetIdentity(c)
	assert.False(t, ok)
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer

	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	src := staticIdentity{id: domain.Identity{UserID: "user-7"}, ok: true}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), base))
		c.Next()
	})
	router.Use(Logging("/metrics"))
	router.GET("/-/live", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/ok", RequireSession(src), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/broken", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	t.Run("skipped paths", func(t *testing.T) {
		buf.Reset()
		serve(router, http.MethodGet, "/-/live", nil)
		serve(router, http.MethodGet, "/metrics", nil)
		assert.Empty(t, buf.String())
	})

	tests := []struct {
		path      string
		wantLevel string
	}{
		{"/ok", "INFO"},
		{"/missing", "WARN"},
		{"/broken", "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			buf.Reset()
			serve(router, http.MethodGet, tt.path, nil)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, "request completed", entry["msg"])
			assert.Equal(t, tt.path, entry["route"])
		})
	}

	t.Run("user id from session", func(t *testing.T) {
		buf.Reset()
		serve(router, http.MethodGet, "/ok", nil)
		assert.Contains(t, buf.String(), `"user_id":"user-7"`)
	})
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.Use(Recovery())
	router.GET("/panic", func(*gin.Context) { panic("boom") })
	router.GET("/late-panic", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("after write")
	})

	w := serve(router, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, dto.ErrorCodeInternal, resp.Error.Code)
	assert.NotContains(t, w.Body.String(), "boom")

	w = serve(router, http.MethodGet, "/late-panic", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "partial", w.Body.String())
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	var sawDeadline bool

	router := gin.New()
	router.Use(Timeout(20*time.Millisecond, "/upload"))
	router.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	router.GET("/slow-writes", func(c *gin.Context) {
		<-c.Request.Context().Done()
		c.String(http.StatusAccepted, "late")
	})
	router.GET("/fast", func(c *gin.Context) {
		_, sawDeadline = c.Request.Context().Deadline()
		c.Status(http.StatusNoContent)
	})
	router.GET("/upload", func(c *gin.Context) {
		_, has := c.Request.Context().Deadline()
		c.JSON(http.StatusOK, gin.H{"deadline": has})
	})

	w := serve(router, http.MethodGet, "/slow", nil)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, dto.ErrorCodeTimeout, decodeError(t, w).Error.Code)

	w = serve(router, http.MethodGet, "/slow-writes", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = serve(router, http.MethodGet, "/fast", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, sawDeadline)

	w = serve(router, http.MethodGet, "/upload", nil)
	assert.JSONEq(t, `{"deadline":false}`, w.Body.String())
}
