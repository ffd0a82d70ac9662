package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}

	c.Request = r

	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())

	return resp
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:       "not found",
			err:        domain.NewNotFoundError("quote", "q1"),
			wantStatus: http.StatusNotFound,
			wantCode:   ErrorCodeNotFound,
		},
		{
			name:       "conflict through wrapping",
			err:        fmt.Errorf("adding item: %w", domain.NewConflictError("collection_item", "already present")),
			wantStatus: http.StatusConflict,
			wantCode:   ErrorCodeConflict,
		},
		{
			name:       "validation",
			err:        domain.NewValidationError("name", "must not be blank"),
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrorCodeValidation,
		},
		{
			name:       "no session",
			err:        domain.NewUnauthenticatedError("toggle favorite"),
			wantStatus: http.StatusUnauthorized,
			wantCode:   ErrorCodeUnauthorized,
		},
		{
			name:       "someone else's collection",
			err:        domain.NewForbiddenError("rename collection", "not the owner"),
			wantStatus: http.StatusForbidden,
			wantCode:   ErrorCodeForbidden,
		},
		{
			name:        "backend down hides the cause",
			err:         domain.NewUnavailableError("backend", "dial tcp 10.0.0.7:443: refused"),
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    ErrorCodeUnavailable,
			wantMessage: "service temporarily unavailable",
		},
		{
			name:        "unknown",
			err:         errors.New("pq: relation does not exist"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    ErrorCodeInternal,
			wantMessage: "an internal error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := FromError(tt.err)

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, resp.Error.Code)

			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, resp.Error.Message)
			}
		})
	}
}

func TestFromError_ValidationDetails(t *testing.T) {
	_, resp := FromError(domain.NewValidationError("password", "must be at least 6 characters"))

	assert.Equal(t, map[string]string{"password": "must be at least 6 characters"}, resp.Error.Details)
}

func TestHTTPStatusFromCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatusFromCode(ErrorCodeBadRequest))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatusFromCode(ErrorCodeTimeout))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatusFromCode(ErrorCodeUnauthorized))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromCode("SOMETHING_ELSE"))
}

func TestGetTraceID(t *testing.T) {
	t.Run("explicit value wins", func(t *testing.T) {
		c, _ := testContext(http.MethodGet, "/", "")
		c.Request.Header.Set("X-Request-ID", "req-1")
		c.Set("trace_id", "trace-1")

		assert.Equal(t, "trace-1", GetTraceID(c))
	})

	t.Run("falls back to request id", func(t *testing.T) {
		c, _ := testContext(http.MethodGet, "/", "")
		c.Request.Header.Set("X-Request-ID", "req-1")

		assert.Equal(t, "req-1", GetTraceID(c))
	})

	t.Run("non-string value is ignored", func(t *testing.T) {
		c, _ := testContext(http.MethodGet, "/", "")
		c.Set("trace_id", 42)

		assert.Empty(t, GetTraceID(c))
	})
}

func TestHandleError(t *testing.T) {
	c, w := testContext(http.MethodGet, "/api/v1/quotes/q9", "")
	c.Set("trace_id", "trace-9")

	HandleError(c, domain.NewNotFoundError("quote", "q9"))

	assert.Equal(t, http.StatusNotFound, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, ErrorCodeNotFound, resp.Error.Code)
	assert.Equal(t, "trace-9", resp.TraceID)
}

func TestAbortWithCode(t *testing.T) {
	c, w := testContext(http.MethodGet, "/", "")

	AbortWithCode(c, ErrorCodeUnauthorized, "sign in first")

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "sign in first", decodeError(t, w).Error.Message)
}

func TestBindAndValidate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		target     any
		wantErr    error
		wantFields map[string]string
	}{
		{
			name:   "valid collection",
			body:   `{"name":"Mornings","quoteIds":["q1","q2"]}`,
			target: &CreateCollectionRequest{},
		},
		{
			name:       "blank collection name",
			body:       `{"name":"   "}`,
			target:     &CreateCollectionRequest{},
			wantErr:    ErrValidation,
			wantFields: map[string]string{"name": "must not be empty"},
		},
		{
			name:       "empty quote id in selection",
			body:       `{"name":"Mornings","quoteIds":["q1",""]}`,
			target:     &CreateCollectionRequest{},
			wantErr:    ErrValidation,
			wantFields: map[string]string{"quoteIds[1]": "this field is required"},
		},
		{
			name:    "sign up with bad email and short password",
			body:    `{"email":"ada","password":"123"}`,
			target:  &SignUpRequest{},
			wantErr: ErrValidation,
			wantFields: map[string]string{
				"email":    "must be a valid email address",
				"password": "must be at least 6 characters",
			},
		},
		{
			name:       "notification time out of range",
			body:       `{"enabled":true,"time":"25:00"}`,
			target:     &NotificationSettingsRequest{},
			wantErr:    ErrValidation,
			wantFields: map[string]string{"time": "must be a time of day as HH:MM"},
		},
		{
			name:       "notification enabled is required",
			body:       `{"time":"07:30"}`,
			target:     &NotificationSettingsRequest{},
			wantErr:    ErrValidation,
			wantFields: map[string]string{"enabled": "this field is required"},
		},
		{
			name:       "avatar must be a URL",
			body:       `{"username":"ada","avatarUrl":"not a url"}`,
			target:     &ProfileRequest{},
			wantErr:    ErrValidation,
			wantFields: map[string]string{"avatarUrl": "must be a valid URL"},
		},
		{
			name:    "malformed JSON",
			body:    `{"name":`,
			target:  &CreateCollectionRequest{},
			wantErr: ErrBinding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := testContext(http.MethodPost, "/", tt.body)

			err := BindAndValidate(c, tt.target)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, tt.wantErr)

			if tt.wantFields != nil {
				assert.Equal(t, tt.wantFields, ValidationErrors(err))
			} else {
				assert.Empty(t, ValidationErrors(err))
			}
		})
	}
}

func TestBindQueryAndValidate(t *testing.T) {
	t.Run("search filter", func(t *testing.T) {
		c, _ := testContext(http.MethodGet, "/quotes?q=hope&limit=10", "")

		var req QuoteListRequest
		require.NoError(t, BindQueryAndValidate(c, &req))
		assert.Equal(t, "hope", req.Query)
		assert.Equal(t, 10, req.GetLimit())
	})

	t.Run("limit out of range uses the form name", func(t *testing.T) {
		c, _ := testContext(http.MethodGet, "/quotes?limit=500", "")

		var req QuoteListRequest
		err := BindQueryAndValidate(c, &req)
		require.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, map[string]string{"limit": "must be less than or equal to 100"}, ValidationErrors(err))
	})

	t.Run("non-numeric limit", func(t *testing.T) {
		c, _ := testContext(http.MethodGet, "/quotes?limit=ten", "")

		var req QuoteListRequest
		require.ErrorIs(t, BindQueryAndValidate(c, &req), ErrBinding)
	})
}

func TestRespondWithBindError(t *testing.T) {
	t.Run("field details", func(t *testing.T) {
		c, w := testContext(http.MethodPost, "/", `{"name":""}`)

		var req RenameCollectionRequest
		RespondWithBindError(c, BindAndValidate(c, &req))

		assert.Equal(t, http.StatusBadRequest, w.Code)

		resp := decodeError(t, w)
		assert.Equal(t, ErrorCodeValidation, resp.Error.Code)
		assert.Contains(t, resp.Error.Details, "name")
	})

	t.Run("malformed body", func(t *testing.T) {
		c, w := testContext(http.MethodPost, "/", `[`)

		var req RenameCollectionRequest
		RespondWithBindError(c, BindAndValidate(c, &req))

		assert.Equal(t, http.StatusBadRequest, w.Code)

		resp := decodeError(t, w)
		assert.Equal(t, ErrorCodeBadRequest, resp.Error.Code)
		assert.Empty(t, resp.Error.Details)
	})
}

func TestValidationMessage_Lengths(t *testing.T) {
	long := strings.Repeat("x", 81)

	err := Validate(&CreateCollectionRequest{Name: long})
	assert.Equal(t, map[string]string{"name": "must be at most 80 characters"}, ValidationErrors(err))

	ids := make([]string, 101)
	for i := range ids {
		ids[i] = fmt.Sprintf("q%d", i)
	}

	err = Validate(&CreateCollectionRequest{Name: "Big", QuoteIDs: ids})
	assert.Equal(t, map[string]string{"quoteIds": "must be at most 100 entries"}, ValidationErrors(err))
}

func TestValidateClock(t *testing.T) {
	enabled := true

	for _, tt := range []struct {
		value string
		ok    bool
	}{
		{"00:00", true},
		{"09:05", true},
		{"23:59", true},
		{"9:05", false},
		{"24:00", false},
		{"12:60", false},
		{"noon", false},
	} {
		err := Validate(&NotificationSettingsRequest{Enabled: &enabled, Time: tt.value})
		assert.Equal(t, tt.ok, err == nil, tt.value)
	}
}

func TestPagination(t *testing.T) {
	t.Run("limit defaults and caps", func(t *testing.T) {
		assert.Equal(t, DefaultLimit, (&PaginationRequest{}).GetLimit())
		assert.Equal(t, 7, (&PaginationRequest{Limit: 7}).GetLimit())
		assert.Equal(t, MaxLimit, (&PaginationRequest{Limit: 1000}).GetLimit())
	})

	t.Run("first page has offset zero", func(t *testing.T) {
		off, err := (&PaginationRequest{}).GetOffset()
		require.NoError(t, err)
		assert.Zero(t, off)
	})

	t.Run("next cursor continues the window", func(t *testing.T) {
		page := NewPaginatedResponse([]int{1, 2, 3}, 40, 2)

		assert.Equal(t, []int{1, 2}, page.Items)
		assert.True(t, page.HasMore)

		off, err := (&PaginationRequest{Cursor: page.NextCursor}).GetOffset()
		require.NoError(t, err)
		assert.Equal(t, 42, off)
	})

	t.Run("last page has no cursor", func(t *testing.T) {
		page := NewPaginatedResponse[int](nil, 0, 5)

		assert.Equal(t, []int{}, page.Items)
		assert.False(t, page.HasMore)
		assert.Empty(t, page.NextCursor)
	})

	t.Run("bad cursors", func(t *testing.T) {
		for _, cursor := range []string{"!!!", "bm90LWpzb24", EncodeCursor(&CursorData{Offset: -1})} {
			_, err := (&PaginationRequest{Cursor: cursor}).GetOffset()
			require.ErrorIs(t, err, ErrInvalidCursor, cursor)
		}
	})
}
