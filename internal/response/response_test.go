package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		page, perPage         int
		wantPage, wantPerPage int
	}{
		{0, 0, 1, DefaultPerPage},
		{3, 20, 3, 20},
		{-1, 500, 1, MaxPerPage},
	}
	for _, tt := range tests {
		p, pp := NormalizePage(tt.page, tt.perPage)
		if p != tt.wantPage || pp != tt.wantPerPage {
			t.Errorf("NormalizePage(%d, %d) = %d, %d, want %d, %d", tt.page, tt.perPage, p, pp, tt.wantPage, tt.wantPerPage)
		}
	}
}

func TestNewPaginationRoundsUp(t *testing.T) {
	p := NewPagination(2, 10, 21)
	if p.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", p.TotalPages)
	}
	if NewPagination(1, 10, 0).TotalPages != 0 {
		t.Error("empty list should have zero pages")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { Fail(c, http.StatusTeapot, ErrInternal) })

	known := uuid.NewString()
	tests := []struct {
		name    string
		inbound string
		keep    bool
	}{
		{"uuid kept", known, true},
		{"garbage replaced", "<script>", false},
		{"missing generated", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.inbound != "" {
				req.Header.Set(HeaderRequestID, tt.inbound)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			got := rec.Header().Get(HeaderRequestID)
			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("response id %q is not a uuid", got)
			}
			if tt.keep != (got == tt.inbound) {
				t.Errorf("id = %q, inbound %q, keep = %v", got, tt.inbound, tt.keep)
			}

			var body Response
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Metadata.RequestID != got {
				t.Errorf("metadata id = %q, header %q", body.Metadata.RequestID, got)
			}
			if body.Error == nil || body.Error.Code != ErrInternal {
				t.Errorf("error = %+v", body.Error)
			}
		})
	}
}

func TestGetMessage(t *testing.T) {
	if got := GetMessage(ErrNotAssigned); got == fallbackMessage || got == "" {
		t.Errorf("ErrNotAssigned message = %q", got)
	}
	if got := GetMessage(ErrCode("SOMETHING_NEW")); got != fallbackMessage {
		t.Errorf("unknown code message = %q", got)
	}
}
