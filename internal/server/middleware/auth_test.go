package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

type fakeClaims struct{ id uuid.UUID }

func (c fakeClaims) GetUserID() uuid.UUID { return c.id }

type fakeValidator struct {
	id  uuid.UUID
	err error
}

func (v fakeValidator) ValidateToken(token string) (UserIDGetter, error) {
	if v.err != nil {
		return nil, v.err
	}
	return fakeClaims{id: v.id}, nil
}

func TestAuth_ValidToken(t *testing.T) {
	userID := uuid.New()
	var got uuid.UUID
	handler := Auth(fakeValidator{id: userID})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetUserID(r)
		if err != nil {
			t.Errorf("GetUserID: %v", err)
		}
		got = id
	}))

	req := httptest.NewRequest("GET", "/api/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got != userID {
		t.Errorf("user ID = %s, want %s", got, userID)
	}
}

func TestAuth_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		validator fakeValidator
	}{
		{"missing header", "", fakeValidator{}},
		{"not bearer", "Basic abc123", fakeValidator{}},
		{"empty token", "Bearer", fakeValidator{}},
		{"invalid token", "Bearer bad", fakeValidator{err: fmt.Errorf("expired")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := Auth(tc.validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler must not run")
			}))

			req := httptest.NewRequest("GET", "/api/v1/jobs", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestAuth_CaseInsensitiveBearer(t *testing.T) {
	handler := Auth(fakeValidator{id: uuid.New()})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/api/v1/jobs", nil)
	req.Header.Set("Authorization", "bearer sometoken")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestGetUserID_Missing(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if _, err := GetUserID(req); err == nil {
		t.Error("expected error when context has no user ID")
	}
}
