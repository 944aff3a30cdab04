package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/localizd/localizd/backend/internal/branches"
)

type staticTokenManager struct {
	subject string
	err     error
}

func (m staticTokenManager) ValidateToken(string) (string, error) {
	return m.subject, m.err
}

func newTestHandler(t *testing.T, tokens TokenManager, service *branches.Service) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler, err := NewHTTPHandler(Dependencies{
		TokenManager:  tokens,
		BranchService: service,
		Logger:        zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return handler
}

func TestAuthorizeRequestRejectsMissingBearer(t *testing.T) {
	handler := newTestHandler(t, staticTokenManager{subject: "user-1"}, &branches.Service{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/branches/diff", strings.NewReader(`{}`))
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", recorder.Code)
	}
}

func TestAuthorizeRequestRejectsEmptyToken(t *testing.T) {
	handler := newTestHandler(t, staticTokenManager{subject: "user-1"}, &branches.Service{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/branches/diff", strings.NewReader(`{}`))
	request.Header.Set("Authorization", "Bearer ")
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", recorder.Code)
	}
}

func TestAuthorizeRequestRejectsInvalidToken(t *testing.T) {
	handler := newTestHandler(t, staticTokenManager{err: errors.New("bad token")}, &branches.Service{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/branches/diff", strings.NewReader(`{}`))
	request.Header.Set("Authorization", "Bearer not-a-token")
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "unauthorized") {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
}

func TestNewHTTPHandlerRequiresDependencies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	if _, err := NewHTTPHandler(Dependencies{BranchService: &branches.Service{}}); err == nil {
		t.Fatalf("expected error for missing token manager")
	}
	if _, err := NewHTTPHandler(Dependencies{TokenManager: staticTokenManager{}}); err == nil {
		t.Fatalf("expected error for missing branch service")
	}
}
