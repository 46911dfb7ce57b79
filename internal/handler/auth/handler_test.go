package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/zhouzirui/chat-relay/backend/internal/middleware"
	"github.com/zhouzirui/chat-relay/backend/internal/model/chat"
	authService "github.com/zhouzirui/chat-relay/backend/internal/service/auth"
)

type stubAuth struct {
	res authService.Result
	err error
}

func (s stubAuth) Login(context.Context, string, string) (authService.Result, error) {
	return s.res, s.err
}

func serve(t *testing.T, svc Authenticator) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	New(svc, &middleware.Serializer{}, nil).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.com","password":"x"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLoginOutcomes(t *testing.T) {
	rec := serve(t, stubAuth{res: authService.Result{Success: true, State: authService.StateSuccess}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":"Login successful"}`, rec.Body.String())

	rec = serve(t, stubAuth{res: authService.Result{
		Error: "Cannot bypass 2FA",
		Kind:  chat.KindTwoFactorRequired,
		State: authService.StateTwoFactorRequired,
	}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Cannot bypass 2FA"}`, rec.Body.String())

	rec = serve(t, stubAuth{err: errors.New("browser launch failed: no chrome")})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
