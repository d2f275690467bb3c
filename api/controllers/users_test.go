package controllers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jackvaisey/user-service/api/controllers"
	"github.com/jackvaisey/user-service/api/routes"
	"github.com/jackvaisey/user-service/internal/users"
	"github.com/jackvaisey/user-service/internal/wallet"
	"github.com/jackvaisey/user-service/pkg/db/models"
	svcerrors "github.com/jackvaisey/user-service/pkg/errors"
	"github.com/jackvaisey/user-service/pkg/logger"
)

func newTestRouter(t *testing.T, svc *fakeUserService, balances *fakeBalanceReader) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "api-test", Output: io.Discard})
	return routes.New(controllers.NewUsers(svc, balances, logg), logg)
}

func TestRegisterReturnsCreatedUser(t *testing.T) {
	svc := &fakeUserService{
		registerResult: &models.User{ID: 1, Name: "Jack", Email: "jack@example.com"},
	}
	router := newTestRouter(t, svc, &fakeBalanceReader{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users",
		strings.NewReader(`{"name":"Jack","email":"jack@example.com","password":"s3cret-pass"}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Data struct {
			ID         int64  `json:"id"`
			Email      string `json:"email"`
			UsdBalance string `json:"usdBalance"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, int64(1), body.Data.ID)
	require.Equal(t, "jack@example.com", body.Data.Email)
	require.Equal(t, "0", body.Data.UsdBalance)
}

func TestRegisterRejectsBadBody(t *testing.T) {
	router := newTestRouter(t, &fakeUserService{}, &fakeBalanceReader{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader("{not json"))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterMapsConflict(t *testing.T) {
	svc := &fakeUserService{
		registerErr: svcerrors.New(svcerrors.CodeConflict, "email jack@example.com already registered"),
	}
	router := newTestRouter(t, svc, &fakeBalanceReader{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users",
		strings.NewReader(`{"name":"Jack","email":"jack@example.com","password":"s3cret-pass"}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetUserMergesCachedBalance(t *testing.T) {
	svc := &fakeUserService{
		getResult: &models.User{ID: 7, Name: "Jack", Email: "jack@example.com"},
	}
	balances := &fakeBalanceReader{snapshot: wallet.BalanceSnapshot{
		UserID:     7,
		UsdBalance: decimal.RequireFromString("1000.0"),
		BtcBalance: decimal.RequireFromString("0.01"),
	}}
	router := newTestRouter(t, svc, balances)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users/7", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			UsdBalance string `json:"usdBalance"`
			BtcBalance string `json:"btcBalance"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "1000.0", body.Data.UsdBalance)
	require.Equal(t, "0.01", body.Data.BtcBalance)
}

func TestGetUserRejectsBadID(t *testing.T) {
	router := newTestRouter(t, &fakeUserService{}, &fakeBalanceReader{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users/abc", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUserNotFound(t *testing.T) {
	svc := &fakeUserService{getErr: svcerrors.New(svcerrors.CodeNotFound, "user 9 not found")}
	router := newTestRouter(t, svc, &fakeBalanceReader{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users/9", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateReturnsUpdatedUser(t *testing.T) {
	svc := &fakeUserService{
		updateResult: &models.User{ID: 7, Name: "Jack V", Email: "jack.v@example.com"},
	}
	router := newTestRouter(t, svc, &fakeBalanceReader{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/users/7",
		strings.NewReader(`{"name":"Jack V","email":"jack.v@example.com"}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Jack V", body.Data.Name)
	require.Equal(t, "jack.v@example.com", body.Data.Email)
}

func TestUpdateMapsNotFound(t *testing.T) {
	svc := &fakeUserService{updateErr: svcerrors.New(svcerrors.CodeNotFound, "user 9 not found")}
	router := newTestRouter(t, svc, &fakeBalanceReader{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/users/9",
		strings.NewReader(`{"name":"Jack","email":"jack@example.com"}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteEvictsCachedBalance(t *testing.T) {
	svc := &fakeUserService{}
	balances := &fakeBalanceReader{}
	router := newTestRouter(t, svc, balances)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/users/7", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, []int64{7}, svc.deleted)
	require.Equal(t, []int64{7}, balances.evicted)
}

func TestDeleteMissingUserDoesNotEvict(t *testing.T) {
	svc := &fakeUserService{deleteErr: svcerrors.New(svcerrors.CodeNotFound, "user 9 not found")}
	balances := &fakeBalanceReader{}
	router := newTestRouter(t, svc, balances)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/users/9", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Empty(t, balances.evicted)
}

func TestLoginReturnsToken(t *testing.T) {
	svc := &fakeUserService{loginToken: "jwt-for-1"}
	router := newTestRouter(t, svc, &fakeBalanceReader{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users/login",
		strings.NewReader(`{"email":"jack@example.com","password":"s3cret-pass"}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "jwt-for-1", body.Data.Token)
}

type fakeUserService struct {
	registerResult *models.User
	registerErr    error
	loginToken     string
	loginErr       error
	getResult      *models.User
	getErr         error
	updateResult   *models.User
	updateErr      error
	deleteErr      error
	deleted        []int64
}

func (f *fakeUserService) Register(ctx context.Context, input users.RegisterInput) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.registerResult, nil
}

func (f *fakeUserService) Login(ctx context.Context, email, password string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.loginToken, nil
}

func (f *fakeUserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getResult, nil
}

func (f *fakeUserService) Update(ctx context.Context, id int64, input users.UpdateInput) (*models.User, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.updateResult, nil
}

func (f *fakeUserService) Delete(ctx context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeBalanceReader struct {
	snapshot wallet.BalanceSnapshot
	err      error
	evicted  []int64
}

func (f *fakeBalanceReader) GetBalance(ctx context.Context, userID int64) (wallet.BalanceSnapshot, error) {
	if f.err != nil {
		return wallet.BalanceSnapshot{}, f.err
	}
	return f.snapshot, nil
}

func (f *fakeBalanceReader) EvictBalance(ctx context.Context, userID int64) error {
	f.evicted = append(f.evicted, userID)
	return nil
}
