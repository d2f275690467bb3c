package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/jackvaisey/user-service/api/responses"
	"github.com/jackvaisey/user-service/internal/users"
	"github.com/jackvaisey/user-service/internal/wallet"
	"github.com/jackvaisey/user-service/pkg/db/models"
	svcerrors "github.com/jackvaisey/user-service/pkg/errors"
	"github.com/jackvaisey/user-service/pkg/logger"
)

type userService interface {
	Register(ctx context.Context, input users.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	Update(ctx context.Context, id int64, input users.UpdateInput) (*models.User, error)
	Delete(ctx context.Context, id int64) error
}

type balanceStore interface {
	GetBalance(ctx context.Context, userID int64) (wallet.BalanceSnapshot, error)
	EvictBalance(ctx context.Context, userID int64) error
}

// Users serves the user endpoints. Balance fields come from the cache;
// a user whose wallet has not answered yet shows zero balances.
type Users struct {
	users    userService
	balances balanceStore
	logg     *logger.Logger
}

func NewUsers(users userService, balances balanceStore, logg *logger.Logger) *Users {
	return &Users{users: users, balances: balances, logg: logg}
}

type userResponse struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	UsdBalance decimal.Decimal `json:"usdBalance"`
	BtcBalance decimal.Decimal `json:"btcBalance"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (c *Users) Register(w http.ResponseWriter, r *http.Request) {
	var input users.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		responses.WriteError(r.Context(), c.logg, w, svcerrors.Wrap(svcerrors.CodeValidation, err, "invalid request body"))
		return
	}

	user, err := c.users.Register(r.Context(), input)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	responses.WriteSuccessStatus(w, http.StatusCreated, userResponse{
		ID:         user.ID,
		Name:       user.Name,
		Email:      user.Email,
		UsdBalance: decimal.Zero,
		BtcBalance: decimal.Zero,
	})
}

func (c *Users) Login(w http.ResponseWriter, r *http.Request) {
	var input loginRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		responses.WriteError(r.Context(), c.logg, w, svcerrors.Wrap(svcerrors.CodeValidation, err, "invalid request body"))
		return
	}

	token, err := c.users.Login(r.Context(), input.Email, input.Password)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	responses.WriteSuccess(w, loginResponse{Token: token})
}

func (c *Users) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, svcerrors.New(svcerrors.CodeValidation, "invalid user id"))
		return
	}

	var input users.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		responses.WriteError(r.Context(), c.logg, w, svcerrors.Wrap(svcerrors.CodeValidation, err, "invalid request body"))
		return
	}

	user, err := c.users.Update(r.Context(), id, input)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	responses.WriteSuccess(w, userResponse{
		ID:         user.ID,
		Name:       user.Name,
		Email:      user.Email,
		UsdBalance: decimal.Zero,
		BtcBalance: decimal.Zero,
	})
}

func (c *Users) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, svcerrors.New(svcerrors.CodeValidation, "invalid user id"))
		return
	}

	if err := c.users.Delete(r.Context(), id); err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	// the row is gone either way; a failed eviction only leaves a stale entry
	if err := c.balances.EvictBalance(r.Context(), id); err != nil {
		c.logg.Warn(c.logg.WithUserID(r.Context(), id), "balance cache eviction failed after delete")
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *Users) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, svcerrors.New(svcerrors.CodeValidation, "invalid user id"))
		return
	}

	user, err := c.users.GetUser(r.Context(), id)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	// GetBalance degrades to zero balances; it never fails the request
	snapshot, err := c.balances.GetBalance(r.Context(), id)
	if err != nil {
		snapshot = wallet.BalanceSnapshot{UserID: id, UsdBalance: decimal.Zero, BtcBalance: decimal.Zero}
	}

	responses.WriteSuccess(w, userResponse{
		ID:         user.ID,
		Name:       user.Name,
		Email:      user.Email,
		UsdBalance: snapshot.UsdBalance,
		BtcBalance: snapshot.BtcBalance,
	})
}
