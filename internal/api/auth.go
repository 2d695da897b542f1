package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/spatialmeet/server/internal/database"
	"github.com/spatialmeet/server/internal/types"
	"github.com/teris-io/shortid"
	"golang.org/x/crypto/bcrypt"
)

const (
	userIdClaim   = "user-id"
	usernameClaim = "username"
	guestClaim    = "guest"
	expClaim      = "exp"
	jtiClaim      = "jti"

	tokenCookieKey       = "token"
	defaultJwtExpiration = time.Hour * 24
)

type contextKey string

const identityKey contextKey = "identity"

// Identity returns the authenticated user resolved by the auth middleware.
// Guests have Id 0 and Guest set.
func Identity(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(identityKey).(types.User)
	return user, ok
}

func WithIdentity(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, identityKey, user)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type GuestRequest struct {
	DisplayName string `json:"display_name"`
}

type GuestSession struct {
	GuestId     string `json:"guest_id"`
	DisplayName string `json:"display_name"`
	Guest       bool   `json:"is_guest"`
}

func (s *SpatialMeetApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
	}

	newUser, err := s.db.CreateAccount(params)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, types.User{
		Id:           newUser.Id,
		Username:     newUser.Username,
		EmailAddress: newUser.EmailAddress,
		CreatedAt:    newUser.CreatedAt,
		UpdatedAt:    newUser.UpdatedAt,
	})
}

func (s *SpatialMeetApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if lr.Email == "" || lr.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetAccountByEmail(lr.Email)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	u := types.User{
		Id:           dbUser.Id,
		Username:     dbUser.Username,
		EmailAddress: dbUser.EmailAddress,
		CreatedAt:    dbUser.CreatedAt,
		UpdatedAt:    dbUser.UpdatedAt,
	}

	token, err := s.createJwtForSession(u, defaultJwtExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))

	s.writeJson(w, http.StatusOK, u)
}

// enterAsGuest issues a temporary identity with no account behind it.
// Guests can join rooms and signal; their presence lives only in memory.
func (s *SpatialMeetApp) enterAsGuest(w http.ResponseWriter, r *http.Request) {
	var req GuestRequest
	if r.Body != nil {
		// A missing or empty body just means no display name was chosen.
		json.NewDecoder(r.Body).Decode(&req)
	}

	sid, err := shortid.Generate()
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	guestId := "guest_" + sid
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = "Guest " + sid
	}

	guest := types.User{
		Username: guestId,
		Guest:    true,
	}

	token, err := s.createJwtForSession(guest, defaultJwtExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))

	s.log.Printf("guest session created: %s", guestId)
	s.writeJson(w, http.StatusOK, GuestSession{
		GuestId:     guestId,
		DisplayName: displayName,
		Guest:       true,
	})
}

func (s *SpatialMeetApp) session(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if identity.Guest {
		s.writeJson(w, http.StatusOK, identity)
		return
	}

	user, err := s.db.GetAccountById(identity.Id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.User{
		Id:           user.Id,
		Username:     user.Username,
		EmailAddress: user.EmailAddress,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	})
}

func (s *SpatialMeetApp) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createJwtCookie("", time.Duration(time.Unix(0, 0).Unix())))
	w.WriteHeader(http.StatusNoContent)
}

func createJwtCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}

func (s *SpatialMeetApp) createJwtForSession(user types.User, exp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim:   user.Id,
		usernameClaim: user.Username,
		guestClaim:    user.Guest,
		jtiClaim:      uuid.NewString(),
		expClaim:      time.Now().Add(exp).Unix(),
	})

	return token.SignedString(s.signingKey)
}

func (s *SpatialMeetApp) extractIdentityFromToken(tokenString string) (types.User, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	})
	if err != nil {
		return types.User{}, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return types.User{}, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return types.User{}, fmt.Errorf("invalid token claims")
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok {
		return types.User{}, fmt.Errorf("invalid user id claim")
	}

	username, ok := claims[usernameClaim].(string)
	if !ok || username == "" {
		return types.User{}, fmt.Errorf("invalid username claim")
	}

	guest, _ := claims[guestClaim].(bool)
	if !guest && userId == 0 {
		return types.User{}, fmt.Errorf("non-guest token without user id")
	}

	return types.User{
		Id:       int(userId),
		Username: username,
		Guest:    guest,
	}, nil
}
