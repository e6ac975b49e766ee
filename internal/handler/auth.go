package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/psychx/careercoach/internal/model"
)

const tokenIssuer = "careercoach"

// tokenClaims are carried by every access token. The registered ID (jti)
// names the auth_sessions row that keeps the token alive.
type tokenClaims struct {
	Role model.UserRole `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) signToken(u *model.User, sess *model.AuthSession) (string, error) {
	claims := tokenClaims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   u.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.config.JWTSecret))
}

func (h *Handler) parseToken(raw string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(h.config.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, errors.New("token missing id or subject")
	}
	return claims, nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// requireAuth is middleware that checks for a valid bearer token whose
// session has not been revoked.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeMessage(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}
		claims, err := h.parseToken(raw)
		if err != nil {
			slog.Debug("rejected token", "error", err)
			writeMessage(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		authSess, err := h.store.GetAuthSession(r.Context(), claims.ID)
		if err != nil {
			slog.Error("failed to get auth session", "error", err)
			writeMessage(w, r, http.StatusInternalServerError, "InternalError")
			return
		}
		if authSess == nil || authSess.UserID != claims.Subject {
			writeMessage(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		user, err := h.store.GetUserByID(r.Context(), authSess.UserID)
		if err != nil || user == nil || !user.Active {
			writeMessage(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		ctx = model.ContextWithTokenID(ctx, claims.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				writeMessage(w, r, http.StatusUnauthorized, "Unauthorized")
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeMessage(w, r, http.StatusForbidden, "Forbidden")
		})
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Email == "" || req.Password == "" {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		slog.Error("failed to get user", "error", err)
		writeMessage(w, r, http.StatusInternalServerError, "InternalError")
		return
	}
	if user == nil || !user.Active {
		writeMessage(w, r, http.StatusUnauthorized, "LoginError")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeMessage(w, r, http.StatusUnauthorized, "LoginError")
		return
	}

	sess, err := h.store.CreateAuthSession(r.Context(), user.ID, h.config.TokenTTL)
	if err != nil {
		writeError(w, r, fmt.Errorf("create auth session: %w", err))
		return
	}
	token, err := h.signToken(user, sess)
	if err != nil {
		writeError(w, r, fmt.Errorf("sign token: %w", err))
		return
	}
	slog.Info("user logged in", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: sess.ExpiresAt, User: user})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if jti := model.TokenIDFromContext(r.Context()); jti != "" {
		if err := h.store.DeleteAuthSession(r.Context(), jti); err != nil {
			writeError(w, r, fmt.Errorf("delete auth session: %w", err))
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.UserFromContext(r.Context()))
}
