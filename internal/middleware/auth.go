package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/model"
)

// TokenChecker проверяет, не отозван ли токен (jti). Узкий интерфейс —
// реализуется storage.Store.
type TokenChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// Claims — полезная нагрузка access-токена.
type Claims struct {
	UserID   int64            `json:"user_id"`
	Username string           `json:"username"`
	Role     model.GlobalRole `json:"role"`
	jwt.RegisteredClaims
}

// BearerAuth проверяет JWT (HS256) из заголовка Authorization: Bearer <token>.
// Для WebSocket-рукопожатия токен допускается в query-параметре token:
// браузерный WebSocket API не умеет ставить заголовки.
func BearerAuth(secret string, tokens TokenChecker) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" {
				http.Error(w, `{"status":"error","message":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return key, nil
			}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithLeeway(30*time.Second))
			if err != nil || !token.Valid || claims.UserID == 0 {
				http.Error(w, `{"status":"error","message":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			jti := claims.ID
			if tokens != nil && jti != "" {
				revoked, err := tokens.IsTokenRevoked(r.Context(), jti)
				if err != nil {
					logger.Errorf("auth check revocation token=%s: %v", MaskToken(jti), err)
					http.Error(w, `{"status":"error","message":"internal server error"}`, http.StatusInternalServerError)
					return
				}
				if revoked {
					http.Error(w, `{"status":"error","message":"unauthorized"}`, http.StatusUnauthorized)
					return
				}
			}

			ctx := WithIdentity(r.Context(), Identity{
				UserID:   claims.UserID,
				Username: claims.Username,
				Role:     claims.Role,
				TokenID:  jti,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(h[len("Bearer "):])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
