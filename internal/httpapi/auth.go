package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cafe-pos/internal/backup"

	"github.com/golang-jwt/jwt/v4"
)

// RoleAdmin is the only role allowed on admin routes
const RoleAdmin = "admin"

// Claims carried by API tokens
type Claims struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type claimsKey struct{}

// IssueToken signs a token for userID with the given role
func IssueToken(secret, issuer string, userID int64, role string, ttl time.Duration) (string, time.Time, error) {
	expires := time.Now().Add(ttl)
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("could not sign token: %w", err)
	}
	return signed, expires, nil
}

// ValidateToken checks the signature, expiry and issuer of tokenString
func ValidateToken(secret, issuer, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, fmt.Errorf("token is malformed")
			case ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0:
				return nil, fmt.Errorf("token is expired or not active yet")
			}
		}
		return nil, fmt.Errorf("couldn't handle this token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}
	if issuer != "" && !claims.VerifyIssuer(issuer, true) {
		return nil, fmt.Errorf("unexpected token issuer")
	}
	return claims, nil
}

// requireAdmin rejects requests without a valid admin bearer token and
// records the caller as the backup actor
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := s.logger.WithContext(r.Context())

		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			log.WithField("path", r.URL.Path).Warn("Missing bearer token")
			writeMessage(w, http.StatusUnauthorized, "Missing or malformed Authorization header")
			return
		}

		claims, err := ValidateToken(s.config.JWTSecret, s.config.Issuer, token)
		if err != nil {
			log.WithField("error", err.Error()).Warn("Rejected bearer token")
			writeMessage(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		if claims.Role != RoleAdmin {
			log.WithField("user_id", claims.UserID).Warn("Non-admin user attempted an admin operation")
			writeMessage(w, http.StatusForbidden, "Admin access required")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		ctx = backup.WithActor(ctx, backup.Actor{
			UserID:    strconv.FormatInt(claims.UserID, 10),
			IPAddress: clientIP(r),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the authenticated caller, if any
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}
