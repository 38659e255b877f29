package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ChargePointIDClaim names the claim binding a token to one charge point.
const ChargePointIDClaim = "cpid"

// NewToken issues the HMAC bearer token a charge point presents on connect.
func NewToken(secret, chargePointID string) (string, error) {
	claims := jwt.MapClaims{
		ChargePointIDClaim: chargePointID,
		"iat":              time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyRequest checks the Bearer token on a websocket upgrade request. The
// token must be HMAC-signed with the shared secret; when a cpid claim is
// present it must match the charge point id from the connection path.
func VerifyRequest(r *http.Request, secret, chargePointID string) error {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return errors.New("auth: missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return errors.New("auth: invalid authorization header")
	}

	token, err := jwt.Parse(strings.TrimSpace(parts[1]), func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return errors.New("auth: invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return errors.New("auth: invalid token claims")
	}
	if cpid, ok := claims[ChargePointIDClaim].(string); ok && cpid != chargePointID {
		return fmt.Errorf("auth: token issued for %q, not %q", cpid, chargePointID)
	}
	return nil
}
