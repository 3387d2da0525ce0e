package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies an agent. AgentID is the identity minted at registration;
// ClientID records which shared client credential enrolled it.
type Claims struct {
	AgentID  string `json:"sub"`
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret string
	// Expiry of zero means the token never expires; agents hold their
	// identity token indefinitely and re-register only when told to.
	Expiry time.Duration
	Issuer string
}

func DefaultTokenConfig(secret string) TokenConfig {
	return TokenConfig{
		Secret: secret,
		Issuer: "printfleet",
	}
}

func CreateToken(agentID, clientID string, cfg TokenConfig) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("missing secret")
	}
	if agentID == "" {
		return "", errors.New("missing agentID")
	}

	claims := Claims{
		AgentID:  agentID,
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   cfg.Issuer,
			IssuedAt: jwt.NewNumericDate(time.Now()),
			Subject:  agentID,
		},
	}
	if cfg.Expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(cfg.Expiry))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

func VerifyToken(tokenString string, cfg TokenConfig) (*Claims, error) {
	if cfg.Secret == "" {
		return nil, errors.New("missing secret")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.AgentID == "" {
		return nil, errors.New("missing agent id claim")
	}
	return claims, nil
}
