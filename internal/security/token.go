package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const operatorScope = "console"

// TokenService issues and validates operator bearer tokens for the HTTP
// console.
type TokenService struct {
	secret    []byte
	issuer    string
	expiresIn time.Duration
}

func NewTokenService(secret, issuer string, expiresIn time.Duration) *TokenService {
	return &TokenService{
		secret:    []byte(secret),
		issuer:    issuer,
		expiresIn: expiresIn,
	}
}

// CreateForOperator creates a token for operator using the default TTL.
func (t *TokenService) CreateForOperator(operator string) (string, error) {
	return t.CreateWithTTL(operator, t.expiresIn)
}

// CreateWithTTL creates a token for operator with an explicit TTL.
func (t *TokenService) CreateWithTTL(operator string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   operator,
		"iss":   t.issuer,
		"scope": operatorScope,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse validates a token and returns its claims.
func (t *TokenService) Parse(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		return claims, nil
	}
	return nil, jwt.ErrTokenMalformed
}

// Operator validates tokenStr and returns the operator name it was issued to.
func (t *TokenService) Operator(tokenStr string) (string, error) {
	claims, err := t.Parse(tokenStr)
	if err != nil {
		return "", err
	}
	if scope, _ := claims["scope"].(string); scope != operatorScope {
		return "", errors.New("token lacks console scope")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return sub, nil
}
