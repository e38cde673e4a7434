package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/sysgate/internal/access"
)

// Claims son los claims del access token. El claim role refleja el privilegio
// al momento de la transición de autenticación; consumidores que necesiten el
// privilegio vigente re-consultan user_roles.
type Claims struct {
	jwtv5.RegisteredClaims
	SessionHash string `json:"sid"`
	Role        string `json:"role"`
}

// Privilege mapea el claim role a un nivel de privilegio.
func (c *Claims) Privilege() access.Privilege {
	if c.Role == string(access.PrivilegeAdministrator) {
		return access.PrivilegeAdministrator
	}
	return access.PrivilegeStandard
}

// TokenIssuer firma y valida access tokens HS256.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Issue emite un token para (usuario, sesión, privilegio).
func (i *TokenIssuer) Issue(userID, sessionHash string, priv access.Privilege) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   userID,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(i.ttl)),
		},
		SessionHash: sessionHash,
		Role:        string(priv),
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse valida firma, issuer y expiración, y retorna los claims.
func (i *TokenIssuer) Parse(raw string) (*Claims, error) {
	var claims Claims
	tk, err := jwtv5.ParseWithClaims(raw, &claims,
		func(*jwtv5.Token) (any, error) { return i.secret, nil },
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithIssuer(i.issuer),
		jwtv5.WithLeeway(30*time.Second),
	)
	if err != nil {
		return nil, err
	}
	if !tk.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return &claims, nil
}

// NewSessionHash genera el identificador de una sesión nueva: sha256 hex de
// 32 bytes aleatorios. Es lo único que se persiste y lo que viaja en el claim
// sid; nunca hay un token de sesión en claro.
func NewSessionHash() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
