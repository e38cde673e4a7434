// Package auth implementa la frontera de autenticación: login, logout y la
// adaptación de sesiones persistidas al gate de acceso.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/sysgate/internal/access"
	"github.com/dropDatabas3/sysgate/internal/domain/repository"
	"github.com/dropDatabas3/sysgate/internal/gate"
	"github.com/dropDatabas3/sysgate/internal/security/password"
)

// ErrInvalidCredentials cubre tanto usuario inexistente como password errónea.
var ErrInvalidCredentials = errors.New("invalid credentials")

// MaintenanceError rechaza un login durante mantenimiento. No es culpa del
// usuario: se muestra solo el mensaje, nunca un error de autorización.
type MaintenanceError struct {
	Message string
}

func (e *MaintenanceError) Error() string { return e.Message }

// Service es la frontera de autenticación.
type Service struct {
	users    repository.UserRepository
	roles    repository.RoleRepository
	sessions repository.SessionRepository
	accessst repository.AccessRepository
	issuer   *TokenIssuer

	sessionTTL time.Duration
	log        *zap.Logger
}

func NewService(
	users repository.UserRepository,
	roles repository.RoleRepository,
	sessions repository.SessionRepository,
	accessst repository.AccessRepository,
	issuer *TokenIssuer,
	sessionTTL time.Duration,
) *Service {
	return &Service{
		users:      users,
		roles:      roles,
		sessions:   sessions,
		accessst:   accessst,
		issuer:     issuer,
		sessionTTL: sessionTTL,
		log:        zap.L().Named("auth"),
	}
}

// LoginResult es el resultado de un login exitoso.
type LoginResult struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresAt   time.Time        `json:"expires_at"`
	UserID      string           `json:"user_id"`
	Privilege   access.Privilege `json:"privilege"`
}

// Login verifica credenciales y, antes de dejar la sesión en pie, hace el
// read-then-decide contra el Access State Store: un usuario standard no puede
// iniciar sesión con mantenimiento activo.
func (s *Service) Login(ctx context.Context, email, plain string) (*LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login lookup: %w", err)
	}
	if !password.Verify(plain, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	priv, err := s.roles.PrivilegeOf(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("login privilege: %w", err)
	}

	st, err := s.accessst.Get(ctx)
	if err != nil {
		// Fail-safe: sin lectura del estado, solo un administrador entra.
		if priv != access.PrivilegeAdministrator {
			s.log.Warn("access state unavailable during login, denying standard user", zap.Error(err))
			return nil, &MaintenanceError{Message: access.UnavailableMessage}
		}
	} else if v := access.Decide(st, priv); v.Status == access.StatusBlocked {
		return nil, &MaintenanceError{Message: v.Message}
	}

	hash, err := NewSessionHash()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}

	expires := time.Now().Add(s.sessionTTL)
	if _, err := s.sessions.Create(ctx, repository.CreateSessionInput{
		UserID:    u.ID,
		TokenHash: hash,
		ExpiresAt: expires,
	}); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	jwt, err := s.issuer.Issue(u.ID, hash, priv)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.log.Info("login ok", zap.String("user_id", u.ID), zap.String("privilege", string(priv)))
	return &LoginResult{
		AccessToken: jwt,
		TokenType:   "Bearer",
		ExpiresAt:   expires,
		UserID:      u.ID,
		Privilege:   priv,
	}, nil
}

// Logout revoca la sesión del token. Idempotente.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	return s.sessions.Revoke(ctx, claims.SessionHash, claims.Subject, "logout")
}

// Authenticate valida un access token y verifica que su sesión siga viva.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*Claims, error) {
	claims, err := s.issuer.Parse(rawToken)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	sess, err := s.sessions.GetByIDHash(ctx, claims.SessionHash)
	if err != nil {
		return nil, fmt.Errorf("session check: %w", err)
	}
	if !sess.Alive(time.Now()) {
		return nil, repository.ErrSessionRevoked
	}
	return claims, nil
}

// Register crea una cuenta nueva con rol user.
func (s *Service) Register(ctx context.Context, email, plain, fullName string) (*repository.User, error) {
	phc, err := password.Hash(password.Default, plain)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.Create(ctx, email, phc, fullName)
	if err != nil {
		return nil, err
	}
	if err := s.roles.Grant(ctx, u.ID, "user"); err != nil {
		return nil, err
	}
	return u, nil
}

// GateSession adapta una sesión autenticada a la interfaz del gate.
type GateSession struct {
	svc    *Service
	claims *Claims
}

// NewGateSession arma el adaptador para los claims de una conexión.
func (s *Service) NewGateSession(claims *Claims) *GateSession {
	return &GateSession{svc: s, claims: claims}
}

// CurrentIdentity re-verifica la sesión contra el store: una sesión revocada
// o expirada se reporta como ausencia de identidad.
func (g *GateSession) CurrentIdentity(ctx context.Context) (*gate.Identity, error) {
	sess, err := g.svc.sessions.GetByIDHash(ctx, g.claims.SessionHash)
	if err != nil {
		return nil, err
	}
	if !sess.Alive(time.Now()) {
		return nil, nil
	}
	return &gate.Identity{UserID: sess.UserID, TokenHash: sess.TokenHash}, nil
}

// RevokeSession revoca la sesión subyacente en el store.
func (g *GateSession) RevokeSession(ctx context.Context, id gate.Identity, reason string) error {
	return g.svc.sessions.Revoke(ctx, id.TokenHash, "system", reason)
}
