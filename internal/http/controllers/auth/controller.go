// Package auth expone los endpoints de autenticación.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	authsvc "github.com/dropDatabas3/sysgate/internal/auth"
	"github.com/dropDatabas3/sysgate/internal/domain/repository"
	"github.com/dropDatabas3/sysgate/internal/http/helpers"
)

type Controller struct {
	svc *authsvc.Service
	log *zap.Logger
}

func New(svc *authsvc.Service) *Controller {
	return &Controller{svc: svc, log: zap.L().Named("auth")}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login autentica credenciales. Durante mantenimiento un usuario standard
// recibe 503 con el mensaje del operador; las credenciales nunca se filtran
// en ese caso.
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		helpers.WriteError(w, http.StatusBadRequest, "bad_request", "email y password son requeridos")
		return
	}

	res, err := c.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var me *authsvc.MaintenanceError
		switch {
		case errors.As(err, &me):
			helpers.WriteError(w, http.StatusServiceUnavailable, "maintenance", me.Message)
		case errors.Is(err, authsvc.ErrInvalidCredentials):
			helpers.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "credenciales inválidas")
		default:
			c.log.Error("login failed", zap.Error(err))
			helpers.WriteError(w, http.StatusInternalServerError, "internal_error", "no se pudo iniciar sesión")
		}
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// Logout revoca la sesión del token presentado. Idempotente.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := helpers.ClaimsFrom(r.Context())
	if !ok {
		helpers.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	if err := c.svc.Logout(r.Context(), claims); err != nil {
		c.log.Error("logout failed", zap.Error(err))
		helpers.WriteError(w, http.StatusInternalServerError, "internal_error", "no se pudo cerrar sesión")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me devuelve la identidad de la sesión actual.
func (c *Controller) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := helpers.ClaimsFrom(r.Context())
	if !ok {
		helpers.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"user_id":   claims.Subject,
		"privilege": claims.Privilege(),
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Register crea una cuenta nueva con rol user.
func (c *Controller) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || len(req.Password) < 8 {
		helpers.WriteError(w, http.StatusBadRequest, "bad_request", "email y password (mínimo 8) son requeridos")
		return
	}

	u, err := c.svc.Register(r.Context(), req.Email, req.Password, strings.TrimSpace(req.FullName))
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			helpers.WriteError(w, http.StatusConflict, "conflict", "el email ya está registrado")
			return
		}
		c.log.Error("register failed", zap.Error(err))
		helpers.WriteError(w, http.StatusInternalServerError, "internal_error", "no se pudo crear la cuenta")
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, map[string]any{
		"user_id": u.ID,
		"email":   u.Email,
	})
}
