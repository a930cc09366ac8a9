package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flextalent-auth/internal/config"
	"github.com/iliyamo/flextalent-auth/internal/repository"
	"github.com/iliyamo/flextalent-auth/internal/service"
	"github.com/iliyamo/flextalent-auth/internal/session"
	"github.com/iliyamo/flextalent-auth/internal/utils"
)

// AuthHandler bundles dependencies for the auth endpoints. Every
// request body is bound into an explicit DTO and validated before any
// service logic runs; unparseable bodies never reach the flows.
type AuthHandler struct {
	Cfg    config.Config
	Users  service.UserDirectory
	Codec  *session.Codec
	Reset  *service.ResetFlowService
	Verify *service.VerificationFlowService
}

func NewAuthHandler(cfg config.Config, u service.UserDirectory, codec *session.Codec, reset *service.ResetFlowService, verify *service.VerificationFlowService) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Codec: codec, Reset: reset, Verify: verify}
}

// ----- DTOs -----

type registerReq struct {
	Email string `json:"email"`
	Role  string `json:"role"` // CANDIDATE | EMPLOYER
}
type verifyEmailReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
	Plan     string `json:"plan"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type forgotPasswordReq struct {
	Email string `json:"email"`
}
type resetPasswordReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Register: create an unverified account and mail the verification link.
// The password is chosen later, when the link is followed.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "valid email required"})
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role != "EMPLOYER" && role != "CANDIDATE" {
		role = "CANDIDATE"
	}

	ctx, cancel := h.dbCtx(c)
	defer cancel()

	uid, err := h.Verify.Register(ctx, req.Email, role)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"user":    userPart{ID: uid, Email: req.Email, Role: role},
		"message": "verification email sent",
	})
}

// VerifyEmail: consume the verification token, set the chosen password,
// mark the account verified and sign the user in. When a paid plan
// requires external checkout the success payload carries a redirect URL.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid body"})
	}

	ctx, cancel := h.dbCtx(c)
	defer cancel()

	res, err := h.Verify.ConsumeVerification(ctx, req.Token, req.Password, strings.ToLower(strings.TrimSpace(req.Plan)))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWeakPassword):
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": err.Error()})
		case errors.Is(err, service.ErrInvalidVerificationToken):
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid or expired token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "verification failed"})
	}

	if err := h.setSessionCookie(c, res.UserID, res.Email, res.Role); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "issue session failed"})
	}
	if res.Redirect != "" {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "redirect": res.Redirect})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Login: verify the credential and set the session cookie. Unknown
// email, unset password and wrong password all answer the same way.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := h.dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !u.Verified() || !u.HasPassword() || !utils.VerifyPassword(*u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := h.setSessionCookie(c, u.ID, u.Email, u.Role); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue session failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user": userPart{ID: u.ID, Email: u.Email, Role: u.Role},
	})
}

// Logout: sessions are stateless, so logging out is clearing the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(session.BuildClearCookie(h.Cfg.Production()))
	return c.NoContent(http.StatusNoContent)
}

// ForgotPassword: always answers the same neutral 200 so the endpoint
// cannot be used to probe whether an email has an account.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "message": "email required"})
	}

	ctx, cancel := h.dbCtx(c)
	defer cancel()

	if err := h.Reset.RequestReset(ctx, req.Email); err != nil {
		// Infrastructure failure, not an outcome an attacker can steer.
		return c.JSON(http.StatusInternalServerError, echo.Map{"ok": false, "message": "request failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "message": service.NeutralResetMessage})
}

// ResetPassword: consume a reset token. Never-issued, expired and
// already-used tokens produce one identical 400.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "message": "invalid body"})
	}

	ctx, cancel := h.dbCtx(c)
	defer cancel()

	if err := h.Reset.ConsumeReset(ctx, req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, service.ErrWeakPassword):
			return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "message": err.Error()})
		case errors.Is(err, service.ErrInvalidResetToken):
			return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "message": "invalid or expired token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"ok": false, "message": "reset failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// Me: simple protected endpoint echoing the session claims.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": c.Get("user_id"),
		"email":   c.Get("email"),
		"role":    c.Get("role"),
	})
}

func (h *AuthHandler) setSessionCookie(c echo.Context, userID uint64, email, role string) error {
	days := h.Cfg.SessionTTLDays
	if days <= 0 {
		days = 7
	}
	issued, err := h.Codec.Issue(userID, email, role, time.Duration(days)*24*time.Hour)
	if err != nil {
		return err
	}
	c.SetCookie(session.BuildSetCookie(issued.Token, days*24*60*60, h.Cfg.Production()))
	return nil
}

func (h *AuthHandler) dbCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}
