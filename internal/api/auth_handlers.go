package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mehrbod2002/masjidmap/internal/api/respond"
	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	"github.com/mehrbod2002/masjidmap/internal/middleware"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/mehrbod2002/masjidmap/internal/service"
)

type AuthHandler struct {
	accountService service.AccountService
	jwtSecret      string
	jwtTTL         time.Duration
}

func NewAuthHandler(accountService service.AccountService, jwtSecret string, jwtTTL time.Duration) *AuthHandler {
	return &AuthHandler{accountService: accountService, jwtSecret: jwtSecret, jwtTTL: jwtTTL}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

type AuthResponse struct {
	Token string          `json:"token"`
	User  *models.Account `json:"user"`
}

// @Summary Register an account
// @Description Creates a regular user account and returns a session token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Account details"
// @Success 201 {object} respond.Envelope{data=AuthResponse}
// @Failure 400 {object} respond.Envelope "Invalid input"
// @Failure 409 {object} respond.Envelope "Email already registered"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req, false) {
		return
	}
	account, err := h.accountService.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respond.Error(c, err)
		return
	}
	h.issue(c, http.StatusCreated, account)
}

// @Summary Log in
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} respond.Envelope{data=AuthResponse}
// @Failure 401 {object} respond.Envelope "Invalid email or password"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req, false) {
		return
	}
	account, err := h.accountService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respond.Error(c, err)
		return
	}
	h.issue(c, http.StatusOK, account)
}

func (h *AuthHandler) issue(c *gin.Context, status int, account *models.Account) {
	token, err := middleware.GenerateJWT(account.ID, h.jwtSecret, h.jwtTTL)
	if err != nil {
		respond.Error(c, apperrors.Wrap(apperrors.KindInternal, err, "sign token"))
		return
	}
	respond.OK(c, status, AuthResponse{Token: token, User: account})
}

// @Summary Current account
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} respond.Envelope{data=models.Account}
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	caller := middleware.CallerFrom(c)
	account, err := h.accountService.GetAccount(c.Request.Context(), caller.AccountID.Hex())
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, account)
}

// @Summary List accounts
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} respond.Envelope{data=[]models.Account}
// @Failure 403 {object} respond.Envelope "Main admin only"
// @Router /auth/users [get]
func (h *AuthHandler) GetAllUsers(c *gin.Context) {
	accounts, err := h.accountService.GetAllAccounts(c.Request.Context(), middleware.CallerFrom(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, accounts)
}

// @Summary Change an account role
// @Description Main admin only; the role must be user or admin
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param request body SetRoleRequest true "New role"
// @Success 200 {object} respond.Envelope{data=models.Account}
// @Router /auth/users/{id}/role [put]
func (h *AuthHandler) SetRole(c *gin.Context) {
	var req SetRoleRequest
	if !bindJSON(c, &req, false) {
		return
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		respond.Error(c, apperrors.Validation("unknown role %q", req.Role).WithField("role", "oneof user admin"))
		return
	}
	account, err := h.accountService.SetRole(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), role)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, account)
}
