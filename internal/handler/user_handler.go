package handler

import (
	"net/http"

	"tourdesk/internal/middleware"
	"tourdesk/internal/model"
	"tourdesk/internal/service"
	"tourdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

// managers may edit settings and the team; everyone else only reads.
var managers = []string{model.RoleOwner, model.RoleAdmin}

type UserHandler struct {
	userService     service.UserService
	auth            *middleware.Auth
	defaultTimezone string // applied to registrations that name none
}

// NewUserHandler sets up the routing dependencies for account and team endpoints
func NewUserHandler(userService service.UserService, auth *middleware.Auth, defaultTimezone string) *UserHandler {
	return &UserHandler{userService: userService, auth: auth, defaultTimezone: defaultTimezone}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Public routes
	router.POST("/register", h.Register)
	router.POST("/login", h.Login)
	router.POST("/logout", h.Logout)

	// Any signed-in team member
	me := router.Group("/me", h.auth.RequireRole())
	{
		me.GET("", h.GetMe)
		me.PUT("/pin", h.SetPIN)
		me.POST("/pin/verify", h.VerifyPIN)
	}

	team := router.Group("/api/settings/team", h.auth.RequireRole(managers...))
	{
		team.GET("", h.ListTeam)
		team.POST("", h.CreateMember)
		team.PUT("/:id/role", h.UpdateMemberRole)
		team.DELETE("/:id", h.RemoveMember)
	}
}

// Register handles POST /register
// @Summary      Register a company
// @Description  Creates a company with its settings, a direct-booking agent and the owner account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RegisterRequest  true  "Registration"
// @Success      201      {object}  response.Response{data=service.MeResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /register [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Timezone == "" {
		req.Timezone = h.defaultTimezone
	}

	me, err := h.userService.RegisterCompany(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, me)
}

// Login handles POST /login to authenticate and return a JWT token
// @Summary      Login user
// @Description  Authenticates a user by email and password, returning a JWT token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginUserRequest   true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}

	tokenRes, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.auth.SetTokenCookie(c, tokenRes.Token)
	respondOK(c, tokenRes)
}

// Logout handles POST /logout
// @Summary      Logout user
// @Description  Clears the session cookie
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /logout [post]
func (h *UserHandler) Logout(c *gin.Context) {
	h.auth.ClearTokenCookie(c)
	respondOK(c, gin.H{"message": "Logged out successfully"})
}

// GetMe handles GET /me to return current authenticated user based on JWT
// @Summary      Get current user
// @Description  Get the currently authenticated user and their company
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200      {object}  response.Response{data=service.MeResponse}
// @Failure      401      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}

	me, err := h.userService.GetMe(c.Request.Context(), *scope.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, me)
}

// SetPIN handles PUT /me/pin
// @Summary      Set PIN
// @Description  Sets the 4 to 6 digit PIN used to confirm sensitive actions
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.PINRequest  true  "PIN"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Router       /me/pin [put]
func (h *UserHandler) SetPIN(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var req service.PINRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.userService.SetPIN(c.Request.Context(), *scope.UserID, req.PIN); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "PIN updated"})
}

// VerifyPIN handles POST /me/pin/verify
// @Summary      Verify PIN
// @Description  Checks the caller's PIN without changing anything
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.PINRequest  true  "PIN"
// @Success      200      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /me/pin/verify [post]
func (h *UserHandler) VerifyPIN(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var req service.PINRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.userService.VerifyPIN(c.Request.Context(), *scope.UserID, req.PIN); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"verified": true})
}

// ListTeam handles GET /api/settings/team
// @Summary      List team
// @Description  Lists the members of the caller's company
// @Tags         team
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.UserResponse}
// @Router       /api/settings/team [get]
func (h *UserHandler) ListTeam(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}

	users, err := h.userService.ListTeam(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, users)
}

// CreateMember handles POST /api/settings/team
// @Summary      Add team member
// @Description  Creates a user in the caller's company. Only owners may add owners.
// @Tags         team
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateMemberRequest  true  "Member"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/settings/team [post]
func (h *UserHandler) CreateMember(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var req service.CreateMemberRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.CreateMember(c.Request.Context(), scope, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, user)
}

// UpdateMemberRole handles PUT /api/settings/team/:id/role
// @Summary      Change member role
// @Description  Changes a member's role. The last owner cannot be demoted.
// @Tags         team
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "User ID"
// @Param        payload  body      service.UpdateRoleRequest  true  "Role"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/settings/team/{id}/role [put]
func (h *UserHandler) UpdateMemberRole(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.UpdateMemberRole(c.Request.Context(), scope, id, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, user)
}

// RemoveMember handles DELETE /api/settings/team/:id
// @Summary      Remove team member
// @Description  Removes a member from the company. The last owner cannot be removed.
// @Tags         team
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/settings/team/{id} [delete]
func (h *UserHandler) RemoveMember(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.userService.RemoveMember(c.Request.Context(), scope, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Member removed"}))
}
