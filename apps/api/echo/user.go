package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/campuskit/identity/core"
	"github.com/campuskit/identity/core/user"
)

type userApi struct {
	svc *user.Service
}

func registerUserAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *user.Service) {
	api := userApi{svc: svc}

	g.POST("/auth/login", api.login)

	ug := g.Group("/users", auth)
	ug.GET("/me", api.me)
	ug.POST("/password-change", api.changePassword)
	ug.GET("/roles", api.queryRoles, roleMiddleware(user.AdminRoles...))
	ug.POST("/:id/deactivate", api.deactivate, roleMiddleware(user.AdminRoles...))
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Success: true, Token: token, User: usr})
}

func (api *userApi) me(ctx echo.Context) error {
	auth, err := getAuthContext(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, auth.User)
}

func (api *userApi) changePassword(ctx echo.Context) error {
	auth, err := getAuthContext(ctx)
	if err != nil {
		return err
	}

	var data user.ChangePassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if _, err := api.svc.ChangePassword(ctx.Request().Context(), auth.User, data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Password has been changed."})
}

// deactivate flips the principal's active flag off. A school admin may only
// deactivate principals of their own school, and nobody deactivates themselves.
func (api *userApi) deactivate(ctx echo.Context) error {
	auth, err := getAuthContext(ctx)
	if err != nil {
		return err
	}

	id := ctx.Param("id")
	if id == auth.User.ID {
		return errHttpForbidden
	}

	target, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	if !auth.User.IsSuperAdmin() && target.SchoolID != auth.User.SchoolID {
		return errHttpNotFound // do not leak other tenants' principals
	}
	if target.IsSuperAdmin() && !auth.User.IsSuperAdmin() {
		return errHttpForbidden
	}

	if _, err := api.svc.Deactivate(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deactivating user")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Account deactivated."})
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Success bool      `json:"success"`
		Token   string    `json:"token"`
		User    user.User `json:"user"`
	}

	SuccessResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return core.Validate.Struct(lr)
}
