package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/campuskit/identity/core"
	"github.com/campuskit/identity/core/school"
	"github.com/campuskit/identity/core/user"
)

type schoolApi struct {
	svc *school.Service
}

func registerSchoolAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *school.Service) {
	api := schoolApi{svc: svc}

	sg := g.Group("/schools")

	// public self-registration
	sg.POST("/register", api.register)

	// review endpoints, super admin only
	ag := sg.Group("", auth, roleMiddleware(user.RoleSuperAdmin))
	ag.GET("/pending", api.pending)
	ag.GET("/all", api.all)
	ag.POST("/approve", api.approve)
	ag.POST("/:id/approve", api.autoApprove)
	ag.POST("/:id/reject", api.reject)
}

// Handlers

func (api *schoolApi) register(ctx echo.Context) error {
	var data school.RegisterSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RegisterSchool")
	}
	if err := data.Validate(ctx.Request().Context(), api.svc); err != nil {
		return err
	}

	sch, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering school")
	}
	return ctx.JSON(http.StatusCreated, SchoolResponse{Success: true, School: sch})
}

func (api *schoolApi) pending(ctx echo.Context) error {
	schools, err := api.svc.Pending(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying pending schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, SchoolListResponse{Success: true, Schools: schools})
}

func (api *schoolApi) all(ctx echo.Context) error {
	schools, err := api.svc.All(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, SchoolListResponse{Success: true, Schools: schools})
}

// approve is the manual variant: the super admin supplies the admin login.
func (api *schoolApi) approve(ctx echo.Context) error {
	var data ApproveSchoolRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ApproveSchoolRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	res, err := api.svc.Approve(ctx.Request().Context(), data.SchoolID, data.ApproveSchool)
	if err != nil {
		return errors.Wrap(err, "approving school")
	}
	return ctx.JSON(http.StatusOK, newApprovalResponse(res))
}

// autoApprove derives the admin login from the registration contact.
func (api *schoolApi) autoApprove(ctx echo.Context) error {
	res, err := api.svc.AutoApprove(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving school")
	}
	return ctx.JSON(http.StatusOK, newApprovalResponse(res))
}

func (api *schoolApi) reject(ctx echo.Context) error {
	sch, err := api.svc.Reject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "rejecting school")
	}
	return ctx.JSON(http.StatusOK, SchoolResponse{Success: true, School: sch})
}

type (
	SchoolResponse struct {
		Success bool          `json:"success"`
		School  school.School `json:"school"`
	}

	SchoolListResponse struct {
		Success bool            `json:"success"`
		Schools []school.School `json:"schools"`
	}

	ApproveSchoolRequest struct {
		SchoolID string `json:"school_id" validate:"required"`
		school.ApproveSchool
	}

	// ApprovalResponse surfaces the fallback password exactly once when
	// credential dispatch failed; it is never persisted.
	ApprovalResponse struct {
		Success              bool          `json:"success"`
		School               school.School `json:"school"`
		Admin                user.User     `json:"admin"`
		CredentialsDelivered bool          `json:"credentials_delivered"`
		FallbackPassword     string        `json:"fallback_password,omitempty"`
	}
)

func (r *ApproveSchoolRequest) Validate() error {
	r.AdminName = core.CleanString(r.AdminName)
	r.AdminEmail = core.CleanString(r.AdminEmail, true /* lower */)
	return core.Validate.Struct(r)
}

func newApprovalResponse(res school.ApprovalResult) ApprovalResponse {
	return ApprovalResponse{
		Success:              true,
		School:               res.School,
		Admin:                res.Admin,
		CredentialsDelivered: res.CredentialsDelivered,
		FallbackPassword:     res.FallbackPassword,
	}
}
