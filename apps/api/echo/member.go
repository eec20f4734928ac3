package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/campuskit/identity/core/member"
	"github.com/campuskit/identity/core/user"
)

type memberApi struct {
	svc *member.Service
}

func registerMemberAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *member.Service) {
	api := memberApi{svc: svc}

	mg := g.Group("/members", auth, roleMiddleware(user.AdminRoles...))
	mg.POST("", api.provision)
	mg.POST("/bulk-import", api.bulkImport)
	mg.GET("", api.query)
	mg.GET("/:id", api.retrieve)
}

// Handlers

func (api *memberApi) provision(ctx echo.Context) error {
	auth, err := getAuthContext(ctx)
	if err != nil {
		return err
	}

	var data member.NewMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMember")
	}
	data.SchoolID, err = resolveSchoolID(auth, data.SchoolID)
	if err != nil {
		return err
	}

	res, err := api.svc.Provision(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "provisioning member")
	}
	return ctx.JSON(http.StatusCreated, ProvisionResponse{Success: true, ProvisionResult: res})
}

func (api *memberApi) bulkImport(ctx echo.Context) error {
	auth, err := getAuthContext(ctx)
	if err != nil {
		return err
	}

	var data BulkImportRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkImportRequest")
	}
	for i := range data.Members {
		data.Members[i].SchoolID, err = resolveSchoolID(auth, data.Members[i].SchoolID)
		if err != nil {
			return err
		}
	}

	res := api.svc.BulkImport(ctx.Request().Context(), data.Members)
	return ctx.JSON(http.StatusOK, BulkImportResponse{Success: true, BulkResult: res})
}

func (api *memberApi) query(ctx echo.Context) error {
	auth, err := getAuthContext(ctx)
	if err != nil {
		return err
	}
	schoolID, err := resolveSchoolID(auth, ctx.QueryParam("school_id"))
	if err != nil {
		return err
	}

	members, err := api.svc.QueryBySchool(ctx.Request().Context(), schoolID)
	if err != nil {
		return errors.Wrap(err, "querying members")
	}
	if members == nil {
		members = []member.Member{}
	}
	return ctx.JSON(http.StatusOK, MemberListResponse{Success: true, Members: members})
}

func (api *memberApi) retrieve(ctx echo.Context) error {
	auth, err := getAuthContext(ctx)
	if err != nil {
		return err
	}

	m, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding member by ID")
	}
	if !auth.User.IsSuperAdmin() && m.SchoolID != auth.User.SchoolID {
		return errHttpNotFound // do not leak other tenants' members
	}
	return ctx.JSON(http.StatusOK, MemberResponse{Success: true, Member: m})
}

type (
	ProvisionResponse struct {
		Success bool `json:"success"`
		member.ProvisionResult
	}

	BulkImportRequest struct {
		Members []member.NewMember `json:"members"`
	}

	BulkImportResponse struct {
		Success bool `json:"success"`
		member.BulkResult
	}

	MemberResponse struct {
		Success bool          `json:"success"`
		Member  member.Member `json:"member"`
	}

	MemberListResponse struct {
		Success bool            `json:"success"`
		Members []member.Member `json:"members"`
	}
)
