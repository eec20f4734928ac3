package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/campuskit/identity/core"
	"github.com/campuskit/identity/core/otp"
)

type otpApi struct {
	svc *otp.Service
}

func registerOTPAPI(g *echo.Group, svc *otp.Service) {
	api := otpApi{svc: svc}

	og := g.Group("/otp")
	og.POST("/send-otp", api.send)
	og.POST("/resend-otp", api.send) // resend issues a fresh code, voiding the old one
	og.POST("/verify-otp", api.verify)
}

// Handlers

func (api *otpApi) send(ctx echo.Context) error {
	var data SendOTPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendOTPRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	res, err := api.svc.Issue(ctx.Request().Context(), data.Email, otp.PurposeLogin)
	if err != nil {
		return errors.Wrap(err, "issuing code")
	}
	return ctx.JSON(http.StatusOK, SendOTPResponse{
		Success:   true,
		Message:   "A one-time code has been sent to " + res.Email + ".",
		ExpiresAt: res.ExpiresAt.Unix(),
		DevCode:   res.DevCode,
	})
}

func (api *otpApi) verify(ctx echo.Context) error {
	var data VerifyOTPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyOTPRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := api.svc.Verify(ctx.Request().Context(), data.Email, otp.PurposeLogin, data.Code)
	if err != nil {
		return errors.Wrap(err, "verifying code")
	}
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Success: true, Token: token, User: usr})
}

type (
	SendOTPRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SendOTPResponse struct {
		Success   bool   `json:"success"`
		Message   string `json:"message"`
		ExpiresAt int64  `json:"expires_at"`
		DevCode   string `json:"dev_code,omitempty"` // non-production dispatch fallback only
	}

	VerifyOTPRequest struct {
		Email string `json:"email" validate:"required,email"`
		Code  string `json:"code" validate:"required,len=6,numeric"`
	}
)

func (r *SendOTPRequest) Validate() error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	return core.Validate.Struct(r)
}

func (r *VerifyOTPRequest) Validate() error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	r.Code = core.CleanString(r.Code)
	return core.Validate.Struct(r)
}
