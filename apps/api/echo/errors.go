package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/campuskit/identity/core"
	"github.com/campuskit/identity/core/member"
	"github.com/campuskit/identity/core/otp"
	"github.com/campuskit/identity/core/school"
	"github.com/campuskit/identity/core/user"
)

var (
	errTokenMissing       = echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	errTokenInvalid       = echo.NewHTTPError(http.StatusForbidden, "invalid or expired token")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, user.ErrAccountDeactivated.Error())
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// statusFor maps domain sentinels to HTTP statuses. Unknown errors fall
// through to 500.
func statusFor(err error) (int, bool) {
	switch err {
	case user.ErrAuthenticationFailed, otp.ErrExpired, otp.ErrTooManyAttempts, otp.ErrInvalidCode:
		return http.StatusBadRequest, true
	case user.ErrAccountDeactivated, user.ErrPasswordChangeLocked:
		return http.StatusForbidden, true
	case user.ErrNotFound, school.ErrNotFound, member.ErrNotFound, otp.ErrNotFound:
		return http.StatusNotFound, true
	case user.ErrEmailExists, school.ErrEmailExists, school.ErrNotPending, member.ErrSchoolNotApproved:
		return http.StatusConflict, true
	case core.ErrRateLimited:
		return http.StatusTooManyRequests, true
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how
// to handle our errors. signalShutdown is called in order to gracefully
// shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if sc, ok := statusFor(cause); ok {
			code = sc
			message = cause.Error()
		} else {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				message = origErr.Message
			case *otp.InvalidCodeError:
				code = http.StatusBadRequest
				message = origErr.Error()
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
				}
				code = http.StatusBadRequest
				message = fldErrs
			case *core.ValidationError:
				if origErr.Fields != nil {
					fldErrs := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var usr user.User
				if auth, aErr := getAuthContext(ctx); aErr == nil {
					usr = auth.User
				}
				logger.Error(msg, errors.Wrap(err, msg), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, echo.Map{"success": false, "error": message})
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
