package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/campuskit/identity/core"
	"github.com/campuskit/identity/core/user"
)

const contextAuthKey = "auth"

type (
	// Claims represents the authorization claims transmitted via a JWT.
	Claims struct {
		jwt.RegisteredClaims
		Email    string    `json:"email,omitempty"`
		Role     user.Role `json:"role,omitempty"`
		SchoolID string    `json:"school_id,omitempty"`
	}

	// AuthContext is the verified identity attached to a request once by the
	// auth middleware. Handlers read it, never rebuild it.
	AuthContext struct {
		User   user.User
		Claims Claims
	}
)

func GetUserClaims(usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    core.Conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(core.Conf.Server.JWTExpirationDelta)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email:    usr.Email,
		Role:     usr.Role,
		SchoolID: usr.SchoolID,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(core.Conf.SecretKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(ss string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(ss, claims,
		func(t *jwt.Token) (interface{}, error) { return core.Conf.SecretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// authMiddleware authenticates a request in stages: a missing token is 401;
// a bad signature or expired token, a missing or deactivated principal are
// all 403. On success the verified AuthContext is attached to the request.
func authMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return errTokenMissing
			}
			ss := strings.TrimPrefix(header, "Bearer ")
			if ss == header || ss == "" {
				return errTokenMissing
			}

			claims, err := parseToken(ss)
			if err != nil {
				return errTokenInvalid
			}

			// liveness: the principal behind the token must still be active
			usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errTokenInvalid
				}
				return errors.Wrap(err, "finding user by ID")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}

			ctx.Set(contextAuthKey, AuthContext{User: usr, Claims: *claims})
			return next(ctx)
		}
	}
}

func getAuthContext(ctx echo.Context) (AuthContext, error) {
	if auth, ok := ctx.Get(contextAuthKey).(AuthContext); ok {
		return auth, nil
	}
	return AuthContext{}, errTokenMissing
}

// roleMiddleware allows only the given roles past. It runs after
// authMiddleware; an empty allow-list lets any authenticated principal in.
func roleMiddleware(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			auth, err := getAuthContext(ctx)
			if err != nil {
				return err
			}
			if len(roles) == 0 || auth.User.Role.In(roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// resolveSchoolID scopes tenant-bound requests: a school admin always acts on
// their own school, a super admin must name one.
func resolveSchoolID(auth AuthContext, requested string) (string, error) {
	if auth.User.IsSuperAdmin() {
		if requested == "" {
			return "", echo.NewHTTPError(http.StatusBadRequest, "school_id is required")
		}
		return requested, nil
	}
	if requested != "" && requested != auth.User.SchoolID {
		return "", errHttpForbidden
	}
	return auth.User.SchoolID, nil
}
