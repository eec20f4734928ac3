package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/identity/core"
)

var (
	// errors
	ErrNotFound             = errors.New("user not found")
	ErrEmailExists          = errors.New("a user with this email already exists")
	ErrSchoolRequired       = errors.New("this role requires a school")
	ErrAuthenticationFailed = errors.New("invalid credentials")
	ErrAccountDeactivated   = errors.New("account deactivated")
	ErrPasswordChangeLocked = errors.New("this account cannot change its own password")
)

type (
	UniquenessChecker interface {
		// CheckEmailUniqueness returns ErrEmailExists when any principal
		// (in any tenant) already holds email, excluded users aside.
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
	}

	Repository interface {
		UniquenessChecker
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		QueryUsersBySchool(ctx context.Context, schoolID string) ([]User, error)
		QueryUsersByRole(ctx context.Context, role Role) ([]User, error)
		// UpdateUser only saves set fields; isActive is applied when non-nil.
		UpdateUser(ctx context.Context, usr User, isActive *bool) (User, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CheckEmailUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:                uuid.New().String(),
		Name:              nu.Name,
		Email:             nu.Email,
		Role:              nu.Role,
		SchoolID:          nu.SchoolID,
		IsActive:          true,
		CanChangePassword: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if nu.CanChangePassword != nil {
		usr.CanChangePassword = *nu.CanChangePassword
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) QueryBySchool(ctx context.Context, schoolID string) ([]User, error) {
	return svc.repo.QueryUsersBySchool(ctx, schoolID)
}

func (svc *Service) QueryByRole(ctx context.Context, role Role) ([]User, error) {
	return svc.repo.QueryUsersByRole(ctx, role)
}

// Authenticate verifies email/password against a live account and bumps LastLogin.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if err == ErrNotFound {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, err
	}
	if err := usr.CheckPassword(pwd); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	return svc.SetLastLogin(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	usr.LastLogin = now
	usr.UpdatedAt = now
	return svc.repo.UpdateUser(ctx, usr, nil)
}

// Deactivate flips the active flag off. Principals owning historical records
// are never hard-deleted; this is the destructive operation.
func (svc *Service) Deactivate(ctx context.Context, id string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.UpdatedAt = time.Now().UTC()
	isActive := false
	return svc.repo.UpdateUser(ctx, usr, &isActive)
}

func (svc *Service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error) {
	if !usr.CanChangePassword {
		return User{}, ErrPasswordChangeLocked
	}
	if err := usr.CheckPassword(cp.OldPassword); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	if err := usr.SetPassword(cp.Password); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr, nil)
}

// ResetPassword persists a new password without the self-service checks. It
// backs the admin CLI only.
func (svc *Service) ResetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr, nil)
}

// EnsureSeedAdmin idempotently provisions the super admin principal from
// configured credentials. It is run once at deploy time by the admin CLI,
// never on server start.
func (svc *Service) EnsureSeedAdmin(ctx context.Context, email, pwd string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	if usr, err := svc.GetByEmail(ctx, email); err == nil {
		return usr, nil
	} else if err != ErrNotFound {
		return User{}, err
	}
	noChange := false
	return svc.Create(ctx, NewUser{
		Name:              "Super Admin",
		Email:             email,
		Role:              RoleSuperAdmin,
		Password:          pwd,
		CanChangePassword: &noChange,
	})
}
