package otp

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/campuskit/identity/core"
	"github.com/campuskit/identity/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("no active code for this email")
	ErrExpired         = errors.New("code has expired, request a new one")
	ErrTooManyAttempts = errors.New("too many failed attempts, request a new code")
	ErrInvalidCode     = errors.New("invalid code")

	// NowFunc is mockable for expiry tests.
	NowFunc = time.Now
)

// InvalidCodeError carries the attempts remaining after a mismatch.
type InvalidCodeError struct {
	AttemptsLeft int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("%s, %d attempt(s) remaining", ErrInvalidCode, e.AttemptsLeft)
}

func (e *InvalidCodeError) Unwrap() error { return ErrInvalidCode }

type (
	Repository interface {
		// CreateCode replaces any existing code for (email, purpose): the
		// delete and the insert happen together.
		CreateCode(ctx context.Context, code Code) (Code, error)
		// GetActiveCode returns the most recent code for (email, purpose) or
		// ErrNotFound.
		GetActiveCode(ctx context.Context, email string, purpose Purpose) (Code, error)
		IncrementAttempts(ctx context.Context, id string) (Code, error)
		DeleteCode(ctx context.Context, id string) error
	}

	Service struct {
		repo    Repository
		usrSvc  *user.Service
		mailSvc core.EmailService
		limiter core.RateLimiter
		logger  core.Logger
	}

	// IssueResult reports an issued code. DevCode carries the plaintext code
	// only when dispatch failed outside production, for local visibility; it
	// is never populated in a production deployment.
	IssueResult struct {
		Email     string
		ExpiresAt time.Time
		DevCode   string
	}
)

func NewService(repo Repository, usrSvc *user.Service, mailSvc core.EmailService, limiter core.RateLimiter, logger core.Logger) *Service {
	return &Service{repo: repo, usrSvc: usrSvc, mailSvc: mailSvc, limiter: limiter, logger: logger}
}

// Issue creates a fresh code for (email, purpose), invalidating any previous
// one, and dispatches it by email. The target principal must exist and be
// active. Issuance is rate-limited per email.
func (svc *Service) Issue(ctx context.Context, email string, purpose Purpose) (IssueResult, error) {
	email = core.CleanString(email, true /* lower */)

	if err := svc.limiter.Allow(ctx, "otp:"+string(purpose)+":"+email); err != nil {
		return IssueResult{}, err
	}

	usr, err := svc.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return IssueResult{}, err
	}
	if !usr.IsActive {
		return IssueResult{}, user.ErrAccountDeactivated
	}

	plain, err := randomCode()
	if err != nil {
		return IssueResult{}, pkgerrors.Wrap(err, "generating code")
	}
	now := NowFunc().UTC()
	code, err := svc.repo.CreateCode(ctx, Code{
		ID:        uuid.New().String(),
		Email:     email,
		Code:      plain,
		Purpose:   purpose,
		ExpiresAt: now.Add(core.Conf.OTP.ExpirationDelta),
		CreatedAt: now,
	})
	if err != nil {
		return IssueResult{}, err
	}

	res := IssueResult{Email: email, ExpiresAt: code.ExpiresAt}
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Your one-time code",
		BodyStr: fmt.Sprintf("Your one-time code is %s. It expires in %s.\n", plain, core.Conf.OTP.ExpirationDelta),
	}
	if err := svc.mailSvc.SendMessage(msg); err != nil {
		svc.logger.Warn("dispatching one-time code", err)
		if !core.Conf.IsProd() {
			// local/dev fallback only; a production deployment never
			// surfaces the code to the caller
			res.DevCode = plain
		}
	}
	return res, nil
}

// Verify validates a submitted code and returns the backing principal.
// Terminal failures (expiry, attempt exhaustion, success) delete the code.
func (svc *Service) Verify(ctx context.Context, email string, purpose Purpose, submitted string) (user.User, error) {
	email = core.CleanString(email, true /* lower */)

	code, err := svc.repo.GetActiveCode(ctx, email, purpose)
	if err != nil {
		return user.User{}, err
	}

	if code.Expired(NowFunc().UTC()) {
		if err := svc.repo.DeleteCode(ctx, code.ID); err != nil {
			return user.User{}, err
		}
		return user.User{}, ErrExpired
	}

	if code.Attempts >= core.Conf.OTP.MaxAttempts {
		if err := svc.repo.DeleteCode(ctx, code.ID); err != nil {
			return user.User{}, err
		}
		return user.User{}, ErrTooManyAttempts
	}

	if code.Code != submitted {
		code, err = svc.repo.IncrementAttempts(ctx, code.ID)
		if err != nil {
			return user.User{}, err
		}
		left := core.Conf.OTP.MaxAttempts - code.Attempts
		if left <= 0 {
			if err := svc.repo.DeleteCode(ctx, code.ID); err != nil {
				return user.User{}, err
			}
			return user.User{}, ErrTooManyAttempts
		}
		return user.User{}, &InvalidCodeError{AttemptsLeft: left}
	}

	if err := svc.repo.DeleteCode(ctx, code.ID); err != nil {
		return user.User{}, err
	}

	usr, err := svc.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return user.User{}, err
	}
	if !usr.IsActive {
		return user.User{}, user.ErrAccountDeactivated
	}
	return svc.usrSvc.SetLastLogin(ctx, usr)
}
