package member

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/campuskit/identity/core"
	"github.com/campuskit/identity/core/credential"
	"github.com/campuskit/identity/core/school"
	"github.com/campuskit/identity/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("member not found")
	ErrSchoolNotApproved = errors.New("school is not approved")
)

type (
	Repository interface {
		RegNoExists(ctx context.Context, regNo string) (bool, error)
		// CreateMemberWithPrincipal creates the member record and its paired
		// principal atomically: either both exist afterwards or neither does.
		CreateMemberWithPrincipal(ctx context.Context, m Member, usr user.User) (Member, error)
		GetMemberByID(ctx context.Context, id string) (Member, error)
		QueryMembersBySchool(ctx context.Context, schoolID string) ([]Member, error)
	}

	Service struct {
		repo    Repository
		usrSvc  *user.Service
		schSvc  *school.Service
		mailSvc core.EmailService
		logger  core.Logger
	}

	// ProvisionResult reports one provisioned identity. FallbackPassword is
	// only set when credential dispatch failed; the caller surfaces it exactly
	// once and never logs or persists it.
	ProvisionResult struct {
		Member               Member    `json:"member"`
		Principal            user.User `json:"principal"`
		CredentialsDelivered bool      `json:"credentials_delivered"`
		FallbackPassword     string    `json:"fallback_password,omitempty"`
	}

	// RowResult is the outcome of one bulk-import row.
	RowResult struct {
		Row    int     `json:"row"`
		Member *Member `json:"member,omitempty"`
		Error  string  `json:"error,omitempty"`
	}

	BulkResult struct {
		Succeeded int         `json:"succeeded"`
		Failed    int         `json:"failed"`
		Rows      []RowResult `json:"rows"`
	}
)

func NewService(repo Repository, usrSvc *user.Service, schSvc *school.Service, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, usrSvc: usrSvc, schSvc: schSvc, mailSvc: mailSvc, logger: logger}
}

// Provision creates the domain record and its paired principal for one
// dependent identity, generating and dispatching credentials. The two writes
// are atomic: a principal-creation failure leaves no orphan member behind.
func (svc *Service) Provision(ctx context.Context, nm NewMember) (ProvisionResult, error) {
	if err := nm.Validate(ctx, svc.usrSvc); err != nil {
		return ProvisionResult{}, err
	}

	sch, err := svc.schSvc.GetByID(ctx, nm.SchoolID)
	if err != nil {
		return ProvisionResult{}, err
	}
	if sch.Status != school.StatusApproved {
		return ProvisionResult{}, ErrSchoolNotApproved
	}

	regNo, err := credential.ID(ctx, sch.Name, nm.Kind.Tag(), svc.repo.RegNoExists)
	if err != nil {
		return ProvisionResult{}, pkgerrors.Wrap(err, "generating registration number")
	}
	pwd, err := credential.Password(12)
	if err != nil {
		return ProvisionResult{}, pkgerrors.Wrap(err, "generating password")
	}

	now := time.Now().UTC()
	principal := user.User{
		ID:                uuid.New().String(),
		Name:              nm.Name,
		Email:             nm.Email,
		Role:              nm.Kind.Role(),
		SchoolID:          sch.ID,
		IsActive:          true,
		CanChangePassword: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := principal.SetPassword(pwd); err != nil {
		return ProvisionResult{}, err
	}

	m := Member{
		ID:          uuid.New().String(),
		SchoolID:    sch.ID,
		Kind:        nm.Kind,
		Name:        nm.Name,
		Email:       nm.Email,
		RegNo:       regNo,
		PrincipalID: principal.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m, err = svc.repo.CreateMemberWithPrincipal(ctx, m, principal)
	if err != nil {
		return ProvisionResult{}, err
	}

	res := ProvisionResult{Member: m, Principal: principal, CredentialsDelivered: true}
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: nm.Name, Address: nm.Email}},
		Subject: fmt.Sprintf("Your %s account at %s", nm.Kind, sch.Name),
		BodyStr: fmt.Sprintf(
			"Hello %s,\n\nAn account has been created for you at %q.\n\n"+
				"Registration no: %s\nLogin: %s\nPassword: %s\n\n"+
				"Please change your password after the first login.\n",
			nm.Name, sch.Name, regNo, nm.Email, pwd),
	}
	if err := svc.mailSvc.SendMessage(msg); err != nil {
		svc.logger.Warn("dispatching member credentials", err)
		res.CredentialsDelivered = false
		res.FallbackPassword = pwd
	}
	return res, nil
}

// BulkImport applies Provision per row, continuing past per-row failures.
// Row numbering is 1-based.
func (svc *Service) BulkImport(ctx context.Context, rows []NewMember) BulkResult {
	res := BulkResult{Rows: make([]RowResult, 0, len(rows))}
	for i, nm := range rows {
		row := RowResult{Row: i + 1}
		if pr, err := svc.Provision(ctx, nm); err != nil {
			row.Error = rowError(err)
			res.Failed++
		} else {
			m := pr.Member
			row.Member = &m
			res.Succeeded++
		}
		res.Rows = append(res.Rows, row)
	}
	return res
}

func (svc *Service) GetByID(ctx context.Context, id string) (Member, error) {
	return svc.repo.GetMemberByID(ctx, id)
}

func (svc *Service) QueryBySchool(ctx context.Context, schoolID string) ([]Member, error) {
	return svc.repo.QueryMembersBySchool(ctx, schoolID)
}

func rowError(err error) string {
	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		if len(vErr.Fields) > 0 {
			return vErr.Fields[0].Field + ": " + vErr.Fields[0].Error
		}
	}
	return err.Error()
}
