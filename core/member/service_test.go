package member_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/campuskit/identity/core"
	"github.com/campuskit/identity/core/member"
	"github.com/campuskit/identity/core/school"
	"github.com/campuskit/identity/core/user"
	emailsvc "github.com/campuskit/identity/services/email"
	dummydb "github.com/campuskit/identity/storage/database/dummy"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type failMailSvc struct{}

func (failMailSvc) SendMessages(...*core.EmailMessage) {}
func (failMailSvc) SendMessage(*core.EmailMessage) error {
	return errors.New("smtp down")
}

type env struct {
	mbrSvc *member.Service
	schSvc *school.Service
	usrSvc *user.Service
}

func setup(t *testing.T, mailSvc core.EmailService) env {
	t.Helper()
	core.NewTestConfig()
	emailsvc.ClearSentMessages()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	if mailSvc == nil {
		mailSvc = emailsvc.NewConsoleServiceMock()
	}
	usrSvc := user.NewService(dummydb.NewUserRepository(db))
	schSvc := school.NewService(dummydb.NewSchoolRepository(db), usrSvc, mailSvc, nopLogger{})
	mbrSvc := member.NewService(dummydb.NewMemberRepository(db), usrSvc, schSvc, mailSvc, nopLogger{})
	return env{mbrSvc: mbrSvc, schSvc: schSvc, usrSvc: usrSvc}
}

func approvedSchool(t *testing.T, e env, name, contactEmail string) school.School {
	t.Helper()
	ctx := context.Background()
	sch, err := e.schSvc.Register(ctx, school.RegisterSchool{
		Name:         name,
		ContactName:  "Contact",
		ContactEmail: contactEmail,
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	res, err := e.schSvc.AutoApprove(ctx, sch.ID)
	if err != nil {
		t.Fatalf("AutoApprove() failed: %v", err)
	}
	return res.School
}

func TestService_Provision(t *testing.T) {
	e := setup(t, nil)
	ctx := context.Background()
	sch := approvedSchool(t, e, "Greenwood High", "contact@greenwood.cd")

	res, err := e.mbrSvc.Provision(ctx, member.NewMember{
		SchoolID: sch.ID,
		Kind:     member.KindStudent,
		Name:     "Amani K",
		Email:    "amani@test.cd",
	})
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	m := res.Member
	if m.SchoolID != sch.ID {
		t.Errorf("member school = %q; want %q", m.SchoolID, sch.ID)
	}
	if !strings.HasPrefix(m.RegNo, "GREENWSTU") || len(m.RegNo) != len("GREENWSTU")+6 {
		t.Errorf("reg no = %q; want GREENWSTU followed by 6 digits", m.RegNo)
	}
	if m.PrincipalID != res.Principal.ID {
		t.Errorf("principal link = %q; want %q", m.PrincipalID, res.Principal.ID)
	}
	if !res.CredentialsDelivered || res.FallbackPassword != "" {
		t.Errorf("delivered = %v fallback = %q; want delivered, no fallback", res.CredentialsDelivered, res.FallbackPassword)
	}

	principal, err := e.usrSvc.GetByEmail(ctx, "amani@test.cd")
	if err != nil {
		t.Fatalf("GetByEmail(principal) error = %v", err)
	}
	if principal.Role != user.RoleStudent {
		t.Errorf("principal role = %q; want %q", principal.Role, user.RoleStudent)
	}
	if principal.SchoolID != sch.ID {
		t.Errorf("principal school = %q; want %q", principal.SchoolID, sch.ID)
	}
}

func TestService_Provision_staffGetsAdminRole(t *testing.T) {
	e := setup(t, nil)
	ctx := context.Background()
	sch := approvedSchool(t, e, "Greenwood High", "contact@greenwood.cd")

	res, err := e.mbrSvc.Provision(ctx, member.NewMember{
		SchoolID: sch.ID,
		Kind:     member.KindStaff,
		Name:     "Staff P",
		Email:    "staff@test.cd",
	})
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if res.Principal.Role != user.RoleSchoolAdmin {
		t.Errorf("staff principal role = %q; want %q", res.Principal.Role, user.RoleSchoolAdmin)
	}
	if !strings.Contains(res.Member.RegNo, "STF") {
		t.Errorf("staff reg no = %q; want STF tag", res.Member.RegNo)
	}
}

func TestService_Provision_requiresApprovedSchool(t *testing.T) {
	e := setup(t, nil)
	ctx := context.Background()

	pending, err := e.schSvc.Register(ctx, school.RegisterSchool{
		Name:         "Pending High",
		ContactName:  "Contact",
		ContactEmail: "contact@pending.cd",
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	_, err = e.mbrSvc.Provision(ctx, member.NewMember{
		SchoolID: pending.ID,
		Kind:     member.KindStudent,
		Name:     "Amani K",
		Email:    "amani@test.cd",
	})
	if err != member.ErrSchoolNotApproved {
		t.Errorf("Provision(pending school) error = %v; want %v", err, member.ErrSchoolNotApproved)
	}
}

func TestService_Provision_duplicateEmailLeavesNoOrphan(t *testing.T) {
	e := setup(t, nil)
	ctx := context.Background()
	sch := approvedSchool(t, e, "Greenwood High", "contact@greenwood.cd")

	if _, err := e.mbrSvc.Provision(ctx, member.NewMember{
		SchoolID: sch.ID,
		Kind:     member.KindStudent,
		Name:     "Amani K",
		Email:    "amani@test.cd",
	}); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	_, err := e.mbrSvc.Provision(ctx, member.NewMember{
		SchoolID: sch.ID,
		Kind:     member.KindTeacher,
		Name:     "Other",
		Email:    "amani@test.cd",
	})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Provision(duplicate email) error = %v; want ValidationError", err)
	}

	members, err := e.mbrSvc.QueryBySchool(ctx, sch.ID)
	if err != nil {
		t.Fatalf("QueryBySchool() error = %v", err)
	}
	if len(members) != 1 {
		t.Errorf("QueryBySchool() len = %d; want 1 (no orphan member)", len(members))
	}
}

func TestService_Provision_fallbackPassword(t *testing.T) {
	e := setup(t, failMailSvc{})
	ctx := context.Background()
	sch := approvedSchool(t, e, "Greenwood High", "contact@greenwood.cd")

	res, err := e.mbrSvc.Provision(ctx, member.NewMember{
		SchoolID: sch.ID,
		Kind:     member.KindParent,
		Name:     "Parent P",
		Email:    "parent@test.cd",
	})
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if res.CredentialsDelivered {
		t.Error("delivered = true; want false with a down mailer")
	}
	if res.FallbackPassword == "" {
		t.Fatal("fallback password empty")
	}

	principal, err := e.usrSvc.GetByEmail(ctx, "parent@test.cd")
	if err != nil {
		t.Fatalf("GetByEmail(principal) error = %v", err)
	}
	if err := principal.CheckPassword(res.FallbackPassword); err != nil {
		t.Error("fallback password does not verify against the stored hash")
	}
}

func TestService_BulkImport(t *testing.T) {
	e := setup(t, nil)
	ctx := context.Background()
	sch := approvedSchool(t, e, "Greenwood High", "contact@greenwood.cd")

	rows := []member.NewMember{
		{SchoolID: sch.ID, Kind: member.KindStudent, Name: "One", Email: "one@test.cd"},
		{SchoolID: sch.ID, Kind: member.KindStudent, Name: "Dup", Email: "one@test.cd"}, // duplicate of row 1
		{SchoolID: sch.ID, Kind: member.KindTeacher, Name: "Three", Email: "three@test.cd"},
	}
	res := e.mbrSvc.BulkImport(ctx, rows)

	if res.Succeeded != 2 || res.Failed != 1 {
		t.Fatalf("BulkImport() = %d/%d; want 2 succeeded, 1 failed", res.Succeeded, res.Failed)
	}
	if len(res.Rows) != 3 {
		t.Fatalf("BulkImport() rows = %d; want 3", len(res.Rows))
	}
	if res.Rows[1].Row != 2 || res.Rows[1].Error == "" {
		t.Errorf("row 2 = %+v; want 1-based numbering with an error", res.Rows[1])
	}
	if res.Rows[0].Member == nil || res.Rows[2].Member == nil {
		t.Error("successful rows missing their member")
	}

	members, err := e.mbrSvc.QueryBySchool(ctx, sch.ID)
	if err != nil {
		t.Fatalf("QueryBySchool() error = %v", err)
	}
	if len(members) != 2 {
		t.Errorf("QueryBySchool() len = %d; want 2", len(members))
	}
}
