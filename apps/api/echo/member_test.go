package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/campuskit/identity/core/member"
	"github.com/campuskit/identity/core/user"
)

func Test_memberApi_provision(t *testing.T) {
	env := setup(t)
	sch := approvedSchool(t, env, "Greenwood High", "contact@greenwood.cd")
	other := approvedSchool(t, env, "Other School", "contact@other.cd")
	admin, err := env.usrSvc.GetByEmail(context.Background(), "contact@greenwood.cd")
	if err != nil {
		t.Fatalf("GetByEmail(admin) failed: %v", err)
	}
	student := createUser(t, env, "Student", "stu@test.cd", "G00d!passw0rd", user.RoleStudent, sch.ID, true)
	adminToken := getToken(t, admin)

	t.Run("student is refused", func(t *testing.T) {
		body := marchallObj(t, member.NewMember{Kind: member.KindStudent, Name: "X", Email: "x@test.cd"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/members", getToken(t, student), body)
		env.srv.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("admin cannot target another tenant", func(t *testing.T) {
		body := marchallObj(t, member.NewMember{SchoolID: other.ID, Kind: member.KindStudent, Name: "X", Email: "x@test.cd"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/members", adminToken, body)
		env.srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("provision code = %v; want 403", rec.Code)
		}
	})

	t.Run("admin provisions into own school implicitly", func(t *testing.T) {
		body := marchallObj(t, member.NewMember{Kind: member.KindStudent, Name: "Amani K", Email: "amani@test.cd"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/members", adminToken, body)
		env.srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("provision code = %v; body %s", rec.Code, rec.Body.String())
		}
		var res ProvisionResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if res.Member.SchoolID != sch.ID {
			t.Errorf("member school = %q; want the admin's own %q", res.Member.SchoolID, sch.ID)
		}
		if !strings.HasPrefix(res.Member.RegNo, "GREENWSTU") {
			t.Errorf("reg no = %q", res.Member.RegNo)
		}
		if res.Principal.Role != user.RoleStudent {
			t.Errorf("principal role = %q", res.Principal.Role)
		}
	})

	t.Run("super admin must name a school", func(t *testing.T) {
		root := seedSuperAdmin(t, env)
		body := marchallObj(t, member.NewMember{Kind: member.KindTeacher, Name: "T", Email: "tch@test.cd"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/members", getToken(t, root), body)
		env.srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("provision code = %v; want 400", rec.Code)
		}

		body = marchallObj(t, member.NewMember{SchoolID: other.ID, Kind: member.KindTeacher, Name: "T", Email: "tch@test.cd"})
		req, rec = newAuthRequest(http.MethodPost, "/v1/members", getToken(t, root), body)
		env.srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Errorf("provision code = %v; body %s", rec.Code, rec.Body.String())
		}
	})
}

func Test_memberApi_query(t *testing.T) {
	env := setup(t)
	sch := approvedSchool(t, env, "Greenwood High", "contact@greenwood.cd")
	other := approvedSchool(t, env, "Other School", "contact@other.cd")
	admin, err := env.usrSvc.GetByEmail(context.Background(), "contact@greenwood.cd")
	if err != nil {
		t.Fatalf("GetByEmail(admin) failed: %v", err)
	}
	adminToken := getToken(t, admin)

	ctx := context.Background()
	mine, err := env.mbrSvc.Provision(ctx, member.NewMember{SchoolID: sch.ID, Kind: member.KindStudent, Name: "Mine", Email: "mine@test.cd"})
	if err != nil {
		t.Fatalf("Provision() failed: %v", err)
	}
	theirs, err := env.mbrSvc.Provision(ctx, member.NewMember{SchoolID: other.ID, Kind: member.KindStudent, Name: "Theirs", Email: "theirs@test.cd"})
	if err != nil {
		t.Fatalf("Provision() failed: %v", err)
	}

	t.Run("list is tenant-scoped", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/members", adminToken)
		env.srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("query code = %v; body %s", rec.Code, rec.Body.String())
		}
		var res MemberListResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(res.Members) != 1 || res.Members[0].ID != mine.Member.ID {
			t.Errorf("query = %+v; want only own members", res.Members)
		}
	})

	t.Run("foreign school_id is refused", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/members?school_id="+other.ID, adminToken)
		env.srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("query code = %v; want 403", rec.Code)
		}
	})

	t.Run("super admin picks the school", func(t *testing.T) {
		root := seedSuperAdmin(t, env)
		req, rec := newAuthRequest(http.MethodGet, "/v1/members?school_id="+other.ID, getToken(t, root))
		env.srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("query code = %v; body %s", rec.Code, rec.Body.String())
		}
		var res MemberListResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(res.Members) != 1 || res.Members[0].ID != theirs.Member.ID {
			t.Errorf("query = %+v; want the other school's members", res.Members)
		}
	})

	t.Run("cross-tenant detail is a 404", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/members/"+theirs.Member.ID, adminToken)
		env.srv.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_memberApi_bulkImport(t *testing.T) {
	env := setup(t)
	approvedSchool(t, env, "Greenwood High", "contact@greenwood.cd")
	admin, err := env.usrSvc.GetByEmail(context.Background(), "contact@greenwood.cd")
	if err != nil {
		t.Fatalf("GetByEmail(admin) failed: %v", err)
	}

	body := marchallObj(t, BulkImportRequest{Members: []member.NewMember{
		{Kind: member.KindStudent, Name: "One", Email: "one@test.cd"},
		{Kind: member.KindStudent, Name: "Dup", Email: "one@test.cd"},
		{Kind: member.KindTeacher, Name: "Three", Email: "three@test.cd"},
	}})
	req, rec := newAuthRequest(http.MethodPost, "/v1/members/bulk-import", getToken(t, admin), body)
	env.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk-import code = %v; body %s", rec.Code, rec.Body.String())
	}

	var res BulkImportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if res.Succeeded != 2 || res.Failed != 1 {
		t.Errorf("bulk-import = %d/%d; want 2 succeeded, 1 failed", res.Succeeded, res.Failed)
	}
	if len(res.Rows) != 3 || res.Rows[1].Row != 2 || res.Rows[1].Error == "" {
		t.Errorf("bulk-import rows = %+v; want a 1-based error on row 2", res.Rows)
	}
}
