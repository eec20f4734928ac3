package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/campuskit/identity/core/user"
)

func Test_userApi_login(t *testing.T) {
	env := setup(t)
	sch := approvedSchool(t, env, "Greenwood High", "contact@greenwood.cd")
	createUser(t, env, "Teacher", "teacher@test.cd", "G00d!passw0rd", user.RoleTeacher, sch.ID, true)
	createUser(t, env, "Gone", "gone@test.cd", "G00d!passw0rd", user.RoleTeacher, sch.ID, false)

	body := func(email, pwd string) []byte {
		return marchallObj(t, LoginRequest{Email: email, Password: pwd})
	}

	tests := []httpTest{
		{
			name: "bad password", body: body("teacher@test.cd", "nope"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrAuthenticationFailed.Error()}),
		},
		{
			name: "unknown email looks the same", body: body("ghost@test.cd", "G00d!passw0rd"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrAuthenticationFailed.Error()}),
		},
		{
			name: "deactivated", body: body("gone@test.cd", "G00d!passw0rd"),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: user.ErrAccountDeactivated.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/auth/login", tt.body)
			env.srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("success", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/login", body("Teacher@test.cd", "G00d!passw0rd"))
		env.srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("login code = %v; body %s", rec.Code, rec.Body.String())
		}
		var res LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if !res.Success || res.Token == "" {
			t.Errorf("login response = %+v; want success with a token", res)
		}
		if res.User.Email != "teacher@test.cd" {
			t.Errorf("login user = %q", res.User.Email)
		}

		// the token works against an authed endpoint
		req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", res.Token)
		env.srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("me code = %v; body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("validation", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/login", []byte(`{}`))
		env.srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("login code = %v; want 400", rec.Code)
		}
	})
}

func Test_authMiddleware(t *testing.T) {
	env := setup(t)
	sch := approvedSchool(t, env, "Greenwood High", "contact@greenwood.cd")
	usr := createUser(t, env, "Teacher", "teacher@test.cd", "G00d!passw0rd", user.RoleTeacher, sch.ID, true)
	gone := createUser(t, env, "Gone", "gone@test.cd", "G00d!passw0rd", user.RoleTeacher, sch.ID, false)

	ghost := usr
	ghost.ID = "no-such-principal"

	tests := []httpTest{
		{
			name:     "no token",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "malformed token", token: "lol.o.lol",
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errInvalidToken),
		},
		{
			name: "expired token", token: expiredToken(t, usr),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errInvalidToken),
		},
		{
			name: "token of a deleted principal", token: getToken(t, ghost),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errInvalidToken),
		},
		{
			// a valid unexpired token no longer works once the principal is off
			name: "token of a deactivated principal", token: getToken(t, gone),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: user.ErrAccountDeactivated.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", tt.token)
			env.srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("valid token", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", getToken(t, usr))
		env.srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("me code = %v; body %s", rec.Code, rec.Body.String())
		}
		var me user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if me.ID != usr.ID {
			t.Errorf("me = %q; want %q", me.ID, usr.ID)
		}
	})
}

func Test_userApi_changePassword(t *testing.T) {
	env := setup(t)
	sch := approvedSchool(t, env, "Greenwood High", "contact@greenwood.cd")
	usr := createUser(t, env, "Teacher", "teacher@test.cd", "G00d!passw0rd", user.RoleTeacher, sch.ID, true)
	token := getToken(t, usr)

	body := marchallObj(t, user.ChangePassword{
		OldPassword: "G00d!passw0rd", Password: "N3w!passw0rd", PasswordConfirm: "N3w!passw0rd",
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/users/password-change", token, body)
	env.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("password-change code = %v; body %s", rec.Code, rec.Body.String())
	}

	// confirm mismatch is a validation error
	body = marchallObj(t, user.ChangePassword{
		OldPassword: "N3w!passw0rd", Password: "An0ther!pwd", PasswordConfirm: "different",
	})
	req, rec = newAuthRequest(http.MethodPost, "/v1/users/password-change", token, body)
	env.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("password-change code = %v; want 400", rec.Code)
	}
}

func Test_userApi_deactivate(t *testing.T) {
	env := setup(t)
	sch := approvedSchool(t, env, "Greenwood High", "contact@greenwood.cd")
	other := approvedSchool(t, env, "Other School", "contact@other.cd")

	admin, err := env.usrSvc.GetByEmail(context.Background(), "contact@greenwood.cd")
	if err != nil {
		t.Fatalf("GetByEmail(admin) failed: %v", err)
	}
	student := createUser(t, env, "Student", "stu@test.cd", "G00d!passw0rd", user.RoleStudent, sch.ID, true)
	foreign := createUser(t, env, "Foreign", "foreign@test.cd", "G00d!passw0rd", user.RoleStudent, other.ID, true)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name: "student cannot deactivate", path: "/v1/users/" + student.ID + "/deactivate",
			token:    getToken(t, student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name: "admin cannot deactivate self", path: "/v1/users/" + admin.ID + "/deactivate",
			token:    adminToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name: "other tenants are invisible", path: "/v1/users/" + foreign.ID + "/deactivate",
			token:    adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "admin deactivates own student", path: "/v1/users/" + student.ID + "/deactivate",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, SuccessResponse{Success: true, Message: "Account deactivated."}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, tt.token)
			env.srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// the deactivated student cannot log in anymore
	body := marchallObj(t, LoginRequest{Email: "stu@test.cd", Password: "G00d!passw0rd"})
	req, rec := newRequest(http.MethodPost, "/v1/auth/login", body)
	env.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("login code = %v; want 403 after deactivation", rec.Code)
	}
}
