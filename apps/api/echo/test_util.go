package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/campuskit/identity/core"
	"github.com/campuskit/identity/core/member"
	"github.com/campuskit/identity/core/otp"
	"github.com/campuskit/identity/core/school"
	"github.com/campuskit/identity/core/user"
	emailsvc "github.com/campuskit/identity/services/email"
	ratelimitsvc "github.com/campuskit/identity/services/ratelimit"
	dummydb "github.com/campuskit/identity/storage/database/dummy"
)

var (
	errMissingToken = httpErr{Error: "authentication required"}
	errInvalidToken = httpErr{Error: "invalid or expired token"}
	errForbidden    = httpErr{Error: "permission denied"}
)

type httpErr struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type testEnv struct {
	srv     Server
	usrSvc  *user.Service
	schSvc  *school.Service
	mbrSvc  *member.Service
	otpSvc  *otp.Service
	usrRepo user.Repository
}

func setup(t *testing.T) testEnv {
	t.Helper()
	core.NewTestConfig()
	emailsvc.ClearSentMessages()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	usrRepo := dummydb.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock()
	limiter := ratelimitsvc.NewInmemLimiter(time.Hour, 100)
	logger := nopLogger{}

	usrSvc := user.NewService(usrRepo)
	schSvc := school.NewService(dummydb.NewSchoolRepository(db), usrSvc, mailSvc, logger)
	mbrSvc := member.NewService(dummydb.NewMemberRepository(db), usrSvc, schSvc, mailSvc, logger)
	otpSvc := otp.NewService(dummydb.NewOTPRepository(db), usrSvc, mailSvc, limiter, logger)

	srv := NewServer(ServerDeps{
		Logger:    logger,
		UserSvc:   usrSvc,
		SchoolSvc: schSvc,
		MemberSvc: mbrSvc,
		OTPSvc:    otpSvc,
	})
	return testEnv{srv: srv, usrSvc: usrSvc, schSvc: schSvc, mbrSvc: mbrSvc, otpSvc: otpSvc, usrRepo: usrRepo}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func createUser(t *testing.T, env testEnv, name, email, pwd string, role user.Role, schoolID string, isActive bool) user.User {
	t.Helper()
	usr, err := env.usrSvc.Create(context.Background(), user.NewUser{
		Name:     name,
		Email:    email,
		Role:     role,
		SchoolID: schoolID,
		Password: pwd,
	})
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	if !isActive {
		if usr, err = env.usrSvc.Deactivate(context.Background(), usr.ID); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	return usr
}

func approvedSchool(t *testing.T, env testEnv, name, contactEmail string) school.School {
	t.Helper()
	ctx := context.Background()
	sch, err := env.schSvc.Register(ctx, school.RegisterSchool{
		Name:         name,
		ContactName:  "Contact",
		ContactEmail: contactEmail,
	})
	if err != nil {
		t.Fatalf("approvedSchool() failed: %v", err)
	}
	res, err := env.schSvc.AutoApprove(ctx, sch.ID)
	if err != nil {
		t.Fatalf("approvedSchool() failed: %v", err)
	}
	return res.School
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func expiredToken(t *testing.T, usr user.User) string {
	t.Helper()
	claims := GetUserClaims(usr)
	claims.IssuedAt = jwt.NewNumericDate(time.Now().Add(-2 * time.Hour))
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("expiredToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
