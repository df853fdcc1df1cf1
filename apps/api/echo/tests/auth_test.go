package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/hifdh/apps/api/echo"
	"github.com/trezcool/hifdh/core"
	"github.com/trezcool/hifdh/core/user"
	"github.com/trezcool/hifdh/services/email"
	"github.com/trezcool/hifdh/storage/database/inmem"
	"github.com/trezcool/hifdh/testutil"
)

const pwd = "Qw3rty!Zx9#"

func Test_authAPI_login(t *testing.T) {
	a := setup(t)
	usr := testutil.CreateUser(t, a.usrRepo, "Yusuf Patel", "yusuf@test.za", pwd, user.RoleStudent)

	failed := marshallObj(t, httpErr{Error: "authentication failed"})
	tests := []httpTest{
		{
			name:     "missing fields",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email":"this field is required","password":"this field is required"}`),
		},
		{
			name:     "unknown email",
			body:     []byte(`{"email":"nobody@test.za","password":"` + pwd + `"}`),
			wantCode: http.StatusBadRequest,
			wantData: failed,
		},
		{
			name:     "wrong password",
			body:     []byte(`{"email":"yusuf@test.za","password":"wrong"}`),
			wantCode: http.StatusBadRequest,
			wantData: failed,
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/auth/login"
	}
	runHTTPTests(t, a, tests)

	t.Run("success", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/login", []byte(`{"email":" Yusuf@Test.za ","password":"`+pwd+`"}`))
		a.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		claims := parseToken(t, a, rec.Body.Bytes())
		assert.Equal(t, usr.ID, claims.Subject)
		assert.Equal(t, "student", claims.Role)
		assert.True(t, claims.IsStudent)
		assert.False(t, claims.IsAdmin)

		saved, err := a.usrRepo.GetUserByID(req.Context(), usr.ID)
		require.NoError(t, err)
		assert.True(t, saved.LastLogin.Equal(today))
	})
}

func parseToken(t *testing.T, a app, body []byte) *echoapi.Claims {
	t.Helper()
	var res echoapi.LoginResponse
	require.NoError(t, json.Unmarshal(body, &res))

	claims := new(echoapi.Claims)
	_, err := jwt.ParseWithClaims(res.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(a.conf.SecretKey), nil
	})
	require.NoError(t, err)
	return claims
}

func Test_authAPI_googleLogin(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		a := setup(t)
		testutil.CreateUser(t, a.usrRepo, "Yusuf Patel", "yusuf@test.za", "", user.RoleStudent)
		runHTTPTests(t, a, []httpTest{{
			name:     "google sign-in disabled",
			method:   http.MethodPost,
			path:     "/v1/auth/google",
			body:     []byte(`{"id_token":"valid:yusuf@test.za"}`),
			wantCode: http.StatusNotFound,
			wantData: marshallObj(t, errNotFound),
		}})
	})

	a := setup(t, func(conf *core.Config) { conf.GoogleClientID = googleClientID })
	usr := testutil.CreateUser(t, a.usrRepo, "Yusuf Patel", "yusuf@test.za", "", user.RoleStudent)

	failed := marshallObj(t, httpErr{Error: "authentication failed"})
	tests := []httpTest{
		{
			name:     "missing token",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"id_token":"this field is required"}`),
		},
		{name: "invalid token", body: []byte(`{"id_token":"forged"}`), wantCode: http.StatusBadRequest, wantData: failed},
		{
			name:     "unverified email",
			body:     []byte(`{"id_token":"unverified:yusuf@test.za"}`),
			wantCode: http.StatusBadRequest,
			wantData: failed,
		},
		{
			name:     "account not provisioned",
			body:     []byte(`{"id_token":"valid:stranger@test.za"}`),
			wantCode: http.StatusBadRequest,
			wantData: failed,
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/auth/google"
	}
	runHTTPTests(t, a, tests)

	t.Run("success", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/google", []byte(`{"id_token":"valid:yusuf@test.za"}`))
		a.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, usr.ID, parseToken(t, a, rec.Body.Bytes()).Subject)
	})
}

func Test_authAPI_refreshToken(t *testing.T) {
	a := setup(t)
	usr := testutil.CreateUser(t, a.usrRepo, "Yusuf Patel", "yusuf@test.za", "", user.RoleStudent)

	expired := echoapi.GetUserClaims(a.conf, usr, time.Now().Add(-a.conf.Server.JWTRefreshExpirationDelta-time.Hour).Unix())
	expiredToken, err := echoapi.GenerateToken(a.conf, expired)
	require.NoError(t, err)

	ghost := user.User{ID: "ghost", Email: "ghost@test.za", Role: user.RoleStudent}

	runHTTPTests(t, a, []httpTest{
		{
			name:     "anonymous",
			method:   http.MethodPost,
			path:     "/v1/auth/token-refresh",
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{
			name:     "refresh expired",
			method:   http.MethodPost,
			path:     "/v1/auth/token-refresh",
			token:    expiredToken,
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{
			name:     "deleted user",
			method:   http.MethodPost,
			path:     "/v1/auth/token-refresh",
			token:    a.getToken(t, ghost),
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, httpErr{Error: "user not authenticated"}),
		},
	})

	t.Run("success", func(t *testing.T) {
		orig := echoapi.GetUserClaims(a.conf, usr, time.Now().Add(-time.Hour).Unix())
		token, err := echoapi.GenerateToken(a.conf, orig)
		require.NoError(t, err)

		req, rec := newAuthRequest(http.MethodPost, "/v1/auth/token-refresh", token)
		a.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		claims := parseToken(t, a, rec.Body.Bytes())
		assert.Equal(t, usr.ID, claims.Subject)
		assert.Equal(t, orig.OrigIssuedAt, claims.OrigIssuedAt)
	})
}

func Test_authAPI_passwordReset(t *testing.T) {
	a := setup(t)
	testutil.CreateUser(t, a.usrRepo, "Yusuf Patel", "yusuf@test.za", "", user.RoleStudent)

	success := []byte(`{"success":"If the email address supplied is associated with an account on this system, ` +
		`an email will arrive in your inbox shortly with instructions to reset your password."}`)

	runHTTPTests(t, a, []httpTest{
		{
			name:     "unknown email",
			method:   http.MethodPost,
			path:     "/v1/auth/password-reset",
			body:     []byte(`{"email":"stranger@test.za"}`),
			wantCode: http.StatusOK,
			wantData: success,
		},
	})
	_, sent := emailsvc.LastSentMessage()
	assert.False(t, sent, "no mail for an unknown email")

	runHTTPTests(t, a, []httpTest{
		{
			name:     "known email",
			method:   http.MethodPost,
			path:     "/v1/auth/password-reset",
			body:     []byte(`{"email":"yusuf@test.za"}`),
			wantCode: http.StatusOK,
			wantData: success,
		},
	})
	msg, sent := emailsvc.LastSentMessage()
	require.True(t, sent)
	assert.Equal(t, "password_reset", msg.TemplateName)
	assert.Equal(t, "yusuf@test.za", msg.To[0].Address)

	data, ok := msg.TemplateData.(map[string]string)
	require.True(t, ok)
	confirm := func(token, newPwd string) []byte {
		return marshallObj(t, user.ResetUserPassword{UID: data["UID"], Token: token, Password: newPwd, PasswordConfirm: newPwd})
	}

	runHTTPTests(t, a, []httpTest{
		{
			name:     "invalid token",
			method:   http.MethodPost,
			path:     "/v1/auth/password-reset-confirm",
			body:     confirm("1-bad", pwd),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "weak password",
			method:   http.MethodPost,
			path:     "/v1/auth/password-reset-confirm",
			body:     confirm(data["Token"], "12345678"),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "success",
			method:   http.MethodPost,
			path:     "/v1/auth/password-reset-confirm",
			body:     confirm(data["Token"], pwd),
			wantCode: http.StatusOK,
			wantData: []byte(`{"success":"Password has been reset with the new password."}`),
		},
		{
			name:     "login with the new password",
			method:   http.MethodPost,
			path:     "/v1/auth/login",
			body:     []byte(`{"email":"yusuf@test.za","password":"` + pwd + `"}`),
			wantCode: http.StatusOK,
		},
	})
}

func Test_authAPI_me(t *testing.T) {
	a := setup(t)
	admin := testutil.CreateUser(t, a.usrRepo, "Ustadh Ismail", "ismail@test.za", "", user.RoleAdmin)
	student := testutil.CreateUser(t, a.usrRepo, "Yusuf Patel", "yusuf@test.za", "", user.RoleStudent)
	visitor := testutil.CreateUser(t, a.usrRepo, "Visitor", "visitor@test.za", "", user.RoleNone)

	me := func(usr user.User, role user.Role, state string) []byte {
		return marshallObj(t, echoapi.MeResponse{
			ID:      usr.ID,
			Email:   usr.Email,
			Name:    usr.Name,
			Role:    role,
			IsAdmin: role == user.RoleAdmin,
			State:   state,
		})
	}

	tests := []httpTest{
		{name: "anonymous", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "admin", token: a.getToken(t, admin), wantCode: http.StatusOK, wantData: me(admin, user.RoleAdmin, "admin")},
		{name: "student", token: a.getToken(t, student), wantCode: http.StatusOK, wantData: me(student, user.RoleStudent, "authenticated")},
		{name: "no role", token: a.getToken(t, visitor), wantCode: http.StatusOK, wantData: me(visitor, user.RoleNone, "authenticated")},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
		tests[i].path = "/v1/auth/me"
	}
	runHTTPTests(t, a, tests)

	t.Run("role lookup fails closed", func(t *testing.T) {
		a.db.Fail(inmemdb.OpGetUser, errors.New("unavailable"))
		defer a.db.Fail(inmemdb.OpGetUser, nil)

		admin.Name = "" // the name lookup fails as well
		tt := httpTest{method: http.MethodGet, path: "/v1/auth/me", token: a.getToken(t, admin), wantCode: http.StatusOK,
			wantData: me(admin, user.RoleNone, "authenticated")}
		checkCodeAndData(t, tt, a.serve(tt))
	})
}

func Test_authAPI_queryStudents(t *testing.T) {
	a := setup(t)
	admin := testutil.CreateUser(t, a.usrRepo, "Ustadh Ismail", "ismail@test.za", "", user.RoleAdmin)
	yusuf := testutil.CreateUser(t, a.usrRepo, "Yusuf Patel", "yusuf@test.za", "", user.RoleStudent)
	amina := testutil.CreateUser(t, a.usrRepo, "Amina Dawood", "amina@test.za", "", user.RoleStudent)
	testutil.CreateUser(t, a.usrRepo, "Visitor", "visitor@test.za", "", user.RoleNone)

	adminToken := a.getToken(t, admin)
	entry := func(usr user.User) echoapi.StudentResponse {
		return echoapi.StudentResponse{ID: usr.ID, Email: usr.Email, Name: usr.Name}
	}

	tests := []httpTest{
		{name: "anonymous", path: "/v1/students", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "student", path: "/v1/students", token: a.getToken(t, yusuf), wantCode: http.StatusForbidden,
			wantData: marshallObj(t, errForbidden)},
		{name: "admin", path: "/v1/students", token: adminToken, wantCode: http.StatusOK,
			wantData: marshallObj(t, []echoapi.StudentResponse{entry(amina), entry(yusuf)})},
		{name: "search", path: "/v1/students?search=YUS", token: adminToken, wantCode: http.StatusOK,
			wantData: marshallObj(t, []echoapi.StudentResponse{entry(yusuf)})},
		{name: "no match", path: "/v1/students?search=zz", token: adminToken, wantCode: http.StatusOK, wantData: []byte(`[]`)},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
	}
	runHTTPTests(t, a, tests)
}
