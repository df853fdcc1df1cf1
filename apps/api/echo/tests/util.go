package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"google.golang.org/api/idtoken"

	. "github.com/trezcool/hifdh/apps/api/echo"
	"github.com/trezcool/hifdh/core"
	"github.com/trezcool/hifdh/core/progress"
	"github.com/trezcool/hifdh/core/user"
	appfs "github.com/trezcool/hifdh/fs"
	"github.com/trezcool/hifdh/services/email"
	"github.com/trezcool/hifdh/services/logger"
	"github.com/trezcool/hifdh/storage/database/inmem"
	"github.com/trezcool/hifdh/testutil"
)

const googleClientID = "hifdh-test.apps.googleusercontent.com"

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}

	errInvalidIDToken = errors.New("idtoken: invalid token")

	// 2026-10-18 08:00 in Johannesburg
	today = time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)
)

type app struct {
	*Server
	conf    *core.Config
	db      *inmemdb.DB
	usrRepo user.Repository
}

// setup returns a server backed by the in-memory store, with the clock frozen on today.
// Google ID tokens are accepted when they equal "valid:<email>" or "unverified:<email>".
func setup(t *testing.T, confs ...func(*core.Config)) app {
	t.Helper()
	testutil.FreezeTime(t, today)
	emailsvc.ResetSentMessages()

	conf := testutil.Config(t)
	for _, fn := range confs {
		fn(conf)
	}
	lg := logsvc.NewNopLogger()
	core.ParseEmailTemplates(appfs.FS, lg, true)

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	progress.InitValidators(validate, translator)

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, lg)

	srv := NewServer(&Options{
		Conf:           conf,
		Logger:         lg,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        user.NewService(usrRepo, mailSvc, conf),
		ProgressSvc:    progress.NewService(inmemdb.NewProgressRepository(db), usrRepo, mailSvc, lg),
		VerifyIDToken:  fakeVerifyIDToken,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = srv.Close() })

	return app{Server: srv, conf: conf, db: db, usrRepo: usrRepo}
}

func fakeVerifyIDToken(_ context.Context, token, audience string) (*idtoken.Payload, error) {
	if audience != googleClientID {
		return nil, errInvalidIDToken
	}
	for prefix, verified := range map[string]bool{"valid:": true, "unverified:": false} {
		if len(token) > len(prefix) && token[:len(prefix)] == prefix {
			return &idtoken.Payload{
				Audience: audience,
				Subject:  "google-" + token[len(prefix):],
				Claims:   map[string]interface{}{"email": token[len(prefix):], "email_verified": verified},
			}, nil
		}
	}
	return nil, errInvalidIDToken
}

type httpErr struct {
	Error string `json:"error"`
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

func (a app) serve(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	a.ServeHTTP(rec, req)
	return rec
}

func (a app) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(a.conf, GetUserClaims(a.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, a app, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, a.serve(tt))
		})
	}
}
