package dig_container

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/hifdh/apps/api/echo"
	"github.com/trezcool/hifdh/core/user"
	"github.com/trezcool/hifdh/storage"
)

func TestNew(t *testing.T) {
	prev, had := os.LookupEnv("ENV")
	require.NoError(t, os.Setenv("ENV", "TEST"))
	defer func() {
		if had {
			_ = os.Setenv("ENV", prev)
		} else {
			_ = os.Unsetenv("ENV")
		}
	}()

	c := New()
	err := c.Invoke(func(repos *storage.Repos, usrRepo user.Repository, server *echoapi.Server) {
		assert.NotNil(t, repos.Mem, "TEST runs on the memory store")
		assert.Equal(t, repos.User, usrRepo)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Welcome to Hifdh API!", rec.Body.String())
	})
	require.NoError(t, err)
}
