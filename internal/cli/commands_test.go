package cli

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/R3E-Network/user_board/internal/app"
	"github.com/R3E-Network/user_board/internal/app/auth"
	"github.com/R3E-Network/user_board/internal/app/domain/user"
	"github.com/R3E-Network/user_board/internal/app/httpapi"
	"github.com/R3E-Network/user_board/internal/client"
	"github.com/R3E-Network/user_board/internal/grid"
	"github.com/R3E-Network/user_board/internal/logging"
)

type harness struct {
	t         *testing.T
	server    *httptest.Server
	statePath string
	api       *client.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	application, err := app.New(app.Stores{}, auth.Config{Secret: []byte("cli-secret")}, logging.NewNop())
	require.NoError(t, err)
	srv := httptest.NewServer(httpapi.NewHandler(application, httpapi.Options{}))
	t.Cleanup(srv.Close)
	return &harness{
		t:         t,
		server:    srv,
		statePath: filepath.Join(t.TempDir(), "state.yaml"),
		api:       client.New(client.Config{BaseURL: srv.URL}),
	}
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--server", h.server.URL, "--state", h.statePath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run("", args...)
	require.NoError(h.t, err, out)
	return out
}

func (h *harness) state() *State {
	h.t.Helper()
	st, err := LoadState(h.statePath)
	require.NoError(h.t, err)
	return st
}

func (h *harness) userByEmail(email string) user.User {
	h.t.Helper()
	page, err := h.api.ListUsers(context.Background(), user.Query{PerPage: 100})
	require.NoError(h.t, err)
	for _, u := range page.Users {
		if u.Email == email {
			return u
		}
	}
	h.t.Fatalf("user %s not found", email)
	return user.User{}
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "boardctl", cmd.Use)
	for _, name := range []string{"list", "sort", "login", "logout", "whoami", "register", "add", "edit", "delete"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
	server := cmd.PersistentFlags().Lookup("server")
	require.NotNil(t, server)
	assert.Equal(t, "s", server.Shorthand)
}

func TestBoardWorkflow(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("register", "--email", "alice@example.com", "--nickname", "alice", "--password", "secret123", "--role", "admin")
	assert.Contains(t, out, "registered alice@example.com")

	// Password read from stdin when the flag is missing.
	out, err := h.run("secret123\n", "login", "--email", "alice@example.com")
	require.NoError(t, err, out)
	assert.Contains(t, out, "signed in as alice (admin)")
	st := h.state()
	assert.Equal(t, h.server.URL, st.Server)
	assert.NotEmpty(t, st.AccessToken)
	assert.NotEmpty(t, st.RefreshToken)

	out = h.mustRun("whoami")
	assert.Contains(t, out, "alice <alice@example.com>")

	out = h.mustRun("add", "email=carol@example.com", "nickname=carol", "role=designer", "backEndLevel=7")
	assert.Contains(t, out, "created 1, updated 0, deleted 0")
	assert.Contains(t, out, "carol@example.com")
	assert.Contains(t, out, "temporary password")
	carol := h.userByEmail("carol@example.com")
	assert.Equal(t, user.RoleDesigner, carol.Role)
	assert.Equal(t, 7, carol.BackEndLevel)

	out = h.mustRun("edit", grid.KeyFor(carol.ID), "nickname=caroline", "frontEndLevel=abc")
	assert.Contains(t, out, "updated 1")
	carol = h.userByEmail("carol@example.com")
	assert.Equal(t, "caroline", carol.Nickname)
	assert.Equal(t, 0, carol.FrontEndLevel)

	out = h.mustRun("sort", "email")
	assert.Contains(t, out, "email ▲1")
	out = h.mustRun("sort", "email")
	assert.Contains(t, out, "email ▼1")
	assert.Less(t, strings.Index(out, "carol@example.com"), strings.Index(out, "alice@example.com"))
	assert.Equal(t, "email:desc", h.state().Sort)

	out = h.mustRun("sort", "--set", "role:asc,nickname:desc")
	assert.Contains(t, out, "role ▲1")
	assert.Contains(t, out, "nickname ▼2")

	out = h.mustRun("list", "--per-page", "1", "--page", "2")
	assert.Contains(t, out, "page 2/2, 2 users")
	assert.Equal(t, 1, h.state().PerPage)
	h.mustRun("list", "--per-page", "10", "--page", "1")

	out = h.mustRun("delete", grid.KeyFor(carol.ID))
	assert.Contains(t, out, "deleted 1")
	assert.NotContains(t, out, "carol@example.com")

	out = h.mustRun("logout")
	assert.Contains(t, out, "signed out")
	st = h.state()
	assert.Empty(t, st.AccessToken)
	assert.Empty(t, st.RefreshToken)
	assert.Equal(t, "role:asc,nickname:desc", st.Sort)
}

func TestDeleteRange(t *testing.T) {
	h := newHarness(t)
	h.mustRun("register", "--email", "admin@example.com", "--nickname", "admin", "--password", "secret123")
	h.mustRun("login", "--email", "admin@example.com", "--password", "secret123")
	for _, name := range []string{"b", "c", "d"} {
		h.mustRun("add", "email="+name+"@example.com", "nickname="+name)
	}
	h.mustRun("sort", "email")

	b := h.userByEmail("b@example.com")
	d := h.userByEmail("d@example.com")
	out := h.mustRun("delete", "--range", grid.KeyFor(b.ID), grid.KeyFor(d.ID))
	assert.Contains(t, out, "deleted 3")

	page, err := h.api.ListUsers(context.Background(), user.Query{})
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalCount)
	assert.Equal(t, "admin@example.com", page.Users[0].Email)
}

func TestCommandErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "add", "email=x@example.com")
	require.Error(t, err)
	assert.True(t, client.IsUnauthorized(err))

	_, err = h.run("", "add", "password=x")
	require.ErrorIs(t, err, grid.ErrColumnNotEditable)

	_, err = h.run("", "add", "nickname")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected column=value")

	_, err = h.run("", "sort")
	require.Error(t, err)

	_, err = h.run("", "sort", "password")
	require.ErrorIs(t, err, grid.ErrUnsupportedSortKey)

	_, err = h.run("", "delete", "--range", "1")
	require.Error(t, err)

	h.mustRun("register", "--email", "admin@example.com", "--nickname", "admin", "--password", "secret123")
	h.mustRun("login", "--email", "admin@example.com", "--password", "secret123")
	_, err = h.run("", "edit", "999", "nickname=x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 999 is not on page 1")

	out := h.mustRun("logout")
	assert.Contains(t, out, "signed out")
	out = h.mustRun("logout")
	assert.Contains(t, out, "not signed in")
}

func TestFailedRowsReportError(t *testing.T) {
	h := newHarness(t)
	h.mustRun("register", "--email", "admin@example.com", "--nickname", "admin", "--password", "secret123")
	h.mustRun("login", "--email", "admin@example.com", "--password", "secret123")

	out, err := h.run("", "add", "email=admin@example.com", "nickname=admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 row(s) failed")
	assert.Contains(t, out, "! ")
}

func TestParseAssignments(t *testing.T) {
	got, err := ParseAssignments([]string{"email=a@b.c", "phoneNumber="})
	require.NoError(t, err)
	assert.Equal(t, []Assignment{{Column: "email", Value: "a@b.c"}, {Column: "phoneNumber", Value: ""}}, got)
}

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	st, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, &State{}, st)

	st = &State{Server: "http://x", AccessToken: "a", RefreshToken: "r", Sort: "email:asc", PerPage: 5}
	require.NoError(t, st.Save(path))
	got, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, st, got)

	got.ClearTokens()
	assert.Empty(t, got.AccessToken)
	assert.Equal(t, "http://x", got.Server)
}
