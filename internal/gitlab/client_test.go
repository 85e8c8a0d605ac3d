package gitlab

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/mirrorsmith/go-forktools/internal/errors"
	"github.com/mirrorsmith/go-forktools/internal/token"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("PRIVATE-TOKEN") != "glpat-valid" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"401 Unauthorized"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id": 1, "username": "mirror-bot"}`))
	})
	if handler != nil {
		mux.HandleFunc("/", handler)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	tok := &token.Token{Value: "glpat-valid"}
	client, err := NewClient(context.Background(), tok, WithBaseURL(server.URL))
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		client := newTestClient(t, nil)
		assert.NotNil(t, client)
	})

	t.Run("empty token", func(t *testing.T) {
		tok := &token.Token{}
		client, err := NewClient(context.Background(), tok)
		assert.ErrorIs(t, err, token.ErrTokenInvalid)
		assert.Nil(t, client)
	})

	t.Run("rejected token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"401 Unauthorized"}`))
		}))
		defer server.Close()

		tok := &token.Token{Value: "glpat-bad"}
		client, err := NewClient(context.Background(), tok, WithBaseURL(server.URL))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "token validation failed")
		assert.Nil(t, client)
	})
}

func TestImportProject(t *testing.T) {
	opts := ImportOptions{
		Path:      "hello-world",
		ImportURL: "https://github.com/octocat/hello-world.git",
		Namespace: "mirrors",
	}

	t.Run("created", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "POST", r.Method)
			require.Equal(t, "/projects", r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "hello-world", r.FormValue("path"))
			assert.Equal(t, "https://github.com/octocat/hello-world.git", r.FormValue("import_url"))
			assert.Equal(t, "mirrors", r.FormValue("namespace"))
			assert.Equal(t, "public", r.FormValue("visibility"))

			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": 42, "path_with_namespace": "mirrors/hello-world", "web_url": "https://gitlab.com/mirrors/hello-world", "import_status": "scheduled"}`))
		})

		project, err := client.ImportProject(context.Background(), opts)
		require.NoError(t, err)
		assert.Equal(t, int64(42), project.ID)
		assert.Equal(t, "https://gitlab.com/mirrors/hello-world", project.WebURL)
	})

	t.Run("conflict returns existing project", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == "POST" {
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte(`{"message": {"name": ["has already been taken"]}}`))
				return
			}
			// Lookup of the existing project, path URL-encoded.
			assert.Contains(t, r.URL.EscapedPath(), "mirrors%2Fhello-world")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"id": 7, "path_with_namespace": "mirrors/hello-world", "web_url": "https://gitlab.com/mirrors/hello-world", "import_status": "finished"}`))
		})

		project, err := client.ImportProject(context.Background(), opts)
		require.NoError(t, err)
		assert.Equal(t, int64(7), project.ID)
		assert.Equal(t, "finished", project.ImportStatus)
	})

	t.Run("other failure propagates", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message": "import_url is blocked"}`))
		})

		project, err := client.ImportProject(context.Background(), opts)
		require.Error(t, err)
		assert.True(t, gerrors.IsPermanent(err))
		assert.Nil(t, project)
	})

	t.Run("missing path", func(t *testing.T) {
		client := newTestClient(t, nil)
		_, err := client.ImportProject(context.Background(), ImportOptions{ImportURL: "https://example.com/x.git"})
		assert.Error(t, err)
	})
}

func TestGetProject(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"id": 9, "web_url": "https://gitlab.com/mirrors/hello-world"}`))
		})

		project, err := client.GetProject(context.Background(), "mirrors/hello-world")
		require.NoError(t, err)
		assert.Equal(t, int64(9), project.ID)
	})

	t.Run("not found", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message": "404 Project Not Found"}`))
		})

		project, err := client.GetProject(context.Background(), "mirrors/absent")
		require.Error(t, err)
		assert.True(t, gerrors.IsNotFound(err))
		assert.Nil(t, project)
	})
}

func TestQualifiedPath(t *testing.T) {
	assert.Equal(t, "mirrors/hello-world", qualifiedPath("mirrors", "hello-world"))
	assert.Equal(t, "hello-world", qualifiedPath("", "hello-world"))
}

func TestImportURLFor(t *testing.T) {
	assert.Equal(t, "https://github.com/octocat/hello-world.git", ImportURLFor("octocat/hello-world"))
}
