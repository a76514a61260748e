package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bruhbug-service/internal/entity"
)

const testToken = "tok-1"

// fakeAPI answers the routes the CLI uses. A dispatched description
// containing "silent" never gets a roast.
type fakeAPI struct {
	mu      sync.Mutex
	records map[string]*entity.BugRecord
	order   []string
}

func newFakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	api := &fakeAPI{records: map[string]*entity.BugRecord{}}
	user := entity.User{ID: "U", Prefs: entity.Preferences{DisplayName: "Ada", Handle: "@ada"}}

	authed := func(r *http.Request) bool {
		return r.Header.Get("Authorization") == "Bearer "+testToken
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/dev-login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"token": testToken, "user": user})
	})
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "authentication required"})
			return
		}
		writeJSON(w, http.StatusOK, user)
	})
	mux.HandleFunc("DELETE /auth/session", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /executions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BugDescription string `json:"bugDescription"`
			DocumentID     string `json:"documentId"`
			Shared         bool   `json:"shared"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !strings.Contains(req.BugDescription, "silent") {
			roast := "roasted: " + req.BugDescription
			api.put(&entity.BugRecord{
				ID: req.DocumentID, OwnerID: user.ID, Description: req.BugDescription,
				DisplayName: "Ada", DisplayHandle: "@ada", Result: &roast, Shared: req.Shared,
				CreatedAt: time.Now(),
			})
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"jobId": req.DocumentID})
	})
	mux.HandleFunc("POST /roasts", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BugDescription string `json:"bugDescription"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, map[string]string{"roast": "direct: " + req.BugDescription})
	})
	mux.HandleFunc("GET /bugs/mine", func(w http.ResponseWriter, r *http.Request) {
		docs := api.list()
		writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "total": len(docs)})
	})
	mux.HandleFunc("GET /bugs/feed", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"documents": []any{}, "total": 0})
	})
	mux.HandleFunc("GET /bugs/{id}", func(w http.ResponseWriter, r *http.Request) {
		rec, ok := api.get(r.PathValue("id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (a *fakeAPI) put(rec *entity.BugRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[rec.ID] = rec
	a.order = append(a.order, rec.ID)
}

func (a *fakeAPI) get(id string) (*entity.BugRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[id]
	return rec, ok
}

func (a *fakeAPI) list() []*entity.BugRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*entity.BugRecord, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.records[id])
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func setupEnv(t *testing.T, url, token string) {
	t.Helper()
	t.Setenv("BRUHBUG_API_URL", url)
	t.Setenv("BRUHBUG_TOKEN", token)
	t.Setenv("BRUHBUG_WATCH_MODE", "poll")
	t.Setenv("BRUHBUG_WATCH_DEADLINE", "2s")
	t.Setenv("BRUHBUG_WATCH_POLL_GRACE", "0s")
	t.Setenv("BRUHBUG_WATCH_POLL_INTERVAL", "10ms")
	t.Setenv("BRUHBUG_WATCH_POLL_ATTEMPTS", "3")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&stderr)
	root.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestLogin_PrintsToken(t *testing.T) {
	srv := newFakeAPI(t)
	setupEnv(t, srv.URL, "")

	out, err := execute(t, "login", "--name", "Ada", "--handle", "@ada")
	require.NoError(t, err)
	assert.Contains(t, out, "signed in as Ada @ada")
	assert.Contains(t, out, "export BRUHBUG_TOKEN="+testToken)
}

func TestWhoami(t *testing.T) {
	srv := newFakeAPI(t)

	setupEnv(t, srv.URL, testToken)
	out, err := execute(t, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Ada @ada (U)\n", out)

	setupEnv(t, srv.URL, "stale")
	_, err = execute(t, "whoami")
	assert.ErrorIs(t, err, entity.ErrAuthRequired)

	setupEnv(t, srv.URL, "")
	_, err = execute(t, "whoami")
	assert.ErrorIs(t, err, entity.ErrAuthRequired)
}

func TestSubmit_PrintsRoast(t *testing.T) {
	srv := newFakeAPI(t)
	setupEnv(t, srv.URL, testToken)

	out, err := execute(t, "submit", "TypeError:", "x", "is", "undefined")
	require.NoError(t, err)
	assert.Equal(t, "roasted: TypeError: x is undefined\n", out)
}

func TestSubmit_TimesOutWithMessage(t *testing.T) {
	srv := newFakeAPI(t)
	setupEnv(t, srv.URL, testToken)

	out, err := execute(t, "submit", "silent", "failure")
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrTimeout)
	assert.Equal(t, entity.TimeoutMessage, err.Error())
	assert.Empty(t, out)
}

func TestSubmit_Direct(t *testing.T) {
	srv := newFakeAPI(t)
	setupEnv(t, srv.URL, testToken)

	out, err := execute(t, "submit", "--direct", "nil", "pointer")
	require.NoError(t, err)
	assert.Equal(t, "direct: nil pointer\n", out)
}

func TestSubmit_Rejections(t *testing.T) {
	srv := newFakeAPI(t)

	setupEnv(t, srv.URL, "")
	_, err := execute(t, "submit", "bug")
	assert.ErrorIs(t, err, entity.ErrAuthRequired)

	setupEnv(t, srv.URL, testToken)
	_, err = execute(t, "submit", "   ")
	assert.ErrorIs(t, err, entity.ErrValidation)

	_, err = execute(t, "submit", "--mode", "carrier-pigeon", "bug")
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestDiaryAndFeed(t *testing.T) {
	srv := newFakeAPI(t)
	setupEnv(t, srv.URL, testToken)

	_, err := execute(t, "submit", "first")
	require.NoError(t, err)
	_, err = execute(t, "submit", "second")
	require.NoError(t, err)

	out, err := execute(t, "diary")
	require.NoError(t, err)
	assert.Contains(t, out, "roast: roasted: second")
	assert.Contains(t, out, "page 1/1 (2 total)")
	assert.Less(t, strings.Index(out, "second"), strings.Index(out, "first"), "newest first")

	out, err = execute(t, "feed")
	require.NoError(t, err)
	assert.Equal(t, "nothing here yet\n", out)
}
