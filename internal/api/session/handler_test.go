package session

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
	"docchat/internal/repository"
	"docchat/internal/service"
)

func newTestRouter(t *testing.T) (*gin.Engine, *repository.SessionRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "docchat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sessions := repository.NewSessionRepository(db)

	r := gin.New()
	NewHandler(service.NewSessionService(sessions), nil).RegisterRoutes(r.Group("/api"))
	return r, sessions
}

func do(r *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGet_NotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Session not found"}`, w.Body.String())
}

func TestCreate_Idempotent(t *testing.T) {
	r, _ := newTestRouter(t)

	first := do(r, http.MethodPost, "/api/sessions/sess-1", nil)
	require.Equal(t, http.StatusCreated, first.Code)

	var created domain.SessionState
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &created))
	assert.Equal(t, "sess-1", created.SessionID)
	assert.False(t, created.Created.IsZero())

	second := do(r, http.MethodPost, "/api/sessions/sess-1", nil)
	require.Equal(t, http.StatusOK, second.Code)

	var existing domain.SessionState
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &existing))
	assert.Equal(t, created.Created.Unix(), existing.Created.Unix(),
		"re-creating must not reset the session")
}

func TestGet_AfterCreate(t *testing.T) {
	r, sessions := newTestRouter(t)

	_, err := sessions.Save(&domain.Session{ID: "sess-1", DocumentCount: 3})
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/api/sessions/sess-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var state domain.SessionState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, "sess-1", state.SessionID)
	assert.Equal(t, 3, state.DocumentCount)
	assert.False(t, state.LastActivity.IsZero())
}

func TestUpdate(t *testing.T) {
	r, sessions := newTestRouter(t)
	_, err := sessions.Save(&domain.Session{ID: "sess-1"})
	require.NoError(t, err)

	body, _ := json.Marshal(domain.SessionState{DocumentCount: 7})
	w := do(r, http.MethodPut, "/api/sessions/sess-1", body)
	require.Equal(t, http.StatusOK, w.Code)

	var state domain.SessionState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, 7, state.DocumentCount)

	t.Run("missing session", func(t *testing.T) {
		w := do(r, http.MethodPut, "/api/sessions/missing", body)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := do(r, http.MethodPut, "/api/sessions/sess-1", []byte("{"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTurns(t *testing.T) {
	r, sessions := newTestRouter(t)
	_, err := sessions.Save(&domain.Session{ID: "sess-1"})
	require.NoError(t, err)

	require.NoError(t, sessions.AppendTurn("sess-1", "", domain.ConversationTurn{
		Role: domain.RoleUser, Segments: []string{"hello"},
	}))
	require.NoError(t, sessions.AppendTurn("sess-1", "", domain.ConversationTurn{
		Role: domain.RoleModel, Segments: []string{"hi there"},
	}))

	w := do(r, http.MethodGet, "/api/sessions/sess-1/turns", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Turns []domain.ConversationTurn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Turns, 2)
	assert.Equal(t, domain.RoleUser, resp.Turns[0].Role)
	assert.Equal(t, "hello", resp.Turns[0].Text())

	t.Run("empty thread answers an empty list", func(t *testing.T) {
		w := do(r, http.MethodGet, "/api/sessions/sess-1/turns?thread=other", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"turns":[]}`, w.Body.String())
	})
}
