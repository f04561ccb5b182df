package repository

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "docchat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessionRepository_GetAbsent(t *testing.T) {
	repo := NewSessionRepository(newTestDB(t))

	session, err := repo.Get("no-such-session")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSessionRepository_SaveAndGet(t *testing.T) {
	repo := NewSessionRepository(newTestDB(t))

	before := time.Now().Add(-time.Second)
	saved, err := repo.Save(&domain.Session{
		ID:            "sess-1",
		DocumentCount: 2,
		Metadata:      map[string]any{"origin": "upload"},
	})
	require.NoError(t, err)
	assert.True(t, saved.LastActivity.After(before))
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := repo.Get("sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sess-1", got.ID)
	assert.Equal(t, 2, got.DocumentCount)
	assert.Equal(t, map[string]any{"origin": "upload"}, got.Metadata)
}

func TestSessionRepository_SavePreservesCreatedAt(t *testing.T) {
	repo := NewSessionRepository(newTestDB(t))

	first, err := repo.Save(&domain.Session{ID: "sess-1"})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	second, err := repo.Save(&domain.Session{ID: "sess-1", DocumentCount: 1})
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())
	assert.False(t, second.LastActivity.Before(first.LastActivity))

	got, err := repo.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.DocumentCount)
}

func TestSessionRepository_LastActivityMonotonic(t *testing.T) {
	repo := NewSessionRepository(newTestDB(t))

	var last time.Time
	for i := 0; i < 5; i++ {
		saved, err := repo.Save(&domain.Session{ID: "sess-1"})
		require.NoError(t, err)
		assert.False(t, saved.LastActivity.Before(last), "last activity went backwards on save %d", i)
		last = saved.LastActivity
	}
}

func TestSessionRepository_UpdateAtomicRMW(t *testing.T) {
	repo := NewSessionRepository(newTestDB(t))

	// An activity touch interleaved with document-count increments must
	// never clobber an increment with its stale view of the session.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := repo.Update("sess-1", func(s *domain.Session) { s.DocumentCount++ })
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := repo.Update("sess-1", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.Get("sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 10, got.DocumentCount, "no increment may be lost")
}

func TestSessionRepository_UpdateCreatesWhenAbsent(t *testing.T) {
	repo := NewSessionRepository(newTestDB(t))

	saved, err := repo.Update("fresh", nil)
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.ID)
	assert.False(t, saved.LastActivity.IsZero())

	got, err := repo.Get("fresh")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestSessionRepository_CorruptStoredJSON(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)

	_, err := db.Exec(`
		INSERT INTO sessions (id, created_at, last_activity, document_count, metadata)
		VALUES ('bad-meta', ?, ?, 0, '{broken')
	`, time.Now(), time.Now())
	require.NoError(t, err)

	_, err = repo.Get("bad-meta")
	assert.ErrorIs(t, err, domain.ErrStorage)

	_, err = repo.Save(&domain.Session{ID: "sess-1"})
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO turns (id, session_id, thread_id, role, segments, created_at)
		VALUES ('t1', 'sess-1', 'default', 'user', 'not segments', ?)
	`, time.Now())
	require.NoError(t, err)

	_, err = repo.Turns("sess-1", "")
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestSessionRepository_ConcurrentSaves(t *testing.T) {
	repo := NewSessionRepository(newTestDB(t))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Save(&domain.Session{ID: "sess-1", DocumentCount: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.Get("sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.DocumentCount)
}

func TestSessionRepository_Turns(t *testing.T) {
	repo := NewSessionRepository(newTestDB(t))
	_, err := repo.Save(&domain.Session{ID: "sess-1"})
	require.NoError(t, err)

	base := time.Now().Add(-time.Minute)
	turns := []domain.ConversationTurn{
		{Role: domain.RoleUser, Segments: []string{"what is in the report?"}, CreatedAt: base},
		{Role: domain.RoleModel, Segments: []string{"The report covers", " Q3 revenue."}, CreatedAt: base.Add(time.Second)},
		{Role: domain.RoleUser, Segments: []string{"and expenses?"}, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, turn := range turns {
		require.NoError(t, repo.AppendTurn("sess-1", "", turn))
	}

	got, err := repo.Turns("sess-1", domain.DefaultThreadID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range turns {
		assert.Equal(t, turns[i].Role, got[i].Role)
		assert.Equal(t, turns[i].Segments, got[i].Segments)
	}

	// Threads are isolated.
	require.NoError(t, repo.AppendTurn("sess-1", "side", domain.ConversationTurn{
		Role: domain.RoleUser, Segments: []string{"aside"},
	}))
	side, err := repo.Turns("sess-1", "side")
	require.NoError(t, err)
	assert.Len(t, side, 1)

	main, err := repo.Turns("sess-1", "")
	require.NoError(t, err)
	assert.Len(t, main, 3)
}

func TestSessionRepository_TurnsEmpty(t *testing.T) {
	repo := NewSessionRepository(newTestDB(t))

	turns, err := repo.Turns("sess-1", "")
	require.NoError(t, err)
	assert.Empty(t, turns)
}
