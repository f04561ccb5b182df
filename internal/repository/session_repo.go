package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"docchat/internal/domain"
)

// SessionRepository is the durable session store. Save is atomic with
// respect to other Save/Get calls on the same id: read-modify-write cycles
// are serialized by a per-id lock, and readers only ever observe a
// completed prior write. The repository never retries storage failures;
// retry policy belongs to the caller.
type SessionRepository struct {
	db *DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

// lock returns the write lock for a session id, creating it on first use.
func (r *SessionRepository) lock(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

// Get retrieves a session by id. Returns nil, nil when the session is
// absent. Turn logs are not loaded; use Turns for those.
func (r *SessionRepository) Get(id string) (*domain.Session, error) {
	session := &domain.Session{}
	var metadata sql.NullString

	err := r.db.QueryRow(`
		SELECT id, created_at, last_activity, document_count, metadata
		FROM sessions WHERE id = ?
	`, id).Scan(&session.ID, &session.CreatedAt, &session.LastActivity,
		&session.DocumentCount, &metadata)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get session: %v", domain.ErrStorage, err)
	}

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &session.Metadata); err != nil {
			return nil, fmt.Errorf("%w: decode session metadata: %v", domain.ErrStorage, err)
		}
	}

	return session, nil
}

// Save creates the session if absent, else overwrites it, advancing
// LastActivity. LastActivity is monotonically non-decreasing: an overwrite
// never moves it backwards, even if the caller's clock lagged.
func (r *SessionRepository) Save(session *domain.Session) (*domain.Session, error) {
	l := r.lock(session.ID)
	l.Lock()
	defer l.Unlock()

	return r.save(session)
}

// Update applies a read-modify-write as one atomic unit: the per-id lock
// is held across the read, the mutation, and the write, so two callers
// updating the same session cannot overwrite each other's changes with a
// stale view. The session is created if absent; mutate may be nil to only
// advance LastActivity.
func (r *SessionRepository) Update(id string, mutate func(*domain.Session)) (*domain.Session, error) {
	l := r.lock(id)
	l.Lock()
	defer l.Unlock()

	session, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		session = &domain.Session{ID: id}
	}
	if mutate != nil {
		mutate(session)
	}
	return r.save(session)
}

// save writes the session. Callers must hold the session's lock.
func (r *SessionRepository) save(session *domain.Session) (*domain.Session, error) {
	now := time.Now()

	existing, err := r.Get(session.ID)
	if err != nil {
		return nil, err
	}

	created := now
	last := now
	if existing != nil {
		created = existing.CreatedAt
		if existing.LastActivity.After(last) {
			last = existing.LastActivity
		}
	}

	metadataJSON, _ := json.Marshal(session.Metadata)

	_, err = r.db.Exec(`
		INSERT INTO sessions (id, created_at, last_activity, document_count, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_activity = excluded.last_activity,
			document_count = excluded.document_count,
			metadata = excluded.metadata
	`, session.ID, created, last, session.DocumentCount, string(metadataJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: save session: %v", domain.ErrStorage, err)
	}

	session.CreatedAt = created
	session.LastActivity = last
	return session, nil
}

// AppendTurn appends one turn to a session's thread log. Turns are
// append-only and keep chronological order.
func (r *SessionRepository) AppendTurn(sessionID, threadID string, turn domain.ConversationTurn) error {
	if threadID == "" {
		threadID = domain.DefaultThreadID
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	segmentsJSON, _ := json.Marshal(turn.Segments)

	_, err := r.db.Exec(`
		INSERT INTO turns (id, session_id, thread_id, role, segments, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), sessionID, threadID, turn.Role,
		string(segmentsJSON), turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: append turn: %v", domain.ErrStorage, err)
	}
	return nil
}

// Turns retrieves a session thread's turn log in chronological order.
func (r *SessionRepository) Turns(sessionID, threadID string) ([]domain.ConversationTurn, error) {
	if threadID == "" {
		threadID = domain.DefaultThreadID
	}

	rows, err := r.db.Query(`
		SELECT role, segments, created_at
		FROM turns WHERE session_id = ? AND thread_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, sessionID, threadID)
	if err != nil {
		return nil, fmt.Errorf("%w: list turns: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	var turns []domain.ConversationTurn
	for rows.Next() {
		var turn domain.ConversationTurn
		var segmentsJSON string

		if err := rows.Scan(&turn.Role, &segmentsJSON, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan turn: %v", domain.ErrStorage, err)
		}
		if err := json.Unmarshal([]byte(segmentsJSON), &turn.Segments); err != nil {
			return nil, fmt.Errorf("%w: decode turn segments: %v", domain.ErrStorage, err)
		}
		turns = append(turns, turn)
	}

	return turns, rows.Err()
}
