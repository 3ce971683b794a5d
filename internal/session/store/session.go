package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwright/cloudwright/internal/catalog"
	"github.com/cloudwright/cloudwright/internal/session"
	"github.com/cloudwright/cloudwright/internal/validate"
)

// ErrNotFound reports a lookup for a session id that was never saved or
// has been pruned.
var ErrNotFound = errors.New("session not found")

// SessionStore persists sessions and their transition events.
type SessionStore struct {
	db *DB
}

func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save upserts the session row and appends any events not yet stored.
// Events are append-only on the session, so the stored prefix never
// changes and only the tail is written.
func (s *SessionStore) Save(sess *session.Session) error {
	paramsJSON, err := json.Marshal(sess.Params)
	if err != nil {
		return fmt.Errorf("session save: marshal params: %w", err)
	}
	if sess.Params == nil {
		paramsJSON = []byte("{}")
	}
	findingsJSON, err := json.Marshal(sess.Findings)
	if err != nil {
		return fmt.Errorf("session save: marshal findings: %w", err)
	}
	if sess.Findings == nil {
		findingsJSON = []byte("[]")
	}
	var resultJSON sql.NullString
	if sess.Result != nil {
		data, err := json.Marshal(sess.Result)
		if err != nil {
			return fmt.Errorf("session save: marshal result: %w", err)
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.SQLDB().Begin()
	if err != nil {
		return fmt.Errorf("session save: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(s.db.rebind(
		`INSERT INTO sessions (id, requester, prompt, service, operation, state, params, findings, confirmed, attempts, clarification_round, result, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   state = excluded.state,
		   params = excluded.params,
		   findings = excluded.findings,
		   confirmed = excluded.confirmed,
		   attempts = excluded.attempts,
		   clarification_round = excluded.clarification_round,
		   result = excluded.result,
		   updated_at = excluded.updated_at`),
		sess.ID, sess.Requester, sess.Prompt, sess.Service, sess.Operation,
		string(sess.State), string(paramsJSON), string(findingsJSON),
		boolToInt(sess.Confirmed), sess.Attempts, sess.ClarificationRound,
		resultJSON,
		sess.CreatedAt.UTC().Format(time.RFC3339),
		sess.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("session save: %w", err)
	}

	var stored int
	if err := tx.QueryRow(s.db.rebind(`SELECT COUNT(*) FROM session_events WHERE session_id = ?`), sess.ID).Scan(&stored); err != nil {
		return fmt.Errorf("session save: count events: %w", err)
	}
	for i := stored; i < len(sess.Events); i++ {
		ev := sess.Events[i]
		_, err := tx.Exec(s.db.rebind(
			`INSERT INTO session_events (session_id, seq, at, from_state, to_state, note) VALUES (?, ?, ?, ?, ?, ?)`),
			sess.ID, i, ev.At.UTC().Format(time.RFC3339), string(ev.From), string(ev.To), ev.Note)
		if err != nil {
			return fmt.Errorf("session save: event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("session save: commit: %w", err)
	}
	return nil
}

// Get loads a session with its event trail.
func (s *SessionStore) Get(id string) (*session.Session, error) {
	row := s.db.queryRow(
		`SELECT id, requester, prompt, service, operation, state, params, findings, confirmed, attempts, clarification_round, result, created_at, updated_at
		 FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", id, err)
	}
	if err := s.attachEvents(sess); err != nil {
		return nil, fmt.Errorf("session %q: %w", id, err)
	}
	return sess, nil
}

// Active returns non-terminal sessions, most recently touched first.
func (s *SessionStore) Active() ([]*session.Session, error) {
	return s.selectSessions(
		`SELECT id, requester, prompt, service, operation, state, params, findings, confirmed, attempts, clarification_round, result, created_at, updated_at
		 FROM sessions WHERE state NOT IN (?, ?, ?) ORDER BY updated_at DESC`,
		string(session.StateSucceeded), string(session.StateFailed), string(session.StateCancelled))
}

// History returns terminal sessions newest first. Empty requester means
// all requesters; limit <= 0 means no cap.
func (s *SessionStore) History(requester string, limit int) ([]*session.Session, error) {
	query := `SELECT id, requester, prompt, service, operation, state, params, findings, confirmed, attempts, clarification_round, result, created_at, updated_at
	 FROM sessions WHERE state IN (?, ?, ?)`
	args := []any{string(session.StateSucceeded), string(session.StateFailed), string(session.StateCancelled)}
	if requester != "" {
		query += ` AND requester = ?`
		args = append(args, requester)
	}
	query += ` ORDER BY updated_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.selectSessions(query, args...)
}

// ExpireAwaitingConfirmation cancels sessions that have sat in
// AwaitingConfirmation past maxIdle. Silence is a negative signal, so
// the sessions settle as Cancelled rather than lingering forever.
func (s *SessionStore) ExpireAwaitingConfirmation(maxIdle time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxIdle).UTC().Format(time.RFC3339)
	rows, err := s.db.query(
		`SELECT id FROM sessions WHERE state = ? AND updated_at < ?`,
		string(session.StateAwaitingConfirmation), cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire confirmations: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("expire confirmations: %w", err)
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("expire confirmations: %w", err)
	}

	expired := 0
	for _, id := range ids {
		sess, err := s.Get(id)
		if err != nil {
			return expired, err
		}
		if err := sess.Cancel("confirmation timed out"); err != nil {
			continue
		}
		if err := s.Save(sess); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// PruneTerminal deletes terminal sessions untouched for longer than
// retention, events included.
func (s *SessionStore) PruneTerminal(retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339)
	tx, err := s.db.SQLDB().Begin()
	if err != nil {
		return 0, fmt.Errorf("prune sessions: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	terminal := []any{string(session.StateSucceeded), string(session.StateFailed), string(session.StateCancelled)}
	_, err = tx.Exec(s.db.rebind(
		`DELETE FROM session_events WHERE session_id IN
		   (SELECT id FROM sessions WHERE state IN (?, ?, ?) AND updated_at < ?)`),
		append(terminal, cutoff)...)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: events: %w", err)
	}
	res, err := tx.Exec(s.db.rebind(
		`DELETE FROM sessions WHERE state IN (?, ?, ?) AND updated_at < ?`),
		append(terminal, cutoff)...)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("prune sessions: commit: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Delete removes a session and its events (for tests or admin).
func (s *SessionStore) Delete(id string) error {
	if _, err := s.db.exec(`DELETE FROM session_events WHERE session_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.exec(`DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (s *SessionStore) selectSessions(query string, args ...any) ([]*session.Session, error) {
	rows, err := s.db.query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, sess := range out {
		if err := s.attachEvents(sess); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SessionStore) attachEvents(sess *session.Session) error {
	rows, err := s.db.query(
		`SELECT at, from_state, to_state, note FROM session_events WHERE session_id = ? ORDER BY seq`,
		sess.ID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var at, from, to, note string
		if err := rows.Scan(&at, &from, &to, &note); err != nil {
			return err
		}
		ts, _ := time.Parse(time.RFC3339, at)
		sess.Events = append(sess.Events, session.Event{
			At:   ts,
			From: session.State(from),
			To:   session.State(to),
			Note: note,
		})
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*session.Session, error) {
	var (
		id, requester, prompt, service, operation, state string
		paramsJSON, findingsJSON                         string
		confirmed, attempts, round                       int
		resultJSON                                       sql.NullString
		createdAt, updatedAt                             string
	)
	err := row.Scan(&id, &requester, &prompt, &service, &operation, &state,
		&paramsJSON, &findingsJSON, &confirmed, &attempts, &round,
		&resultJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sess := &session.Session{
		ID:                 id,
		Requester:          requester,
		Prompt:             prompt,
		Service:            service,
		Operation:          operation,
		State:              session.State(state),
		Confirmed:          confirmed != 0,
		Attempts:           attempts,
		ClarificationRound: round,
	}
	if paramsJSON != "" && paramsJSON != "{}" {
		var params catalog.ParameterSet
		if err := json.Unmarshal([]byte(paramsJSON), &params); err == nil {
			sess.Params = params
		}
	}
	if findingsJSON != "" && findingsJSON != "[]" {
		var findings []validate.Finding
		if err := json.Unmarshal([]byte(findingsJSON), &findings); err == nil {
			sess.Findings = findings
		}
	}
	if resultJSON.Valid {
		var result session.Result
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err == nil {
			sess.Result = &result
		}
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return sess, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
