package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloudwright/cloudwright/internal/catalog"
	"github.com/cloudwright/cloudwright/internal/session"
	"github.com/cloudwright/cloudwright/internal/validate"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// awaiting drives a fresh session to AwaitingConfirmation.
func awaiting(t *testing.T, requester string) *session.Session {
	t.Helper()
	sess := session.New(requester, "launch a t2.micro with amazon linux", "ec2", "create")
	params := catalog.ParameterSet{
		"InstanceType": "t2.micro",
		"ImageId":      "ami-0c55b159cbfafe1f0",
		"MinCount":     1,
		"MaxCount":     1,
	}
	if err := sess.MarkExtracted(params, nil); err != nil {
		t.Fatalf("MarkExtracted: %v", err)
	}
	if err := sess.MarkValidated([]validate.Finding{
		{Rule: "security/no-security-group", Severity: validate.SeverityWarning, Message: "no security group specified"},
	}); err != nil {
		t.Fatalf("MarkValidated: %v", err)
	}
	if err := sess.RequestConfirmation(); err != nil {
		t.Fatalf("RequestConfirmation: %v", err)
	}
	return sess
}

// finished drives a session all the way to Succeeded.
func finished(t *testing.T, requester string) *session.Session {
	t.Helper()
	sess := awaiting(t, requester)
	if err := sess.Confirm(); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if err := sess.BeginExecution(); err != nil {
		t.Fatalf("BeginExecution: %v", err)
	}
	sess.RecordAttempt()
	if err := sess.Succeed([]string{"i-0abc12345678"}); err != nil {
		t.Fatalf("Succeed: %v", err)
	}
	return sess
}

// backdate rewrites the stored updated_at so expiry and prune cutoffs
// can be exercised without sleeping.
func backdate(t *testing.T, db *DB, id string, age time.Duration) {
	t.Helper()
	old := time.Now().Add(-age).UTC().Format(time.RFC3339)
	if _, err := db.SQLDB().Exec(`UPDATE sessions SET updated_at = ? WHERE id = ?`, old, id); err != nil {
		t.Fatalf("backdate: %v", err)
	}
}

func TestOpenAndMigrations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	db, err := Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var v int
	err = db.SQLDB().QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err != nil {
		t.Fatalf("read schema_version: %v", err)
	}
	if v != 1 {
		t.Errorf("schema_version = %d, want 1", v)
	}
	db.Close()

	// Re-open: idempotent, no error
	db2, err := Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("Open again: %v", err)
	}
	defer db2.Close()
	err = db2.SQLDB().QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err != nil {
		t.Fatalf("read schema_version (second open): %v", err)
	}
	if v != 1 {
		t.Errorf("schema_version after re-open = %d, want 1", v)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "whatever"); err == nil {
		t.Fatal("Open with unknown driver succeeded")
	}
	if _, err := Open(DriverSQLite, ""); err == nil {
		t.Fatal("Open with empty dsn succeeded")
	}
}

func TestSessionStore_SaveAndGet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	db, err := Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	st := NewSessionStore(db)
	sess := awaiting(t, "ops@example.com")
	if err := st.Save(sess); err != nil {
		t.Fatalf("Save: %v", err)
	}
	db.Close()

	// Re-open DB and get again: should persist
	db2, err := Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("Open again: %v", err)
	}
	defer db2.Close()
	got, err := NewSessionStore(db2).Get(sess.ID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.State != session.StateAwaitingConfirmation {
		t.Errorf("State = %s, want %s", got.State, session.StateAwaitingConfirmation)
	}
	if got.Requester != "ops@example.com" {
		t.Errorf("Requester = %q", got.Requester)
	}
	if got.Service != "ec2" || got.Operation != "create" {
		t.Errorf("route = %s/%s, want ec2/create", got.Service, got.Operation)
	}
	if v, ok := got.Params.String("InstanceType"); !ok || v != "t2.micro" {
		t.Errorf("Params[InstanceType] = %q, %v", v, ok)
	}
	if v, ok := got.Params.Int("MinCount"); !ok || v != 1 {
		t.Errorf("Params[MinCount] = %d, %v", v, ok)
	}
	if len(got.Findings) != 1 || got.Findings[0].Rule != "security/no-security-group" {
		t.Errorf("Findings = %+v", got.Findings)
	}
	if len(got.Events) != len(sess.Events) {
		t.Errorf("len(Events) = %d, want %d", len(got.Events), len(sess.Events))
	}
	if got.Events[0].From != session.StateRouted || got.Events[0].To != session.StateExtracted {
		t.Errorf("first event = %s -> %s", got.Events[0].From, got.Events[0].To)
	}
	if got.Result != nil {
		t.Errorf("Result = %+v, want nil before execution", got.Result)
	}
}

func TestSessionStore_SaveIsUpsert(t *testing.T) {
	db := openTestDB(t)
	st := NewSessionStore(db)

	sess := awaiting(t, "")
	if err := st.Save(sess); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := sess.Confirm(); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if err := st.Save(sess); err != nil {
		t.Fatalf("Save after Confirm: %v", err)
	}
	// Saving an unchanged session must not duplicate events.
	if err := st.Save(sess); err != nil {
		t.Fatalf("Save unchanged: %v", err)
	}

	got, err := st.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != session.StateConfirmed {
		t.Errorf("State = %s, want %s", got.State, session.StateConfirmed)
	}
	if !got.Confirmed {
		t.Error("Confirmed flag lost on upsert")
	}
	if len(got.Events) != len(sess.Events) {
		t.Errorf("len(Events) = %d, want %d", len(got.Events), len(sess.Events))
	}
}

func TestSessionStore_GetMissing(t *testing.T) {
	db := openTestDB(t)
	st := NewSessionStore(db)

	_, err := st.Get("no-such-id")
	if err == nil {
		t.Fatal("Get on missing id succeeded")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSessionStore_ResultRoundTrip(t *testing.T) {
	db := openTestDB(t)
	st := NewSessionStore(db)

	sess := awaiting(t, "")
	if err := sess.Confirm(); err != nil {
		t.Fatal(err)
	}
	if err := sess.BeginExecution(); err != nil {
		t.Fatal(err)
	}
	sess.RecordAttempt()
	if err := sess.Fail("permanent-permission", "UnauthorizedOperation: not allowed"); err != nil {
		t.Fatal(err)
	}
	if err := st.Save(sess); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := st.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Result == nil {
		t.Fatal("Result = nil after Fail")
	}
	if got.Result.Status != session.StateFailed {
		t.Errorf("Result.Status = %s", got.Result.Status)
	}
	if got.Result.ErrorClass != "permanent-permission" {
		t.Errorf("Result.ErrorClass = %q", got.Result.ErrorClass)
	}
	if got.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", got.Attempts)
	}
}

func TestSessionStore_ActiveAndHistory(t *testing.T) {
	db := openTestDB(t)
	st := NewSessionStore(db)

	live := awaiting(t, "alice@example.com")
	oldDone := finished(t, "alice@example.com")
	newDone := finished(t, "bob@example.com")
	for _, sess := range []*session.Session{live, oldDone, newDone} {
		if err := st.Save(sess); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	backdate(t, db, oldDone.ID, 2*time.Hour)

	active, err := st.Active()
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 1 || active[0].ID != live.ID {
		t.Errorf("Active = %d sessions, want only the awaiting one", len(active))
	}

	hist, err := st.History("", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("History = %d sessions, want 2", len(hist))
	}
	if hist[0].ID != newDone.ID {
		t.Error("History not ordered newest first")
	}

	hist, err = st.History("alice@example.com", 0)
	if err != nil {
		t.Fatalf("History(alice): %v", err)
	}
	if len(hist) != 1 || hist[0].ID != oldDone.ID {
		t.Errorf("History(alice) = %d sessions", len(hist))
	}

	hist, err = st.History("", 1)
	if err != nil {
		t.Fatalf("History(limit 1): %v", err)
	}
	if len(hist) != 1 {
		t.Errorf("History(limit 1) = %d sessions", len(hist))
	}
}

func TestSessionStore_ExpireAwaitingConfirmation(t *testing.T) {
	db := openTestDB(t)
	st := NewSessionStore(db)

	stale := awaiting(t, "")
	fresh := awaiting(t, "")
	for _, sess := range []*session.Session{stale, fresh} {
		if err := st.Save(sess); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	backdate(t, db, stale.ID, time.Hour)

	n, err := st.ExpireAwaitingConfirmation(30 * time.Minute)
	if err != nil {
		t.Fatalf("ExpireAwaitingConfirmation: %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d sessions, want 1", n)
	}

	got, err := st.Get(stale.ID)
	if err != nil {
		t.Fatalf("Get stale: %v", err)
	}
	if got.State != session.StateCancelled {
		t.Errorf("stale State = %s, want %s", got.State, session.StateCancelled)
	}
	if got.Result == nil || got.Result.ErrorText != "confirmation timed out" {
		t.Errorf("stale Result = %+v", got.Result)
	}

	got, err = st.Get(fresh.ID)
	if err != nil {
		t.Fatalf("Get fresh: %v", err)
	}
	if got.State != session.StateAwaitingConfirmation {
		t.Errorf("fresh State = %s, want untouched", got.State)
	}
}

func TestSessionStore_PruneTerminal(t *testing.T) {
	db := openTestDB(t)
	st := NewSessionStore(db)

	oldDone := finished(t, "")
	newDone := finished(t, "")
	live := awaiting(t, "")
	for _, sess := range []*session.Session{oldDone, newDone, live} {
		if err := st.Save(sess); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	backdate(t, db, oldDone.ID, 48*time.Hour)
	backdate(t, db, live.ID, 48*time.Hour)

	n, err := st.PruneTerminal(24 * time.Hour)
	if err != nil {
		t.Fatalf("PruneTerminal: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d sessions, want 1", n)
	}

	if _, err := st.Get(oldDone.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old terminal session still present: %v", err)
	}
	var events int
	if err := db.SQLDB().QueryRow(`SELECT COUNT(*) FROM session_events WHERE session_id = ?`, oldDone.ID).Scan(&events); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 0 {
		t.Errorf("pruned session left %d events behind", events)
	}
	if _, err := st.Get(newDone.ID); err != nil {
		t.Errorf("recent terminal session pruned: %v", err)
	}
	// Non-terminal sessions are never pruned, however old.
	if _, err := st.Get(live.ID); err != nil {
		t.Errorf("active session pruned: %v", err)
	}
}
