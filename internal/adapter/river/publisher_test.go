package river_test

import (
	"context"
	"database/sql"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	goriver "github.com/riverqueue/river"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	riveradapter "github.com/okalidis/consultiq/internal/adapter/river"
	"github.com/okalidis/consultiq/internal/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := t.TempDir() + "/river_test.db"
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		t.Fatalf("setting WAL: %v", err)
	}

	return db
}

func setupClient(t *testing.T, db *sql.DB, sweepInterval time.Duration) (*riveradapter.Client, *riveradapter.ExpiryWorker) {
	t.Helper()

	client, expiry, err := riveradapter.Setup(context.Background(), db, zap.NewNop(), sweepInterval)
	if err != nil {
		t.Fatalf("river setup: %v", err)
	}

	return client, expiry
}

func startClient(t *testing.T, client *riveradapter.Client) {
	t.Helper()

	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("river start: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Stop(stopCtx); err != nil {
			t.Errorf("river stop: %v", err)
		}
	})
}

func TestPublisher_Publish_EnqueuesJob(t *testing.T) {
	db := setupTestDB(t)
	client, _ := setupClient(t, db, 0)
	ctx := context.Background()

	// Subscribe to job completions before starting so we don't miss events.
	subscribeChan, subscribeCancel := client.Subscribe(goriver.EventKindJobCompleted)
	defer subscribeCancel()

	startClient(t, client)

	pub := riveradapter.NewPublisher(client)
	change := domain.ChangeEvent{
		AppointmentID: "apt-1",
		Event:         domain.EventRequested,
		NewStatus:     domain.StatusPending,
		TeacherID:     "t-1",
		StudentEmail:  "ada@example.com",
	}

	if err := pub.Publish(ctx, change); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// Wait for the worker to process the job.
	select {
	case event := <-subscribeChan:
		if event.Job.Kind != "appointment.changed" {
			t.Errorf("job kind = %q, want %q", event.Job.Kind, "appointment.changed")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job completion")
	}
}

func TestPublisher_Publish_PreservesEventData(t *testing.T) {
	db := setupTestDB(t)
	client, _ := setupClient(t, db, 0)
	ctx := context.Background()

	subscribeChan, subscribeCancel := client.Subscribe(goriver.EventKindJobCompleted)
	defer subscribeCancel()

	startClient(t, client)

	pub := riveradapter.NewPublisher(client)
	change := domain.ChangeEvent{
		AppointmentID: "apt-42",
		Event:         domain.EventAccept,
		NewStatus:     domain.StatusConfirmed,
		TeacherID:     "t-7",
		StudentEmail:  "bob@example.com",
	}

	if err := pub.Publish(ctx, change); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case event := <-subscribeChan:
		// The args are stored as JSON; verify key fields are present.
		argsStr := string(event.Job.EncodedArgs)
		for _, want := range []string{`"appointment_id":"apt-42"`, `"event":"accept"`, `"new_status":"confirmed"`, `"teacher_id":"t-7"`, `"student_email":"bob@example.com"`} {
			if !strings.Contains(argsStr, want) {
				t.Errorf("encoded args missing %s, got: %s", want, argsStr)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job completion")
	}
}

type countingExpirer struct {
	calls atomic.Int32
}

func (e *countingExpirer) ExpireStalePending(ctx context.Context) (int, error) {
	e.calls.Add(1)
	return 0, nil
}

func TestExpiryWorker_PeriodicSweepRunsOnStart(t *testing.T) {
	db := setupTestDB(t)
	client, expiry := setupClient(t, db, time.Hour)

	expirer := &countingExpirer{}
	expiry.Bind(expirer)

	subscribeChan, subscribeCancel := client.Subscribe(goriver.EventKindJobCompleted)
	defer subscribeCancel()

	startClient(t, client)

	// The periodic job is configured with RunOnStart, so one sweep happens
	// immediately regardless of the interval.
	select {
	case event := <-subscribeChan:
		if event.Job.Kind != "appointment.expire_pending" {
			t.Errorf("job kind = %q, want %q", event.Job.Kind, "appointment.expire_pending")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for expiry sweep")
	}

	if expirer.calls.Load() == 0 {
		t.Error("expirer was never invoked")
	}
}
