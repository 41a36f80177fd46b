package trackers

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/iskolarlink/iskolarlink-backend/internal/scholars"
	"github.com/iskolarlink/iskolarlink-backend/pkg/db"
	"github.com/iskolarlink/iskolarlink-backend/pkg/db/models"
	"github.com/iskolarlink/iskolarlink-backend/pkg/enums"
	"github.com/iskolarlink/iskolarlink-backend/pkg/logger"
	"github.com/iskolarlink/iskolarlink-backend/pkg/metrics"
)

var testSchema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		barangay TEXT NOT NULL DEFAULT '',
		batch_year TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'scholar',
		verified BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE tracker_records (
		id TEXT PRIMARY KEY,
		program TEXT NOT NULL,
		scholar_id TEXT NOT NULL,
		full_name TEXT NOT NULL,
		batch_year TEXT NOT NULL DEFAULT '',
		allotted_budget NUMERIC NOT NULL DEFAULT 0 CHECK (allotted_budget >= 0),
		total_consumed NUMERIC NOT NULL DEFAULT 0 CHECK (total_consumed >= 0),
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (program, scholar_id)
	)`,
	`CREATE TABLE tracker_history_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id TEXT NOT NULL,
		program TEXT NOT NULL,
		scholar_id TEXT NOT NULL,
		action TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		remaining_after NUMERIC NOT NULL,
		performed_by TEXT,
		created_at DATETIME
	)`,
}

// newTestDB opens an isolated in-memory database. A single connection keeps
// sqlite writers serialized; code under test only touches the tx handle while a
// transaction is open, so this cannot deadlock.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range testSchema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type testEnv struct {
	conn      *gorm.DB
	repo      Repository
	directory *scholars.Repository
	svc       Service
	logs      *bytes.Buffer
	registry  *prometheus.Registry
}

type envOption func(*ServiceParams)

func withRepo(wrap func(Repository) Repository) envOption {
	return func(p *ServiceParams) { p.Repo = wrap(p.Repo) }
}

func withNames(names NameResolver) envOption {
	return func(p *ServiceParams) { p.Names = names }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	conn := newTestDB(t)
	logs := &bytes.Buffer{}
	registry := prometheus.NewRegistry()
	directory := scholars.NewRepository(conn)
	repo := NewRepository(conn)

	params := ServiceParams{
		Repo:      repo,
		Tx:        db.NewFromConn(conn),
		Directory: directory,
		Names:     directory,
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: logs}),
		Metrics:   metrics.NewTrackerMetrics(registry),
		BatchSize: 2,
		Clock:     newStepClock().Now,
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	return &testEnv{
		conn:      conn,
		repo:      repo,
		directory: directory,
		svc:       svc,
		logs:      logs,
		registry:  registry,
	}
}

func (e *testEnv) seedScholar(t *testing.T, name string, verified bool) uuid.UUID {
	t.Helper()
	return seedUser(t, e.conn, name, enums.UserRoleScholar, verified)
}

func (e *testEnv) seedAdmin(t *testing.T, name string) uuid.UUID {
	t.Helper()
	return seedUser(t, e.conn, name, enums.UserRoleAdmin, true)
}

func seedUser(t *testing.T, conn *gorm.DB, name string, role enums.UserRole, verified bool) uuid.UUID {
	t.Helper()
	user := models.User{
		ID:        uuid.New(),
		FullName:  name,
		BatchYear: "2023",
		Email:     uuid.NewString() + "@iskolarlink.test",
		Role:      role,
		Verified:  verified,
	}
	require.NoError(t, conn.Create(&user).Error)
	return user.ID
}

func (e *testEnv) countRecords(t *testing.T, program enums.TrackerProgram) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.conn.Model(&models.TrackerRecord{}).Where("program = ?", program).Count(&count).Error)
	return count
}

func (e *testEnv) countHistory(t *testing.T, program enums.TrackerProgram, scholarID uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.conn.Model(&models.TrackerHistoryEntry{}).
		Where("program = ? AND scholar_id = ?", program, scholarID).
		Count(&count).Error)
	return count
}

func (e *testEnv) record(t *testing.T, program enums.TrackerProgram, scholarID uuid.UUID) *models.TrackerRecord {
	t.Helper()
	record, err := e.repo.FindByScholar(context.Background(), program, scholarID)
	require.NoError(t, err)
	return record
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

// cancelAfterLookup cancels the caller's context once the scholar lookup
// returns, simulating a client that disconnects mid-request.
type cancelAfterLookup struct {
	Directory
	cancel context.CancelFunc
}

func (d cancelAfterLookup) FindVerifiedScholarByID(ctx context.Context, id uuid.UUID) (*scholars.Scholar, error) {
	scholar, err := d.Directory.FindVerifiedScholarByID(ctx, id)
	d.cancel()
	return scholar, err
}
