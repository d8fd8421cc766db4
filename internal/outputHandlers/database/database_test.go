package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/AlfredBerg/accom-crawler/internal/crawl"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResult() *crawl.Result {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &crawl.Result{
		RunID:    uuid.New(),
		Started:  started,
		Finished: started.Add(3 * time.Minute),
		Sites: []crawl.SiteResult{
			{Site: "one", URL: "https://one/", Links: []string{"https://one/listing/1"}, Candidates: 4, Duration: 90 * time.Second},
			{Site: "two", URL: "https://two/", Err: errors.New("navigation failed")},
		},
		Links: []string{"https://one/listing/1", "https://one/listing/2"},
	}
}

func TestSqliteOutput(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "results.db")
	out := &Output{Driver: "sqlite3", DSN: dsn}
	require.NoError(t, out.Init())

	res := testResult()
	require.NoError(t, out.Handle(context.Background(), res))
	require.NoError(t, out.Close())

	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	defer db.Close()

	var places int
	require.NoError(t, db.QueryRow("SELECT places FROM runs WHERE id = ?", res.RunID.String()).Scan(&places))
	assert.Equal(t, 2, places)

	var count int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM places WHERE run_id = ?", res.RunID.String()).Scan(&count))
	assert.Equal(t, 2, count)

	var siteErr sql.NullString
	require.NoError(t, db.QueryRow("SELECT error FROM site_results WHERE run_id = ? AND position = 1", res.RunID.String()).Scan(&siteErr))
	assert.Equal(t, "navigation failed", siteErr.String)

	var duration int64
	require.NoError(t, db.QueryRow("SELECT duration_ms FROM site_results WHERE run_id = ? AND position = 0", res.RunID.String()).Scan(&duration))
	assert.Equal(t, int64(90000), duration)
}

func TestCloseReportsWriteErrors(t *testing.T) {
	out := &Output{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "results.db")}
	require.NoError(t, out.Init())

	res := testResult()
	require.NoError(t, out.Handle(context.Background(), res))
	// Same run id again violates the primary keys.
	require.NoError(t, out.Handle(context.Background(), res))
	assert.Error(t, out.Close())
}

func TestInitRequiresDSN(t *testing.T) {
	assert.Error(t, (&Output{}).Init())
}

func TestRebind(t *testing.T) {
	q := "INSERT INTO places(run_id, url) values(?, ?);"
	assert.Equal(t, q, (&Output{Driver: "sqlite3"}).rebind(q))
	assert.Equal(t, "INSERT INTO places(run_id, url) values($1, $2);", (&Output{Driver: "pgx"}).rebind(q))
}
