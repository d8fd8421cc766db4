package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AlfredBerg/accom-crawler/internal/crawl"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id text not null primary key,
		started text not null,
		finished text not null,
		location text,
		beds_min integer,
		beds_max integer,
		bathrooms integer,
		places integer
	);`,
	`CREATE TABLE IF NOT EXISTS site_results (
		run_id text not null,
		position integer not null,
		site text,
		url text,
		candidates integer,
		results integer,
		duration_ms integer,
		error text,
		primary key (run_id, position)
	);`,
	`CREATE TABLE IF NOT EXISTS places (
		run_id text not null,
		url text not null,
		primary key (run_id, url)
	);`,
}

type statement struct {
	query string
	args  []any
}

// Output stores run results in sqlite (driver "sqlite3") or postgres
// (driver "pgx"). Handle is safe to call from multiple goroutines; all
// writes go through one writer goroutine.
type Output struct {
	Driver string
	DSN    string
	Logger *zap.Logger

	db       *sql.DB
	stmtChan chan statement
	wg       sync.WaitGroup

	dbLock  sync.Mutex
	errLock sync.Mutex
	err     error
}

func (o *Output) Init() error {
	if o.DSN == "" {
		return errors.New("database dsn not set")
	}
	if o.Driver == "" {
		o.Driver = "sqlite3"
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Driver == "sqlite3" && !strings.HasPrefix(o.DSN, "file::memory:") && o.DSN != ":memory:" {
		path := strings.TrimPrefix(strings.SplitN(o.DSN, "?", 2)[0], "file:")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(o.Driver, o.DSN)
	if err != nil {
		return err
	}
	o.db = db

	for _, create := range schema {
		if _, err := db.Exec(create); err != nil {
			db.Close()
			return fmt.Errorf("failed to create table %q: %w", create, err)
		}
	}

	//Buffered channel as the statements come in bursts, one per place
	o.stmtChan = make(chan statement, 20)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for s := range o.stmtChan {
			o.dbLock.Lock()
			_, err := db.Exec(s.query, s.args...)
			o.dbLock.Unlock()
			if err != nil {
				o.Logger.Error("failed to insert", zap.String("query", s.query), zap.Error(err))
				o.setErr(err)
			}
		}
	}()
	return nil
}

func (o *Output) setErr(err error) {
	o.errLock.Lock()
	defer o.errLock.Unlock()
	if o.err == nil {
		o.err = err
	}
}

// Close flushes the pending writes and reports the first write error.
func (o *Output) Close() error {
	close(o.stmtChan)
	o.wg.Wait()
	closeErr := o.db.Close()

	o.errLock.Lock()
	defer o.errLock.Unlock()
	return errors.Join(o.err, closeErr)
}

func (o *Output) Handle(ctx context.Context, res *crawl.Result) error {
	send := func(query string, args ...any) error {
		select {
		case o.stmtChan <- statement{query: o.rebind(query), args: args}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	runID := res.RunID.String()
	err := send("INSERT INTO runs(id, started, finished, location, beds_min, beds_max, bathrooms, places) values(?, ?, ?, ?, ?, ?, ?, ?);",
		runID,
		res.Started.UTC().Format(time.RFC3339),
		res.Finished.UTC().Format(time.RFC3339),
		res.Requirements.Location,
		res.Requirements.BedsMin,
		res.Requirements.BedsMax,
		res.Requirements.Bathrooms,
		len(res.Links))
	if err != nil {
		return err
	}

	for i, sr := range res.Sites {
		var siteErr *string
		if sr.Err != nil {
			msg := sr.Err.Error()
			siteErr = &msg
		}
		err := send("INSERT INTO site_results(run_id, position, site, url, candidates, results, duration_ms, error) values(?, ?, ?, ?, ?, ?, ?, ?);",
			runID, i, sr.Site, sr.URL, sr.Candidates, len(sr.Links), sr.Duration.Milliseconds(), siteErr)
		if err != nil {
			return err
		}
	}

	for _, link := range res.Links {
		if err := send("INSERT INTO places(run_id, url) values(?, ?);", runID, link); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (o *Output) rebind(query string) string {
	if o.Driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
