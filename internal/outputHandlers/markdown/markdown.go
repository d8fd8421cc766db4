package markdown

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/AlfredBerg/accom-crawler/internal/crawl"
	md "github.com/nao1215/markdown"
)

// Output writes a markdown report of a run to Path.
type Output struct {
	Path string
}

func (o *Output) Handle(_ context.Context, res *crawl.Result) error {
	if o.Path == "" {
		return errors.New("markdown output path not set")
	}
	if err := os.MkdirAll(filepath.Dir(o.Path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	f, err := os.Create(o.Path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := Write(f, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write renders the report of res to w.
func Write(w io.Writer, res *crawl.Result) error {
	r := &reportWriter{md: md.NewMarkdown(w), res: res}
	r.writeHeader()
	r.writeSites()
	r.writePlaces()
	return r.md.Build()
}

type reportWriter struct {
	md  *md.Markdown
	res *crawl.Result
}

func (r *reportWriter) writeHeader() {
	req := r.res.Requirements
	r.md.H1("Accommodation search").
		PlainText("").
		Table(md.TableSet{
			Header: []string{"Run", "Started", "Finished", "Location", "Beds", "Bathrooms"},
			Rows: [][]string{{
				r.res.RunID.String(),
				r.res.Started.Format(time.RFC3339),
				r.res.Finished.Format(time.RFC3339),
				req.Location,
				fmt.Sprintf("%d-%d", req.BedsMin, req.BedsMax),
				strconv.Itoa(req.Bathrooms),
			}},
		}).
		PlainText("")
}

func (r *reportWriter) writeSites() {
	rows := make([][]string, 0, len(r.res.Sites))
	for _, s := range r.res.Sites {
		status := "ok"
		if s.Err != nil {
			status = s.Err.Error()
		}
		rows = append(rows, []string{
			s.Site,
			s.URL,
			strconv.Itoa(s.Candidates),
			strconv.Itoa(len(s.Links)),
			s.Duration.Round(time.Second).String(),
			status,
		})
	}

	r.md.H2("Websites").PlainText("")
	if len(rows) == 0 {
		r.md.PlainText("No websites were crawled.").PlainText("")
		return
	}
	r.md.Table(md.TableSet{
		Header: []string{"Website", "URL", "Candidates", "Results", "Duration", "Status"},
		Rows:   rows,
	}).PlainText("")
}

func (r *reportWriter) writePlaces() {
	r.md.H2(fmt.Sprintf("Places (%d)", len(r.res.Links))).PlainText("")
	if len(r.res.Links) == 0 {
		r.md.PlainText("Nothing matched the requirements.")
		return
	}
	items := make([]string, 0, len(r.res.Links))
	for _, l := range r.res.Links {
		items = append(items, md.Link(l, l))
	}
	r.md.BulletList(items...)
}
