package query

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Match returns the urls matching pattern, in input order. A malformed
// pattern matches nothing.
func Match(urls []string, pattern string) []string {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	var out []string
	for _, u := range urls {
		if re.MatchString(u) {
			out = append(out, u)
		}
	}
	return out
}

// Document is parsed markup that can be searched for regular expression
// groups.
type Document struct {
	doc *goquery.Document
}

func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Query matches pattern against the text of every element selected by the
// CSS selector, or against the whole document when selector is empty. Each
// match is returned as its groups, the full match at index 0.
func (d *Document) Query(selector, pattern string) ([][]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", pattern, err)
	}

	var texts []string
	if strings.TrimSpace(selector) == "" {
		texts = append(texts, d.doc.Text())
	} else {
		d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			texts = append(texts, s.Text())
		})
	}

	var groups [][]string
	for _, text := range texts {
		groups = append(groups, re.FindAllStringSubmatch(normalizeSpace(text), -1)...)
	}
	return groups, nil
}

// Query parses r and queries it in one step.
func Query(r io.Reader, selector, pattern string) ([][]string, error) {
	d, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return d.Query(selector, pattern)
}

// Number reads the group at index as a number. Out of range indexes and
// unparsable values report false.
func Number(groups []string, index int) (float64, bool) {
	if index < 0 || index >= len(groups) {
		return 0, false
	}
	raw := strings.TrimSpace(groups[index])
	raw = strings.ReplaceAll(raw, ",", ".")
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
