package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ActionKind is a search-form action. The set is closed: unknown names are
// rejected when the configuration is loaded.
type ActionKind int

const (
	ActionClickXPath ActionKind = iota + 1
	ActionClickCSS
	ActionClickID
	ActionClickLinkText
	ActionTypeLocation
	ActionSelectBedsMin
	ActionSelectBedsMax
	ActionEvalClick
	ActionWaitNavigation
)

var actionNames = map[ActionKind]string{
	ActionClickXPath:     "xpath",
	ActionClickCSS:       "css",
	ActionClickID:        "click_id",
	ActionClickLinkText:  "link_text",
	ActionTypeLocation:   "location",
	ActionSelectBedsMin:  "beds_min",
	ActionSelectBedsMax:  "beds_max",
	ActionEvalClick:      "eval_click",
	ActionWaitNavigation: "wait_navigation",
}

func (a ActionKind) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("ActionKind(%d)", int(a))
}

func (a ActionKind) MarshalYAML() (interface{}, error) {
	return a.String(), nil
}

// ParseAction maps a configuration name to its ActionKind.
func ParseAction(name string) (ActionKind, error) {
	name = strings.TrimSpace(name)
	for kind, n := range actionNames {
		if n == name {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownAction, name)
}

// PaginationKind selects one of the two pagination strategies.
type PaginationKind int

const (
	// PaginationPageList enumerates the page links found inside a container.
	PaginationPageList PaginationKind = iota + 1
	// PaginationSelect scrolls and clicks "next" a bounded number of times.
	PaginationSelect
)

func (p PaginationKind) String() string {
	switch p {
	case PaginationPageList:
		return "get_xpath_list"
	case PaginationSelect:
		return "select"
	}
	return fmt.Sprintf("PaginationKind(%d)", int(p))
}

func (p PaginationKind) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

func ParsePagination(name string) (PaginationKind, error) {
	switch strings.TrimSpace(name) {
	case "get_xpath_list":
		return PaginationPageList, nil
	case "select":
		return PaginationSelect, nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownAction, name)
}

const extractAction = "match_url_regex"

// Step is one search-form instruction.
type Step struct {
	Target string     `yaml:"target"`
	Action ActionKind `yaml:"action"`
}

// Extraction restricts page links to listing detail pages.
type Extraction struct {
	Pattern string
}

// MarshalYAML writes the extraction back in its configuration form.
func (e Extraction) MarshalYAML() (interface{}, error) {
	return rawStep{Target: e.Pattern, Action: extractAction}, nil
}

type Pagination struct {
	Target string         `yaml:"target"`
	Kind   PaginationKind `yaml:"action"`
}

// Verification describes how to read the bathroom count from a detail page:
// Pattern is matched against the text of Selector (whole document when
// empty) and the capture group at Index holds the number.
type Verification struct {
	Selector string `yaml:"selector,omitempty"`
	Pattern  string `yaml:"pattern"`
	Index    int    `yaml:"index"`
}

// Site is one accommodation site to crawl.
type Site struct {
	Name         string       `yaml:"name"`
	URL          string       `yaml:"url"`
	Active       bool         `yaml:"active"`
	Domain       string       `yaml:"domain"`
	Search       []Step       `yaml:"search"`
	Extract      []Extraction `yaml:"extract"`
	Pagination   []Pagination `yaml:"pagination"`
	MaxPage      string       `yaml:"max_page,omitempty"`
	Verification Verification `yaml:"check_property"`
}

// Label is the name used in logs.
func (s *Site) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.URL
}

type rawStep struct {
	Target string `mapstructure:"target" yaml:"target"`
	Action string `mapstructure:"action" yaml:"action"`
}

type rawVerification struct {
	Selector string `mapstructure:"selector"`
	Pattern  string `mapstructure:"pattern"`
	Index    int    `mapstructure:"index"`
}

type rawSite struct {
	Name         string          `mapstructure:"name"`
	URL          string          `mapstructure:"url"`
	Active       *bool           `mapstructure:"active"`
	Domain       string          `mapstructure:"domain"`
	Search       []rawStep       `mapstructure:"search"`
	Extract      []rawStep       `mapstructure:"extract"`
	Pagination   []rawStep       `mapstructure:"pagination"`
	MaxPage      string          `mapstructure:"max_page"`
	Verification rawVerification `mapstructure:"check_property"`
}

func (r rawSite) parse(prefix string) (Site, []error) {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(prefix+"."+format, args...))
	}

	site := Site{
		Name:    strings.TrimSpace(r.Name),
		URL:     strings.TrimSpace(r.URL),
		Active:  r.Active == nil || *r.Active,
		Domain:  strings.TrimSpace(r.Domain),
		MaxPage: strings.TrimSpace(r.MaxPage),
	}

	base, err := url.Parse(site.URL)
	switch {
	case site.URL == "":
		fail("url: %w", ErrMissingField)
	case err != nil || base.Scheme == "" || base.Host == "":
		fail("url: %w %q", ErrInvalidURL, site.URL)
	case site.Domain == "":
		site.Domain = base.Scheme + "://" + base.Host
	}
	if site.Domain != "" {
		if d, err := url.Parse(site.Domain); err != nil || d.Scheme == "" || d.Host == "" {
			fail("domain: %w %q", ErrInvalidURL, site.Domain)
		}
	}

	for i, s := range r.Search {
		kind, err := ParseAction(s.Action)
		if err != nil {
			fail("search[%d]: %w", i, err)
			continue
		}
		target := strings.TrimSpace(s.Target)
		if target == "" && kind != ActionWaitNavigation {
			fail("search[%d]: %w", i, ErrEmptyTarget)
			continue
		}
		site.Search = append(site.Search, Step{Target: target, Action: kind})
	}

	for i, s := range r.Extract {
		if strings.TrimSpace(s.Action) != extractAction {
			fail("extract[%d]: %w %q", i, ErrUnknownAction, s.Action)
			continue
		}
		if _, err := regexp.Compile(s.Target); err != nil {
			fail("extract[%d]: %w: %v", i, ErrInvalidPattern, err)
			continue
		}
		site.Extract = append(site.Extract, Extraction{Pattern: s.Target})
	}
	if site.Active && len(r.Extract) == 0 {
		fail("extract: %w", ErrNoExtraction)
	}

	for i, s := range r.Pagination {
		kind, err := ParsePagination(s.Action)
		if err != nil {
			fail("pagination[%d]: %w", i, err)
			continue
		}
		target := strings.TrimSpace(s.Target)
		if target == "" {
			fail("pagination[%d]: %w", i, ErrEmptyTarget)
			continue
		}
		if kind == PaginationSelect && site.MaxPage == "" {
			fail("pagination[%d]: %w", i, ErrMissingPageBound)
			continue
		}
		site.Pagination = append(site.Pagination, Pagination{Target: target, Kind: kind})
	}

	v := r.Verification
	if v.Index < 0 {
		fail("check_property.index: %w (%d is negative)", ErrInvalidIndex, v.Index)
	}
	switch {
	case strings.TrimSpace(v.Pattern) == "":
		fail("check_property.pattern: %w", ErrMissingField)
	default:
		re, err := regexp.Compile(v.Pattern)
		if err != nil {
			fail("check_property.pattern: %w: %v", ErrInvalidPattern, err)
			break
		}
		if v.Index > re.NumSubexp() {
			fail("check_property.index: %w (%d, pattern has %d groups)", ErrInvalidIndex, v.Index, re.NumSubexp())
		}
	}
	site.Verification = Verification{
		Selector: strings.TrimSpace(v.Selector),
		Pattern:  v.Pattern,
		Index:    v.Index,
	}

	return site, errs
}
