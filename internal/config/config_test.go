package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const validConfig = `
requirements:
  beds_min: 2
  beds_max: "4"
  location: Amsterdam
  bathrooms: 2
websites:
  - name: example
    url: https://www.example.com/search?q=1
    search:
      - {target: "#Location", action: location}
      - {target: "//select[@name='min']", action: beds_min}
      - {target: "//select[@name='max']", action: beds_max}
      - {target: "Search", action: link_text}
      - {action: wait_navigation}
    extract:
      - {target: "/listing/[0-9]+", action: match_url_regex}
    pagination:
      - {target: "//ul[@class='pages']", action: get_xpath_list}
    check_property:
      selector: ".facts"
      pattern: '([0-9]+) bathrooms?'
      index: 1
  - url: https://other.example.org/
    active: false
    max_page: "//span[@class='total']"
    pagination:
      - {target: "//a[@rel='next']", action: select}
    check_property:
      pattern: 'Bath: ([0-9]+)'
      index: 1
crawl:
  step_delay: 250ms
`

func newViper(t *testing.T, content string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(content)))
	return v
}

func TestLoad(t *testing.T) {
	cfg, err := Load(newViper(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, Requirements{BedsMin: 2, BedsMax: 4, Location: "Amsterdam", Bathrooms: 2}, cfg.Requirements)
	require.Len(t, cfg.Websites, 2)

	first := cfg.Websites[0]
	assert.True(t, first.Active)
	assert.Equal(t, "https://www.example.com", first.Domain)
	assert.Equal(t, []Step{
		{Target: "#Location", Action: ActionTypeLocation},
		{Target: "//select[@name='min']", Action: ActionSelectBedsMin},
		{Target: "//select[@name='max']", Action: ActionSelectBedsMax},
		{Target: "Search", Action: ActionClickLinkText},
		{Action: ActionWaitNavigation},
	}, first.Search)
	assert.Equal(t, []Extraction{{Pattern: "/listing/[0-9]+"}}, first.Extract)
	assert.Equal(t, []Pagination{{Target: "//ul[@class='pages']", Kind: PaginationPageList}}, first.Pagination)
	assert.Equal(t, Verification{Selector: ".facts", Pattern: "([0-9]+) bathrooms?", Index: 1}, first.Verification)

	second := cfg.Websites[1]
	assert.False(t, second.Active)
	assert.Equal(t, "https://other.example.org/", second.Label())
	assert.Equal(t, PaginationSelect, second.Pagination[0].Kind)

	assert.Equal(t, 250*time.Millisecond, cfg.Crawl.StepDelay)
	assert.Equal(t, 5*time.Second, cfg.Crawl.FormDelay)
	assert.Equal(t, 30*time.Second, cfg.Crawl.NavTimeout)
	assert.Equal(t, 70, cfg.Verify.Workers)
	assert.Equal(t, "rod", cfg.Browser.Driver)
	assert.Equal(t, 1920, cfg.Browser.Width)
}

func TestLoadKeepsLocatorCase(t *testing.T) {
	cfg, err := Load(newViper(t, validConfig))
	require.NoError(t, err)
	assert.Equal(t, "#Location", cfg.Websites[0].Search[0].Target)
}

func TestLoadRequirementErrors(t *testing.T) {
	tests := []struct {
		name string
		reqs string
		want []error
	}{
		{
			name: "missing everything",
			reqs: "requirements: {}",
			want: []error{ErrMissingField},
		},
		{
			name: "beds range",
			reqs: "requirements: {beds_min: 5, beds_max: 2, location: x, bathrooms: 1}",
			want: []error{ErrBedsRange},
		},
		{
			name: "not integers",
			reqs: "requirements: {beds_min: two, beds_max: 2, location: x, bathrooms: many}",
			want: []error{ErrNotInteger},
		},
		{
			name: "negative bathrooms",
			reqs: "requirements: {beds_min: 1, beds_max: 2, location: x, bathrooms: -1}",
			want: []error{ErrNegativeBathrooms},
		},
	}

	site := `
websites:
  - url: https://example.com
    extract:
      - {target: "/listing/", action: match_url_regex}
    check_property: {pattern: "([0-9]+)", index: 1}
`
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newViper(t, tt.reqs+site))
			require.Error(t, err)
			for _, want := range tt.want {
				assert.ErrorIs(t, err, want)
			}
		})
	}
}

func TestLoadReportsAllErrors(t *testing.T) {
	content := `
requirements: {beds_min: 3, beds_max: 1, location: "", bathrooms: 1}
websites:
  - url: "not a url"
    search:
      - {target: "#x", action: teleport}
      - {target: "", action: css}
    extract:
      - {target: "([", action: match_url_regex}
    pagination:
      - {target: "//a", action: select}
    check_property: {pattern: "", index: -1}
`
	_, err := Load(newViper(t, content))
	require.Error(t, err)

	for _, want := range []error{
		ErrBedsRange,
		ErrMissingField,
		ErrInvalidURL,
		ErrUnknownAction,
		ErrEmptyTarget,
		ErrInvalidPattern,
		ErrMissingPageBound,
		ErrInvalidIndex,
	} {
		assert.ErrorIs(t, err, want)
	}
}

func TestLoadNoWebsites(t *testing.T) {
	_, err := Load(newViper(t, "requirements: {beds_min: 1, beds_max: 2, location: x, bathrooms: 1}"))
	assert.ErrorIs(t, err, ErrNoWebsites)
}

func TestLoadSettings(t *testing.T) {
	content := validConfig + `
browser:
  driver: netscape
crawl:
  navigation_timeout: 0s
verify:
  workers: 0
output:
  database:
    enabled: true
    driver: oracle
`
	_, err := Load(newViper(t, content))
	assert.ErrorIs(t, err, ErrUnknownDriver)
	assert.ErrorIs(t, err, ErrInvalidSetting)
	assert.ErrorContains(t, err, "crawl.navigation_timeout")
}

const requirementsOnly = "requirements: {beds_min: 1, beds_max: 2, location: x, bathrooms: 1}\n"

func TestLoadVerificationIndex(t *testing.T) {
	tests := []struct {
		name    string
		check   string
		wantErr bool
	}{
		{name: "first group", check: `{pattern: "([0-9]+) bath", index: 1}`},
		{name: "whole match", check: `{pattern: "[0-9]+", index: 0}`},
		{name: "last of two groups", check: `{pattern: "([0-9]+) beds?, ([0-9]+) baths?", index: 2}`},
		{name: "past the groups", check: `{pattern: "([0-9]+) bath", index: 2}`, wantErr: true},
		{name: "no groups", check: `{pattern: "[0-9]+ bath", index: 1}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := requirementsOnly + `
websites:
  - url: https://example.com
    extract:
      - {target: "/listing/", action: match_url_regex}
    check_property: ` + tt.check + "\n"
			_, err := Load(newViper(t, content))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidIndex)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadRequiresExtraction(t *testing.T) {
	content := requirementsOnly + `
websites:
  - url: https://active.example.com
    check_property: {pattern: "([0-9]+)", index: 1}
  - url: https://inactive.example.com
    active: false
    check_property: {pattern: "([0-9]+)", index: 1}
`
	_, err := Load(newViper(t, content))
	require.ErrorIs(t, err, ErrNoExtraction)
	assert.ErrorContains(t, err, "websites[0].extract")
	assert.NotContains(t, err.Error(), "websites[1]")
}

func TestParseAction(t *testing.T) {
	for kind, name := range actionNames {
		got, err := ParseAction(name)
		require.NoError(t, err)
		assert.Equal(t, kind, got)
		assert.Equal(t, name, kind.String())
	}

	_, err := ParseAction("scroll")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg, err := Load(newViper(t, validConfig))
	require.NoError(t, err)

	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), "action: match_url_regex")
	assert.Contains(t, string(out), "step_delay: 250ms")

	again, err := Load(newViper(t, string(out)))
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}
