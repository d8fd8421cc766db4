package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Requirements is the search filter shared by every site of a run.
type Requirements struct {
	BedsMin   int    `yaml:"beds_min"`
	BedsMax   int    `yaml:"beds_max"`
	Location  string `yaml:"location"`
	Bathrooms int    `yaml:"bathrooms"`
}

type rawRequirements struct {
	BedsMin   string `mapstructure:"beds_min"`
	BedsMax   string `mapstructure:"beds_max"`
	Location  string `mapstructure:"location"`
	Bathrooms string `mapstructure:"bathrooms"`
}

func (r rawRequirements) parse() (Requirements, []error) {
	var (
		req  Requirements
		errs []error
	)

	req.Location = strings.TrimSpace(r.Location)
	if req.Location == "" {
		errs = append(errs, fmt.Errorf("requirements.location: %w", ErrMissingField))
	}

	var minOK, maxOK bool
	req.BedsMin, minOK = parseInt("requirements.beds_min", r.BedsMin, &errs)
	req.BedsMax, maxOK = parseInt("requirements.beds_max", r.BedsMax, &errs)
	if minOK && maxOK && req.BedsMin > req.BedsMax {
		errs = append(errs, fmt.Errorf("requirements: %w (%d > %d)", ErrBedsRange, req.BedsMin, req.BedsMax))
	}

	bathrooms, ok := parseInt("requirements.bathrooms", r.Bathrooms, &errs)
	if ok && bathrooms < 0 {
		errs = append(errs, fmt.Errorf("requirements.bathrooms: %w (value: %d)", ErrNegativeBathrooms, bathrooms))
	}
	req.Bathrooms = max(bathrooms, 0)

	return req, errs
}

func parseInt(field, raw string, errs *[]error) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*errs = append(*errs, fmt.Errorf("%s: %w", field, ErrMissingField))
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w (value: %s)", field, ErrNotInteger, raw))
		return 0, false
	}
	return n, true
}
