package cheese

import (
	"errors"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var ErrUnknownCountry = errors.New("unknown country")

// Country is a reference entity identified by its ISO 3166-1 alpha-2 code.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var regionNames = display.Regions(language.English)

// LookupCountry resolves an ISO country code to its English display name.
// An empty code returns a zero Country and no error.
func LookupCountry(code string) (Country, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Country{}, nil
	}
	if len(code) != 2 {
		return Country{}, ErrUnknownCountry
	}
	region, err := language.ParseRegion(code)
	if err != nil || !region.IsCountry() {
		return Country{}, ErrUnknownCountry
	}
	name := regionNames.Name(region)
	if name == "" {
		return Country{}, ErrUnknownCountry
	}
	return Country{Code: region.String(), Name: name}, nil
}
