package service

import (
	"net/url"
	"strings"

	"github.com/turtacn/entitle/pkg/errors"
)

// QueryParameterParser reads response parameters from the query component.
// The authorization code grant delivers its response this way.
type QueryParameterParser struct{}

// Parse implements ParameterParser.
func (QueryParameterParser) Parse(finalURI string) (map[string]string, error) {
	u, err := parseRedirect(finalURI)
	if err != nil {
		return nil, err
	}
	return decodeParameters(finalURI, u.RawQuery)
}

// FragmentParameterParser reads response parameters from the fragment component.
// The implicit grant delivers its response this way.
type FragmentParameterParser struct{}

// Parse implements ParameterParser.
func (FragmentParameterParser) Parse(finalURI string) (map[string]string, error) {
	u, err := parseRedirect(finalURI)
	if err != nil {
		return nil, err
	}
	return decodeParameters(finalURI, u.EscapedFragment())
}

func parseRedirect(finalURI string) (*url.URL, error) {
	if strings.TrimSpace(finalURI) == "" {
		return nil, errors.ErrMalformedRedirect(finalURI, "empty redirect URI")
	}
	u, err := url.Parse(finalURI)
	if err != nil {
		return nil, errors.ErrMalformedRedirect(finalURI, err.Error()).WithCause(err)
	}
	return u, nil
}

// decodeParameters percent-decodes an x-www-form-urlencoded component.
// A repeated name keeps its last occurrence.
func decodeParameters(finalURI, raw string) (map[string]string, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, errors.ErrMalformedRedirect(finalURI, err.Error()).WithCause(err)
	}
	params := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			params[k] = vs[len(vs)-1]
		}
	}
	return params, nil
}
