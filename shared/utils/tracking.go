package utils

import (
	"net/url"
	"strings"

	"github.com/pavitra93/leadhub/shared/models"
)

// DefaultUTMSource is stored when a landing page URL carries no utm_source
const DefaultUTMSource = "direct"

// ParseTrackingURL extracts attribution parameters from a landing page URL.
// A URL that cannot be parsed, or has no scheme or host, yields an empty attribution.
func ParseTrackingURL(raw string) models.Attribution {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return models.Attribution{}
	}
	q := u.Query()

	source := q.Get("utm_source")
	if source == "" {
		source = DefaultUTMSource
	}

	return models.Attribution{
		UTMSource:   &source,
		UTMMedium:   queryParam(q, "utm_medium"),
		UTMCampaign: queryParam(q, "utm_campaign"),
		UTMTerm:     queryParam(q, "utm_term"),
		UTMContent:  queryParam(q, "utm_content"),
		AdGroupID:   queryParam(q, "adgroupid"),
		GCLID:       queryParam(q, "gclid"),
	}
}

func queryParam(q url.Values, key string) *string {
	if !q.Has(key) {
		return nil
	}
	v := q.Get(key)
	return &v
}
