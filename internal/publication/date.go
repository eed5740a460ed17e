package publication

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05"

	// DisplayLayout renders dates as "03 November 2020".
	DisplayLayout = "02 January 2006"

	maxFractionDigits = 6
)

var errBadFraction = errors.New("fractional seconds must be 1-6 digits")

// ParseDate parses YYYY-MM-DD, YYYY-MM-DDThh:mm:ss or
// YYYY-MM-DDThh:mm:ss.ffffff. Time zones are not accepted.
func ParseDate(s string) (time.Time, error) {
	if !strings.Contains(s, "T") {
		return time.Parse(dateLayout, s)
	}

	base, frac, hasFrac := strings.Cut(s, ".")
	if hasFrac {
		if len(frac) == 0 || len(frac) > maxFractionDigits {
			return time.Time{}, errBadFraction
		}
		for _, r := range frac {
			if r < '0' || r > '9' {
				return time.Time{}, errBadFraction
			}
		}
	}

	t, err := time.Parse(dateTimeLayout, base)
	if err != nil {
		return time.Time{}, err
	}
	if hasFrac {
		// Right-pad to nanoseconds: "5" means 500ms.
		ns := frac + strings.Repeat("0", 9-len(frac))
		d, _ := time.ParseDuration(ns + "ns")
		t = t.Add(d)
	}
	return t, nil
}

// DisplayDate renders an ISO date string for humans. Unparseable input is
// returned unchanged.
func DisplayDate(s string) string {
	t, err := ParseDate(s)
	if err != nil {
		return s
	}
	return t.Format(DisplayLayout)
}

// LinkDomain returns the host name of a download link. Links without a
// scheme are treated as scheme-relative.
func LinkDomain(link string) string {
	if !strings.HasPrefix(link, "http") && !strings.HasPrefix(link, "//") {
		link = "//" + link
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Host
}
