package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

// LocaleKey is the context key under which the resolved locale is stored.
var LocaleKey = localeContextKey{}

// supported lists the locales user-facing strings exist for; the first entry
// is the fallback.
var supported = []language.Tag{
	language.English,
	language.Spanish,
	language.Portuguese,
	language.Japanese,
}

var matcher = language.NewMatcher(supported)

// countryLocales maps ISO country codes to a locale when the request carries
// no usable language header.
var countryLocales = map[string]string{
	"BR": "pt",
	"PT": "pt",
	"ES": "es",
	"MX": "es",
	"AR": "es",
	"JP": "ja",
}

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// Locale resolves the request locale from the X-Locale header, the
// Accept-Language header, or a GeoIP country hint, in that order, and stores
// it in the request context.
func Locale(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := detectLocale(r, defaultLocale, lookup)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string, lookup CountryLookup) string {
	if v := r.Header.Get("X-Locale"); v != "" {
		return normalizeLocale(v)
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		if tag, _ := language.MatchStrings(matcher, accept); tag != language.Und {
			base, _ := tag.Base()
			return base.String()
		}
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil {
				if locale, ok := countryLocales[strings.ToUpper(country)]; ok {
					return locale
				}
			}
		}
	}
	if fallback != "" {
		return normalizeLocale(fallback)
	}
	return "en"
}

func normalizeLocale(locale string) string {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return "en"
	}
	matched, _, _ := matcher.Match(tag)
	base, _ := matched.Base()
	return base.String()
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LocaleFromContext returns the resolved locale for the request.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}
