package provider

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dunglas/httpsfv"
)

// rateLimitInfo is what a 429 response told us about the provider's window.
// Diagnostic only: backoff always follows the tier table.
type rateLimitInfo struct {
	Policy     string
	Remaining  int64
	ResetSecs  int64
	RetryAfter int64
	Found      bool
}

// LogValue renders the info as a slog group.
func (r rateLimitInfo) LogValue() slog.Value {
	if !r.Found {
		return slog.StringValue("none")
	}
	return slog.GroupValue(
		slog.String("policy", r.Policy),
		slog.Int64("remaining", r.Remaining),
		slog.Int64("reset", r.ResetSecs),
		slog.Int64("retry_after", r.RetryAfter),
	)
}

// parseRateLimitHeader reads the structured RateLimit field (RFC 9651 syntax).
//
// Two shapes are seen in the wild:
//   - list form:       RateLimit: "default";r=0;t=30
//   - dictionary form: RateLimit: limit=1, remaining=0, reset=30
//
// Retry-After (delay-seconds) is read as well. Malformed fields are ignored.
func parseRateLimitHeader(h http.Header) rateLimitInfo {
	var info rateLimitInfo

	if ra := strings.TrimSpace(h.Get("Retry-After")); ra != "" {
		if secs, err := strconv.ParseInt(ra, 10, 64); err == nil {
			info.RetryAfter = secs
			info.Found = true
		}
	}

	values := h.Values("RateLimit")
	if len(values) == 0 {
		return info
	}

	if list, err := httpsfv.UnmarshalList(values); err == nil && len(list) > 0 {
		if item, ok := list[0].(httpsfv.Item); ok {
			if name, ok := item.Value.(string); ok {
				info.Policy = name
				info.Remaining = paramInt(item.Params, "r")
				info.ResetSecs = paramInt(item.Params, "t")
				info.Found = true
				return info
			}
		}
	}

	dict, err := httpsfv.UnmarshalDictionary(values)
	if err != nil {
		return info
	}
	if v, ok := dictInt(dict, "remaining"); ok {
		info.Remaining = v
		info.Found = true
	}
	if v, ok := dictInt(dict, "reset"); ok {
		info.ResetSecs = v
		info.Found = true
	}
	if v, ok := dictInt(dict, "limit"); ok {
		info.Policy = strconv.FormatInt(v, 10)
		info.Found = true
	}
	return info
}

func paramInt(p *httpsfv.Params, key string) int64 {
	if p == nil {
		return 0
	}
	v, ok := p.Get(key)
	if !ok {
		return 0
	}
	n, _ := v.(int64)
	return n
}

func dictInt(d *httpsfv.Dictionary, key string) (int64, bool) {
	member, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	item, ok := member.(httpsfv.Item)
	if !ok {
		return 0, false
	}
	n, ok := item.Value.(int64)
	return n, ok
}
