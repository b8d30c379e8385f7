package provider

import (
	"net/http"
	"testing"
)

func TestParseRateLimitHeader(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		want   rateLimitInfo
	}{
		{
			name:   "list form",
			header: http.Header{"Ratelimit": {`"default";r=0;t=30`}},
			want:   rateLimitInfo{Policy: "default", Remaining: 0, ResetSecs: 30, Found: true},
		},
		{
			name:   "dictionary form",
			header: http.Header{"Ratelimit": {"limit=1, remaining=0, reset=12"}},
			want:   rateLimitInfo{Policy: "1", Remaining: 0, ResetSecs: 12, Found: true},
		},
		{
			name:   "retry-after only",
			header: http.Header{"Retry-After": {"20"}},
			want:   rateLimitInfo{RetryAfter: 20, Found: true},
		},
		{
			name:   "malformed ignored",
			header: http.Header{"Ratelimit": {"%%%"}},
			want:   rateLimitInfo{},
		},
		{
			name:   "absent",
			header: http.Header{},
			want:   rateLimitInfo{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseRateLimitHeader(tt.header)
			if got != tt.want {
				t.Errorf("parseRateLimitHeader() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
