package api

import "testing"

func TestRequestSegment(t *testing.T) {
	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{"/v1/requests/property_search", "property_search", true},
		{"/v1/requests/abc-123", "abc-123", true},
		{"/v1/requests/", "", false},
		{"/v1/requests/a/b", "", false},
		{"/v1/usage", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := requestSegment(tt.path)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("requestSegment(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestValidateTokenRequest(t *testing.T) {
	if err := validateTokenRequest(TokenRequest{APIKey: "k"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, key := range []string{"", "   "} {
		if err := validateTokenRequest(TokenRequest{APIKey: key}); err == nil {
			t.Errorf("expected error for api_key %q", key)
		}
	}
}

func TestAcceptsGzip(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"", false},
		{"gzip", true},
		{"deflate, gzip;q=1.0", true},
		{"GZIP", true},
		{"*", true},
		{"gzip;q=0", false},
		{"br, deflate", false},
	}
	for _, tt := range tests {
		if got := acceptsGzip(tt.header); got != tt.want {
			t.Errorf("acceptsGzip(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
