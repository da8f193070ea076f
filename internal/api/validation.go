package api

import (
	"errors"
	"strings"
)

// requestSegment extracts {x} from /v1/requests/{x}.
func requestSegment(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, requestsPrefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

func validateTokenRequest(req TokenRequest) error {
	if strings.TrimSpace(req.APIKey) == "" {
		return errors.New("api_key is required")
	}
	return nil
}

// acceptsGzip reports whether an Accept-Encoding header value allows gzip.
func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		enc, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(enc), "gzip") && strings.TrimSpace(enc) != "*" {
			continue
		}
		if q := strings.ReplaceAll(strings.TrimSpace(params), " ", ""); q == "q=0" || q == "q=0.0" {
			return false
		}
		return true
	}
	return false
}
