package domain

import (
	"encoding/json"
	"net/url"
	"strings"
)

// NormalizeHost extracts the hostname from a URL, strips a leading "www."
// and lowercases it. Returns false for anything that does not parse to a
// URL with a host (about:blank, chrome://, raw text, ...).
func NormalizeHost(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := u.Hostname()
	if host == "" {
		return "", false
	}
	return normalize(host), true
}

// Match reports whether domain falls under pattern: equal after
// normalization, or a subdomain of it. "music.youtube.com" matches
// "youtube.com"; "notyoutube.com" does not. No other wildcarding.
func Match(domain, pattern string) bool {
	a := normalize(domain)
	b := normalize(pattern)
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.HasSuffix(a, "."+b)
}

// MatchAny reports whether domain matches at least one pattern.
func MatchAny(domain string, patterns []string) bool {
	for _, p := range patterns {
		if Match(domain, p) {
			return true
		}
	}
	return false
}

func normalize(d string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
}

// ParseList decodes a stored domain-list column. The backend has returned
// this field over time as a real JSON array, a Postgres text[] literal
// ("{a.com,b.com}", elements optionally double-quoted), a JSON array
// encoded into a string, or a plain comma-separated string. Every element
// is normalized and bare tokens gain a ".com" suffix. Unrecognized input
// yields an empty list, never an error.
func ParseList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		return finishList(arr)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Not an array and not a string: tolerate a bare, unquoted value.
		s = string(raw)
	}
	return ParseListString(s)
}

// ParseListString parses the string representations of a domain list.
func ParseListString(s string) []string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}

	var elems []string
	switch {
	case strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}"):
		// Postgres text[] literal
		for _, e := range strings.Split(trimmed[1:len(trimmed)-1], ",") {
			e = strings.Trim(strings.TrimSpace(e), `"`)
			if e != "" {
				elems = append(elems, e)
			}
		}
	case strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"):
		var arr []string
		if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
			elems = arr
		}
	}

	if len(elems) == 0 {
		for _, e := range strings.Split(trimmed, ",") {
			if e = strings.TrimSpace(e); e != "" {
				elems = append(elems, e)
			}
		}
	}

	return finishList(elems)
}

func finishList(elems []string) []string {
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		d := normalize(e)
		if d == "" {
			continue
		}
		if !strings.Contains(d, ".") {
			d += ".com"
		}
		out = append(out, d)
	}
	return out
}

// Dedupe returns the list with duplicates removed, first occurrence wins.
func Dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, d := range list {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
