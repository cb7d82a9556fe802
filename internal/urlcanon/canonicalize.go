// Package urlcanon implements deterministic URL canonicalization and the
// content-addressed news id derived from it (C1 in SPEC_FULL.md).
package urlcanon

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
)

// ErrEmptyURL is returned when Canonicalize is given an empty or
// whitespace-only URL.
var ErrEmptyURL = errors.New("urlcanon: url is required")

// trackingParams is the fixed set of tracking query keys dropped outright,
// in addition to any key matching the case-insensitive utm_* prefix.
var trackingParams = map[string]bool{
	"gclid":   true,
	"fbclid":  true,
	"mc_cid":  true,
	"mc_eid":  true,
	"ref":     true,
	"ref_src": true,
	"cmpid":   true,
}

type kv struct{ key, value string }

// Canonicalize normalizes a raw URL string: lowercases scheme/host,
// strips tracking query parameters, sorts the remainder, drops the
// fragment, and collapses a single trailing slash. It is a pure
// function: Canonicalize(Canonicalize(u)) == Canonicalize(u).
func Canonicalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyURL
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", err
	}

	scheme := strings.ToLower(u.Scheme)
	hostname := strings.ToLower(u.Hostname())

	netloc := hostname
	if u.User != nil {
		userinfo := u.User.Username()
		if pw, ok := u.User.Password(); ok {
			userinfo = userinfo + ":" + pw
		}
		netloc = userinfo + "@" + netloc
	}
	if port := u.Port(); port != "" {
		netloc = netloc + ":" + port
	}

	path := u.Path
	if path == "" {
		path = "/"
	} else {
		path = strings.TrimSuffix(path, "/")
		if path == "" {
			path = "/"
		}
	}

	var filtered []kv
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key, err = url.QueryUnescape(key)
		if err != nil {
			continue
		}
		value, err = url.QueryUnescape(value)
		if err != nil {
			continue
		}
		keyLower := strings.ToLower(key)
		if strings.HasPrefix(keyLower, "utm_") || trackingParams[keyLower] {
			continue
		}
		filtered = append(filtered, kv{key, value})
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].key != filtered[j].key {
			return filtered[i].key < filtered[j].key
		}
		return filtered[i].value < filtered[j].value
	})

	query := encodeQuery(filtered)

	out := url.URL{
		Scheme:   scheme,
		Host:     netloc,
		Path:     path,
		RawQuery: query,
	}
	return out.String(), nil
}

func encodeQuery(pairs []kv) string {
	if len(pairs) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

// NewsID derives the content-addressed event id: sha256("{source}|{canonical url}").
func NewsID(source, rawURL string) (string, error) {
	canonical, err := Canonicalize(rawURL)
	if err != nil {
		return "", err
	}
	return sha256Hex(source + "|" + canonical), nil
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
