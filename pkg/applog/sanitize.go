// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package applog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// MaskID keeps the head and tail of identifiers such as phone numbers and
// CMD process ids. Values of two characters or less are fully masked.
func MaskID(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "-"
	}
	if len(v) <= 2 {
		return "***"
	}
	if len(v) <= 8 {
		return v[:2] + "***"
	}
	return v[:5] + "..." + v[len(v)-3:]
}

func digest12(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])[:12]
}

// BytesMeta describes a payload by length and digest prefix only.
func BytesMeta(label string, raw []byte) string {
	return fmt.Sprintf("%s[len=%d sha12=%s]", label, len(raw), digest12(string(raw)))
}

// Field helpers used across the signing flow.

func User(v string) zap.Field {
	return zap.String("user", MaskID(v))
}

func ProcessID(v string) zap.Field {
	return zap.String("process_id", MaskID(v))
}

func Payload(label string, raw []byte) zap.Field {
	return zap.String(label, BytesMeta(label, raw))
}

// SanitizeURI drops credentials and the query string from endpoint URLs.
func SanitizeURI(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return truncate(raw, 180)
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "[REDACTED]"
	}
	return truncate(u.String(), 220)
}

// SanitizeArgs renders a parsed command line for logging. Flags are given
// by name; flags that look like secrets are redacted, and so are the
// positional arguments whose index is listed in secret.
func SanitizeArgs(flags map[string]string, positional []string, secret ...int) []string {
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names)+len(positional))
	for _, name := range names {
		v := flags[name]
		if isSecretName(name) {
			v = "[REDACTED]"
		}
		out = append(out, "--"+name+"="+truncate(v, 120))
	}
	for i, a := range positional {
		if slices.Contains(secret, i) {
			out = append(out, "[REDACTED_PIN]")
			continue
		}
		out = append(out, truncate(a, 120))
	}
	return out
}

func isSecretName(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "pin") || strings.Contains(n, "otp") || strings.Contains(n, "password")
}

func truncate(v string, max int) string {
	if max < 8 {
		max = 8
	}
	if len(v) <= max {
		return v
	}
	return v[:max] + "...(trunc)"
}
