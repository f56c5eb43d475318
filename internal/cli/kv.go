package cli

import (
	"strings"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/nerrors"
)

// parseKV parses one "--option"/"--env" repeat's worth of raw "K=V" strings
// into a map. The map does not keep the order of the entries, and a repeated
// key keeps its last value. An entry missing "=" or with an empty key is
// rejected; outer double-quotes are stripped from the value when present on
// both ends, the common shape when a Dockerfile RUN line forwards a quoted
// shell variable.
func parseKV(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, entry := range raw {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			return nil, &nerrors.UsageError{Msg: "malformed K=V argument (missing '='): " + entry}
		}
		if key == "" {
			return nil, &nerrors.UsageError{Msg: "malformed K=V argument (empty key): " + entry}
		}
		out[key] = stripWrappingQuotes(value)
	}
	return out, nil
}

func stripWrappingQuotes(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// splitCommaList splits a comma-separated CLI argument, trimming whitespace
// around each element and dropping empty elements (so a trailing comma or
// doubled comma doesn't produce a spurious "" entry).
func splitCommaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
