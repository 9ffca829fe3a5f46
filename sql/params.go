package sql

import "strings"

// NormalizeParamName reduces a parameter as written in SQL (@id, @@id, :id,
// ?id, @`id`, @'id', @"id", [id]) to its bare name. A bare ? yields "".
// Names compare case-insensitively, so callers should use strings.EqualFold
// or lower-case both sides.
func NormalizeParamName(raw string) string {
	name := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(name, "@@"):
		name = name[2:]
	case strings.HasPrefix(name, "@"), strings.HasPrefix(name, ":"), strings.HasPrefix(name, "?"):
		name = name[1:]
	}
	if len(name) >= 2 {
		first, last := name[0], name[len(name)-1]
		if (first == '`' && last == '`') || (first == '"' && last == '"') ||
			(first == '\'' && last == '\'') || (first == '[' && last == ']') {
			name = name[1 : len(name)-1]
		}
	}
	return name
}

// ParamKey is the lookup key for a parameter name in a bound value map.
func ParamKey(name string) string {
	return strings.ToLower(NormalizeParamName(name))
}
