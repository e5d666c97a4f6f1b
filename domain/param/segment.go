package param

import (
	"fmt"
	"strings"
)

// EncodeSegment serializes v as one address segment for a path or topic
// parameter. delim is the transport's segment delimiter and is always escaped.
//
//	style   explode  scalar   array             object
//	simple  false    v        v1,v2             k1,v1,k2,v2
//	simple  true     v        v1,v2             k1=v1,k2=v2
//	label   false    .v       .v1.v2            .k1,v1,k2,v2
//	label   true     .v       .v1.v2            .k1=v1.k2=v2
//	matrix  false    ;n=v     ;n=v1,v2          ;n=k1,v1,k2,v2
//	matrix  true     ;n=v     ;n=v1;n=v2        ;k1=v1;k2=v2
func EncodeSegment(spec Spec, v any, delim byte) (string, error) {
	if spec.Location == LocationQuery {
		return "", &SpecError{Name: spec.Name, Reason: "query parameters are not address segments"}
	}

	extra := ""
	if delim != 0 {
		extra = string(delim)
	}
	if spec.Style == StyleLabel {
		extra += "."
	}
	esc := func(s string) string { return escape(s, extra, false) }

	switch spec.Type {
	case TypeArray:
		xs, err := items(spec, v)
		if err != nil {
			return "", err
		}
		parts, err := formatAll(spec, xs, esc)
		if err != nil {
			return "", err
		}
		switch spec.Style {
		case StyleLabel:
			return "." + strings.Join(parts, "."), nil
		case StyleMatrix:
			if spec.Explode {
				var b strings.Builder
				for _, p := range parts {
					b.WriteString(";" + spec.Name + "=" + p)
				}
				return b.String(), nil
			}
			return ";" + spec.Name + "=" + strings.Join(parts, ","), nil
		default:
			return strings.Join(parts, ","), nil
		}

	case TypeObject:
		obj, err := fields(spec, v)
		if err != nil {
			return "", err
		}
		keys, vals, err := formatObject(spec, obj, esc)
		if err != nil {
			return "", err
		}
		switch spec.Style {
		case StyleLabel:
			if spec.Explode {
				return "." + joinPairs(keys, vals, "=", "."), nil
			}
			return "." + joinFlat(keys, vals, ","), nil
		case StyleMatrix:
			if spec.Explode {
				var b strings.Builder
				for i := range keys {
					b.WriteString(";" + keys[i] + "=" + vals[i])
				}
				return b.String(), nil
			}
			return ";" + spec.Name + "=" + joinFlat(keys, vals, ","), nil
		default:
			if spec.Explode {
				return joinPairs(keys, vals, "=", ","), nil
			}
			return joinFlat(keys, vals, ","), nil
		}

	default:
		s, err := formatScalar(spec, v)
		if err != nil {
			return "", err
		}
		switch spec.Style {
		case StyleLabel:
			return "." + esc(s), nil
		case StyleMatrix:
			return ";" + spec.Name + "=" + esc(s), nil
		default:
			return esc(s), nil
		}
	}
}

// DecodeSegment is the inverse of EncodeSegment. The segment is still
// percent-encoded, exactly as captured by an address matcher.
func DecodeSegment(spec Spec, s string) (any, error) {
	if spec.Location == LocationQuery {
		return nil, &SpecError{Name: spec.Name, Reason: "query parameters are not address segments"}
	}

	switch spec.Type {
	case TypeArray:
		var parts []string
		switch spec.Style {
		case StyleLabel:
			body, err := trimRequired(spec, s, ".")
			if err != nil {
				return nil, err
			}
			parts = splitNonEmpty(body, ".")
		case StyleMatrix:
			if spec.Explode {
				entries, err := matrixEntries(spec, s)
				if err != nil {
					return nil, err
				}
				for _, e := range entries {
					k, v, ok := strings.Cut(e, "=")
					if !ok || k != spec.Name {
						return nil, &DecodeError{Name: spec.Name, Input: s, Reason: fmt.Sprintf("expected %s=<value>", spec.Name)}
					}
					parts = append(parts, v)
				}
			} else {
				body, err := trimRequired(spec, s, ";"+spec.Name+"=")
				if err != nil {
					return nil, err
				}
				parts = splitNonEmpty(body, ",")
			}
		default:
			parts = splitNonEmpty(s, ",")
		}
		return parseAll(spec, parts)

	case TypeObject:
		body := s
		var entries []string
		pairSep, exploded := ",", spec.Explode
		switch spec.Style {
		case StyleLabel:
			b, err := trimRequired(spec, s, ".")
			if err != nil {
				return nil, err
			}
			body = b
			if exploded {
				pairSep = "."
			}
			entries = splitNonEmpty(body, pairSep)
		case StyleMatrix:
			if exploded {
				e, err := matrixEntries(spec, s)
				if err != nil {
					return nil, err
				}
				entries = e
			} else {
				b, err := trimRequired(spec, s, ";"+spec.Name+"=")
				if err != nil {
					return nil, err
				}
				entries = splitNonEmpty(b, ",")
			}
		default:
			entries = splitNonEmpty(body, ",")
		}
		if exploded {
			return parseExplodedObject(spec, s, entries)
		}
		return parseFlatObject(spec, s, entries)

	default:
		body := s
		switch spec.Style {
		case StyleLabel:
			b, err := trimRequired(spec, s, ".")
			if err != nil {
				return nil, err
			}
			body = b
		case StyleMatrix:
			b, err := trimRequired(spec, s, ";"+spec.Name+"=")
			if err != nil {
				return nil, err
			}
			body = b
		}
		text, err := unescape(spec, body)
		if err != nil {
			return nil, err
		}
		return parseScalar(spec, text)
	}
}

func formatAll(spec Spec, xs []any, esc func(string) string) ([]string, error) {
	parts := make([]string, len(xs))
	for i, x := range xs {
		s, err := formatScalar(spec, x)
		if err != nil {
			return nil, err
		}
		parts[i] = esc(s)
	}
	return parts, nil
}

func formatObject(spec Spec, obj Object, esc func(string) string) ([]string, []string, error) {
	keys := make([]string, len(obj))
	vals := make([]string, len(obj))
	for i, f := range obj {
		s, err := formatScalar(spec, f.Value)
		if err != nil {
			return nil, nil, err
		}
		keys[i] = esc(f.Key)
		vals[i] = esc(s)
	}
	return keys, vals, nil
}

// joinFlat renders k1<sep>v1<sep>k2<sep>v2.
func joinFlat(keys, vals []string, sep string) string {
	flat := make([]string, 0, len(keys)*2)
	for i := range keys {
		flat = append(flat, keys[i], vals[i])
	}
	return strings.Join(flat, sep)
}

// joinPairs renders k1<kv>v1<sep>k2<kv>v2.
func joinPairs(keys, vals []string, kv, sep string) string {
	pairs := make([]string, len(keys))
	for i := range keys {
		pairs[i] = keys[i] + kv + vals[i]
	}
	return strings.Join(pairs, sep)
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, sep)
}

func trimRequired(spec Spec, s, prefix string) (string, error) {
	if !strings.HasPrefix(s, prefix) {
		return "", &DecodeError{Name: spec.Name, Input: s, Reason: fmt.Sprintf("missing %q prefix", prefix)}
	}
	return s[len(prefix):], nil
}

// matrixEntries splits ";a=1;b=2" into ["a=1", "b=2"]. An empty string has no entries.
func matrixEntries(spec Spec, s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	body, err := trimRequired(spec, s, ";")
	if err != nil {
		return nil, err
	}
	return strings.Split(body, ";"), nil
}

func parseAll(spec Spec, parts []string) ([]any, error) {
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		text, err := unescape(spec, p)
		if err != nil {
			return nil, err
		}
		v, err := parseScalar(spec, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseFlatObject(spec Spec, input string, flat []string) (Object, error) {
	if len(flat)%2 != 0 {
		return nil, &DecodeError{Name: spec.Name, Input: input, Reason: "odd number of key/value items"}
	}
	obj := make(Object, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		f, err := parseField(spec, flat[i], flat[i+1])
		if err != nil {
			return nil, err
		}
		obj = append(obj, f)
	}
	return obj, nil
}

func parseExplodedObject(spec Spec, input string, entries []string) (Object, error) {
	obj := make(Object, 0, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok {
			return nil, &DecodeError{Name: spec.Name, Input: input, Reason: fmt.Sprintf("entry %q has no '='", e)}
		}
		f, err := parseField(spec, k, v)
		if err != nil {
			return nil, err
		}
		obj = append(obj, f)
	}
	return obj, nil
}

func parseField(spec Spec, rawKey, rawValue string) (Field, error) {
	key, err := unescape(spec, rawKey)
	if err != nil {
		return Field{}, err
	}
	text, err := unescape(spec, rawValue)
	if err != nil {
		return Field{}, err
	}
	v, err := parseScalar(spec, text)
	if err != nil {
		return Field{}, err
	}
	return Field{Key: key, Value: v}, nil
}
