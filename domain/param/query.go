package param

import (
	"fmt"
	"strings"
)

// Pair is one key=value entry of a query string, both sides percent-encoded.
type Pair struct {
	Key   string
	Value string
}

func (p Pair) String() string { return p.Key + "=" + p.Value }

// spaceSep separates spaceDelimited items. Spaces inside items of a joined
// spaceDelimited value are written as '+' so the separator stays unambiguous.
const spaceSep = "%20"

// plusSpaces reports whether spaces travel as '+'. Exploded spaceDelimited
// parameters are encoded as form, so only the joined value needs it.
func plusSpaces(spec Spec) bool {
	return spec.Style == StyleSpaceDelimited && !spec.Explode
}

func querySep(style Style) string {
	switch style {
	case StyleSpaceDelimited:
		return spaceSep
	case StylePipeDelimited:
		return "|"
	default:
		return ","
	}
}

func queryEscaper(spec Spec) func(string) string {
	return func(s string) string {
		out := escape(s, "", spec.AllowReserved)
		if plusSpaces(spec) {
			out = strings.ReplaceAll(out, "%20", "+")
		}
		return out
	}
}

func queryUnescape(spec Spec, s string) (string, error) {
	if plusSpaces(spec) {
		s = strings.ReplaceAll(s, "+", "%20")
	}
	return unescape(spec, s)
}

// EncodeQuery serializes v into query entries for a query parameter.
//
//	style           explode  array              object
//	form            false    n=v1,v2            n=k1,v1,k2,v2
//	form            true     n=v1&n=v2          k1=v1&k2=v2
//	spaceDelimited  false    n=v1%20v2          n=k1%20v1%20k2%20v2
//	pipeDelimited   false    n=v1|v2            n=k1|v1|k2|v2
//	deepObject      -        -                  n[k1]=v1&n[k2]=v2
//
// Exploded spaceDelimited and pipeDelimited values fall back to form.
func EncodeQuery(spec Spec, v any) ([]Pair, error) {
	if spec.Location != LocationQuery {
		return nil, &SpecError{Name: spec.Name, Reason: fmt.Sprintf("%s parameters are not query entries", spec.Location)}
	}

	esc := queryEscaper(spec)
	name := escape(spec.Name, "", false)

	switch spec.Type {
	case TypeArray:
		xs, err := items(spec, v)
		if err != nil {
			return nil, err
		}
		parts, err := formatAll(spec, xs, esc)
		if err != nil {
			return nil, err
		}
		if spec.Explode {
			pairs := make([]Pair, len(parts))
			for i, p := range parts {
				pairs[i] = Pair{Key: name, Value: p}
			}
			return pairs, nil
		}
		return []Pair{{Key: name, Value: strings.Join(parts, querySep(spec.Style))}}, nil

	case TypeObject:
		obj, err := fields(spec, v)
		if err != nil {
			return nil, err
		}
		keys, vals, err := formatObject(spec, obj, esc)
		if err != nil {
			return nil, err
		}
		if spec.Style == StyleDeepObject {
			pairs := make([]Pair, len(keys))
			for i := range keys {
				pairs[i] = Pair{Key: name + "[" + keys[i] + "]", Value: vals[i]}
			}
			return pairs, nil
		}
		if spec.Explode {
			pairs := make([]Pair, len(keys))
			for i := range keys {
				pairs[i] = Pair{Key: keys[i], Value: vals[i]}
			}
			return pairs, nil
		}
		return []Pair{{Key: name, Value: joinFlat(keys, vals, querySep(spec.Style))}}, nil

	default:
		s, err := formatScalar(spec, v)
		if err != nil {
			return nil, err
		}
		return []Pair{{Key: name, Value: esc(s)}}, nil
	}
}

// DecodeQuery is the inverse of EncodeQuery. pairs must be the entries that
// belong to spec, as returned by ClaimQuery.
func DecodeQuery(spec Spec, pairs []Pair) (any, error) {
	if spec.Location != LocationQuery {
		return nil, &SpecError{Name: spec.Name, Reason: fmt.Sprintf("%s parameters are not query entries", spec.Location)}
	}

	switch spec.Type {
	case TypeArray:
		var parts []string
		if spec.Explode {
			for _, p := range pairs {
				parts = append(parts, p.Value)
			}
		} else {
			p, err := single(spec, pairs)
			if err != nil {
				return nil, err
			}
			parts = splitNonEmpty(p.Value, querySep(spec.Style))
		}
		out := make([]any, 0, len(parts))
		for _, part := range parts {
			text, err := queryUnescape(spec, part)
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

	case TypeObject:
		if spec.Style == StyleDeepObject || spec.Explode {
			obj := make(Object, 0, len(pairs))
			for _, p := range pairs {
				rawKey := p.Key
				if spec.Style == StyleDeepObject {
					inner, ok := deepObjectKey(spec.Name, p.Key)
					if !ok {
						return nil, &DecodeError{Name: spec.Name, Input: p.String(), Reason: fmt.Sprintf("expected %s[<key>]", spec.Name)}
					}
					rawKey = inner
				}
				key, err := queryUnescape(spec, rawKey)
				if err != nil {
					return nil, err
				}
				text, err := queryUnescape(spec, p.Value)
				if err != nil {
					return nil, err
				}
				v, err := parseScalar(spec, text)
				if err != nil {
					return nil, err
				}
				obj = append(obj, Field{Key: key, Value: v})
			}
			return obj, nil
		}

		p, err := single(spec, pairs)
		if err != nil {
			return nil, err
		}
		flat := splitNonEmpty(p.Value, querySep(spec.Style))
		if len(flat)%2 != 0 {
			return nil, &DecodeError{Name: spec.Name, Input: p.String(), Reason: "odd number of key/value items"}
		}
		obj := make(Object, 0, len(flat)/2)
		for i := 0; i < len(flat); i += 2 {
			key, err := queryUnescape(spec, flat[i])
			if err != nil {
				return nil, err
			}
			text, err := queryUnescape(spec, flat[i+1])
			if err != nil {
				return nil, err
			}
			v, err := parseScalar(spec, text)
			if err != nil {
				return nil, err
			}
			obj = append(obj, Field{Key: key, Value: v})
		}
		return obj, nil

	default:
		p, err := single(spec, pairs)
		if err != nil {
			return nil, err
		}
		text, err := queryUnescape(spec, p.Value)
		if err != nil {
			return nil, err
		}
		return parseScalar(spec, text)
	}
}

// single returns the entry of a non-exploded parameter. Repeated keys keep
// the last occurrence.
func single(spec Spec, pairs []Pair) (Pair, error) {
	if len(pairs) == 0 {
		return Pair{}, &DecodeError{Name: spec.Name, Reason: "no query entry"}
	}
	return pairs[len(pairs)-1], nil
}

// deepObjectKey extracts "key" from "name[key]".
func deepObjectKey(name, key string) (string, bool) {
	if !strings.HasPrefix(key, name+"[") || !strings.HasSuffix(key, "]") {
		return "", false
	}
	return key[len(name)+1 : len(key)-1], true
}

// ParseQuery splits a raw query string into entries, keeping order and
// encoding. A leading '?' is ignored.
func ParseQuery(raw string) []Pair {
	raw = strings.TrimPrefix(raw, "?")
	if raw == "" {
		return nil
	}
	var pairs []Pair
	for _, entry := range strings.Split(raw, "&") {
		if entry == "" {
			continue
		}
		k, v, _ := strings.Cut(entry, "=")
		pairs = append(pairs, Pair{Key: k, Value: v})
	}
	return pairs
}

// FormatQuery joins entries into a raw query string without a leading '?'.
func FormatQuery(pairs []Pair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.String()
	}
	return strings.Join(parts, "&")
}

// ClaimQuery routes each entry to the query parameter that owns it: entries
// named after a parameter, name[key] entries of a deepObject parameter, and,
// when one is declared, every remaining entry to the exploded form object.
// Entries nobody owns are dropped.
func ClaimQuery(specs []Spec, pairs []Pair) map[string][]Pair {
	claimed := make(map[string][]Pair)

	byName := make(map[string]Spec)
	deep := make(map[string]bool)
	catchAll := ""
	for _, s := range specs {
		if s.Location != LocationQuery {
			continue
		}
		switch {
		case s.Style == StyleDeepObject:
			deep[s.Name] = true
		case s.Type == TypeObject && s.Explode:
			if catchAll == "" {
				catchAll = s.Name
			}
		default:
			byName[s.Name] = s
		}
	}

	for _, p := range pairs {
		key, err := Unescape(p.Key)
		if err != nil {
			key = p.Key
		}
		if _, ok := byName[key]; ok {
			claimed[key] = append(claimed[key], p)
			continue
		}
		if open := strings.IndexByte(key, '['); open > 0 && strings.HasSuffix(key, "]") && deep[key[:open]] {
			claimed[key[:open]] = append(claimed[key[:open]], p)
			continue
		}
		if catchAll != "" {
			claimed[catchAll] = append(claimed[catchAll], p)
		}
	}
	return claimed
}

// ExplodedFormObjects counts query parameters whose entries are bare object keys.
func ExplodedFormObjects(specs []Spec) int {
	n := 0
	for _, s := range specs {
		if s.Location == LocationQuery && s.Type == TypeObject && s.Explode && s.Style != StyleDeepObject {
			n++
		}
	}
	return n
}
