package router

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Separator splits a route into segments.
const Separator = "."

type segment struct {
	literal  string
	variable string
}

// template is a compiled route like "user.{id}".
type template struct {
	raw      string
	segments []segment
	literals int
	seq      int
}

func compile(route string) (*template, error) {
	if route == "" {
		return nil, errors.New("route is empty")
	}
	t := &template{raw: route}
	seen := make(map[string]struct{})
	for _, it := range strings.Split(route, Separator) {
		if it == "" {
			return nil, errors.Errorf("route %q has an empty segment", route)
		}
		if !strings.HasPrefix(it, "{") {
			if strings.ContainsAny(it, "{}") {
				return nil, errors.Errorf("route %q has a malformed segment %q", route, it)
			}
			t.segments = append(t.segments, segment{literal: it})
			t.literals++
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(it, "{"), "}")
		if len(name)+2 != len(it) || name == "" || strings.ContainsAny(name, "{}") {
			return nil, errors.Errorf("route %q has a malformed variable %q", route, it)
		}
		if _, ok := seen[name]; ok {
			return nil, errors.Errorf("route %q declares variable %q twice", route, name)
		}
		seen[name] = struct{}{}
		t.segments = append(t.segments, segment{variable: name})
	}
	return t, nil
}

func (t *template) static() bool {
	return t.literals == len(t.segments)
}

// match returns the variables of route, ok is false if route does not match.
func (t *template) match(parts []string) (vars map[string]string, ok bool) {
	if len(parts) != len(t.segments) {
		return nil, false
	}
	for i, seg := range t.segments {
		if seg.variable == "" {
			if seg.literal != parts[i] {
				return nil, false
			}
			continue
		}
		if vars == nil {
			vars = make(map[string]string, len(t.segments)-t.literals)
		}
		vars[seg.variable] = parts[i]
	}
	return vars, true
}

// Expand fills the variables of a route template with values in order.
func Expand(route string, values ...interface{}) (string, error) {
	t, err := compile(route)
	if err != nil {
		return "", err
	}
	if want := len(t.segments) - t.literals; want != len(values) {
		return "", errors.Errorf("route %q needs %d variables, got %d", route, want, len(values))
	}
	var (
		sb strings.Builder
		i  int
	)
	for n, seg := range t.segments {
		if n > 0 {
			sb.WriteString(Separator)
		}
		if seg.variable == "" {
			sb.WriteString(seg.literal)
			continue
		}
		v := toString(values[i])
		i++
		if v == "" || strings.Contains(v, Separator) {
			return "", errors.Errorf("invalid value %q of variable %q", v, seg.variable)
		}
		sb.WriteString(v)
	}
	return sb.String(), nil
}

func toString(v interface{}) string {
	switch it := v.(type) {
	case string:
		return it
	case fmt.Stringer:
		return it.String()
	default:
		return fmt.Sprint(it)
	}
}
