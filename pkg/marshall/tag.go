package marshall

import (
	"fmt"
	"strings"
)

// QualifiedTag is an element name paired with its namespace URI.
type QualifiedTag struct {
	Local     string
	Namespace string
}

// String renders the tag in {uri}local form, or just local when the tag
// has no namespace.
func (q QualifiedTag) String() string {
	if q.Namespace == "" {
		return q.Local
	}
	return "{" + q.Namespace + "}" + q.Local
}

// SplitTag parses a decorated tag of the form {uri}local.
func SplitTag(s string) (QualifiedTag, error) {
	if !strings.HasPrefix(s, "{") {
		return QualifiedTag{}, fmt.Errorf("%w: %q has no leading '{'", ErrMalformedTag, s)
	}
	end := strings.IndexByte(s, '}')
	if end < 0 {
		return QualifiedTag{}, fmt.Errorf("%w: %q has no closing '}'", ErrMalformedTag, s)
	}
	uri, local := s[1:end], s[end+1:]
	if uri == "" || local == "" {
		return QualifiedTag{}, fmt.Errorf("%w: %q", ErrMalformedTag, s)
	}
	return QualifiedTag{Local: local, Namespace: uri}, nil
}

// TagResolver turns qualified tags into the prefixed names written to
// documents, using the prefixes bound in a Registry.
type TagResolver struct {
	registry *Registry
}

// NewTagResolver creates a resolver backed by registry.
func NewTagResolver(registry *Registry) *TagResolver {
	return &TagResolver{registry: registry}
}

// Split splits a {uri}local tag into local name and namespace URI.
func (r *TagResolver) Split(qualified string) (string, string, error) {
	tag, err := SplitTag(qualified)
	if err != nil {
		return "", "", err
	}
	return tag.Local, tag.Namespace, nil
}

// ToPrefixed returns prefix:local for a registered namespace and local
// unchanged for an unknown or empty one.
func (r *TagResolver) ToPrefixed(local, uri string) string {
	if uri == "" || r.registry == nil {
		return local
	}
	prefix, err := r.registry.Resolve(uri)
	if err != nil || prefix == "" {
		return local
	}
	return prefix + ":" + local
}
