package marshall

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

type applyOptions struct {
	sanitizeHTML bool
}

// ApplyOption adjusts how ApplyValues stores values.
type ApplyOption func(*applyOptions)

// SanitizeHTML cleans text/html Text values with a UGC policy before they
// are assigned.
func SanitizeHTML(enabled bool) ApplyOption {
	return func(o *applyOptions) {
		o.sanitizeHTML = enabled
	}
}

// ApplyValues coerces loosely typed values, as decoded from JSON or YAML,
// to each field's kind and assigns them to item. Nothing is assigned when
// any value is rejected.
func ApplyValues(item *Item, values map[string]any, opts ...ApplyOption) error {
	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}

	coerced := make(map[string]any, len(values))
	for name, raw := range values {
		field, ok := item.Schema().Field(name)
		if !ok {
			return fmt.Errorf("%w: %s has no field %q", ErrUnknownField, item.TypeName, name)
		}
		v, err := CoerceValue(field, raw)
		if err != nil {
			return &FieldError{Field: name, Op: "coerce", Err: err}
		}
		if s, ok := v.(string); ok && o.sanitizeHTML && isHTMLText(field, field.ContentType) {
			v = htmlSanitizer().Sanitize(s)
		}
		coerced[name] = v
	}
	for name, v := range coerced {
		if err := item.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

// CoerceValue converts raw to the Go type marshalers expect for field.
// A nil raw value yields the kind's empty value.
func CoerceValue(field FieldDescriptor, raw any) (any, error) {
	switch field.Kind {
	case KindText, KindString, KindReference:
		if raw == nil {
			return "", nil
		}
		switch v := raw.(type) {
		case string:
			return v, nil
		case fmt.Stringer:
			return v.String(), nil
		}
		return nil, invalidValue(field, raw)

	case KindBoolean:
		switch v := raw.(type) {
		case nil:
			return false, nil
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "1", "yes", "on":
				return true, nil
			case "false", "0", "no", "off", "":
				return false, nil
			}
		}
		return nil, invalidValue(field, raw)

	case KindDateTime:
		switch v := raw.(type) {
		case nil:
			return time.Time{}, nil
		case time.Time:
			return v.UTC(), nil
		case string:
			if strings.TrimSpace(v) == "" {
				return time.Time{}, nil
			}
			t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
			}
			return t.UTC(), nil
		}
		return nil, invalidValue(field, raw)

	case KindList:
		switch v := raw.(type) {
		case nil:
			return []string{}, nil
		case []string:
			return append([]string(nil), v...), nil
		case string:
			return []string{v}, nil
		case []any:
			out := make([]string, 0, len(v))
			for _, e := range v {
				s, ok := e.(string)
				if !ok {
					return nil, invalidValue(field, e)
				}
				out = append(out, s)
			}
			return out, nil
		}
		return nil, invalidValue(field, raw)

	case KindFile, KindImage:
		switch v := raw.(type) {
		case nil:
			return Blob{}, nil
		case Blob:
			return v, nil
		case *Blob:
			return *v, nil
		case []byte:
			return Blob{Data: v, ContentType: field.ContentType}, nil
		case map[string]any:
			return blobFromMap(field, v)
		}
		return nil, invalidValue(field, raw)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFieldKind, field.Kind)
}

func blobFromMap(field FieldDescriptor, m map[string]any) (Blob, error) {
	b := Blob{ContentType: field.ContentType}
	for key, raw := range m {
		s, ok := raw.(string)
		if !ok {
			return Blob{}, fmt.Errorf("%w: blob key %q must be a string", ErrInvalidValue, key)
		}
		switch key {
		case "data":
			data, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return Blob{}, fmt.Errorf("%w: blob data: %v", ErrInvalidValue, err)
			}
			b.Data = data
		case "text":
			b.Data = []byte(s)
		case "content_type":
			b.ContentType = s
		case "filename":
			b.Filename = s
		default:
			return Blob{}, fmt.Errorf("%w: unknown blob key %q", ErrInvalidValue, key)
		}
	}
	return b, nil
}
