// Package schema loads content-type definitions from YAML.
//
// A catalog file lists content types and their fields in declaration
// order:
//
//	types:
//	  - name: News Item
//	    dublin_core: true
//	    workflow: true
//	    fields:
//	      - name: text
//	        kind: text
//	        content_type: text/html
//	      - name: image
//	        kind: image
//
// A field namespace may be given as a registered prefix ("dc") or a full
// URI; omitted, the field belongs to the registry's default namespace.
package schema

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/tendant/simple-marshall/pkg/marshall"
	"github.com/tendant/simple-marshall/pkg/marshall/namespaces"
	"gopkg.in/yaml.v3"
)

type fileDoc struct {
	Types []typeDoc `yaml:"types"`
}

type typeDoc struct {
	Name       string     `yaml:"name"`
	DublinCore bool       `yaml:"dublin_core"`
	Workflow   bool       `yaml:"workflow"`
	Fields     []fieldDoc `yaml:"fields"`
}

type fieldDoc struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"`
	Namespace   string `yaml:"namespace"`
	ContentType string `yaml:"content_type"`
}

// Catalog maps content type names to their schemas.
type Catalog struct {
	types map[string]marshall.Schema
	names []string
}

// NewCatalog creates a catalog from already built schemas.
func NewCatalog(types map[string]marshall.Schema) *Catalog {
	c := &Catalog{types: make(map[string]marshall.Schema, len(types))}
	for name, s := range types {
		c.types[name] = s
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string, registry *marshall.Registry) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema file: %w", err)
	}
	defer f.Close()
	return Load(f, registry)
}

// Load reads a catalog from YAML. Namespace prefixes are resolved through
// registry.
func Load(r io.Reader, registry *marshall.Registry) (*Catalog, error) {
	var doc fileDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	c := &Catalog{types: make(map[string]marshall.Schema)}
	for _, t := range doc.Types {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("content type name is required")
		}
		if _, exists := c.types[name]; exists {
			return nil, fmt.Errorf("content type %q declared twice", name)
		}
		s, err := buildSchema(t, registry)
		if err != nil {
			return nil, fmt.Errorf("content type %q: %w", name, err)
		}
		c.types[name] = s
		c.names = append(c.names, name)
	}
	return c, nil
}

func buildSchema(t typeDoc, registry *marshall.Registry) (marshall.Schema, error) {
	var fields []marshall.FieldDescriptor
	if t.DublinCore {
		fields = append(fields, namespaces.DublinCoreFields()...)
	}
	for _, fd := range t.Fields {
		kind, err := marshall.ParseFieldKind(fd.Kind)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fd.Name, err)
		}
		ns, err := resolveNamespace(fd.Namespace, registry)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fd.Name, err)
		}
		fields = append(fields, marshall.FieldDescriptor{
			Name:        strings.TrimSpace(fd.Name),
			Kind:        kind,
			Namespace:   ns,
			ContentType: fd.ContentType,
		})
	}
	if t.Workflow {
		fields = append(fields, namespaces.WorkflowFields()...)
	}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("field name is required")
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("field %q declared twice", f.Name)
		}
		seen[f.Name] = true
	}
	return marshall.NewSchema(fields...), nil
}

func resolveNamespace(ns string, registry *marshall.Registry) (string, error) {
	ns = strings.TrimSpace(ns)
	if ns == "" {
		return "", nil
	}
	if strings.Contains(ns, ":") {
		return ns, nil
	}
	if registry != nil {
		if uri, ok := registry.URIForPrefix(ns); ok {
			return uri, nil
		}
	}
	return "", fmt.Errorf("%w: prefix %q", marshall.ErrNamespaceNotFound, ns)
}

// Get returns the schema of a content type.
func (c *Catalog) Get(name string) (marshall.Schema, error) {
	s, ok := c.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", marshall.ErrTypeNotFound, name)
	}
	return s, nil
}

// Names lists the content types in declaration order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}
