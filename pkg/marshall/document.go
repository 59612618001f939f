package marshall

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// RootElement is the local name of a marshaled document's root.
const RootElement = "metadata"

// Element is one node of a marshaled document. An element carries either
// Text or Children, never both.
type Element struct {
	Name     QualifiedTag
	Attrs    []xml.Attr
	Text     string
	Children []*Element
}

// Attr returns the value of the unqualified attribute name.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets an unqualified attribute, replacing an existing value.
func (e *Element) SetAttr(name, value string) {
	for i, a := range e.Attrs {
		if a.Name.Space == "" && a.Name.Local == name {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

// NamespaceDecl is a prefix declaration written on the document root.
type NamespaceDecl struct {
	Prefix string
	URI    string
}

// Document is the in-memory form of a marshaled content object. It is
// created per call and never cached.
type Document struct {
	Root       string
	Attrs      []xml.Attr
	Namespaces []NamespaceDecl
	Elements   []*Element
}

// Encode writes the document as XML. Element names are rendered through
// resolver; elements whose namespace has no registered prefix carry their
// own xmlns attribute so they stay qualified.
func (d *Document) Encode(w io.Writer, resolver *TagResolver) error {
	if resolver == nil {
		resolver = NewTagResolver(nil)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	root := d.Root
	if root == "" {
		root = RootElement
	}
	start := xml.StartElement{Name: xml.Name{Local: root}}
	for _, decl := range d.declarations(resolver) {
		start.Attr = append(start.Attr, xml.Attr{
			Name:  xml.Name{Local: "xmlns:" + decl.Prefix},
			Value: decl.URI,
		})
	}
	start.Attr = append(start.Attr, d.Attrs...)

	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, el := range d.Elements {
		if err := encodeElement(enc, resolver, el); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return err
	}
	return enc.Flush()
}

// Bytes encodes the document into a byte slice.
func (d *Document) Bytes(resolver *TagResolver) ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Encode(&buf, resolver); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// declarations lists the root prefix declarations: the document's own
// Namespaces first, then any further resolvable namespace used by an
// element, in document order.
func (d *Document) declarations(resolver *TagResolver) []NamespaceDecl {
	seen := make(map[string]bool)
	var decls []NamespaceDecl
	for _, decl := range d.Namespaces {
		if decl.Prefix == "" || seen[decl.URI] {
			continue
		}
		seen[decl.URI] = true
		decls = append(decls, decl)
	}

	var walk func(els []*Element)
	walk = func(els []*Element) {
		for _, el := range els {
			uri := el.Name.Namespace
			if uri != "" && !seen[uri] {
				if name := resolver.ToPrefixed(el.Name.Local, uri); name != el.Name.Local {
					seen[uri] = true
					decls = append(decls, NamespaceDecl{
						Prefix: strings.TrimSuffix(name, ":"+el.Name.Local),
						URI:    uri,
					})
				}
			}
			walk(el.Children)
		}
	}
	walk(d.Elements)
	return decls
}

func encodeElement(enc *xml.Encoder, resolver *TagResolver, el *Element) error {
	name := el.Name.Local
	var attrs []xml.Attr
	if el.Name.Namespace != "" {
		name = resolver.ToPrefixed(el.Name.Local, el.Name.Namespace)
		if name == el.Name.Local {
			attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: el.Name.Namespace})
		}
	}
	start := xml.StartElement{
		Name: xml.Name{Local: name},
		Attr: append(attrs, el.Attrs...),
	}

	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if len(el.Children) > 0 {
		for _, child := range el.Children {
			if err := encodeElement(enc, resolver, child); err != nil {
				return err
			}
		}
	} else if el.Text != "" {
		if err := enc.EncodeToken(xml.CharData(el.Text)); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// ParseDocument reads a marshaled document. Element names come back fully
// qualified, with prefixes already resolved to namespace URIs.
func ParseDocument(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)

	var root *xml.StartElement
	for root == nil {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: document has no root element", ErrMalformedFragment)
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformedFragment, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			root = &se
		}
	}

	doc := &Document{Root: root.Name.Local}
	for _, a := range root.Attr {
		if isNamespaceAttr(a) {
			if a.Name.Space == "xmlns" {
				doc.Namespaces = append(doc.Namespaces, NamespaceDecl{Prefix: a.Name.Local, URI: a.Value})
			}
			continue
		}
		doc.Attrs = append(doc.Attrs, a)
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFragment, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el, err := parseElement(dec, t)
			if err != nil {
				return nil, err
			}
			doc.Elements = append(doc.Elements, el)
		case xml.EndElement:
			return doc, nil
		}
	}
}

func parseElement(dec *xml.Decoder, start xml.StartElement) (*Element, error) {
	el := &Element{Name: QualifiedTag{Local: start.Name.Local, Namespace: start.Name.Space}}
	for _, a := range start.Attr {
		if isNamespaceAttr(a) {
			continue
		}
		el.Attrs = append(el.Attrs, a)
	}

	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFragment, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := parseElement(dec, t)
			if err != nil {
				return nil, err
			}
			el.Children = append(el.Children, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if len(el.Children) == 0 {
				el.Text = text.String()
			} else if strings.TrimSpace(text.String()) != "" {
				return nil, fmt.Errorf("%w: element %s mixes text and nested elements", ErrMalformedFragment, el.Name)
			}
			return el, nil
		}
	}
}

func isNamespaceAttr(a xml.Attr) bool {
	return a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns")
}
