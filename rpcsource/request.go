package rpcsource

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Source labels for requests that were not read from a file.
const (
	SourceLiteral = "<literal>"
	SourceStdin   = "<stdin>"
)

// EnvelopeName is the local name of the element wrapping an operation in a NETCONF rpc message.
const EnvelopeName = "rpc"

// Request is a parsed RPC document, ready to be dispatched.
type Request struct {
	// Source is the file path the request was read from, or one of SourceLiteral and SourceStdin.
	Source string
	// RootName is the name of the document element.
	RootName xml.Name
	// Operation is the name of the operation element: the envelope child for an enveloped document,
	// otherwise the document element.
	Operation xml.Name
	// OperationXML is the text of the operation element, used as the rpc body.
	OperationXML string
}

// Enveloped reports whether the document was wrapped in an rpc element.
func (r *Request) Enveloped() bool {
	return r.RootName.Local == EnvelopeName
}

// parse builds a request from the document text in data.
func parse(source string, data []byte) (*Request, error) {
	if err := checkWellFormed(data); err != nil {
		return nil, &MalformedXMLError{Source: source, Err: err}
	}

	doc, err := scan(data)
	if err != nil {
		return nil, &MalformedXMLError{Source: source, Err: err}
	}

	req := &Request{Source: source, RootName: doc.root.name(nil)}
	if !req.Enveloped() {
		req.Operation = req.RootName
		req.OperationXML = string(data[doc.root.start:doc.root.end])
		return req, nil
	}

	if doc.child == nil {
		return nil, &MalformedXMLError{Source: source, Err: errors.New("rpc envelope has no operation element")}
	}
	req.Operation = doc.child.name(doc.root)
	req.OperationXML = doc.child.text(data, doc.root)
	return req, nil
}

// checkWellFormed verifies that data holds exactly one element, with nothing but markup and
// whitespace around it.
func checkWellFormed(data []byte) error {
	d := xml.NewDecoder(bytes.NewReader(data))
	depth, roots := 0, 0
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					return errors.Errorf("unexpected element <%s> after the document element", t.Name.Local)
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return errors.New("unexpected text outside the document element")
			}
		}
	}
	if roots == 0 {
		return errors.New("no document element")
	}
	return nil
}

// element records the raw position and namespace declarations of an element.
type element struct {
	start, end int64
	raw        xml.Name // prefix in Space
	decls      []xml.Attr
}

type document struct {
	root  *element
	child *element
}

// scan locates the document element and, for an envelope, its first child element.
// Raw tokens are used so that offsets and prefixes match the source text.
func scan(data []byte) (*document, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	doc := &document{}
	depth := 0
	for {
		offset := d.InputOffset()
		tok, err := d.RawToken()
		if err == io.EOF {
			return doc, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case depth == 1:
				doc.root = newElement(t, offset)
			case depth == 2 && doc.child == nil && doc.root.raw.Local == EnvelopeName:
				doc.child = newElement(t, offset)
			}
		case xml.EndElement:
			if depth == 2 && doc.child != nil && doc.child.end == 0 {
				doc.child.end = d.InputOffset()
			}
			depth--
			if depth == 0 && doc.root.end == 0 {
				doc.root.end = d.InputOffset()
			}
		}
	}
}

func newElement(t xml.StartElement, offset int64) *element {
	e := &element{start: offset, raw: t.Name}
	for _, a := range t.Attr {
		if isDecl(a) {
			e.decls = append(e.decls, a)
		}
	}
	return e
}

func isDecl(a xml.Attr) bool {
	return a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns")
}

// declPrefix delivers the prefix bound by a namespace declaration, "" for the default namespace.
func declPrefix(a xml.Attr) string {
	if a.Name.Space == "xmlns" {
		return a.Name.Local
	}
	return ""
}

func (e *element) lookup(prefix string) (string, bool) {
	for _, a := range e.decls {
		if declPrefix(a) == prefix {
			return a.Value, true
		}
	}
	return "", false
}

// name resolves the element's namespace against its own declarations, then the parent's.
func (e *element) name(parent *element) xml.Name {
	ns, ok := e.lookup(e.raw.Space)
	if !ok && parent != nil {
		ns, _ = parent.lookup(e.raw.Space)
	}
	return xml.Name{Space: ns, Local: e.raw.Local}
}

func (e *element) qname() string {
	if e.raw.Space == "" {
		return e.raw.Local
	}
	return e.raw.Space + ":" + e.raw.Local
}

// text delivers the source text of the element, carrying over the parent's namespace declarations
// that the element does not redeclare.
func (e *element) text(data []byte, parent *element) string {
	var inherited strings.Builder
	for _, a := range parent.decls {
		if _, ok := e.lookup(declPrefix(a)); ok {
			continue
		}
		inherited.WriteString(" xmlns")
		if p := declPrefix(a); p != "" {
			inherited.WriteString(":" + p)
		}
		inherited.WriteString(`="`)
		_ = xml.EscapeText(&inherited, []byte(a.Value))
		inherited.WriteString(`"`)
	}

	raw := string(data[e.start:e.end])
	if inherited.Len() == 0 {
		return raw
	}
	at := 1 + len(e.qname())
	return raw[:at] + inherited.String() + raw[at:]
}
