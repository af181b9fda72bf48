package render

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/damianoneill/ncdispatch/netconf/common"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Renderer writes rpc replies as XML text.
type Renderer struct {
	// Pretty re-indents the reply.
	Pretty bool
	// Indent is the per-level indentation used when Pretty is set; two spaces if empty.
	Indent string
}

// Render writes the reply, followed by a newline, with a single Write to w.
func (r *Renderer) Render(w io.Writer, reply *common.RPCReply) error {
	if reply == nil {
		return errors.New("no reply to render")
	}

	text := reply.RawReply
	if text == "" {
		text = rebuild(reply)
	}
	if r.Pretty {
		indented, err := r.indent(text)
		if err != nil {
			log.Warnf("Failed to indent reply message-id:%s err:%v", reply.MessageID, err)
		} else {
			text = indented
		}
	}

	_, err := w.Write([]byte(text + "\n"))
	return errors.Wrap(err, "write reply")
}

// rebuild delivers the reply text for a reply that was not read from the wire.
func rebuild(reply *common.RPCReply) string {
	start := xml.StartElement{Name: xml.Name{Space: common.NetconfNS, Local: common.NameRPCReply.Local}}
	start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: common.NetconfNS})
	if reply.MessageID != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "message-id"}, Value: reply.MessageID})
	}
	return common.BuildRawReply(start, reply.Data)
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// indent lays the document out one element per line. Elements holding only text stay on one line and
// whitespace between elements is dropped. Raw tokens keep the prefixes of the source.
func (r *Renderer) indent(text string) (string, error) {
	toks, err := rawTokens(text)
	if err != nil {
		return "", err
	}

	unit := r.Indent
	if unit == "" {
		unit = "  "
	}

	var b strings.Builder
	depth := 0
	newline := func() {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.Repeat(unit, depth))
	}

	for i := 0; i < len(toks); i++ {
		switch t := toks[i].(type) {
		case xml.StartElement:
			newline()
			writeStart(&b, t)
			if next(toks, i+1, isEnd) {
				b.WriteString("/>")
				i++
				continue
			}
			if next(toks, i+1, isText) && next(toks, i+2, isEnd) {
				b.WriteString(">")
				b.WriteString(textEscaper.Replace(string(toks[i+1].(xml.CharData))))
				b.WriteString("</" + qname(t.Name) + ">")
				i += 2
				continue
			}
			b.WriteString(">")
			depth++
		case xml.EndElement:
			depth--
			newline()
			b.WriteString("</" + qname(t.Name) + ">")
		case xml.CharData:
			newline()
			b.WriteString(textEscaper.Replace(string(t)))
		case xml.Comment:
			newline()
			b.WriteString("<!--" + string(t) + "-->")
		case xml.ProcInst:
			newline()
			b.WriteString("<?" + t.Target + " " + string(t.Inst) + "?>")
		case xml.Directive:
			newline()
			b.WriteString("<!" + string(t) + ">")
		}
	}
	return b.String(), nil
}

func rawTokens(text string) ([]xml.Token, error) {
	d := xml.NewDecoder(strings.NewReader(text))
	var toks []xml.Token
	// RawToken does not match end elements to start elements.
	var open []xml.Name
	for {
		tok, err := d.RawToken()
		if err == io.EOF {
			if len(open) > 0 {
				return nil, errors.Errorf("element <%s> not closed", qname(open[len(open)-1]))
			}
			return toks, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			open = append(open, t.Name)
		case xml.EndElement:
			if len(open) == 0 || open[len(open)-1] != t.Name {
				return nil, errors.Errorf("unexpected end element </%s>", qname(t.Name))
			}
			open = open[:len(open)-1]
		case xml.CharData:
			trimmed := bytes.TrimSpace(t)
			if len(trimmed) == 0 {
				continue
			}
			tok = xml.CharData(trimmed)
		}
		toks = append(toks, xml.CopyToken(tok))
	}
}

func next(toks []xml.Token, i int, match func(xml.Token) bool) bool {
	return i < len(toks) && match(toks[i])
}

func isEnd(tok xml.Token) bool {
	_, ok := tok.(xml.EndElement)
	return ok
}

func isText(tok xml.Token) bool {
	_, ok := tok.(xml.CharData)
	return ok
}

func writeStart(b *strings.Builder, t xml.StartElement) {
	b.WriteString("<" + qname(t.Name))
	for _, a := range t.Attr {
		b.WriteString(" " + qname(a.Name) + `="` + attrEscaper.Replace(a.Value) + `"`)
	}
}

// qname delivers prefix:local for a raw name, which holds the prefix in Space.
func qname(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
