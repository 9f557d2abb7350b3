package content

import (
	"bytes"
	"context"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// HTML returns a templ.Component that renders b. Inline markup inside block
// text is stripped and the rest escaped.
func HTML(b Body) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		RenderBody(&buf, b)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// RenderBody writes the HTML form of b to buf. Plain text becomes one
// paragraph per blank-line separated chunk.
func RenderBody(buf *bytes.Buffer, b Body) {
	if b.Doc == nil {
		for _, chunk := range strings.Split(strings.ReplaceAll(b.Text, "\r\n", "\n"), "\n\n") {
			if chunk = strings.TrimSpace(chunk); chunk != "" {
				buf.WriteString("<p>" + html.EscapeString(chunk) + "</p>")
			}
		}
		return
	}
	for _, blk := range b.Doc.Blocks {
		v, err := blk.Decode()
		if err != nil {
			continue
		}
		switch v := v.(type) {
		case Paragraph:
			buf.WriteString("<p>" + escapeText(v.Text) + "</p>")
		case Header:
			lvl := v.Level
			if lvl < 1 || lvl > 6 {
				lvl = 2
			}
			tag := "h" + strconv.Itoa(lvl)
			buf.WriteString("<" + tag + ">" + escapeText(v.Text) + "</" + tag + ">")
		case List:
			renderList(buf, v.Style == "ordered", v.Items)
		}
	}
}

func renderList(buf *bytes.Buffer, ordered bool, items []ListItem) {
	tag := "ul"
	if ordered {
		tag = "ol"
	}
	buf.WriteString("<" + tag + ">")
	for _, it := range items {
		buf.WriteString("<li>" + escapeText(it.Content))
		if len(it.Items) > 0 {
			renderList(buf, ordered, it.Items)
		}
		buf.WriteString("</li>")
	}
	buf.WriteString("</" + tag + ">")
}

func escapeText(s string) string {
	return html.EscapeString(strings.Join(strings.Fields(plainText(s)), " "))
}
