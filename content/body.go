package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"
)

// Block types with extractable text.
const (
	BlockParagraph = "paragraph"
	BlockHeader    = "header"
	BlockList      = "list"
)

// WordsPerMinute is the reading speed behind ReadTime.
const WordsPerMinute = 200

// Document is an EditorJS output document.
type Document struct {
	Time    int64   `json:"time,omitempty"`
	Blocks  []Block `json:"blocks"`
	Version string  `json:"version,omitempty"`
}

// Block is one EditorJS block with its data left undecoded until Decode.
type Block struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Variant is the decoded form of a block: Paragraph, Header, List or Other.
type Variant interface {
	texts() []string
}

type Paragraph struct {
	Text string `json:"text"`
}

type Header struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
}

type List struct {
	Style string     `json:"style"`
	Items []ListItem `json:"items"`
}

// Other is any block kind without text to count or render.
type Other struct {
	Type string
}

// ListItem accepts both the flat string items of EditorJS list v1 and the
// nested {content, items} objects of list v2.
type ListItem struct {
	Content string     `json:"content"`
	Items   []ListItem `json:"items,omitempty"`
}

func (li *ListItem) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		li.Items = nil
		return json.Unmarshal(data, &li.Content)
	}
	type plain ListItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*li = ListItem(p)
	return nil
}

func (p Paragraph) texts() []string { return []string{p.Text} }
func (h Header) texts() []string    { return []string{h.Text} }
func (o Other) texts() []string     { return nil }

func (l List) texts() []string {
	var out []string
	var walk func(items []ListItem)
	walk = func(items []ListItem) {
		for _, it := range items {
			out = append(out, it.Content)
			walk(it.Items)
		}
	}
	walk(l.Items)
	return out
}

// Decode returns the typed variant for b.
func (b Block) Decode() (Variant, error) {
	var v Variant
	var err error
	switch b.Type {
	case BlockParagraph:
		var p Paragraph
		err = json.Unmarshal(b.Data, &p)
		v = p
	case BlockHeader:
		var h Header
		err = json.Unmarshal(b.Data, &h)
		v = h
	case BlockList:
		var l List
		err = json.Unmarshal(b.Data, &l)
		v = l
	default:
		return Other{Type: b.Type}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("content: decode %s block: %w", b.Type, err)
	}
	return v, nil
}

// Texts returns the text of every text-bearing block in document order.
// Blocks whose data does not decode are skipped.
func (d Document) Texts() []string {
	var out []string
	for _, b := range d.Blocks {
		v, err := b.Decode()
		if err != nil {
			continue
		}
		out = append(out, v.texts()...)
	}
	return out
}

// Body is post content: either plain text or an EditorJS document.
type Body struct {
	Text string
	Doc  *Document
}

// IsZero reports whether the body carries no content.
func (b Body) IsZero() bool {
	return b.Doc == nil && b.Text == ""
}

func (b Body) MarshalJSON() ([]byte, error) {
	if b.Doc != nil {
		return json.Marshal(b.Doc)
	}
	return json.Marshal(b.Text)
}

func (b *Body) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*b = Body{}
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		return json.Unmarshal(data, &b.Text)
	default:
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return &ValidationError{Field: "content", Reason: err.Error()}
		}
		b.Doc = &doc
		return nil
	}
}

var reTag = regexp.MustCompile(`<[^>]*>`)

// plainText drops inline markup EditorJS keeps in block text.
func plainText(s string) string {
	return html.UnescapeString(reTag.ReplaceAllString(s, " "))
}

// WordCount counts whitespace-delimited words in b.
func WordCount(b Body) int {
	if b.Doc == nil {
		return len(strings.Fields(b.Text))
	}
	n := 0
	for _, t := range b.Doc.Texts() {
		n += len(strings.Fields(plainText(t)))
	}
	return n
}

// ReadTime formats the reading time of b, rounded up to whole minutes.
func ReadTime(b Body) string {
	words := WordCount(b)
	return fmt.Sprintf("%d min read", (words+WordsPerMinute-1)/WordsPerMinute)
}
