package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(w, " ")
}

func blockJSON(t *testing.T, typ string, data any) Block {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal block data: %v", err)
	}
	return Block{Type: typ, Data: raw}
}

func TestReadTimeBoundary(t *testing.T) {
	tests := []struct {
		words int
		want  string
	}{
		{200, "1 min read"},
		{201, "2 min read"},
		{1, "1 min read"},
		{400, "2 min read"},
		{0, "0 min read"},
	}
	for _, tt := range tests {
		got := ReadTime(Body{Text: words(tt.words)})
		if tt.words == 0 {
			got = ReadTime(Body{})
		}
		if got != tt.want {
			t.Errorf("ReadTime(%d words) = %q, want %q", tt.words, got, tt.want)
		}
	}
}

func TestReadTimeAcrossBlocks(t *testing.T) {
	doc := &Document{Blocks: []Block{
		blockJSON(t, BlockHeader, map[string]any{"text": words(10), "level": 2}),
		blockJSON(t, BlockParagraph, map[string]any{"text": words(150)}),
		blockJSON(t, "image", map[string]any{"url": "/public/uploads/a.jpg", "caption": words(500)}),
		blockJSON(t, BlockList, map[string]any{"style": "unordered", "items": []string{words(20), words(20)}}),
	}}
	if got := WordCount(Body{Doc: doc}); got != 200 {
		t.Fatalf("WordCount = %d, want 200", got)
	}
	if got := ReadTime(Body{Doc: doc}); got != "1 min read" {
		t.Errorf("ReadTime = %q, want 1 min read", got)
	}

	doc.Blocks = append(doc.Blocks, blockJSON(t, BlockParagraph, map[string]any{"text": "one"}))
	if got := ReadTime(Body{Doc: doc}); got != "2 min read" {
		t.Errorf("ReadTime = %q, want 2 min read", got)
	}
}

func TestWordCountNestedListAndMarkup(t *testing.T) {
	raw := `{"blocks":[
		{"type":"paragraph","data":{"text":"<b>bold</b> and <a href=\"https://x.dev\">a link</a>&nbsp;here"}},
		{"type":"list","data":{"style":"ordered","items":[
			{"content":"first item","items":[{"content":"nested one","items":[]}]},
			{"content":"second","items":[]}
		]}}
	]}`
	var b Body
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if b.Doc == nil {
		t.Fatal("expected a document body")
	}
	// bold and a link here | first item | nested one | second
	if got := WordCount(b); got != 10 {
		t.Errorf("WordCount = %d, want 10", got)
	}
}

func TestWordCountSkipsUndecodableBlock(t *testing.T) {
	doc := &Document{Blocks: []Block{
		{Type: BlockParagraph, Data: json.RawMessage(`{"text": 42}`)},
		blockJSON(t, BlockParagraph, map[string]any{"text": "two words"}),
	}}
	if got := WordCount(Body{Doc: doc}); got != 2 {
		t.Errorf("WordCount = %d, want 2", got)
	}
}

func TestBodyJSON(t *testing.T) {
	var plain Body
	if err := json.Unmarshal([]byte(`"just text"`), &plain); err != nil {
		t.Fatalf("unmarshal plain: %v", err)
	}
	if plain.Doc != nil || plain.Text != "just text" {
		t.Errorf("plain body = %+v", plain)
	}
	out, err := json.Marshal(plain)
	if err != nil || string(out) != `"just text"` {
		t.Errorf("marshal plain = %s, %v", out, err)
	}

	var empty Body
	if err := json.Unmarshal([]byte(`null`), &empty); err != nil || !empty.IsZero() {
		t.Errorf("null body = %+v, %v", empty, err)
	}

	var bad Body
	if err := json.Unmarshal([]byte(`[1,2]`), &bad); !IsValidation(err) {
		t.Errorf("array body should fail validation, got %v", err)
	}
}

func TestBlockDecode(t *testing.T) {
	v, err := blockJSON(t, BlockHeader, map[string]any{"text": "Title", "level": 3}).Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	h, ok := v.(Header)
	if !ok || h.Level != 3 || h.Text != "Title" {
		t.Errorf("Decode header = %#v", v)
	}

	v, err = Block{Type: "delimiter", Data: json.RawMessage(`{}`)}.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if o, ok := v.(Other); !ok || o.Type != "delimiter" {
		t.Errorf("Decode delimiter = %#v, want Other", v)
	}
}

func TestRenderBody(t *testing.T) {
	doc := &Document{Blocks: []Block{
		blockJSON(t, BlockHeader, map[string]any{"text": "Intro", "level": 9}),
		blockJSON(t, BlockParagraph, map[string]any{"text": "Hello <script>alert(1)</script> & bye"}),
		blockJSON(t, BlockList, map[string]any{"style": "ordered", "items": []map[string]any{
			{"content": "a", "items": []map[string]any{{"content": "a.1"}}},
		}}),
	}}
	var buf bytes.Buffer
	RenderBody(&buf, Body{Doc: doc})
	got := buf.String()
	for _, want := range []string{
		"<h2>Intro</h2>",
		"<p>Hello alert(1) &amp; bye</p>",
		"<ol><li>a<ol><li>a.1</li></ol></li></ol>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderBody missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("RenderBody leaked markup: %q", got)
	}
}

func TestRenderPlainBody(t *testing.T) {
	var buf bytes.Buffer
	RenderBody(&buf, Body{Text: "first <para>\n\nsecond"})
	if got := buf.String(); got != "<p>first &lt;para&gt;</p><p>second</p>" {
		t.Errorf("RenderBody plain = %q", got)
	}
}
