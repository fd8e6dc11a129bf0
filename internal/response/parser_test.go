package response

import (
	"errors"
	"slices"
	"strings"
	"testing"

	rterrors "github.com/Iron-Ham/roundtable/internal/errors"
	"github.com/Iron-Ham/roundtable/internal/workspace"
)

type pair struct {
	path    string
	content string
}

func collect(text string) []pair {
	var got []pair
	for path, content := range Files(text) {
		got = append(got, pair{path, content})
	}
	return got
}

func TestFiles(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []pair
	}{
		{
			name: "plain marker",
			text: "Here you go.\n\nFile: src/main.go\n```go\npackage main\n\nfunc main() {}\n```\n",
			want: []pair{{"src/main.go", "package main\n\nfunc main() {}\n"}},
		},
		{
			name: "comment and bold markers",
			text: "// File: a.txt\n```\nA\n```\n**File:** `b/c.md`\n```markdown\n# C\n```\n# File: d.py\n```python\nprint(1)\n```\n",
			want: []pair{{"a.txt", "A\n"}, {"b/c.md", "# C\n"}, {"d.py", "print(1)\n"}},
		},
		{
			name: "heading and backticked path",
			text: "### `web/index.html`\n```html\n<p>hi</p>\n```\n",
			want: []pair{{"web/index.html", "<p>hi</p>\n"}},
		},
		{
			name: "bare filename",
			text: "main.go\n```go\npackage main\n```\n",
			want: []pair{{"main.go", "package main\n"}},
		},
		{
			name: "bold bare path with colon",
			text: "**cmd/tool/main.go**:\n```go\npackage main\n```\n",
			want: []pair{{"cmd/tool/main.go", "package main\n"}},
		},
		{
			name: "bare word is not a path",
			text: "Output\n```\nhello\n```\nExample:\n```\nworld\n```\n",
			want: nil,
		},
		{
			name: "blank lines between marker and fence",
			text: "File: notes.txt\n\n\n```\nremember\n```",
			want: []pair{{"notes.txt", "remember\n"}},
		},
		{
			name: "tilde fence with nested backticks",
			text: "File: README.md\n~~~markdown\nUsage:\n```sh\nmake\n```\n~~~\n",
			want: []pair{{"README.md", "Usage:\n```sh\nmake\n```\n"}},
		},
		{
			name: "longer closing fence",
			text: "File: x.go\n```go\npackage x\n`````\n",
			want: []pair{{"x.go", "package x\n"}},
		},
		{
			name: "closing fence with trailing text does not close",
			text: "File: x.go\n```go\n``` not a close\n```\n",
			want: []pair{{"x.go", "``` not a close\n"}},
		},
		{
			name: "empty block",
			text: "File: empty.txt\n```\n```\n",
			want: []pair{{"empty.txt", ""}},
		},
		{
			name: "crlf line endings",
			text: "File: win.txt\r\n```\r\nline\r\n```\r\n",
			want: []pair{{"win.txt", "line\n"}},
		},
		{
			name: "trailing annotation dropped",
			text: "File: package.json (root)\n```json\n{}\n```\n",
			want: []pair{{"package.json", "{}\n"}},
		},
		{
			name: "marker separated by prose is ignored",
			text: "File: a.go\nSome explanation first.\n```go\npackage a\n```\n",
			want: nil,
		},
		{
			name: "fence without marker is skipped",
			text: "Example:\n```\nFile: inner.go\n```\nnothing else\n```\nstill inside?\n```\n",
			want: nil,
		},
		{
			name: "truncated fence is discarded",
			text: "File: ok.txt\n```\nfine\n```\nFile: cut.txt\n```\npartial content",
			want: []pair{{"ok.txt", "fine\n"}},
		},
		{
			name: "rejected paths are dropped",
			text: "File: ../escape.sh\n```\nrm -rf /\n```\nFile: .git/config\n```\n[core]\n```\nFile: kept.txt\n```\nyes\n```\n",
			want: []pair{{"kept.txt", "yes\n"}},
		},
		{
			name: "no blocks",
			text: "I think the project is complete. No changes needed.",
			want: nil,
		},
		{
			name: "empty response",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(tt.text)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Files() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFiles_PathsHaveNoQuotes(t *testing.T) {
	text := "File: \"`quoted`/'name'.txt\"\n```\nx\n```\n"
	for path := range Files(text) {
		if strings.ContainsAny(path, "`'\"") {
			t.Errorf("path %q still contains quote characters", path)
		}
		if path != "quoted/name.txt" {
			t.Errorf("path = %q, want quoted/name.txt", path)
		}
	}
}

func TestBlocks_CarriesRejections(t *testing.T) {
	p := NewParser(nil)
	text := "File: ../x.txt\n```text\nx\n```\nFile: y.txt\n```text\ny\n```\n"

	var blocks []Block
	for b := range p.Blocks(text) {
		blocks = append(blocks, b)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}

	rejected := blocks[0]
	if rejected.Path != "" || rejected.RawPath != "../x.txt" {
		t.Errorf("rejected block = %+v", rejected)
	}
	if !errors.Is(rejected.Err, rterrors.ErrPathRejected) {
		t.Errorf("Err = %v, want ErrPathRejected", rejected.Err)
	}

	if blocks[1].Path != "y.txt" || blocks[1].Lang != "text" || blocks[1].Err != nil {
		t.Errorf("second block = %+v", blocks[1])
	}
}

func TestBlocks_Restartable(t *testing.T) {
	seq := NewParser(nil).Files("File: a\n```\n1\n```\nFile: b.txt\n```\n2\n```\n")

	var first, second []string
	for path := range seq {
		first = append(first, path)
	}
	for path := range seq {
		second = append(second, path)
	}
	if !slices.Equal(first, second) || len(first) != 2 {
		t.Errorf("first pass %v, second pass %v", first, second)
	}
}

func TestBlocks_StopsEarly(t *testing.T) {
	text := strings.Repeat("File: f.txt\n```\nx\n```\n", 10)
	n := 0
	for range NewParser(nil).Blocks(text) {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("iterated %d blocks, want 3", n)
	}
}

func TestParser_CustomSanitizer(t *testing.T) {
	s := workspace.NewSanitizer(".orig", "private")
	p := NewParser(s)
	text := "File: private/key.pem\n```\nsecret\n```\nFile: a.bak\n```\nok\n```\n"

	var paths []string
	for path := range p.Files(text) {
		paths = append(paths, path)
	}
	if !slices.Equal(paths, []string{"a.bak"}) {
		t.Errorf("paths = %v, want [a.bak]", paths)
	}
}

func TestOpenFence(t *testing.T) {
	tests := []struct {
		line     string
		wantOK   bool
		wantLang string
	}{
		{"```", true, ""},
		{"```go", true, "go"},
		{"~~~~ python linenums", true, "python"},
		{"``", false, ""},
		{"``` `inline` ```", false, ""},
		{"text", false, ""},
	}
	for _, tt := range tests {
		_, info, ok := openFence(tt.line)
		if ok != tt.wantOK {
			t.Errorf("openFence(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			continue
		}
		if ok && language(info) != tt.wantLang {
			t.Errorf("openFence(%q) lang = %q, want %q", tt.line, language(info), tt.wantLang)
		}
	}
}
