// Package apidoc turns the declarations of the script API into documentation
// records for editors, the docs command and tool descriptions.
package apidoc

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
)

//go:embed turtle.d.ts
var declarations string

// Declarations returns the embedded declaration file.
func Declarations() string {
	return declarations
}

type TextKind string

const (
	KindPlain TextKind = "plain"
	KindCode  TextKind = "code"
	KindLink  TextKind = "link"
)

// Text is one segment of a description. Links carry their label segments in
// Content.
type Text struct {
	Kind    TextKind `json:"kind"`
	Text    string   `json:"text,omitempty"`
	URL     string   `json:"url,omitempty"`
	Content []Text   `json:"content,omitempty"`
}

func Plain(s string) Text { return Text{Kind: KindPlain, Text: s} }
func Code(s string) Text  { return Text{Kind: KindCode, Text: s} }

func Link(url string, content ...Text) Text {
	return Text{Kind: KindLink, URL: url, Content: content}
}

type ParamDoc struct {
	Name        string `json:"name"`
	Description []Text `json:"description"`
	Type        string `json:"type"`
}

type FunctionDoc struct {
	Name        string     `json:"name"`
	Description []Text     `json:"description"`
	ReturnType  string     `json:"returnType"`
	Params      []ParamDoc `json:"params"`
}

// Signature renders the declaration, e.g. "penDown(color: string): void".
func (f FunctionDoc) Signature() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Name + ": " + p.Type
	}
	return fmt.Sprintf("%s(%s): %s", f.Name, strings.Join(params, ", "), f.ReturnType)
}

var (
	declRe  = regexp.MustCompile(`(?s)/\*\*(.*?)\*/\s*declare\s+function\s+(\w+)\s*\(([^)]*)\)\s*:\s*([^;]+);`)
	paramRe = regexp.MustCompile(`^@param\s+(\w+)\s*(.*)$`)
	linkRe  = regexp.MustCompile(`\{@link(code|plain)?\s+([^\s|}]+)(?:\s*\|\s*([^}]*?))?\s*\}`)
	codeRe  = regexp.MustCompile("`([^`]+)`")
)

// Load parses the embedded declarations.
func Load() ([]FunctionDoc, error) {
	return Parse(declarations)
}

// Parse returns one record per documented function declaration in src, in
// source order.
func Parse(src string) ([]FunctionDoc, error) {
	var docs []FunctionDoc
	for _, m := range declRe.FindAllStringSubmatch(src, -1) {
		types, err := paramTypes(m[3])
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", m[2], err)
		}

		description, tags := splitComment(m[1])
		fn := FunctionDoc{
			Name:        m[2],
			Description: ParseText(description),
			ReturnType:  strings.TrimSpace(m[4]),
			Params:      []ParamDoc{},
		}
		for _, tag := range tags {
			pm := paramRe.FindStringSubmatch(tag)
			if pm == nil {
				continue
			}
			typ, ok := types[pm[1]]
			if !ok {
				return nil, fmt.Errorf("function %s: @param %s is not a parameter", fn.Name, pm[1])
			}
			fn.Params = append(fn.Params, ParamDoc{
				Name:        pm[1],
				Description: ParseText(pm[2]),
				Type:        typ,
			})
		}
		docs = append(docs, fn)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documented declarations found")
	}
	return docs, nil
}

func paramTypes(list string) (map[string]string, error) {
	types := make(map[string]string)
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name, typ, ok := strings.Cut(p, ":")
		if !ok {
			return nil, fmt.Errorf("parameter %q has no type", p)
		}
		types[strings.TrimSuffix(strings.TrimSpace(name), "?")] = strings.TrimSpace(typ)
	}
	return types, nil
}

// splitComment strips the comment decoration and separates the free text
// from the block tags. Continuation lines are joined to the preceding part
// with a space.
func splitComment(body string) (string, []string) {
	var description []string
	var tags []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "*"))
		switch {
		case line == "":
		case strings.HasPrefix(line, "@"):
			tags = append(tags, line)
		case len(tags) > 0:
			tags[len(tags)-1] += " " + line
		default:
			description = append(description, line)
		}
	}
	return strings.Join(description, " "), tags
}

// ParseText splits a comment into plain, code and link segments. Backticks
// mark code. {@link url | label} and {@linkplain ...} become links with a
// plain label; {@linkcode ...} gets a code label. The label defaults to the
// URL.
func ParseText(s string) []Text {
	out := []Text{}
	last := 0
	for _, m := range linkRe.FindAllStringSubmatchIndex(s, -1) {
		out = append(out, parseCode(s[last:m[0]])...)

		url := s[m[4]:m[5]]
		label := url
		if m[6] >= 0 && strings.TrimSpace(s[m[6]:m[7]]) != "" {
			label = strings.TrimSpace(s[m[6]:m[7]])
		}
		text := Plain(label)
		if m[2] >= 0 && s[m[2]:m[3]] == "code" {
			text = Code(label)
		}
		out = append(out, Link(url, text))
		last = m[1]
	}
	return append(out, parseCode(s[last:])...)
}

func parseCode(s string) []Text {
	var out []Text
	last := 0
	for _, m := range codeRe.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > last {
			out = append(out, Plain(s[last:m[0]]))
		}
		out = append(out, Code(s[m[2]:m[3]]))
		last = m[1]
	}
	if last < len(s) {
		out = append(out, Plain(s[last:]))
	}
	return out
}

// Markdown renders segments as inline Markdown.
func Markdown(texts []Text) string {
	var b strings.Builder
	for _, t := range texts {
		switch t.Kind {
		case KindCode:
			b.WriteString("`" + t.Text + "`")
		case KindLink:
			fmt.Fprintf(&b, "[%s](%s)", Markdown(t.Content), t.URL)
		default:
			b.WriteString(t.Text)
		}
	}
	return b.String()
}
