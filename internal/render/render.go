package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"astra-chat/internal/chat"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// DisplayRole maps the model's role label to the label shown in the page.
func DisplayRole(role string) string {
	if role == chat.RoleModel {
		return "assistant"
	}
	return role
}

// MessageView is a message ready for display. HTML is safe to embed as is.
type MessageView struct {
	Role        string        `json:"role"`
	DisplayRole string        `json:"display_role"`
	Content     string        `json:"content"`
	HTML        template.HTML `json:"html"`
	CreatedAt   time.Time     `json:"created_at"`
}

type PageData struct {
	Title       string
	Placeholder string
	Messages    []MessageView
	Error       string
	Draft       string
}

type Renderer struct {
	page   *template.Template
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func New() (*Renderer, error) {
	page, err := template.ParseFS(templateFS, "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "span")

	return &Renderer{
		page:   page,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: policy,
	}, nil
}

// Message renders one message. User text is escaped verbatim; model text is
// treated as Markdown and sanitised.
func (r *Renderer) Message(m chat.Message) MessageView {
	return MessageView{
		Role:        m.Role,
		DisplayRole: DisplayRole(m.Role),
		Content:     m.Content,
		HTML:        r.body(m),
		CreatedAt:   m.CreatedAt,
	}
}

// Messages renders the history in stored order.
func (r *Renderer) Messages(msgs []chat.Message) []MessageView {
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, r.Message(m))
	}
	return views
}

func (r *Renderer) Page(w io.Writer, data PageData) error {
	return r.page.Execute(w, data)
}

func (r *Renderer) Static() http.Handler {
	sub, _ := fs.Sub(staticFS, "static")
	return http.FileServer(http.FS(sub))
}

func (r *Renderer) body(m chat.Message) template.HTML {
	if m.Role != chat.RoleModel {
		return template.HTML(template.HTMLEscapeString(m.Content))
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(m.Content), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(m.Content))
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes()))
}
