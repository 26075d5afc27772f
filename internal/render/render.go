// Package render prepares posts for display: slugs, markdown descriptions
// and publish dates.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gosimple/slug"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/fivetwenty-io/blog-client/pkg/blog"
)

// ErrInvalidPublishDate is returned for dates in none of the accepted layouts.
var ErrInvalidPublishDate = errors.New("invalid publish date")

// PublishDateLayouts are the accepted publishDate formats, the first being
// what a datetime-local form input produces.
var PublishDateLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// View is a post prepared for display.
type View struct {
	ID              string    `json:"id"                     yaml:"id"`
	Slug            string    `json:"slug"                   yaml:"slug"`
	Title           string    `json:"title"                  yaml:"title"`
	Published       bool      `json:"published"              yaml:"published"`
	PublishDate     time.Time `json:"publish_date,omitempty" yaml:"publish_date,omitempty"`
	FeaturedImage   string    `json:"featured_image"         yaml:"featured_image"`
	DescriptionHTML string    `json:"description_html"       yaml:"description_html"`
}

// Renderer converts post descriptions from markdown to HTML.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer returns a renderer with GFM and typographic substitutions.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Typographer,
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
	}
}

// DescriptionHTML renders the post description.
func (r *Renderer) DescriptionHTML(post blog.Post) (string, error) {
	var buf bytes.Buffer

	err := r.md.Convert([]byte(post.Description), &buf)
	if err != nil {
		return "", fmt.Errorf("rendering description of post %s: %w", post.ID, err)
	}

	return buf.String(), nil
}

// View prepares post for display. An unparseable publish date is left zero.
func (r *Renderer) View(post blog.Post) (View, error) {
	html, err := r.DescriptionHTML(post)
	if err != nil {
		return View{}, err
	}

	published, _ := PublishDate(post)

	return View{
		ID:              post.ID,
		Slug:            Slug(post),
		Title:           post.Title,
		Published:       post.Published,
		PublishDate:     published,
		FeaturedImage:   post.FeaturedImage,
		DescriptionHTML: html,
	}, nil
}

// Slug returns a URL slug for the post title, falling back to the id.
func Slug(post blog.Post) string {
	if s := slug.Make(post.Title); s != "" {
		return s
	}

	return slug.Make(post.ID)
}

// PublishDate parses the post's publish date.
func PublishDate(post blog.Post) (time.Time, error) {
	value := strings.TrimSpace(post.PublishDate)

	for _, layout := range PublishDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPublishDate, post.PublishDate)
}

// Summary shortens text to at most limit runes on a word boundary.
func Summary(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:limit])

	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}

	return cut + "…"
}
