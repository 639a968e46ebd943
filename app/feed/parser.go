package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/text/language"
)

// Parser normalizes RSS 2.0 and Atom payloads into a uniform candidate
// list. Both dialects are handled by gofeed, including single-entry
// feeds and missing optional fields.
type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses raw feed data. No partial results are returned on parse
// failure.
func (p *Parser) Run(data []byte) (*Metadata, []Candidate, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		Language:    normalizeLanguage(parsed.Language),
	}

	candidates := make([]Candidate, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		candidates = append(candidates, p.normalizeItem(item))
	}

	return metadata, candidates, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Candidate {
	candidate := Candidate{
		GUID:           cmp.Or(item.GUID, item.Link),
		Title:          item.Title,
		Link:           item.Link,
		RawDescription: item.Description,
		RawContentHTML: item.Content,
	}

	if item.PublishedParsed != nil {
		candidate.PublishedAt = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		candidate.PublishedAt = item.UpdatedParsed
	}

	candidate.ImageURL = p.discoverImage(item)

	return candidate
}

// discoverImage probes image locations in fixed order: an image
// enclosure, then media extension fields, then the first <img> inside
// the HTML description.
func (p *Parser) discoverImage(item *gofeed.Item) string {
	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}
		if strings.HasPrefix(enclosure.Type, "image/") && enclosure.URL != "" {
			return enclosure.URL
		}
	}

	if url := mediaExtensionURL(item); url != "" {
		return url
	}

	return firstImageInHTML(cmp.Or(item.Description, item.Content))
}

func mediaExtensionURL(item *gofeed.Item) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}

	for _, field := range []string{"content", "thumbnail"} {
		for _, ext := range media[field] {
			if url := ext.Attrs["url"]; url != "" {
				return url
			}
		}
	}

	return ""
}

func firstImageInHTML(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	src, _ := doc.Find("img").First().Attr("src")
	return src
}

// normalizeLanguage canonicalizes feed language tags ("en-US", "TR")
// into BCP 47 form; unparsable tags are passed through as-is.
func normalizeLanguage(lang string) string {
	if lang == "" {
		return ""
	}

	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}

	return tag.String()
}
