package scrape

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageMetadata identifies a scraped page.
type PageMetadata struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Link is one anchor extracted from a page.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// StructuredContent is the one-shot extraction produced by ReadWebpage.
type StructuredContent struct {
	MainText string       `json:"main_text"`
	Headings []string     `json:"headings"`
	Links    []Link       `json:"links"`
	Tables   [][][]string `json:"tables"`
}

// ExtractText reduces HTML to normalized plain text: scripts and styles
// dropped, block text joined by spaces.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	var parts []string
	doc.Find("p, span, h1, h2, h3, h4, h5, h6, li, td, th, div").Each(func(_ int, s *goquery.Selection) {
		// Skip container divs; their children are visited separately.
		if goquery.NodeName(s) == "div" && s.Children().Length() > 0 {
			return
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, " "), nil
}

// ExtractTitle returns the page title, or a placeholder when absent.
func ExtractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "Untitled Page"
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return "Untitled Page"
	}
	return title
}

const maxExtractedLinks = 10

// ExtractStructured pulls main text, headings, the first links and any tables
// out of a page in one pass.
func ExtractStructured(html string) (*StructuredContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	mainText, err := ExtractText(html)
	if err != nil {
		return nil, err
	}

	out := &StructuredContent{MainText: mainText}

	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			out.Headings = append(out.Headings, text)
		}
	})

	doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		text := strings.TrimSpace(s.Text())
		if ok && href != "" && text != "" {
			out.Links = append(out.Links, Link{Text: text, Href: href})
		}
		return len(out.Links) < maxExtractedLinks
	})

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var rows [][]string
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(cell.Text()))
			})
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		})
		if len(rows) > 0 {
			out.Tables = append(out.Tables, rows)
		}
	})

	return out, nil
}
