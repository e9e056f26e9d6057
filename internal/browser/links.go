package browser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractLinks returns every a[href] in document order, resolved against
// pageURL the way the DOM's HTMLAnchorElement.href would be.
func ExtractLinks(html, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered html: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, refErr := url.Parse(strings.TrimSpace(href)); refErr == nil {
			base = base.ResolveReference(ref)
		}
	}
	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			links = append(links, href)
			return
		}
		links = append(links, base.ResolveReference(ref).String())
	})
	return links, nil
}
