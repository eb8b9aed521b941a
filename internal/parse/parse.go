// Package parse extracts typed fields from Douban listing and detail pages.
//
// Each extractor pulls one field group out of an already-parsed document and
// degrades to zero values on its own failure; a broken group never aborts
// the movie. The one exception is Reviews, which fails the whole page when a
// publish timestamp does not parse.
package parse

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Layouts used by the source markup.
const (
	releaseDateLayout = "2006-01-02"
	reviewTimeLayout  = "2006-01-02 15:04:05"
)

// Info labels located inside the flattened #info text block.
const (
	labelCountry  = "制片国家/地区:"
	labelLanguage = "语言:"
	labelIMDb     = "IMDb:"
	labelAka      = "又名:"
)

// writerLabel marks the credits block the writer anchors live in.
const writerLabel = "编剧"

// ratingVocabulary maps the five-point review labels to numeric scores.
var ratingVocabulary = map[string]int{
	"力荐": 5,
	"推荐": 4,
	"还行": 3,
	"较差": 2,
	"很差": 1,
}

// Info is the flat movie-info record of one detail page.
type Info struct {
	Title       string
	ReleaseDate *time.Time
	Country     string
	Language    string
	Runtime     *int64
	Rating      float64
	RatingCount int
	Summary     string
	IMDb        string
	Aka         string
}

// Credit is one raw director/writer/actor entry.
type Credit struct {
	ID   int64
	Name string
}

// GenreTag is one raw genre entry. The page exposes no numeric genre id, so
// the external id equals the display text.
type GenreTag struct {
	ID   string
	Name string
}

// Review is one raw short-review entry. Rating is nil for labels outside
// the five-point vocabulary.
type Review struct {
	ID          string
	UserName    string
	Rating      *int
	Content     string
	PublishDate time.Time
}

// Item is one enumerated entry of a listing page. MovieID is zero when the
// item's link or id could not be parsed; such entries still count toward
// the page's item total and are recorded as failures by the loop.
type Item struct {
	URL     string
	MovieID int64
}

// ListingItems enumerates the div.item elements of a listing page.
func ListingItems(doc *goquery.Document) []Item {
	var items []Item
	doc.Find("div.item").Each(func(_ int, s *goquery.Selection) {
		href := s.Find("a").First().AttrOr("href", "")
		id, _ := externalID(href)
		items = append(items, Item{URL: href, MovieID: id})
	})
	return items
}

// MovieInfo extracts the flat info record. The title node is the anchor
// field: when it is missing the whole record comes back empty, country and
// rating and summary included. Independent per-field resilience is
// deliberately not provided here.
func MovieInfo(doc *goquery.Document) Info {
	title := doc.Find(`span[property="v:itemreviewed"]`).First()
	if title.Length() == 0 {
		return Info{}
	}

	info := Info{Title: strings.TrimSpace(title.Text())}
	info.ReleaseDate = releaseDate(doc)

	if infoText := doc.Find("#info").First().Text(); infoText != "" {
		info.Country = extractInfoField(infoText, labelCountry)
		info.Language = extractInfoField(infoText, labelLanguage)
		info.IMDb = extractInfoField(infoText, labelIMDb)
		info.Aka = extractInfoField(infoText, labelAka)
	}
	info.Runtime = runtimeMinutes(doc)

	if text := strings.TrimSpace(doc.Find(`strong[property="v:average"]`).First().Text()); text != "" {
		if rating, err := strconv.ParseFloat(text, 64); err == nil {
			info.Rating = rating
		}
	}
	if text := strings.TrimSpace(doc.Find(`span[property="v:votes"]`).First().Text()); text != "" {
		if count, err := strconv.Atoi(text); err == nil {
			info.RatingCount = count
		}
	}
	info.Summary = strings.TrimSpace(doc.Find(`span[property="v:summary"]`).First().Text())

	return info
}

// CoverURL returns the main poster image source, empty when absent.
func CoverURL(doc *goquery.Document) string {
	return doc.Find("#mainpic img").First().AttrOr("src", "")
}

// Directors extracts the ordered director credits.
func Directors(doc *goquery.Document) []Credit {
	return credits(doc.Find(`a[rel="v:directedBy"]`))
}

// Actors extracts the ordered actor credits.
func Actors(doc *goquery.Document) []Credit {
	return credits(doc.Find(`a[rel="v:starring"]`))
}

// Writers extracts the writer credits. Writers carry no role marker in the
// markup, so they are located structurally: the span holding the writer
// label, then the anchors in the sibling span that follows it. A missing
// label yields an empty list.
func Writers(doc *goquery.Document) []Credit {
	var out []Credit
	doc.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) != writerLabel {
			return true
		}
		out = credits(s.NextFiltered("span").Find("a"))
		return false
	})
	return out
}

// Genres extracts every node tagged with the genre property marker.
func Genres(doc *goquery.Document) []GenreTag {
	var out []GenreTag
	doc.Find(`span[property="v:genre"]`).Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Text())
		if name == "" {
			return
		}
		out = append(out, GenreTag{ID: name, Name: name})
	})
	return out
}

// Reviews extracts the ordered short-review entries. An unparsable publish
// timestamp is a hard failure for the page: the error is returned and any
// reviews already collected are discarded.
func Reviews(doc *goquery.Document) ([]Review, error) {
	var out []Review
	var parseErr error
	doc.Find("div.comment-item").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		review := Review{
			ID:       s.AttrOr("data-cid", ""),
			UserName: strings.TrimSpace(s.Find("span.comment-info a").First().Text()),
			Content:  strings.TrimSpace(s.Find("span.short").First().Text()),
		}
		if label, ok := s.Find("span.comment-info span.rating").First().Attr("title"); ok {
			review.Rating = ratingScore(label)
		}

		raw := strings.TrimSpace(s.Find("span.comment-time").First().AttrOr("title", ""))
		published, err := time.Parse(reviewTimeLayout, raw)
		if err != nil {
			parseErr = fmt.Errorf("parse review time %q: %w", raw, err)
			return false
		}
		review.PublishDate = published
		out = append(out, review)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return out, nil
}

// ratingScore maps a review label to its numeric score, nil when the label
// is outside the vocabulary.
func ratingScore(label string) *int {
	score, ok := ratingVocabulary[label]
	if !ok {
		return nil
	}
	return &score
}

// extractInfoField returns the substring between the label and the next
// line break of the flattened info text, trimmed. Absent labels yield an
// empty string.
func extractInfoField(text, label string) string {
	idx := strings.Index(text, label)
	if idx < 0 {
		return ""
	}
	rest := text[idx+len(label):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(rest)
}

func releaseDate(doc *goquery.Document) *time.Time {
	content := doc.Find(`span[property="v:initialReleaseDate"]`).First().AttrOr("content", "")
	if content == "" {
		return nil
	}
	// Trailing region annotations come in parentheses, e.g. 1994-09-10(加拿大).
	raw := strings.TrimSpace(strings.SplitN(content, "(", 2)[0])
	date, err := time.Parse(releaseDateLayout, raw)
	if err != nil {
		return nil
	}
	return &date
}

func runtimeMinutes(doc *goquery.Document) *int64 {
	content, ok := doc.Find(`span[property="v:runtime"]`).First().Attr("content")
	if !ok {
		return nil
	}
	minutes, err := strconv.ParseInt(strings.TrimSpace(content), 10, 64)
	if err != nil {
		return nil
	}
	return &minutes
}

func credits(anchors *goquery.Selection) []Credit {
	var out []Credit
	anchors.Each(func(_ int, a *goquery.Selection) {
		id, ok := externalID(a.AttrOr("href", ""))
		if !ok {
			return
		}
		out = append(out, Credit{ID: id, Name: strings.TrimSpace(a.Text())})
	})
	return out
}

// externalID pulls the numeric id out of a link's last path segment,
// e.g. /celebrity/1054521/ -> 1054521.
func externalID(href string) (int64, bool) {
	trimmed := strings.TrimSuffix(href, "/")
	segment := trimmed[strings.LastIndexByte(trimmed, '/')+1:]
	id, err := strconv.ParseInt(segment, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
