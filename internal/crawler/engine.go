// Package crawler implements the sequential crawl loop: fetch a listing
// page, enumerate its items, fetch and extract each detail page, persist
// the records, advance to the next page.
package crawler

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saber1015/douban/internal/metrics"
	"github.com/saber1015/douban/internal/model"
	"github.com/saber1015/douban/internal/parse"
	"github.com/saber1015/douban/internal/store"
	"github.com/saber1015/douban/pkg/config"
)

// itemsPerPage is the fixed listing page size of the source site.
const itemsPerPage = 25

// Fetcher loads one URL through the browser session and returns the
// rendered HTML.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Gateway is the slice of the persistence layer the loop needs.
type Gateway interface {
	ExistingMovieIDs() (map[int64]struct{}, error)
	SaveMovie(movie *model.Movie) error
	SaveRelated(movieID int64, rec store.RelatedRecords) error
}

// Config controls one crawl run.
type Config struct {
	BaseURL  string
	Mode     string
	SleepMin float64
	SleepMax float64
	// Pages limits how many listing pages are crawled; 0 crawls until a
	// listing yields no items.
	Pages int
	// Start is the zero-based page offset to begin at.
	Start int
}

// Summary reports the outcome of a run.
type Summary struct {
	NewMovies  int
	FailedURLs []string
}

// Engine drives the crawl loop. Single-threaded: one browser session, one
// storage session, no parallel fetches.
type Engine struct {
	cfg     Config
	fetcher Fetcher
	gateway Gateway
	logger  *zap.Logger
	rand    *rand.Rand
	sleep   func(time.Duration)
}

// New constructs an Engine.
func New(cfg Config, fetcher Fetcher, gateway Gateway, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		fetcher: fetcher,
		gateway: gateway,
		logger:  logger,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   time.Sleep,
	}
}

// Run executes the crawl until the page limit is reached, a listing page
// yields no items, or a run-level failure occurs. The summary is always
// logged, normal or abnormal termination alike; the caller owns releasing
// the browser and storage sessions.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	logger := e.logger.With(zap.String("run_id", uuid.NewString()))

	existing, err := e.gateway.ExistingMovieIDs()
	if err != nil {
		return Summary{}, fmt.Errorf("preload existing ids: %w", err)
	}
	logger.Info("existing movies loaded",
		zap.Int("count", len(existing)),
		zap.String("mode", e.cfg.Mode),
	)

	summary := Summary{}
	defer func() {
		logger.Info("crawl finished",
			zap.Int("new_movies", summary.NewMovies),
			zap.Int("failed", len(summary.FailedURLs)),
		)
		for _, url := range summary.FailedURLs {
			logger.Warn("failed url", zap.String("url", url))
		}
	}()

	page := e.cfg.Start
	for {
		if e.cfg.Pages > 0 && page >= e.cfg.Start+e.cfg.Pages {
			logger.Info("page limit reached", zap.Int("pages", e.cfg.Pages))
			return summary, nil
		}

		pageURL := fmt.Sprintf("%s?start=%d", e.cfg.BaseURL, page*itemsPerPage)
		logger.Info("fetching listing page", zap.Int("page", page), zap.String("url", pageURL))

		doc, err := e.fetchDocument(ctx, pageURL, "listing")
		if err != nil {
			// A listing or driver failure aborts the whole run.
			return summary, fmt.Errorf("listing page %d: %w", page, err)
		}

		items := parse.ListingItems(doc)
		if len(items) == 0 {
			logger.Info("no more results", zap.Int("page", page))
			return summary, nil
		}

		for _, item := range items {
			e.processItem(ctx, logger, item, existing, &summary)
		}
		page++
	}
}

// processItem runs the detail fetch, extraction and persistence for one
// listing item, recording any failure in the summary instead of aborting
// the page.
func (e *Engine) processItem(
	ctx context.Context,
	logger *zap.Logger,
	item parse.Item,
	existing map[int64]struct{},
	summary *Summary,
) {
	if item.MovieID == 0 {
		logger.Error("unparsable listing item", zap.String("url", item.URL))
		summary.FailedURLs = append(summary.FailedURLs, item.URL)
		metrics.ObserveMovie("failed")
		return
	}

	if e.cfg.Mode == config.ModeIncremental {
		if _, ok := existing[item.MovieID]; ok {
			logger.Info("movie already exists, skipping", zap.Int64("movie_id", item.MovieID))
			metrics.ObserveMovie("skipped")
			return
		}
	}

	logger.Info("fetching movie detail",
		zap.Int64("movie_id", item.MovieID),
		zap.String("url", item.URL),
	)
	if err := e.crawlDetail(ctx, logger, item); err != nil {
		logger.Error("movie processing failed",
			zap.Int64("movie_id", item.MovieID),
			zap.String("url", item.URL),
			zap.Error(err),
		)
		summary.FailedURLs = append(summary.FailedURLs, item.URL)
		metrics.ObserveMovie("failed")
		return
	}

	summary.NewMovies++
	metrics.ObserveMovie("saved")
}

func (e *Engine) crawlDetail(ctx context.Context, logger *zap.Logger, item parse.Item) error {
	doc, err := e.fetchDocument(ctx, item.URL, "detail")
	if err != nil {
		return fmt.Errorf("detail fetch: %w", err)
	}

	info := parse.MovieInfo(doc)
	if info.Title == "" {
		logger.Warn("movie info extraction came back empty", zap.Int64("movie_id", item.MovieID))
	}

	reviews, err := parse.Reviews(doc)
	if err != nil {
		logger.Warn("review extraction failed, dropping page reviews",
			zap.Int64("movie_id", item.MovieID),
			zap.Error(err),
		)
		reviews = nil
	}

	movie := &model.Movie{
		MovieID:     item.MovieID,
		Title:       info.Title,
		ReleaseDate: info.ReleaseDate,
		Country:     info.Country,
		Language:    info.Language,
		Runtime:     info.Runtime,
		Rating:      info.Rating,
		RatingCount: info.RatingCount,
		CoverURL:    parse.CoverURL(doc),
		Summary:     info.Summary,
		URL:         item.URL,
		IMDb:        info.IMDb,
		Aka:         info.Aka,
	}
	if err := e.gateway.SaveMovie(movie); err != nil {
		return err
	}

	related := store.RelatedRecords{
		Directors: creditEntries(parse.Directors(doc)),
		Writers:   creditEntries(parse.Writers(doc)),
		Actors:    creditEntries(parse.Actors(doc)),
		Genres:    genreEntries(parse.Genres(doc)),
		Reviews:   reviewEntries(reviews),
	}
	if err := e.gateway.SaveRelated(item.MovieID, related); err != nil {
		return err
	}

	metrics.ObserveReviews(len(reviews))
	logger.Info("movie saved",
		zap.Int64("movie_id", item.MovieID),
		zap.String("title", info.Title),
		zap.Int("reviews", len(reviews)),
	)
	return nil
}

// fetchDocument loads a page through the browser and parses it, applying
// the randomized inter-request delay after the load.
func (e *Engine) fetchDocument(ctx context.Context, url, kind string) (*goquery.Document, error) {
	html, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	metrics.ObservePage(kind)
	e.throttle()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// throttle sleeps a uniform random duration between the configured bounds.
// This delay is the only scheduling concept in the system.
func (e *Engine) throttle() {
	span := e.cfg.SleepMax - e.cfg.SleepMin
	if span < 0 {
		span = 0
	}
	seconds := e.cfg.SleepMin + e.rand.Float64()*span
	if seconds <= 0 {
		return
	}
	e.sleep(time.Duration(seconds * float64(time.Second)))
}

func creditEntries(credits []parse.Credit) []store.CreditEntry {
	out := make([]store.CreditEntry, 0, len(credits))
	for _, c := range credits {
		out = append(out, store.CreditEntry{ID: c.ID, Name: c.Name})
	}
	return out
}

func genreEntries(genres []parse.GenreTag) []store.GenreEntry {
	out := make([]store.GenreEntry, 0, len(genres))
	for _, g := range genres {
		out = append(out, store.GenreEntry{ID: g.ID, Name: g.Name})
	}
	return out
}

func reviewEntries(reviews []parse.Review) []store.ReviewEntry {
	out := make([]store.ReviewEntry, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, store.ReviewEntry{
			ID:          r.ID,
			UserName:    r.UserName,
			Rating:      r.Rating,
			Content:     r.Content,
			PublishDate: r.PublishDate,
		})
	}
	return out
}
