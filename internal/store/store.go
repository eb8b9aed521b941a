// Package store is the persistence gateway. It owns the gorm session, the
// commit/rollback boundaries, and the find-or-create normalization of
// credit and genre entities.
package store

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/saber1015/douban/internal/model"
	"github.com/saber1015/douban/pkg/config"
)

// CreditEntry is a raw director/writer/actor entry extracted from a detail
// page: the source site's numeric person id plus the display name.
type CreditEntry struct {
	ID   int64
	Name string
}

// GenreEntry is a raw genre entry. The external id equals the display name
// because the page exposes no separate genre id.
type GenreEntry struct {
	ID   string
	Name string
}

// ReviewEntry is a raw short-review entry. Rating is nil when the source
// label falls outside the five-point vocabulary.
type ReviewEntry struct {
	ID          string
	UserName    string
	Rating      *int
	Content     string
	PublishDate time.Time
}

// RelatedRecords bundles everything persisted in the second transaction of
// a movie.
type RelatedRecords struct {
	Directors []CreditEntry
	Writers   []CreditEntry
	Actors    []CreditEntry
	Genres    []GenreEntry
	Reviews   []ReviewEntry
}

// Store wraps the single shared gorm session. The crawler is the only
// writer, so no locking is layered on top.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to MySQL using the configured DSN and pings the connection.
func Open(cfg config.DBConfig, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return New(db, logger), nil
}

// New wraps an already-open gorm handle. Tests use it with an in-memory
// sqlite database.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Migrate creates all tables, attaching the business comment where the
// dialect supports table options.
func (s *Store) Migrate() error {
	for _, t := range model.Tables() {
		tx := s.db
		if s.db.Dialector.Name() == "mysql" {
			tx = tx.Set("gorm:table_options", fmt.Sprintf("COMMENT='%s'", t.Comment))
		}
		if err := tx.AutoMigrate(t.Model); err != nil {
			return fmt.Errorf("migrate %T: %w", t.Model, err)
		}
	}
	s.logger.Info("schema migrated", zap.Int("tables", len(model.Tables())))
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// ExistingMovieIDs returns the external ids of all movies already persisted
// and not soft-deleted. The crawl loop preloads this set once per run as
// the incremental-skip key.
func (s *Store) ExistingMovieIDs() (map[int64]struct{}, error) {
	var ids []int64
	if err := s.db.Model(&model.Movie{}).Pluck("movie_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("load existing movie ids: %w", err)
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// SaveMovie inserts the movie row in its own transaction. A failure rolls
// back and is returned to the caller, which records the item as failed.
func (s *Store) SaveMovie(movie *model.Movie) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(movie).Error
	})
	if err != nil {
		s.logger.Warn("movie insert rolled back",
			zap.Int64("movie_id", movie.MovieID),
			zap.Error(err),
		)
		return fmt.Errorf("save movie %d: %w", movie.MovieID, err)
	}
	return nil
}

// SaveRelated persists all credit/genre entities, their relation rows, and
// the review rows of one movie in a single transaction. Entities are
// resolved by find-or-create against storage for every movie processed;
// there is deliberately no in-memory cache across movies. If this fails
// after SaveMovie succeeded the movie row stays behind without relations,
// an accepted inconsistency window.
func (s *Store) SaveRelated(movieID int64, rec RelatedRecords) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, entry := range rec.Directors {
			id, err := findOrCreateDirector(tx, entry)
			if err != nil {
				return err
			}
			if err := tx.Create(&model.MovieDirectorRelation{MovieID: movieID, DirectorID: id}).Error; err != nil {
				return fmt.Errorf("relate director %d: %w", entry.ID, err)
			}
		}
		for _, entry := range rec.Writers {
			id, err := findOrCreateWriter(tx, entry)
			if err != nil {
				return err
			}
			if err := tx.Create(&model.MovieWriterRelation{MovieID: movieID, WriterID: id}).Error; err != nil {
				return fmt.Errorf("relate writer %d: %w", entry.ID, err)
			}
		}
		for _, entry := range rec.Actors {
			id, err := findOrCreateActor(tx, entry)
			if err != nil {
				return err
			}
			if err := tx.Create(&model.MovieActorRelation{MovieID: movieID, ActorID: id}).Error; err != nil {
				return fmt.Errorf("relate actor %d: %w", entry.ID, err)
			}
		}
		for _, entry := range rec.Genres {
			id, err := findOrCreateGenre(tx, entry)
			if err != nil {
				return err
			}
			if err := tx.Create(&model.MovieGenreRelation{MovieID: movieID, GenreID: id}).Error; err != nil {
				return fmt.Errorf("relate genre %q: %w", entry.ID, err)
			}
		}
		for _, entry := range rec.Reviews {
			if err := createReviewIfAbsent(tx, movieID, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("relations transaction rolled back",
			zap.Int64("movie_id", movieID),
			zap.Error(err),
		)
		return fmt.Errorf("save relations for movie %d: %w", movieID, err)
	}
	return nil
}

// findOrCreateDirector resolves the external id to the internal surrogate
// id, creating the row when absent. The create flushes inside the enclosing
// transaction so the id is available for the relation row; were the loop
// ever parallelized this must become an atomic upsert.
func findOrCreateDirector(tx *gorm.DB, entry CreditEntry) (uint, error) {
	var d model.Director
	err := tx.Where("director_id = ?", entry.ID).First(&d).Error
	switch {
	case err == nil:
		return d.ID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		d = model.Director{DirectorID: entry.ID, Name: entry.Name}
		if err := tx.Create(&d).Error; err != nil {
			return 0, fmt.Errorf("create director %d: %w", entry.ID, err)
		}
		return d.ID, nil
	default:
		return 0, fmt.Errorf("lookup director %d: %w", entry.ID, err)
	}
}

func findOrCreateWriter(tx *gorm.DB, entry CreditEntry) (uint, error) {
	var w model.Writer
	err := tx.Where("writer_id = ?", entry.ID).First(&w).Error
	switch {
	case err == nil:
		return w.ID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		w = model.Writer{WriterID: entry.ID, Name: entry.Name}
		if err := tx.Create(&w).Error; err != nil {
			return 0, fmt.Errorf("create writer %d: %w", entry.ID, err)
		}
		return w.ID, nil
	default:
		return 0, fmt.Errorf("lookup writer %d: %w", entry.ID, err)
	}
}

func findOrCreateActor(tx *gorm.DB, entry CreditEntry) (uint, error) {
	var a model.Actor
	err := tx.Where("actor_id = ?", entry.ID).First(&a).Error
	switch {
	case err == nil:
		return a.ID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		a = model.Actor{ActorID: entry.ID, Name: entry.Name}
		if err := tx.Create(&a).Error; err != nil {
			return 0, fmt.Errorf("create actor %d: %w", entry.ID, err)
		}
		return a.ID, nil
	default:
		return 0, fmt.Errorf("lookup actor %d: %w", entry.ID, err)
	}
}

func findOrCreateGenre(tx *gorm.DB, entry GenreEntry) (uint, error) {
	var g model.Genre
	err := tx.Where("genre_id = ?", entry.ID).First(&g).Error
	switch {
	case err == nil:
		return g.ID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		g = model.Genre{GenreID: entry.ID, GenreName: entry.Name}
		if err := tx.Create(&g).Error; err != nil {
			return 0, fmt.Errorf("create genre %q: %w", entry.ID, err)
		}
		return g.ID, nil
	default:
		return 0, fmt.Errorf("lookup genre %q: %w", entry.ID, err)
	}
}

// createReviewIfAbsent dedupes by the external review id.
func createReviewIfAbsent(tx *gorm.DB, movieID int64, entry ReviewEntry) error {
	var existing model.Review
	err := tx.Where("review_id = ?", entry.ID).First(&existing).Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		review := model.Review{
			ReviewID:    entry.ID,
			MovieID:     movieID,
			UserName:    entry.UserName,
			Rating:      entry.Rating,
			Content:     entry.Content,
			PublishDate: entry.PublishDate,
		}
		if err := tx.Create(&review).Error; err != nil {
			return fmt.Errorf("create review %q: %w", entry.ID, err)
		}
		return nil
	default:
		return fmt.Errorf("lookup review %q: %w", entry.ID, err)
	}
}
