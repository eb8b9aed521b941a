// Package model defines the relational tables the crawler persists into.
// Every table carries a surrogate auto-increment primary key, creation and
// update timestamps, and a nullable soft-delete timestamp. The soft-delete
// column exists for manual curation and is never set by the crawl logic.
package model

import (
	"time"

	"gorm.io/gorm"
)

// Movie is one crawled title. MovieID is the source site's numeric id and
// is the incremental-skip key; it is stable across runs but carries no
// uniqueness constraint, so full-mode re-crawls insert fresh rows.
type Movie struct {
	ID          uint           `gorm:"primaryKey;autoIncrement;comment:surrogate movie id"`
	MovieID     int64          `gorm:"not null;default:0;index;comment:douban movie id"`
	Title       string         `gorm:"size:255;not null;default:'';comment:movie title"`
	ReleaseDate *time.Time     `gorm:"type:date;comment:release date"`
	Country     string         `gorm:"size:255;not null;default:'';comment:production country/region"`
	Language    string         `gorm:"size:255;not null;default:'';comment:language"`
	Runtime     *int64         `gorm:"comment:runtime in minutes"`
	Rating      float64        `gorm:"type:decimal(3,1);not null;default:0.0;comment:average rating"`
	RatingCount int            `gorm:"not null;default:0;comment:number of ratings"`
	CoverURL    string         `gorm:"size:255;not null;default:'';comment:cover image url"`
	Summary     string         `gorm:"type:text;comment:plot summary"`
	URL         string         `gorm:"size:255;not null;default:'';comment:detail page url"`
	IMDb        string         `gorm:"size:50;not null;default:'';comment:imdb code"`
	Aka         string         `gorm:"size:255;not null;default:'';comment:alternate titles"`
	CreatedAt   time.Time      `gorm:"comment:created time"`
	UpdatedAt   time.Time      `gorm:"comment:updated time"`
	DeletedAt   gorm.DeletedAt `gorm:"index;comment:soft delete time"`
}

// TableName implements the gorm naming override.
func (Movie) TableName() string { return "movies" }

// Director is a person entity deduplicated by its external id.
type Director struct {
	ID         uint           `gorm:"primaryKey;autoIncrement;comment:surrogate director id"`
	DirectorID int64          `gorm:"not null;default:0;index;comment:douban director id"`
	Name       string         `gorm:"size:255;not null;default:'';comment:director name"`
	CreatedAt  time.Time      `gorm:"comment:created time"`
	UpdatedAt  time.Time      `gorm:"comment:updated time"`
	DeletedAt  gorm.DeletedAt `gorm:"index;comment:soft delete time"`
}

func (Director) TableName() string { return "directors" }

// MovieDirectorRelation joins a movie's external id to a director's
// internal surrogate id.
type MovieDirectorRelation struct {
	ID         uint           `gorm:"primaryKey;autoIncrement;comment:surrogate relation id"`
	MovieID    int64          `gorm:"not null;default:0;index;comment:douban movie id"`
	DirectorID uint           `gorm:"not null;default:0;comment:internal director id"`
	CreatedAt  time.Time      `gorm:"comment:created time"`
	UpdatedAt  time.Time      `gorm:"comment:updated time"`
	DeletedAt  gorm.DeletedAt `gorm:"index;comment:soft delete time"`
}

func (MovieDirectorRelation) TableName() string { return "movie_director_relation" }

// Writer is a person entity deduplicated by its external id.
type Writer struct {
	ID        uint           `gorm:"primaryKey;autoIncrement;comment:surrogate writer id"`
	WriterID  int64          `gorm:"not null;default:0;index;comment:douban writer id"`
	Name      string         `gorm:"size:255;not null;default:'';comment:writer name"`
	CreatedAt time.Time      `gorm:"comment:created time"`
	UpdatedAt time.Time      `gorm:"comment:updated time"`
	DeletedAt gorm.DeletedAt `gorm:"index;comment:soft delete time"`
}

func (Writer) TableName() string { return "writers" }

// MovieWriterRelation joins a movie's external id to a writer's internal
// surrogate id.
type MovieWriterRelation struct {
	ID        uint           `gorm:"primaryKey;autoIncrement;comment:surrogate relation id"`
	MovieID   int64          `gorm:"not null;default:0;index;comment:douban movie id"`
	WriterID  uint           `gorm:"not null;default:0;comment:internal writer id"`
	CreatedAt time.Time      `gorm:"comment:created time"`
	UpdatedAt time.Time      `gorm:"comment:updated time"`
	DeletedAt gorm.DeletedAt `gorm:"index;comment:soft delete time"`
}

func (MovieWriterRelation) TableName() string { return "movie_writer_relation" }

// Actor is a person entity deduplicated by its external id.
type Actor struct {
	ID        uint           `gorm:"primaryKey;autoIncrement;comment:surrogate actor id"`
	ActorID   int64          `gorm:"not null;default:0;index;comment:douban actor id"`
	Name      string         `gorm:"size:255;not null;default:'';comment:actor name"`
	CreatedAt time.Time      `gorm:"comment:created time"`
	UpdatedAt time.Time      `gorm:"comment:updated time"`
	DeletedAt gorm.DeletedAt `gorm:"index;comment:soft delete time"`
}

func (Actor) TableName() string { return "actors" }

// MovieActorRelation joins a movie's external id to an actor's internal
// surrogate id.
type MovieActorRelation struct {
	ID        uint           `gorm:"primaryKey;autoIncrement;comment:surrogate relation id"`
	MovieID   int64          `gorm:"not null;default:0;index;comment:douban movie id"`
	ActorID   uint           `gorm:"not null;default:0;comment:internal actor id"`
	CreatedAt time.Time      `gorm:"comment:created time"`
	UpdatedAt time.Time      `gorm:"comment:updated time"`
	DeletedAt gorm.DeletedAt `gorm:"index;comment:soft delete time"`
}

func (MovieActorRelation) TableName() string { return "movie_actor_relation" }

// Genre is keyed by a string external id; the detail page exposes no
// numeric genre id, so the id equals the display name.
type Genre struct {
	ID        uint           `gorm:"primaryKey;autoIncrement;comment:surrogate genre id"`
	GenreID   string         `gorm:"size:50;not null;default:'';index;comment:genre external id"`
	GenreName string         `gorm:"size:255;not null;default:'';comment:genre display name"`
	CreatedAt time.Time      `gorm:"comment:created time"`
	UpdatedAt time.Time      `gorm:"comment:updated time"`
	DeletedAt gorm.DeletedAt `gorm:"index;comment:soft delete time"`
}

func (Genre) TableName() string { return "genres" }

// MovieGenreRelation joins a movie's external id to a genre's internal
// surrogate id.
type MovieGenreRelation struct {
	ID        uint           `gorm:"primaryKey;autoIncrement;comment:surrogate relation id"`
	MovieID   int64          `gorm:"not null;default:0;index;comment:douban movie id"`
	GenreID   uint           `gorm:"not null;default:0;comment:internal genre id"`
	CreatedAt time.Time      `gorm:"comment:created time"`
	UpdatedAt time.Time      `gorm:"comment:updated time"`
	DeletedAt gorm.DeletedAt `gorm:"index;comment:soft delete time"`
}

func (MovieGenreRelation) TableName() string { return "movie_genre_relation" }

// Review is one short review, deduplicated by its external review id.
// Rating is nil when the source label is outside the five-point vocabulary.
type Review struct {
	ID          uint           `gorm:"primaryKey;autoIncrement;comment:surrogate review id"`
	ReviewID    string         `gorm:"size:50;not null;default:'';index;comment:douban review id"`
	MovieID     int64          `gorm:"not null;default:0;index;comment:douban movie id"`
	UserName    string         `gorm:"size:255;not null;default:'';comment:reviewer display name"`
	Rating      *int           `gorm:"comment:review rating 1-5"`
	Content     string         `gorm:"type:text;comment:review content"`
	PublishDate time.Time      `gorm:"comment:review publish time"`
	CreatedAt   time.Time      `gorm:"comment:created time"`
	UpdatedAt   time.Time      `gorm:"comment:updated time"`
	DeletedAt   gorm.DeletedAt `gorm:"index;comment:soft delete time"`
}

func (Review) TableName() string { return "reviews" }

// Table pairs a model with the business comment attached to its table.
type Table struct {
	Model   any
	Comment string
}

// Tables enumerates every table in migration order.
func Tables() []Table {
	return []Table{
		{&Movie{}, "douban movie information"},
		{&Director{}, "movie director information"},
		{&MovieDirectorRelation{}, "movie to director relation"},
		{&Writer{}, "movie writer information"},
		{&MovieWriterRelation{}, "movie to writer relation"},
		{&Actor{}, "movie actor information"},
		{&MovieActorRelation{}, "movie to actor relation"},
		{&Genre{}, "movie genre information"},
		{&MovieGenreRelation{}, "movie to genre relation"},
		{&Review{}, "movie short review information"},
	}
}
