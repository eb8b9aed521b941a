package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/saber1015/douban/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return newTestStoreWithLogger(t, nil)
}

func newTestStoreWithLogger(t *testing.T, logger *zap.Logger) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	st := New(db, logger)
	require.NoError(t, st.Migrate())
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})
	return st
}

func intPtr(v int) *int { return &v }

func TestSaveMovieAndExistingIDs(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	require.NoError(t, st.SaveMovie(&model.Movie{MovieID: 1292052, Title: "肖申克的救赎"}))

	ids, err := st.ExistingMovieIDs()
	require.NoError(t, err)
	require.Contains(t, ids, int64(1292052))
	require.Len(t, ids, 1)
}

func TestExistingIDsExcludeSoftDeleted(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	require.NoError(t, st.SaveMovie(&model.Movie{MovieID: 1, Title: "a"}))
	require.NoError(t, st.SaveMovie(&model.Movie{MovieID: 2, Title: "b"}))
	require.NoError(t, st.db.Where("movie_id = ?", 2).Delete(&model.Movie{}).Error)

	ids, err := st.ExistingMovieIDs()
	require.NoError(t, err)
	require.Contains(t, ids, int64(1))
	require.NotContains(t, ids, int64(2))
}

func TestFullModeReinsertsMovies(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	// No uniqueness constraint on the external id: re-crawling in full
	// mode inserts a fresh row, by design.
	require.NoError(t, st.SaveMovie(&model.Movie{MovieID: 1292052, Title: "肖申克的救赎"}))
	require.NoError(t, st.SaveMovie(&model.Movie{MovieID: 1292052, Title: "肖申克的救赎"}))

	var count int64
	require.NoError(t, st.db.Model(&model.Movie{}).Where("movie_id = ?", 1292052).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestSaveRelatedFindOrCreateDedupes(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	shared := RelatedRecords{
		Directors: []CreditEntry{{ID: 1047973, Name: "弗兰克·德拉邦特"}},
		Writers:   []CreditEntry{{ID: 1049547, Name: "斯蒂芬·金"}},
		Actors:    []CreditEntry{{ID: 1054534, Name: "摩根·弗里曼"}},
		Genres:    []GenreEntry{{ID: "剧情", Name: "剧情"}},
	}
	require.NoError(t, st.SaveRelated(100, shared))
	require.NoError(t, st.SaveRelated(200, shared))

	// The same external id normalized on two movies yields exactly one
	// entity row but one relation row per movie.
	var directors int64
	require.NoError(t, st.db.Model(&model.Director{}).Count(&directors).Error)
	require.EqualValues(t, 1, directors)

	var genres int64
	require.NoError(t, st.db.Model(&model.Genre{}).Count(&genres).Error)
	require.EqualValues(t, 1, genres)

	var relations int64
	require.NoError(t, st.db.Model(&model.MovieDirectorRelation{}).Count(&relations).Error)
	require.EqualValues(t, 2, relations)
}

func TestSaveRelatedLinksInternalIDs(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	require.NoError(t, st.SaveRelated(100, RelatedRecords{
		Actors: []CreditEntry{{ID: 1054521, Name: "蒂姆·罗宾斯"}},
	}))

	var actor model.Actor
	require.NoError(t, st.db.Where("actor_id = ?", 1054521).First(&actor).Error)

	var relation model.MovieActorRelation
	require.NoError(t, st.db.Where("movie_id = ?", 100).First(&relation).Error)
	// Relations reference the surrogate id assigned by storage, not the
	// external one.
	require.Equal(t, actor.ID, relation.ActorID)
}

func TestSaveRelatedDedupesReviews(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	review := ReviewEntry{
		ID:          "1054528",
		UserName:    "wanderer",
		Rating:      intPtr(5),
		Content:     "希望让人自由。",
		PublishDate: time.Date(2008, 8, 18, 13, 50, 2, 0, time.UTC),
	}
	require.NoError(t, st.SaveRelated(100, RelatedRecords{Reviews: []ReviewEntry{review}}))
	require.NoError(t, st.SaveRelated(100, RelatedRecords{Reviews: []ReviewEntry{review}}))

	var count int64
	require.NoError(t, st.db.Model(&model.Review{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	var stored model.Review
	require.NoError(t, st.db.First(&stored).Error)
	require.NotNil(t, stored.Rating)
	require.Equal(t, 5, *stored.Rating)
}

func TestSaveRelatedFailureLeavesOrphanMovie(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	require.NoError(t, st.SaveMovie(&model.Movie{MovieID: 100, Title: "孤儿行"}))

	// Break the second transaction only: the relation table disappears
	// but the movie row from step one must stay behind.
	require.NoError(t, st.db.Migrator().DropTable(&model.MovieDirectorRelation{}))

	err := st.SaveRelated(100, RelatedRecords{
		Directors: []CreditEntry{{ID: 1, Name: "导演"}},
	})
	require.Error(t, err)

	var movies int64
	require.NoError(t, st.db.Model(&model.Movie{}).Count(&movies).Error)
	require.EqualValues(t, 1, movies)

	// The rollback also removed the director created mid-transaction.
	var directors int64
	require.NoError(t, st.db.Model(&model.Director{}).Count(&directors).Error)
	require.EqualValues(t, 0, directors)
}

func TestSaveRelatedFailureLogsRollback(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.WarnLevel)
	st := newTestStoreWithLogger(t, zap.New(core))

	require.NoError(t, st.db.Migrator().DropTable(&model.MovieDirectorRelation{}))

	err := st.SaveRelated(100, RelatedRecords{
		Directors: []CreditEntry{{ID: 1, Name: "导演"}},
	})
	require.Error(t, err)
	require.Equal(t, 1, logs.FilterMessage("relations transaction rolled back").Len())
}

func TestSaveMovieFailureLogsRollback(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.WarnLevel)
	st := newTestStoreWithLogger(t, zap.New(core))

	require.NoError(t, st.db.Migrator().DropTable(&model.Movie{}))

	require.Error(t, st.SaveMovie(&model.Movie{MovieID: 1, Title: "a"}))
	require.Equal(t, 1, logs.FilterMessage("movie insert rolled back").Len())
}
