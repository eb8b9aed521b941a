package parse

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const detailHTML = `<html><body>
<div id="content">
<h1><span property="v:itemreviewed">肖申克的救赎 The Shawshank Redemption</span></h1>
<div id="mainpic"><a><img src="https://img.example.com/covers/p480747492.jpg" alt="cover"></a></div>
<div id="info">
<span class="pl">导演</span>: <span class="attrs"><a href="/celebrity/1047973/" rel="v:directedBy">弗兰克·德拉邦特</a></span><br/>
<span class="pl">编剧</span>: <span class="attrs"><a href="/celebrity/1047973/">弗兰克·德拉邦特</a> / <a href="/celebrity/1049547/">斯蒂芬·金</a></span><br/>
<span class="pl">主演</span>: <span class="attrs"><a href="/celebrity/1054521/" rel="v:starring">蒂姆·罗宾斯</a> / <a href="/celebrity/1054534/" rel="v:starring">摩根·弗里曼</a></span><br/>
<span class="pl">类型:</span> <span property="v:genre">剧情</span> / <span property="v:genre">犯罪</span><br/>
<span class="pl">制片国家/地区:</span> 美国<br/>
<span class="pl">语言:</span> 英语<br/>
<span class="pl">上映日期:</span> <span property="v:initialReleaseDate" content="1994-09-10(多伦多电影节)">1994-09-10</span><br/>
<span class="pl">片长:</span> <span property="v:runtime" content="142">142分钟</span><br/>
<span class="pl">又名:</span> 月黑高飞(港) / 刺激1995(台)<br/>
<span class="pl">IMDb:</span> tt0111161<br/>
</div>
<strong class="ll rating_num" property="v:average">9.7</strong>
<span property="v:votes">3056725</span>
<span property="v:summary">一场谋杀案使银行家安迪蒙冤入狱。</span>
<div class="comment-item" data-cid="1054528">
  <span class="comment-info">
    <a href="https://www.douban.com/people/wanderer/">wanderer</a>
    <span class="allstar50 rating" title="力荐"></span>
    <span class="comment-time" title="2008-08-18 13:50:02">2008-08-18</span>
  </span>
  <p><span class="short">希望让人自由。</span></p>
</div>
<div class="comment-item" data-cid="1054529">
  <span class="comment-info">
    <a href="https://www.douban.com/people/second/">second</a>
    <span class="allstar00 rating" title="看过"></span>
    <span class="comment-time" title="2010-01-02 09:15:30">2010-01-02</span>
  </span>
  <p><span class="short">经典。</span></p>
</div>
</div>
</body></html>`

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestMovieInfo(t *testing.T) {
	t.Parallel()

	info := MovieInfo(mustDoc(t, detailHTML))

	require.Equal(t, "肖申克的救赎 The Shawshank Redemption", info.Title)
	require.Equal(t, "美国", info.Country)
	require.Equal(t, "英语", info.Language)
	require.Equal(t, "tt0111161", info.IMDb)
	require.Equal(t, "月黑高飞(港) / 刺激1995(台)", info.Aka)
	require.Equal(t, 9.7, info.Rating)
	require.Equal(t, 3056725, info.RatingCount)
	require.Equal(t, "一场谋杀案使银行家安迪蒙冤入狱。", info.Summary)

	require.NotNil(t, info.ReleaseDate)
	require.Equal(t, time.Date(1994, 9, 10, 0, 0, 0, 0, time.UTC), *info.ReleaseDate)

	require.NotNil(t, info.Runtime)
	require.Equal(t, int64(142), *info.Runtime)
}

func TestMovieInfoMissingTitleEmptiesEverything(t *testing.T) {
	t.Parallel()

	// The title is the anchor field: without it every other field comes
	// back defaulted even when present in the markup.
	html := strings.Replace(detailHTML, `property="v:itemreviewed"`, `class="untagged"`, 1)
	info := MovieInfo(mustDoc(t, html))

	require.Equal(t, Info{}, info)
}

func TestMovieInfoOptionalFieldDegradation(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<span property="v:itemreviewed">某电影</span>
<div id="info">
<span class="pl">上映日期:</span> <span property="v:initialReleaseDate" content="未上映">未上映</span><br/>
<span class="pl">片长:</span> <span property="v:runtime" content="about two hours">120分钟</span><br/>
</div>
</body></html>`
	info := MovieInfo(mustDoc(t, html))

	require.Equal(t, "某电影", info.Title)
	require.Nil(t, info.ReleaseDate)
	require.Nil(t, info.Runtime)
	require.Zero(t, info.Rating)
	require.Zero(t, info.RatingCount)
	require.Empty(t, info.Country)
	require.Empty(t, info.Summary)
}

func TestExtractInfoField(t *testing.T) {
	t.Parallel()

	text := "制片国家/地区: 美国\n语言: 英语\nIMDb: tt0111161"

	require.Equal(t, "美国", extractInfoField(text, "制片国家/地区:"))
	require.Equal(t, "英语", extractInfoField(text, "语言:"))
	// Last label runs to the end of the text when no line break follows.
	require.Equal(t, "tt0111161", extractInfoField(text, "IMDb:"))
	require.Equal(t, "", extractInfoField(text, "又名:"))
}

func TestCoverURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://img.example.com/covers/p480747492.jpg", CoverURL(mustDoc(t, detailHTML)))
	require.Equal(t, "", CoverURL(mustDoc(t, "<html><body></body></html>")))
}

func TestDirectorsAndActors(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, detailHTML)

	directors := Directors(doc)
	require.Equal(t, []Credit{{ID: 1047973, Name: "弗兰克·德拉邦特"}}, directors)

	actors := Actors(doc)
	require.Equal(t, []Credit{
		{ID: 1054521, Name: "蒂姆·罗宾斯"},
		{ID: 1054534, Name: "摩根·弗里曼"},
	}, actors)
}

func TestWriters(t *testing.T) {
	t.Parallel()

	writers := Writers(mustDoc(t, detailHTML))
	require.Equal(t, []Credit{
		{ID: 1047973, Name: "弗兰克·德拉邦特"},
		{ID: 1049547, Name: "斯蒂芬·金"},
	}, writers)
}

func TestWritersMissingLabel(t *testing.T) {
	t.Parallel()

	html := `<html><body><div id="info">
<span class="pl">导演</span>: <span class="attrs"><a href="/celebrity/1/" rel="v:directedBy">某导演</a></span>
</div></body></html>`
	require.Empty(t, Writers(mustDoc(t, html)))
}

func TestGenresIDEqualsName(t *testing.T) {
	t.Parallel()

	genres := Genres(mustDoc(t, detailHTML))
	require.Equal(t, []GenreTag{
		{ID: "剧情", Name: "剧情"},
		{ID: "犯罪", Name: "犯罪"},
	}, genres)
}

func TestReviews(t *testing.T) {
	t.Parallel()

	reviews, err := Reviews(mustDoc(t, detailHTML))
	require.NoError(t, err)
	require.Len(t, reviews, 2)

	first := reviews[0]
	require.Equal(t, "1054528", first.ID)
	require.Equal(t, "wanderer", first.UserName)
	require.NotNil(t, first.Rating)
	require.Equal(t, 5, *first.Rating)
	require.Equal(t, "希望让人自由。", first.Content)
	require.Equal(t, time.Date(2008, 8, 18, 13, 50, 2, 0, time.UTC), first.PublishDate)

	// A label outside the five-point vocabulary maps to no rating.
	require.Nil(t, reviews[1].Rating)
}

func TestRatingVocabulary(t *testing.T) {
	t.Parallel()

	expected := map[string]int{"力荐": 5, "推荐": 4, "还行": 3, "较差": 2, "很差": 1}
	for label, want := range expected {
		got := ratingScore(label)
		require.NotNil(t, got, label)
		require.Equal(t, want, *got, label)
	}
	require.Nil(t, ratingScore("看过"))
	require.Nil(t, ratingScore(""))
}

func TestReviewsBadTimestampDiscardsPage(t *testing.T) {
	t.Parallel()

	html := strings.Replace(detailHTML, "2010-01-02 09:15:30", "yesterday", 1)
	reviews, err := Reviews(mustDoc(t, html))

	// The first review parsed fine but is discarded with the page.
	require.Error(t, err)
	require.Nil(t, reviews)
}

func TestListingItems(t *testing.T) {
	t.Parallel()

	html := `<html><body><ol class="grid_view">
<li><div class="item"><div class="pic"><a href="https://movie.douban.com/subject/1292052/"><img></a></div></div></li>
<li><div class="item"><div class="pic"><a href="https://movie.douban.com/subject/1291546/"><img></a></div></div></li>
<li><div class="item"><div class="pic"><a href="https://movie.douban.com/celebrity/broken"><img></a></div></div></li>
</ol></body></html>`
	items := ListingItems(mustDoc(t, html))

	require.Len(t, items, 3)
	require.Equal(t, Item{URL: "https://movie.douban.com/subject/1292052/", MovieID: 1292052}, items[0])
	require.Equal(t, Item{URL: "https://movie.douban.com/subject/1291546/", MovieID: 1291546}, items[1])
	// Unparsable ids stay in the enumeration with a zero id so the loop
	// can record them as failures.
	require.Zero(t, items[2].MovieID)
}

func TestListingItemsEmptyPage(t *testing.T) {
	t.Parallel()

	require.Empty(t, ListingItems(mustDoc(t, "<html><body><p>no results</p></body></html>")))
}
