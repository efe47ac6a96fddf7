package quotes

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"navkeeper/internal/models"
)

type fakeStore struct {
	records map[string]map[string]models.NavRecord // code -> date -> record
	order   map[string][]string                    // insertion order of dates per code
	readErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: map[string]map[string]models.NavRecord{},
		order:   map[string][]string{},
	}
}

func (f *fakeStore) GetLastNav(ctx context.Context, code string) (decimal.Decimal, error) {
	if f.readErr != nil {
		return decimal.Decimal{}, f.readErr
	}
	dates := f.order[code]
	if len(dates) == 0 {
		return decimal.Decimal{}, models.ErrNotFound
	}
	last := f.records[code][dates[len(dates)-1]]
	return last.Nav, nil
}

func (f *fakeStore) UpsertNav(ctx context.Context, code, date string, nav, changeRate decimal.Decimal) error {
	if f.records[code] == nil {
		f.records[code] = map[string]models.NavRecord{}
	}
	if _, exists := f.records[code][date]; !exists {
		f.order[code] = append(f.order[code], date)
	}
	f.records[code][date] = models.NavRecord{Code: code, Date: date, Nav: nav, ChangeRate: changeRate}
	return nil
}

func (f *fakeStore) ListNavCodes(ctx context.Context) ([]string, error) {
	codes := []string{}
	for code := range f.records {
		codes = append(codes, code)
	}
	return codes, nil
}

// newTestService builds a Service on a fake store with a deterministic
// random source and all upstream URLs pointed at a dead server, so every
// quote goes through the synthesizer.
func newTestService(t *testing.T, store *fakeStore) *Service {
	t.Helper()
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(dead.Close)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	s := New(store, log)
	s.rng = rand.New(rand.NewSource(7))
	s.now = func() time.Time { return time.Date(2026, 8, 31, 11, 30, 0, 0, time.UTC) }
	s.fundEstimateURL = dead.URL
	s.fundHistoryURL = dead.URL
	s.goldPrimaryURL = dead.URL
	s.goldFallbackURL = dead.URL
	return s
}

func TestQuoteSeedsUnseenFund(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store)

	q := s.Quote(context.Background(), "005827")
	assert.Equal(t, "005827", q.Code)
	assert.Equal(t, unknownFundName, q.Name)
	assert.Equal(t, "0", q.EstimateChange)
	assert.Equal(t, TypeMixed, q.Type)

	nav, ok := q.Nav()
	require.True(t, ok)
	navF, _ := nav.Float64()
	assert.GreaterOrEqual(t, navF, 1.0)
	assert.LessOrEqual(t, navF, 1.5)

	rec, exists := store.records["005827"]["2026-08-31"]
	require.True(t, exists, "seed persisted for today")
	assert.True(t, rec.Nav.Equal(nav))
}

func TestQuoteContinuesWalkSameDay(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store)

	first := s.Quote(context.Background(), "005827")
	second := s.Quote(context.Background(), "005827")

	firstNav, ok := first.Nav()
	require.True(t, ok)
	secondNav, ok := second.Nav()
	require.True(t, ok)

	// One walk step from the first value: within ±2%.
	ratio, _ := secondNav.Div(firstNav).Float64()
	assert.GreaterOrEqual(t, ratio, 0.98)
	assert.LessOrEqual(t, ratio, 1.02)

	// Same day, same code: the record is overwritten, not duplicated.
	assert.Len(t, store.records["005827"], 1)
	assert.True(t, store.records["005827"]["2026-08-31"].Nav.Equal(secondNav))
}

func TestQuoteWalksFromPersistedHistory(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.UpsertNav(context.Background(), "161725", "2026-08-30", decimal.NewFromFloat(2.5), decimal.Zero))
	s := newTestService(t, store)

	q := s.Quote(context.Background(), "161725")
	nav, ok := q.Nav()
	require.True(t, ok)
	navF, _ := nav.Float64()
	assert.GreaterOrEqual(t, navF, 2.5*0.98)
	assert.LessOrEqual(t, navF, 2.5*1.02)
}

func TestQuoteSeedsWhenStoreReadFails(t *testing.T) {
	store := newFakeStore()
	store.readErr = errors.New("store down")
	s := newTestService(t, store)

	q := s.Quote(context.Background(), "005827")
	nav, ok := q.Nav()
	require.True(t, ok, "a broken store still yields a price")
	navF, _ := nav.Float64()
	assert.GreaterOrEqual(t, navF, 1.0)
	assert.LessOrEqual(t, navF, 1.5)
}

func TestGoldFirstSyntheticQuoteIsBaseline(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store)

	q := s.Gold(context.Background())
	assert.True(t, q.Price.Equal(decimal.NewFromFloat(1125.0)), "got %s", q.Price)
	assert.True(t, q.Change.Equal(decimal.Zero))
	assert.Equal(t, GoldCode, q.Code)

	rec, exists := store.records[GoldCode]["2026-08-31"]
	require.True(t, exists)
	assert.True(t, rec.Nav.Equal(q.Price))
}

func TestGoldWalkContinuesFromBaseline(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store)

	first := s.Gold(context.Background())
	second := s.Gold(context.Background())

	ratio, _ := second.Price.Div(first.Price).Float64()
	assert.GreaterOrEqual(t, ratio, 0.98)
	assert.LessOrEqual(t, ratio, 1.02)
	assert.NotEqual(t, "", second.Time)
}

func TestLiveFundEstimateShortCircuitsWalk(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store)

	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `jsonpgz({"fundcode":"005827","name":"Easy Select Blue Chip","gsz":"2.4321","gszzl":"1.23","gztime":"2026-08-31 11:30"});`)
	}))
	defer live.Close()
	s.fundEstimateURL = live.URL

	q := s.Quote(context.Background(), "005827")
	assert.Equal(t, "005827", q.Code)
	assert.Equal(t, "Easy Select Blue Chip", q.Name)
	assert.Equal(t, "2.4321", q.Estimate)
	assert.Equal(t, "1.23", q.EstimateChange)
	assert.Equal(t, "2026-08-31 11:30", q.Time)
	assert.Empty(t, store.records, "live path never touches history")
}

func TestMalformedLivePayloadFallsBack(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store)

	for _, body := range []string{"", "jsonpgz();", "jsonpgz({});", "not even jsonp"} {
		live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		}))
		s.fundEstimateURL = live.URL

		q := s.Quote(context.Background(), "005827")
		_, ok := q.Nav()
		assert.True(t, ok, "payload %q should degrade to a synthetic estimate", body)
		live.Close()
	}
}

func TestLiveGoldPrimaryScrape(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store)

	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>积存金 1130.55 克 更新时间:2026-08-31 11:29:55</body></html>")
	}))
	defer live.Close()
	s.goldPrimaryURL = live.URL

	q := s.Gold(context.Background())
	assert.True(t, q.Price.Equal(decimal.NewFromFloat(1130.55)), "got %s", q.Price)
	assert.Equal(t, "2026-08-31 11:29:55", q.Time)
	assert.Empty(t, store.records)
}

func TestLiveGoldFallbackScrape(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store)

	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>黄金9999 板块\n最新价 1128.40\n涨跌幅 -0.35%</html>")
	}))
	defer live.Close()
	s.goldFallbackURL = live.URL

	q := s.Gold(context.Background())
	assert.True(t, q.Price.Equal(decimal.NewFromFloat(1128.40)), "got %s", q.Price)
	assert.True(t, q.Change.Equal(decimal.NewFromFloat(-0.35)), "got %s", q.Change)
}

func TestUnwrapJSONP(t *testing.T) {
	out, err := unwrapJSONP([]byte(`jsonpgz({"a":1});`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(out))

	_, err = unwrapJSONP([]byte("garbage"))
	assert.Error(t, err)
}
