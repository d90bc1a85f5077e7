package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furon-kuina/semleaf/domain/phrase"
	"github.com/furon-kuina/semleaf/domain/search"
	"github.com/furon-kuina/semleaf/infrastructure/persistence"
	"github.com/furon-kuina/semleaf/internal/testdb"
)

const testDimension = 3

// countingEmbedder returns a vector derived from the text length and counts calls.
type countingEmbedder struct {
	calls atomic.Int64
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.calls.Add(1)
	return []float64{float64(len(text)), 1, 0}, nil
}

// failingEmbedder fails on the k-th call (1-based).
type failingEmbedder struct {
	mu    sync.Mutex
	calls int
	k     int
}

func (e *failingEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.calls == e.k {
		return nil, errors.New("provider unavailable")
	}
	return []float64{1, 0, 0}, nil
}

// stepClock advances one second per call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	store    *persistence.PhraseStore
	phrases  *Phrase
	search   *Search
	embedder search.Embedder
}

func newFixture(t *testing.T, embedder search.Embedder, opts ...Option) fixture {
	t.Helper()
	db := testdb.New(t)
	store := persistence.NewPhraseStore(db, nil)
	clock := &stepClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithDimension(testDimension), WithClock(clock.Now)}, opts...)
	return fixture{
		store:    store,
		phrases:  NewPhrase(store, embedder, opts...),
		search:   NewSearch(store, store, embedder, opts...),
		embedder: embedder,
	}
}

func countRows(t *testing.T, f fixture) int {
	t.Helper()
	all, err := f.store.All(context.Background())
	require.NoError(t, err)
	return len(all)
}

func TestPhrase_CreateThenGetKeepsOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &countingEmbedder{}, WithParallelism(4))

	meanings := []string{"first", "second meaning", "third", "fourth one", "fifth"}
	created, err := f.phrases.Create(ctx, CreateParams{
		Phrase:   "  serendipity ",
		Meanings: meanings,
		Source:   "book",
		Tags:     []string{"positive", "positive", " rare "},
		Memo:     "note",
	})
	require.NoError(t, err)
	assert.Equal(t, "serendipity", created.Text())

	got, err := f.phrases.Get(ctx, created.ID())
	require.NoError(t, err)
	assert.Equal(t, meanings, got.MeaningTexts())
	assert.Equal(t, []string{"positive", "rare"}, got.Tags())
	assert.Equal(t, "book", got.Source())
	assert.Equal(t, "note", got.Memo())
	for i, m := range got.Meanings() {
		assert.Equal(t, testDimension, m.Dimension())
		assert.InDelta(t, float64(len(meanings[i])), m.Embedding()[0], 1e-9, "embedding follows its meaning")
	}
}

func TestPhrase_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		params CreateParams
	}{
		{"no meanings", CreateParams{Phrase: "p"}},
		{"empty meaning list", CreateParams{Phrase: "p", Meanings: []string{}}},
		{"whitespace meanings", CreateParams{Phrase: "p", Meanings: []string{" ", "\t"}}},
		{"one blank meaning", CreateParams{Phrase: "p", Meanings: []string{"ok", ""}}},
		{"blank phrase", CreateParams{Phrase: "  ", Meanings: []string{"ok"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := &countingEmbedder{}
			f := newFixture(t, embedder)

			_, err := f.phrases.Create(context.Background(), tt.params)
			require.ErrorIs(t, err, phrase.ErrValidation)
			assert.Zero(t, embedder.calls.Load(), "no embedding call before validation passes")
			assert.Zero(t, countRows(t, f))
		})
	}
}

func TestPhrase_CreateAbortsOnKthEmbeddingFailure(t *testing.T) {
	for k := 1; k <= 3; k++ {
		embedder := &failingEmbedder{k: k}
		f := newFixture(t, embedder)

		_, err := f.phrases.Create(context.Background(), CreateParams{
			Phrase:   "ephemeral",
			Meanings: []string{"one", "two", "three"},
		})
		require.ErrorIs(t, err, search.ErrEmbedding)
		assert.Zero(t, countRows(t, f))
	}
}

func TestPhrase_CreateRejectsWrongDimension(t *testing.T) {
	embedder := search.EmbedderFunc(func(_ context.Context, _ string) ([]float64, error) {
		return []float64{1, 2}, nil
	})
	f := newFixture(t, embedder)

	_, err := f.phrases.Create(context.Background(), CreateParams{Phrase: "p", Meanings: []string{"m"}})
	require.ErrorIs(t, err, search.ErrEmbedding)
	assert.Zero(t, countRows(t, f))
}

func TestPhrase_UpdateTextOnly(t *testing.T) {
	ctx := context.Background()
	embedder := &countingEmbedder{}
	f := newFixture(t, embedder)

	created, err := f.phrases.Create(ctx, CreateParams{
		Phrase:   "ubiquitous",
		Meanings: []string{"present everywhere"},
		Source:   "paper",
		Tags:     []string{"vocabulary"},
		Memo:     "memo",
	})
	require.NoError(t, err)
	callsAfterCreate := embedder.calls.Load()

	text := "omnipresent"
	updated, err := f.phrases.Update(ctx, created.ID(), UpdateParams{Phrase: &text})
	require.NoError(t, err)
	assert.Equal(t, callsAfterCreate, embedder.calls.Load(), "scalar updates do not embed")

	got, err := f.phrases.Get(ctx, created.ID())
	require.NoError(t, err)
	assert.Equal(t, "omnipresent", got.Text())
	assert.Equal(t, created.MeaningTexts(), got.MeaningTexts())
	assert.Equal(t, created.Meanings()[0].ID(), got.Meanings()[0].ID())
	assert.Equal(t, created.Meanings()[0].Embedding(), got.Meanings()[0].Embedding())
	assert.Equal(t, created.Source(), got.Source())
	assert.Equal(t, created.Tags(), got.Tags())
	assert.Equal(t, created.Memo(), got.Memo())
	assert.True(t, got.UpdatedAt().After(created.UpdatedAt()))
	assert.True(t, got.CreatedAt().Equal(created.CreatedAt()))
	assert.True(t, got.UpdatedAt().Equal(updated.UpdatedAt()))
}

func TestPhrase_UpdateReplacesMeanings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &countingEmbedder{})

	created, err := f.phrases.Create(ctx, CreateParams{Phrase: "p", Meanings: []string{"meaning one"}})
	require.NoError(t, err)

	_, err = f.phrases.Update(ctx, created.ID(), UpdateParams{
		Meanings: []string{"new meaning one", "new meaning two"},
	})
	require.NoError(t, err)

	got, err := f.phrases.Get(ctx, created.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"new meaning one", "new meaning two"}, got.MeaningTexts())
	for _, m := range got.Meanings() {
		assert.NotEqual(t, created.Meanings()[0].ID(), m.ID())
	}
}

func TestPhrase_UpdateValidationLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	embedder := &countingEmbedder{}
	f := newFixture(t, embedder)

	created, err := f.phrases.Create(ctx, CreateParams{Phrase: "p", Meanings: []string{"m"}})
	require.NoError(t, err)
	calls := embedder.calls.Load()

	for _, meanings := range [][]string{{}, {"  ", ""}} {
		_, err = f.phrases.Update(ctx, created.ID(), UpdateParams{Meanings: meanings})
		require.ErrorIs(t, err, phrase.ErrValidation)
	}
	assert.Equal(t, calls, embedder.calls.Load())

	got, err := f.phrases.Get(ctx, created.ID())
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt().Equal(created.UpdatedAt()))
	assert.Equal(t, []string{"m"}, got.MeaningTexts())
}

func TestPhrase_UpdateEmbeddingFailureKeepsOldMeanings(t *testing.T) {
	ctx := context.Background()
	embedder := &failingEmbedder{k: 3}
	f := newFixture(t, embedder)

	created, err := f.phrases.Create(ctx, CreateParams{Phrase: "p", Meanings: []string{"m"}})
	require.NoError(t, err)

	memo := "changed"
	_, err = f.phrases.Update(ctx, created.ID(), UpdateParams{Memo: &memo, Meanings: []string{"a", "b"}})
	require.ErrorIs(t, err, search.ErrEmbedding)

	got, err := f.phrases.Get(ctx, created.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"m"}, got.MeaningTexts())
	assert.Empty(t, got.Memo())
}

func TestPhrase_UpdateMissing(t *testing.T) {
	embedder := &countingEmbedder{}
	f := newFixture(t, embedder)

	_, err := f.phrases.Update(context.Background(), "missing", UpdateParams{Meanings: []string{"x"}})
	require.ErrorIs(t, err, phrase.ErrNotFound)
	assert.Zero(t, embedder.calls.Load())
}

func TestPhrase_UpdateConflict(t *testing.T) {
	ctx := context.Background()

	var (
		f        fixture
		targetID string
		once     sync.Once
	)
	// The first embedding of the update races a memo change in.
	embedder := search.EmbedderFunc(func(ctx context.Context, _ string) ([]float64, error) {
		if targetID != "" {
			once.Do(func() {
				memo := "concurrent"
				_, err := f.phrases.Update(ctx, targetID, UpdateParams{Memo: &memo})
				assert.NoError(t, err)
			})
		}
		return []float64{1, 0, 0}, nil
	})
	f = newFixture(t, embedder)

	created, err := f.phrases.Create(ctx, CreateParams{Phrase: "p", Meanings: []string{"m"}})
	require.NoError(t, err)
	targetID = created.ID()

	_, err = f.phrases.Update(ctx, created.ID(), UpdateParams{Meanings: []string{"lost"}})
	require.ErrorIs(t, err, phrase.ErrConflict)

	got, err := f.phrases.Get(ctx, created.ID())
	require.NoError(t, err)
	assert.Equal(t, "concurrent", got.Memo())
	assert.Equal(t, []string{"m"}, got.MeaningTexts())
}

func TestPhrase_DeleteOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &countingEmbedder{})

	created, err := f.phrases.Create(ctx, CreateParams{Phrase: "p", Meanings: []string{"a", "b"}})
	require.NoError(t, err)

	require.NoError(t, f.phrases.Delete(ctx, created.ID()))
	assert.ErrorIs(t, f.phrases.Delete(ctx, created.ID()), phrase.ErrNotFound)

	_, err = f.phrases.Get(ctx, created.ID())
	assert.ErrorIs(t, err, phrase.ErrNotFound)
}

func TestPhrase_ListRandomClampsLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &countingEmbedder{}, WithLimits(NewLimits(2, 3)))

	for _, text := range []string{"a", "b", "c", "d"} {
		_, err := f.phrases.Create(ctx, CreateParams{Phrase: text, Meanings: []string{text}})
		require.NoError(t, err)
	}

	got, err := f.phrases.ListRandom(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = f.phrases.ListRandom(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	all, err := f.phrases.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "d", all[0].Text())
}

func TestPhrase_CancelledContext(t *testing.T) {
	f := newFixture(t, search.EmbedderFunc(func(ctx context.Context, _ string) ([]float64, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []float64{1, 0, 0}, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.phrases.Create(ctx, CreateParams{Phrase: "p", Meanings: []string{strings.Repeat("m", 3)}})
	require.ErrorIs(t, err, search.ErrEmbedding)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, countRows(t, f))
}

func TestLimits(t *testing.T) {
	l := NewLimits(20, 100)
	assert.Equal(t, 20, l.Clamp(0))
	assert.Equal(t, 20, l.Clamp(-5))
	assert.Equal(t, 7, l.Clamp(7))
	assert.Equal(t, 100, l.Clamp(1000))

	d := NewLimits(0, 0)
	assert.Equal(t, 20, d.Default())
	assert.Equal(t, 100, d.Clamp(1000))
}
