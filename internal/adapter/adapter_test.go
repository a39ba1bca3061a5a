package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-offload/internal/dispatcher"
	"task-offload/pkg/processor/builtin"
	"task-offload/pkg/processor/collection"
	"task-offload/pkg/processor/geometry"
	"task-offload/pkg/processor/text"
)

// brokenDispatcher rejects every call, forcing the local fallback.
type brokenDispatcher struct {
	mu         sync.Mutex
	created    []string
	terminated []string
	useCache   []bool
	result     json.RawMessage
}

var errUnavailable = errors.New("workers unavailable")

func (d *brokenDispatcher) CreateContext(_ context.Context, key, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created = append(d.created, key)
	return errUnavailable
}

func (d *brokenDispatcher) Execute(_ context.Context, _, _ string, _ any, useCache bool) (json.RawMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.useCache = append(d.useCache, useCache)
	if d.result != nil {
		return d.result, nil
	}
	return nil, errUnavailable
}

func (d *brokenDispatcher) Terminate(keys ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.terminated = append(d.terminated, keys...)
}

func newManager(t *testing.T) *dispatcher.Manager {
	t.Helper()
	m := dispatcher.New(dispatcher.Config{}, dispatcher.NewLocalLauncher(builtin.NewRegistry()))
	t.Cleanup(func() { m.Terminate() })
	return m
}

// jsonEqual compares values by their JSON encoding.
func jsonEqual(t *testing.T, want, got any) {
	t.Helper()
	w, err := json.Marshal(want)
	require.NoError(t, err)
	g, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(w), string(g))
}

func TestText_WorkerMatchesFallback(t *testing.T) {
	ctx := context.Background()
	worker := NewText(ctx, newManager(t), Options{AutoInitialize: true})
	require.NoError(t, worker.Err())
	require.True(t, worker.IsInitialized())
	local := NewText(ctx, &brokenDispatcher{}, Options{})

	for _, mode := range []text.SplitMode{text.SplitWords, text.SplitLines, text.SplitCharacters} {
		w, err := worker.SplitText(ctx, "héllo wörld\n👨‍👩‍👧 ok", mode)
		require.NoError(t, err)
		l, err := local.SplitText(ctx, "héllo wörld\n👨‍👩‍👧 ok", mode)
		require.NoError(t, err)
		assert.Equal(t, l, w, string(mode))
	}

	for _, from := range []text.StaggerFrom{text.FromFirst, text.FromLast, text.FromCenter, text.FromIndex(2)} {
		w, err := worker.StaggerDelays(ctx, 5, from, 0.1)
		require.NoError(t, err)
		l, err := local.StaggerDelays(ctx, 5, from, 0.1)
		require.NoError(t, err)
		assert.Equal(t, l, w)
	}

	req := text.SequenceRequest{Text: "a b c", SplitBy: text.SplitWords, StaggerFrom: text.FromCenter, StaggerDuration: 0.05}
	w, err := worker.AnimationSequence(ctx, req)
	require.NoError(t, err)
	l, err := local.AnimationSequence(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, l, w)

	assert.NoError(t, worker.Err())
	assert.ErrorIs(t, local.Err(), errUnavailable)
}

func TestCollection_WorkerMatchesFallback(t *testing.T) {
	ctx := context.Background()
	worker := NewCollection(ctx, newManager(t), Options{AutoInitialize: true})
	require.NoError(t, worker.Err())
	local := NewCollection(ctx, &brokenDispatcher{}, Options{})

	type project struct {
		Title    string   `json:"title"`
		Category string   `json:"category"`
		Tags     []string `json:"tags"`
		Year     int      `json:"year"`
	}
	items, err := Records([]project{
		{"Atlas", "web", []string{"Go"}, 2022},
		{"Beacon", "mobile", []string{"Swift"}, 2024},
		{"Comet", "web", []string{"React", "Go"}, 2023},
	})
	require.NoError(t, err)

	check := func(name string, call func(*Collection) (any, error)) {
		t.Run(name, func(t *testing.T) {
			w, err := call(worker)
			require.NoError(t, err)
			l, err := call(local)
			require.NoError(t, err)
			jsonEqual(t, l, w)
		})
	}

	check("filter", func(c *Collection) (any, error) {
		return c.Filter(ctx, items, collection.Filters{Category: "web", Tags: []string{"go"}})
	})
	check("sort", func(c *Collection) (any, error) {
		return c.Sort(ctx, items, []collection.SortKey{{Field: "year", Order: "desc"}})
	})
	check("search", func(c *Collection) (any, error) {
		return c.Search(ctx, items, "react", nil)
	})
	check("categories", func(c *Collection) (any, error) {
		return c.Categories(ctx, items, "")
	})
	check("paginate", func(c *Collection) (any, error) {
		return c.Paginate(ctx, items, 2, 2)
	})
}

func TestCollection_RecordBytesSurviveOffload(t *testing.T) {
	ctx := context.Background()
	worker := NewCollection(ctx, newManager(t), Options{AutoInitialize: true})
	require.NoError(t, worker.Err())
	local := NewCollection(ctx, &brokenDispatcher{}, Options{})

	items := []json.RawMessage{
		json.RawMessage(`{"title":"a<b & c>d","category":"web","year":2024}`),
		json.RawMessage(`{"year": 2021, "category": "mobile", "title": "zeta"}`),
	}

	w, err := worker.Filter(ctx, items, collection.Filters{Category: "web"})
	require.NoError(t, err)
	require.NoError(t, worker.Err())
	l, err := local.Filter(ctx, items, collection.Filters{Category: "web"})
	require.NoError(t, err)
	require.Len(t, w, 1)
	assert.Equal(t, string(items[0]), string(w[0]))
	assert.Equal(t, string(l[0]), string(w[0]))

	w, err = worker.Sort(ctx, items, []collection.SortKey{{Field: "year"}})
	require.NoError(t, err)
	l, err = local.Sort(ctx, items, []collection.SortKey{{Field: "year"}})
	require.NoError(t, err)
	require.Len(t, w, 2)
	assert.Equal(t, `{"year":2021,"category":"mobile","title":"zeta"}`, string(w[0]))
	for i := range w {
		assert.Equal(t, string(l[i]), string(w[i]))
	}
}

func TestGeometry_WorkerMatchesFallback(t *testing.T) {
	ctx := context.Background()
	worker := NewGeometry(ctx, newManager(t), Options{AutoInitialize: true})
	require.NoError(t, worker.Err())
	local := NewGeometry(ctx, &brokenDispatcher{}, Options{})

	london := geometry.LatLng{Lat: 51.5074, Lng: -0.1278}
	tokyo := geometry.LatLng{Lat: 35.6762, Lng: 139.6503}

	check := func(name string, call func(*Geometry) (any, error)) {
		t.Run(name, func(t *testing.T) {
			w, err := call(worker)
			require.NoError(t, err)
			l, err := call(local)
			require.NoError(t, err)
			assert.Equal(t, l, w)
		})
	}

	check("project", func(g *Geometry) (any, error) { return g.ProjectPoint(ctx, london, 1000, 500) })
	check("arc", func(g *Geometry) (any, error) {
		return g.ArcPath(ctx, geometry.Point{X: 10, Y: 80}, geometry.Point{X: 300.5, Y: 40})
	})
	check("distance", func(g *Geometry) (any, error) { return g.Distance(ctx, london, tokyo) })
	check("frames", func(g *Geometry) (any, error) {
		return g.AnimationFrames(ctx, geometry.FramesRequest{Duration: 250, FPS: 24, Easing: "bounce"})
	})
	check("map data", func(g *Geometry) (any, error) {
		return g.MapData(ctx, geometry.MapRequest{
			Dots:   []geometry.Arc{{Start: london, End: tokyo}, {Start: tokyo, End: london}},
			Width:  800,
			Height: 400,
		})
	})
}

func TestFallback_RecordsErrorAndReturnsResult(t *testing.T) {
	ctx := context.Background()
	a := NewGeometry(ctx, &brokenDispatcher{}, Options{})

	km, err := a.Distance(ctx, geometry.LatLng{}, geometry.LatLng{Lat: 90})

	require.NoError(t, err)
	assert.InDelta(t, 10007.5, km, 1)
	assert.ErrorIs(t, a.Err(), errUnavailable)
}

func TestFallback_UndecodableResult(t *testing.T) {
	ctx := context.Background()
	a := NewText(ctx, &brokenDispatcher{result: json.RawMessage(`{"not":"a list"}`)}, Options{})

	got, err := a.SplitText(ctx, "a b", text.SplitWords)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	require.Error(t, a.Err())
	assert.Contains(t, a.Err().Error(), "decode splitText result")
}

func TestFallback_LocalFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	a := NewText(ctx, &brokenDispatcher{}, Options{})

	_, err := a.SplitText(ctx, "a b", "sentences")

	assert.ErrorIs(t, err, text.ErrUnknownSplitMode)
	assert.ErrorIs(t, a.Err(), text.ErrUnknownSplitMode)
}

func TestFallback_WithoutInitialization(t *testing.T) {
	ctx := context.Background()
	a := NewCollection(ctx, newManager(t), Options{})
	assert.False(t, a.IsInitialized())

	page, err := a.Paginate(ctx, nil, 1, 10)

	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.ErrorIs(t, a.Err(), dispatcher.ErrContextNotFound)
}

func TestFallback_ExtremeInputs(t *testing.T) {
	ctx := context.Background()
	col := NewCollection(ctx, &brokenDispatcher{}, Options{})
	items, err := Records(make([]struct{}, 23))
	require.NoError(t, err)

	page, err := col.Paginate(ctx, items, math.MaxInt, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	page, err = col.Paginate(ctx, items, 1, math.MaxInt)
	require.NoError(t, err)
	assert.Len(t, page.Items, 23)
	assert.Equal(t, 1, page.Pagination.TotalPages)

	geo := NewGeometry(ctx, &brokenDispatcher{}, Options{})
	_, err = geo.AnimationFrames(ctx, geometry.FramesRequest{Duration: 1e30})
	assert.ErrorIs(t, err, geometry.ErrTooManyFrames)
	assert.ErrorIs(t, geo.Err(), geometry.ErrTooManyFrames)
}

func TestStaggerDelays_RandomBypassesCache(t *testing.T) {
	ctx := context.Background()
	d := &brokenDispatcher{}
	a := NewText(ctx, d, Options{})

	_, err := a.StaggerDelays(ctx, 4, text.FromRandom, 0.1)
	require.NoError(t, err)
	_, err = a.StaggerDelays(ctx, 4, text.FromFirst, 0.1)
	require.NoError(t, err)
	_, err = a.AnimationSequence(ctx, text.SequenceRequest{Text: "a b", SplitBy: text.SplitWords, StaggerFrom: text.FromRandom})
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true, false}, d.useCache)
}

func TestAutoInitialize_RecordsFailure(t *testing.T) {
	d := &brokenDispatcher{}

	a := NewGeometry(context.Background(), d, Options{AutoInitialize: true})

	assert.ErrorIs(t, a.Err(), errUnavailable)
	assert.False(t, a.IsInitialized())
	assert.False(t, a.IsLoading())
	assert.Equal(t, []string{geometry.ContextKey}, d.created)
}

func TestOptions_Overrides(t *testing.T) {
	m := newManager(t)
	a := NewText(context.Background(), m, Options{AutoInitialize: true, Key: "headline", EntryPoint: text.EntryPoint})

	require.NoError(t, a.Err())
	assert.Equal(t, "headline", a.Key())
	assert.Equal(t, map[string]bool{"headline": true}, m.ContextStatus())
}

func TestClose_TerminatesOnlyOwnContext(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	txt := NewText(ctx, m, Options{AutoInitialize: true})
	col := NewCollection(ctx, m, Options{AutoInitialize: true})
	require.NoError(t, txt.Err())
	require.NoError(t, col.Err())

	txt.Close()

	assert.False(t, txt.IsInitialized())
	assert.Equal(t, map[string]bool{collection.ContextKey: true}, m.ContextStatus())

	cats, err := col.Categories(ctx, nil, "")
	require.NoError(t, err)
	assert.Equal(t, []collection.Category{{Name: collection.AllCategory, Count: 0}}, cats)
	assert.NoError(t, col.Err())
}

func TestRecords(t *testing.T) {
	got, err := Records([]map[string]int{{"a": 1}, {"b": 2}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"a":1}`, string(got[0]))

	_, err = Records([]any{make(chan int)})
	assert.Error(t, err)
}
