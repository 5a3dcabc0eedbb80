package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"autopress/internal/cache"
	"autopress/internal/core/job"
	"autopress/internal/core/publish"
	"autopress/internal/core/research"
	"autopress/internal/core/seo"
	"autopress/internal/keys"
	"autopress/internal/logger"
	"autopress/internal/ratelimit"
	"autopress/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobStore struct {
	jobs map[string]*job.Job
}

func (s *fakeJobStore) Create(ctx context.Context, keyword, fingerprint string) (*job.Job, error) {
	j := &job.Job{
		ID:          "job-" + keyword,
		Keyword:     keyword,
		Fingerprint: fingerprint,
		Status:      job.StatusPending,
		CreatedAt:   time.Now(),
	}
	if s.jobs == nil {
		s.jobs = map[string]*job.Job{}
	}
	s.jobs[j.ID] = j
	return j, nil
}

func (s *fakeJobStore) Update(ctx context.Context, j *job.Job) error { return nil }

type fakeResearcher struct {
	calls  int
	err    error
	result research.Result
}

func (f *fakeResearcher) Research(ctx context.Context, secret, keyword string) (*research.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := f.result
	return &out, nil
}

type fakeGenerator struct {
	generateCalls int
	renderCalls   int
}

func (f *fakeGenerator) Generate(ctx context.Context, secret, keyword string, data research.Data) (string, error) {
	f.generateCalls++
	return "## Generated\n\nBody.", nil
}

func (f *fakeGenerator) Render(keyword string, data research.Data, markdown string) (string, error) {
	f.renderCalls++
	return "<h1>" + keyword + "</h1><p>body</p>", nil
}

type fakeOptimizer struct{ calls int }

func (f *fakeOptimizer) Prepare(ctx context.Context, keyword, title, bodyHTML string, data research.Data) (*seo.Metadata, error) {
	f.calls++
	return &seo.Metadata{
		Slug:            seo.Slug(keyword, title),
		MetaTitle:       title,
		MetaDescription: "desc",
		FocusKeyword:    keyword,
		CategoryIDs:     []int{3},
		TagIDs:          []int{7},
	}, nil
}

type fakeImages struct {
	calls int
	err   error
	urls  []string
}

func (f *fakeImages) Search(ctx context.Context, keyword string, maxImages int) ([]string, error) {
	f.calls++
	return f.urls, f.err
}

type fakeVideos struct {
	calls int
	embed string
}

func (f *fakeVideos) Search(ctx context.Context, keyword string) (string, error) {
	f.calls++
	return f.embed, nil
}

type fakePublisher struct {
	exists       bool
	existsSlugs  map[string]bool
	existsCalls  int
	publishCalls int
	published    []job.Article
	err          error
}

func (f *fakePublisher) Exists(ctx context.Context, keyword, slug string) bool {
	f.existsCalls++
	return f.exists || f.existsSlugs[slug]
}

func (f *fakePublisher) Publish(ctx context.Context, keyword string, art job.Article) (*publish.Result, error) {
	f.publishCalls++
	if f.err != nil {
		return nil, f.err
	}
	f.published = append(f.published, art)
	return &publish.Result{PostID: 42, Permalink: "https://example.com/x"}, nil
}

type fixture struct {
	jobs    *fakeJobStore
	res     *fakeResearcher
	gen     *fakeGenerator
	opt     *fakeOptimizer
	images  *fakeImages
	videos  *fakeVideos
	pub     *fakePublisher
	orch    *Orchestrator
	backend *cache.MemoryBackend
}

func newFixture(cfg StageConfig) *fixture {
	f := &fixture{
		jobs: &fakeJobStore{},
		res: &fakeResearcher{result: research.Result{
			Data:     research.Data{SuggestedTitle: "Best Coffee Makers in 2025"},
			Markdown: "## Intro\n\nSome content.",
		}},
		gen:     &fakeGenerator{},
		opt:     &fakeOptimizer{},
		images:  &fakeImages{urls: []string{"https://img.example.com/1.jpg"}},
		videos:  &fakeVideos{embed: "https://www.youtube.com/embed/abc123"},
		pub:     &fakePublisher{},
		backend: cache.NewMemoryBackend(),
	}
	deps := &Deps{
		Cache: cache.NewStore(f.backend),
		Rate:  ratelimit.NewController(),
		Keys:  keys.NewRotator(keys.Options{}),
		Log:   logger.New("PipelineTest"),
	}
	f.orch = NewOrchestrator(deps, f.jobs, f.res, f.gen, f.opt, f.images, f.videos, f.pub, cfg)
	return f
}

func testConfig() StageConfig {
	return StageConfig{
		CacheTTL:         time.Hour,
		MediaCacheTTL:    time.Hour,
		GenerateAttempts: 1,
		PublishAttempts:  1,
		LookupAttempts:   1,
		RetryBaseDelay:   time.Millisecond,
		RetryMaxDelay:    5 * time.Millisecond,
		ImageMaxCount:    3,
		VideoMaxCount:    1,
	}
}

func TestProcessHappyPath(t *testing.T) {
	f := newFixture(testConfig())

	j, err := f.orch.Process(context.Background(), "best coffee makers")
	require.NoError(t, err)

	assert.Equal(t, job.StatusSucceeded, j.Status)
	assert.Equal(t, 42, j.PostID)
	assert.Equal(t, "https://example.com/x", j.Permalink)
	assert.Equal(t, 1, f.res.calls)
	assert.Equal(t, 1, f.pub.publishCalls)

	require.Len(t, f.pub.published, 1)
	art := f.pub.published[0]
	assert.Equal(t, "Best Coffee Makers in 2025", art.Title)
	assert.Equal(t, []string{"https://img.example.com/1.jpg"}, art.ImageURLs)
	assert.Contains(t, art.Body, "youtube.com/embed/abc123")

	for _, stage := range []string{job.StageResearch, job.StageGenerate, job.StageSEO, job.StagePublish} {
		res, ok := j.StageFor(stage)
		require.True(t, ok, stage)
		assert.Equal(t, job.StageSucceeded, res.Outcome, stage)
	}
}

func TestGenerateSkipsModelWhenResearchCarriedContent(t *testing.T) {
	f := newFixture(testConfig())

	_, err := f.orch.Process(context.Background(), "best coffee makers")
	require.NoError(t, err)

	assert.Equal(t, 0, f.gen.generateCalls)
	assert.Equal(t, 1, f.gen.renderCalls)
}

func TestGenerateCallsModelWhenMarkdownMissing(t *testing.T) {
	f := newFixture(testConfig())
	f.res.result.Markdown = ""

	_, err := f.orch.Process(context.Background(), "best coffee makers")
	require.NoError(t, err)

	assert.Equal(t, 1, f.gen.generateCalls)
	assert.Equal(t, 1, f.gen.renderCalls)
}

func TestResearchFailureStopsBeforePublish(t *testing.T) {
	f := newFixture(testConfig())
	f.res.err = retry.AsPermanent(errors.New("model rejected prompt"))

	j, err := f.orch.Process(context.Background(), "best coffee makers")
	require.Error(t, err)

	assert.Equal(t, job.StatusFailed, j.Status)
	assert.Equal(t, job.StageResearch, j.FailedStage)
	assert.NotEmpty(t, j.Error)
	assert.Equal(t, 0, f.pub.publishCalls)
	assert.Equal(t, 0, f.opt.calls)
}

func TestImageFailureDoesNotFailJob(t *testing.T) {
	f := newFixture(testConfig())
	f.images.err = retry.AsPermanent(errors.New("scrape blocked"))

	j, err := f.orch.Process(context.Background(), "best coffee makers")
	require.NoError(t, err)

	assert.Equal(t, job.StatusSucceeded, j.Status)
	require.Len(t, f.pub.published, 1)
	assert.Empty(t, f.pub.published[0].ImageURLs)

	res, ok := j.StageFor(job.StageImage)
	require.True(t, ok)
	assert.Equal(t, job.StageFailed, res.Outcome)
}

func TestMediaStagesDisabledByConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ImageMaxCount = 0
	cfg.VideoMaxCount = 0
	f := newFixture(cfg)

	j, err := f.orch.Process(context.Background(), "best coffee makers")
	require.NoError(t, err)

	assert.Equal(t, job.StatusSucceeded, j.Status)
	assert.Equal(t, 0, f.images.calls)
	assert.Equal(t, 0, f.videos.calls)
	_, recorded := j.StageFor(job.StageImage)
	assert.False(t, recorded)
}

func TestDuplicateKeywordSkipped(t *testing.T) {
	f := newFixture(testConfig())
	f.pub.exists = true

	j, err := f.orch.Process(context.Background(), "best coffee makers")
	require.NoError(t, err)

	assert.Equal(t, job.StatusSkipped, j.Status)
	assert.Equal(t, 0, f.res.calls)
	assert.Equal(t, 0, f.pub.publishCalls)
}

func TestDuplicateTitleSlugSkippedAfterResearch(t *testing.T) {
	f := newFixture(testConfig())
	// Only the slug derived from the researched title is taken remotely, so
	// the keyword-derived pre-check alone would miss it.
	f.pub.existsSlugs = map[string]bool{
		seo.Slug("best coffee makers", "Best Coffee Makers in 2025"): true,
	}

	j, err := f.orch.Process(context.Background(), "best coffee makers")
	require.NoError(t, err)

	assert.Equal(t, job.StatusSkipped, j.Status)
	assert.Equal(t, 1, f.res.calls)
	assert.Equal(t, 0, f.pub.publishCalls)
	assert.Equal(t, 0, f.images.calls)
}

func TestExecuteCacheHitBypassesCallAndRate(t *testing.T) {
	backend := cache.NewMemoryBackend()
	rate := ratelimit.NewController()
	rate.Configure("svc", 1, time.Hour)
	deps := &Deps{
		Cache: cache.NewStore(backend),
		Rate:  rate,
		Keys:  keys.NewRotator(keys.Options{}),
		Log:   logger.New("ExecutorTest"),
	}

	fp := cache.Fingerprint("research", "coffee")
	require.NoError(t, backend.Set(context.Background(), fp, "cached body", time.Hour))

	calls := 0
	var out string
	spec := StageSpec{
		Name:     "research",
		Service:  "svc",
		CacheTTL: time.Hour,
		Policy:   retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
	res, err := deps.Execute(context.Background(), spec, "coffee", &out, func(ctx context.Context, secret string) error {
		calls++
		return nil
	})
	require.NoError(t, err)

	assert.True(t, res.CacheHit)
	assert.Equal(t, 0, calls)
	assert.Equal(t, "cached body", out)

	// The single rate slot is untouched by the cached run.
	granted, _ := rate.TryAcquire("svc")
	assert.True(t, granted)
}

func TestExecuteStoresResultForNextRun(t *testing.T) {
	backend := cache.NewMemoryBackend()
	deps := &Deps{
		Cache: cache.NewStore(backend),
		Rate:  ratelimit.NewController(),
		Keys:  keys.NewRotator(keys.Options{}),
		Log:   logger.New("ExecutorTest"),
	}

	spec := StageSpec{
		Name:     "research",
		CacheTTL: time.Hour,
		Policy:   retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}

	calls := 0
	run := func() string {
		var out string
		_, err := deps.Execute(context.Background(), spec, "coffee", &out, func(ctx context.Context, secret string) error {
			calls++
			out = "fresh body"
			return nil
		})
		require.NoError(t, err)
		return out
	}

	assert.Equal(t, "fresh body", run())
	assert.Equal(t, "fresh body", run())
	assert.Equal(t, 1, calls)
}

func TestExecuteAllKeysExhaustedFailsFast(t *testing.T) {
	rotator := keys.NewRotator(keys.Options{MaxErrors: 1})
	rotator.Register(context.Background(), "svc", []string{"k1"})
	cred, err := rotator.Select("svc")
	require.NoError(t, err)
	rotator.Report(context.Background(), cred, retry.AsTransient(errors.New("boom")))

	deps := &Deps{
		Cache: cache.NewStore(cache.NewMemoryBackend()),
		Rate:  ratelimit.NewController(),
		Keys:  rotator,
		Log:   logger.New("ExecutorTest"),
	}

	calls := 0
	spec := StageSpec{
		Name:    "research",
		Service: "svc",
		Policy:  retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
	_, execErr := deps.Execute(context.Background(), spec, "coffee", nil, func(ctx context.Context, secret string) error {
		calls++
		return nil
	})

	require.Error(t, execErr)
	assert.True(t, errors.Is(execErr, keys.ErrNoKeyAvailable))
	assert.Equal(t, 0, calls)
}
