package pipeline

import (
	"context"
	"fmt"
	"time"

	"autopress/internal/cache"
	"autopress/internal/config"
	"autopress/internal/core/job"
	"autopress/internal/core/publish"
	"autopress/internal/core/research"
	"autopress/internal/core/seo"
	"autopress/internal/logger"
	"autopress/internal/retry"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StageConfig carries the per-stage knobs the orchestrator needs.
type StageConfig struct {
	CacheTTL      time.Duration
	MediaCacheTTL time.Duration

	GenerateAttempts int
	PublishAttempts  int
	LookupAttempts   int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	ImageMaxCount int
	VideoMaxCount int
}

// Collaborator contracts, satisfied by the stage services.
type (
	JobStore interface {
		Create(ctx context.Context, keyword, fingerprint string) (*job.Job, error)
		Update(ctx context.Context, j *job.Job) error
	}
	Researcher interface {
		Research(ctx context.Context, secret, keyword string) (*research.Result, error)
	}
	Generator interface {
		Generate(ctx context.Context, secret, keyword string, data research.Data) (string, error)
		Render(keyword string, data research.Data, markdown string) (string, error)
	}
	Optimizer interface {
		Prepare(ctx context.Context, keyword, title, bodyHTML string, data research.Data) (*seo.Metadata, error)
	}
	ImageSearcher interface {
		Search(ctx context.Context, keyword string, maxImages int) ([]string, error)
	}
	VideoSearcher interface {
		Search(ctx context.Context, keyword string) (string, error)
	}
	Publisher interface {
		Exists(ctx context.Context, keyword, slug string) bool
		Publish(ctx context.Context, keyword string, art job.Article) (*publish.Result, error)
	}
)

// Orchestrator drives one keyword through the full stage sequence. Stages
// are strictly ordered because each consumes the previous one's output.
type Orchestrator struct {
	deps     *Deps
	jobs     JobStore
	research Researcher
	generate Generator
	seo      Optimizer
	images   ImageSearcher
	videos   VideoSearcher
	publish  Publisher
	cfg      StageConfig
	log      *logger.Logger
}

func NewOrchestrator(
	deps *Deps,
	jobs JobStore,
	researchSvc Researcher,
	generateSvc Generator,
	seoSvc Optimizer,
	images ImageSearcher,
	videos VideoSearcher,
	publishSvc Publisher,
	cfg StageConfig,
) *Orchestrator {
	return &Orchestrator{
		deps:     deps,
		jobs:     jobs,
		research: researchSvc,
		generate: generateSvc,
		seo:      seoSvc,
		images:   images,
		videos:   videos,
		publish:  publishSvc,
		cfg:      cfg,
		log:      logger.New("Orchestrator"),
	}
}

// Process runs the pipeline for one keyword and returns the terminal job.
// The returned error is the cause for a Failed job, nil for Succeeded and
// Skipped.
func (o *Orchestrator) Process(ctx context.Context, keyword string) (*job.Job, error) {
	j, err := o.jobs.Create(ctx, keyword, cache.Normalize(keyword))
	if err != nil {
		o.log.LogWarnf("Job persistence unavailable for %q: %v", keyword, err)
	}
	return o.ProcessJob(ctx, j)
}

// ProcessJob runs the pipeline for an already-created job. Used by the task
// worker, which registers the job at enqueue time.
func (o *Orchestrator) ProcessJob(ctx context.Context, j *job.Job) (*job.Job, error) {
	keyword := j.Keyword

	// Duplicate pre-check before any paid call.
	if o.publish.Exists(ctx, keyword, seo.Slug(keyword, "")) {
		o.log.LogInfof("Keyword %q already published, skipping", keyword)
		j.Status = job.StatusSkipped
		o.update(ctx, j)
		return j, nil
	}

	res, err := o.runResearch(ctx, j, keyword)
	if err != nil {
		return o.fail(ctx, j, job.StageResearch, err)
	}

	bodyHTML, err := o.runGenerate(ctx, j, keyword, res)
	if err != nil {
		return o.fail(ctx, j, job.StageGenerate, err)
	}

	title := articleTitle(keyword, res.Data)
	meta, err := o.runSEO(ctx, j, keyword, title, bodyHTML, res.Data)
	if err != nil {
		return o.fail(ctx, j, job.StageSEO, err)
	}

	// The pre-check could only probe the keyword-derived slug; the post will
	// publish under the title-derived one, so check that too now it is known.
	if meta.Slug != "" && o.publish.Exists(ctx, keyword, meta.Slug) {
		o.log.LogInfof("Slug %q already published for %q, skipping", meta.Slug, keyword)
		j.Status = job.StatusSkipped
		o.update(ctx, j)
		return j, nil
	}

	imageURLs, videoEmbed := o.runEnrich(ctx, j, keyword)

	art := assembleArticle(title, bodyHTML, meta, imageURLs, videoEmbed)

	result, err := o.runPublish(ctx, j, keyword, art)
	if err != nil {
		return o.fail(ctx, j, job.StagePublish, err)
	}

	j.Status = job.StatusSucceeded
	j.PostID = result.PostID
	j.Permalink = result.Permalink
	o.update(ctx, j)
	o.log.LogSuccessf("Job %s succeeded for %q (post %d)", j.ID, keyword, result.PostID)
	return j, nil
}

func (o *Orchestrator) runResearch(ctx context.Context, j *job.Job, keyword string) (*research.Result, error) {
	o.transition(ctx, j, job.StatusResearching)

	var res research.Result
	spec := StageSpec{
		Name:     job.StageResearch,
		Service:  config.ServiceGemini,
		Required: true,
		CacheTTL: o.cfg.CacheTTL,
		Policy:   o.policy(o.cfg.GenerateAttempts),
	}
	stageRes, err := o.deps.Execute(ctx, spec, keyword, &res, func(ctx context.Context, secret string) error {
		out, err := o.research.Research(ctx, secret, keyword)
		if err != nil {
			return err
		}
		res = *out
		return nil
	})
	j.Record(stageRes)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (o *Orchestrator) runGenerate(ctx context.Context, j *job.Job, keyword string, res *research.Result) (string, error) {
	o.transition(ctx, j, job.StatusGenerating)

	spec := StageSpec{
		Name:     job.StageGenerate,
		Required: true,
		CacheTTL: o.cfg.CacheTTL,
		Policy:   o.policy(o.cfg.GenerateAttempts),
	}
	// The combined research call usually brings the markdown along; only a
	// research-only response needs another model round trip.
	if res.Markdown == "" {
		spec.Service = config.ServiceGemini
	}

	var bodyHTML string
	stageRes, err := o.deps.Execute(ctx, spec, keyword, &bodyHTML, func(ctx context.Context, secret string) error {
		markdown := res.Markdown
		if markdown == "" {
			var genErr error
			markdown, genErr = o.generate.Generate(ctx, secret, keyword, res.Data)
			if genErr != nil {
				return genErr
			}
		}
		html, renderErr := o.generate.Render(keyword, res.Data, markdown)
		if renderErr != nil {
			// A response we cannot render will not get better on retry.
			return retry.AsPermanent(renderErr)
		}
		bodyHTML = html
		return nil
	})
	j.Record(stageRes)
	if err != nil {
		return "", err
	}
	return bodyHTML, nil
}

func (o *Orchestrator) runSEO(ctx context.Context, j *job.Job, keyword, title, bodyHTML string, data research.Data) (*seo.Metadata, error) {
	o.transition(ctx, j, job.StatusOptimizing)

	var meta seo.Metadata
	spec := StageSpec{
		Name:     job.StageSEO,
		Service:  config.ServiceWordPress,
		Required: true,
		CacheTTL: o.cfg.CacheTTL,
		Policy:   o.policy(o.cfg.LookupAttempts),
	}
	stageRes, err := o.deps.Execute(ctx, spec, keyword, &meta, func(ctx context.Context, _ string) error {
		out, err := o.seo.Prepare(ctx, keyword, title, bodyHTML, data)
		if err != nil {
			return err
		}
		meta = *out
		return nil
	})
	j.Record(stageRes)
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// runEnrich runs the optional media lookups. Failures are recorded but never
// fail the job; the article just ships without that media.
func (o *Orchestrator) runEnrich(ctx context.Context, j *job.Job, keyword string) ([]string, string) {
	o.transition(ctx, j, job.StatusEnriching)

	var imageURLs []string
	if o.cfg.ImageMaxCount > 0 {
		spec := StageSpec{
			Name:     job.StageImage,
			Service:  config.ServiceImage,
			CacheTTL: o.cfg.MediaCacheTTL,
			Policy:   o.policy(o.cfg.LookupAttempts),
		}
		stageRes, err := o.deps.Execute(ctx, spec, keyword, &imageURLs, func(ctx context.Context, _ string) error {
			urls, searchErr := o.images.Search(ctx, keyword, o.cfg.ImageMaxCount)
			if searchErr != nil {
				return searchErr
			}
			imageURLs = urls
			return nil
		})
		j.Record(stageRes)
		if err != nil {
			o.log.LogWarnf("Image lookup failed for %q, continuing without images: %v", keyword, err)
		}
	}

	var videoEmbed string
	if o.cfg.VideoMaxCount > 0 {
		spec := StageSpec{
			Name:     job.StageVideo,
			Service:  config.ServiceVideo,
			CacheTTL: o.cfg.MediaCacheTTL,
			Policy:   o.policy(o.cfg.LookupAttempts),
		}
		stageRes, err := o.deps.Execute(ctx, spec, keyword, &videoEmbed, func(ctx context.Context, _ string) error {
			embed, searchErr := o.videos.Search(ctx, keyword)
			if searchErr != nil {
				return searchErr
			}
			videoEmbed = embed
			return nil
		})
		j.Record(stageRes)
		if err != nil {
			o.log.LogWarnf("Video lookup failed for %q, continuing without video: %v", keyword, err)
		}
	}

	return imageURLs, videoEmbed
}

func (o *Orchestrator) runPublish(ctx context.Context, j *job.Job, keyword string, art job.Article) (*publish.Result, error) {
	o.transition(ctx, j, job.StatusPublishing)

	var result *publish.Result
	spec := StageSpec{
		Name:     job.StagePublish,
		Service:  config.ServiceWordPress,
		Required: true,
		// Publishing is a remote mutation, never served from cache.
		CacheTTL: 0,
		Policy:   o.policy(o.cfg.PublishAttempts),
	}
	stageRes, err := o.deps.Execute(ctx, spec, keyword, nil, func(ctx context.Context, _ string) error {
		out, pubErr := o.publish.Publish(ctx, keyword, art)
		if pubErr != nil {
			return pubErr
		}
		result = out
		return nil
	})
	j.Record(stageRes)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) policy(attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: attempts,
		BaseDelay:   o.cfg.RetryBaseDelay,
		MaxDelay:    o.cfg.RetryMaxDelay,
	}
}

func (o *Orchestrator) transition(ctx context.Context, j *job.Job, status job.Status) {
	j.Status = status
	o.update(ctx, j)
}

func (o *Orchestrator) update(ctx context.Context, j *job.Job) {
	if err := o.jobs.Update(ctx, j); err != nil {
		o.log.LogWarnf("Failed to persist job %s: %v", j.ID, err)
	}
}

func (o *Orchestrator) fail(ctx context.Context, j *job.Job, stage string, cause error) (*job.Job, error) {
	j.Status = job.StatusFailed
	j.FailedStage = stage
	j.Error = cause.Error()
	o.update(ctx, j)
	o.log.LogErrorf("Job %s failed at %s for %q: %v", j.ID, stage, j.Keyword, cause)
	return j, fmt.Errorf("stage %s failed: %w", stage, cause)
}

func articleTitle(keyword string, data research.Data) string {
	if data.SuggestedTitle != "" {
		return data.SuggestedTitle
	}
	return fmt.Sprintf("%s: Complete Guide and Review", cases.Title(language.English).String(keyword))
}

// assembleArticle builds the final immutable article handed to publish.
func assembleArticle(title, bodyHTML string, meta *seo.Metadata, imageURLs []string, videoEmbed string) job.Article {
	body := bodyHTML
	if videoEmbed != "" {
		body += fmt.Sprintf(
			`<figure class="wp-block-embed is-type-video"><div class="wp-block-embed__wrapper"><iframe src="%s" width="800" height="450" frameborder="0" allowfullscreen></iframe></div></figure>`,
			videoEmbed)
	}
	return job.Article{
		Title:           title,
		Body:            body,
		Slug:            meta.Slug,
		Excerpt:         meta.Excerpt,
		CategoryIDs:     meta.CategoryIDs,
		TagIDs:          meta.TagIDs,
		MetaTitle:       meta.MetaTitle,
		MetaDescription: meta.MetaDescription,
		FocusKeyword:    meta.FocusKeyword,
		ImageURLs:       imageURLs,
		VideoEmbedURL:   videoEmbed,
	}
}
