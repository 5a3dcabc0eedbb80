package job

import "time"

// Status tracks a keyword job through the pipeline state machine.
type Status string

const (
	StatusPending     Status = "pending"
	StatusResearching Status = "researching"
	StatusGenerating  Status = "generating"
	StatusOptimizing  Status = "optimizing"
	StatusEnriching   Status = "enriching"
	StatusPublishing  Status = "publishing"
	StatusSucceeded   Status = "succeeded"
	StatusFailed      Status = "failed"
	StatusSkipped     Status = "skipped"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// Stage names. Each maps to one external call type.
const (
	StageResearch = "research"
	StageGenerate = "generate"
	StageSEO      = "seo"
	StageImage    = "image"
	StageVideo    = "video"
	StagePublish  = "publish"
)

// StageOutcome is the status of one recorded stage run.
type StageOutcome string

const (
	StageSucceeded StageOutcome = "succeeded"
	StageFailed    StageOutcome = "failed"
)

// StageResult records one stage run for a job. Immutable once appended.
type StageResult struct {
	Stage    string        `json:"stage"`
	Outcome  StageOutcome  `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	CacheHit bool          `json:"cache_hit"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Article is the assembled post handed to the publish stage. It is only
// built once every required stage has succeeded and is never sent partially.
type Article struct {
	Title           string   `json:"title"`
	Body            string   `json:"body"`
	Slug            string   `json:"slug"`
	Excerpt         string   `json:"excerpt"`
	CategoryIDs     []int    `json:"category_ids"`
	TagIDs          []int    `json:"tag_ids"`
	MetaTitle       string   `json:"meta_title"`
	MetaDescription string   `json:"meta_description"`
	FocusKeyword    string   `json:"focus_keyword"`
	ImageURLs       []string `json:"image_urls,omitempty"`
	VideoEmbedURL   string   `json:"video_embed_url,omitempty"`
}

// Job tracks one keyword through all pipeline stages.
type Job struct {
	ID          string        `json:"job_id"`
	Keyword     string        `json:"keyword"`
	Fingerprint string        `json:"fingerprint"`
	Status      Status        `json:"status"`
	Stages      []StageResult `json:"stages,omitempty"`
	FailedStage string        `json:"failed_stage,omitempty"`
	Error       string        `json:"error,omitempty"`
	PostID      int           `json:"post_id,omitempty"`
	Permalink   string        `json:"permalink,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	FinishedAt  time.Time     `json:"finished_at,omitempty"`
}

// Record appends a stage result to the job history.
func (j *Job) Record(res StageResult) { j.Stages = append(j.Stages, res) }

// StageFor returns the recorded result for a stage, if any.
func (j *Job) StageFor(stage string) (StageResult, bool) {
	for _, s := range j.Stages {
		if s.Stage == stage {
			return s, true
		}
	}
	return StageResult{}, false
}
