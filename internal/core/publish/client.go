package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"autopress/internal/logger"
	"autopress/internal/retry"
)

// Client talks to the WordPress REST API using application-password auth.
// Term lookups are cached per client since category/tag sets change rarely.
type Client struct {
	baseURL     string
	username    string
	appPassword string
	useYoast    bool

	http *http.Client
	log  *logger.Logger

	mu         sync.Mutex
	categories map[string]int
	tags       map[string]int
}

type Options struct {
	BaseURL     string
	Username    string
	AppPassword string
	UseYoastSEO bool
}

func NewClient(opts Options) *Client {
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		username:    opts.Username,
		appPassword: opts.AppPassword,
		useYoast:    opts.UseYoastSEO,
		http:        &http.Client{Timeout: 30 * time.Second},
		log:         logger.New("WordPressClient"),
	}
}

// UseYoast reports whether Yoast SEO meta fields should be attached to posts.
func (c *Client) UseYoast() bool { return c.useYoast }

func (c *Client) endpoint(p string) string { return c.baseURL + "/wp-json/wp/v2" + p }

// CheckConnection verifies the credentials against the authenticated user
// endpoint. Used by the check command before any batch starts.
func (c *Client) CheckConnection(ctx context.Context) error {
	var me struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, c.endpoint("/users/me"), &me); err != nil {
		return fmt.Errorf("publish target connection check failed: %w", err)
	}
	c.log.LogInfof("Connected to %s as %s (user %d)", c.baseURL, me.Name, me.ID)
	return nil
}

// GetOrCreateCategory resolves a category name to its term ID.
func (c *Client) GetOrCreateCategory(ctx context.Context, name string) (int, error) {
	return c.getOrCreateTerm(ctx, "/categories", name, &c.categories)
}

// GetOrCreateTag resolves a tag name to its term ID.
func (c *Client) GetOrCreateTag(ctx context.Context, name string) (int, error) {
	return c.getOrCreateTerm(ctx, "/tags", name, &c.tags)
}

func (c *Client) getOrCreateTerm(ctx context.Context, kind, name string, cache *map[string]int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if *cache == nil {
		terms, err := c.loadTerms(ctx, kind)
		if err != nil {
			return 0, err
		}
		*cache = terms
	}
	if id, ok := (*cache)[strings.ToLower(name)]; ok {
		return id, nil
	}

	id, err := c.createTerm(ctx, kind, name)
	if err != nil {
		return 0, err
	}
	(*cache)[strings.ToLower(name)] = id
	return id, nil
}

func (c *Client) loadTerms(ctx context.Context, kind string) (map[string]int, error) {
	var terms []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, c.endpoint(kind)+"?per_page=100", &terms); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", strings.Trim(kind, "/"), err)
	}
	out := make(map[string]int, len(terms))
	for _, t := range terms {
		out[strings.ToLower(t.Name)] = t.ID
	}
	return out, nil
}

func (c *Client) createTerm(ctx context.Context, kind, name string) (int, error) {
	var created struct {
		ID int `json:"id"`
	}
	payload := map[string]string{"name": name}
	if err := c.postJSON(ctx, c.endpoint(kind), payload, &created); err != nil {
		return 0, fmt.Errorf("failed to create %s %q: %w", strings.Trim(kind, "/s"), name, err)
	}
	c.log.LogDebugf("Created %s %q with ID %d", strings.Trim(kind, "/s"), name, created.ID)
	return created.ID, nil
}

// UploadMedia downloads an image and re-uploads it to the media library,
// returning the attachment ID.
func (c *Client) UploadMedia(ctx context.Context, imageURL, altText string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return 0, retry.AsPermanent(fmt.Errorf("invalid image URL %s: %w", imageURL, err))
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, retry.AsTransient(fmt.Errorf("failed to download image: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, retry.AsPermanent(fmt.Errorf("image download returned status %d", resp.StatusCode))
	}

	filename := mediaFilename(imageURL)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return 0, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, io.LimitReader(resp.Body, 16<<20)); err != nil {
		return 0, retry.AsTransient(fmt.Errorf("failed to read image body: %w", err))
	}
	if altText != "" {
		writer.WriteField("alt_text", altText)
	}
	writer.Close()

	upload, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/media"), &buf)
	if err != nil {
		return 0, err
	}
	upload.SetBasicAuth(c.username, c.appPassword)
	upload.Header.Set("Content-Type", writer.FormDataContentType())
	upload.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))

	var media struct {
		ID int `json:"id"`
	}
	if err := c.doJSON(upload, &media); err != nil {
		return 0, fmt.Errorf("media upload failed: %w", err)
	}
	c.log.LogDebugf("Uploaded media %s as attachment %d", filename, media.ID)
	return media.ID, nil
}

// Post is the remote post record returned on creation.
type Post struct {
	ID   int    `json:"id"`
	Link string `json:"link"`
}

// PostRequest is the create-post payload.
type PostRequest struct {
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	Status        string            `json:"status"`
	Slug          string            `json:"slug,omitempty"`
	Excerpt       string            `json:"excerpt,omitempty"`
	Categories    []int             `json:"categories,omitempty"`
	Tags          []int             `json:"tags,omitempty"`
	FeaturedMedia int               `json:"featured_media,omitempty"`
	Meta          map[string]string `json:"meta,omitempty"`
}

// CreatePost publishes a new post and returns its remote record.
func (c *Client) CreatePost(ctx context.Context, req PostRequest) (*Post, error) {
	if req.Status == "" {
		req.Status = "publish"
	}
	var post Post
	if err := c.postJSON(ctx, c.endpoint("/posts"), req, &post); err != nil {
		return nil, fmt.Errorf("post creation failed: %w", err)
	}
	return &post, nil
}

// FindPostBySlug reports whether a post with the slug already exists remotely.
func (c *Client) FindPostBySlug(ctx context.Context, slug string) (bool, error) {
	var posts []Post
	endpoint := c.endpoint("/posts") + "?slug=" + url.QueryEscape(slug) + "&status=publish"
	if err := c.getJSON(ctx, endpoint, &posts); err != nil {
		return false, err
	}
	return len(posts) > 0, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.appPassword)
	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.appPassword)
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return retry.AsTransient(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return retry.AsTransient(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return retry.AsPermanent(fmt.Errorf("unexpected response shape: %w", err))
	}
	return nil
}

// classifyStatus tags HTTP failures so the retry policy can branch without
// string matching.
func classifyStatus(status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	err := fmt.Errorf("status %d: %s", status, detail)
	switch {
	case status == http.StatusTooManyRequests:
		return retry.AsRateLimited(err, 0)
	case status >= 500:
		return retry.AsTransient(err)
	default:
		return retry.AsPermanent(err)
	}
}

func mediaFilename(imageURL string) string {
	if u, err := url.Parse(imageURL); err == nil {
		if name := path.Base(u.Path); name != "." && name != "/" && strings.Contains(name, ".") {
			return name
		}
	}
	return fmt.Sprintf("image_%s.jpg", time.Now().Format("20060102_150405"))
}
