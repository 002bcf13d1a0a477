package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dghubble/oauth1"
	"go.uber.org/zap"
)

const (
	MaxTweetChars = 280
	tweetCutAt    = 277
)

// PostResult describes one posting attempt.
type PostResult struct {
	Success   bool      `json:"success"`
	DryRun    bool      `json:"dry_run"`
	ID        string    `json:"id,omitempty"`
	Text      string    `json:"text"`
	Length    int       `json:"length"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Poster publishes text with an optional media attachment.
type Poster interface {
	Post(ctx context.Context, text, mediaID string) (*PostResult, error)
	UploadMedia(ctx context.Context, path string) (string, error)
}

type TwitterUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// TwitterClient talks to the X API with OAuth 1.0a user context. Build it
// once and share it.
type TwitterClient struct {
	http      *http.Client
	apiBase   string
	uploadURL string
	dryRun    bool
	logger    *zap.Logger
}

var _ Poster = (*TwitterClient)(nil)

func NewTwitterClient(ctx context.Context, cfg TwitterConfig, dryRun bool, logger *zap.Logger) (*TwitterClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("twitter api key: %w", ErrMissingCredentials)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessTokenSecret)

	return &TwitterClient{
		http:      config.Client(ctx, token),
		apiBase:   strings.TrimRight(cfg.APIBaseURL, "/"),
		uploadURL: strings.TrimRight(cfg.UploadBaseURL, "/") + "/1.1/media/upload.json",
		dryRun:    dryRun,
		logger:    logger.Named("twitter"),
	}, nil
}

// TruncateTweet cuts text above 280 characters to 277 plus "...".
func TruncateTweet(text string) string {
	if utf8.RuneCountInString(text) <= MaxTweetChars {
		return text
	}
	return string([]rune(text)[:tweetCutAt]) + "..."
}

func (c *TwitterClient) Post(ctx context.Context, text, mediaID string) (*PostResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("post: empty text")
	}

	text = TruncateTweet(text)
	result := &PostResult{
		DryRun:    c.dryRun,
		Text:      text,
		Length:    utf8.RuneCountInString(text),
		Timestamp: time.Now(),
	}

	if c.dryRun {
		c.logger.Info("dry run, not posting", zap.Int("length", result.Length))
		result.Success = true
		return result, nil
	}

	payload := map[string]any{"text": text}
	if mediaID != "" {
		payload["media"] = map[string]any{"media_ids": []string{mediaID}}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal tweet: %w", err)
	}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, c.apiBase+"/2/tweets", "application/json", bytes.NewReader(body), &resp); err != nil {
		result.Error = err.Error()
		c.logger.Error("post failed", zap.Error(err))
		return result, fmt.Errorf("%w: %v", ErrPostFailed, err)
	}

	result.Success = true
	result.ID = resp.Data.ID
	c.logger.Info("posted", zap.String("id", result.ID))
	return result, nil
}

// UploadMedia sends an image through the v1.1 media endpoint and returns
// its media id. In dry-run mode nothing is uploaded.
func (c *TwitterClient) UploadMedia(ctx context.Context, path string) (string, error) {
	if c.dryRun {
		return "", nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open media: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("create form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy media: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	var resp struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := c.do(ctx, http.MethodPost, c.uploadURL, mw.FormDataContentType(), &buf, &resp); err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	if resp.MediaIDString == "" {
		return "", fmt.Errorf("upload media: no media id in response")
	}

	c.logger.Info("media uploaded", zap.String("media_id", resp.MediaIDString))
	return resp.MediaIDString, nil
}

func (c *TwitterClient) VerifyCredentials(ctx context.Context) (*TwitterUser, error) {
	var resp struct {
		Data TwitterUser `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, c.apiBase+"/2/users/me", "", nil, &resp); err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}
	return &resp.Data, nil
}

func (c *TwitterClient) do(ctx context.Context, method, url, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// DryRunPoster stands in for a real client when no credentials are set and
// nothing is meant to be published.
type DryRunPoster struct{}

func (DryRunPoster) Post(_ context.Context, text, _ string) (*PostResult, error) {
	text = TruncateTweet(text)
	return &PostResult{
		Success:   true,
		DryRun:    true,
		Text:      text,
		Length:    utf8.RuneCountInString(text),
		Timestamp: time.Now(),
	}, nil
}

func (DryRunPoster) UploadMedia(context.Context, string) (string, error) {
	return "", nil
}
