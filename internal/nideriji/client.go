package nideriji

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default service locations and client identification.
const (
	DefaultBaseURL   = "https://nideriji.cn"
	DefaultUploadURL = "https://f.nideriji.cn"
	DefaultUserAgent = "OhApp/3.6.12 Platform/Android"
)

// Options configures the HTTP side of a Client.
type Options struct {
	BaseURL       string
	UploadURL     string
	UserAgent     string
	Timeout       time.Duration
	UploadTimeout time.Duration
	// Transport overrides the underlying round tripper. The default ignores
	// proxy environment variables.
	Transport http.RoundTripper
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.UploadURL == "" {
		o.UploadURL = DefaultUploadURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	o.UploadURL = strings.TrimRight(o.UploadURL, "/")
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.UploadTimeout <= 0 {
		o.UploadTimeout = 30 * time.Second
	}
	if o.Transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.Proxy = nil
		o.Transport = t
	}
	return o
}

// Client is an authenticated nideriji API client. It is not safe for
// concurrent use; a migration drives it strictly sequentially.
type Client struct {
	httpClient *http.Client
	opts       Options
	userID     string

	// index maps a date to its document id; loaded on first lookup.
	index map[string]string
}

// ID is an identifier the service sends either as a JSON number or a string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decoding id %s: %w", b, err)
	}
	*id = ID(n.String())
	return nil
}

// postForm posts form to endpoint and decodes a JSON reply into out (if
// non-nil). Non-2xx statuses are errors.
func postForm(ctx context.Context, hc *http.Client, endpoint string, form url.Values, timeout time.Duration, out any) error {
	return post(ctx, hc, endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), timeout, out)
}

func post(ctx context.Context, hc *http.Client, endpoint, contentType string, body io.Reader, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("nideriji API error %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", endpoint, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// UserID returns the id of the logged-in account.
func (c *Client) UserID() string { return c.userID }

type uploadResp struct {
	ImageID ID `json:"image_id"`
}

// UploadImage uploads the file at path and returns the service's image id.
func (c *Client) UploadImage(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(path)))
	h.Set("Content-Type", imageContentType(path, data))
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("creating multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("writing multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	var ur uploadResp
	if err := post(ctx, c.httpClient, c.opts.UploadURL+"/api/upload_image/", mw.FormDataContentType(), &body, c.opts.UploadTimeout, &ur); err != nil {
		return "", err
	}
	if ur.ImageID == "" {
		return "", fmt.Errorf("upload of %s returned no image id", filepath.Base(path))
	}
	return string(ur.ImageID), nil
}

func imageContentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); strings.HasPrefix(ct, "image/") {
		return ct
	}
	if ct := http.DetectContentType(data); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}

// WriteDocument creates the diary for date, or updates document id when id
// is non-empty.
func (c *Client) WriteDocument(ctx context.Context, date, content, id string) error {
	form := url.Values{
		"content": {content},
		"date":    {date},
	}
	if id != "" {
		form.Set("id", id)
	}
	return postForm(ctx, c.httpClient, c.opts.BaseURL+"/api/write/", form, c.opts.Timeout, nil)
}

// DocumentSummary is one entry of the sync listing.
type DocumentSummary struct {
	ID          ID     `json:"id"`
	CreatedDate string `json:"createddate"`
	Title       string `json:"title"`
}

type syncResp struct {
	Diaries []DocumentSummary `json:"diaries"`
}

// ListDocuments returns every document of the account via a full sync.
func (c *Client) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	form := url.Values{
		"user_config_ts": {"0"},
		"diaries_ts":     {"0"},
		"readmark_ts":    {"0"},
		"images_ts":      {"0"},
	}
	var sr syncResp
	if err := postForm(ctx, c.httpClient, c.opts.BaseURL+"/api/v2/sync/", form, c.opts.Timeout, &sr); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return sr.Diaries, nil
}

// FindDocument returns the id of the document written for date. The listing
// is fetched once per Client and indexed by date.
func (c *Client) FindDocument(ctx context.Context, date string) (string, bool, error) {
	if c.index == nil {
		docs, err := c.ListDocuments(ctx)
		if err != nil {
			return "", false, err
		}
		index := make(map[string]string, len(docs))
		for _, d := range docs {
			if _, seen := index[d.CreatedDate]; !seen {
				index[d.CreatedDate] = string(d.ID)
			}
		}
		c.index = index
	}
	id, ok := c.index[date]
	return id, ok, nil
}

type fullDiaryResp struct {
	Diaries []struct {
		ID      ID     `json:"id"`
		Content string `json:"content"`
	} `json:"diaries"`
}

// FetchContent returns the full content of document id.
func (c *Client) FetchContent(ctx context.Context, id string) (string, error) {
	form := url.Values{"diary_ids": {id}}
	var fr fullDiaryResp
	endpoint := c.opts.BaseURL + "/api/diary/all_by_ids/" + url.PathEscape(c.userID) + "/"
	if err := postForm(ctx, c.httpClient, endpoint, form, c.opts.Timeout, &fr); err != nil {
		return "", fmt.Errorf("fetching document %s: %w", id, err)
	}
	if len(fr.Diaries) == 0 {
		return "", fmt.Errorf("document %s not returned by the service", id)
	}
	return fr.Diaries[0].Content, nil
}
