package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"postkeeper/app/models"
)

const defaultTimeout = 10 * time.Second

// ErrUpstream marks a transport failure talking to the posts service.
var ErrUpstream = errors.New("posts service unreachable")

// Response is an upstream reply relayed as is.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Client is a typed client for the posts service API.
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient returns a client for the posts service at baseURL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (c *Client) ListPosts(ctx context.Context, page, perPage int) (*Response, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
	path := "/api/posts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) CreatePost(ctx context.Context, in models.PostInput) (*Response, error) {
	return c.do(ctx, http.MethodPost, "/api/posts", in)
}

func (c *Client) GetPost(ctx context.Context, id string) (*Response, error) {
	return c.do(ctx, http.MethodGet, postPath(id), nil)
}

func (c *Client) UpdatePost(ctx context.Context, id string, in models.PostInput) (*Response, error) {
	return c.do(ctx, http.MethodPut, postPath(id), in)
}

func (c *Client) DeletePost(ctx context.Context, id string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, postPath(id), nil)
}

func (c *Client) AuditPost(ctx context.Context, id string) (*Response, error) {
	return c.do(ctx, http.MethodGet, postPath(id)+"/audit", nil)
}

func (c *Client) ListComments(ctx context.Context, postID string) (*Response, error) {
	return c.do(ctx, http.MethodGet, postPath(postID)+"/comments", nil)
}

func (c *Client) CreateComment(ctx context.Context, postID string, in models.CommentInput) (*Response, error) {
	return c.do(ctx, http.MethodPost, postPath(postID)+"/comments", in)
}

func (c *Client) GetComment(ctx context.Context, postID, commentID string) (*Response, error) {
	return c.do(ctx, http.MethodGet, commentPath(postID, commentID), nil)
}

func (c *Client) UpdateComment(ctx context.Context, postID, commentID string, patch models.CommentPatch) (*Response, error) {
	return c.do(ctx, http.MethodPatch, commentPath(postID, commentID), patch)
}

func (c *Client) DeleteComment(ctx context.Context, postID, commentID string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, commentPath(postID, commentID), nil)
}

func (c *Client) Sync(ctx context.Context) (*Response, error) {
	return c.do(ctx, http.MethodPost, "/api/sync", nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUpstream, err)
	}
	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

func postPath(id string) string {
	return "/api/posts/" + url.PathEscape(id)
}

func commentPath(postID, commentID string) string {
	return postPath(postID) + "/comments/" + url.PathEscape(commentID)
}
