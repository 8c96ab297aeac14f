package xclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"flockrank/internal/metrics"
	"flockrank/internal/model"
)

// Client defines the platform API calls the sync engine needs.
type Client interface {
	// Me resolves the authenticated account's own identity.
	Me(ctx context.Context) (model.User, error)
	// FollowerPage returns one page of followers plus the next cursor token.
	// An empty cursor requests the first page; an empty NextToken in the
	// result means the provider has no further pages.
	FollowerPage(ctx context.Context, userID, cursor string) (FollowerPage, error)
	// RecentPosts returns up to limit most recent posts by the user.
	RecentPosts(ctx context.Context, userID string, limit int) ([]model.Post, error)
	// Likers returns one page of users who liked the post.
	Likers(ctx context.Context, postID string) ([]model.User, error)
	// Resharers returns one page of users who reposted the post.
	Resharers(ctx context.Context, postID string) ([]model.User, error)
}

// FollowerPage is a single page of the follower list.
type FollowerPage struct {
	Users     []model.User
	NextToken string
}

// HTTPClient is a bearer-token client for the platform API v2.
type HTTPClient struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
}

func NewHTTPClient(baseURL, bearerToken string) *HTTPClient {
	if baseURL == "" {
		baseURL = "https://api.twitter.com/2"
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		limiter:     newDefaultLimiter(),
		maxAttempts: getEnvInt("X_API_MAX_ATTEMPTS", 5),
		baseBackoff: time.Duration(getEnvInt("X_API_BASE_BACKOFF_MS", 500)) * time.Millisecond,
	}
}

type userJSON struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
}

func (u userJSON) toModel() model.User {
	return model.User{ID: u.ID, Handle: u.Username, Name: u.Name, AvatarURL: u.ProfileImageURL}
}

func (c *HTTPClient) Me(ctx context.Context) (model.User, error) {
	var raw struct {
		Data userJSON `json:"data"`
	}
	q := url.Values{}
	q.Set("user.fields", "profile_image_url")
	if err := c.getJSON(ctx, "/users/me", q, &raw); err != nil {
		return model.User{}, err
	}
	return raw.Data.toModel(), nil
}

func (c *HTTPClient) FollowerPage(ctx context.Context, userID, cursor string) (FollowerPage, error) {
	var raw struct {
		Data []userJSON `json:"data"`
		Meta struct {
			ResultCount int    `json:"result_count"`
			NextToken   string `json:"next_token"`
		} `json:"meta"`
	}
	q := url.Values{}
	q.Set("max_results", "1000")
	q.Set("user.fields", "profile_image_url")
	if cursor != "" {
		q.Set("pagination_token", cursor)
	}
	path := fmt.Sprintf("/users/%s/followers", url.PathEscape(userID))
	if err := c.getJSON(ctx, path, q, &raw); err != nil {
		return FollowerPage{}, err
	}
	page := FollowerPage{NextToken: raw.Meta.NextToken}
	page.Users = make([]model.User, 0, len(raw.Data))
	for _, d := range raw.Data {
		page.Users = append(page.Users, d.toModel())
	}
	return page, nil
}

func (c *HTTPClient) RecentPosts(ctx context.Context, userID string, limit int) ([]model.Post, error) {
	var raw struct {
		Data []struct {
			ID        string    `json:"id"`
			Text      string    `json:"text"`
			AuthorID  string    `json:"author_id"`
			CreatedAt time.Time `json:"created_at"`
		} `json:"data"`
	}
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(clamp(limit, 5, 100)))
	q.Set("tweet.fields", "created_at,author_id")
	path := fmt.Sprintf("/users/%s/tweets", url.PathEscape(userID))
	if err := c.getJSON(ctx, path, q, &raw); err != nil {
		return nil, err
	}
	out := make([]model.Post, 0, len(raw.Data))
	for _, d := range raw.Data {
		author := d.AuthorID
		if author == "" {
			author = userID
		}
		out = append(out, model.Post{ID: d.ID, AuthorID: author, Text: d.Text, CreatedAt: d.CreatedAt})
	}
	return out, nil
}

func (c *HTTPClient) Likers(ctx context.Context, postID string) ([]model.User, error) {
	return c.engagingUsers(ctx, fmt.Sprintf("/tweets/%s/liking_users", url.PathEscape(postID)))
}

func (c *HTTPClient) Resharers(ctx context.Context, postID string) ([]model.User, error) {
	return c.engagingUsers(ctx, fmt.Sprintf("/tweets/%s/retweeted_by", url.PathEscape(postID)))
}

// engagingUsers fetches a single provider-capped page of users for a post.
// The provider does not guarantee completeness beyond its page cap; that page
// is the ground truth for this sync.
func (c *HTTPClient) engagingUsers(ctx context.Context, path string) ([]model.User, error) {
	var raw struct {
		Data []userJSON `json:"data"`
	}
	q := url.Values{}
	q.Set("user.fields", "profile_image_url")
	if err := c.getJSON(ctx, path, q, &raw); err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(raw.Data))
	for _, d := range raw.Data {
		out = append(out, d.toModel())
	}
	return out, nil
}

// getJSON is the single authenticated-request primitive: builds the request,
// applies the limiter, retries transient statuses, maps terminal statuses to
// APIError kinds, and decodes the body.
func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &APIError{Kind: RequestFailed, Endpoint: path, Err: err}
	}
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	req.Header.Set("Accept", "application/json")
	if err := c.limiter.Wait(ctx); err != nil {
		return &APIError{Kind: RequestFailed, Endpoint: path, Err: err}
	}
	resp, err := c.doWithRetry(ctx, req, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return &APIError{Kind: Unauthorized, Status: resp.StatusCode, Endpoint: path, Body: strings.TrimSpace(string(body))}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return &APIError{Kind: RequestFailed, Status: resp.StatusCode, Endpoint: path, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Kind: RequestFailed, Endpoint: path, Err: err}
	}
	return nil
}

// doWithRetry retries 429 and 5xx responses with exponential backoff,
// honoring Retry-After and applying +/-20% jitter. Exhausting retries on 429
// surfaces RateLimited.
func (c *HTTPClient) doWithRetry(ctx context.Context, req *http.Request, endpoint string) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	lastStatus := 0
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err == nil {
			if resp.StatusCode != http.StatusTooManyRequests && (resp.StatusCode < 500 || resp.StatusCode > 599) {
				return resp, nil
			}
			lastStatus = resp.StatusCode
			wait := backoff
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					wait = time.Duration(secs) * time.Second
				} else if t, err := http.ParseTime(ra); err == nil {
					if d := time.Until(t); d > 0 {
						wait = d
					}
				}
			}
			_ = resp.Body.Close()
			// jitter +/-20%
			jitter := time.Duration(float64(wait) * 0.2)
			if jitter > 0 {
				wait = wait - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter))
			}
			metrics.IncAPIRetry(endpoint)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, &APIError{Kind: RequestFailed, Endpoint: endpoint, Err: ctx.Err()}
			}
			backoff *= 2
			continue
		}
		lastErr = err
		metrics.IncAPIRetry(endpoint)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, &APIError{Kind: RequestFailed, Endpoint: endpoint, Err: ctx.Err()}
		}
		backoff *= 2
	}
	if lastStatus == http.StatusTooManyRequests {
		return nil, &APIError{Kind: RateLimited, Status: lastStatus, Endpoint: endpoint,
			Err: fmt.Errorf("gave up after %d attempts", c.maxAttempts)}
	}
	return nil, &APIError{Kind: RequestFailed, Status: lastStatus, Endpoint: endpoint,
		Err: fmt.Errorf("gave up after %d attempts: %v", c.maxAttempts, lastErr)}
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
