package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/workorder"
)

// Gateway is the subset of the backend the sync engine and attachment service
// depend on. *Client implements it.
type Gateway interface {
	FetchWorkOrders(ctx context.Context, token string) ([]workorder.WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, token string, id uuid.UUID, status workorder.Status, notes string) error
	FetchAttachments(ctx context.Context, token string, workOrderID uuid.UUID) ([]workorder.Attachment, error)
	SignURL(ctx context.Context, token, storagePath string, expiresIn time.Duration) (string, error)
	UploadAttachment(ctx context.Context, token string, workOrderID uuid.UUID, data []byte, contentType string) (string, error)
}

// Ensure Client implements Gateway at compile time.
var _ Gateway = (*Client)(nil)

// Client talks to the work-order backend's auth, REST and storage APIs.
type Client struct {
	baseURL   *url.URL
	anonKey   string
	http      *http.Client
	userAgent string
}

const (
	defaultAPIURL    = "http://127.0.0.1:54321"
	defaultUserAgent = "fieldtech/0.1"
	defaultTimeout   = 15 * time.Second

	workOrderColumns  = "id,created_at,updated_at,title,description,status,priority,property_id,technician_id,created_by"
	attachmentColumns = "id,work_order_id,storage_path,created_by,created_at"
	bucket            = "workorders"
)

// Option customizes a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient builds a Client for apiURL authenticated with the project's anon key.
func NewClient(apiURL, anonKey string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(apiURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		anonKey:   strings.TrimSpace(anonKey),
		http:      &http.Client{Timeout: defaultTimeout},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (AuthSession, error) {
	var session AuthSession
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   signInRequest{Email: strings.TrimSpace(email), Password: password},
	}, &session)
	if err != nil {
		return AuthSession{}, err
	}
	if !session.Valid() {
		return AuthSession{}, apperr.New(apperr.Decode, "sign-in response has no access token")
	}
	return session, nil
}

// CurrentUserID returns the id of the user the token belongs to.
func (c *Client) CurrentUserID(ctx context.Context, token string) (uuid.UUID, error) {
	var payload userResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user", token: token}, &payload); err != nil {
		return uuid.Nil, err
	}
	id := payload.userID()
	if id == uuid.Nil {
		return uuid.Nil, apperr.New(apperr.Decode, "user response has no id")
	}
	return id, nil
}

// FetchWorkOrders returns the work orders visible to token, most recently
// updated first.
func (c *Client) FetchWorkOrders(ctx context.Context, token string) ([]workorder.WorkOrder, error) {
	var orders []workorder.WorkOrder
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/work_orders",
		query: url.Values{
			"select": {workOrderColumns},
			"order":  {"updated_at.desc"},
		},
		token: token,
	}, &orders)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateWorkOrder overwrites status and notes on one work order. The write is
// idempotent, so replaying it after an ambiguous failure is safe. A write that
// matches no row (the work order was deleted or reassigned) fails with
// apperr.NotFound.
func (c *Client) UpdateWorkOrder(ctx context.Context, token string, id uuid.UUID, status workorder.Status, notes string) error {
	var rows []updatedRow
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/rest/v1/work_orders",
		query:  url.Values{"id": {"eq." + id.String()}},
		token:  token,
		prefer: "return=representation",
		body:   updateRequest{Status: string(status), Description: notes},
	}, &rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return apperr.Newf(apperr.NotFound, "work order %s not found", id)
	}
	return nil
}

// FetchAttachments lists attachment rows for a work order, newest first.
// SignedURL is left empty; see SignURL.
func (c *Client) FetchAttachments(ctx context.Context, token string, workOrderID uuid.UUID) ([]workorder.Attachment, error) {
	var items []workorder.Attachment
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/work_order_attachments",
		query: url.Values{
			"work_order_id": {"eq." + workOrderID.String()},
			"select":        {attachmentColumns},
			"order":         {"created_at.desc"},
		},
		token: token,
	}, &items)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// SignURL returns a time-limited download URL for an object in the bucket.
func (c *Client) SignURL(ctx context.Context, token, storagePath string, expiresIn time.Duration) (string, error) {
	if strings.TrimSpace(storagePath) == "" {
		return "", apperr.New(apperr.InvalidInput, "storage path required")
	}
	var payload signedURLResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/storage/v1/object/sign/" + bucket + "/" + strings.TrimPrefix(storagePath, "/"),
		token:  token,
		body:   signRequest{ExpiresIn: int(expiresIn / time.Second)},
	}, &payload)
	if err != nil {
		return "", err
	}
	if payload.SignedURL == "" {
		return "", apperr.New(apperr.Decode, "sign response has no signedURL")
	}
	return strings.TrimSuffix(c.baseURL.String(), "/") + payload.SignedURL, nil
}

// UploadAttachment records an attachment row and then uploads the object. The
// row goes first because the storage policy checks the object path against it.
// If the upload fails the row is deleted again. It returns the storage path.
func (c *Client) UploadAttachment(ctx context.Context, token string, workOrderID uuid.UUID, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", apperr.New(apperr.InvalidInput, "attachment is empty")
	}
	userID, err := c.CurrentUserID(ctx, token)
	if err != nil {
		return "", fmt.Errorf("resolve current user: %w", err)
	}

	objectPath := workOrderID.String() + "/" + uuid.NewString() + extensionFor(contentType)

	err = c.do(ctx, request{
		method: http.MethodPost,
		path:   "/rest/v1/work_order_attachments",
		token:  token,
		prefer: "return=minimal",
		body: attachmentRow{
			WorkOrderID: workOrderID,
			StoragePath: objectPath,
			CreatedBy:   userID,
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("insert attachment row: %w", err)
	}

	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/storage/v1/object/" + bucket + "/" + objectPath,
		token:       token,
		raw:         data,
		contentType: contentType,
		headers:     map[string]string{"x-upsert": "false"},
	}, nil)
	if err != nil {
		_ = c.deleteAttachmentRow(ctx, token, objectPath)
		return "", fmt.Errorf("upload object: %w", err)
	}
	return objectPath, nil
}

// Ping checks that the backend answers at all. Any HTTP response below 500
// counts as reachable; auth is not checked.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, request{method: http.MethodGet, path: "/rest/v1/"})
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.Transport, "ping backend", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 500 {
		return apperr.Newf(apperr.Transport, "ping returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) deleteAttachmentRow(ctx context.Context, token, storagePath string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/rest/v1/work_order_attachments",
		query:  url.Values{"storage_path": {"eq." + storagePath}},
		token:  token,
	}, nil)
}

type request struct {
	method      string
	path        string
	query       url.Values
	token       string
	prefer      string
	body        any
	raw         []byte
	contentType string
	headers     map[string]string
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	rel := &url.URL{Path: r.path}
	if len(r.query) > 0 {
		rel.RawQuery = r.query.Encode()
	}
	reqURL := c.baseURL.ResolveReference(rel)

	var body io.Reader
	contentType := r.contentType
	switch {
	case r.raw != nil:
		body = bytes.NewReader(r.raw)
	case r.body != nil:
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, apperr.Wrap(apperr.InvalidInput, "encode request", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL.String(), body)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, "create request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, r request, dest any) error {
	if c == nil {
		return apperr.New(apperr.InvalidInput, "client is nil")
	}
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.Transport, "execute request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return apperr.Newf(apperr.Unauthorized, "api %s returned status 401", r.path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := fmt.Sprintf("api %s returned status %d", r.path, resp.StatusCode)
		if s := strings.TrimSpace(string(snippet)); s != "" {
			msg += ": " + s
		}
		return apperr.New(apperr.Transport, msg)
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return apperr.Wrap(apperr.Decode, "decode response", err)
	}
	return nil
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func parseBaseURL(apiURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiURL)
	if trimmed == "" {
		trimmed = defaultAPIURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api url %q: %w", apiURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api url %q: missing host", apiURL)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
