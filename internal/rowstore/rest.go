package rowstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	appLog "maintdash/internal/log"
)

// RESTOptions configures a PostgREST-compatible endpoint (e.g. Supabase).
type RESTOptions struct {
	// BaseURL is the project URL, e.g. "https://xyz.supabase.co".
	BaseURL string
	// APIKey is sent both as apikey and as a bearer token.
	APIKey string
	Table  string
	// Timeout bounds each request. Zero means 15s.
	Timeout time.Duration
}

// REST is a RowStore over the PostgREST HTTP dialect.
type REST struct {
	client *resty.Client
	path   string
}

// APIError is a non-2xx answer from the endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rowstore: rest status %d: %s", e.Status, strings.TrimSpace(e.Body))
}

func NewREST(opts RESTOptions) (*REST, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("rowstore: rest base URL is empty")
	}
	if !validIdent(opts.Table) {
		return nil, fmt.Errorf("rowstore: invalid table name %q", opts.Table)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	// No retries: a failed write is surfaced and the user retries by hand.
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.APIKey != "" {
		client.SetHeader("apikey", opts.APIKey).SetAuthToken(opts.APIKey)
	}
	appLog.Info("rest row store configured", "url", redactURL(opts.BaseURL), "table", opts.Table)

	return &REST{client: client, path: "/rest/v1/" + opts.Table}, nil
}

func (r *REST) SelectAll(ctx context.Context, orderBy string) ([]Row, error) {
	if err := checkOrderBy(orderBy); err != nil {
		return nil, err
	}
	var out []Row
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("select", "*").
		SetQueryParam("order", orderBy+".asc").
		SetResult(&out).
		Get(r.path)
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("rowstore: select: %w", err)
	}
	appLog.Debug("rowstore select", "backend", "rest", "path", r.path, "rows", len(out))
	return out, nil
}

func (r *REST) Insert(ctx context.Context, row Row) (Row, error) {
	if err := checkColumns(row); err != nil {
		return nil, err
	}
	var out []Row
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(row).
		SetResult(&out).
		Post(r.path)
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("rowstore: insert: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("rowstore: insert: empty representation")
	}
	return out[0], nil
}

func (r *REST) Update(ctx context.Context, id string, row Row) (Row, error) {
	if err := checkColumns(row); err != nil {
		return nil, err
	}
	var out []Row
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+id).
		SetBody(row).
		SetResult(&out).
		Patch(r.path)
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("rowstore: update %s: %w", id, err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out[0], nil
}

func (r *REST) Delete(ctx context.Context, id string) error {
	var out []Row
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+id).
		SetResult(&out).
		Delete(r.path)
	if err := checkResponse(resp, err); err != nil {
		return fmt.Errorf("rowstore: delete %s: %w", id, err)
	}
	if len(out) == 0 {
		return ErrNotFound
	}
	return nil
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return &APIError{Status: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}

// redactURL keeps scheme and host only, for log lines.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "rest://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
