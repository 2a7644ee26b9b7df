// Package eduadmin talks to the EduAdmin OData API: token exchange, event and
// course template queries, and normalization of their loosely typed rows.
package eduadmin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"eduadmin-sync/internal/domain"
	"eduadmin-sync/internal/httpx"
	"eduadmin-sync/internal/logging"
)

// odataLayout matches the offset-qualified timestamps the OData filter expects.
const odataLayout = "2006-01-02T15:04:05-07:00"

// TokenSource yields a bearer token for API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Window is a StartDate filter for the Events collection.
type Window struct {
	Name   string
	Filter string
}

// FutureWindow selects events starting after now.
func FutureWindow(now time.Time) Window {
	return Window{Name: "future", Filter: "StartDate gt " + now.Format(odataLayout)}
}

// RecentWindow selects events that started within the last months months.
func RecentWindow(now time.Time, months int) Window {
	from := now.AddDate(0, -months, 0)
	return Window{
		Name:   "recent",
		Filter: fmt.Sprintf("StartDate lt %s and StartDate gt %s", now.Format(odataLayout), from.Format(odataLayout)),
	}
}

type Client struct {
	BaseURL  string
	HTTP     *http.Client
	Tokens   TokenSource
	Location *time.Location
	Retry    httpx.RetryConfig

	breaker *gobreaker.CircuitBreaker[[]byte]
}

func New(baseURL string, tokens TokenSource, loc *time.Location, timeout time.Duration, attempts int) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		HTTP:     &http.Client{Timeout: timeout},
		Tokens:   tokens,
		Location: loc,
		Retry:    httpx.WithAttempts(attempts),
		breaker:  newBreaker("eduadmin-odata"),
	}
}

// Authenticate makes sure a valid token is available before any fetch.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.Tokens.Token(ctx)
	return err
}

// FetchEvents returns the events of one window. Rows without a
// CourseTemplateId are dropped.
func (c *Client) FetchEvents(ctx context.Context, w Window) ([]domain.RemoteEvent, error) {
	u := c.BaseURL + "/v1/odata/Events?$expand=PriceNames&$filter=" + url.QueryEscape(w.Filter)
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("eduadmin: fetch %s events: %w", w.Name, err)
	}
	events := ParseEvents(body, c.Location)
	logging.Debug().Str("window", w.Name).Int("events", len(events)).Msg("events fetched")
	return events, nil
}

// FetchTemplates returns the course templates with the given ids.
func (c *Client) FetchTemplates(ctx context.Context, ids []string) ([]domain.RemoteTemplate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	filter := "CourseTemplateId in (" + strings.Join(ids, ",") + ")"
	u := c.BaseURL + "/v1/odata/CourseTemplates?$filter=" + url.QueryEscape(filter) + "&$expand=CustomFields,PriceNames"
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("eduadmin: fetch templates: %w", err)
	}
	return ParseTemplates(body), nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		_, body, err := httpx.Do(ctx, c.HTTP, func(ctx context.Context) (*http.Request, error) {
			r, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return nil, err
			}
			r.Header.Set("Authorization", "Bearer "+token)
			r.Header.Set("Accept", "application/json")
			httpx.SetAcceptEncoding(r)
			return r, nil
		}, c.Retry)
		return body, err
	})
	observeBreaker(c.breaker.Name(), err)
	return body, err
}
