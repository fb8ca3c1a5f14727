// Package resy is a minimal Resy API client covering the request flow the
// monitor needs: find slots for a venue/day, fetch booking details for a slot,
// submit a booking, plus venue search/detail for the API surface.
//
// It requires an API key and auth token captured from an authenticated browser
// session; both are read from the settings store and passed per call.
package resy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const apiBase = "https://api.resy.com"

type Credentials struct {
	APIKey    string
	AuthToken string
}

// Slot is one offered reservation slot.
type Slot struct {
	// Start is the venue-local start timestamp as Resy returns it,
	// e.g. "2024-06-01 19:00:00".
	Start string
	// ConfigToken identifies the slot configuration; it is the input to the
	// booking-details call. May be empty for unbookable listings.
	ConfigToken string
}

// Details is the subset of the booking-details response the sniper uses.
type Details struct {
	BookToken string
}

// APIError is a non-success response from the Resy API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("resy: %s (status=%d)", e.Message, e.Status)
	}
	return fmt.Sprintf("resy: request failed (status=%d)", e.Status)
}

type Client struct {
	hc      *http.Client
	baseURL string
}

type Option func(*Client)

// WithBaseURL overrides the API host, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func New(opts ...Option) *Client {
	c := &Client{
		hc:      &http.Client{Timeout: 15 * time.Second},
		baseURL: apiBase,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Ping verifies the credentials against the user endpoint.
func (c *Client) Ping(ctx context.Context, creds Credentials) error {
	status, body, err := c.do(ctx, http.MethodGet, "/2/user", creds, "", nil, nil)
	if err != nil {
		return err
	}
	if status >= 400 {
		return apiErr(status, body)
	}
	return nil
}

// FindSlots returns the offered slots for a venue on a given day (YYYY-MM-DD),
// in the order the API returns them. A day with no availability is an empty
// list, not an error.
func (c *Client) FindSlots(ctx context.Context, creds Credentials, venueID, day string, partySize int) ([]Slot, error) {
	params := map[string]string{
		"venue_id":   venueID,
		"day":        day,
		"party_size": strconv.Itoa(partySize),
		// deprecated but still required by the endpoint
		"lat":  "40.7128",
		"long": "-74.0060",
	}
	status, body, err := c.do(ctx, http.MethodGet, "/4/find", creds, "", params, nil)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, apiErr(status, body)
	}

	var res struct {
		Results struct {
			Venues []struct {
				Slots []struct {
					Date struct {
						Start string `json:"start"`
					} `json:"date"`
					Config struct {
						Token string `json:"token"`
					} `json:"config"`
				} `json:"slots"`
			} `json:"venues"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("resy: decode find response: %w", err)
	}

	var out []Slot
	for _, v := range res.Results.Venues {
		for _, s := range v.Slots {
			out = append(out, Slot{Start: s.Date.Start, ConfigToken: s.Config.Token})
		}
	}
	return out, nil
}

// BookingDetails fetches the booking token for a slot configuration.
func (c *Client) BookingDetails(ctx context.Context, creds Credentials, configToken, day string, partySize int) (Details, error) {
	params := map[string]string{
		"config_id":  configToken,
		"day":        day,
		"party_size": strconv.Itoa(partySize),
	}
	status, body, err := c.do(ctx, http.MethodGet, "/3/details", creds, "", params, nil)
	if err != nil {
		return Details{}, err
	}
	if status >= 400 {
		return Details{}, apiErr(status, body)
	}

	var res struct {
		BookToken struct {
			Value string `json:"value"`
		} `json:"book_token"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return Details{}, fmt.Errorf("resy: decode details response: %w", err)
	}
	return Details{BookToken: res.BookToken.Value}, nil
}

// Book submits a booking. paymentMethodID may be zero when the account has a
// default payment method on file.
func (c *Client) Book(ctx context.Context, creds Credentials, bookToken string, paymentMethodID int) error {
	form := url.Values{}
	form.Set("book_token", bookToken)
	pm, _ := json.Marshal(struct {
		ID int `json:"id"`
	}{ID: paymentMethodID})
	form.Set("struct_payment_method", string(pm))

	status, body, err := c.do(ctx, http.MethodPost, "/3/book", creds, "application/x-www-form-urlencoded", nil, []byte(form.Encode()))
	if err != nil {
		return err
	}
	if status >= 400 {
		return apiErr(status, body)
	}
	return nil
}

// Search looks up venues by name. The response is passed through untouched for
// the API surface to serve.
func (c *Client) Search(ctx context.Context, creds Credentials, query string) (json.RawMessage, error) {
	params := map[string]string{
		"query":    query,
		"geo":      `{"latitude":40.7128,"longitude":-74.0060}`,
		"types":    `["venue"]`,
		"per_page": "10",
	}
	status, body, err := c.do(ctx, http.MethodGet, "/3/venuesearch/search", creds, "", params, nil)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, apiErr(status, body)
	}
	return json.RawMessage(body), nil
}

// Venue fetches venue details, passed through untouched.
func (c *Client) Venue(ctx context.Context, creds Credentials, venueID string) (json.RawMessage, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/4/venue", creds, "", map[string]string{"id": venueID}, nil)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, apiErr(status, body)
	}
	return json.RawMessage(body), nil
}

func (c *Client) do(ctx context.Context, method, path string, creds Credentials, contentType string, query map[string]string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Add("user-agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Add("origin", "https://resy.com")
	req.Header.Add("referer", "https://resy.com/")
	req.Header.Add("x-origin", "https://resy.com")
	req.Header.Add("cache-control", "no-cache")
	if contentType != "" {
		req.Header.Add("content-type", contentType)
	}
	req.Header.Add("authorization", fmt.Sprintf(`ResyAPI api_key="%s"`, creds.APIKey))
	if creds.AuthToken != "" {
		req.Header.Add("x-resy-auth-token", creds.AuthToken)
		req.Header.Add("x-resy-universal-auth", creds.AuthToken)
	}

	if query != nil {
		q := req.URL.Query()
		for k, v := range query {
			q.Add(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}

func apiErr(status int, body []byte) error {
	var r struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &r)
	return &APIError{Status: status, Message: r.Message}
}
