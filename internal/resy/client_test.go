package resy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{APIKey: "k1", AuthToken: "t1"}

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(WithBaseURL(srv.URL))
}

func TestFindSlotsParsesVenuesAndSlots(t *testing.T) {
	var gotQuery url.Values
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/4/find", r.URL.Path)
		require.Equal(t, `ResyAPI api_key="k1"`, r.Header.Get("authorization"))
		require.Equal(t, "t1", r.Header.Get("x-resy-auth-token"))
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{
			"results": {"venues": [{"slots": [
				{"date": {"start": "2024-06-01 19:00:00"}, "config": {"token": "tok1"}},
				{"date": {"start": "2024-06-01 19:30:00"}, "config": {"token": "tok2"}}
			]}]}
		}`))
	})

	slots, err := c.FindSlots(context.Background(), testCreds, "v1", "2024-06-01", 2)
	require.NoError(t, err)

	assert.Equal(t, "v1", gotQuery.Get("venue_id"))
	assert.Equal(t, "2024-06-01", gotQuery.Get("day"))
	assert.Equal(t, "2", gotQuery.Get("party_size"))
	require.Len(t, slots, 2)
	assert.Equal(t, Slot{Start: "2024-06-01 19:00:00", ConfigToken: "tok1"}, slots[0])
	assert.Equal(t, Slot{Start: "2024-06-01 19:30:00", ConfigToken: "tok2"}, slots[1])
}

func TestFindSlotsEmptyAvailability(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": {"venues": []}}`))
	})

	slots, err := c.FindSlots(context.Background(), testCreds, "v1", "2024-06-01", 2)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestFindSlotsErrorStatus(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(419)
	})

	_, err := c.FindSlots(context.Background(), testCreds, "v1", "2024-06-01", 2)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 419, apiErr.Status)
}

func TestBookingDetails(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/3/details", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		q := r.URL.Query()
		require.Equal(t, "tok1", q.Get("config_id"))
		require.Equal(t, "2024-06-01", q.Get("day"))
		require.Equal(t, "2", q.Get("party_size"))
		_, _ = w.Write([]byte(`{"book_token": {"value": "bt1"}}`))
	})

	det, err := c.BookingDetails(context.Background(), testCreds, "tok1", "2024-06-01", 2)
	require.NoError(t, err)
	assert.Equal(t, "bt1", det.BookToken)
}

func TestBookingDetailsWithoutToken(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	det, err := c.BookingDetails(context.Background(), testCreds, "tok1", "2024-06-01", 2)
	require.NoError(t, err)
	assert.Empty(t, det.BookToken)
}

func TestBookSubmitsFormWithPaymentMethod(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/3/book", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("content-type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "bt1", r.PostForm.Get("book_token"))

		var pm struct {
			ID int `json:"id"`
		}
		require.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("struct_payment_method")), &pm))
		assert.Equal(t, 42, pm.ID)
		_, _ = w.Write([]byte(`{"resy_token": "ok"}`))
	})

	require.NoError(t, c.Book(context.Background(), testCreds, "bt1", 42))
}

func TestBookFailureSurfacesMessage(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message": "slot no longer available"}`))
	})

	err := c.Book(context.Background(), testCreds, "bt1", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slot no longer available")
}

func TestSearchPassesThroughResponse(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/3/venuesearch/search", r.URL.Path)
		require.Equal(t, "carbone", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(`{"search": {"hits": []}}`))
	})

	raw, err := c.Search(context.Background(), testCreds, "carbone")
	require.NoError(t, err)
	assert.JSONEq(t, `{"search": {"hits": []}}`, string(raw))
}

func TestPing(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/user", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	})
	require.NoError(t, c.Ping(context.Background(), testCreds))
}
