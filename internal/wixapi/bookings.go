package wixapi

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// BookingQuery filters QueryBookings. Zero fields are not applied.
type BookingQuery struct {
	From   time.Time
	To     time.Time
	Status string
	Limit  int
	Offset int
}

type paging struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

type query struct {
	Filter map[string]any      `json:"filter,omitempty"`
	Sort   []map[string]string `json:"sort,omitempty"`
	Paging *paging             `json:"paging,omitempty"`
}

// QueryBookings lists bookings of instanceID ordered by start time. The
// entities are returned as decoded JSON objects.
func (c *Client) QueryBookings(ctx context.Context, instanceID string, q BookingQuery) ([]map[string]any, error) {
	filter := map[string]any{}
	if !q.From.IsZero() {
		filter["startDate"] = map[string]string{"$gte": q.From.UTC().Format(time.RFC3339)}
	}
	if !q.To.IsZero() {
		filter["endDate"] = map[string]string{"$lte": q.To.UTC().Format(time.RFC3339)}
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	req := map[string]any{"query": query{
		Filter: filter,
		Sort:   []map[string]string{{"fieldName": "startDate", "order": "ASC"}},
		Paging: &paging{Limit: limit, Offset: q.Offset},
	}}
	var resp struct {
		Bookings []map[string]any `json:"bookings"`
	}
	if err := c.do(ctx, instanceID, http.MethodPost, "/bookings/v2/bookings/query", req, &resp); err != nil {
		return nil, err
	}
	c.logger.Info("retrieved bookings", "instance_id", instanceID, "count", len(resp.Bookings))
	return resp.Bookings, nil
}

// GetBooking fetches one booking of instanceID.
func (c *Client) GetBooking(ctx context.Context, instanceID, bookingID string) (map[string]any, error) {
	var resp struct {
		Booking map[string]any `json:"booking"`
	}
	if err := c.do(ctx, instanceID, http.MethodGet, "/bookings/v2/bookings/"+url.PathEscape(bookingID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Booking, nil
}
