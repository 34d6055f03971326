package wixapi

import (
	"context"
	"net/http"
	"time"
)

// Event is a scheduled site event.
type Event struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	ScheduleConfig struct {
		StartDate time.Time `json:"startDate"`
		EndDate   time.Time `json:"endDate"`
		TimeZone  string    `json:"timeZoneId"`
	} `json:"scheduleConfig"`
	Location struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"location"`
}

// Registration is a guest's RSVP to an event.
type Registration struct {
	ID        string `json:"id"`
	EventID   string `json:"eventId"`
	ContactID string `json:"contactId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Status    string `json:"status"`
}

// QueryEvents lists scheduled events of instanceID starting at or after
// from, ordered by start date.
func (c *Client) QueryEvents(ctx context.Context, instanceID string, from time.Time, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	req := map[string]any{"query": query{
		Filter: map[string]any{
			"scheduleConfig.startDate": map[string]string{"$gte": from.UTC().Format(time.RFC3339)},
			"status":                   "SCHEDULED",
		},
		Sort:   []map[string]string{{"fieldName": "scheduleConfig.startDate", "order": "ASC"}},
		Paging: &paging{Limit: limit},
	}}
	var resp struct {
		Events []Event `json:"events"`
	}
	if err := c.do(ctx, instanceID, http.MethodPost, "/events/v1/events/query", req, &resp); err != nil {
		return nil, err
	}
	c.logger.Info("retrieved upcoming events", "instance_id", instanceID, "count", len(resp.Events))
	return resp.Events, nil
}

// ListRegistrations returns the RSVPs of one event.
func (c *Client) ListRegistrations(ctx context.Context, instanceID, eventID string) ([]Registration, error) {
	req := map[string]any{"query": query{
		Filter: map[string]any{"eventId": eventID},
	}}
	var resp struct {
		Rsvps []Registration `json:"rsvps"`
	}
	if err := c.do(ctx, instanceID, http.MethodPost, "/events/v1/rsvps/query", req, &resp); err != nil {
		return nil, err
	}
	c.logger.Info("retrieved event registrations", "instance_id", instanceID, "event_id", eventID, "count", len(resp.Rsvps))
	return resp.Rsvps, nil
}
