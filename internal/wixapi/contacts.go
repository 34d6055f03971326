package wixapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Contact is a CRM contact of a site.
type Contact struct {
	ID   string `json:"id"`
	Info struct {
		Name struct {
			First string `json:"first"`
			Last  string `json:"last"`
		} `json:"name"`
		Emails struct {
			Items []struct {
				Email string `json:"email"`
			} `json:"items"`
		} `json:"emails"`
		Phones struct {
			Items []struct {
				Phone string `json:"phone"`
			} `json:"items"`
		} `json:"phones"`
	} `json:"info"`
	PrimaryInfo struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"primaryInfo"`
}

// Email returns the contact's primary email, or its first listed one.
func (c *Contact) Email() string {
	if c == nil {
		return ""
	}
	if c.PrimaryInfo.Email != "" {
		return c.PrimaryInfo.Email
	}
	for _, item := range c.Info.Emails.Items {
		if item.Email != "" {
			return item.Email
		}
	}
	return ""
}

// FullName joins the contact's first and last name.
func (c *Contact) FullName() string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Info.Name.First + " " + c.Info.Name.Last)
}

// FirstName returns the contact's first name.
func (c *Contact) FirstName() string {
	if c == nil {
		return ""
	}
	return c.Info.Name.First
}

// GetContact fetches one contact of instanceID.
func (c *Client) GetContact(ctx context.Context, instanceID, contactID string) (*Contact, error) {
	var resp struct {
		Contact Contact `json:"contact"`
	}
	if err := c.do(ctx, instanceID, http.MethodGet, "/contacts/v4/contacts/"+url.PathEscape(contactID), nil, &resp); err != nil {
		return nil, err
	}
	c.logger.Info("retrieved contact", "instance_id", instanceID, "contact_id", contactID)
	return &resp.Contact, nil
}
