package client

import (
	"errors"
	"strings"
)

// Client status constants
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength  = 100
	MaxNotesLength = 2000
)

// Client holds the roster record for a person the trainer works with.
// The scheduling core only reads ID and the name fields; the rest belongs
// to the roster screens.
type Client struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Notes     string
	Status    string
}

// Validate checks if the Client has valid data.
// PRE: Client struct is initialized
// POST: Returns error if validation fails, nil otherwise
func (c *Client) Validate() error {
	if strings.TrimSpace(c.FirstName) == "" {
		return errors.New("client first name cannot be empty")
	}
	if len(c.FirstName) > MaxNameLength || len(c.LastName) > MaxNameLength {
		return errors.New("client name cannot exceed 100 characters")
	}
	if c.Email != "" && !strings.Contains(c.Email, "@") {
		return errors.New("client email must be valid")
	}
	if c.Status != StatusActive && c.Status != StatusArchived {
		return errors.New("status must be 'active' or 'archived'")
	}
	if len(c.Notes) > MaxNotesLength {
		return errors.New("client notes cannot exceed 2000 characters")
	}
	return nil
}

// DisplayName returns the label used for session authorship in the UI.
// POST: "First Last" when both parts are set, otherwise whichever exists
func (c *Client) DisplayName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		return c.ID
	}
	return name
}

// IsActive returns true if the client is currently active.
// INVARIANT: Status field is not mutated
func (c *Client) IsActive() bool {
	return c.Status == StatusActive
}
