package models

// Client represents a client from the clients service. Selecting a client
// in the builder pre-populates the proposal's client and event fields.
type Client struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email,omitempty"`
	Phone         string  `json:"phone,omitempty"`
	WalletBalance float64 `json:"wallet_balance"`

	// Prior event fields, used as the last-resort autofill source.
	LastEventDate     string `json:"last_event_date,omitempty"`
	LastEventLocation string `json:"last_event_location,omitempty"`
}

// EventDetails is the autofill payload produced by the checklist and
// questionnaire services. The checklist is the richer, preferred source.
type EventDetails struct {
	ClientID    int64  `json:"client_id"`
	EventDate   string `json:"event_date,omitempty"`
	EventTime   string `json:"event_time,omitempty"`
	Location    string `json:"location,omitempty"`
	Coordinator string `json:"coordinator,omitempty"`
	Guests      int    `json:"guests,omitempty"`
}
