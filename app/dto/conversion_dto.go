package dto

// ConversionEventBatch is the Conversions API /events body
type ConversionEventBatch struct {
	Data          []ConversionEvent `json:"data"`
	TestEventCode string            `json:"test_event_code,omitempty"`
}

type ConversionEvent struct {
	EventName    string                `json:"event_name"`
	EventTime    int64                 `json:"event_time"`
	ActionSource string                `json:"action_source"`
	UserData     ConversionUserData    `json:"user_data"`
	CustomData   *ConversionCustomData `json:"custom_data,omitempty"`
}

type ConversionUserData struct {
	Fbc             string `json:"fbc,omitempty"`
	ClientUserAgent string `json:"client_user_agent,omitempty"`
	ClientIPAddress string `json:"client_ip_address,omitempty"`
	ExternalID      string `json:"external_id,omitempty"`
}

type ConversionCustomData struct {
	ContentName     string `json:"content_name,omitempty"`
	ContentCategory string `json:"content_category,omitempty"`
}

// ConversionAPIResponse is returned by the Graph API on success
type ConversionAPIResponse struct {
	EventsReceived int      `json:"events_received"`
	Messages       []string `json:"messages,omitempty"`
	FbTraceID      string   `json:"fbtrace_id,omitempty"`
}

// ConversionAPIError is the Graph API error envelope
type ConversionAPIError struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FbTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}
