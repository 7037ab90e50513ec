package controllers

// createReq is the body of POST /v1/streams/create.
type createReq struct {
	Stream   string         `json:"stream"`
	Capacity int            `json:"capacity,omitempty"`
	Filters  map[string]any `json:"filters,omitempty"`
}

// appendReq is the body of POST /v1/streams/append. Timestamp is optional,
// RFC3339 or unix milliseconds; the engine assigns one when absent.
type appendReq struct {
	Stream    string            `json:"stream"`
	Value     any               `json:"value"`
	Timestamp string            `json:"timestamp,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// appendResp acknowledges an append.
type appendResp struct {
	Stream   string `json:"stream"`
	Accepted bool   `json:"accepted"`
}
