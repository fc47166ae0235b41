package api

// StatusResponse is returned by the root and health endpoints.
type StatusResponse struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse acknowledges a successful update.
type MessageResponse struct {
	Message string      `json:"message"`
	Config  interface{} `json:"config,omitempty"`
}
