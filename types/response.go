package types

// ApiResponse is the JSON envelope every endpoint replies with.
type ApiResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is used where only a failure message is returned.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Errors  any    `json:"errors,omitempty"`
}
