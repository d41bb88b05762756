package handlers

// Common error message constants shared across handlers
const (
	ErrMsgUserNotFound       = "User not found"
	ErrMsgInvalidRequestBody = "Invalid request body"
	ErrMsgUnauthorized       = "Unauthorized"
	ErrMsgUserIDNotFound     = "User ID not found"
	ErrMsgInvalidReportQuery = "Invalid report query parameters"
)

// API path constants
const (
	AuthAPIBasePath = "/api/v1/auth"
)
