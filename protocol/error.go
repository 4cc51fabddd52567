package protocol

import "errors"

var (
	// ErrUnknownRequestType is returned for a request tag with no handler
	ErrUnknownRequestType = errors.New("unknown request type")
	// ErrRequestTooLarge is returned when a frame's length field is negative or above the limit.
	// The stream can't be resynchronised after it, so the connection is closed.
	ErrRequestTooLarge = errors.New("frame length out of bounds")
	// ErrMalformedPayload is returned when a payload can't be decoded for its request type
	ErrMalformedPayload = errors.New("malformed payload")
)

// ResponseError is the error carried by an unsuccessful response
type ResponseError struct {
	Message string
}

func (e *ResponseError) Error() string {
	return e.Message
}

// Err returns the response's error, or nil if it succeeded
func (r Response) Err() error {
	if r.Success {
		return nil
	}
	if r.Error == "" {
		return &ResponseError{Message: "request failed"}
	}
	return &ResponseError{Message: r.Error}
}
