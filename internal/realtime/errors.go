package realtime

import "errors"

var (
	// ErrUnauthenticated is returned by the Gate when a stream request carries no usable credential.
	ErrUnauthenticated = errors.New("unauthenticated stream request")

	// ErrConnectionClosed is returned when writing to a connection that has been torn down.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrStreamingUnsupported is returned when the response writer cannot flush.
	ErrStreamingUnsupported = errors.New("streaming not supported")
)
