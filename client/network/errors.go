package network

import "fmt"

// ErrConnectionClosedByServer is returned when the server ends a watch stream
type ErrConnectionClosedByServer struct{}

func (e *ErrConnectionClosedByServer) Error() string {
	return "connection closed by server"
}

// ErrResponse is returned when the server answers with a non-2xx status.
// Message is the text the server sent.
type ErrResponse struct {
	StatusCode int
	Message    string
}

func (e *ErrResponse) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}
