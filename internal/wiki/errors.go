package wiki

import "fmt"

// HTTPError is returned when the wiki answers with a non-2xx status.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("wiki request %s failed: %d %s", e.URL, e.StatusCode, e.Status)
}

// DecodeError is returned when a 2xx body cannot be decoded into the expected shape.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode wiki response %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
