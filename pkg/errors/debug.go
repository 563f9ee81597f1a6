package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	HTTPStatus int    `json:"http_status,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
	APIBody    string `json:"api_body,omitempty"`
}

// HTTPError carries the raw outcome of a failed backend call.
type HTTPError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Endpoint, http.StatusText(e.StatusCode), e.Body)
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		d.HTTPStatus = httpErr.StatusCode
		d.Endpoint = httpErr.Endpoint
		d.APIBody = httpErr.Body
	}

	return d
}
