package request

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// Request manages the lifecycle of a client request.
type Request struct {
	Time         time.Time
	HTTPClient   *http.Client
	Handlers     Handlers
	HTTPRequest  *http.Request
	HTTPResponse *http.Response
	Params       interface{} // The input value to encode into the request.
	Data         interface{} // The output value to decode the response into.
	Error        error

	built bool
}

func New(httpReq *http.Request, handlers Handlers, params interface{}, data interface{}) *Request {
	r := &Request{
		HTTPClient:  http.DefaultClient,
		Handlers:    handlers.Copy(),
		Time:        time.Now(),
		HTTPRequest: httpReq,
		Params:      params,
		Data:        data,
	}

	return r
}

// Context returns the context of the underlying http.Request.
func (r *Request) Context() context.Context {
	if r.HTTPRequest == nil {
		return context.Background()
	}
	return r.HTTPRequest.Context()
}

// Send runs the handler lists in order: Build, Sign, Send, ValidateResponse,
// and then Decode, or DecodeError if the response was not valid. Complete
// handlers always run last. A request that already holds an Error, such as
// one that could not be constructed, returns it without running any handler.
func (r *Request) Send() error {
	if r.Error != nil {
		return r.Error
	}

	defer func() {
		r.Handlers.Complete.Run(r)
	}()

	r.Build()
	if r.Error != nil {
		return r.Error
	}

	r.Handlers.Send.Run(r)
	if r.Error != nil {
		return r.Error
	}

	r.Handlers.ValidateResponse.Run(r)
	if r.Error != nil {
		r.Handlers.DecodeError.Run(r)
		return r.Error
	}

	r.Handlers.Decode.Run(r)
	return r.Error
}

// Build runs build handlers and then runs sign handlers.
func (r *Request) Build() {
	if !r.built {
		r.Handlers.Build.Run(r)
		r.built = true
		if r.Error != nil {
			return
		}
		r.Handlers.Sign.Run(r)
	}
}

// SetBody sets a replayable request body.
func (r *Request) SetBody(b []byte) {
	r.HTTPRequest.ContentLength = int64(len(b))
	r.HTTPRequest.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	r.HTTPRequest.Body, _ = r.HTTPRequest.GetBody()
}

// closeResponse drains and closes the response body, if any.
func (r *Request) closeResponse() {
	if r.HTTPResponse != nil && r.HTTPResponse.Body != nil {
		io.Copy(io.Discard, r.HTTPResponse.Body)
		r.HTTPResponse.Body.Close()
	}
}
