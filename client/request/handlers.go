package request

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/remind101/hexenvelope/crypto/envelope"
	"github.com/remind101/hexenvelope/logger"
	"github.com/remind101/hexenvelope/retry"
)

var (
	// ErrSealFailed is returned when request parameters could not be
	// encrypted. The cause is reported, not returned.
	ErrSealFailed = errors.New("request: parameters could not be encrypted")

	// ErrOpenFailed is returned when a response payload could not be
	// decrypted. The cause is reported, not returned.
	ErrOpenFailed = errors.New("request: response could not be decrypted")

	errBodyNotReplayable = errors.New("request: body cannot be replayed for retry")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	// Message is the "message" field of the JSON error body, if any.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed (%d)", e.StatusCode)
}

type Handlers struct {
	Build            HandlerList
	Sign             HandlerList
	Send             HandlerList
	ValidateResponse HandlerList
	Decode           HandlerList
	DecodeError      HandlerList
	Complete         HandlerList
}

func DefaultHandlers() Handlers {
	return Handlers{
		Build:            NewHandlerList(JSONBuilder),
		Sign:             NewHandlerList(),
		Send:             NewHandlerList(BaseSender),
		ValidateResponse: NewHandlerList(StatusValidator),
		Decode:           NewHandlerList(JSONDecoder),
		DecodeError:      NewHandlerList(ErrorMessageDecoder),
		Complete:         NewHandlerList(),
	}
}

func (h Handlers) Copy() Handlers {
	return Handlers{
		Build:            h.Build.copy(),
		Sign:             h.Sign.copy(),
		Send:             h.Send.copy(),
		ValidateResponse: h.ValidateResponse.copy(),
		Decode:           h.Decode.copy(),
		DecodeError:      h.DecodeError.copy(),
		Complete:         h.Complete.copy(),
	}
}

type HandlerList struct {
	list []Handler
}

func NewHandlerList(hh ...Handler) HandlerList {
	return HandlerList{
		list: append([]Handler{}, hh...),
	}
}

// Run runs each handler in order, stopping at the first one that sets
// r.Error.
func (hl *HandlerList) Run(r *Request) {
	for _, h := range hl.list {
		h.Fn(r)
		if r.Error != nil {
			return
		}
	}
}

func (hl *HandlerList) Append(h Handler) {
	hl.list = append(hl.list, h)
}

func (hl *HandlerList) Prepend(h Handler) {
	hl.list = append([]Handler{h}, hl.list...)
}

// Swap replaces the handler with the given name. It reports whether a handler
// was replaced.
func (hl *HandlerList) Swap(name string, h Handler) bool {
	for i, existing := range hl.list {
		if existing.Name == name {
			hl.list[i] = h
			return true
		}
	}
	return false
}

// Len returns the number of handlers in the list.
func (hl *HandlerList) Len() int {
	return len(hl.list)
}

func (hl *HandlerList) copy() HandlerList {
	n := HandlerList{}
	if len(hl.list) == 0 {
		return n
	}

	n.list = append(make([]Handler, 0, len(hl.list)), hl.list...)
	return n
}

type Handler struct {
	Name string
	Fn   func(*Request)
}

// BaseSender sends a request using the http.Client.
var BaseSender = Handler{
	Name: "BaseSender",
	Fn: func(r *Request) {
		r.HTTPResponse, r.Error = r.HTTPClient.Do(r.HTTPRequest)
	},
}

// JSONBuilder sets JSON headers and encodes Params as the request body.
var JSONBuilder = Handler{
	Name: "JSONBuilder",
	Fn: func(r *Request) {
		r.HTTPRequest.Header.Set("Content-Type", "application/json")
		r.HTTPRequest.Header.Set("Accept", "application/json")

		if r.HTTPRequest.Method != "GET" && r.Params != nil {
			raw, err := json.Marshal(r.Params)
			if err != nil {
				r.Error = errors.Wrap(err, "request: encoding params")
				return
			}
			r.SetBody(raw)
		}
	},
}

// JSONDecoder decodes a response as JSON.
var JSONDecoder = Handler{
	Name: "JSONDecoder",
	Fn: func(r *Request) {
		if r.HTTPResponse == nil {
			return
		}
		defer r.HTTPResponse.Body.Close()
		if r.Data == nil {
			_, r.Error = io.Copy(io.Discard, r.HTTPResponse.Body)
			return
		}
		if err := json.NewDecoder(r.HTTPResponse.Body).Decode(r.Data); err != nil {
			r.Error = errors.Wrap(err, "request: decoding response")
		}
	},
}

// StatusValidator sets a *StatusError for non-2xx responses.
var StatusValidator = Handler{
	Name: "StatusValidator",
	Fn: func(r *Request) {
		if r.HTTPResponse == nil {
			return
		}
		if code := r.HTTPResponse.StatusCode; code < 200 || code > 299 {
			r.Error = &StatusError{StatusCode: code}
		}
	},
}

// ErrorMessageDecoder fills in StatusError.Message from a JSON body of the
// form {"message": "..."}. Bodies that are not JSON are ignored.
var ErrorMessageDecoder = Handler{
	Name: "ErrorMessageDecoder",
	Fn: func(r *Request) {
		if r.HTTPResponse == nil {
			return
		}
		defer r.closeResponse()

		var se *StatusError
		if !errors.As(r.Error, &se) {
			return
		}
		var body struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.HTTPResponse.Body).Decode(&body); err == nil {
			se.Message = body.Message
		}
	},
}

// APIKeyAuther authenticates with the backend's public API key, sent both as
// the apikey header and as a bearer token.
func APIKeyAuther(apiKey string) Handler {
	return Handler{
		Name: "APIKeyAuther",
		Fn: func(r *Request) {
			r.HTTPRequest.Header.Set("apikey", apiKey)
			r.HTTPRequest.Header.Set("Authorization", "Bearer "+apiKey)
		},
	}
}

// TokenHeader sets header to the value returned by token, unless it is empty.
func TokenHeader(header string, token func() string) Handler {
	return Handler{
		Name: "TokenHeader",
		Fn: func(r *Request) {
			if t := token(); t != "" {
				r.HTTPRequest.Header.Set(header, t)
			}
		},
	}
}

// EncryptedBodyBuilder encrypts Params under keyHex and sends them as
// {field: "<envelope>"}. It replaces JSONBuilder in the Build list.
func EncryptedBodyBuilder(field, keyHex string) Handler {
	return Handler{
		Name: "JSONBuilder",
		Fn: func(r *Request) {
			r.HTTPRequest.Header.Set("Content-Type", "application/json")
			r.HTTPRequest.Header.Set("Accept", "application/json")

			if r.Params == nil {
				return
			}
			sealed, ok := envelope.EncryptData(r.Context(), r.Params, keyHex)
			if !ok {
				r.Error = ErrSealFailed
				return
			}
			raw, err := json.Marshal(map[string]string{field: sealed})
			if err != nil {
				r.Error = errors.Wrap(err, "request: encoding params")
				return
			}
			r.SetBody(raw)
		},
	}
}

// EncryptedQuery encrypts Params under keyHex into the query parameter param.
func EncryptedQuery(param, keyHex string) Handler {
	return Handler{
		Name: "EncryptedQuery",
		Fn: func(r *Request) {
			if r.Params == nil {
				return
			}
			sealed, ok := envelope.EncryptData(r.Context(), r.Params, keyHex)
			if !ok {
				r.Error = ErrSealFailed
				return
			}
			q := r.HTTPRequest.URL.Query()
			q.Set(param, sealed)
			r.HTTPRequest.URL.RawQuery = q.Encode()
		},
	}
}

// RequestLogger logs the outgoing request at DEBUG. Query strings are left
// out since they may carry envelopes.
var RequestLogger = Handler{
	Name: "RequestLogger",
	Fn: func(r *Request) {
		logger.Debug(r.Context(), "client request", "method", r.HTTPRequest.Method, "path", r.HTTPRequest.URL.Path)
	},
}

// ResponseLogger logs the response status at DEBUG.
var ResponseLogger = Handler{
	Name: "ResponseLogger",
	Fn: func(r *Request) {
		if r.HTTPResponse == nil {
			return
		}
		logger.Debug(r.Context(), "client response",
			"method", r.HTTPRequest.Method,
			"path", r.HTTPRequest.URL.Path,
			"status", r.HTTPResponse.StatusCode,
			"duration", time.Since(r.Time),
		)
	},
}

// retryableError marks a transport failure or a 5xx response as worth
// retrying.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// IsRetryable reports whether err came from a send attempt that may succeed
// if repeated. Use it as the predicate of a retry.Retrier passed to
// WithRetry.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Idempotent reports whether a request with method has the same effect on the
// server when sent more than once.
func Idempotent(method string) bool {
	switch method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// WithRetry returns a Send Handler that retries h on transport errors and 5xx
// responses. After the last attempt the request holds that attempt's
// response or error, so a final 5xx still reaches ValidateResponse.
//
// Requests whose method is not Idempotent are sent once: a 5xx from a
// gateway does not tell whether the backend already applied a POST.
func WithRetry(h Handler, retrier *retry.Retrier) Handler {
	return Handler{
		Name: "RetryingSender",
		Fn: func(r *Request) {
			if !Idempotent(r.HTTPRequest.Method) {
				h.Fn(r)
				return
			}

			attempt := 0
			_, err := retrier.Retry(r.Context(), func() (interface{}, error) {
				if attempt > 0 {
					if err := r.rewind(); err != nil {
						return nil, err
					}
				}
				attempt++

				h.Fn(r)
				if r.Error != nil {
					return nil, &retryableError{r.Error}
				}
				if code := r.HTTPResponse.StatusCode; code >= 500 {
					return nil, &retryableError{errors.Errorf("server responded %d", code)}
				}
				return nil, nil
			})
			if err != nil && !IsRetryable(err) {
				r.Error = err
			}
		},
	}
}

// rewind discards the previous attempt and resets the body.
func (r *Request) rewind() error {
	r.closeResponse()
	r.HTTPResponse = nil
	r.Error = nil

	if r.HTTPRequest.GetBody != nil {
		body, err := r.HTTPRequest.GetBody()
		if err != nil {
			return err
		}
		r.HTTPRequest.Body = body
		return nil
	}
	if r.HTTPRequest.Body != nil && r.HTTPRequest.Body != http.NoBody {
		return errBodyNotReplayable
	}
	return nil
}
