package apperr

import (
	"encoding/json"
	"net/http"
)

// Response is the JSON error envelope.
type Response struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// ResponseFor converts err into a status and envelope. Errors that are not
// *Error become INTERNAL_ERROR; their text is only exposed when
// exposeInternal is set.
func ResponseFor(err error, exposeInternal bool) (int, Response) {
	e, ok := As(err)
	if !ok {
		e = Internal(err)
	}

	resp := Response{Error: e.Message, Code: e.Code, Details: e.Details}
	if e.Kind == KindInternal {
		resp.Details = nil
		if exposeInternal && e.Err != nil {
			resp.Details = e.Err.Error()
		}
	}
	return e.Status(), resp
}

// Write renders err as a JSON error response.
func Write(w http.ResponseWriter, err error, exposeInternal bool) {
	status, resp := ResponseFor(err, exposeInternal)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
