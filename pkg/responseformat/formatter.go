package responseformat

import (
	"encoding/json"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"
)

// Formatter encodes API responses as JSON or MessagePack
type Formatter struct {
	allowOrigin string
}

// NewFormatter creates a response formatter. A non-empty allowOrigin is sent as the
// Access-Control-Allow-Origin header on every response.
func NewFormatter(allowOrigin string) *Formatter {
	return &Formatter{allowOrigin: allowOrigin}
}

// ErrorBody is the payload of every non-2xx response
type ErrorBody struct {
	Error string `json:"error"`
}

// WantsMsgPack reports whether the request asked for MessagePack with format=msgpack
func WantsMsgPack(req *http.Request) bool {
	return req.URL.Query().Get("format") == "msgpack"
}

// WriteResponse writes data with the given status. JSON is the default and MessagePack is
// used when format=msgpack is specified.
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, status int, data any) error {
	if f.allowOrigin != "" {
		w.Header().Set("Access-Control-Allow-Origin", f.allowOrigin)
	}

	if WantsMsgPack(req) {
		return f.writeMsgPack(w, status, data)
	}
	return f.writeJSON(w, status, data)
}

// WriteError writes msg wrapped in an ErrorBody
func (f *Formatter) WriteError(w http.ResponseWriter, req *http.Request, status int, msg string) error {
	return f.WriteResponse(w, req, status, ErrorBody{Error: msg})
}

func (f *Formatter) writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func (f *Formatter) writeMsgPack(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/x-msgpack")
	w.WriteHeader(status)
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json") // Use json tags for MessagePack
	return encoder.Encode(data)
}
