package mgmt

import (
	"net/http"

	"github.com/munnerz/goautoneg"
)

// FormatParam overrides the Accept header, e.g. ?_fmt=json.
const FormatParam = "_fmt"

const (
	TypeJSON   = "application/json"
	TypeHTML   = "text/html"
	TypePlain  = "text/plain"
	TypeBinary = "application/octet-stream"
)

var paramToType = map[string]string{
	"html":   TypeHTML,
	"text":   TypePlain,
	"json":   TypeJSON,
	"binary": TypeJSON,
}

// standardTypes is the order most endpoints produce in; the first entry wins
// for wildcard Accept headers.
var standardTypes = []string{TypeJSON, TypeHTML, TypePlain}

// Negotiate picks the response type for r among offered. The _fmt query
// parameter takes precedence, then the Accept header; plain text is the
// fallback.
func Negotiate(r *http.Request, offered ...string) string {
	if len(offered) == 0 {
		offered = standardTypes
	}
	for _, value := range r.URL.Query()[FormatParam] {
		if contentType, ok := paramToType[value]; ok {
			return contentType
		}
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		if contentType := goautoneg.Negotiate(accept, offered); contentType != "" {
			return contentType
		}
	}
	return TypePlain
}
