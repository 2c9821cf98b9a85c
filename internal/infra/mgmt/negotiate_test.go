package mgmt

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name   string
		target string
		accept string
		want   string
	}{
		{name: "no accept", target: "/", want: TypePlain},
		{name: "json accept", target: "/", accept: "application/json", want: TypeJSON},
		{name: "browser accept", target: "/", accept: "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8", want: TypeHTML},
		{name: "wildcard", target: "/", accept: "*/*", want: TypeJSON},
		{name: "unsupported", target: "/", accept: "image/png", want: TypePlain},
		{name: "param overrides accept", target: "/?_fmt=html", accept: "application/json", want: TypeHTML},
		{name: "param text", target: "/?_fmt=text", accept: "application/json", want: TypePlain},
		{name: "binary maps to json", target: "/?_fmt=binary", want: TypeJSON},
		{name: "unknown param ignored", target: "/?_fmt=xml&_fmt=json", want: TypeJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			assert.Equal(t, tt.want, Negotiate(req))
		})
	}
}

func TestNegotiateRestrictedOffer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html")
	assert.Equal(t, TypePlain, Negotiate(req, TypeJSON, TypePlain))
}
