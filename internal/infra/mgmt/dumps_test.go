package mgmt

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mgmtd/internal/domain"
	"mgmtd/internal/infra/telemetry"
	"mgmtd/internal/infra/telemetry/diagnostics"
)

func TestEnvVariables(t *testing.T) {
	environ := []string{"PATH=/bin", "API_TOKEN=abc", "EMPTY=", "broken", "=hidden", "DB_PASSWORD=pw", "HOME=/root"}

	got := EnvVariables(environ, true)
	want := []domain.NamedValue{
		{Name: "API_TOKEN", Value: diagnostics.RedactedValue},
		{Name: "DB_PASSWORD", Value: diagnostics.RedactedValue},
		{Name: "EMPTY", Value: ""},
		{Name: "HOME", Value: "/root"},
		{Name: "PATH", Value: "/bin"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("env mismatch (-want +got):\n%s", diff)
	}

	raw := EnvVariables(environ, false)
	require.Len(t, raw, len(want))
	assert.Equal(t, "abc", raw[0].Value)
}

func TestEnvHandlerFormats(t *testing.T) {
	t.Setenv("MGMTD_TEST_SECRET", "s3cret")
	t.Setenv("MGMTD_TEST_PLAIN", "visible")
	handler := NewEnvHandler(true, nil)

	rec := serve(handler, http.MethodGet, "/manage/envvars")
	body := rec.Body.String()
	assert.Contains(t, body, "MGMTD_TEST_PLAIN: visible\n")
	assert.Contains(t, body, "MGMTD_TEST_SECRET: ***\n")
	assert.NotContains(t, body, "s3cret")

	rec = serve(handler, http.MethodGet, "/manage/envvars?_fmt=json")
	var values []domain.NamedValue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &values))
	assert.True(t, sort.SliceIsSorted(values, func(i, j int) bool { return values[i].Name < values[j].Name }))

	rec = serve(handler, http.MethodGet, "/manage/envvars?_fmt=html")
	assert.Contains(t, rec.Body.String(), "<td>MGMTD_TEST_PLAIN</td>")
}

func TestSystemProperties(t *testing.T) {
	props := SystemProperties()
	require.NotEmpty(t, props)
	assert.True(t, sort.SliceIsSorted(props, func(i, j int) bool { return props[i].Name < props[j].Name }))

	byName := make(map[string]string, len(props))
	for _, p := range props {
		byName[p.Name] = p.Value
	}
	assert.Equal(t, runtime.Version(), byName["go.version"])
	assert.Equal(t, runtime.GOOS, byName["go.os"])
	assert.NotEmpty(t, byName["process.pid"])
}

func TestParametersHandlerFormats(t *testing.T) {
	params := map[string]any{
		"name":  "demo",
		"limit": 3,
		"tags":  []string{"a", "b"},
	}
	handler := NewParametersHandler(func() any { return params }, nil)

	rec := serve(handler, http.MethodGet, "/manage/parameters?_fmt=json")
	assert.JSONEq(t, `{"name":"demo","limit":3,"tags":["a","b"]}`, rec.Body.String())

	rec = serve(handler, http.MethodGet, "/manage/parameters?_fmt=text")
	assert.Equal(t, "limit: 3\nname: demo\ntags:\n    - a\n    - b\n", rec.Body.String())

	rec = serve(handler, http.MethodGet, "/manage/parameters", accept(TypeHTML))
	assert.Contains(t, rec.Body.String(), "<pre>{\n  &#34;limit&#34;: 3,")
}

func TestParametersHandlerEncodeFailure(t *testing.T) {
	handler := NewParametersHandler(func() any { return map[string]any{"bad": make(chan int)} }, nil)
	rec := serve(handler, http.MethodGet, "/?_fmt=html")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(handler, http.MethodGet, "/?_fmt=text")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestParametersEncodeFailureLogTagsEndpoint(t *testing.T) {
	core, logs := newObserved()
	handler := NewParametersHandler(func() any { return map[string]any{"bad": make(chan int)} }, zap.New(core))

	serve(handler, http.MethodGet, "/?_fmt=json")
	serve(handler, http.MethodGet, "/?_fmt=html")

	entries := logs.FilterField(telemetry.EndpointField(domain.EndpointParameters)).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "encode parameters failed", entries[0].Message)
}
