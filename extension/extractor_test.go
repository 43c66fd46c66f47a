package extension_test

import (
	"testing"

	"github.com/rsocket/rsocket-engine/extension"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type foo struct {
	Name string `json:"name"`
}

func TestMetadataExtractor_Composite(t *testing.T) {
	route, _ := extension.EncodeRouting("user.42")
	bs, err := extension.NewCompositeMetadataBuilder().
		PushWellKnown(extension.MessageRouting, route).
		PushWellKnown(extension.MessageAuthentication, extension.NewBearerAuthentication("token").Bytes()).
		Push(extension.MIMETraceID, []byte("trace-1")).
		Push("application/vnd.foo.metadata+json", []byte(`{"name":"bar"}`)).
		Push("application/vnd.map.metadata+json", []byte(`{"a":1}`)).
		Push("application/x.ignored", []byte("ignored")).
		Build()
	require.NoError(t, err)

	e := extension.NewMetadataExtractor().
		RegisterJSON("application/vnd.foo.metadata+json", "foo", func() interface{} { return &foo{} }).
		RegisterJSON("application/vnd.map.metadata+json", "map", nil)
	m, err := e.Extract(extension.MessageCompositeMetadata.String(), bs)
	require.NoError(t, err)
	assert.Equal(t, "user.42", m[extension.MetadataRoute])
	assert.Equal(t, "trace-1", m[extension.MetadataTraceID])
	auth := m[extension.MetadataAuth].(*extension.Authentication)
	token, ok := auth.BearerToken()
	assert.True(t, ok)
	assert.Equal(t, "token", token)
	assert.Equal(t, &foo{Name: "bar"}, m["foo"])
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, m["map"])
	assert.Len(t, m, 5)
}

func TestMetadataExtractor_Single(t *testing.T) {
	e := extension.NewMetadataExtractor().RegisterText("text/plain", "text")
	m, err := e.Extract("text/plain", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", m["text"])

	m, err = e.Extract("application/unknown", []byte("hello"))
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestMetadataExtractor_Error(t *testing.T) {
	e := extension.NewMetadataExtractor().RegisterJSON("application/json", "json", nil)
	_, err := e.Extract("application/json", []byte("{broken"))
	assert.Error(t, err)
	_, err = e.Extract(extension.MessageCompositeMetadata.String(), []byte{0x05})
	assert.Error(t, err)
}

func TestTraceID(t *testing.T) {
	id := extension.NewTraceID()
	assert.Len(t, id, 36)
	parsed, err := extension.ParseTraceID(extension.EncodeTraceID(id))
	assert.NoError(t, err)
	assert.Equal(t, id, parsed)
	_, err = extension.ParseTraceID(nil)
	assert.Error(t, err)
}
