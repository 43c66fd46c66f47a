package extension_test

import (
	"strings"
	"testing"

	"github.com/rsocket/rsocket-engine/extension"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRouting(t *testing.T) {
	tags := []string{"access", "user.{id}", "third"}
	bs, err := extension.EncodeRouting(tags[0], tags[1:]...)
	require.NoError(t, err, "encode routing failed")
	tags2, err := extension.ParseRoutingTags(bs)
	require.NoError(t, err, "decode routing failed")
	assert.Equal(t, tags, tags2, "tags doesn't match")

	route, err := extension.ParseRoute(bs)
	assert.NoError(t, err)
	assert.Equal(t, "access", route)

	_, err = extension.EncodeRouting(strings.Repeat("a", 256))
	assert.Error(t, err)
	_, err = extension.ParseRoutingTags([]byte{5, 'a'})
	assert.Error(t, err)
	_, err = extension.ParseRoute(nil)
	assert.Error(t, err)
}
