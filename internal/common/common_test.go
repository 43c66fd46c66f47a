package common_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestToError(t *testing.T) {
	assert.NoError(t, common.ToError(nil))
	e := errors.New("fake error")
	assert.Equal(t, e, common.ToError(e))
	assert.EqualError(t, common.ToError("fake error"), "fake error")
	assert.EqualError(t, common.ToError(42), "42")
}

func TestByteBuff(t *testing.T) {
	before := common.CountBorrowed()
	b := common.BorrowByteBuff()
	_, _ = b.Write([]byte("hello"))
	assert.Equal(t, "hello", b.String())
	assert.Equal(t, before+1, common.CountBorrowed())
	common.ReturnByteBuff(b)
	assert.Equal(t, before, common.CountBorrowed())
}

func TestCloneBytes(t *testing.T) {
	assert.Nil(t, common.CloneBytes(nil))
	src := []byte("abc")
	dst := common.CloneBytes(src)
	src[0] = 'x'
	assert.Equal(t, []byte("abc"), dst)
	assert.NotNil(t, common.CloneBytes([]byte{}))
}

func TestSetTCPBuffSize(t *testing.T) {
	assert.Error(t, common.SetTCPBuffSize(0, 1))
	assert.Error(t, common.SetTCPBuffSize(1, 0))
	assert.NoError(t, common.SetTCPBuffSize(common.DefaultTCPReadBuffSize, common.DefaultTCPWriteBuffSize))
}
