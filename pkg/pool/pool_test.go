package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsNil(t *testing.T) {
	_, err := New[*bytes.Buffer](nil)
	assert.Error(t, err)
}

func TestPut_ResetsValue(t *testing.T) {
	p, err := New(func() *bytes.Buffer { return new(bytes.Buffer) })
	require.NoError(t, err)

	buf := p.Get()
	buf.WriteString("payload")
	p.Put(buf)
	assert.Equal(t, 0, buf.Len(), "buffer is reset on Put")

	again := p.Get()
	assert.Equal(t, 0, again.Len())
}

func TestMustNew_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustNew[*bytes.Buffer](nil)
	})
}
