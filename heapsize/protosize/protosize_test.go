package protosize_test

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mlwelles/heapsizegen/heapsize"
	"github.com/mlwelles/heapsizegen/heapsize/protosize"
)

func TestIsMessage(t *testing.T) {
	assert.True(t, protosize.IsMessage(reflect.TypeFor[wrapperspb.StringValue]()))
	assert.False(t, protosize.IsMessage(reflect.TypeFor[*wrapperspb.StringValue]()))
	assert.False(t, protosize.IsMessage(reflect.TypeFor[struct{ Name string }]()))

	s, ok := heapsize.Lookup(reflect.TypeFor[timestamppb.Timestamp]())
	require.True(t, ok)
	assert.Equal(t, heapsize.ShapeTuple, s.Kind)
}

func TestMessages(t *testing.T) {
	t.Run("string wrapper", func(t *testing.T) {
		m := wrapperspb.String("hello")
		assert.Equal(t, 5, heapsize.Of(m))

		// serialising fills the size cache and message state
		_, err := proto.Marshal(m)
		require.NoError(t, err)
		assert.Equal(t, 5, heapsize.Of(m))
	})

	t.Run("bytes wrapper counts capacity", func(t *testing.T) {
		m := wrapperspb.Bytes(make([]byte, 3, 10))
		assert.Equal(t, 10, heapsize.Of(m))
	})

	t.Run("scalar message", func(t *testing.T) {
		assert.Equal(t, 0, heapsize.Of(timestamppb.Now()))
	})

	t.Run("oneof", func(t *testing.T) {
		m := structpb.NewStringValue("abc")
		want := int(unsafe.Sizeof(structpb.Value_StringValue{})) + 3
		assert.Equal(t, want, heapsize.Of(m))
	})

	t.Run("unknown fields", func(t *testing.T) {
		m := &wrapperspb.StringValue{}
		// field 2, varint 1
		require.NoError(t, proto.Unmarshal([]byte{0x10, 0x01}, m))
		unknown := m.ProtoReflect().GetUnknown()
		require.Len(t, unknown, 2)
		assert.Equal(t, cap(unknown), heapsize.Of(m))
	})
}
