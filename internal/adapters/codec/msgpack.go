package codec

import (
	"github.com/eleven-am/tabq/internal/domain"
	"github.com/hashicorp/go-msgpack/v2/codec"
)

type Msgpack[T any] struct {
	handle *codec.MsgpackHandle
}

func NewMsgpack[T any]() Msgpack[T] {
	handle := &codec.MsgpackHandle{}
	handle.WriteExt = true
	return Msgpack[T]{handle: handle}
}

func (m Msgpack[T]) Name() string {
	return domain.CodecMsgpack
}

func (m Msgpack[T]) Encode(item T) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, m.handle).Encode(item); err != nil {
		return nil, domain.NewSerializationError("msgpack encode", err)
	}
	return out, nil
}

func (m Msgpack[T]) Decode(data []byte) (T, error) {
	var item T
	if err := codec.NewDecoderBytes(data, m.handle).Decode(&item); err != nil {
		return item, domain.NewSerializationError("msgpack decode", err)
	}
	return item, nil
}
