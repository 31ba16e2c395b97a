package codec

import (
	"github.com/eleven-am/tabq/internal/domain"
	"github.com/eleven-am/tabq/internal/xjson"
)

type JSON[T any] struct{}

func (JSON[T]) Name() string {
	return domain.CodecJSON
}

func (JSON[T]) Encode(item T) ([]byte, error) {
	data, err := xjson.Marshal(item)
	if err != nil {
		return nil, domain.NewSerializationError("json encode", err)
	}
	return data, nil
}

func (JSON[T]) Decode(data []byte) (T, error) {
	var item T
	if err := xjson.Unmarshal(data, &item); err != nil {
		return item, domain.NewSerializationError("json decode", err)
	}
	return item, nil
}
