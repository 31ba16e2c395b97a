package codec

import (
	"fmt"

	"github.com/eleven-am/tabq/internal/domain"
	"github.com/eleven-am/tabq/internal/ports"
)

// New returns the codec registered under name.
func New[T any](name string) (ports.Codec[T], error) {
	switch name {
	case "", domain.CodecJSON:
		return JSON[T]{}, nil
	case domain.CodecMsgpack:
		return NewMsgpack[T](), nil
	default:
		return nil, fmt.Errorf("%w: unknown codec %q", domain.ErrInvalidConfig, name)
	}
}
