package progress

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serialises stored values.
type Codec[T any] interface {
	Name() string
	Encode(value T) ([]byte, error)
	Decode(data []byte) (*T, error)
}

// Codec names accepted by NewCodec.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// NewCodec returns the codec registered under name.
func NewCodec[T any](name string) (Codec[T], error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec[T]{}, nil
	case CodecMsgpack:
		return MsgpackCodec[T]{}, nil
	default:
		return nil, fmt.Errorf("progress: unknown codec %q", name)
	}
}

// JSONCodec encodes values as JSON.
type JSONCodec[T any] struct{}

var _ Codec[Snapshot] = JSONCodec[Snapshot]{}

func (JSONCodec[T]) Name() string { return CodecJSON }

func (JSONCodec[T]) Encode(value T) ([]byte, error) {
	return json.Marshal(value)
}

func (JSONCodec[T]) Decode(data []byte) (*T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("progress: decode json: %w", err)
	}
	return &out, nil
}

// MsgpackCodec encodes values with msgpack, which keeps snapshots compact in
// shared stores.
type MsgpackCodec[T any] struct{}

var _ Codec[Snapshot] = MsgpackCodec[Snapshot]{}

func (MsgpackCodec[T]) Name() string { return CodecMsgpack }

func (MsgpackCodec[T]) Encode(value T) ([]byte, error) {
	return msgpack.Marshal(value)
}

func (MsgpackCodec[T]) Decode(data []byte) (*T, error) {
	var out T
	if err := msgpack.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("progress: decode msgpack: %w", err)
	}
	return &out, nil
}
