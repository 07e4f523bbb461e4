package codec

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedCodec = errors.New("unsupported codec")
)

// Codec encodes and decodes metrics snapshots
type Codec interface {
	// Encode encodes a value to bytes
	Encode(v any) ([]byte, error)

	// Decode decodes bytes to a value
	Decode(data []byte, v any) error

	// Name returns the codec name
	Name() string
}

// CodecType represents the codec type
type CodecType byte

const (
	CodecJSON     CodecType = 0x01
	CodecProtobuf CodecType = 0x03
)

// GetCodec returns a codec by type
func GetCodec(typ CodecType) (Codec, error) {
	switch typ {
	case CodecJSON:
		return &JSONCodec{Indent: "  "}, nil
	case CodecProtobuf:
		return &ProtobufCodec{}, nil
	default:
		return nil, ErrUnsupportedCodec
	}
}

// ForFile picks the codec for a snapshot file. Files ending in .pb get
// protobuf, everything else JSON.
func ForFile(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pb", ".binpb":
		c, _ := GetCodec(CodecProtobuf)
		return c
	default:
		c, _ := GetCodec(CodecJSON)
		return c
	}
}

// JSONCodec implements JSON encoding/decoding
type JSONCodec struct {
	Indent string
}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	if c.Indent == "" {
		return json.Marshal(v)
	}
	return json.MarshalIndent(v, "", c.Indent)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Name() string {
	return "json"
}
