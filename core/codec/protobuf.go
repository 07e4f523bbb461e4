package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtobufCodec implements Protocol Buffers encoding/decoding. Plain maps
// travel as google.protobuf.Struct.
type ProtobufCodec struct{}

func (c *ProtobufCodec) Encode(v any) ([]byte, error) {
	switch m := v.(type) {
	case proto.Message:
		return proto.MarshalOptions{Deterministic: true}.Marshal(m)
	case map[string]any:
		s, err := structpb.NewStruct(m)
		if err != nil {
			return nil, fmt.Errorf("convert map to struct: %w", err)
		}
		return proto.MarshalOptions{Deterministic: true}.Marshal(s)
	default:
		return nil, fmt.Errorf("value must be a proto.Message or map[string]any, got %T", v)
	}
}

func (c *ProtobufCodec) Decode(data []byte, v any) error {
	switch m := v.(type) {
	case proto.Message:
		return proto.Unmarshal(data, m)
	case *map[string]any:
		s := &structpb.Struct{}
		if err := proto.Unmarshal(data, s); err != nil {
			return err
		}
		*m = s.AsMap()
		return nil
	default:
		return fmt.Errorf("value must be a proto.Message or *map[string]any, got %T", v)
	}
}

func (c *ProtobufCodec) Name() string {
	return "protobuf"
}
