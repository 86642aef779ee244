package gateway

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Opcodes used by the client.
const (
	OpDispatch       = 0
	OpHeartbeat      = 1
	OpIdentify       = 2
	OpPresenceUpdate = 3
	OpReconnect      = 7
	OpInvalidSession = 9
	OpHello          = 10
	OpHeartbeatAck   = 11
)

// Frame is one gateway payload: {"op", "s", "t", "d"}.
type Frame struct {
	Op   int
	Seq  int64
	Type string
	Data *structpb.Value
}

func decodeFrame(b []byte) (*Frame, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	f := &Frame{Data: s.Fields["d"]}
	if v, ok := s.Fields["op"]; ok {
		f.Op = int(v.GetNumberValue())
	}
	if v, ok := s.Fields["s"]; ok {
		f.Seq = int64(v.GetNumberValue())
	}
	if v, ok := s.Fields["t"]; ok {
		f.Type = v.GetStringValue()
	}
	return f, nil
}

// encodeFrame builds {"op": op, "d": d}. d must be something structpb.NewValue
// accepts: nil, scalars, map[string]any and []any.
func encodeFrame(op int, d any) ([]byte, error) {
	data, err := structpb.NewValue(d)
	if err != nil {
		return nil, fmt.Errorf("encode frame op %d: %w", op, err)
	}
	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		"op": structpb.NewNumberValue(float64(op)),
		"d":  data,
	}}
	return protojson.Marshal(s)
}

// Decode unmarshals the frame's "d" field into out.
func (f *Frame) Decode(out any) error {
	if f.Data == nil {
		return fmt.Errorf("frame %q has no data", f.Type)
	}
	b, err := protojson.Marshal(f.Data)
	if err != nil {
		return fmt.Errorf("frame %q: %w", f.Type, err)
	}
	return json.Unmarshal(b, out)
}

// Field returns a top-level field of an object payload, or nil.
func (f *Frame) Field(name string) *structpb.Value {
	return f.Data.GetStructValue().GetFields()[name]
}
