package msgs

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/protobuf/proto"
)

// Codec encodes readings for publishing.
type Codec interface {
	Name() string
	Marshal(*Reading) ([]byte, error)
	Unmarshal([]byte, *Reading) error
}

// Codec names.
const (
	CodecProto = "proto"
	CodecJSON  = "json"
	CodecCBOR  = "cbor"
)

// Codecs are the supported codecs by name.
var Codecs = map[string]Codec{
	CodecProto: protoCodec{},
	CodecJSON:  jsonCodec{},
	CodecCBOR:  cborCodec{},
}

// CodecByName looks up a codec.
func CodecByName(name string) (Codec, error) {
	if c, ok := Codecs[name]; ok {
		return c, nil
	}
	names := make([]string, 0, len(Codecs))
	for n := range Codecs {
		names = append(names, n)
	}
	sort.Strings(names)
	return nil, fmt.Errorf("unknown encoding %q, expect one of %v", name, names)
}

type protoCodec struct{}

func (protoCodec) Name() string                       { return CodecProto }
func (protoCodec) Marshal(m *Reading) ([]byte, error) { return proto.Marshal(m) }
func (protoCodec) Unmarshal(data []byte, m *Reading) error {
	return proto.Unmarshal(data, m)
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return CodecJSON }
func (jsonCodec) Marshal(m *Reading) ([]byte, error) { return json.Marshal(m) }
func (jsonCodec) Unmarshal(data []byte, m *Reading) error {
	return json.Unmarshal(data, m)
}

type cborCodec struct{}

func (cborCodec) Name() string                       { return CodecCBOR }
func (cborCodec) Marshal(m *Reading) ([]byte, error) { return cbor.Marshal(m) }
func (cborCodec) Unmarshal(data []byte, m *Reading) error {
	return cbor.Unmarshal(data, m)
}
