package exchange

import (
	"google.golang.org/grpc/encoding"

	"github.com/hugr-lab/substrait-go/internal/msgpack"
)

// CodecName is the gRPC content subtype of exchange messages.
const CodecName = "msgpack"

func init() {
	encoding.RegisterCodec(msgpackCodec{})
}

// msgpackCodec carries exchange messages as MessagePack instead of protobuf.
type msgpackCodec struct{}

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Encode(v)
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Decode(data, v)
}

func (msgpackCodec) Name() string {
	return CodecName
}
