package codec

import (
	"log/slog"

	"google.golang.org/protobuf/types/known/anypb"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/relation"
)

// ExtensionDecoder turns opaque wire payloads back into relation payloads.
//
// Returning a nil payload with a nil error from DecodeOptimization drops the
// payload. The detail methods receive the decoded inputs of the relation so a
// decoder can validate them.
type ExtensionDecoder interface {
	DecodeOptimization(a *anypb.Any) (relation.Payload, error)
	DecodeEnhancement(a *anypb.Any) (relation.Payload, error)
	DecodeLeafDetail(a *anypb.Any) (relation.LeafDetail, error)
	DecodeSingleDetail(a *anypb.Any, input relation.Relation) (relation.SingleDetail, error)
	DecodeMultiDetail(a *anypb.Any, inputs []relation.Relation) (relation.MultiDetail, error)
	DecodeTableDetail(a *anypb.Any) (relation.TableDetail, error)
}

// DefaultExtensionDecoder understands no payloads. Optimizations are dropped,
// enhancements fail with errdefs.ErrUnhandledEnhancement and extension
// relation details fail with errdefs.ErrUnsupported.
//
// Embed it to handle specific payload types and defer the rest:
//
//	type myDecoder struct{ codec.DefaultExtensionDecoder }
//
//	func (d myDecoder) DecodeEnhancement(a *anypb.Any) (relation.Payload, error) {
//	    if a.MessageIs(&mypb.Hint{}) {
//	        return relation.AnyPayload{Any: a}, nil
//	    }
//	    return d.DefaultExtensionDecoder.DecodeEnhancement(a)
//	}
type DefaultExtensionDecoder struct {
	// Logger receives a debug record per dropped optimization.
	// OPTIONAL: defaults to slog.Default().
	Logger *slog.Logger
}

func (d DefaultExtensionDecoder) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d DefaultExtensionDecoder) DecodeOptimization(a *anypb.Any) (relation.Payload, error) {
	d.logger().Debug("Dropping optimization payload", "type_url", a.GetTypeUrl())
	return nil, nil
}

func (DefaultExtensionDecoder) DecodeEnhancement(a *anypb.Any) (relation.Payload, error) {
	return nil, errdefs.UnhandledEnhancementf("%s", a.GetTypeUrl())
}

func (DefaultExtensionDecoder) DecodeLeafDetail(a *anypb.Any) (relation.LeafDetail, error) {
	return nil, errdefs.Unsupportedf("extension leaf detail %s", a.GetTypeUrl())
}

func (DefaultExtensionDecoder) DecodeSingleDetail(a *anypb.Any, _ relation.Relation) (relation.SingleDetail, error) {
	return nil, errdefs.Unsupportedf("extension single detail %s", a.GetTypeUrl())
}

func (DefaultExtensionDecoder) DecodeMultiDetail(a *anypb.Any, _ []relation.Relation) (relation.MultiDetail, error) {
	return nil, errdefs.Unsupportedf("extension multi detail %s", a.GetTypeUrl())
}

func (DefaultExtensionDecoder) DecodeTableDetail(a *anypb.Any) (relation.TableDetail, error) {
	return nil, errdefs.Unsupportedf("extension table detail %s", a.GetTypeUrl())
}
