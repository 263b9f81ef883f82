package exchange

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/substrait-go/errdefs"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"canceled", fmt.Errorf("plan 0: %w", context.Canceled), codes.Canceled},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"integrity", errdefs.Integrityf("bad kind"), codes.InvalidArgument},
		{"anchor", &errdefs.AnchorError{Kind: "function", Anchor: 9}, codes.InvalidArgument},
		{"construction", errdefs.Constructionf("empty names"), codes.InvalidArgument},
		{"resolution", errdefs.Resolutionf("no add"), codes.NotFound},
		{"unsupported", errdefs.Unsupportedf("nullable row"), codes.Unimplemented},
		{"enhancement", errdefs.UnhandledEnhancementf("relation 0"), codes.Unimplemented},
		{"other", errors.New("boom"), codes.Internal},
		{"passthrough", status.Error(codes.PermissionDenied, "no"), codes.PermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := status.Code(toStatus(tt.err))
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	if toStatus(nil) != nil {
		t.Error("Expected nil for nil error")
	}
}
