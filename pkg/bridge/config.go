package bridge

import (
	"context"
	"net/netip"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/marmos91/nexusd/internal/logger"
	nerrors "github.com/marmos91/nexusd/pkg/errors"
)

// DefaultIP and DefaultPort make up the endpoint the node serves requests on
// when none is configured.
const (
	DefaultIP   = "0.0.0.0"
	DefaultPort = 10124
)

// Exporter persists the node's current configuration.
type Exporter interface {
	ExportConfig(ctx context.Context) error
}

// ExporterFunc adapts a function to Exporter.
type ExporterFunc func(ctx context.Context) error

// ExportConfig calls f.
func (f ExporterFunc) ExportConfig(ctx context.Context) error { return f(ctx) }

// SyncConfig runs a configuration-mutating operation and, if it succeeded,
// exports the configuration. If the export fails the mutation stays applied
// in memory and the caller gets a DataLoss status, so it can retry or alert.
// Operation failures are returned unchanged and nothing is exported.
func SyncConfig[T any](ctx context.Context, exp Exporter, op func() (T, error)) (T, error) {
	v, err := op()
	if err != nil {
		return v, err
	}

	if err := exp.ExportConfig(ctx); err != nil {
		logger.ErrorCtx(ctx, "Failed to export config", logger.Err(err))
		var zero T
		return zero, status.Error(codes.DataLoss, "Failed to export config")
	}
	return v, nil
}

// DefaultEndpoint returns 0.0.0.0:10124.
func DefaultEndpoint() netip.AddrPort {
	return netip.AddrPortFrom(netip.IPv4Unspecified(), DefaultPort)
}

// Endpoint parses an "ip[:port]" endpoint, appending the default port when
// the string has no ':' at all. A bare IPv6 address therefore needs an
// explicit "[addr]:port" form.
func Endpoint(s string) (netip.AddrPort, error) {
	if !strings.Contains(s, ":") {
		s = s + ":" + strconv.Itoa(DefaultPort)
	}
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return netip.AddrPort{}, nerrors.Wrap(nerrors.ErrInvalidArgument, err, "invalid endpoint "+strconv.Quote(s))
	}
	return ap, nil
}
