package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys.
const (
	AttrClientAddr = "client.address"
	AttrOperation  = "admin.operation"
	AttrStatus     = "admin.status"

	AttrNexusUUID   = "nexus.uuid"
	AttrNexusName   = "nexus.name"
	AttrNexusSize   = "nexus.size"
	AttrChildURI    = "nexus.child"
	AttrPool        = "pool.name"
	AttrReplicaUUID = "replica.uuid"
	AttrProtocol    = "share.protocol"
	AttrANAState    = "nvmf.ana_state"
)

// Span names, <component>.<operation>.
const (
	SpanAdminRequest = "admin.request"

	SpanPoolCreate     = "pool.create"
	SpanPoolDestroy    = "pool.destroy"
	SpanReplicaCreate  = "replica.create"
	SpanReplicaShare   = "replica.share"
	SpanReplicaDestroy = "replica.destroy"

	SpanNexusCreate      = "nexus.create"
	SpanNexusPublish     = "nexus.publish"
	SpanNexusUnpublish   = "nexus.unpublish"
	SpanNexusDestroy     = "nexus.destroy"
	SpanNexusRemoveChild = "nexus.remove_child"
	SpanNexusSetANA      = "nexus.set_ana_state"

	SpanConfigExport = "config.export"
	SpanConfigImport = "config.import"
)

func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

func Operation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

func Status(code string) attribute.KeyValue {
	return attribute.String(AttrStatus, code)
}

func NexusUUID(uuid string) attribute.KeyValue {
	return attribute.String(AttrNexusUUID, uuid)
}

func NexusName(name string) attribute.KeyValue {
	return attribute.String(AttrNexusName, name)
}

// NexusSize records the size in bytes. Sizes above MaxInt64 are clamped.
func NexusSize(size uint64) attribute.KeyValue {
	return attribute.Int64(AttrNexusSize, int64(min(size, 1<<63-1)))
}

func ChildURI(uri string) attribute.KeyValue {
	return attribute.String(AttrChildURI, uri)
}

func Pool(name string) attribute.KeyValue {
	return attribute.String(AttrPool, name)
}

func ReplicaUUID(uuid string) attribute.KeyValue {
	return attribute.String(AttrReplicaUUID, uuid)
}

func Protocol(name string) attribute.KeyValue {
	return attribute.String(AttrProtocol, name)
}

func ANAState(state string) attribute.KeyValue {
	return attribute.String(AttrANAState, state)
}

// StartAdminSpan starts an internal span for a runtime operation. The HTTP
// layer owns the server span.
func StartAdminSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartRequestSpan starts the server span of an admin API request.
func StartRequestSpan(ctx context.Context, operation, clientAddr string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{Operation(operation), ClientAddr(clientAddr)}, attrs...)
	return Tracer().Start(ctx, SpanAdminRequest,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
}
