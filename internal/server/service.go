// gRPC service descriptor and client for treeaudit.v1.AuditService
package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "treeaudit.v1.AuditService"

// AuditServer is the server API of the audit service
type AuditServer interface {
	ListRevisions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetChanges(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchRevisions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FilterTree(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Commit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Revert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(AuditServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuditServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuditServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the audit service for grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuditServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("ListRevisions", AuditServer.ListRevisions),
		unaryMethod("GetChanges", AuditServer.GetChanges),
		unaryMethod("SearchRevisions", AuditServer.SearchRevisions),
		unaryMethod("FilterTree", AuditServer.FilterTree),
		unaryMethod("Commit", AuditServer.Commit),
		unaryMethod("Revert", AuditServer.Revert),
		unaryMethod("GetSnapshot", AuditServer.GetSnapshot),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "treeaudit/v1/audit.proto",
}

// Register registers srv with a gRPC server
func Register(s grpc.ServiceRegistrar, srv AuditServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the audit service with typed messages
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return err
	}
	return fromStruct(out, resp)
}

// ListRevisions returns the revision panel
func (c *Client) ListRevisions(ctx context.Context) (*ListRevisionsResponse, error) {
	resp := &ListRevisionsResponse{}
	return resp, c.invoke(ctx, "ListRevisions", struct{}{}, resp)
}

// GetChanges returns the records of one revision
func (c *Client) GetChanges(ctx context.Context, req GetChangesRequest) (*GetChangesResponse, error) {
	resp := &GetChangesResponse{}
	return resp, c.invoke(ctx, "GetChanges", req, resp)
}

// SearchRevisions filters the revision panel
func (c *Client) SearchRevisions(ctx context.Context, req SearchRevisionsRequest) (*SearchRevisionsResponse, error) {
	resp := &SearchRevisionsResponse{}
	return resp, c.invoke(ctx, "SearchRevisions", req, resp)
}

// FilterTree filters the latest document tree
func (c *Client) FilterTree(ctx context.Context, req FilterTreeRequest) (*FilterTreeResponse, error) {
	resp := &FilterTreeResponse{}
	return resp, c.invoke(ctx, "FilterTree", req, resp)
}

// Commit appends a revision
func (c *Client) Commit(ctx context.Context, req CommitRequest) (*CommitResponse, error) {
	resp := &CommitResponse{}
	return resp, c.invoke(ctx, "Commit", req, resp)
}

// Revert restores an earlier version
func (c *Client) Revert(ctx context.Context, req RevertRequest) (*RevertResponse, error) {
	resp := &RevertResponse{}
	return resp, c.invoke(ctx, "Revert", req, resp)
}

// GetSnapshot returns the state at a version
func (c *Client) GetSnapshot(ctx context.Context, req GetSnapshotRequest) (*GetSnapshotResponse, error) {
	resp := &GetSnapshotResponse{}
	return resp, c.invoke(ctx, "GetSnapshot", req, resp)
}
