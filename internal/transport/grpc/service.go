package grpcx

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "needledrop.lobby.v1.LobbyAdmin"

// LobbyAdminServer is the admin surface of one lobby process.
type LobbyAdminServer interface {
	ListRooms(context.Context, *ListRoomsRequest) (*ListRoomsResponse, error)
	GetRoom(context.Context, *GetRoomRequest) (*GetRoomResponse, error)
	GetQueue(context.Context, *ZoneRequest) (*QueueResponse, error)
	SkipTrack(context.Context, *ZoneRequest) (*QueueResponse, error)
	ClearChat(context.Context, *ClearChatRequest) (*ClearChatResponse, error)
}

func unary[Req, Resp any](name string, call func(LobbyAdminServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LobbyAdminServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LobbyAdminServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LobbyAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListRooms", LobbyAdminServer.ListRooms),
		unary("GetRoom", LobbyAdminServer.GetRoom),
		unary("GetQueue", LobbyAdminServer.GetQueue),
		unary("SkipTrack", LobbyAdminServer.SkipTrack),
		unary("ClearChat", LobbyAdminServer.ClearChat),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "needledrop/lobby/v1/admin.proto",
}

func Register(grpcServer grpc.ServiceRegistrar, s LobbyAdminServer) {
	grpcServer.RegisterService(&serviceDesc, s)
}

// Client is a typed caller for LobbyAdmin over the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListRooms(ctx context.Context, in *ListRoomsRequest, opts ...grpc.CallOption) (*ListRoomsResponse, error) {
	return invoke[ListRoomsResponse](ctx, c, "ListRooms", in, opts)
}

func (c *Client) GetRoom(ctx context.Context, in *GetRoomRequest, opts ...grpc.CallOption) (*GetRoomResponse, error) {
	return invoke[GetRoomResponse](ctx, c, "GetRoom", in, opts)
}

func (c *Client) GetQueue(ctx context.Context, in *ZoneRequest, opts ...grpc.CallOption) (*QueueResponse, error) {
	return invoke[QueueResponse](ctx, c, "GetQueue", in, opts)
}

func (c *Client) SkipTrack(ctx context.Context, in *ZoneRequest, opts ...grpc.CallOption) (*QueueResponse, error) {
	return invoke[QueueResponse](ctx, c, "SkipTrack", in, opts)
}

func (c *Client) ClearChat(ctx context.Context, in *ClearChatRequest, opts ...grpc.CallOption) (*ClearChatResponse, error) {
	return invoke[ClearChatResponse](ctx, c, "ClearChat", in, opts)
}
