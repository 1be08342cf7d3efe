package igrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var socialInternalServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SocialInternalServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AreFriends", Handler: areFriendsHandler},
		{MethodName: "VisibleAuthors", Handler: visibleAuthorsHandler},
		{MethodName: "GetUser", Handler: getUserHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "social/v1/internal.proto",
}

func RegisterSocialInternalServer(s grpc.ServiceRegistrar, srv SocialInternalServer) {
	s.RegisterService(&socialInternalServiceDesc, srv)
}

func areFriendsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SocialInternalServer).AreFriends(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodAreFriends}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SocialInternalServer).AreFriends(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func visibleAuthorsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SocialInternalServer).VisibleAuthors(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodVisibleAuthors}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SocialInternalServer).VisibleAuthors(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func getUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SocialInternalServer).GetUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetUser}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SocialInternalServer).GetUser(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls SocialInternal over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) AreFriends(ctx context.Context, userID, friendID int64) (bool, error) {
	in, err := structpb.NewStruct(map[string]any{"user_id": formatID(userID), "friend_id": formatID(friendID)})
	if err != nil {
		return false, err
	}
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, methodAreFriends, in, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *Client) VisibleAuthors(ctx context.Context, viewerID int64) ([]int64, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, methodVisibleAuthors, wrapperspb.Int64(viewerID), out); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		id, err := parseID(v.GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("invalid author id in response: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Client) GetUser(ctx context.Context, userID int64) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetUser, wrapperspb.Int64(userID), out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
