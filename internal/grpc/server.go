package igrpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"social-service/internal/apperror"
	"social-service/internal/logger"
	"social-service/internal/services"
)

const ServiceName = "social.v1.SocialInternal"

const (
	methodAreFriends     = "/" + ServiceName + "/AreFriends"
	methodVisibleAuthors = "/" + ServiceName + "/VisibleAuthors"
	methodGetUser        = "/" + ServiceName + "/GetUser"
)

// SocialInternalServer is the internal API other services call to ask about
// the friend graph and user summaries. Messages are protobuf well-known types:
// AreFriends takes {"user_id", "friend_id"}, the others a single user id.
// Ids inside Struct and ListValue travel as decimal strings, since their
// number values are doubles.
type SocialInternalServer interface {
	AreFriends(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error)
	VisibleAuthors(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.ListValue, error)
	GetUser(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error)
}

type SocialGRPCServer struct {
	friends    *services.FriendService
	visibility *services.VisibilityResolver
	users      *services.UserService
}

func NewSocialGRPCServer(friends *services.FriendService, visibility *services.VisibilityResolver, users *services.UserService) *SocialGRPCServer {
	return &SocialGRPCServer{friends: friends, visibility: visibility, users: users}
}

// NewServer builds a gRPC server with the internal API and the standard
// health service registered.
func NewServer(impl SocialInternalServer) *grpc.Server {
	srv := grpc.NewServer()
	RegisterSocialInternalServer(srv, impl)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}

// Serve runs srv on addr until ctx is cancelled, then stops it gracefully.
func Serve(ctx context.Context, addr string, srv *grpc.Server) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	logger.Get().Info("gRPC server listening", zap.String("addr", addr))
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *SocialGRPCServer) AreFriends(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	userID, err := idField(req, "user_id")
	if err != nil {
		return nil, err
	}
	friendID, err := idField(req, "friend_id")
	if err != nil {
		return nil, err
	}

	friends, err := s.friends.AreFriends(ctx, userID, friendID)
	if err != nil {
		return nil, toStatus(err, "failed to check friendship")
	}
	return wrapperspb.Bool(friends), nil
}

func (s *SocialGRPCServer) VisibleAuthors(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.ListValue, error) {
	ids, err := s.visibility.VisibleAuthors(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err, "failed to resolve visible authors")
	}
	values := make([]*structpb.Value, 0, len(ids))
	for _, id := range ids {
		values = append(values, structpb.NewStringValue(formatID(id)))
	}
	return &structpb.ListValue{Values: values}, nil
}

func (s *SocialGRPCServer) GetUser(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	user, err := s.users.GetUserByID(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err, "failed to fetch user")
	}
	out, err := structpb.NewStruct(map[string]any{
		"id":           formatID(user.ID),
		"username":     user.Username,
		"display_name": user.DisplayName,
		"avatar_url":   user.AvatarURL,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode user: %v", err)
	}
	return out, nil
}

// maxExactID is the largest integer a protobuf double holds without loss.
const maxExactID = 1 << 53

// idField reads a positive id given as a decimal string, or as a number small
// enough to be exact.
func idField(req *structpb.Struct, name string) (int64, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	invalid := status.Errorf(codes.InvalidArgument, "%s must be a positive integer", name)

	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		id, err := parseID(kind.StringValue)
		if err != nil {
			return 0, invalid
		}
		return id, nil
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n <= 0 || n > maxExactID || n != math.Trunc(n) {
			return 0, invalid
		}
		return int64(n), nil
	default:
		return 0, invalid
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("id %d is not positive", id)
	}
	return id, nil
}

func toStatus(err error, message string) error {
	switch apperror.KindOf(err) {
	case apperror.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case apperror.KindInvalidInput, apperror.KindInvalidRequest:
		return status.Error(codes.InvalidArgument, err.Error())
	case apperror.KindForbidden:
		return status.Error(codes.PermissionDenied, err.Error())
	case apperror.KindStorageUnavailable:
		return status.Errorf(codes.Unavailable, "%s: %v", message, err)
	default:
		return status.Errorf(codes.Internal, "%s: %v", message, err)
	}
}
