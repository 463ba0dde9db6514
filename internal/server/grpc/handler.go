package grpc

import (
	"context"

	pb "github.com/dmitrijs2005/minitwit/internal/proto"
	"github.com/dmitrijs2005/minitwit/internal/server/services"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	tokens, err := s.auth.Login(ctx, pb.GetString(req, pb.FieldUsername), pb.GetString(req, pb.FieldPassword))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return tokenPairMessage(tokens), nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	tokens, err := s.auth.RefreshToken(ctx, pb.GetString(req, pb.FieldAccessToken), pb.GetString(req, pb.FieldRefreshToken))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return tokenPairMessage(tokens), nil
}

func (s *GRPCServer) WhoAmI(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {

	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	user, err := s.auth.CurrentUser(ctx, claims.UserID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return pb.NewMessage(map[string]string{
		pb.FieldUserID:   user.ID,
		pb.FieldUsername: user.Username,
		pb.FieldEmail:    user.Email,
	}), nil
}

func tokenPairMessage(p *services.TokenPair) *structpb.Struct {
	return pb.NewMessage(map[string]string{
		pb.FieldAccessToken:  p.AccessToken,
		pb.FieldRefreshToken: p.RefreshToken,
	})
}

// toStatus maps an AuthError to Unauthenticated with its reason attached;
// anything else is an internal error and its text stays in the server log.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	ae, ok := services.AsAuthError(err)
	if !ok {
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
	return unauthenticated(ae.Message, ae.Reason())
}

func unauthenticated(msg, reason string) error {
	st := status.New(codes.Unauthenticated, msg)
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: pb.ErrorDomain})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}
