package client

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/agreements/internal/model"
)

const (
	adminStatsMethod          = "/agreements.v1.AdminService/Stats"
	adminListAgreementsMethod = "/agreements.v1.AdminService/ListAgreements"
)

// GRPCClient talks to the server's gRPC port: the standard health service
// and the admin service.
type GRPCClient struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
	token  string
}

// NewGRPCClient connects to the given gRPC address and returns a client.
func NewGRPCClient(addr, token string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
		token:  token,
	}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) withAuth(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
}

// Check returns the serving status of service ("" for the whole server) as
// a lower-case string such as "serving".
func (c *GRPCClient) Check(ctx context.Context, service string) (string, error) {
	resp, err := c.health.Check(c.withAuth(ctx), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return "", fmt.Errorf("health check: %w", err)
	}
	return statusString(resp.GetStatus()), nil
}

// Stats returns the signing totals from the admin service.
func (c *GRPCClient) Stats(ctx context.Context) (*model.Stats, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.withAuth(ctx), adminStatsMethod, &emptypb.Empty{}, out); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	var s model.Stats
	if err := fromStruct(out, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListAgreements lists agreements through the admin service.
func (c *GRPCClient) ListAgreements(ctx context.Context, req *ListAgreementsRequest) (*ListAgreementsResponse, error) {
	in, err := structpb.NewStruct(map[string]any{
		"search": req.Search,
		"limit":  req.Limit,
		"offset": req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list agreements: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.withAuth(ctx), adminListAgreementsMethod, in, out); err != nil {
		return nil, fmt.Errorf("list agreements: %w", err)
	}
	var resp ListAgreementsResponse
	if err := fromStruct(out, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// fromStruct decodes a Struct into v through its JSON encoding.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func statusString(s healthpb.HealthCheckResponse_ServingStatus) string {
	switch s {
	case healthpb.HealthCheckResponse_SERVING:
		return "serving"
	case healthpb.HealthCheckResponse_NOT_SERVING:
		return "not_serving"
	case healthpb.HealthCheckResponse_SERVICE_UNKNOWN:
		return "service_unknown"
	default:
		return "unknown"
	}
}
