package server

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/agreements/internal/model"
)

func startGRPC(t *testing.T, srv *AgreementServer, token string) *grpc.ClientConn {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	gs, _ := srv.NewGRPCServer(token)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func withToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func TestGRPCAdmin_RequiresToken(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	conn := startGRPC(t, srv, "secret")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := conn.Invoke(ctx, statsMethod, &emptypb.Empty{}, new(structpb.Struct))
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("Stats without token: expected Unauthenticated, got %v", err)
	}
	err = conn.Invoke(withToken(ctx, "wrong"), listAgreementsMethod, &structpb.Struct{}, new(structpb.Struct))
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("ListAgreements with wrong token: expected Unauthenticated, got %v", err)
	}

	// Health stays open and reports the admin service.
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("health status = %v", resp.GetStatus())
	}
}

func TestGRPCAdmin_StatsAndList(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return now }
	for i, name := range []string{"Lovelace", "Hopper", "Turing"} {
		if err := srv.store.InsertAgreement(context.Background(), &model.Agreement{
			FirstName:        "A",
			LastName:         name,
			ConfirmationCode: "DKP-00000" + string(rune('1'+i)),
			AgreedAt:         now.Add(-time.Duration(i) * 24 * time.Hour),
		}); err != nil {
			t.Fatal(err)
		}
	}

	conn := startGRPC(t, srv, "secret")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = withToken(ctx, "secret")

	stats := new(structpb.Struct)
	if err := conn.Invoke(ctx, statsMethod, &emptypb.Empty{}, stats); err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if got := stats.GetFields()["total"].GetNumberValue(); got != 3 {
		t.Errorf("total = %v, want 3", got)
	}
	if got := stats.GetFields()["today"].GetNumberValue(); got != 1 {
		t.Errorf("today = %v, want 1", got)
	}

	req, err := structpb.NewStruct(map[string]any{"limit": 2})
	if err != nil {
		t.Fatal(err)
	}
	list := new(structpb.Struct)
	if err := conn.Invoke(ctx, listAgreementsMethod, req, list); err != nil {
		t.Fatalf("ListAgreements: %v", err)
	}
	rows := list.GetFields()["agreements"].GetListValue().GetValues()
	if len(rows) != 2 || list.GetFields()["total"].GetNumberValue() != 3 {
		t.Fatalf("got %d rows of %v, want 2 of 3", len(rows), list.GetFields()["total"])
	}
	if code := rows[0].GetStructValue().GetFields()["confirmation_code"].GetStringValue(); code != "DKP-000001" {
		t.Errorf("first code = %q, want newest DKP-000001", code)
	}

	bad, _ := structpb.NewStruct(map[string]any{"offset": -1})
	err = conn.Invoke(ctx, listAgreementsMethod, bad, new(structpb.Struct))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("negative offset: expected InvalidArgument, got %v", err)
	}
}
