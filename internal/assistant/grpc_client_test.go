package assistant

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chatbotyard/chatbotyard/internal/domain"
)

type fakeAssistant struct {
	last  *structpb.Struct
	reply func(in *structpb.Struct) (*structpb.Struct, error)
}

var fakeAssistantDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Reply",
		Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
			in := &structpb.Struct{}
			if err := dec(in); err != nil {
				return nil, err
			}
			f := srv.(*fakeAssistant)
			f.last = in
			return f.reply(in)
		},
	}},
}

func startFake(t *testing.T, f *fakeAssistant) *GrpcClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&fakeAssistantDesc, f)
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cfg := DefaultGrpcClientConfig("passthrough:///bufnet")
	cfg.RequestTimeout = time.Second
	client, err := NewGrpcClient(cfg, nil, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("NewGrpcClient: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestGrpcClientReply(t *testing.T) {
	f := &fakeAssistant{reply: func(in *structpb.Struct) (*structpb.Struct, error) {
		msg := in.GetFields()["message"].GetStringValue()
		return structpb.NewStruct(map[string]any{"reply": "echo: " + msg})
	}}
	client := startFake(t, f)

	got, err := client.Reply(context.Background(), ReplyRequest{
		ProjectID:   "p1",
		AssistantID: "asst-1",
		SessionID:   "s1",
		Message:     "hello",
		History: []domain.Message{
			{MessageID: "m1", Role: domain.RoleUser, Content: "earlier", Timestamp: time.Unix(0, 0)},
		},
	})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got != "echo: hello" {
		t.Errorf("reply = %q", got)
	}

	fields := f.last.GetFields()
	if fields["assistantId"].GetStringValue() != "asst-1" {
		t.Errorf("assistantId = %v", fields["assistantId"])
	}
	history := fields["history"].GetListValue().GetValues()
	if len(history) != 1 || history[0].GetStructValue().GetFields()["role"].GetStringValue() != "user" {
		t.Errorf("history = %v", history)
	}
}

func TestGrpcClientMapsUnavailable(t *testing.T) {
	client := startFake(t, &fakeAssistant{reply: func(*structpb.Struct) (*structpb.Struct, error) {
		return nil, status.Error(codes.Unavailable, "model overloaded")
	}})

	_, err := client.Reply(context.Background(), ReplyRequest{Message: "hi"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestGrpcClientEmptyReply(t *testing.T) {
	client := startFake(t, &fakeAssistant{reply: func(*structpb.Struct) (*structpb.Struct, error) {
		return &structpb.Struct{}, nil
	}})

	if _, err := client.Reply(context.Background(), ReplyRequest{Message: "hi"}); !errors.Is(err, errEmptyReply) {
		t.Errorf("err = %v, want errEmptyReply", err)
	}
}

func TestGrpcClientHealth(t *testing.T) {
	client := startFake(t, &fakeAssistant{})
	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
}

func TestCannedReply(t *testing.T) {
	got, err := NewCanned().Reply(context.Background(), ReplyRequest{Message: "anything"})
	if err != nil || got != CannedReply {
		t.Errorf("got %q, %v", got, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewCanned().Reply(ctx, ReplyRequest{}); err == nil {
		t.Error("expected error on cancelled context")
	}
}
