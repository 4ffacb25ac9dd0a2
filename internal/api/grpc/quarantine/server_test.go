package quarantine

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	domain "github.com/oshokin/quarantine-engine/internal/domain/quarantine"
	"github.com/oshokin/quarantine-engine/internal/service/engine"
	"github.com/oshokin/quarantine-engine/internal/stream"
)

var errDiskFull = errors.New("disk full")

// fakeService implements Service for unit testing the transport.
type fakeService struct {
	// statuses is the status broadcaster served to watchers.
	statuses stream.Latest[domain.Status]

	// mu guards the fields below.
	mu sync.Mutex
	// calls records mutator invocations as "name" or "name:severity".
	calls []string
	// at is the instant passed to the last recording mutator.
	at time.Time
	// banner is the banner flag.
	banner bool
	// failWith is returned by every mutator when set.
	failWith error
}

func (f *fakeService) Status(ctx context.Context) <-chan domain.Status { return f.statuses.Subscribe(ctx) }

func (f *fakeService) Current() (domain.Status, bool) { return f.statuses.Value() }

func (f *fakeService) ShowQuarantineEndBanner() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.banner
}

func (f *fakeService) SetQuarantineEndBanner(_ context.Context, show bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.banner = show

	return f.failWith
}

func (f *fakeService) RecordMedicalConfirmation(_ context.Context, at time.Time) error {
	return f.record("record_medical", at)
}

func (f *fakeService) RevokeMedicalConfirmation(context.Context) error {
	return f.record("revoke_medical", time.Time{})
}

func (f *fakeService) RecordSelfDiagnosis(_ context.Context, at time.Time) error {
	return f.record("record_self_diagnosis", at)
}

func (f *fakeService) RevokeSelfDiagnosis(context.Context) error {
	return f.record("revoke_self_diagnosis", time.Time{})
}

func (f *fakeService) RecordContact(_ context.Context, severity domain.Severity, at time.Time) error {
	return f.record("record_contact:"+severity.String(), at)
}

func (f *fakeService) RecordSelfMonitoring(_ context.Context, at time.Time) error {
	return f.record("record_self_monitoring", at)
}

func (f *fakeService) RevokeSelfMonitoring(context.Context) error {
	return f.record("revoke_self_monitoring", time.Time{})
}

func (f *fakeService) record(call string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call)
	f.at = at

	return f.failWith
}

func (f *fakeService) snapshot() ([]string, time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.calls...), f.at
}

// TestServiceDesc_MatchesContract checks the registered service against the
// methods declared in quarantine/v1/quarantine.proto.
func TestServiceDesc_MatchesContract(t *testing.T) {
	t.Parallel()

	server := grpc.NewServer()
	RegisterQuarantineServiceServer(server, NewServer(new(fakeService)))

	info, ok := server.GetServiceInfo()[ServiceName]
	require.True(t, ok)
	require.Equal(t, "quarantine/v1/quarantine.proto", info.Metadata)

	methods := make(map[string]grpc.MethodInfo, len(info.Methods))
	for _, method := range info.Methods {
		methods[method.Name] = method
	}

	require.Len(t, methods, 6)

	for _, name := range []string{"GetStatus", "RecordEvent", "RevokeEvent", "GetBanner", "SetBanner"} {
		method, found := methods[name]
		require.True(t, found, name)
		require.False(t, method.IsServerStream, name)
		require.False(t, method.IsClientStream, name)
	}

	watch, found := methods["WatchStatus"]
	require.True(t, found)
	require.True(t, watch.IsServerStream)
	require.False(t, watch.IsClientStream)
}

// TestServer_GetStatus covers the unavailable and available cases.
func TestServer_GetStatus(t *testing.T) {
	t.Parallel()

	svc := new(fakeService)
	s := NewServer(svc)

	_, err := s.GetStatus(context.Background(), new(emptypb.Empty))
	require.Equal(t, codes.Unavailable, status.Code(err))

	svc.statuses.Publish(domain.JailedForever())

	response, err := s.GetStatus(context.Background(), new(emptypb.Empty))
	require.NoError(t, err)

	got, err := StatusFromStruct(response)
	require.NoError(t, err)
	require.True(t, domain.JailedForever().Equal(got))
}

// TestServer_RecordEvent_Dispatch ensures every event reaches the matching mutator.
func TestServer_RecordEvent_Dispatch(t *testing.T) {
	t.Parallel()

	at := time.Date(2020, time.May, 4, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		request EventRequest
		want    string
	}{
		{"medical", EventRequest{Event: EventMedical, At: at}, "record_medical"},
		{"self diagnosis", EventRequest{Event: EventSelfDiagnosis, At: at}, "record_self_diagnosis"},
		{"red contact", EventRequest{Event: EventContact, Severity: domain.SeverityRed, At: at}, "record_contact:red"},
		{"yellow contact", EventRequest{Event: EventContact, Severity: domain.SeverityYellow, At: at}, "record_contact:yellow"},
		{"self monitoring", EventRequest{Event: EventSelfMonitoring, At: at}, "record_self_monitoring"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := new(fakeService)
			s := NewServer(svc)

			_, err := s.RecordEvent(context.Background(), tt.request.ToStruct())
			require.NoError(t, err)

			calls, got := svc.snapshot()
			require.Equal(t, []string{tt.want}, calls)
			require.True(t, got.Equal(at))
		})
	}
}

// TestServer_RecordEvent_DefaultsToNow verifies a missing instant is stamped by the server.
func TestServer_RecordEvent_DefaultsToNow(t *testing.T) {
	t.Parallel()

	now := time.Date(2021, time.January, 2, 3, 4, 5, 0, time.UTC)

	svc := new(fakeService)
	s := NewServer(svc)
	s.now = func() time.Time { return now }

	_, err := s.RecordEvent(context.Background(), EventRequest{Event: EventSelfMonitoring}.ToStruct())
	require.NoError(t, err)

	_, at := svc.snapshot()
	require.True(t, at.Equal(now))
}

// TestServer_Validation ensures malformed requests return InvalidArgument errors.
func TestServer_Validation(t *testing.T) {
	t.Parallel()

	s := NewServer(new(fakeService))
	ctx := context.Background()

	_, err := s.RecordEvent(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.RecordEvent(ctx, &structpb.Struct{})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	unknown, err := structpb.NewStruct(map[string]any{"event": "vaccination"})
	require.NoError(t, err)

	_, err = s.RecordEvent(ctx, unknown)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	green, err := structpb.NewStruct(map[string]any{"event": "contact", "severity": "green"})
	require.NoError(t, err)

	_, err = s.RecordEvent(ctx, green)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.RevokeEvent(ctx, EventRequest{Event: EventContact, Severity: domain.SeverityRed}.ToStruct())
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.SetBanner(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestServer_ErrorMapping checks how engine errors surface as codes.
func TestServer_ErrorMapping(t *testing.T) {
	t.Parallel()

	svc := &fakeService{failWith: errDiskFull}
	s := NewServer(svc)

	_, err := s.RevokeEvent(context.Background(), EventRequest{Event: EventMedical}.ToStruct())
	require.Equal(t, codes.Internal, status.Code(err))

	svc.failWith = engine.ErrZeroTime

	_, err = s.RecordEvent(context.Background(), EventRequest{Event: EventMedical}.ToStruct())
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestServer_Roundtrip exercises the service over an in-memory connection.
func TestServer_Roundtrip(t *testing.T) {
	t.Parallel()

	svc := new(fakeService)
	svc.statuses.Publish(domain.Free(false))

	server := NewServer(svc)
	client := newBufconnClient(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	watch, err := client.WatchStatus(ctx, new(emptypb.Empty))
	require.NoError(t, err)

	first, err := watch.Recv()
	require.NoError(t, err)
	require.Equal(t, "free", first.GetFields()["kind"].GetStringValue())

	_, err = client.RecordEvent(ctx, EventRequest{Event: EventContact, Severity: domain.SeverityRed}.ToStruct())
	require.NoError(t, err)

	calls, _ := svc.snapshot()
	require.Equal(t, []string{"record_contact:red"}, calls)

	end := time.Date(2020, time.June, 1, 0, 0, 0, 0, time.UTC)
	svc.statuses.Publish(domain.JailedLimited(end, true))

	next, err := watch.Recv()
	require.NoError(t, err)

	got, err := StatusFromStruct(next)
	require.NoError(t, err)
	require.True(t, domain.JailedLimited(end, true).Equal(got))

	current, err := client.GetStatus(ctx, new(emptypb.Empty))
	require.NoError(t, err)
	require.Equal(t, "jailed_limited", current.GetFields()["kind"].GetStringValue())

	_, err = client.SetBanner(ctx, wrapperspb.Bool(true))
	require.NoError(t, err)

	banner, err := client.GetBanner(ctx, new(emptypb.Empty))
	require.NoError(t, err)
	require.True(t, banner.GetValue())

	server.Shutdown()

	_, err = watch.Recv()
	require.Equal(t, codes.Unavailable, status.Code(err))
}

// newBufconnClient serves s on an in-memory listener and returns a connected client.
func newBufconnClient(t *testing.T, s *Server) *QuarantineServiceClient {
	t.Helper()

	listener := bufconn.Listen(1 << 20)

	grpcServer := grpc.NewServer()
	RegisterQuarantineServiceServer(grpcServer, s)

	go func() {
		_ = grpcServer.Serve(listener)
	}()

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()

		s.Shutdown()
		grpcServer.Stop()
	})

	return NewQuarantineServiceClient(conn)
}
