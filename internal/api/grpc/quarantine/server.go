package quarantine

import (
	"context"
	"errors"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	domain "github.com/oshokin/quarantine-engine/internal/domain/quarantine"
	"github.com/oshokin/quarantine-engine/internal/logger"
	"github.com/oshokin/quarantine-engine/internal/service/engine"
)

// Service abstracts the engine operations the transport layer depends on.
type Service interface {
	Status(ctx context.Context) <-chan domain.Status
	Current() (domain.Status, bool)
	ShowQuarantineEndBanner() bool
	SetQuarantineEndBanner(ctx context.Context, show bool) error
	RecordMedicalConfirmation(ctx context.Context, at time.Time) error
	RevokeMedicalConfirmation(ctx context.Context) error
	RecordSelfDiagnosis(ctx context.Context, at time.Time) error
	RevokeSelfDiagnosis(ctx context.Context) error
	RecordContact(ctx context.Context, severity domain.Severity, at time.Time) error
	RecordSelfMonitoring(ctx context.Context, at time.Time) error
	RevokeSelfMonitoring(ctx context.Context) error
}

// Server implements QuarantineServiceServer on top of a Service.
type Server struct {
	// service provides the engine operations.
	service Service
	// now stamps events recorded without an instant.
	now func() time.Time

	// done is closed by Shutdown to end open watch streams.
	done      chan struct{}
	closeOnce sync.Once
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// Shutdown ends every open WatchStatus stream so that a graceful stop can complete.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// GetStatus returns the last forwarded status.
func (s *Server) GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	current, ok := s.service.Current()
	if !ok {
		return nil, status.Error(codes.Unavailable, "status is not derived yet")
	}

	return StatusToStruct(current), nil
}

// WatchStatus streams every forwarded status, starting with the current one.
func (s *Server) WatchStatus(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	updates := s.service.Status(ctx)

	for {
		select {
		case <-s.done:
			return status.Error(codes.Unavailable, "server is shutting down")
		case current, ok := <-updates:
			if !ok {
				return status.FromContextError(ctx.Err()).Err()
			}

			if err := stream.Send(StatusToStruct(current)); err != nil {
				return err
			}
		}
	}
}

// RecordEvent stores the event described by the request document.
func (s *Server) RecordEvent(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	request, err := EventRequestFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	at := request.At
	if at.IsZero() {
		at = s.now()
	}

	switch request.Event {
	case EventMedical:
		err = s.service.RecordMedicalConfirmation(ctx, at)
	case EventSelfDiagnosis:
		err = s.service.RecordSelfDiagnosis(ctx, at)
	case EventContact:
		err = s.service.RecordContact(ctx, request.Severity, at)
	case EventSelfMonitoring:
		err = s.service.RecordSelfMonitoring(ctx, at)
	}

	if err != nil {
		return nil, toStatusError(ctx, "record event", err)
	}

	return new(emptypb.Empty), nil
}

// RevokeEvent clears the event described by the request document.
// Contact notifications are not revocable.
func (s *Server) RevokeEvent(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	request, err := EventRequestFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	switch request.Event {
	case EventMedical:
		err = s.service.RevokeMedicalConfirmation(ctx)
	case EventSelfDiagnosis:
		err = s.service.RevokeSelfDiagnosis(ctx)
	case EventSelfMonitoring:
		err = s.service.RevokeSelfMonitoring(ctx)
	case EventContact:
		return nil, status.Error(codes.InvalidArgument, "contact notifications cannot be revoked")
	}

	if err != nil {
		return nil, toStatusError(ctx, "revoke event", err)
	}

	return new(emptypb.Empty), nil
}

// GetBanner returns the quarantine-end banner flag.
func (s *Server) GetBanner(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.service.ShowQuarantineEndBanner()), nil
}

// SetBanner sets or clears the quarantine-end banner flag.
func (s *Server) SetBanner(ctx context.Context, req *wrapperspb.BoolValue) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	if err := s.service.SetQuarantineEndBanner(ctx, req.GetValue()); err != nil {
		return nil, toStatusError(ctx, "set banner", err)
	}

	return new(emptypb.Empty), nil
}

// toStatusError maps engine errors to gRPC codes.
func toStatusError(ctx context.Context, operation string, err error) error {
	if errors.Is(err, engine.ErrZeroTime) || errors.Is(err, domain.ErrUnknownSeverity) {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	logger.ErrorKV(ctx, "Operation failed", "operation", operation, "error", err)

	return status.Error(codes.Internal, "unable to persist event store")
}
