package querier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/apache/arrow/go/v14/arrow/flight"
	flightgen "github.com/apache/arrow/go/v14/arrow/flight/gen/flight"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/gigapi/gigapi-zoomview/core"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ViewTicket is the JSON body of a Flight ticket or command descriptor. An empty operation
// reads the buckets of the window directly, init seeds the first view of the series.
type ViewTicket struct {
	Series     string        `json:"series"`
	Statistics []string      `json:"statistics"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	Nbv        int           `json:"nbv"`
	Zoom       core.ZoomSpec `json:"zoom"`
	Operation  string        `json:"operation"`
}

// FlightServer streams views as Arrow records, one record batch per statistic
type FlightServer struct {
	flightgen.UnimplementedFlightServiceServer
	server *Server
	mem    memory.Allocator
}

var flightReqId int32

func NewFlightServer(server *Server) *FlightServer {
	return &FlightServer{
		server: server,
		mem:    memory.DefaultAllocator,
	}
}

func parseTicket(data []byte) (*ViewTicket, error) {
	var t ViewTicket
	if err := json.Unmarshal(data, &t); err != nil {
		if core.KindOf(err) != core.KindUnknown {
			return nil, err
		}
		return nil, core.ErrInvalidInput.New("ticket: " + err.Error())
	}
	if t.Series == "" {
		return nil, core.ErrInvalidInput.New("ticket: series is required")
	}
	return &t, nil
}

// resolve runs the ticket against the navigator, or the supplier when no operation is given
func (s *FlightServer) resolve(ctx context.Context, t *ViewTicket) (*core.ViewResult, error) {
	stats, err := core.ParseStatistics(t.Statistics)
	if err != nil {
		return nil, err
	}
	nbv := t.Nbv
	if nbv == 0 {
		nbv = s.server.DefaultNbv
	}
	if t.Operation == "" {
		sets, err := s.server.Supplier.GetBuckets(ctx, t.Series, stats, t.Start, t.End, nbv)
		if err != nil {
			return nil, err
		}
		w, err := core.NewWindow(t.Start, t.End)
		if err != nil {
			return nil, err
		}
		return &core.ViewResult{Series: t.Series, Start: w.Start, End: w.End, Sets: sets}, nil
	}
	op, err := core.ParseOperation(t.Operation)
	if err != nil {
		return nil, err
	}
	if op == core.OpInit {
		if len(stats) != 1 {
			return nil, core.ErrInvalidInput.New("init takes exactly one statistic")
		}
		return s.server.Navigator.InitialView(ctx, t.Series, stats[0], nbv, t.Zoom)
	}
	return s.server.Navigator.NavigateView(ctx, t.Series, stats, t.Start, t.End, nbv, t.Zoom, op)
}

func grpcError(err error) error {
	switch core.KindOf(err) {
	case core.KindInvalidInput:
		return status.Error(codes.InvalidArgument, err.Error())
	case core.KindUnknownSeries, core.KindEmptyResult, core.KindNotConfigured:
		return status.Error(codes.NotFound, err.Error())
	case core.KindStoreUnavailable:
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// GetSchema returns the bucket schema for any descriptor
func (s *FlightServer) GetSchema(ctx context.Context, desc *flight.FlightDescriptor) (*flight.SchemaResult, error) {
	return &flight.SchemaResult{Schema: flight.SerializeSchema(bucketSchema, s.mem)}, nil
}

// GetFlightInfo validates a command descriptor holding a ViewTicket and hands it back as the ticket
func (s *FlightServer) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	if desc.Type != flight.DescriptorCMD {
		return nil, status.Errorf(codes.InvalidArgument, "unsupported flight descriptor type: %v", desc.Type)
	}
	if _, err := parseTicket(desc.Cmd); err != nil {
		return nil, grpcError(err)
	}
	return &flight.FlightInfo{
		FlightDescriptor: desc,
		Endpoint: []*flight.FlightEndpoint{
			{Ticket: &flight.Ticket{Ticket: desc.Cmd}},
		},
		TotalRecords: -1,
		TotalBytes:   -1,
		Schema:       flight.SerializeSchema(bucketSchema, s.mem),
	}, nil
}

// DoGet resolves the ticket and streams one record batch per statistic
func (s *FlightServer) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	ctx := core.WithDefaultLogger(stream.Context(), fmt.Sprintf("flight-%d", atomic.AddInt32(&flightReqId, 1)))
	t, err := parseTicket(ticket.Ticket)
	if err != nil {
		core.Debugf(ctx, "Rejected ticket %q: %v", string(ticket.Ticket), err)
		return grpcError(err)
	}
	res, err := s.resolve(ctx, t)
	if err != nil {
		core.Debugf(ctx, "Failed to resolve ticket %q: %v", string(ticket.Ticket), err)
		return grpcError(err)
	}

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(bucketSchema))
	rows, err := writeRecords(writer, s.mem, res.Sets)
	if err != nil {
		writer.Close()
		core.Errorf(ctx, "Failed to write record batch: %v", err)
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	core.Debugf(ctx, "Wrote %d rows of %s over %s", rows, res.Series, res.Window())
	return writer.Close()
}

// StartFlightServer serves Arrow Flight on port until ctx is done or the listener fails
func StartFlightServer(ctx context.Context, port int, server *Server) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return ServeFlight(ctx, lis, server)
}

// ServeFlight serves Arrow Flight on lis. Cancelling ctx stops the server gracefully and
// ServeFlight returns nil once the running streams are done.
func ServeFlight(ctx context.Context, lis net.Listener, server *Server) error {
	s := grpc.NewServer()
	flightgen.RegisterFlightServiceServer(s, NewFlightServer(server))
	reflection.Register(s)

	served := make(chan struct{})
	defer close(served)
	go func() {
		select {
		case <-ctx.Done():
			core.Infof(ctx, "Stopping Flight server")
			s.GracefulStop()
		case <-served:
		}
	}()
	if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
