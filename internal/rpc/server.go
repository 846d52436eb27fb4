package rpc

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/lossgate/internal/decision"
	"github.com/danielpatrickdp/lossgate/internal/logging"
	"github.com/danielpatrickdp/lossgate/internal/store"
)

// #region service-desc
const (
	serviceName    = "lossgate.v1.Selector"
	selectMethod   = "/" + serviceName + "/Select"
	evaluateMethod = "/" + serviceName + "/Evaluate"
)

// SelectorServer is the server API of the lossgate.v1.Selector service.
type SelectorServer interface {
	Select(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func selectHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SelectorServer).Select(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: selectMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SelectorServer).Select(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func evaluateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SelectorServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: evaluateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SelectorServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes lossgate.v1.Selector for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SelectorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Select", Handler: selectHandler},
		{MethodName: "Evaluate", Handler: evaluateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lossgate/v1/selector",
}

// #endregion service-desc

// #region config
// ServerConfig holds defaults applied to requests that leave options unset.
type ServerConfig struct {
	TieBreak    decision.TieBreak
	Epsilon     float64
	TriggerType string
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		TieBreak:    decision.TieBreakFirst,
		Epsilon:     decision.DefaultEpsilon,
		TriggerType: "rpc",
	}
}

// #endregion config

// #region server-struct
// Recorder persists successful selections. *store.Store satisfies it.
type Recorder interface {
	Commit(problem string, probabilities []float64, res decision.SelectionResult) (store.Record, error)
	DB() *sql.DB
}

// Server implements SelectorServer on top of the decision package.
type Server struct {
	config ServerConfig
	rec    Recorder
	log    *logrus.Entry
}

// NewServer creates a Server. rec may be nil, in which case nothing is recorded.
func NewServer(config ServerConfig, rec Recorder, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		config: config,
		rec:    rec,
		log:    log.WithField("service", serviceName),
	}
}

// Register attaches the service to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&ServiceDesc, s)
}

// #endregion server-struct

// #region select
// Select runs the full selection and, with a recorder, commits the result
// and logs the attempt.
func (s *Server) Select(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := requestFromStruct(in)
	if err != nil {
		return nil, toStatus(err)
	}
	opts := s.options(req.Options)

	res, err := decision.SelectMinimumExpectedLoss(req.Decisions, req.Probabilities, opts)
	fields := logrus.Fields{"problem": req.Problem, "outcome": logging.Outcome(err)}

	var selectionID string
	if err == nil && s.rec != nil {
		rec, cerr := s.rec.Commit(req.Problem, req.Probabilities, res)
		if cerr != nil {
			s.log.WithFields(fields).WithError(cerr).Error("commit selection")
			return nil, toStatus(cerr)
		}
		selectionID = rec.SelectionID
		fields["selection_id"] = selectionID
	}
	s.record(req, opts, res, selectionID, err)

	if err != nil {
		s.log.WithFields(fields).WithError(err).Info("selection rejected")
		return nil, toStatus(err)
	}
	s.log.WithFields(fields).WithField("chosen", res.ChosenIndices()).Debug("selection made")
	return selectionToStruct(res, selectionID), nil
}

// #endregion select

// #region evaluate
// Evaluate returns the expected-loss table without choosing or recording.
func (s *Server) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := requestFromStruct(in)
	if err != nil {
		return nil, toStatus(err)
	}
	opts := s.options(req.Options)
	table, err := decision.ComputeExpectedLosses(req.Decisions, req.Probabilities, opts.Epsilon)
	if err != nil {
		return nil, toStatus(err)
	}
	return tableToStruct(table), nil
}

// #endregion evaluate

// #region helpers
func (s *Server) options(o decision.Options) decision.Options {
	if o.TieBreak == "" {
		o.TieBreak = s.config.TieBreak
	}
	if o.Epsilon == 0 {
		o.Epsilon = s.config.Epsilon
	}
	return o
}

func (s *Server) record(req Request, opts decision.Options, res decision.SelectionResult, selectionID string, selErr error) {
	if s.rec == nil {
		return
	}
	inputs := logging.NewInputsRecord(req.Problem, req.Decisions, req.Probabilities, opts)
	entry := logging.ProvenanceEntry{
		SelectionID: selectionID,
		Problem:     req.Problem,
		TriggerType: s.config.TriggerType,
		Outcome:     logging.Outcome(selErr),
	}
	if selErr != nil {
		entry.Reason = selErr.Error()
	} else {
		inputs.Chosen = res.ChosenIndices()
	}
	if err := logging.AttachInputs(&entry, inputs); err != nil {
		s.log.WithField("problem", req.Problem).WithError(err).Warn("inputs not recorded")
	}
	if err := logging.LogSelection(s.rec.DB(), entry); err != nil {
		s.log.WithField("problem", req.Problem).WithError(err).Warn("provenance log failed")
	}
}

// UnaryLogger logs method, status code and latency for every unary call.
func UnaryLogger(log *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.WithFields(logrus.Fields{
			"method":  info.FullMethod,
			"code":    status.Code(err).String(),
			"elapsed": time.Since(start),
		}).Info("rpc")
		return resp, err
	}
}

// #endregion helpers
