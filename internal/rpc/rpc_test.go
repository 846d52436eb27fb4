package rpc

import (
	"context"
	"math"
	"net"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/lossgate/internal/decision"
	"github.com/danielpatrickdp/lossgate/internal/logging"
	"github.com/danielpatrickdp/lossgate/internal/store"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// startServer serves srv over an in-memory listener and returns a connection to it.
func startServer(t *testing.T, srv *Server) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(grpc.UnaryInterceptor(UnaryLogger(quietLogger())))
	srv.Register(gs)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func robotRequest(p ...float64) Request {
	return Request{
		Problem:       "robot",
		Probabilities: p,
		Decisions: []decision.Decision{
			{Name: "A", Losses: []float64{0, 1000}},
			{Name: "B", Losses: []float64{50, 0}},
		},
	}
}

func TestSelectRoundTrip(t *testing.T) {
	conn := startServer(t, NewServer(DefaultServerConfig(), nil, quietLogger()))
	client := NewClientWithConn(conn)

	res, id, err := client.Select(context.Background(), robotRequest(0.35, 0.65))
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Equal(t, 1, res.ChosenIndex())
	assert.Equal(t, "B", res.Chosen[0].Name)
	assert.Equal(t, decision.TieBreakFirst, res.TieBreak)
	assert.Equal(t, decision.DefaultEpsilon, res.Epsilon)
	require.Len(t, res.Table, 2)
	assert.InDelta(t, 650.0, res.Table[0].Value, 1e-9)
	assert.InDelta(t, 17.5, res.Table[1].Value, 1e-9)
}

func TestEvaluateRoundTrip(t *testing.T) {
	conn := startServer(t, NewServer(DefaultServerConfig(), nil, quietLogger()))
	client := NewClientWithConn(conn)

	table, err := client.Evaluate(context.Background(), robotRequest(0.35, 0.65))
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, 0, table[0].Index)
	assert.Equal(t, "B", table[1].Name)
	assert.InDelta(t, 17.5, table[1].Value, 1e-9)
}

func TestSelectErrorsSurviveTheWire(t *testing.T) {
	conn := startServer(t, NewServer(DefaultServerConfig(), nil, quietLogger()))
	client := NewClientWithConn(conn)
	ctx := context.Background()

	tie := Request{
		Probabilities: []float64{0.5, 0.5},
		Decisions: []decision.Decision{
			{Name: "X", Losses: []float64{10, 0}},
			{Name: "Y", Losses: []float64{0, 10}},
		},
		Options: decision.Options{TieBreak: decision.TieBreakError},
	}

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"bad distribution", robotRequest(0.5, 0.6), decision.ErrInvalidDistribution},
		{"mismatch", robotRequest(0.2, 0.3, 0.5), decision.ErrDimensionMismatch},
		{"empty set", Request{Probabilities: []float64{1}}, decision.ErrEmptyDecisionSet},
		{"bad options", Request{Probabilities: []float64{1}, Options: decision.Options{TieBreak: "coin"}}, decision.ErrInvalidOptions},
		{"ambiguous", tie, decision.ErrAmbiguousSelection},
		{"overflow", Request{
			Probabilities: []float64{1, 1e-7},
			Decisions:     []decision.Decision{{Losses: []float64{math.MaxFloat64, math.MaxFloat64}}},
		}, decision.ErrInvalidLoss},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := client.Select(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := client.Evaluate(ctx, robotRequest(0.5, 0.6))
	assert.ErrorIs(t, err, decision.ErrInvalidDistribution)
}

func TestStatusCodes(t *testing.T) {
	conn := startServer(t, NewServer(DefaultServerConfig(), nil, quietLogger()))
	ctx := context.Background()

	bad := robotRequest(0.5, 0.6).toStruct()
	err := conn.Invoke(ctx, selectMethod, bad, new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	tie := Request{
		Probabilities: []float64{1},
		Decisions: []decision.Decision{
			{Losses: []float64{3}},
			{Losses: []float64{3}},
		},
		Options: decision.Options{TieBreak: decision.TieBreakError},
	}
	err = conn.Invoke(ctx, selectMethod, tie.toStruct(), new(structpb.Struct))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestMalformedRequest(t *testing.T) {
	conn := startServer(t, NewServer(DefaultServerConfig(), nil, quietLogger()))

	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"probabilities": structpb.NewStringValue("0.5,0.5"),
	}}
	err := conn.Invoke(context.Background(), selectMethod, in, new(structpb.Struct))
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.ErrorIs(t, fromStatus("select", err), ErrMalformedRequest)
}

func TestServerDefaultsApply(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.TieBreak = decision.TieBreakAll
	conn := startServer(t, NewServer(cfg, nil, quietLogger()))
	client := NewClientWithConn(conn)

	req := Request{
		Probabilities: []float64{0.5, 0.5},
		Decisions: []decision.Decision{
			{Name: "X", Losses: []float64{10, 0}},
			{Name: "Y", Losses: []float64{0, 10}},
		},
	}
	res, _, err := client.Select(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, decision.TieBreakAll, res.TieBreak)
	assert.Equal(t, []int{0, 1}, res.ChosenIndices())

	// an explicit request option wins over the server default
	req.Options.TieBreak = decision.TieBreakFirst
	res, _, err = client.Select(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.ChosenIndices())
}

func TestSelectRecordsWithStore(t *testing.T) {
	s, err := store.NewStore(filepath.Join(t.TempDir(), "rpc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	conn := startServer(t, NewServer(DefaultServerConfig(), s, quietLogger()))
	client := NewClientWithConn(conn)
	ctx := context.Background()

	_, first, err := client.Select(ctx, robotRequest(0.35, 0.65))
	require.NoError(t, err)
	require.NotEmpty(t, first)

	_, second, err := client.Select(ctx, robotRequest(0.99, 0.01))
	require.NoError(t, err)

	_, _, err = client.Select(ctx, robotRequest(0.5, 0.6))
	require.ErrorIs(t, err, decision.ErrInvalidDistribution)

	latest, err := s.Latest("robot")
	require.NoError(t, err)
	assert.Equal(t, second, latest.SelectionID)
	assert.Equal(t, first, latest.ParentID)
	assert.Equal(t, []int{0}, latest.Chosen)

	entries, err := logging.Entries(s.DB(), "rpc")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, logging.OutcomeSelected, entries[0].Outcome)
	assert.Equal(t, first, entries[0].SelectionID)
	assert.Equal(t, logging.OutcomeInvalid, entries[2].Outcome)
	assert.Empty(t, entries[2].SelectionID)
	assert.Contains(t, entries[2].Reason, "invalid distribution")

	inputs, err := logging.DecodeInputs(entries[1].InputsJSON)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.99, 0.01}, inputs.Probabilities)
	assert.Equal(t, []int{0}, inputs.Chosen)
	assert.Equal(t, string(decision.TieBreakFirst), inputs.TieBreak)
}

func TestClientCloseWithoutOwnedConn(t *testing.T) {
	c := NewClientWithConn(nil)
	assert.NoError(t, c.Close())
}
