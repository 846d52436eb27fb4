package rpc

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/lossgate/internal/decision"
)

// #region request
// Request carries one selection problem over the wire.
type Request struct {
	Problem       string
	Probabilities []float64
	Decisions     []decision.Decision
	Options       decision.Options
}

// ErrMalformedRequest means the payload did not have the expected shape.
var ErrMalformedRequest = errors.New("malformed request")

func (r Request) toStruct() *structpb.Struct {
	decisions := make([]*structpb.Value, len(r.Decisions))
	for i, d := range r.Decisions {
		decisions[i] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"name":   structpb.NewStringValue(d.Name),
			"losses": numberList(d.Losses),
		}})
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"problem":       structpb.NewStringValue(r.Problem),
		"probabilities": numberList(r.Probabilities),
		"decisions":     structpb.NewListValue(&structpb.ListValue{Values: decisions}),
		"tie_break":     structpb.NewStringValue(string(r.Options.TieBreak)),
		"epsilon":       structpb.NewNumberValue(r.Options.Epsilon),
	}}
}

func requestFromStruct(s *structpb.Struct) (Request, error) {
	var r Request
	f := s.GetFields()

	var err error
	if r.Problem, err = optionalString(f, "problem"); err != nil {
		return Request{}, err
	}
	if r.Probabilities, err = numbers(f["probabilities"], "probabilities"); err != nil {
		return Request{}, err
	}
	tb, err := optionalString(f, "tie_break")
	if err != nil {
		return Request{}, err
	}
	r.Options.TieBreak = decision.TieBreak(tb)
	if v, ok := f["epsilon"]; ok {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return Request{}, fmt.Errorf("%w: epsilon is not a number", ErrMalformedRequest)
		}
		r.Options.Epsilon = n.NumberValue
	}

	if v, ok := f["decisions"]; ok {
		list, ok := v.GetKind().(*structpb.Value_ListValue)
		if !ok {
			return Request{}, fmt.Errorf("%w: decisions is not a list", ErrMalformedRequest)
		}
		for i, dv := range list.ListValue.GetValues() {
			ds, ok := dv.GetKind().(*structpb.Value_StructValue)
			if !ok {
				return Request{}, fmt.Errorf("%w: decisions[%d] is not an object", ErrMalformedRequest, i)
			}
			df := ds.StructValue.GetFields()
			name, err := optionalString(df, "name")
			if err != nil {
				return Request{}, err
			}
			losses, err := numbers(df["losses"], fmt.Sprintf("decisions[%d].losses", i))
			if err != nil {
				return Request{}, err
			}
			r.Decisions = append(r.Decisions, decision.Decision{Name: name, Losses: losses})
		}
	}
	return r, nil
}

// #endregion request

// #region response
func selectionToStruct(res decision.SelectionResult, selectionID string) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"tie_break": structpb.NewStringValue(string(res.TieBreak)),
		"epsilon":   structpb.NewNumberValue(res.Epsilon),
		"chosen":    lossList(res.Chosen),
		"table":     lossList(res.Table),
	}
	if selectionID != "" {
		fields["selection_id"] = structpb.NewStringValue(selectionID)
	}
	return &structpb.Struct{Fields: fields}
}

func selectionFromStruct(s *structpb.Struct) (decision.SelectionResult, string, error) {
	f := s.GetFields()
	var res decision.SelectionResult
	tb, err := optionalString(f, "tie_break")
	if err != nil {
		return decision.SelectionResult{}, "", err
	}
	res.TieBreak = decision.TieBreak(tb)
	res.Epsilon = f["epsilon"].GetNumberValue()
	if res.Chosen, err = lossesFromValue(f["chosen"], "chosen"); err != nil {
		return decision.SelectionResult{}, "", err
	}
	if res.Table, err = lossesFromValue(f["table"], "table"); err != nil {
		return decision.SelectionResult{}, "", err
	}
	id, err := optionalString(f, "selection_id")
	if err != nil {
		return decision.SelectionResult{}, "", err
	}
	return res, id, nil
}

func tableToStruct(table []decision.ExpectedLoss) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{"table": lossList(table)}}
}

func tableFromStruct(s *structpb.Struct) ([]decision.ExpectedLoss, error) {
	return lossesFromValue(s.GetFields()["table"], "table")
}

// #endregion response

// #region helpers
func numberList(xs []float64) *structpb.Value {
	vals := make([]*structpb.Value, len(xs))
	for i, x := range xs {
		vals[i] = structpb.NewNumberValue(x)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func numbers(v *structpb.Value, field string) ([]float64, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a list", ErrMalformedRequest, field)
	}
	out := make([]float64, len(list.ListValue.GetValues()))
	for i, x := range list.ListValue.GetValues() {
		n, ok := x.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] is not a number", ErrMalformedRequest, field, i)
		}
		out[i] = n.NumberValue
	}
	return out, nil
}

func optionalString(f map[string]*structpb.Value, key string) (string, error) {
	v, ok := f[key]
	if !ok {
		return "", nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", ErrMalformedRequest, key)
	}
	return s.StringValue, nil
}

func lossList(entries []decision.ExpectedLoss) *structpb.Value {
	vals := make([]*structpb.Value, len(entries))
	for i, e := range entries {
		vals[i] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"index":         structpb.NewNumberValue(float64(e.Index)),
			"name":          structpb.NewStringValue(e.Name),
			"expected_loss": structpb.NewNumberValue(e.Value),
		}})
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func lossesFromValue(v *structpb.Value, field string) ([]decision.ExpectedLoss, error) {
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a list", ErrMalformedRequest, field)
	}
	out := make([]decision.ExpectedLoss, len(list.ListValue.GetValues()))
	for i, ev := range list.ListValue.GetValues() {
		es, ok := ev.GetKind().(*structpb.Value_StructValue)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] is not an object", ErrMalformedRequest, field, i)
		}
		ef := es.StructValue.GetFields()
		out[i] = decision.ExpectedLoss{
			Index: int(ef["index"].GetNumberValue()),
			Name:  ef["name"].GetStringValue(),
			Value: ef["expected_loss"].GetNumberValue(),
		}
	}
	return out, nil
}

// #endregion helpers
