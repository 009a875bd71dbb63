package metrics

import (
	"fmt"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	mlmetrics "github.com/gomlx/gomlx/ml/train/metrics"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/google/uuid"
)

// BinaryF1 is the metric of the TSP edge-classification dataset: the F1
// score of the positive ("edge on the optimal tour") class, accumulated over
// every batch since the last Reset.
//
// Unlike the batch-mean metrics, F1 is not a mean of per-batch values, so
// the metric keeps running true-positive / false-positive / false-negative
// counters in non-trainable context variables, the same scheme the GoMLX
// mean metrics use for their total/weight state.
func BinaryF1() mlmetrics.Interface {
	return &binaryF1{}
}

type binaryF1 struct {
	scopeName string
}

func (m *binaryF1) Name() string       { return "binary F1" }
func (m *binaryF1) ShortName() string  { return "F1" }
func (m *binaryF1) MetricType() string { return "f1" }

func (m *binaryF1) ScopeName() string {
	if m.scopeName == "" {
		m.scopeName = context.EscapeScopeName(fmt.Sprintf("%s_uuid_%s", m.Name(), uuid.NewString()))
	}
	return m.scopeName
}

func (m *binaryF1) PrettyPrint(value *tensors.Tensor) string {
	return fmt.Sprintf("%.3f", shapes.ConvertTo[float64](value.Value()))
}

func (m *binaryF1) UpdateGraph(ctx *context.Context, labels, predictions []*Node) *Node {
	logits0 := predictions[0]
	g := logits0.Graph()
	dtype := logits0.DType()

	predicted := ConvertDType(ArgMax(logits0, -1, dtypes.Int32), dtype)
	truth := ConvertDType(flatLabels(labels[0]), dtype)

	tp := ReduceAllSum(Mul(predicted, truth))
	fp := ReduceAllSum(Mul(predicted, OneMinus(truth)))
	fn := ReduceAllSum(Mul(OneMinus(predicted), truth))

	ctx = ctx.Checked(false).In(m.ScopeName())
	zero := shapes.CastAsDType(0, dtype)
	tpVar := ctx.VariableWithValue("true_positives", zero).SetTrainable(false)
	fpVar := ctx.VariableWithValue("false_positives", zero).SetTrainable(false)
	fnVar := ctx.VariableWithValue("false_negatives", zero).SetTrainable(false)

	tp = Add(tpVar.ValueGraph(g), tp)
	fp = Add(fpVar.ValueGraph(g), fp)
	fn = Add(fnVar.ValueGraph(g), fn)
	tpVar.SetValueGraph(tp)
	fpVar.SetValueGraph(fp)
	fnVar.SetValueGraph(fn)

	denominator := Add(MulScalar(tp, 2), Add(fp, fn))
	return Div(MulScalar(tp, 2), MaxScalar(denominator, 1))
}

func (m *binaryF1) Reset(ctx *context.Context) {
	ctx = ctx.Checked(false).In(m.ScopeName())
	for _, name := range []string{"true_positives", "false_positives", "false_negatives"} {
		v := ctx.GetVariableByScopeAndName(ctx.Scope(), name)
		if v == nil {
			// Graph not built yet, nothing to reset.
			return
		}
		v.SetValue(tensors.FromAnyValue(shapes.CastAsDType(0, v.Value().DType())))
	}
}
