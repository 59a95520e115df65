package expr

import (
	"github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/series"
)

// evaluateWindow computes the aggregate once per partition and broadcasts it
// back to every member row, so the result has one value per frame row.
func (e *Evaluator) evaluateWindow(ex *WindowExpr, frame Frame) (*series.Series, error) {
	keys := make([]*series.Series, 0, len(ex.partitionBy))
	for _, name := range ex.partitionBy {
		col, ok := frame.Column(name)
		if !ok {
			return nil, errors.NewColumnNotFoundError("window", name)
		}
		keys = append(keys, col)
	}

	groups := series.GroupRows(frame.Len(), keys...)
	perPartition, err := e.EvaluateAggregation(ex.agg, frame, groups)
	if err != nil {
		return nil, err
	}
	defer perPartition.Release()

	broadcast := perPartition.Take(groups.IDs, e.mem)
	defer broadcast.Release()
	return broadcast.Rename(OutputName(ex)), nil
}
