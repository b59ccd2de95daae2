package enrich

import (
	"slices"
	"strconv"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/landscore/internal/layer"
	"github.com/sells-group/landscore/internal/model"
)

// GroupMean is the mean of one group.
type GroupMean struct {
	Name  string
	Mean  float64
	Count int
}

// Averages returns the mean of valueCol for each distinct groupCol value,
// sorted by group. Rows with a non-numeric value are ignored; a group with
// no numeric values is omitted.
func Averages(t *Table, groupCol, valueCol string) ([]GroupMean, error) {
	gi := t.Column(groupCol)
	if gi < 0 {
		return nil, &layer.MissingFieldError{Field: groupCol}
	}
	vi := t.Column(valueCol)
	if vi < 0 {
		return nil, &layer.MissingFieldError{Field: valueCol}
	}

	groups := make(map[string][]float64)
	for _, row := range t.Rows {
		if gi >= len(row) || vi >= len(row) {
			continue
		}
		n := model.ParseNum(row[vi])
		if !n.Valid {
			continue
		}
		groups[row[gi]] = append(groups[row[gi]], n.Value)
	}

	out := make([]GroupMean, 0, len(groups))
	for name, vals := range groups {
		out = append(out, GroupMean{Name: name, Mean: stat.Mean(vals, nil), Count: len(vals)})
	}
	slices.SortFunc(out, func(a, b GroupMean) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out, nil
}

// WriteAverages writes the group means as a two-column CSV.
func WriteAverages(path string, means []GroupMean, groupCol, valueCol string) error {
	rows := make([][]string, len(means))
	for i, m := range means {
		rows[i] = []string{m.Name, strconv.FormatFloat(m.Mean, 'f', -1, 64)}
	}
	if err := WriteCSV(path, []string{groupCol, valueCol}, rows); err != nil {
		return eris.Wrap(err, "enrich: write averages")
	}
	return nil
}
