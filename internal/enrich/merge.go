package enrich

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/landscore/internal/layer"
	"github.com/sells-group/landscore/internal/model"
)

// DefaultJoinKeys are tried in order when matching table keys to features.
var DefaultJoinKeys = []string{"2011Zones", "CouncilArea"}

// MergeOptions configures MergeFolder.
type MergeOptions struct {
	JoinKeys []string
	// Charset decodes CSV files; empty means UTF-8.
	Charset string
}

// MergeReport describes what happened to one table.
type MergeReport struct {
	File     string
	Field    string
	MatchKey string
	Matched  int
	// Skipped explains why the table was not merged, if it was not.
	Skipped string
}

// MergeFolder merges every .csv and .xlsx file in dir into l. Each table's
// first column is the key and its second the value; the new property is
// named after the file without its extension. It fails only when dir holds
// no tables; unusable tables are reported and skipped.
func MergeFolder(l *layer.Layer, dir string, opts MergeOptions) ([]MergeReport, error) {
	log := zap.L().With(zap.String("component", "enrich"))
	if len(opts.JoinKeys) == 0 {
		opts.JoinKeys = DefaultJoinKeys
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(layer.ErrMissingFile, "enrich: table folder %s", dir)
		}
		return nil, eris.Wrapf(err, "enrich: read folder %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".xlsx":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, eris.Errorf("enrich: no .csv or .xlsx files in %s", dir)
	}
	slices.Sort(files)
	log.Info("merging tables", zap.Int("files", len(files)))

	reports := make([]MergeReport, 0, len(files))
	for _, path := range files {
		field := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		t, err := ReadTable(path, opts.Charset)
		if err != nil {
			reports = append(reports, MergeReport{File: path, Field: field, Skipped: err.Error()})
			log.Warn("table unreadable, skipping", zap.String("file", path), zap.Error(err))
			continue
		}
		rep := MergeTable(l, field, t, opts.JoinKeys)
		rep.File = path
		if rep.Skipped != "" {
			log.Warn("table skipped", zap.String("file", path), zap.String("reason", rep.Skipped))
		} else {
			log.Info("table merged",
				zap.String("field", field),
				zap.String("match_key", rep.MatchKey),
				zap.Int("matched", rep.Matched),
				zap.Int("features", len(l.Features)),
			)
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// MergeTable adds field to every feature of l from t. The match key is the
// first join key with at least one feature value present in the table's
// key column. Unmatched features get a null value.
func MergeTable(l *layer.Layer, field string, t *Table, joinKeys []string) MergeReport {
	rep := MergeReport{Field: field}
	if len(t.Header) < 2 {
		rep.Skipped = "fewer than 2 columns"
		return rep
	}

	values := make(map[string]string, len(t.Rows))
	for _, row := range t.Rows {
		if len(row) == 0 {
			continue
		}
		v := ""
		if len(row) > 1 {
			v = row[1]
		}
		values[row[0]] = v
	}

	for _, key := range joinKeys {
		for _, f := range l.Features {
			if _, ok := values[keyString(f.Properties[key])]; ok {
				rep.MatchKey = key
				break
			}
		}
		if rep.MatchKey != "" {
			break
		}
	}
	if rep.MatchKey == "" {
		rep.Skipped = "no values match " + strings.Join(joinKeys, " or ")
		return rep
	}

	for _, f := range l.Features {
		raw, ok := values[keyString(f.Properties[rep.MatchKey])]
		v := cellValue(raw)
		if !ok || v == nil {
			f.Properties[field] = nil
			continue
		}
		f.Properties[field] = v
		rep.Matched++
	}
	return rep
}

// keyString renders a property value the way it appears in a table cell.
func keyString(v any) string {
	switch t := v.(type) {
	case nil:
		return "\x00"
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		if n := model.ParseNum(t); n.Valid {
			return strconv.FormatFloat(n.Value, 'f', -1, 64)
		}
		return "\x00"
	}
}

// cellValue returns a number for numeric cells, nil for empty ones, and the
// text otherwise.
func cellValue(s string) any {
	if s == "" {
		return nil
	}
	if n := model.ParseNum(s); n.Valid {
		return n.Value
	}
	return s
}
