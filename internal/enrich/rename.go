package enrich

import (
	"go.uber.org/zap"

	"github.com/sells-group/landscore/internal/layer"
)

// RenameOptions maps old property names to new ones and lists properties
// to remove.
type RenameOptions struct {
	Fields map[string]string
	Drop   []string
}

// DefaultRename turns the raw datazone layer into the shape the merge and
// scoring steps expect.
func DefaultRename() RenameOptions {
	return RenameOptions{
		Fields: map[string]string{
			"Name":       "2011Zones",
			"local_auth": "CouncilArea",
		},
		Drop: []string{
			"Shape_Area",
			"Shape_Leng",
			"StdAreaKm2",
			"StdAreaHa",
			"HHCnt2011",
			"ResPop2011",
			"TotPop2011",
		},
	}
}

// RenameResult lists the fields that were actually renamed or dropped.
type RenameResult struct {
	Renamed []string
	Dropped []string
	Missing []string
}

// Rename applies opts to every feature. A field counts as present when any
// feature carries it.
func Rename(l *layer.Layer, opts RenameOptions) RenameResult {
	present := make(map[string]bool)
	for _, f := range l.Features {
		for k := range f.Properties {
			present[k] = true
		}
	}

	var res RenameResult
	for from, to := range opts.Fields {
		if !present[from] {
			continue
		}
		for _, f := range l.Features {
			if v, ok := f.Properties[from]; ok {
				delete(f.Properties, from)
				f.Properties[to] = v
			}
		}
		res.Renamed = append(res.Renamed, from)
	}

	for _, field := range opts.Drop {
		if !present[field] {
			res.Missing = append(res.Missing, field)
			continue
		}
		for _, f := range l.Features {
			delete(f.Properties, field)
		}
		res.Dropped = append(res.Dropped, field)
	}

	zap.L().Info("enrich: fields renamed",
		zap.Strings("renamed", res.Renamed),
		zap.Strings("dropped", res.Dropped),
		zap.Strings("not_found", res.Missing),
	)
	return res
}
