// Package pipeline runs the end-to-end land scoring job: load reference
// zones, acquire candidate parcels, score them in parallel, write the scored
// layer and optionally persist the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/landscore/internal/dispatch"
	"github.com/sells-group/landscore/internal/geometry"
	"github.com/sells-group/landscore/internal/layer"
	"github.com/sells-group/landscore/internal/model"
	"github.com/sells-group/landscore/internal/overpass"
	"github.com/sells-group/landscore/internal/scoring"
	"github.com/sells-group/landscore/internal/store"
)

// Source supplies candidate parcels for a region.
type Source interface {
	Fetch(ctx context.Context, b overpass.BBox, timeoutSecs int) (*layer.Layer, error)
}

// Params describes one scoring run.
type Params struct {
	BBox        overpass.BBox
	TimeoutSecs int

	ReferencePath  string
	RequiredFields []string

	// ParcelsPath, if set, receives the unscored parcel layer.
	ParcelsPath string
	// OutputPath, if set, receives the scored layer.
	OutputPath string

	Workers int
	// AllowPartial writes and persists the successful chunks of a run in
	// which some chunks failed. Otherwise such a run fails as a whole.
	AllowPartial bool
	OnChunkDone  func(dispatch.ChunkResult)
	// OnParcels is called once the parcel count is known.
	OnParcels func(n int)
}

// Result summarizes a completed run. CRS is the output CRS, which is the
// CRS the parcels arrived in; Scored geometries are in the reference CRS.
type Result struct {
	RunID   string
	CRS     string
	Parcels int
	Scored  []model.Scored
	Summary scoring.Summary
	Partial *dispatch.PartialError
	Elapsed time.Duration
}

// Pipeline wires a parcel source to the scoring engine.
type Pipeline struct {
	source Source
	engine *scoring.Engine
	store  store.Store
	clock  clockwork.Clock
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore persists runs and scores to st.
func WithStore(st store.Store) Option {
	return func(p *Pipeline) { p.store = st }
}

// WithClock overrides the clock used for timing.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// New creates a pipeline.
func New(source Source, engine *scoring.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{source: source, engine: engine, clock: clockwork.NewRealClock()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes the job. Missing inputs and an unusable reference CRS fail
// before any network or scoring work. Parcels are scored in the reference
// CRS and written back in their own. No output file is written when the run
// fails.
func (p *Pipeline) Run(ctx context.Context, params Params) (*Result, error) {
	log := zap.L().With(zap.String("component", "pipeline"))
	start := p.clock.Now()

	refLayer, zones, err := layer.LoadZones(params.ReferencePath, params.RequiredFields)
	if err != nil {
		return nil, err
	}
	refCRS := refLayer.CRS
	if refCRS == "" {
		refCRS = geometry.WGS84
	}
	if !geometry.IsGeographic(refCRS) {
		if _, err := geometry.NewTransformer(geometry.WGS84, refCRS); err != nil {
			return nil, eris.Wrap(err, "pipeline: reference layer")
		}
	}

	parcelLayer, err := p.source.Fetch(ctx, params.BBox, params.TimeoutSecs)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: fetch parcels")
	}
	if params.ParcelsPath != "" {
		if err := layer.Write(params.ParcelsPath, parcelLayer); err != nil {
			return nil, err
		}
	}
	crs := parcelLayer.CRS
	if crs == "" {
		crs = geometry.WGS84
	}
	working, err := layer.Reproject(parcelLayer, refCRS)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: align parcels with reference")
	}
	if working != parcelLayer {
		log.Info("parcels reprojected", zap.String("from", crs), zap.String("to", refCRS))
	}
	parcels := layer.Parcels(working, false)
	if params.OnParcels != nil {
		params.OnParcels(len(parcels))
	}

	res := &Result{CRS: crs, Parcels: len(parcels)}
	var run *store.Run
	if p.store != nil {
		run, err = p.store.CreateRun(ctx, store.RunParams{
			CRS:       crs,
			BBox:      params.BBox.String(),
			Reference: params.ReferencePath,
		})
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		res.RunID = run.ID
	}

	proj := geometry.ProjectorFor(refCRS, refLayer.Bound())
	scored, err := dispatch.Run(ctx, parcels, zones, proj, p.engine, dispatch.Options{
		Workers:     params.Workers,
		Clock:       p.clock,
		OnChunkDone: params.OnChunkDone,
	})
	var partial *dispatch.PartialError
	switch {
	case err == nil:
	case errors.As(err, &partial) && params.AllowPartial:
		res.Partial = partial
		log.Warn("continuing with partial results", zap.Error(err))
	default:
		p.failRun(ctx, run, err)
		return nil, err
	}

	res.Scored = scored
	scores := make([]model.Score, len(scored))
	for i, s := range scored {
		scores[i] = s.Score
	}
	res.Summary = scoring.Summarize(scores)

	out, err := layer.Reproject(p.scoredLayer(refCRS, scored), crs)
	if err != nil {
		p.failRun(ctx, run, err)
		return nil, eris.Wrap(err, "pipeline: restore parcel CRS")
	}
	if params.OutputPath != "" {
		if err := layer.Write(params.OutputPath, out); err != nil {
			p.failRun(ctx, run, err)
			return nil, err
		}
	}

	if run != nil {
		if err := p.persist(ctx, run.ID, crs, scored, out); err != nil {
			p.failRun(ctx, run, err)
			return nil, err
		}
		status := store.RunStatusComplete
		errText := ""
		if res.Partial != nil {
			status = store.RunStatusPartial
			errText = res.Partial.Error()
		}
		sum := res.Summary
		if err := p.store.CompleteRun(ctx, run.ID, status, &sum, errText); err != nil {
			return nil, eris.Wrap(err, "pipeline: complete run")
		}
	}

	res.Elapsed = p.clock.Since(start)
	log.Info("run complete",
		zap.String("run_id", res.RunID),
		zap.Int("parcels", res.Parcels),
		zap.Int("scored", len(scored)),
		zap.Float64("mean_score", res.Summary.Mean),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// scoredLayer builds the output features in the reference CRS.
func (p *Pipeline) scoredLayer(crs string, scored []model.Scored) *layer.Layer {
	scheme := p.engine.Scheme()
	out := &layer.Layer{CRS: crs, Features: make([]*geojson.Feature, len(scored))}
	for i, s := range scored {
		f := geojson.NewFeature(s.Parcel.Geometry)
		f.Properties = s.Score.Properties(scheme.NormPrefix(), scheme.ZoneKey())
		out.Features[i] = f
	}
	return out
}

func (p *Pipeline) persist(ctx context.Context, runID, crs string, scored []model.Scored, out *layer.Layer) error {
	rows := make([]store.ScoreRow, len(scored))
	for i, s := range scored {
		rows[i] = store.ScoreRow{
			ParcelID:     s.Score.ID,
			SourceID:     sourceID(s.Parcel.SourceID),
			OverallScore: s.Score.OverallScore,
			Geometry:     out.Features[i].Geometry,
			Properties:   out.Features[i].Properties,
		}
	}
	n, err := p.store.SaveScores(ctx, runID, store.SRID(crs), rows)
	if err != nil {
		return eris.Wrap(err, "pipeline: save scores")
	}
	zap.L().Info("pipeline: scores saved", zap.String("run_id", runID), zap.Int64("rows", n))
	return nil
}

func (p *Pipeline) failRun(ctx context.Context, run *store.Run, cause error) {
	if run == nil {
		return
	}
	if err := p.store.CompleteRun(ctx, run.ID, store.RunStatusFailed, nil, cause.Error()); err != nil {
		zap.L().Warn("pipeline: failed to mark run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func sourceID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprint(id)
	}
}
