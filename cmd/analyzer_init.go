package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/suqdata/market-cli/internal/artifact"
	"github.com/suqdata/market-cli/internal/config"
	"github.com/suqdata/market-cli/internal/geometry"
	"github.com/suqdata/market-cli/internal/network"
	"github.com/suqdata/market-cli/internal/pipeline"
	"github.com/suqdata/market-cli/internal/region"
)

// analyzerEnv bundles the wired analyzer with its cleanup.
type analyzerEnv struct {
	Analyzer *pipeline.Analyzer
	Store    *artifact.DiskStore
}

// Close releases resources held by the environment.
func (e *analyzerEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close disk store", zap.Error(err))
		}
	}
}

// initAnalyzer wires the full analysis stack from configuration.
func initAnalyzer(cfg *config.Config) (*analyzerEnv, error) {
	gaz, err := region.LoadGazetteer()
	if err != nil {
		return nil, eris.Wrap(err, "load gazetteer")
	}

	normalizer := region.NewNormalizer(gaz,
		region.WithThreshold(cfg.Region.FuzzyThreshold),
		region.WithMaxCandidates(cfg.Region.MaxCandidates),
	)

	validator := geometry.NewValidator(geometry.RefTableFromGazetteer(gaz),
		geometry.WithBBox(geometry.BBox{
			MinLon: cfg.Geometry.MinLon,
			MinLat: cfg.Geometry.MinLat,
			MaxLon: cfg.Geometry.MaxLon,
			MaxLat: cfg.Geometry.MaxLat,
		}),
		geometry.WithEpsilon(cfg.Geometry.CentroidEpsilon),
	)

	var source artifact.Source
	if cfg.Fetch.BaseURL != "" {
		source = artifact.NewHTTPSource(artifact.HTTPSourceOptions{
			BaseURL:          cfg.Fetch.BaseURL,
			Timeout:          time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries:       cfg.Fetch.MaxRetries,
			RequestsPerSec:   cfg.Fetch.RequestsPerSec,
			BreakerThreshold: cfg.Fetch.BreakerThreshold,
			BreakerCooldown:  time.Duration(cfg.Fetch.BreakerCooldownSecs) * time.Second,
		})
	} else {
		source = artifact.NewFileSource(cfg.Fetch.DataDir)
	}

	cache := artifact.NewCache(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLMinutes)*time.Minute)

	env := &analyzerEnv{}
	var loaderOpts []artifact.LoaderOption
	if cfg.Cache.DiskPath != "" {
		store, err := artifact.OpenDiskStore(cfg.Cache.DiskPath)
		if err != nil {
			return nil, eris.Wrap(err, "open disk store")
		}
		env.Store = store
		loaderOpts = append(loaderOpts, artifact.WithDiskStore(store))
	}

	loader := artifact.NewLoader(cache, source, loaderOpts...)

	engine := network.NewEngine(
		network.WithMaxIterations(cfg.Network.MaxIterations),
		network.WithTolerance(cfg.Network.Tolerance),
	)

	env.Analyzer = pipeline.New(loader, normalizer, validator,
		pipeline.WithEngine(engine),
		pipeline.WithGraphOptions(network.WithFlowThreshold(cfg.Network.FlowThreshold)),
	)
	return env, nil
}
