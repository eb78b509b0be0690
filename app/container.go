package app

import (
	"log/slog"

	"github.com/soocke/scroll-capture-go/config"
	"github.com/soocke/scroll-capture-go/domain/capture"
	"github.com/soocke/scroll-capture-go/domain/session"
	"github.com/soocke/scroll-capture-go/domain/stitch"
)

// AppContainer assembles the sampler, stitcher, and session.
type AppContainer struct {
	Config   *config.Config
	Logger   *slog.Logger
	Sampler  capture.Sampler
	Stitcher *stitch.Stitcher
	Session  *session.ScrollSession
}

// BuildContainer constructs all components. No side effects beyond
// starting the session's event loop.
func BuildContainer(cfg *config.Config, logger *slog.Logger) *AppContainer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	_ = cfg.Validate()
	c := &AppContainer{Config: cfg, Logger: logger}
	c.Sampler = capture.ScreenSampler{}
	c.Stitcher = stitch.New(logger, stitch.SearchOptions{
		MinOverlap:      cfg.MinOverlapPx,
		Step:            cfg.OverlapStepPx,
		MaxCompareRows:  cfg.CompareRowCap,
		SearchHeightCap: cfg.SearchHeightCap,
		Tolerance:       cfg.PixelTolerance,
		RowMatchRatio:   cfg.RowMatchRatio,
		EdgeMargin:      cfg.EdgeMarginFrac,
		MinConfidence:   cfg.MinConfidencePct,
		TieMargin:       cfg.TieMarginPct,
	})
	c.Session = session.NewSession(logger, cfg, c.Sampler, c.Stitcher)
	return c
}
