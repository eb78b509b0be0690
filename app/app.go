package app

import (
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soocke/scroll-capture-go/config"
	"github.com/soocke/scroll-capture-go/debug"
	"github.com/soocke/scroll-capture-go/domain/session"
)

const (
	memLogInterval       = 2 * time.Second
	goroutineLogInterval = time.Second
)

// App is the headless shell around one capture session: it binds the
// persisted selection rectangle, finishes on SIGINT or end-of-content,
// cancels on a second SIGINT, and writes the composite as PNG.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	container *AppContainer
}

// NewApp builds the application with its dependency container.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &App{cfg: cfg, logger: logger, container: BuildContainer(cfg, logger)}
}

// Start runs one capture session to completion and writes the output file.
func (a *App) Start() error {
	if a.cfg.Debug {
		debug.StartMemLogger(memLogInterval, a.logger)
		debug.StartGoroutineLogger(goroutineLogInterval, a.logger)
	}

	region := image.Rect(
		a.cfg.SelectionX,
		a.cfg.SelectionY,
		a.cfg.SelectionX+a.cfg.SelectionW,
		a.cfg.SelectionY+a.cfg.SelectionH,
	)

	sess := a.container.Session
	defer sess.Close()

	done := make(chan error, 1)
	var composite *image.RGBA
	cb := session.Callbacks{
		OnProgress: func(n int) {
			a.logger.Info("frame captured", "frames", n)
		},
		OnEndOfContent: func() {
			a.logger.Info("end of content detected; finishing capture")
			sess.Finish()
		},
		OnComplete: func(img *image.RGBA, err error) {
			composite = img
			done <- err
		},
	}
	sess.AddListener(func(prev, next session.State) {
		a.logger.Debug("session", "from", prev.String(), "to", next.String())
	})

	if err := sess.Start(region, cb); err != nil {
		return err
	}
	a.logger.Info("capture started; scroll the selected region, interrupt to finish",
		"region", region.String(),
		"poll_interval", a.cfg.PollInterval())

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	finishing := false
	for {
		select {
		case <-sigCh:
			if !finishing {
				finishing = true
				a.logger.Info("finishing capture")
				sess.Finish()
			} else {
				a.logger.Info("cancelling capture")
				sess.Cancel()
			}
		case err := <-done:
			if err != nil {
				return err
			}
			stats := sess.Stats()
			a.logger.Info("capture complete",
				"frames", stats.FramesCaptured,
				"ticks", stats.Ticks,
				"sample_failures", stats.SampleFailures,
				"avg_sample", stats.AvgSample,
				"width", composite.Bounds().Dx(),
				"height", composite.Bounds().Dy())
			return a.writePNG(composite)
		}
	}
}

func (a *App) writePNG(img *image.RGBA) error {
	f, err := os.Create(a.cfg.OutputPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return err
	}
	a.logger.Info("composite written", "path", a.cfg.OutputPath)
	return nil
}
