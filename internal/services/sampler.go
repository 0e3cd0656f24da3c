package services

import (
	"context"
	"time"

	"vigil/internal/infrastructure/logging"
	"vigil/internal/platform"
	"vigil/internal/types"
)

// Sampler polls the OS foreground probe at 1 Hz and feeds
// system-origin observations into the continuity pipeline.
type Sampler struct {
	pipeline     *ContinuityPipeline
	probe        platform.ProbeAPI
	logger       logging.Logger
	stopSampling chan bool
}

// NewSampler creates a sampler over the platform probe.
func NewSampler(pipeline *ContinuityPipeline, probe platform.ProbeAPI, logger logging.Logger) *Sampler {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if probe == nil {
		probe = platform.NewProbeAPI()
	}
	return &Sampler{
		pipeline:     pipeline,
		probe:        probe,
		logger:       logger,
		stopSampling: make(chan bool),
	}
}

// Start begins the background sampling loop.
func (s *Sampler) Start() {
	go s.samplingLoop()
}

// Stop stops the sampling loop.
func (s *Sampler) Stop() {
	select {
	case s.stopSampling <- true:
	default:
	}
}

func (s *Sampler) samplingLoop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sampleForeground()
		case <-s.stopSampling:
			return
		}
	}
}

// sampleForeground takes one probe sample. Platforms without a real
// probe return nil and the sample is skipped; the browser extension is
// then the only observation source.
func (s *Sampler) sampleForeground() {
	info := s.probe.GetForegroundInfo()
	if info == nil || info.AppName == "" {
		return
	}

	obs := types.Observation{
		Timestamp:   time.Now(),
		Origin:      types.OriginSystem,
		AppName:     info.AppName,
		BundleID:    info.ExePath,
		WindowTitle: info.WindowTitle,
		IdleSeconds: s.probe.GetIdleSeconds(),
	}

	if err := s.pipeline.Handle(context.Background(), obs); err != nil {
		s.logger.Error("Failed to ingest foreground sample",
			"app", obs.AppName, "error", err)
	}
}
