package service

import (
	"fmt"

	"github.com/your-org/faceattend/internal/attendance"
	"github.com/your-org/faceattend/internal/config"
	"github.com/your-org/faceattend/internal/matching"
	"github.com/your-org/faceattend/internal/storage"
	"github.com/your-org/faceattend/internal/vision"
)

// Build wires the detector, extractor, matcher and resolver described by
// cfg around store. photos and events may be nil.
func Build(cfg *config.Config, store storage.Store, photos PhotoArchive, events EventPublisher) (*Service, error) {
	det, err := vision.NewDetector(cfg.Vision)
	if err != nil {
		return nil, fmt.Errorf("build detector: %w", err)
	}
	ext, err := vision.NewExtractorFromConfig(cfg.Vision)
	if err != nil {
		return nil, fmt.Errorf("build extractor: %w", err)
	}

	return New(Deps{
		Store:            store,
		Detector:         det,
		Extractor:        ext,
		Engine:           matching.NewEngine(cfg.Matching.Threshold, cfg.Matching.ParallelMin),
		Resolver:         attendance.NewResolver(store, cfg.Attendance),
		Photos:           photos,
		Events:           events,
		MaxImageBytes:    cfg.Vision.MaxImageBytes,
		MaxImagePixels:   cfg.Vision.MaxImagePixels,
		StorePunchPhotos: cfg.Attendance.StorePunchPhotos,
	}), nil
}

// Close releases the detector's resources, if it holds any.
func (s *Service) Close() {
	if c, ok := s.Detector.(interface{ Close() }); ok {
		c.Close()
	}
}
