package lyricist

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrNameRequired        = errors.New("name is required")
	ErrTitleRequired       = errors.New("title is required")
	ErrInvalidSegmentRange = errors.New("segment start time must be non-negative and before end time")
)

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrNameRequired
	}
	return nil
}

func validateSegmentRange(start, end float64) error {
	if math.IsNaN(start) || math.IsNaN(end) || math.IsInf(end, 0) {
		return ErrInvalidSegmentRange
	}
	if start < 0 || start >= end {
		return fmt.Errorf("%w: [%.2f, %.2f)", ErrInvalidSegmentRange, start, end)
	}
	return nil
}

func validateNewSong(in NewSong) error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrTitleRequired
	}
	for i, seg := range in.Segments {
		if err := validateSegmentRange(seg.StartTime, seg.EndTime); err != nil {
			return fmt.Errorf("segment %d: %w", i+1, err)
		}
	}
	return nil
}
