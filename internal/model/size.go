package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Orientation describes whether a size is taller than it is wide.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
	// Square sizes belong to neither orientation.
	Square Orientation = "square"
)

// Size is an immutable width x height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ParseSize parses a "WxH" string such as "1280x720". The separator is
// case-insensitive and both dimensions must be positive integers.
func ParseSize(s string) (Size, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return Size{}, fmt.Errorf("invalid size %q: expected WxH", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return Size{}, fmt.Errorf("invalid size width %q: %w", w, err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return Size{}, fmt.Errorf("invalid size height %q: %w", h, err)
	}
	sz := Size{Width: width, Height: height}
	if !sz.Valid() {
		return Size{}, fmt.Errorf("invalid size %q: dimensions must be positive", s)
	}
	return sz, nil
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Ratio returns width divided by height.
func (s Size) Ratio() float64 {
	return float64(s.Width) / float64(s.Height)
}

// Orientation returns Portrait iff the height exceeds the width.
func (s Size) Orientation() Orientation {
	switch {
	case s.Height > s.Width:
		return Portrait
	case s.Width > s.Height:
		return Landscape
	default:
		return Square
	}
}

// String formats the size the way the remote service expects it.
func (s Size) String() string {
	return strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
}
