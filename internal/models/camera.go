package models

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultResolution is used when a campaign does not specify one.
const DefaultResolution = "1280x720"

// CameraStatus reports device availability for the attached camera.
type CameraStatus struct {
	Available bool   `json:"available"`
	Type      string `json:"type,omitempty"` // "raspberrypi" or "usb"
	Device    string `json:"device,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Resolution is a parsed "WIDTHxHEIGHT" capture resolution.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ParseResolution parses a "WIDTHxHEIGHT" string such as "1280x720".
func ParseResolution(s string) (Resolution, error) {
	if s == "" {
		s = DefaultResolution
	}
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return Resolution{}, fmt.Errorf("invalid resolution %q, expected WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || w <= 0 {
		return Resolution{}, fmt.Errorf("invalid width in resolution %q", s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || h <= 0 {
		return Resolution{}, fmt.Errorf("invalid height in resolution %q", s)
	}
	return Resolution{Width: w, Height: h}, nil
}
