package visualizer

import (
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/senses/rimage"
)

// Display types.
const (
	DisplayWindow   = "window"
	DisplayHeadless = "headless"
)

// Point coloring modes.
const (
	PointColorsImage = "color"
	PointColorsDepth = "depth"
)

// Config controls the display surface and how the scene is drawn.
type Config struct {
	Type       string `json:"type"`
	Title      string `json:"title,omitempty"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Fullscreen bool   `json:"fullscreen,omitempty"`

	// FOV is the vertical field of view of the flyby camera in degrees.
	FOV  float64 `json:"fov_deg"`
	Near float64 `json:"near_m"`
	Far  float64 `json:"far_m"`

	PointSize      int    `json:"point_size"`
	HighlightSize  int    `json:"highlight_size"`
	HighlightColor string `json:"highlight_color"`
	// PointColors is "color" to use the color image or "depth" to color points by distance.
	PointColors string `json:"point_colors,omitempty"`

	HidePanels  bool `json:"hide_panels,omitempty"`
	HideFrustum bool `json:"hide_frustum,omitempty"`
	ShowStats   bool `json:"show_stats,omitempty"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Type:           DisplayWindow,
		Title:          "Artificial Senses",
		Width:          1280,
		Height:         720,
		FOV:            60,
		Near:           0.1,
		Far:            255,
		PointSize:      1,
		HighlightSize:  3,
		HighlightColor: rimage.Highlight.Hex(),
		PointColors:    PointColorsImage,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	switch cfg.Type {
	case DisplayWindow, DisplayHeadless:
	case "":
		return goutils.NewConfigValidationFieldRequiredError(path, "type")
	default:
		return goutils.NewConfigValidationError(path,
			errors.Errorf("unknown display type %q, expected %q or %q", cfg.Type, DisplayWindow, DisplayHeadless))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("invalid size %dx%d", cfg.Width, cfg.Height))
	}
	if cfg.FOV <= 0 || cfg.FOV >= 180 {
		return goutils.NewConfigValidationError(path, errors.Errorf("fov_deg must be in (0, 180), got %v", cfg.FOV))
	}
	if cfg.Near <= 0 || cfg.Far <= cfg.Near {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("need 0 < near_m < far_m, got near_m=%v far_m=%v", cfg.Near, cfg.Far))
	}
	if cfg.PointSize <= 0 || cfg.HighlightSize <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("point_size and highlight_size must be positive"))
	}
	if _, err := rimage.NewColorFromHex(cfg.HighlightColor); err != nil {
		return goutils.NewConfigValidationError(path, errors.Wrap(err, "highlight_color"))
	}
	switch cfg.PointColors {
	case "", PointColorsImage, PointColorsDepth:
	default:
		return goutils.NewConfigValidationError(path,
			errors.Errorf("point_colors must be %q or %q, got %q", PointColorsImage, PointColorsDepth, cfg.PointColors))
	}
	return nil
}
