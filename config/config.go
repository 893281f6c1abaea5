// Package config defines the structures that configure the detector, the proximity analysis and
// every camera pipeline, and how they are read from disk.
package config

import (
	"fmt"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/sodistec/sodistec/logging"
	"github.com/sodistec/sodistec/rimage"
	"github.com/sodistec/sodistec/utils"
	"github.com/sodistec/sodistec/vision/proximity"
)

// Defaults taken from the original deployment of the detector.
const (
	DefaultFramework     = "darknet"
	DefaultDetectClass   = "person"
	DefaultInputSize     = 416
	DefaultResizePolicy  = string(rimage.ResizeDirect)
	DefaultMinConfidence = 0.3
	DefaultNMSThreshold  = 0.3
	DefaultMinDistance   = 50.
	DefaultMaxDistance   = 80.
	DefaultMaxDepthDelta = 0.25
	DefaultBackend       = "opencv"
	DefaultReadTimeout   = 2 * time.Second
	DefaultResizeWidth   = 960
	DefaultResizeHeight  = 540
)

// A Config describes the configuration of the whole process.
type Config struct {
	ConfigFilePath string `json:"-"`

	Detector   DetectorConfig   `json:"detector"`
	Proximity  ProximityConfig  `json:"proximity"`
	Annotation AnnotationConfig `json:"annotation"`
	Cameras    []CameraConfig   `json:"cameras"`
	Web        WebConfig        `json:"web"`
	Log        LogConfig        `json:"log"`
}

// DetectorConfig selects the network and how its output is filtered.
type DetectorConfig struct {
	Framework               string  `json:"framework"`
	ConfigPath              string  `json:"config_path"`
	WeightsPath             string  `json:"weights_path"`
	LabelsPath              string  `json:"labels_path"`
	DetectClass             string  `json:"detect_class"`
	InputSize               int     `json:"input_size"`
	ResizePolicy            string  `json:"resize_policy"`
	MinConfidence           float64 `json:"min_confidence"`
	NMSThreshold            float64 `json:"nms_threshold"`
	MinBoxArea              float64 `json:"min_box_area"`
	UseAcceleratedInference bool    `json:"use_accelerated_inference"`
}

// ProximityConfig holds the initial distance thresholds and the classification mode.
type ProximityConfig struct {
	Mode          string  `json:"mode"`
	MinDistance   float64 `json:"min_distance"`
	MaxDistance   float64 `json:"max_distance"`
	MaxDepthDelta float64 `json:"max_depth_delta"`
}

// AnnotationConfig controls how annotated frames are drawn.
type AnnotationConfig struct {
	SafeColor     string `json:"safe_color"`
	SeriousColor  string `json:"serious_color"`
	AbnormalColor string `json:"abnormal_color"`
	DrawCounters  bool   `json:"draw_counters"`
}

// CameraConfig describes one video input and how it is captured. A negative resize dimension
// disables resizing before detection.
type CameraConfig struct {
	Name            string                `json:"name"`
	Source          string                `json:"source"`
	Backend         string                `json:"backend"`
	ThreadedCapture bool                  `json:"threaded_capture"`
	ReadTimeout     time.Duration         `json:"read_timeout"`
	ResizeWidth     int                   `json:"resize_width"`
	ResizeHeight    int                   `json:"resize_height"`
	Reconnect       utils.ReconnectConfig `json:"reconnect"`
	Attributes      AttributeMap          `json:"attributes"`

	// Debug logs every frame of this camera whatever the process log level.
	Debug bool `json:"debug"`
}

// WebConfig configures the preview and metrics server. An empty bind address disables it.
type WebConfig struct {
	BindAddress string `json:"bind_address"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `json:"level"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// NewDefault returns a Config holding every default. Files are decoded on top of it.
func NewDefault() *Config {
	return &Config{
		Detector: DetectorConfig{
			Framework:     DefaultFramework,
			DetectClass:   DefaultDetectClass,
			InputSize:     DefaultInputSize,
			ResizePolicy:  DefaultResizePolicy,
			MinConfidence: DefaultMinConfidence,
			NMSThreshold:  DefaultNMSThreshold,
		},
		Proximity: ProximityConfig{
			Mode:          string(proximity.ModeBand),
			MinDistance:   DefaultMinDistance,
			MaxDistance:   DefaultMaxDistance,
			MaxDepthDelta: DefaultMaxDepthDelta,
		},
		Annotation: AnnotationConfig{
			SafeColor:     "#00ff00",
			SeriousColor:  "#ff0000",
			AbnormalColor: "#ffff00",
			DrawCounters:  true,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// ApplyDefaults fills the per-camera fields that were left empty.
func (c *Config) ApplyDefaults() {
	for idx := range c.Cameras {
		c.Cameras[idx].ApplyDefaults()
	}
}

// ApplyDefaults fills the fields of a camera that were left empty.
func (cc *CameraConfig) ApplyDefaults() {
	if cc.Backend == "" {
		cc.Backend = DefaultBackend
	}
	if cc.ReadTimeout == 0 {
		cc.ReadTimeout = DefaultReadTimeout
	}
	if cc.ResizeWidth == 0 && cc.ResizeHeight == 0 {
		cc.ResizeWidth = DefaultResizeWidth
		cc.ResizeHeight = DefaultResizeHeight
	}
	def := utils.DefaultReconnectConfig()
	if cc.Reconnect.MaxRetries == 0 {
		cc.Reconnect.MaxRetries = def.MaxRetries
	}
	if cc.Reconnect.RetryDelay == 0 {
		cc.Reconnect.RetryDelay = def.RetryDelay
	}
	if cc.Reconnect.MaxRetryDelay == 0 {
		cc.Reconnect.MaxRetryDelay = def.MaxRetryDelay
	}
	if cc.Attributes == nil {
		cc.Attributes = AttributeMap{}
	}
}

// Resize reports the size frames are resized to before detection, if any.
func (cc *CameraConfig) Resize() (width, height int, ok bool) {
	if cc.ResizeWidth <= 0 || cc.ResizeHeight <= 0 {
		return 0, 0, false
	}
	return cc.ResizeWidth, cc.ResizeHeight, true
}

// Ensure validates the whole configuration, returning the first problem found.
func (c *Config) Ensure() error {
	if err := c.Detector.Validate("detector"); err != nil {
		return err
	}
	if err := c.Proximity.Validate("proximity"); err != nil {
		return err
	}
	if err := c.Annotation.Validate("annotation"); err != nil {
		return err
	}
	if len(c.Cameras) == 0 {
		return NewConfigError("cameras", errors.New("at least one camera is required"))
	}
	for idx := range c.Cameras {
		if err := c.Cameras[idx].Validate(fmt.Sprintf("%s.%d", "cameras", idx)); err != nil {
			return err
		}
	}
	if dups := lo.FindDuplicates(lo.Map(c.Cameras, func(cc CameraConfig, _ int) string { return cc.Name })); len(dups) > 0 {
		return NewConfigError("cameras", errors.Errorf("camera name %q is not unique", dups[0]))
	}
	if _, err := logging.LevelFromString(c.Log.Level); err != nil {
		return NewConfigError("log.level", err)
	}
	return nil
}

// Validate ensures all parts of the detector config are valid.
func (dc *DetectorConfig) Validate(path string) error {
	if dc.Framework == "" {
		return newFieldRequiredError(path, "framework")
	}
	if dc.Framework == DefaultFramework {
		if dc.ConfigPath == "" {
			return newFieldRequiredError(path, "config_path")
		}
		if dc.WeightsPath == "" {
			return newFieldRequiredError(path, "weights_path")
		}
	}
	if dc.DetectClass == "" {
		return newFieldRequiredError(path, "detect_class")
	}
	if dc.InputSize <= 0 {
		return NewConfigError(path+".input_size", errors.Errorf("must be positive, got %d", dc.InputSize))
	}
	if _, err := rimage.ParseResizePolicy(dc.ResizePolicy); err != nil {
		return NewConfigError(path+".resize_policy", err)
	}
	if dc.MinConfidence < 0 || dc.MinConfidence > 1 {
		return NewConfigError(path+".min_confidence", errors.Errorf("must be within [0, 1], got %v", dc.MinConfidence))
	}
	if dc.NMSThreshold < 0 || dc.NMSThreshold > 1 {
		return NewConfigError(path+".nms_threshold", errors.Errorf("must be within [0, 1], got %v", dc.NMSThreshold))
	}
	if dc.MinBoxArea < 0 {
		return NewConfigError(path+".min_box_area", errors.Errorf("cannot be negative, got %v", dc.MinBoxArea))
	}
	return nil
}

// Validate ensures the thresholds are usable by the configured mode.
func (pc *ProximityConfig) Validate(path string) error {
	mode, err := proximity.ParseMode(pc.Mode)
	if err != nil {
		return NewConfigError(path+".mode", err)
	}
	if pc.MinDistance < 0 {
		return NewConfigError(path+".min_distance", errors.Errorf("cannot be negative, got %v", pc.MinDistance))
	}
	if pc.MaxDistance < 0 {
		return NewConfigError(path+".max_distance", errors.Errorf("cannot be negative, got %v", pc.MaxDistance))
	}
	if mode == proximity.ModeBand && pc.MaxDistance < pc.MinDistance {
		return NewConfigError(path+".max_distance",
			errors.Errorf("must not be below min_distance (%v < %v)", pc.MaxDistance, pc.MinDistance))
	}
	if pc.MaxDepthDelta < 0 {
		return NewConfigError(path+".max_depth_delta", errors.Errorf("cannot be negative, got %v", pc.MaxDepthDelta))
	}
	return nil
}

// Thresholds returns the initial threshold values.
func (pc *ProximityConfig) Thresholds() proximity.Thresholds {
	return proximity.Thresholds{
		MinDistance:   pc.MinDistance,
		MaxDistance:   pc.MaxDistance,
		MaxDepthDelta: pc.MaxDepthDelta,
	}
}

// Validate ensures every colour parses.
func (ac *AnnotationConfig) Validate(path string) error {
	for field, hex := range map[string]string{
		"safe_color":     ac.SafeColor,
		"serious_color":  ac.SeriousColor,
		"abnormal_color": ac.AbnormalColor,
	} {
		if _, err := colorful.Hex(hex); err != nil {
			return NewConfigError(path+"."+field, errors.Wrapf(err, "invalid colour %q", hex))
		}
	}
	return nil
}

// Validate ensures all parts of the camera config are valid.
func (cc *CameraConfig) Validate(path string) error {
	if cc.Name == "" {
		return newFieldRequiredError(path, "name")
	}
	if cc.Source == "" {
		return newFieldRequiredError(path, "source")
	}
	if cc.Backend == "" {
		return newFieldRequiredError(path, "backend")
	}
	if cc.ReadTimeout < 0 {
		return NewConfigError(path+".read_timeout", errors.Errorf("cannot be negative, got %v", cc.ReadTimeout))
	}
	if cc.Reconnect.MaxRetries < 0 || cc.Reconnect.RetryDelay < 0 || cc.Reconnect.MaxRetryDelay < 0 {
		return NewConfigError(path+".reconnect", errors.New("values cannot be negative"))
	}
	return nil
}
