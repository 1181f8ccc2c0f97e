// Package config loads the detector settings from a YAML file and keeps the
// receiver settings (filter edges, decoder gate) up to date while running.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cwtone/tone"
)

// File is the on-disk configuration.
type File struct {
	SampleRate  int     `yaml:"sample_rate"`
	FrameLength int     `yaml:"frame_length"`
	Capacity    int     `yaml:"capacity,omitempty"`
	ThresholdDB float64 `yaml:"threshold_db"`
	PSDBeta     float64 `yaml:"psd_beta"`
	PeakBeta    float64 `yaml:"peak_beta"`
	NoiseBeta   float64 `yaml:"noise_beta"`
	PeakWidth   int     `yaml:"peak_width"`

	// receiver settings, reloaded while running
	FilterLow  float64 `yaml:"filter_low"`
	FilterHigh float64 `yaml:"filter_high"`
	Decoder    bool    `yaml:"decoder"`
}

// Default returns the built-in settings: the detector defaults and a
// 300-700 Hz CW filter with the decoder on.
func Default() *File {
	c := tone.DefaultConfig()

	return &File{
		SampleRate:  c.SampleRate,
		FrameLength: c.FrameLength,
		ThresholdDB: c.ThresholdDB,
		PSDBeta:     c.PSDBeta,
		PeakBeta:    c.PeakBeta,
		NoiseBeta:   c.NoiseBeta,
		PeakWidth:   c.PeakWidth,
		FilterLow:   300,
		FilterHigh:  700,
		Decoder:     true,
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	f := Default()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return f, nil
}

// Detector returns the fixed detector parameters.
func (f *File) Detector() tone.Config {
	return tone.Config{
		SampleRate:  f.SampleRate,
		FrameLength: f.FrameLength,
		Capacity:    f.Capacity,
		PSDBeta:     f.PSDBeta,
		PeakBeta:    f.PeakBeta,
		NoiseBeta:   f.NoiseBeta,
		PeakWidth:   f.PeakWidth,
		ThresholdDB: f.ThresholdDB,
	}
}

func (f *File) Validate() error {
	c := f.Detector()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return f.checkFilter(f.FilterLow, f.FilterHigh)
}

func (f *File) checkFilter(low, high float64) error {
	pb := tone.NewPassband(low, high, f.SampleRate, f.FrameLength)
	if err := pb.Check(f.FrameLength, f.PeakWidth); err != nil {
		return fmt.Errorf("config: filter %v-%v Hz: %w", low, high, err)
	}
	return nil
}

// Marshal renders f as YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}
