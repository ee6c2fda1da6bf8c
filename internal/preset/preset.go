// Package preset holds the optimization settings handed to gltfpack: mesh
// quantization, texture compression, and the named quality presets that
// produce them.
package preset

import (
	"fmt"
	"strings"

	"github.com/backmassage/gltfpress/internal/failure"
)

// TextureFormat is the texture compression codec.
type TextureFormat string

const (
	FormatETC1S TextureFormat = "ETC1S" // Default codec; smaller output.
	FormatUASTC TextureFormat = "UASTC" // High-fidelity codec.
	FormatNone  TextureFormat = "None"  // No texture compression.
)

// ParseTextureFormat accepts the format name in any case.
func ParseTextureFormat(s string) (TextureFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "etc1s":
		return FormatETC1S, nil
	case "uastc":
		return FormatUASTC, nil
	case "none":
		return FormatNone, nil
	default:
		return "", fmt.Errorf("invalid texture format %q (use 'etc1s', 'uastc' or 'none')", s)
	}
}

// Name identifies a preset.
type Name string

const (
	Low      Name = "low"
	Balanced Name = "balanced"
	High     Name = "high"
	Custom   Name = "custom"
)

// Names lists the presets in display order.
var Names = []Name{Low, Balanced, High, Custom}

// DisplayName returns the human label of the preset.
func (n Name) DisplayName() string {
	switch n {
	case Low:
		return "Low Quality"
	case Balanced:
		return "Balanced"
	case High:
		return "High Quality"
	case Custom:
		return "Custom"
	default:
		return string(n)
	}
}

// Quantization bounds and the allowed texture dimensions.
const (
	MinBits       = 8
	MaxBits       = 16
	MinQuality    = 1
	MaxQuality    = 255
	NoResizeLimit = 4096
)

// AllowedDimensions are the accepted values for Texture.MaxDimension.
var AllowedDimensions = []int{256, 512, 1024, 2048, 4096}

// Mesh holds vertex compression and quantization settings.
type Mesh struct {
	Compression  bool `yaml:"compression" json:"compression"`
	PositionBits int  `yaml:"position_bits" json:"position_bits"` // 8-16
	TexCoordBits int  `yaml:"texcoord_bits" json:"texcoord_bits"` // 8-16
	NormalBits   int  `yaml:"normal_bits" json:"normal_bits"`     // 8-16
}

// Texture holds texture compression settings.
type Texture struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	Format       TextureFormat `yaml:"format" json:"format"`
	Quality      int           `yaml:"quality" json:"quality"`             // 1-255
	MaxDimension int           `yaml:"max_dimension" json:"max_dimension"` // one of AllowedDimensions
	PowerOfTwo   bool          `yaml:"power_of_two" json:"power_of_two"`
}

// Config is a complete optimization configuration. It is treated as
// immutable once handed to the pipeline; pass it by value.
type Config struct {
	Name    string  `yaml:"name" json:"name"`
	Preset  Name    `yaml:"preset" json:"preset"`
	Mesh    Mesh    `yaml:"mesh" json:"mesh"`
	Texture Texture `yaml:"texture" json:"texture"`
}

func defaultMesh() Mesh {
	return Mesh{Compression: true, PositionBits: 14, TexCoordBits: 12, NormalBits: 10}
}

func defaultTexture() Texture {
	return Texture{Enabled: true, Format: FormatETC1S, Quality: 128, MaxDimension: 2048, PowerOfTwo: true}
}

// ForPreset returns the configuration for a named preset.
func ForPreset(n Name) (Config, error) {
	switch n {
	case Low:
		return Config{
			Name:    Low.DisplayName(),
			Preset:  Low,
			Mesh:    Mesh{Compression: true, PositionBits: 12, TexCoordBits: 10, NormalBits: 8},
			Texture: Texture{Enabled: true, Format: FormatETC1S, Quality: 1, MaxDimension: 1024, PowerOfTwo: true},
		}, nil
	case Balanced:
		return Config{Name: Balanced.DisplayName(), Preset: Balanced, Mesh: defaultMesh(), Texture: defaultTexture()}, nil
	case High:
		return Config{
			Name:    High.DisplayName(),
			Preset:  High,
			Mesh:    Mesh{Compression: true, PositionBits: 16, TexCoordBits: 14, NormalBits: 12},
			Texture: Texture{Enabled: true, Format: FormatUASTC, Quality: 10, MaxDimension: 4096, PowerOfTwo: false},
		}, nil
	case Custom:
		return Config{Name: Custom.DisplayName(), Preset: Custom, Mesh: defaultMesh(), Texture: defaultTexture()}, nil
	default:
		return Config{}, fmt.Errorf("unknown preset %q (use 'low', 'balanced', 'high' or 'custom')", n)
	}
}

// ParseName accepts a preset name in any case.
func ParseName(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Names {
		if n == known {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown preset %q (use 'low', 'balanced', 'high' or 'custom')", s)
}

// Default returns the balanced preset.
func Default() Config {
	c, _ := ForPreset(Balanced)
	return c
}

// Validate checks every bit width, the texture quality, the maximum dimension
// and the texture format. The returned error is a failure.InvalidConfiguration
// naming the first offending field.
func (c Config) Validate() error {
	bits := []struct {
		name string
		v    int
	}{
		{"position bits", c.Mesh.PositionBits},
		{"texcoord bits", c.Mesh.TexCoordBits},
		{"normal bits", c.Mesh.NormalBits},
	}
	for _, b := range bits {
		if b.v < MinBits || b.v > MaxBits {
			return failure.InvalidConfiguration(fmt.Sprintf("%s must be %d-%d (got %d)", b.name, MinBits, MaxBits, b.v))
		}
	}

	if c.Texture.Quality < MinQuality || c.Texture.Quality > MaxQuality {
		return failure.InvalidConfiguration(fmt.Sprintf("texture quality must be %d-%d (got %d)", MinQuality, MaxQuality, c.Texture.Quality))
	}
	if !validDimension(c.Texture.MaxDimension) {
		return failure.InvalidConfiguration(fmt.Sprintf("texture max dimension must be one of %v (got %d)", AllowedDimensions, c.Texture.MaxDimension))
	}

	switch c.Texture.Format {
	case FormatETC1S, FormatUASTC, FormatNone:
		// valid
	default:
		return failure.InvalidConfiguration(fmt.Sprintf("unknown texture format %q", c.Texture.Format))
	}
	return nil
}

func validDimension(d int) bool {
	for _, a := range AllowedDimensions {
		if d == a {
			return true
		}
	}
	return false
}
