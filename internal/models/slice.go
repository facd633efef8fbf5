package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SliceRequest describes a stack of parallel slices to cut from a volume. It
// can be given on the command line or read from a YAML file.
type SliceRequest struct {
	// Center is the center of the stack in mm (base frame); nil uses the
	// center of the volume
	Center []float64 `yaml:"center"`

	// Normal is the slice normal; the stack advances along it
	Normal [3]float64 `yaml:"normal"`

	// Width and Height are the in-plane extent of each slice in mm; 0 spans
	// the whole volume
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`

	// Thickness of each slice in mm; 0 uses one source voxel
	Thickness float64 `yaml:"thickness"`

	// PixelSize is the in-plane voxel size of the output in mm
	PixelSize float64 `yaml:"pixelSize"`

	// Count is the number of slices in the stack
	Count int `yaml:"count"`

	// Spacing is the distance between consecutive slice centers in mm; 0
	// uses the thickness
	Spacing float64 `yaml:"spacing"`

	// StartTime and Duration select the time window blended into each slice
	StartTime float64 `yaml:"startTime"`
	Duration  float64 `yaml:"duration"`

	// Interpolation is "nearest" or "trilinear"; empty keeps the volume's
	Interpolation string `yaml:"interpolation"`
}

// Validate reports requests that cannot produce any slice.
func (r *SliceRequest) Validate() error {
	if r.Normal == [3]float64{} {
		return fmt.Errorf("slice normal must not be zero")
	}
	if r.Center != nil && len(r.Center) != 3 {
		return fmt.Errorf("slice center needs 3 coordinates, got %d", len(r.Center))
	}
	if r.Count < 1 {
		return fmt.Errorf("slice count must be at least 1, got %d", r.Count)
	}
	if r.Width < 0 || r.Height < 0 || r.Thickness < 0 || r.Spacing < 0 {
		return fmt.Errorf("slice extent, thickness and spacing must not be negative")
	}
	return nil
}

// LoadSliceRequest reads a request from a YAML file, starting from def.
func LoadSliceRequest(path string, def SliceRequest) (*SliceRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading slice request: %w", err)
	}
	req := def
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("error parsing slice request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// SliceSummary reports one extracted slice
type SliceSummary struct {
	// Index is the position of the slice in the stack
	Index int `yaml:"index"`

	// Name of the slice data set
	Name string `yaml:"name"`

	// Filename the rendered slice was written to, if any
	Filename string `yaml:"filename,omitempty"`

	// Width and Height of the slice in voxels
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// Center of the slice in mm (base frame)
	Center [3]float64 `yaml:"center"`

	// Statistics of the finite slice values
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"stdDev"`
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
}

// VolumeSummary reports the statistics of a whole volume
type VolumeSummary struct {
	Name      string     `yaml:"name"`
	Modality  string     `yaml:"modality"`
	Kind      string     `yaml:"kind"`
	Dim       [4]int     `yaml:"dim"`
	VoxelSize [3]float64 `yaml:"voxelSize"`
	Size      string     `yaml:"size"`
	FrameMin  []float64  `yaml:"frameMin"`
	FrameMax  []float64  `yaml:"frameMax"`
}
