package occupancy

import (
	"image"
	"image/color"
	"os"
	"path/filepath"

	// register the PGM/PPM/PBM image decoders.
	_ "github.com/jbuchbinder/gopnm"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"go.viam.com/gridnav/spatialmath"
)

const (
	defaultOccupiedThresh = 0.65
	defaultFreeThresh     = 0.196
)

// MapServerMetadata is the yaml sidecar written next to map_server images.
type MapServerMetadata struct {
	Image          string    `yaml:"image"`
	Resolution     float64   `yaml:"resolution"`
	Origin         []float64 `yaml:"origin"`
	Negate         int       `yaml:"negate"`
	OccupiedThresh float64   `yaml:"occupied_thresh"`
	FreeThresh     float64   `yaml:"free_thresh"`
}

// ReadMapServerFiles loads a grid from a map_server yaml file and the image it references. A
// relative image path is resolved against the yaml file's directory.
func ReadMapServerFiles(yamlPath string) (*Grid, error) {
	//nolint:gosec
	raw, err := os.ReadFile(yamlPath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading map metadata %q", yamlPath)
	}
	var meta MapServerMetadata
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return nil, errors.Wrapf(err, "parsing map metadata %q", yamlPath)
	}
	if meta.Image == "" {
		return nil, errors.Errorf("map metadata %q has no image", yamlPath)
	}
	if len(meta.Origin) != 3 {
		return nil, errors.Errorf("map origin must have 3 values (x, y, yaw), got %d", len(meta.Origin))
	}
	if meta.OccupiedThresh == 0 {
		meta.OccupiedThresh = defaultOccupiedThresh
	}
	if meta.FreeThresh == 0 {
		meta.FreeThresh = defaultFreeThresh
	}
	if meta.FreeThresh > meta.OccupiedThresh {
		return nil, errors.Errorf("map free_thresh %v is above occupied_thresh %v", meta.FreeThresh, meta.OccupiedThresh)
	}

	imagePath := meta.Image
	if !filepath.IsAbs(imagePath) {
		imagePath = filepath.Join(filepath.Dir(yamlPath), imagePath)
	}
	//nolint:gosec
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening map image %q", imagePath)
	}
	defer func() {
		//nolint:errcheck
		f.Close()
	}()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding map image %q", imagePath)
	}

	info := MapInfo{
		Resolution: meta.Resolution,
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
		Origin:     spatialmath.NewPlanarPose(meta.Origin[0], meta.Origin[1], meta.Origin[2]),
	}
	return NewGrid(info, rasterize(img, meta))
}

// rasterize converts image pixels to raw cell values. Image row 0 is the top of the map, grid row 0
// is the bottom. Pixels between free_thresh and occupied_thresh are unknown and become occupied.
func rasterize(img image.Image, meta MapServerMetadata) []byte {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	data := make([]byte, width*height)
	for y := 0; y < height; y++ {
		row := height - 1 - y
		for x := 0; x < width; x++ {
			v := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray).Y
			if meta.Negate != 0 {
				v = 255 - v
			}
			occupancy := float64(255-v) / 255
			cell := RawOccupied
			if occupancy < meta.FreeThresh {
				// keep the gray level, nonzero so it stays free.
				cell = max(v, 1)
			}
			data[row*width+x] = cell
		}
	}
	return data
}
