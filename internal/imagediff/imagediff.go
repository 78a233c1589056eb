// Package imagediff counts differing pixels between two PNG screenshots.
package imagediff

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/jonathan/regression-baseline/internal/types"
	"github.com/orisano/pixelmatch"
)

// DefaultThreshold is the matching threshold (0-1) passed to pixelmatch; smaller is more sensitive.
const DefaultThreshold = 0.1

// SizeMismatchError is returned when the two images have different dimensions.
type SizeMismatchError struct {
	Baseline image.Point
	Current  image.Point
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("image dimensions differ: baseline %dx%d, current %dx%d",
		e.Baseline.X, e.Baseline.Y, e.Current.X, e.Current.Y)
}

// Differ resolves baseline references against BaselineDir and current
// references against CurrentDir.
type Differ struct {
	BaselineDir string
	CurrentDir  string
	Threshold   float64
}

// New returns a differ with the default threshold.
func New(baselineDir, currentDir string) *Differ {
	return &Differ{BaselineDir: baselineDir, CurrentDir: currentDir, Threshold: DefaultThreshold}
}

// Diff implements compare.ImageDiffer.
func (d *Differ) Diff(ctx context.Context, baselineRef, currentRef string) (types.DiffResult, error) {
	a, err := decode(filepath.Join(d.BaselineDir, filepath.FromSlash(baselineRef)))
	if err != nil {
		return types.DiffResult{}, err
	}
	b, err := decode(filepath.Join(d.CurrentDir, filepath.FromSlash(currentRef)))
	if err != nil {
		return types.DiffResult{}, err
	}
	return Compare(ctx, a, b, d.Threshold)
}

// Compare counts pixels that differ perceptually between a and b. Colors are
// compared in YIQ space and anti-aliased edges are not counted.
func Compare(ctx context.Context, a, b image.Image, threshold float64) (types.DiffResult, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Size() != bb.Size() {
		return types.DiffResult{}, &SizeMismatchError{Baseline: ab.Size(), Current: bb.Size()}
	}
	if err := ctx.Err(); err != nil {
		return types.DiffResult{}, err
	}

	diff, err := pixelmatch.MatchPixel(normalize(a), normalize(b), pixelmatch.Threshold(threshold))
	if err != nil {
		return types.DiffResult{}, fmt.Errorf("failed to match pixels: %w", err)
	}

	total := ab.Dx() * ab.Dy()
	res := types.DiffResult{DiffPixels: diff, TotalPixels: total}
	if total > 0 {
		res.DiffPercentage = float64(diff) / float64(total) * 100
	}
	return res, nil
}

// normalize moves img to a zero origin so two equally sized images share bounds.
func normalize(img image.Image) image.Image {
	if img.Bounds().Min == (image.Point{}) {
		return img
	}
	out := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
