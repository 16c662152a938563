package recognition

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/hihihi151/aujc/pkg/imaging"
	"golang.org/x/image/draw"
)

var letterboxFill = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// Detector encontra caixas de caracteres. O modelo recebe um quadrado
// InputSize x InputSize (letterbox, CHW, [0,1]) e devolve as caixas já
// filtradas por NMS no formato [N,6]: x1, y1, x2, y2, score, classe.
type Detector struct {
	eng       engine
	size      int
	threshold float32
}

func NewDetector(opts Options) (*Detector, error) {
	eng, err := newEngine(opts, opts.DetectorModel, opts.DetectorInput, opts.DetectorOutput)
	if err != nil {
		return nil, err
	}
	return &Detector{eng: eng, size: opts.InputSize, threshold: opts.ScoreThreshold}, nil
}

func (d *Detector) Close() error { return d.eng.Close() }

// Detect devolve as caixas em coordenadas nativas do canvas.
func (d *Detector) Detect(ctx context.Context, c imaging.Canvas) ([]image.Rectangle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	input, lb := letterbox(c, d.size)
	out, shape, err := d.eng.Run(input, []int64{1, 3, int64(d.size), int64(d.size)})
	if err != nil {
		return nil, err
	}
	return parseBoxes(out, shape, lb, d.threshold, image.Rect(0, 0, c.Width(), c.Height()))
}

// letterboxGeometry guarda a escala e o deslocamento aplicados na entrada.
type letterboxGeometry struct {
	scale      float64
	padX, padY float64
}

func letterbox(c imaging.Canvas, size int) ([]float32, letterboxGeometry) {
	w, h := c.Width(), c.Height()
	scale := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	nw, nh := int(math.Round(float64(w)*scale)), int(math.Round(float64(h)*scale))
	lb := letterboxGeometry{scale: scale, padX: float64(size-nw) / 2, padY: float64(size-nh) / 2}

	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Rect, &image.Uniform{C: letterboxFill}, image.Point{}, draw.Src)
	target := image.Rect(int(lb.padX), int(lb.padY), int(lb.padX)+nw, int(lb.padY)+nh)
	draw.CatmullRom.Scale(dst, target, c.Image, c.Image.Rect, draw.Over, nil)
	lb.padX, lb.padY = float64(target.Min.X), float64(target.Min.Y)

	plane := size * size
	input := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			p := dst.NRGBAAt(x, y)
			i := y*size + x
			input[i] = float32(p.R) / 255
			input[plane+i] = float32(p.G) / 255
			input[2*plane+i] = float32(p.B) / 255
		}
	}
	return input, lb
}

func parseBoxes(out []float32, shape []int64, lb letterboxGeometry, threshold float32, bounds image.Rectangle) ([]image.Rectangle, error) {
	if len(shape) == 0 || shape[len(shape)-1] < 5 {
		return nil, fmt.Errorf("formato de saída inesperado do detector: %v", shape)
	}
	stride := int(shape[len(shape)-1])
	var boxes []image.Rectangle
	for i := 0; i+stride <= len(out); i += stride {
		row := out[i : i+stride]
		if row[4] < threshold {
			continue
		}
		back := func(v float32, pad float64) int {
			return int(math.Round((float64(v) - pad) / lb.scale))
		}
		r := image.Rect(back(row[0], lb.padX), back(row[1], lb.padY), back(row[2], lb.padX), back(row[3], lb.padY)).Intersect(bounds)
		if !r.Empty() {
			boxes = append(boxes, r)
		}
	}
	return boxes, nil
}
