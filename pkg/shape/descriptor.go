package shape

import (
	"image"
	"math"
)

// descriptor reúne as medidas geométricas de um contorno externo.
type descriptor struct {
	area      float64 // área do contorno (shoelace)
	perimeter float64
	vertices  int     // vértices após Douglas-Peucker
	polyArea  float64 // área do polígono aproximado
	solidity  float64 // área / área do fecho convexo
	aspect    float64 // lado menor / lado maior do retângulo envolvente
	radialCV  float64 // coeficiente de variação da distância centroide -> contorno
}

func describe(contour []image.Point, bounds image.Rectangle, cx, cy, epsRatio float64) descriptor {
	d := descriptor{
		area:      polygonArea(contour),
		perimeter: perimeter(contour),
	}
	poly := simplifyClosed(contour, epsRatio*d.perimeter)
	d.vertices = len(poly)
	d.polyArea = polygonArea(poly)
	if hull := polygonArea(convexHull(contour)); hull > 0 {
		d.solidity = d.area / hull
	}

	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	d.aspect = math.Min(w, h) / math.Max(w, h)

	var sum, sumSq float64
	for _, p := range contour {
		r := math.Hypot(float64(p.X)+0.5-cx, float64(p.Y)+0.5-cy)
		sum += r
		sumSq += r * r
	}
	n := float64(len(contour))
	mean := sum / n
	if mean > 0 {
		d.radialCV = math.Sqrt(math.Max(0, sumSq/n-mean*mean)) / mean
	}
	return d
}

// score devolve a confiança em [0,1] de que o contorno é a forma pedida.
// Anel usa o mesmo detector do círculo: só o contorno externo é analisado.
func (d descriptor) score(s Shape, opts Options) float64 {
	switch s {
	case Circle, Ring:
		return clamp01(1-d.radialCV/opts.CircleTolerance) * aspectFit(d.aspect)
	case Triangle:
		return d.polygonScore(3)
	case Square:
		return d.polygonScore(4) * aspectFit(d.aspect)
	case Pentagon:
		return d.polygonScore(5)
	case Hexagon:
		return d.polygonScore(6)
	case Star:
		return vertexMatch(d.vertices, 10) * clamp01((0.75-d.solidity)/0.15)
	}
	return 0
}

// fit mede, em (-inf,0], o quanto o contorno se aproxima da forma ideal:
// variação radial para círculos, área perdida na aproximação para polígonos.
// Desempata candidatos com a mesma confiança.
func (d descriptor) fit(s Shape) float64 {
	if s == Circle || s == Ring {
		return -d.radialCV
	}
	if d.area == 0 {
		return math.Inf(-1)
	}
	return -math.Abs(1 - d.polyArea/d.area)
}

// polygonScore exige a contagem de vértices, que o polígono aproximado cubra o
// contorno (círculos perdem área quando aproximados) e que a forma seja convexa.
func (d descriptor) polygonScore(n int) float64 {
	if d.area == 0 {
		return 0
	}
	fit := clamp01((d.polyArea/d.area - 0.85) / 0.1)
	convex := clamp01((d.solidity - 0.8) / 0.12)
	return vertexMatch(d.vertices, n) * fit * convex
}

func vertexMatch(got, want int) float64 {
	switch diff := got - want; {
	case diff == 0:
		return 1
	case diff == 1 || diff == -1:
		return 0.5
	}
	return 0
}

func aspectFit(a float64) float64 {
	return clamp01((a - 0.8) / 0.15)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
