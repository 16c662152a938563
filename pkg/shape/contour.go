package shape

import (
	"image"
	"math"
	"sort"
)

// component é uma região 4-conexa da máscara binária.
type component struct {
	label  int32
	area   int
	sumX   float64
	sumY   float64
	bounds image.Rectangle
	start  image.Point // primeiro pixel em ordem de varredura (topo, depois esquerda)
}

// centroid no sistema de centro de pixel (pixel x cobre [x, x+1)).
func (c component) centroid() (float64, float64) {
	return c.sumX/float64(c.area) + 0.5, c.sumY/float64(c.area) + 0.5
}

type labeling struct {
	w, h   int
	labels []int32
	comps  []component
}

// label rotula as regiões conexas da máscara com uma busca em largura.
func label(mask []bool, w, h int) *labeling {
	l := &labeling{w: w, h: h, labels: make([]int32, w*h)}
	queue := make([]int, 0, 256)
	for i, on := range mask {
		if !on || l.labels[i] != 0 {
			continue
		}
		id := int32(len(l.comps) + 1)
		c := component{label: id, start: image.Pt(i%w, i/w)}
		c.bounds = image.Rect(c.start.X, c.start.Y, c.start.X+1, c.start.Y+1)

		l.labels[i] = id
		queue = append(queue[:0], i)
		for len(queue) > 0 {
			p := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := p%w, p/w
			c.area++
			c.sumX += float64(x)
			c.sumY += float64(y)
			c.bounds = c.bounds.Union(image.Rect(x, y, x+1, y+1))

			for _, n := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				nx, ny := x+n[0], y+n[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if mask[j] && l.labels[j] == 0 {
					l.labels[j] = id
					queue = append(queue, j)
				}
			}
		}
		l.comps = append(l.comps, c)
	}
	return l
}

func (l *labeling) inside(id int32) func(p image.Point) bool {
	return func(p image.Point) bool {
		if p.X < 0 || p.Y < 0 || p.X >= l.w || p.Y >= l.h {
			return false
		}
		return l.labels[p.Y*l.w+p.X] == id
	}
}

// vizinhança de Moore em sentido horário, começando pelo oeste
var moore = [8]image.Point{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

func mooreIndex(d image.Point) int {
	for i, m := range moore {
		if m == d {
			return i
		}
	}
	return 0
}

// traceBoundary percorre o contorno externo a partir do pixel inicial da região.
// Para quando volta ao início e o próximo passo repetiria o segundo ponto.
func traceBoundary(inside func(image.Point) bool, start image.Point, limit int) []image.Point {
	next := func(p image.Point, back int) (image.Point, int, bool) {
		for k := 1; k <= 8; k++ {
			d := (back + k) % 8
			q := p.Add(moore[d])
			if inside(q) {
				prev := p.Add(moore[(d+7)%8])
				return q, mooreIndex(prev.Sub(q)), true
			}
		}
		return p, back, false
	}

	contour := []image.Point{start}
	p, back := start, 0
	for len(contour) < limit {
		q, nb, ok := next(p, back)
		if !ok {
			break
		}
		if q == start {
			r, _, _ := next(q, nb)
			if r == contour[1] {
				break
			}
		}
		contour = append(contour, q)
		p, back = q, nb
	}
	return contour
}

func perimeter(pts []image.Point) float64 {
	var total float64
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		total += math.Hypot(float64(b.X-a.X), float64(b.Y-a.Y))
	}
	return total
}

// polygonArea usa a fórmula do laço (shoelace).
func polygonArea(pts []image.Point) float64 {
	var s float64
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		s += float64(a.X*b.Y - b.X*a.Y)
	}
	return math.Abs(s) / 2
}

// simplifyClosed aproxima um contorno fechado por Douglas-Peucker, ancorado no
// primeiro ponto e no ponto mais distante dele.
func simplifyClosed(pts []image.Point, eps float64) []image.Point {
	if len(pts) < 3 {
		return append([]image.Point(nil), pts...)
	}
	far, best := 0, -1
	for i, p := range pts {
		d := p.Sub(pts[0])
		if sq := d.X*d.X + d.Y*d.Y; sq > best {
			far, best = i, sq
		}
	}
	tail := make([]image.Point, 0, len(pts)-far+1)
	tail = append(tail, pts[far:]...)
	tail = append(tail, pts[0])

	a := douglasPeucker(pts[:far+1], eps)
	b := douglasPeucker(tail, eps)
	return pruneCollinear(append(a[:len(a)-1], b[:len(b)-1]...), eps)
}

// pruneCollinear remove, em volta do polígono fechado, cada vértice a menos de
// eps do segmento entre seus vizinhos. As duas âncoras do Douglas-Peucker
// sobrevivem mesmo no meio de uma aresta; esta passada as elimina.
func pruneCollinear(poly []image.Point, eps float64) []image.Point {
	for len(poly) > 3 {
		removed := false
		for i := 0; i < len(poly) && len(poly) > 3; i++ {
			prev := poly[(i+len(poly)-1)%len(poly)]
			next := poly[(i+1)%len(poly)]
			if segmentDistance(poly[i], prev, next) <= eps {
				poly = append(poly[:i], poly[i+1:]...)
				removed = true
				i--
			}
		}
		if !removed {
			break
		}
	}
	return poly
}

func douglasPeucker(pts []image.Point, eps float64) []image.Point {
	if len(pts) < 3 {
		return append([]image.Point(nil), pts...)
	}
	first, last := pts[0], pts[len(pts)-1]
	idx, dmax := 0, 0.0
	for i := 1; i < len(pts)-1; i++ {
		if d := segmentDistance(pts[i], first, last); d > dmax {
			idx, dmax = i, d
		}
	}
	if dmax <= eps {
		return []image.Point{first, last}
	}
	left := douglasPeucker(pts[:idx+1], eps)
	right := douglasPeucker(pts[idx:], eps)
	return append(left[:len(left)-1], right...)
}

func segmentDistance(p, a, b image.Point) float64 {
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	px, py := float64(p.X-a.X), float64(p.Y-a.Y)
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(px, py)
	}
	t := math.Max(0, math.Min(1, (px*dx+py*dy)/l2))
	return math.Hypot(px-t*dx, py-t*dy)
}

// convexHull usa a cadeia monótona de Andrew.
func convexHull(pts []image.Point) []image.Point {
	ps := append([]image.Point(nil), pts...)
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].X != ps[j].X {
			return ps[i].X < ps[j].X
		}
		return ps[i].Y < ps[j].Y
	})
	if len(ps) < 3 {
		return ps
	}
	cross := func(o, a, b image.Point) int {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}
	hull := make([]image.Point, 0, 2*len(ps))
	for _, p := range ps {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(ps) - 2; i >= 0; i-- {
		p := ps[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}
