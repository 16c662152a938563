// Package shape localiza, dentro do canvas do captcha, a região que corresponde
// a uma forma ou cor pedida.
package shape

import (
	"strings"

	"github.com/hihihi151/aujc/pkg/captcha"
)

// Shape é o nome canônico de uma forma do vocabulário.
type Shape string

const (
	Triangle Shape = "triangle"
	Circle   Shape = "circle"
	Ring     Shape = "ring"
	Square   Shape = "square"
	Pentagon Shape = "pentagon"
	Hexagon  Shape = "hexagon"
	Star     Shape = "star"
)

var shapeAliases = map[string]Shape{
	"三角形": Triangle,
	"圆形":  Circle,
	"圆":   Circle,
	"圆环":  Ring,
	"环形":  Ring,
	"正方形": Square,
	"方形":  Square,
	"五边形": Pentagon,
	"六边形": Hexagon,
	"五角星": Star,
	"星形":  Star,
}

// ColorBand é uma faixa de matiz em graus. Quando From > To a faixa cruza o 0 (vermelho).
type ColorBand struct {
	Name string
	From float64
	To   float64
}

func (b ColorBand) Contains(hue float64) bool {
	if b.From > b.To {
		return hue >= b.From || hue < b.To
	}
	return hue >= b.From && hue < b.To
}

var colorBands = map[string]ColorBand{
	"red":    {Name: "red", From: 345, To: 15},
	"orange": {Name: "orange", From: 15, To: 40},
	"yellow": {Name: "yellow", From: 40, To: 70},
	"green":  {Name: "green", From: 70, To: 160},
	"cyan":   {Name: "cyan", From: 160, To: 195},
	"blue":   {Name: "blue", From: 195, To: 255},
	"purple": {Name: "purple", From: 255, To: 290},
	"pink":   {Name: "pink", From: 290, To: 345},
}

var colorAliases = map[string]string{
	"红色": "red", "红": "red",
	"橙色": "orange", "橘色": "orange",
	"黄色": "yellow",
	"绿色": "green",
	"青色": "cyan",
	"蓝色": "blue",
	"紫色": "purple",
	"粉色": "pink", "粉红色": "pink",
}

// Vocabulary é o subconjunto ativo de formas e cores aceitas nas consultas.
type Vocabulary struct {
	Shapes []string `yaml:"shapes" json:"shapes"`
	Colors []string `yaml:"colors" json:"colors"`
}

// DefaultVocabulary ativa todas as formas e cores conhecidas.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Shapes: []string{"triangle", "circle", "ring", "square", "pentagon", "hexagon", "star"},
		Colors: []string{"red", "orange", "yellow", "green", "cyan", "blue", "purple", "pink"},
	}
}

// Shape resolve um nome (canônico ou chinês) para a forma canônica.
func (v Vocabulary) Shape(value string) (Shape, error) {
	name := normalize(value)
	s, ok := shapeAliases[name]
	if !ok {
		s = Shape(name)
	}
	if !contains(v.Shapes, string(s)) {
		return "", &captcha.UnsupportedTargetError{Kind: captcha.KindShape, Value: value, Reason: "forma fora do vocabulário"}
	}
	return s, nil
}

// Color resolve um nome (canônico ou chinês) para a faixa de matiz.
func (v Vocabulary) Color(value string) (ColorBand, error) {
	name := normalize(value)
	if canonical, ok := colorAliases[name]; ok {
		name = canonical
	}
	band, ok := colorBands[name]
	if !ok || !contains(v.Colors, name) {
		return ColorBand{}, &captcha.UnsupportedTargetError{Kind: captcha.KindColor, Value: value, Reason: "cor fora do vocabulário"}
	}
	return band, nil
}

// Validate confere se todos os nomes do vocabulário existem na tabela embutida.
func (v Vocabulary) Validate() error {
	for _, s := range v.Shapes {
		switch Shape(s) {
		case Triangle, Circle, Ring, Square, Pentagon, Hexagon, Star:
		default:
			return &captcha.UnsupportedTargetError{Kind: captcha.KindShape, Value: s, Reason: "forma desconhecida na configuração"}
		}
	}
	for _, c := range v.Colors {
		if _, ok := colorBands[c]; !ok {
			return &captcha.UnsupportedTargetError{Kind: captcha.KindColor, Value: c, Reason: "cor desconhecida na configuração"}
		}
	}
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
