package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hihihi151/aujc/pkg/challenge"
)

// parseSize lê "WxH"; vazio devolve 0,0 (tamanho nativo).
func parseSize(s string) (int, int, error) {
	if s == "" {
		return 0, 0, nil
	}
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("tamanho inválido %q: use LARGURAxALTURA", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("largura inválida em %q", s)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("altura inválida em %q", s)
	}
	return width, height, nil
}

// readImage aceita um arquivo ou uma data URL já pronta.
func readImage(src, size string) (challenge.Image, error) {
	w, h, err := parseSize(size)
	if err != nil {
		return challenge.Image{}, err
	}
	if strings.HasPrefix(src, "data:image") {
		return challenge.Image{Source: src, Width: w, Height: h}, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return challenge.Image{}, fmt.Errorf("erro lendo imagem: %w", err)
	}
	return challenge.Image{Source: base64.StdEncoding.EncodeToString(data), Width: w, Height: h}, nil
}
