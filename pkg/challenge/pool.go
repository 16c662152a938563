package challenge

import (
	"context"
	"runtime"
)

// Pool limita quantas chamadas de CPU rodam ao mesmo tempo, fora da goroutine
// que orquestra o navegador.
type Pool struct {
	sem chan struct{}
}

// NewPool cria um pool com size vagas; size <= 0 usa GOMAXPROCS.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: make(chan struct{}, size)}
}

func (p *Pool) Size() int { return cap(p.sem) }

// Do roda fn em uma vaga do pool e espera o resultado. Se ctx for cancelado o
// resultado é descartado: fn termina sozinha e libera a vaga.
func Do[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() { <-p.sem }()
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
