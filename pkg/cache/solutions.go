package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/redis/go-redis/v9"
)

// SolutionCache guarda soluções já calculadas, endereçadas pelo hash das imagens.
// O mesmo desafio costuma voltar depois de um "atualizar".
type SolutionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSolutionCache cria a instância compartilhada. Se ttl for 0, usa 10 minutos.
func NewSolutionCache(rdb *redis.Client, ttl time.Duration) *SolutionCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SolutionCache{rdb: rdb, ttl: ttl}
}

// Key gera a chave de conteúdo a partir das partes do pedido (sources, pergunta...).
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func redisKey(kind captcha.Kind, key string) string {
	return fmt.Sprintf("aujc:solution:%s:%s", kind, key)
}

// Get preenche dst com a solução guardada. Retorna false quando não existe.
func (c *SolutionCache) Get(ctx context.Context, kind captcha.Kind, key string, dst any) (bool, error) {
	data, err := c.rdb.Get(ctx, redisKey(kind, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("erro decodificando solução em cache: %w", err)
	}
	return true, nil
}

// Set guarda a solução com o TTL configurado.
func (c *SolutionCache) Set(ctx context.Context, kind captcha.Kind, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, redisKey(kind, key), data, c.ttl).Err()
}

// Forget remove uma solução que o site rejeitou.
func (c *SolutionCache) Forget(ctx context.Context, kind captcha.Kind, key string) error {
	return c.rdb.Del(ctx, redisKey(kind, key)).Err()
}

// Close fecha a conexão com o Redis.
func (c *SolutionCache) Close() error {
	return c.rdb.Close()
}
