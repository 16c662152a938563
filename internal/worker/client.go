package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hihihi151/aujc/pkg/challenge"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Client resolve desafios num worker remoto. Implementa challenge.Solver,
// então o fluxo não sabe se a resolução é local ou via NATS.
type Client struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
	fresh   bool
	log     *zap.Logger
}

func NewClient(nc *nats.Conn, subject string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{nc: nc, subject: subject, timeout: timeout, log: logger.Named("client")}
}

// Fresh devolve uma cópia que pede ao worker para ignorar o cache.
func (c *Client) Fresh() *Client {
	cp := *c
	cp.fresh = true
	return &cp
}

func (c *Client) SolveSlider(ctx context.Context, req challenge.SliderRequest) (challenge.SliderSolution, error) {
	reply, err := c.request(ctx, Job{Mode: ModeSlider, Slider: &req})
	if err != nil {
		return challenge.SliderSolution{}, err
	}
	if reply.Slider == nil {
		return challenge.SliderSolution{}, fmt.Errorf("resposta do worker sem solução de slider")
	}
	return *reply.Slider, nil
}

func (c *Client) SolveClick(ctx context.Context, req challenge.ClickRequest) (challenge.ClickSolution, error) {
	reply, err := c.request(ctx, Job{Mode: ModeClick, Click: &req})
	if err != nil {
		return challenge.ClickSolution{}, err
	}
	if reply.Click == nil {
		return challenge.ClickSolution{}, fmt.Errorf("resposta do worker sem solução de clique")
	}
	return *reply.Click, nil
}

func (c *Client) request(ctx context.Context, job Job) (*Reply, error) {
	job.ID = uuid.NewString()
	job.Fresh = c.fresh
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("erro serializando payload: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.log.Debug("[NATS] requisição enviada", zap.String("job", job.ID), zap.String("subject", c.subject))
	msg, err := c.nc.RequestWithContext(ctx, c.subject, payload)
	if err != nil {
		return nil, fmt.Errorf("timeout aguardando resposta do solver: %w", err)
	}
	return parseReply(msg.Data)
}

func parseReply(data []byte) (*Reply, error) {
	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("erro parseando resposta: %w", err)
	}
	if err := decodeError(&reply); err != nil {
		return nil, err
	}
	return &reply, nil
}
