package worker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hihihi151/aujc/internal/audit"
	"github.com/hihihi151/aujc/pkg/cache"
	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/hihihi151/aujc/pkg/challenge"
	"github.com/hihihi151/aujc/pkg/metrics"
	"github.com/hihihi151/aujc/pkg/shape"
	"github.com/hihihi151/aujc/pkg/trajectory"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	sliderCalls int
	clickCalls  int
	planCalls   int
	clickErr    error
}

func (b *stubBackend) SolveSlider(context.Context, challenge.SliderRequest) (challenge.SliderSolution, error) {
	b.sliderCalls++
	return challenge.SliderSolution{Offset: 140, Target: 143, Score: 0.9, Plan: trajectory.Plan{{DX: 143, DT: time.Millisecond}}}, nil
}

func (b *stubBackend) SolveClick(_ context.Context, req challenge.ClickRequest) (challenge.ClickSolution, error) {
	b.clickCalls++
	if b.clickErr != nil {
		return challenge.ClickSolution{}, b.clickErr
	}
	return challenge.ClickSolution{Kind: captcha.KindColor, Target: "red", Points: []captcha.Point{{X: 10, Y: 20}}, Confidence: 0.8}, nil
}

func (b *stubBackend) Classify(question string) (challenge.Challenge, error) {
	return challenge.Classifier{Vocabulary: shape.DefaultVocabulary(), SequenceLength: 4}.Classify(question)
}

func (b *stubBackend) Plan(offset int, _ string, _ uint64) (trajectory.Plan, error) {
	b.planCalls++
	return trajectory.Plan{{DX: offset, DT: time.Millisecond}}, nil
}

type memoryAudit struct{ attempts []audit.Attempt }

func (m *memoryAudit) Record(_ context.Context, a audit.Attempt) (string, error) {
	m.attempts = append(m.attempts, a)
	return "id", nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func pngSource() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)
}

func newTestServer(t *testing.T, b Backend, opts ...ServerOption) (*Server, *miniredis.Miniredis) {
	t.Helper()
	// MiniRedis pra rodar os testes sem precisar do Redis real subindo
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	base := []ServerOption{
		WithCache(cache.NewSolutionCache(rdb, time.Minute)),
		WithMetrics(metrics.NewRecorder(rdb)),
	}
	return NewServer(b, nil, append(base, opts...)...), mr
}

func send(t *testing.T, s *Server, job Job) Reply {
	t.Helper()
	data, err := json.Marshal(job)
	require.NoError(t, err)
	var reply Reply
	require.NoError(t, json.Unmarshal(s.Handle(context.Background(), data), &reply))
	return reply
}

func sliderJob(fresh bool) Job {
	return Job{ID: "s1", Mode: ModeSlider, Fresh: fresh, Slider: &challenge.SliderRequest{
		Piece:      challenge.Image{Source: pngSource()},
		Background: challenge.Image{Source: pngSource(), Width: 340, Height: 212},
	}}
}

func TestServerSliderCachesOffsetAndReplans(t *testing.T) {
	b := &stubBackend{}
	rec := &memoryAudit{}
	s, mr := newTestServer(t, b, WithAudit(rec))

	first := send(t, s, sliderJob(false))
	require.Empty(t, first.ErrorKind)
	assert.False(t, first.Cached)
	assert.Equal(t, 143, first.Slider.Target)

	second := send(t, s, sliderJob(false))
	require.Empty(t, second.ErrorKind)
	assert.True(t, second.Cached)
	assert.Equal(t, 140, second.Slider.Offset)
	assert.Equal(t, 143, second.Slider.Plan.TotalDX())

	assert.Equal(t, 1, b.sliderCalls)
	assert.Equal(t, 1, b.planCalls, "acerto de cache deve gerar um plano novo")

	solved, _ := mr.Get("aujc:metrics:slider:solved")
	cached, _ := mr.Get("aujc:metrics:slider:cached")
	assert.Equal(t, "1", solved)
	assert.Equal(t, "1", cached)

	require.Len(t, rec.attempts, 2)
	assert.Equal(t, "solved", rec.attempts[0].Outcome)
	assert.True(t, rec.attempts[1].Cached)
	assert.InDelta(t, 0.9, rec.attempts[1].Score, 1e-9)
}

func TestServerFreshBypassesCache(t *testing.T) {
	b := &stubBackend{}
	s, _ := newTestServer(t, b)

	send(t, s, sliderJob(false))
	reply := send(t, s, sliderJob(true))
	assert.False(t, reply.Cached)
	assert.Equal(t, 2, b.sliderCalls)
}

func TestServerClickNoMatchIsRefresh(t *testing.T) {
	b := &stubBackend{clickErr: fmt.Errorf("color \"red\": %w", captcha.ErrNoMatch)}
	dir := t.TempDir()
	s, mr := newTestServer(t, b, WithShadow(captcha.NewShadowCollector(dir, nil)))

	job := Job{ID: "c1", Mode: ModeClick, Click: &challenge.ClickRequest{
		Canvas:   challenge.Image{Source: pngSource(), Width: 340, Height: 212},
		Question: "请选出图中红色的图形",
	}}
	reply := send(t, s, job)
	assert.Equal(t, KindNoMatch, reply.ErrorKind)
	assert.Nil(t, reply.Click)

	refresh, _ := mr.Get("aujc:metrics:color:refresh")
	assert.Equal(t, "1", refresh)

	// a amostra do desafio não resolvido fica no dataset
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	labels, _ := filepath.Glob(filepath.Join(dir, "*_label.json"))
	assert.Len(t, labels, 1)

	data, _ := json.Marshal(reply)
	_, err = parseReply(data)
	assert.ErrorIs(t, err, captcha.ErrNoMatch)
	assert.True(t, captcha.IsRefreshSignal(err))
}

func TestServerClickSolvedIsCached(t *testing.T) {
	b := &stubBackend{}
	s, _ := newTestServer(t, b)
	job := Job{ID: "c2", Mode: ModeClick, Click: &challenge.ClickRequest{Canvas: challenge.Image{Source: pngSource()}, Question: "red"}}

	first := send(t, s, job)
	second := send(t, s, job)
	require.NotNil(t, second.Click)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Click.Points, second.Click.Points)
	assert.Equal(t, 1, b.clickCalls)
}

func TestServerRejectsMalformedJob(t *testing.T) {
	s, _ := newTestServer(t, &stubBackend{})

	var reply Reply
	require.NoError(t, json.Unmarshal(s.Handle(context.Background(), []byte("{quebrado")), &reply))
	assert.Equal(t, KindInternal, reply.ErrorKind)

	reply = send(t, s, Job{ID: "x", Mode: ModeSlider})
	assert.Equal(t, KindInternal, reply.ErrorKind)
}

func TestErrorKindsSurviveTheWire(t *testing.T) {
	cases := []struct {
		err   error
		kind  string
		check func(t *testing.T, got error)
	}{
		{
			err:  &captcha.UnsupportedTargetError{Kind: captcha.KindShape, Value: "心形", Reason: "fora do vocabulário"},
			kind: KindUnsupported,
			check: func(t *testing.T, got error) {
				var u *captcha.UnsupportedTargetError
				require.ErrorAs(t, got, &u)
				assert.Equal(t, "心形", u.Value)
				assert.Equal(t, "fora do vocabulário", u.Reason)
			},
		},
		{
			err:  &captcha.CountMismatchError{Want: 4, Got: 3},
			kind: KindCountMismatch,
			check: func(t *testing.T, got error) {
				var m *captcha.CountMismatchError
				require.ErrorAs(t, got, &m)
				assert.Equal(t, 3, m.Got)
			},
		},
		{
			err:  &captcha.DecodeError{Err: captcha.ErrEmptyImage},
			kind: KindDecode,
			check: func(t *testing.T, got error) {
				var d *captcha.DecodeError
				assert.ErrorAs(t, got, &d)
			},
		},
		{
			err:  captcha.ErrModelUnavailable,
			kind: KindModelUnavailable,
			check: func(t *testing.T, got error) {
				assert.ErrorIs(t, got, captcha.ErrModelUnavailable)
			},
		},
		{
			err:  errors.New("boom"),
			kind: KindInternal,
			check: func(t *testing.T, got error) {
				assert.False(t, captcha.IsRefreshSignal(got))
			},
		},
	}
	for _, tc := range cases {
		kind, detail := encodeError(tc.err)
		require.Equal(t, tc.kind, kind)
		got := decodeError(&Reply{ErrorKind: kind, Error: tc.err.Error(), Detail: detail})
		require.Error(t, got)
		tc.check(t, got)
	}
}
