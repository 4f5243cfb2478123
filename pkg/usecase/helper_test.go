package usecase_test

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/secmon-lab/kokoro/pkg/domain/model"
	"github.com/secmon-lab/kokoro/pkg/repository/memory"
	"github.com/secmon-lab/kokoro/pkg/usecase"
)

type mockLLM struct {
	embedFn    func(ctx context.Context, text string) ([]float32, error)
	scoreFn    func(ctx context.Context, text string) (model.EmotionDelta, error)
	generateFn func(ctx context.Context, entries []model.ContextEntry) (string, error)

	mu        sync.Mutex
	generated [][]model.ContextEntry
}

func (m *mockLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return textVector(text), nil
}

func (m *mockLLM) ScoreAffect(ctx context.Context, text string) (model.EmotionDelta, error) {
	if m.scoreFn != nil {
		return m.scoreFn(ctx, text)
	}
	return model.EmotionDelta{}, nil
}

func (m *mockLLM) Generate(ctx context.Context, entries []model.ContextEntry) (string, error) {
	m.mu.Lock()
	m.generated = append(m.generated, append([]model.ContextEntry(nil), entries...))
	m.mu.Unlock()

	if m.generateFn != nil {
		return m.generateFn(ctx, entries)
	}
	return "reply nya", nil
}

func (m *mockLLM) calls() [][]model.ContextEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]model.ContextEntry(nil), m.generated...)
}

func (m *mockLLM) last() []model.ContextEntry {
	calls := m.calls()
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}

// textVector derives a small non-zero vector from text
func textVector(text string) []float32 {
	v := make([]float32, 8)
	for i, c := range []byte(text) {
		v[i%len(v)] += float32(c)
	}
	v[0]++
	return v
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var testPersona = &model.Persona{
	Name:        "Tester",
	Description: "test persona",
	Directives:  []string{"You are a test persona.", "Answer briefly."},
}

type testEnv struct {
	repo  *memory.Memory
	llm   *mockLLM
	clock *fixedClock
	uc    *usecase.UseCases
}

func newTestEnv(opts ...usecase.Option) *testEnv {
	env := &testEnv{
		repo:  memory.New(),
		llm:   &mockLLM{},
		clock: newFixedClock(),
	}
	env.uc = env.build(opts...)
	return env
}

// build creates use cases sharing the environment's store, as a restarted
// process would
func (env *testEnv) build(opts ...usecase.Option) *usecase.UseCases {
	base := []usecase.Option{
		usecase.WithPersona(testPersona),
		usecase.WithClock(env.clock.Now),
		usecase.WithRandom(rand.New(rand.NewPCG(1, 2))),
	}
	return usecase.New(env.repo, env.llm, append(base, opts...)...)
}
