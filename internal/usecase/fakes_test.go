package usecase

import (
	"context"
	"math"
	"sync"
	"time"

	"NiftyEdge/internal/domain/models"
	drepo "NiftyEdge/internal/domain/repository"
)

type nopMetrics struct{}

func (nopMetrics) RecordRun(string) {}
func (nopMetrics) RecordRows(string, int) {}
func (nopMetrics) RecordLabel(string, string, int) {}
func (nopMetrics) RecordLiveClassification(string) {}
func (nopMetrics) RecordError(string) {}
func (nopMetrics) RecordLatency(string, float64) {}

type memStore struct {
	mu    sync.Mutex
	art   *models.Artifacts
	saves int
}

func (m *memStore) Save(_ context.Context, a *models.Artifacts) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.art = a
	m.saves++
	return nil
}

func (m *memStore) Load(context.Context) (*models.Artifacts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.art == nil {
		return nil, drepo.ErrNoArtifacts
	}
	return m.art, nil
}

type sliceSource struct {
	bars []models.Bar
	err  error
}

func (s sliceSource) Load(context.Context) ([]models.Bar, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Bar, len(s.bars))
	copy(out, s.bars)
	return out, nil
}

func (s sliceSource) Describe() string { return "memory" }

type recordingPublisher struct {
	events []models.ArtifactsPublished
}

func (p *recordingPublisher) PublishArtifacts(_ context.Context, ev models.ArtifactsPublished) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fakeLocker struct {
	held     bool
	unlocked int
}

func (l *fakeLocker) TryLock(context.Context, string, time.Duration) (bool, error) {
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLocker) Unlock(context.Context, string) error {
	l.held = false
	l.unlocked++
	return nil
}

type fakeQueue struct {
	types    []string
	payloads []interface{}
}

func (q *fakeQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	q.types = append(q.types, msgType)
	q.payloads = append(q.payloads, payload)
	return nil
}

// synthBars builds a deterministic daily series with varied candle shapes.
func synthBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	price := 100.0
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		x := float64(i)
		open := price + 0.8*math.Sin(x*1.7)
		cl := open + 1.5*math.Cos(x*0.9)
		high := math.Max(open, cl) + 0.3 + 0.5*math.Abs(math.Sin(x*2.3))
		low := math.Min(open, cl) - 0.3 - 0.5*math.Abs(math.Cos(x*1.3))
		bars[i] = models.Bar{Seq: i, Date: day.AddDate(0, 0, i), Open: open, High: high, Low: low, Close: cl}
		price = cl
	}
	return bars
}
