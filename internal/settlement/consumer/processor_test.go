package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/radieske/esports-wager-settlement/internal/settlement/domain"
	"github.com/radieske/esports-wager-settlement/internal/settlement/service"
	"github.com/radieske/esports-wager-settlement/internal/shared/kafka"
	"github.com/radieske/esports-wager-settlement/pkg/contracts/events"
)

type fakeCascader struct {
	errs    []error
	partial int // chamadas iniciais que devolvem um passo de torneio com falha
	calls   int
	last    service.MatchConcludedInput
}

func (f *fakeCascader) MatchConcluded(_ context.Context, in service.MatchConcludedInput) (*service.Summary, error) {
	f.calls++
	f.last = in
	if f.calls <= len(f.errs) && f.errs[f.calls-1] != nil {
		return nil, f.errs[f.calls-1]
	}
	sum := &service.Summary{MatchID: in.MatchID}
	if f.calls <= f.partial {
		sum.Tournament = &service.LevelSummary{
			Event: domain.EventRef{Level: domain.LevelTournament, ID: "t1"},
			Error: "connection reset",
		}
	}
	return sum, nil
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func message(t *testing.T, ev events.MatchConcluded) kafka.Message {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Topic: "match_concluded", Key: []byte(ev.Key()), Value: b}
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func newProcessor(c *fakeCascader, dlq *fakeWriter, errs *[]string) *Processor {
	return &Processor{
		Log:     zap.NewNop(),
		Engine:  c,
		DLQ:     dlq,
		Retries: 2,
		OnError: func(stage string) { *errs = append(*errs, stage) },
	}
}

func TestHandleDecodesAndSettles(t *testing.T) {
	c := &fakeCascader{}
	dlq := &fakeWriter{}
	var errs []string
	settled := 0
	p := newProcessor(c, dlq, &errs)
	p.OnSettled = func() { settled++ }

	p.Handle(context.Background(), message(t, events.MatchConcluded{
		MatchID:    "m1",
		Results:    []events.PlayerResult{{Name: "ace", Stats: map[string]float64{"goals": 2}}},
		FirstBlood: "A",
		EndSeason:  &events.Declaration{WinnerID: "A"},
	}))

	if c.calls != 1 || settled != 1 || len(dlq.msgs) != 0 || len(errs) != 0 {
		t.Fatalf("calls=%d settled=%d dlq=%d errs=%v", c.calls, settled, len(dlq.msgs), errs)
	}
	if c.last.MatchID != "m1" || c.last.Results[0].Stats.Get(domain.AttrGoals) != 2 || c.last.EndSeason.WinnerID != "A" {
		t.Fatalf("input = %+v", c.last)
	}
}

func TestHandleRetriesTransientErrors(t *testing.T) {
	c := &fakeCascader{errs: []error{domain.Conflict(errors.New("deadlock")), errors.New("pg: connection refused")}}
	dlq := &fakeWriter{}
	var errs []string
	newProcessor(c, dlq, &errs).Handle(context.Background(), message(t, events.MatchConcluded{MatchID: "m1"}))

	if c.calls != 3 || len(dlq.msgs) != 0 {
		t.Fatalf("calls=%d dlq=%d", c.calls, len(dlq.msgs))
	}
}

func TestHandleResumesFailedCascadeStep(t *testing.T) {
	c := &fakeCascader{partial: 1}
	dlq := &fakeWriter{}
	var errs []string
	settled := 0
	p := newProcessor(c, dlq, &errs)
	p.OnSettled = func() { settled++ }
	p.Handle(context.Background(), message(t, events.MatchConcluded{MatchID: "m1"}))

	if c.calls != 2 || settled != 1 || len(dlq.msgs) != 0 || len(errs) != 0 {
		t.Fatalf("calls=%d settled=%d dlq=%d errs=%v", c.calls, settled, len(dlq.msgs), errs)
	}
}

func TestHandleCascadeStepStillFailingGoesToDLQ(t *testing.T) {
	c := &fakeCascader{partial: 10}
	dlq := &fakeWriter{}
	var errs []string
	newProcessor(c, dlq, &errs).Handle(context.Background(), message(t, events.MatchConcluded{MatchID: "m1"}))

	if c.calls != 3 || len(dlq.msgs) != 1 {
		t.Fatalf("calls=%d dlq=%d", c.calls, len(dlq.msgs))
	}
	if got := header(dlq.msgs[0], "error"); got == "" {
		t.Fatal("dlq message without error header")
	}
}

func TestHandleSkipsDuplicates(t *testing.T) {
	c := &fakeCascader{errs: []error{domain.InvalidTransitionf("match m1 already concluded")}}
	dlq := &fakeWriter{}
	var errs []string
	newProcessor(c, dlq, &errs).Handle(context.Background(), message(t, events.MatchConcluded{MatchID: "m1"}))

	if c.calls != 1 || len(dlq.msgs) != 0 || len(errs) != 0 {
		t.Fatalf("calls=%d dlq=%d errs=%v", c.calls, len(dlq.msgs), errs)
	}
}

func TestHandleSendsTerminalErrorsToDLQ(t *testing.T) {
	c := &fakeCascader{errs: []error{domain.NotFoundf("match m9")}}
	dlq := &fakeWriter{}
	var errs []string
	newProcessor(c, dlq, &errs).Handle(context.Background(), message(t, events.MatchConcluded{MatchID: "m9"}))

	if c.calls != 1 {
		t.Fatalf("terminal error retried: calls=%d", c.calls)
	}
	if len(dlq.msgs) != 1 || len(errs) != 1 || errs[0] != "settle" {
		t.Fatalf("dlq=%d errs=%v", len(dlq.msgs), errs)
	}
	m := dlq.msgs[0]
	if string(m.Key) != "m9" || header(m, "source_topic") != "match_concluded" || header(m, "error") == "" {
		t.Fatalf("dlq message = %+v", m)
	}
}

func TestHandleExhaustedRetriesGoToDLQ(t *testing.T) {
	boom := errors.New("boom")
	c := &fakeCascader{errs: []error{boom, boom, boom}}
	dlq := &fakeWriter{}
	var errs []string
	newProcessor(c, dlq, &errs).Handle(context.Background(), message(t, events.MatchConcluded{MatchID: "m1"}))

	if c.calls != 3 || len(dlq.msgs) != 1 {
		t.Fatalf("calls=%d dlq=%d", c.calls, len(dlq.msgs))
	}
}

func TestHandleMalformedMessage(t *testing.T) {
	c := &fakeCascader{}
	dlq := &fakeWriter{}
	var errs []string
	newProcessor(c, dlq, &errs).Handle(context.Background(), kafka.Message{Topic: "match_concluded", Value: []byte("{not json")})

	if c.calls != 0 || len(dlq.msgs) != 1 || len(errs) != 1 || errs[0] != "decode" {
		t.Fatalf("calls=%d dlq=%d errs=%v", c.calls, len(dlq.msgs), errs)
	}
}

type fakeReader struct {
	msgs      []kafka.Message
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func TestRunCommitsAfterHandling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &fakeReader{
		msgs: []kafka.Message{
			message(t, events.MatchConcluded{MatchID: "m1"}),
			{Topic: "match_concluded", Value: []byte("garbage")},
		},
		cancel: cancel,
	}
	c := &fakeCascader{}
	dlq := &fakeWriter{}
	consumed := 0
	p := &Processor{Log: zap.NewNop(), Reader: r, Engine: c, DLQ: dlq, OnConsumed: func() { consumed++ }}

	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	if consumed != 2 || len(r.committed) != 2 || c.calls != 1 || len(dlq.msgs) != 1 {
		t.Fatalf("consumed=%d committed=%d calls=%d dlq=%d", consumed, len(r.committed), c.calls, len(dlq.msgs))
	}
}

func TestQueueEnqueue(t *testing.T) {
	w := &fakeWriter{}
	q := NewQueue(w)
	err := q.Enqueue(context.Background(), service.MatchConcludedInput{
		MatchID: "m7",
		Results: []domain.PlayerResult{{Name: "ace", Stats: domain.Stats{domain.AttrGoals: 1}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "m7" {
		t.Fatalf("messages = %+v", w.msgs)
	}
	var ev events.MatchConcluded
	if err := json.Unmarshal(w.msgs[0].Value, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.MatchID != "m7" || ev.RequestedAt.IsZero() || ev.Results[0].Stats["goals"] != 1 {
		t.Fatalf("event = %+v", ev)
	}
}
