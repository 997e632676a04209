package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/parkinglens/internal/cache"
	"github.com/sanspareilsmyn/parkinglens/internal/config"
	"github.com/sanspareilsmyn/parkinglens/internal/message"
	"github.com/sanspareilsmyn/parkinglens/internal/store"
)

var taipei = time.FixedZone("CST", 8*3600)

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]store.RawReading
	err     error
	flushed chan int
}

func (f *fakeWriter) InsertReadings(_ context.Context, rows []store.RawReading) (int64, error) {
	f.mu.Lock()
	f.batches = append(f.batches, append([]store.RawReading(nil), rows...))
	f.mu.Unlock()
	if f.flushed != nil {
		f.flushed <- len(rows)
	}
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(rows)), nil
}

func (f *fakeWriter) snapshot() [][]store.RawReading {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]store.RawReading(nil), f.batches...)
}

type fakeLots struct {
	mu    sync.Mutex
	lots  map[string]store.Lot
	calls int
	err   error
}

func (f *fakeLots) GetLot(_ context.Context, id string) (store.Lot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return store.Lot{}, f.err
	}
	l, ok := f.lots[id]
	if !ok {
		return store.Lot{}, store.ErrNotFound
	}
	return l, nil
}

func obsAt(lot string, minute, available int) Observation {
	return Observation{
		LotID:         lot,
		RecordTime:    time.Date(2024, 3, 4, 9, minute, 0, 0, taipei),
		AvailableCars: available,
	}
}

func TestParseObservation(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantReason  string
		wantErr     error
		wantSnippet string
	}{
		{
			name: "valid with offset",
			raw:  `{"parking_lot_id":"TPE0410","record_time":"2024-03-04T01:00:00Z","available_cars":12}`,
		},
		{
			name: "valid local time",
			raw:  `{"parking_lot_id":"TPE0410","record_time":"2024-03-04 09:00:00","available_cars":12}`,
		},
		{
			name:        "broken json",
			raw:         `{"parking_lot_id":`,
			wantReason:  "json",
			wantErr:     message.ErrJSONUnmarshalFailed,
			wantSnippet: `{"parking_lot_id":`,
		},
		{
			name:        "missing available cars",
			raw:         `{"parking_lot_id":"TPE0410","record_time":"2024-03-04 09:00:00"}`,
			wantReason:  "invalid",
			wantErr:     message.ErrInvalidMessage,
			wantSnippet: "lot=TPE0410 time=2024-03-04 09:00:00 cars=<nil>",
		},
		{
			name:        "bad time",
			raw:         `{"parking_lot_id":"TPE0410","record_time":"yesterday","available_cars":1}`,
			wantReason:  "record_time",
			wantErr:     message.ErrInvalidRecordTime,
			wantSnippet: "lot=TPE0410 time=yesterday cars=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, fail := parseObservation([]byte(tt.raw), taipei)
			if tt.wantErr != nil {
				if fail == nil {
					t.Fatalf("expected %v, got none", tt.wantErr)
				}
				if !errors.Is(fail, tt.wantErr) || fail.reason != tt.wantReason {
					t.Fatalf("err=%v reason=%q, want %v %q", fail.err, fail.reason, tt.wantErr, tt.wantReason)
				}
				if fail.snippet != tt.wantSnippet {
					t.Errorf("snippet = %q, want %q", fail.snippet, tt.wantSnippet)
				}
				return
			}
			if fail != nil {
				t.Fatalf("unexpected error: %v", fail)
			}
			want := time.Date(2024, 3, 4, 9, 0, 0, 0, taipei)
			if !obs.RecordTime.Equal(want) || obs.RecordTime.Hour() != 9 {
				t.Errorf("record time = %v, want %v in Taipei", obs.RecordTime, want)
			}
			if obs.LotID != "TPE0410" || obs.AvailableCars != 12 {
				t.Errorf("obs = %+v", obs)
			}
		})
	}
}

func TestRecorderFlushesOnBatchSize(t *testing.T) {
	writer := &fakeWriter{}
	input := make(chan Observation)
	output := make(chan Observation, 10)
	r := NewRecorder(config.IngestConfig{BatchSize: 3, FlushInterval: time.Hour}, input, output, writer, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	for i := 0; i < 7; i++ {
		input <- obsAt("TPE0410", i, 10)
	}
	close(input)
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	batches := writer.snapshot()
	if len(batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(batches))
	}
	for i, want := range []int{3, 3, 1} {
		if len(batches[i]) != want {
			t.Errorf("batch %d size = %d, want %d", i, len(batches[i]), want)
		}
	}
	if len(output) != 7 {
		t.Errorf("forwarded = %d, want 7", len(output))
	}
}

func TestRecorderFlushesOnInterval(t *testing.T) {
	writer := &fakeWriter{flushed: make(chan int, 4)}
	input := make(chan Observation)
	r := NewRecorder(config.IngestConfig{BatchSize: 100, FlushInterval: 50 * time.Millisecond}, input, nil, writer, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	input <- obsAt("TPE0410", 0, 10)
	input <- obsAt("TPE0410", 1, 9)

	select {
	case n := <-writer.flushed:
		if n != 2 {
			t.Errorf("flushed %d rows, want 2", n)
		}
	case <-time.After(time.Second):
		t.Fatal("interval flush did not happen")
	}
}

func TestRecorderFlushesOnCancel(t *testing.T) {
	writer := &fakeWriter{}
	input := make(chan Observation)
	r := NewRecorder(config.IngestConfig{BatchSize: 100, FlushInterval: time.Hour}, input, nil, writer, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	input <- obsAt("TPE0410", 0, 10)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if batches := writer.snapshot(); len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("final batch not written: %v", batches)
	}
}

func TestRecorderCountsWriteFailures(t *testing.T) {
	writer := &fakeWriter{err: errors.New("db down")}
	input := make(chan Observation)
	r := NewRecorder(config.IngestConfig{BatchSize: 2, FlushInterval: time.Hour}, input, nil, writer, zap.NewNop())

	before := testutil.ToFloat64(writeFailures)
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()
	input <- obsAt("TPE0410", 0, 1)
	input <- obsAt("TPE0410", 1, 1)
	close(input)
	<-done

	if got := testutil.ToFloat64(writeFailures) - before; got != 2 {
		t.Errorf("write failures = %v, want 2", got)
	}
}

func TestAlerterUsageAndHighUsage(t *testing.T) {
	lots := &fakeLots{lots: map[string]store.Lot{
		"ALERT01": {ID: "ALERT01", TotalCars: 100},
	}}
	input := make(chan Observation, 4)
	a := NewAlerter(80, input, lots, cache.New[int](time.Minute, nil), zap.NewNop())

	input <- obsAt("ALERT01", 0, 50) // 50%
	input <- obsAt("ALERT01", 1, 15) // 85%
	input <- obsAt("ALERT01", 2, 20) // 80%, not above
	close(input)
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := testutil.ToFloat64(lotHighUsage.WithLabelValues("ALERT01")); got != 1 {
		t.Errorf("high usage count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(lotUsageRate.WithLabelValues("ALERT01")); got != 80 {
		t.Errorf("usage gauge = %v, want 80", got)
	}
	if got := testutil.ToFloat64(lotAvailable.WithLabelValues("ALERT01")); got != 20 {
		t.Errorf("available gauge = %v, want 20", got)
	}
	if lots.calls != 1 {
		t.Errorf("capacity lookups = %d, want 1 (memoized)", lots.calls)
	}
}

func TestAlerterUnknownLot(t *testing.T) {
	lots := &fakeLots{lots: map[string]store.Lot{}}
	input := make(chan Observation, 2)
	a := NewAlerter(80, input, lots, cache.New[int](time.Minute, nil), zap.NewNop())

	input <- obsAt("ALERT02", 0, 0)
	input <- obsAt("ALERT02", 1, 0)
	close(input)
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := testutil.ToFloat64(lotHighUsage.WithLabelValues("ALERT02")); got != 0 {
		t.Errorf("high usage for unknown lot = %v", got)
	}
	if lots.calls != 1 {
		t.Errorf("lookups = %d, want 1 (negative result memoized)", lots.calls)
	}
}

func TestAlerterSkipsSensorFaults(t *testing.T) {
	lots := &fakeLots{lots: map[string]store.Lot{
		"ALERT03": {ID: "ALERT03", TotalCars: 100},
	}}
	input := make(chan Observation, 2)
	a := NewAlerter(80, input, lots, cache.New[int](time.Minute, nil), zap.NewNop())

	input <- obsAt("ALERT03", 0, 40)
	input <- obsAt("ALERT03", 1, -9)
	close(input)
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := testutil.ToFloat64(lotAvailable.WithLabelValues("ALERT03")); got != 40 {
		t.Errorf("available gauge = %v, want 40", got)
	}
	if got := testutil.ToFloat64(lotUsageRate.WithLabelValues("ALERT03")); got != 60 {
		t.Errorf("usage gauge = %v, want 60", got)
	}
	if got := testutil.ToFloat64(lotHighUsage.WithLabelValues("ALERT03")); got != 0 {
		t.Errorf("high usage = %v, want 0", got)
	}
}

type fakeReader struct {
	msgs      []kafka.Message
	fetchErr  error
	committed []int64
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) == 0 {
		if f.fetchErr != nil {
			return kafka.Message{}, f.fetchErr
		}
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func TestConsumerForwardsAndCommits(t *testing.T) {
	reader := &fakeReader{
		msgs:     []kafka.Message{{Offset: 7, Value: []byte("a")}, {Offset: 8, Value: []byte("b")}},
		fetchErr: errors.New("broker gone"),
	}
	out := make(chan []byte, 2)
	c := newConsumer(reader, out, zap.NewNop())

	err := c.Run(context.Background())
	if !errors.Is(err, ErrKafkaFetchFailed) {
		t.Fatalf("err = %v, want ErrKafkaFetchFailed", err)
	}
	if len(out) != 2 || string(<-out) != "a" {
		t.Error("messages not forwarded in order")
	}
	if len(reader.committed) != 2 || reader.committed[1] != 8 {
		t.Errorf("committed = %v", reader.committed)
	}
	if !reader.closed {
		t.Error("reader not closed")
	}
}

func TestConsumerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newConsumer(&fakeReader{}, make(chan []byte), zap.NewNop())
	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestNewConsumerRejectsIncompleteConfig(t *testing.T) {
	_, err := NewConsumer(config.KafkaConfig{Topic: "t"}, make(chan []byte), zap.NewNop())
	if !errors.Is(err, ErrInvalidKafkaConfig) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewPipelineRequiresDependencies(t *testing.T) {
	if _, err := New(&config.Config{}, nil, nil, zap.NewNop()); !errors.Is(err, ErrMissingDependency) {
		t.Fatalf("err = %v, want ErrMissingDependency", err)
	}
}
