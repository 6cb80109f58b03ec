package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"wallet-monitor/internal/events"
	"wallet-monitor/internal/indexer"
	"wallet-monitor/internal/models"

	"github.com/rs/zerolog"
)

type fakeSource struct {
	raws []indexer.RawTransfer
	err  error
}

func (f *fakeSource) RecentTransfers(_ context.Context, _ models.Network, _ []string, _ int) ([]indexer.RawTransfer, error) {
	return f.raws, f.err
}

type mockEmitter struct {
	emitted []models.Transfer
	err     error
}

func (m *mockEmitter) EmitTransfer(t models.Transfer) error {
	m.emitted = append(m.emitted, t)
	return m.err
}

func (m *mockEmitter) Close() error { return nil }

func txHash(c string) string {
	return "0x" + strings.Repeat(c, 64)
}

func rawTransfer(hash, amount string) indexer.RawTransfer {
	var raw indexer.RawTransfer
	raw.Block.Time = "2026-01-15T12:00:00Z"
	raw.Block.Number = "19000000"
	raw.Transaction.Hash = hash
	raw.Transfer.Amount = amount
	raw.Transfer.Sender = "0xsender"
	raw.Transfer.Receiver = "0xreceiver"
	raw.Transfer.Currency.Symbol = "USDT"
	return raw
}

func newTestPoller(source *fakeSource, emitter *mockEmitter, bus *events.Bus) (*Poller, *[]models.Transfer) {
	lg := zerolog.New(nil)
	var inserted []models.Transfer
	p := &Poller{
		Source:  source,
		Network: models.Ethereum,
		Limit:   100,
		Bus:     bus,
		Emitter: emitter,
		Logger:  &lg,
		InsertTransfer: func(t models.Transfer) (bool, error) {
			inserted = append(inserted, t)
			return true, nil
		},
	}
	return p, &inserted
}

func TestTickWhaleThresholdInclusive(t *testing.T) {
	below, at, above := txHash("1"), txHash("2"), txHash("3")
	source := &fakeSource{raws: []indexer.RawTransfer{
		rawTransfer(below, "99999.99"),
		rawTransfer(at, "100000.00"),
		rawTransfer(above, "250000"),
	}}
	emitter := &mockEmitter{}
	p, inserted := newTestPoller(source, emitter, nil)

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*inserted) != 3 {
		t.Fatalf("expected 3 inserts, got %d", len(*inserted))
	}

	byHash := make(map[string]models.Transfer)
	for _, tr := range *inserted {
		byHash[tr.TxHash] = tr
	}
	if byHash[below].IsWhale {
		t.Errorf("99999.99 must not be a whale")
	}
	if !byHash[at].IsWhale {
		t.Errorf("100000.00 must be a whale, threshold is inclusive")
	}
	if !byHash[above].IsWhale {
		t.Errorf("250000 must be a whale")
	}

	if len(emitter.emitted) != 2 {
		t.Errorf("expected 2 whale emissions, got %d", len(emitter.emitted))
	}
}

func TestTickUSDValueTracksAmount(t *testing.T) {
	source := &fakeSource{raws: []indexer.RawTransfer{rawTransfer(txHash("a"), "1234.56")}}
	p, inserted := newTestPoller(source, &mockEmitter{}, nil)

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr := (*inserted)[0]
	if !tr.USDValue.Equal(tr.Amount) {
		t.Errorf("expected USD value %s to equal amount %s", tr.USDValue, tr.Amount)
	}
}

func TestTickDuplicateNotEmitted(t *testing.T) {
	source := &fakeSource{raws: []indexer.RawTransfer{rawTransfer(txHash("d"), "500000")}}
	emitter := &mockEmitter{}
	p, _ := newTestPoller(source, emitter, nil)
	p.InsertTransfer = func(models.Transfer) (bool, error) { return false, nil }

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emitter.emitted) != 0 {
		t.Errorf("duplicate transfer must not be re-emitted")
	}
}

func TestTickMalformedRecordSkipped(t *testing.T) {
	ok := txHash("c")
	bad := rawTransfer("", "100")
	badTime := rawTransfer(txHash("b"), "100")
	badTime.Block.Time = "not-a-time"
	source := &fakeSource{raws: []indexer.RawTransfer{bad, badTime, rawTransfer(ok, "100")}}
	p, inserted := newTestPoller(source, &mockEmitter{}, nil)

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("malformed records must not abort the batch: %v", err)
	}
	if len(*inserted) != 1 || (*inserted)[0].TxHash != ok {
		t.Fatalf("expected only the well-formed transfer, got %+v", *inserted)
	}
}

func TestTickInvalidHashSkipped(t *testing.T) {
	ok := txHash("e")
	source := &fakeSource{raws: []indexer.RawTransfer{
		rawTransfer("0xnot-a-real-hash", "200000"),
		rawTransfer(ok, "100"),
	}}
	p, inserted := newTestPoller(source, &mockEmitter{}, nil)

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("an invalid hash must not abort the batch: %v", err)
	}
	if len(*inserted) != 1 || (*inserted)[0].TxHash != ok {
		t.Fatalf("expected the invalid-hash transfer to be skipped, got %+v", *inserted)
	}
}

func TestTickInsertErrorContinuesBatch(t *testing.T) {
	fail, ok := txHash("8"), txHash("9")
	source := &fakeSource{raws: []indexer.RawTransfer{
		rawTransfer(fail, "100"),
		rawTransfer(ok, "100"),
	}}
	p, _ := newTestPoller(source, &mockEmitter{}, nil)

	var attempts []string
	p.InsertTransfer = func(tr models.Transfer) (bool, error) {
		attempts = append(attempts, tr.TxHash)
		if tr.TxHash == fail {
			return false, errors.New("db down")
		}
		return true, nil
	}

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("one failed insert must not abort the batch: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected both inserts attempted, got %v", attempts)
	}
}

func TestTickSourceErrorPropagates(t *testing.T) {
	source := &fakeSource{err: errors.New("indexer down")}
	p, _ := newTestPoller(source, &mockEmitter{}, nil)

	if err := p.Tick(context.Background()); err == nil {
		t.Fatal("expected error when the source is unavailable")
	}
}

func TestTickWhalePublishedToBus(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch, cancel := bus.Subscribe(4)
	defer cancel()

	whale := txHash("f")
	source := &fakeSource{raws: []indexer.RawTransfer{rawTransfer(whale, "200000")}}
	p, _ := newTestPoller(source, &mockEmitter{}, bus)

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case tr := <-ch:
		if tr.TxHash != whale || !tr.IsWhale {
			t.Errorf("unexpected bus event %+v", tr)
		}
	case <-time.After(time.Second):
		t.Fatal("whale event never reached the bus")
	}
}
