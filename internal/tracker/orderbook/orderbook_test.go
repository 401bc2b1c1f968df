package orderbook

import (
	"testing"
	"time"

	"github.com/daszybak/market_signals/internal/price"
)

func lvl(p price.Price, s price.Size) Level {
	return Level{Price: p, Size: s, UpdatedAt: time.Unix(0, 0)}
}

func TestSetAndTopN(t *testing.T) {
	b := New()

	b.Set(Bid, 400_000, 1_000_000_000, time.Unix(0, 0))
	b.Set(Bid, 380_000, 2_000_000_000, time.Unix(0, 0))
	b.Set(Bid, 390_000, 500_000_000, time.Unix(0, 0))
	b.Set(Ask, 420_000, 3_000_000_000, time.Unix(0, 0))
	b.Set(Ask, 450_000, 1_000_000_000, time.Unix(0, 0))

	bids := b.TopN(Bid, 2)
	if len(bids) != 2 {
		t.Fatalf("got %d bid levels, want 2", len(bids))
	}
	if bids[0].Price != 400_000 || bids[1].Price != 390_000 {
		t.Errorf("bids not highest-first: %v", bids)
	}

	asks := b.TopN(Ask, 3)
	if len(asks) != 2 {
		t.Fatalf("got %d ask levels, want 2", len(asks))
	}
	if asks[0].Price != 420_000 {
		t.Errorf("asks not lowest-first: %v", asks)
	}
}

func TestSetZeroRemovesLevel(t *testing.T) {
	b := New()

	b.Set(Bid, 400_000, 1_000_000_000, time.Unix(0, 0))
	b.Set(Bid, 400_000, 0, time.Unix(0, 0))

	if got := b.Len(Bid); got != 0 {
		t.Errorf("got %d levels, want 0", got)
	}
}

func TestReplace(t *testing.T) {
	b := New()
	b.Set(Ask, 420_000, 1_000_000_000, time.Unix(0, 0))

	b.Replace(Ask, []Level{
		lvl(430_000, 500_000_000),
		lvl(440_000, 0), // dropped
		lvl(425_000, 700_000_000),
	})

	if got := b.Len(Ask); got != 2 {
		t.Fatalf("got %d levels, want 2", got)
	}
	best, ok := b.Best(Ask)
	if !ok || best.Price != 425_000 {
		t.Errorf("best ask = %v (ok=%v), want 425000", best.Price, ok)
	}
}

func TestBestEmpty(t *testing.T) {
	b := New()
	if _, ok := b.Best(Bid); ok {
		t.Error("Best on empty book reported ok")
	}
}
