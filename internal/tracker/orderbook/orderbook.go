// Package orderbook tracks the sorted bid and ask levels for one token.
package orderbook

import (
	"time"

	"github.com/google/btree"

	"github.com/daszybak/market_signals/internal/price"
)

// Side selects the bid or ask tree.
type Side int

const (
	Bid Side = iota
	Ask
)

// Level is a price level in the book.
type Level struct {
	Price     price.Price
	Size      price.Size
	UpdatedAt time.Time // event time from the source API
}

// lessAsc compares levels by price ascending (asks: lowest first).
func lessAsc(a, b Level) bool {
	return a.Price < b.Price
}

// lessDesc compares levels by price descending (bids: highest first).
func lessDesc(a, b Level) bool {
	return a.Price > b.Price
}

// Book maintains sorted bid and ask levels using btrees.
// Bids are sorted descending, asks ascending, so TopN walks best-first.
type Book struct {
	bids *btree.BTreeG[Level]
	asks *btree.BTreeG[Level]
}

// New creates an empty book.
func New() *Book {
	return &Book{
		bids: btree.NewG(32, lessDesc),
		asks: btree.NewG(32, lessAsc),
	}
}

// Set sets an absolute size at a price level. A size <= 0 removes the level.
func (b *Book) Set(side Side, p price.Price, size price.Size, eventTime time.Time) {
	tree := b.tree(side)
	if size <= 0 {
		tree.Delete(Level{Price: p})
		return
	}
	tree.ReplaceOrInsert(Level{Price: p, Size: size, UpdatedAt: eventTime})
}

// Replace discards one side and installs the given levels. Used when a full
// book event supersedes whatever deltas were applied before it.
func (b *Book) Replace(side Side, levels []Level) {
	tree := b.tree(side)
	tree.Clear(false)
	for _, lvl := range levels {
		if lvl.Size <= 0 {
			continue
		}
		tree.ReplaceOrInsert(lvl)
	}
}

// TopN returns up to n best levels for a side: bids highest-first, asks
// lowest-first.
func (b *Book) TopN(side Side, n int) []Level {
	tree := b.tree(side)
	levels := make([]Level, 0, min(n, tree.Len()))
	tree.Ascend(func(lvl Level) bool {
		levels = append(levels, lvl)
		return len(levels) < n
	})
	return levels
}

// Best returns the best level for a side, if any.
func (b *Book) Best(side Side) (Level, bool) {
	var best Level
	var ok bool
	b.tree(side).Ascend(func(lvl Level) bool {
		best, ok = lvl, true
		return false
	})
	return best, ok
}

// Len returns the number of levels on a side.
func (b *Book) Len(side Side) int {
	return b.tree(side).Len()
}

func (b *Book) tree(side Side) *btree.BTreeG[Level] {
	if side == Bid {
		return b.bids
	}
	return b.asks
}
