package mocks

import (
	anthropic "github.com/harborview-health/intake-cli/pkg/anthropic"
)

// StaticBatchResultIterator is a canned BatchResultIterator that yields a
// fixed slice of items, then optionally fails with an error.
type StaticBatchResultIterator struct {
	items []anthropic.BatchResultItem
	idx   int
	err   error
}

// NewStaticBatchResultIterator creates an iterator over the given items.
func NewStaticBatchResultIterator(items []anthropic.BatchResultItem) *StaticBatchResultIterator {
	return &StaticBatchResultIterator{items: items, idx: -1}
}

// NewStaticBatchResultIteratorWithError creates an iterator that yields
// the given items and then reports err.
func NewStaticBatchResultIteratorWithError(items []anthropic.BatchResultItem, err error) *StaticBatchResultIterator {
	return &StaticBatchResultIterator{items: items, idx: -1, err: err}
}

func (it *StaticBatchResultIterator) Next() bool {
	if it.idx+1 < len(it.items) {
		it.idx++
		return true
	}
	return false
}

func (it *StaticBatchResultIterator) Item() anthropic.BatchResultItem {
	return it.items[it.idx]
}

func (it *StaticBatchResultIterator) Err() error {
	if it.idx+1 >= len(it.items) {
		return it.err
	}
	return nil
}

func (it *StaticBatchResultIterator) Close() error {
	return nil
}
