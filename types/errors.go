package types

import (
	"errors"
	"fmt"
)

// ErrNotYetFetched means no snapshot has been stored since start and
// nothing could be loaded from disk. It signals absence, not a fault.
var ErrNotYetFetched = errors.New("no price data fetched yet")

const NormalizeReasonEmpty = "empty"

// FetchFailure covers network errors, timeouts and non-success answers
// from an upstream source.
type FetchFailure struct {
	Source string
	Err    error
}

func (e *FetchFailure) Error() string {
	return fmt.Sprintf("fetching prices from %s: %v", e.Source, e.Err)
}

func (e *FetchFailure) Unwrap() error {
	return e.Err
}

type NormalizeFailure struct {
	Reason string
}

func (e *NormalizeFailure) Error() string {
	return fmt.Sprintf("normalizing prices: %s", e.Reason)
}

// StoreFailure is a durable read or write error of the snapshot file.
type StoreFailure struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreFailure) Error() string {
	return fmt.Sprintf("snapshot store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreFailure) Unwrap() error {
	return e.Err
}
