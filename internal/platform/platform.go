// Package platform provides an adapter interface for prediction market platforms.
package platform

import (
	"context"
)

// Platform is a market data source that feeds the tracker until stopped.
type Platform interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
