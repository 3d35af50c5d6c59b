package cache

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/httpclient"
)

var errDecode = errors.New("decode image")

// Fetcher retrieves upstream resources. *httpclient.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string) (*httpclient.Response, error)
}
