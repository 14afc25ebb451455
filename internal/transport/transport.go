// Package transport defines the upload transport consumed by the scheduler
// and the concrete clients the agent can be configured with. Transports
// classify their failures: transient errors leave the file pending for a
// later session, permanent errors are reported but retrying the identical
// request cannot help.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cardsync/internal/common"
)

// Transport sends one local file to the remote share.
//
// Upload returns the number of bytes sent and the wall time the transfer
// took, which the budget tracker uses as a throughput sample. Errors are
// wrapped with common.ErrTransportTransient or common.ErrTransportPermanent.
type Transport interface {
	Name() string
	Upload(ctx context.Context, localPath, remotePath string) (int64, time.Duration, error)
}

// Config selects and parameterizes a transport implementation.
type Config struct {
	Type     string // "webdav" | "s3" | "tokenapi"
	Endpoint string
	User     string
	Password string
	S3Region string
	S3Bucket string
}

// New builds the transport named by cfg.Type.
func New(cfg Config) (Transport, error) {
	switch cfg.Type {
	case "webdav":
		return NewWebDAV(cfg.Endpoint, cfg.User, cfg.Password), nil
	case "s3":
		return NewS3(cfg.Endpoint, cfg.S3Region, cfg.S3Bucket, cfg.User, cfg.Password), nil
	case "tokenapi":
		return NewTokenAPI(cfg.Endpoint, cfg.User, cfg.Password), nil
	default:
		return nil, fmt.Errorf("unknown transport type %q", cfg.Type)
	}
}

// transientf wraps a failure as retry-worthy.
func transientf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, common.ErrTransportTransient)...)
}

// permanentf wraps a failure that a retry cannot fix.
func permanentf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, common.ErrTransportPermanent)...)
}
