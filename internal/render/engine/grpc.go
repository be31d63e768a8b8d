package engine

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/renderguard/renderguard/internal/core/domain"
)

// TypesetInvoker wraps a generated gRPC client call. The adapter stays
// free of generated code; callers inject the call against the shared
// connection.
type TypesetInvoker func(ctx context.Context, conn grpc.ClientConnInterface, region domain.Region) error

// GRPCEngine drives a typesetting service over gRPC.
type GRPCEngine struct {
	endpoint string
	conn     *grpc.ClientConn
	invoke   TypesetInvoker
}

// NewGRPCEngine dials endpoint and returns an adapter. Endpoints with
// an https scheme or a :443 suffix get TLS; everything else dials
// insecure.
func NewGRPCEngine(ctx context.Context, endpoint string, invoke TypesetInvoker) (*GRPCEngine, error) {
	if invoke == nil {
		return nil, fmt.Errorf("grpc engine requires a typeset invoker")
	}

	target := endpoint
	var opts []grpc.DialOption
	if strings.HasPrefix(endpoint, "https://") || strings.HasSuffix(endpoint, ":443") {
		creds := credentials.NewTLS(&tls.Config{})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}
	opts = append(opts, grpc.WithBlock())

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial engine endpoint %s: %w", target, err)
	}

	return &GRPCEngine{
		endpoint: endpoint,
		conn:     conn,
		invoke:   invoke,
	}, nil
}

// Typeset executes the injected call against the shared connection.
func (e *GRPCEngine) Typeset(ctx context.Context, region domain.Region) error {
	return e.invoke(ctx, e.conn, region)
}

// Available reports whether the connection can carry a call.
func (e *GRPCEngine) Available() bool {
	switch e.conn.GetState() {
	case connectivity.Ready, connectivity.Idle:
		return true
	}
	return false
}

// Close cleans up the connection.
func (e *GRPCEngine) Close() error {
	return e.conn.Close()
}
