// Package grpcconn opens client connections to a node's gRPC endpoint
package grpcconn

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
)

// Sentinel errors for connection failures
var (
	ErrInvalidEndpoint = errors.New("invalid endpoint")
	ErrConnectTimeout  = errors.New("connect timeout")
)

// DefaultConnectTimeout bounds how long Dial waits for the connection to become ready
const DefaultConnectTimeout = 3 * time.Second

// Codec returns the codec for Cosmos SDK messages. The generated types carry
// custom scalar types the default gRPC codec cannot encode.
func Codec() encoding.Codec {
	return codec.NewProtoCodec(codectypes.NewInterfaceRegistry()).GRPCCodec()
}

// Dial connects to endpoint and waits until the connection is ready or timeout elapses.
//
// An http:// endpoint connects in plaintext, an https:// endpoint over TLS.
// Anything else is handed to gRPC as a plaintext target, e.g. "localhost:9090".
func Dial(ctx context.Context, endpoint string, timeout time.Duration, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	target, creds, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec())),
	}, extra...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidEndpoint, endpoint, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn.Connect()
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			return conn, nil
		}
		if !conn.WaitForStateChange(ctx, state) {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: %s not ready after %s (last state %s)", ErrConnectTimeout, endpoint, timeout, state)
		}
	}
}

func parseEndpoint(endpoint string) (string, credentials.TransportCredentials, error) {
	if strings.TrimSpace(endpoint) == "" {
		return "", nil, fmt.Errorf("%w: empty", ErrInvalidEndpoint)
	}
	if !strings.Contains(endpoint, "://") {
		return endpoint, insecure.NewCredentials(), nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}

	switch u.Scheme {
	case "http":
		host, err := hostPort(u, "80")
		if err != nil {
			return "", nil, err
		}
		return host, insecure.NewCredentials(), nil
	case "https":
		host, err := hostPort(u, "443")
		if err != nil {
			return "", nil, err
		}
		return host, credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12}), nil
	default:
		return endpoint, insecure.NewCredentials(), nil
	}
}

func hostPort(u *url.URL, defaultPort string) (string, error) {
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: %s has no host", ErrInvalidEndpoint, u.Redacted())
	}
	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(host, port), nil
}
