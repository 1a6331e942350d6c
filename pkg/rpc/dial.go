package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Dial connects an ethclient to the endpoints in o through a Transport.
// The node's chain id is read once so misconfigured endpoints fail at startup.
func Dial(ctx context.Context, o Opts, timeout time.Duration) (*ethclient.Client, error) {
	tr, err := NewTransport(o)
	if err != nil {
		return nil, err
	}

	rc, err := gethrpc.DialOptions(ctx, tr.Primary(), gethrpc.WithHTTPClient(tr.Client(timeout)))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", tr.Primary(), err)
	}
	client := ethclient.NewClient(rc)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := client.ChainID(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("query chain id: %w", err)
	}
	return client, nil
}
