// cfgblockctl queries a running cfgblockd over gRPC.
package main

import (
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	root := newRootCmd(func(addr string) (*grpc.ClientConn, error) {
		return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	})
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cfgblockctl: %v\n", err)
		os.Exit(1)
	}
}
