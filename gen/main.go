package main

import (
	"fmt"
	"os"

	gen "github.com/whyrusleeping/cbor-gen"

	"wallet-custody/internal/chain/types"
)

// Regenerates internal/chain/types/cbor_gen.go. Run from the repository root.
func main() {
	err := gen.WriteTupleEncodersToFile("./internal/chain/types/cbor_gen.go", "types",
		types.Message{},
		types.SignedMessage{},
	)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
