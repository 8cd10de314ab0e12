// Command keytool manages CareConnect master keys: it generates new keys,
// derives development keys from a passphrase and prints the fingerprints
// the server logs at startup.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
