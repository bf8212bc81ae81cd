// Package main provides the entry point for the ofdb-search CLI.
package main

import (
	"fmt"
	"os"

	"github.com/magdaddy/openfairdb/cmd/ofdb-search/cmd"
	ofdberrors "github.com/magdaddy/openfairdb/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprint(os.Stderr, ofdberrors.FormatForCLI(err))
		os.Exit(1)
	}
}
