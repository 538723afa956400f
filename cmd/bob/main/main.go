package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/bobvm/bob/cmd/bob"
	"github.com/bobvm/bob/pkg/shim"
	"github.com/bobvm/bob/pkg/ui/styles"
)

func main() {
	// Running under the editor's name means we are the shim: resolve
	// the active version and re-exec it, nothing else.
	if shim.IsShimInvocation(os.Args[0]) {
		if err := shim.Main(os.Args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := bob.NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		errorStyle := styles.GetStyle("Error")
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("Error: %v", err)))
		os.Exit(1)
	}
}
