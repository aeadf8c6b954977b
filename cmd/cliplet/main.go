// Command cliplet is the command-line client for a Cliplet server.
//
//	cliplet whoami
//	cliplet list --filter image --sort name
//	echo hello | cliplet paste
//	cliplet upload shot.png report.pdf
//	cliplet download <id> -o ~/Downloads
//
// The server address and session token come from --server/--token or the
// CLIPLET_SERVER and CLIPLET_TOKEN environment variables. The token is the
// value of the auth_token cookie set when signing in on the web page.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/sakif/cliplet/internal/client"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			fmt.Fprintln(os.Stderr, "hint: sign in on the web page and set CLIPLET_TOKEN to the auth_token cookie")
		}
		os.Exit(1)
	}
}
