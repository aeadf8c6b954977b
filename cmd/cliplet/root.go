package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sakif/cliplet/internal/client"
)

type app struct {
	v      *viper.Viper
	stdin  io.Reader
	stdout io.Writer
}

func (a *app) client() (*client.Client, error) {
	token := a.v.GetString("token")
	if token == "" {
		return nil, fmt.Errorf("no session token: pass --token or set CLIPLET_TOKEN")
	}
	return client.New(a.v.GetString("server"), token, client.WithTimeout(a.v.GetDuration("timeout"))), nil
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdin: stdin, stdout: stdout}

	root := &cobra.Command{
		Use:          "cliplet",
		Short:        "Clipboard sync from the command line",
		SilenceUsage: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)

	flags := root.PersistentFlags()
	flags.String("server", "http://localhost:8080", "Cliplet server URL (env CLIPLET_SERVER)")
	flags.String("token", "", "session token, the auth_token cookie value (env CLIPLET_TOKEN)")
	flags.Duration("timeout", 2*time.Minute, "per-request timeout")

	a.v.SetEnvPrefix("CLIPLET")
	a.v.AutomaticEnv()
	for _, name := range []string{"server", "token", "timeout"} {
		// Lookup never returns nil for a flag defined above.
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		newWhoamiCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newPasteCmd(a),
		newUploadCmd(a),
		newRmCmd(a),
		newDownloadCmd(a),
	)
	return root
}
