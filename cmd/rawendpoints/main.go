// Command rawendpoints generates Map<Verb> helpers and the MapRawEndpoints
// aggregate for endpoint types.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/broady/rawendpoints/cmd/rawendpoints/internal/check"
	"github.com/broady/rawendpoints/cmd/rawendpoints/internal/gen"
)

type CLI struct {
	LogLevel string `help:"Log level." enum:"debug,info,warn,error" default:"info" name:"log-level" env:"RAWENDPOINTS_LOG_LEVEL"`

	Version VersionCmd `cmd:"" help:"Print version information."`
	Gen     gen.Cmd    `cmd:"" help:"Generate endpoint helpers and the aggregate."`
	Check   check.Cmd  `cmd:"" help:"Report diagnostics and stale generated files without writing."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("rawendpoints"),
		kong.Description("Code generator for rawendpoints endpoint types."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	logger := newLogger(cli.LogLevel)
	slog.SetDefault(logger)

	err := kctx.Run(logger)
	if errors.Is(err, context.Canceled) {
		return
	}
	kctx.FatalIfErrorf(err)
}
