// Package cli implements the healthctl command tree over a local health
// store.
package cli

import (
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"example.com/healthprofile/internal/auth"
	"example.com/healthprofile/internal/domain"
	"example.com/healthprofile/internal/gateway"
)

// App holds what every command needs.
type App struct {
	Store  domain.HealthStore
	Owner  domain.Owner
	Locale string
	Auth   auth.Config
	Now    func() time.Time
	// Logger receives gateway and aggregator diagnostics. Nil discards them.
	Logger *log.Logger
}

func (a *App) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *App) logger() *log.Logger {
	if a.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return a.Logger
}

func (a *App) gateway() *gateway.Gateway {
	return gateway.New(a.Store, a.Owner, gateway.WithLogger(a.logger()), gateway.WithClock(a.now))
}

// NewRootCmd creates the top-level "healthctl" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "healthctl",
		Short:         "Inspect and edit a local health profile",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newAuthorizeCmd(app),
		newProfileCmd(app),
		newEnterCmd(app),
		newWorkoutsCmd(app),
		newGrantsCmd(app),
		newTokenCmd(app),
	)

	return root
}
