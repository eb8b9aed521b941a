// Package cmd defines the CLI commands for the douban crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saber1015/douban/internal/app"
	"github.com/saber1015/douban/internal/store"
	"github.com/saber1015/douban/pkg/config"
)

// appService is the slice of the app container the commands need.
type appService interface {
	Config() config.Config
	Logger() *zap.Logger
	Store() *store.Store
	Close()
}

// appKeyType is the key for storing the app container in the command context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is a variable so tests can inject a fake container.
var newApp = func() (appService, error) { return app.New() }

// newRootCmd builds the command tree and returns it together with a teardown
// func. Cobra skips PostRun hooks when RunE returns an error, so teardown
// must be invoked by the caller after Execute returns, error or not.
func newRootCmd() (*cobra.Command, func()) {
	var appInstance appService

	cmd := &cobra.Command{
		Use:   "douban",
		Short: "Crawls the Douban Top250 movie listing into a relational schema",
		Long: `douban fetches the Top250 movie listing through a headless browser,
extracts structured metadata per title (info fields, credits, genres, short
reviews) and persists it into MySQL. Incremental mode skips movies already
present in storage; full mode re-crawls everything.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			appInstance = a
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},
	}

	cmd.AddCommand(newCrawlCmd())

	teardown := func() {
		if appInstance != nil {
			appInstance.Close()
		}
	}
	return cmd, teardown
}

func resolveApp(ctx context.Context) (appService, error) {
	appInstance, ok := ctx.Value(appKey).(appService)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	cmd, teardown := newRootCmd()
	err := cmd.Execute()
	teardown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
