package cmd

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saber1015/douban/internal/browser"
	"github.com/saber1015/douban/internal/crawler"
	"github.com/saber1015/douban/pkg/config"
)

func newCrawlCmd() *cobra.Command {
	var (
		pages int
		start int
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Starts the movie crawl",
		Long: `Crawls listing pages sequentially starting at --start, processing every
movie item until --pages pages have been fetched or a listing page yields
no more items.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, pages, start)
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 0, "number of listing pages to crawl (0 = until exhausted)")
	cmd.Flags().IntVar(&start, "start", 0, "zero-based page offset to start from")
	return cmd
}

func runCrawl(cmd *cobra.Command, pages, start int) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	session, err := bootstrapBrowser(cfg.Driver, logger)
	if err != nil {
		return fmt.Errorf("start browser session: %w", err)
	}
	defer session.Close()

	engine := crawler.New(
		crawler.Config{
			BaseURL:  cfg.Crawl.BaseURL,
			Mode:     cfg.Crawl.Mode,
			SleepMin: cfg.Crawl.SleepMin,
			SleepMax: cfg.Crawl.SleepMax,
			Pages:    pages,
			Start:    start,
		},
		session,
		appInstance.Store(),
		logger,
	)

	if _, err := engine.Run(cmd.Context()); err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}
	return nil
}

// bootstrapBrowser starts the headless session, retrying the fixed number
// of times configured for driver bootstrap. This is the only retried
// operation in the system.
func bootstrapBrowser(cfg config.DriverConfig, logger *zap.Logger) (*browser.Session, error) {
	var session *browser.Session
	boot := crawler.Backoff{
		Attempts: cfg.RetryTimes,
		Delay:    cfg.RetryDelay(),
	}
	err := boot.Do(func() error {
		s, err := browser.New(browser.Config{
			ExecPath:  cfg.ExecutablePath,
			Headless:  cfg.Headless,
			UserAgent: config.UserAgentPool[rand.Intn(len(config.UserAgentPool))],
		}, logger)
		if err != nil {
			logger.Warn("browser bootstrap attempt failed", zap.Error(err))
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}
