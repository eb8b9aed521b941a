// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Mode values accepted for CRAWL_MODE.
const (
	ModeIncremental = "incremental"
	ModeFull        = "full"
)

// Config captures all configuration knobs loaded from the environment.
type Config struct {
	DB      DBConfig
	Crawl   CrawlConfig
	Driver  DriverConfig
	Metrics MetricsConfig
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Charset  string
}

// DSN renders the MySQL data source name for gorm.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Name, c.Charset)
}

// CrawlConfig governs the crawl loop.
type CrawlConfig struct {
	BaseURL  string
	Mode     string
	SleepMin float64
	SleepMax float64
}

// DriverConfig configures the headless browser session.
type DriverConfig struct {
	ExecutablePath    string
	Headless          bool
	RetryTimes        int
	RetryDelaySeconds int
}

// RetryDelay converts the bootstrap retry delay into a duration.
func (c DriverConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Addr string
}

// UserAgentPool is the fixed rotation pool a browser session picks from at
// bootstrap.
var UserAgentPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/116.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36 Edg/115.0.1901.188",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/115.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/111.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/110.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36",
}

// Load builds a Config from the environment. Recognized keys: DB_HOST,
// DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_CHARSET, BASE_URL, CRAWL_MODE,
// SLEEP_MIN, SLEEP_MAX, RETRY_TIMES, RETRY_DELAY_SECONDS,
// DRIVER_EXECUTABLE_PATH, HEADLESS, METRICS_ADDR.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindKeys(v)

	cfg := Config{
		DB: DBConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetInt("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			Name:     v.GetString("db.name"),
			Charset:  v.GetString("db.charset"),
		},
		Crawl: CrawlConfig{
			BaseURL:  v.GetString("crawl.base_url"),
			Mode:     v.GetString("crawl.mode"),
			SleepMin: v.GetFloat64("crawl.sleep_min"),
			SleepMax: v.GetFloat64("crawl.sleep_max"),
		},
		Driver: DriverConfig{
			ExecutablePath:    v.GetString("driver.executable_path"),
			Headless:          v.GetBool("driver.headless"),
			RetryTimes:        v.GetInt("driver.retry_times"),
			RetryDelaySeconds: v.GetInt("driver.retry_delay_seconds"),
		},
		Metrics: MetricsConfig{
			Addr: v.GetString("metrics.addr"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.host", "127.0.0.1")
	v.SetDefault("db.port", 3306)
	v.SetDefault("db.user", "root")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "douban")
	v.SetDefault("db.charset", "utf8mb4")
	v.SetDefault("crawl.base_url", "https://movie.douban.com/top250")
	v.SetDefault("crawl.mode", ModeIncremental)
	v.SetDefault("crawl.sleep_min", 2.0)
	v.SetDefault("crawl.sleep_max", 5.0)
	v.SetDefault("driver.executable_path", "")
	v.SetDefault("driver.headless", true)
	v.SetDefault("driver.retry_times", 3)
	v.SetDefault("driver.retry_delay_seconds", 2)
	v.SetDefault("metrics.addr", "")
}

// bindKeys maps each dotted key to its environment variable. The crawl and
// driver keys keep the flat names the deployment already uses rather than
// prefixed ones.
func bindKeys(v *viper.Viper) {
	bindings := map[string]string{
		"db.host":                    "DB_HOST",
		"db.port":                    "DB_PORT",
		"db.user":                    "DB_USER",
		"db.password":                "DB_PASSWORD",
		"db.name":                    "DB_NAME",
		"db.charset":                 "DB_CHARSET",
		"crawl.base_url":             "BASE_URL",
		"crawl.mode":                 "CRAWL_MODE",
		"crawl.sleep_min":            "SLEEP_MIN",
		"crawl.sleep_max":            "SLEEP_MAX",
		"driver.executable_path":     "DRIVER_EXECUTABLE_PATH",
		"driver.headless":            "HEADLESS",
		"driver.retry_times":         "RETRY_TIMES",
		"driver.retry_delay_seconds": "RETRY_DELAY_SECONDS",
		"metrics.addr":               "METRICS_ADDR",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawl.Mode != ModeIncremental && c.Crawl.Mode != ModeFull {
		return fmt.Errorf("crawl.mode must be %q or %q, got %q", ModeIncremental, ModeFull, c.Crawl.Mode)
	}
	if c.Crawl.BaseURL == "" {
		return fmt.Errorf("crawl.base_url must be set")
	}
	if c.Crawl.SleepMin < 0 || c.Crawl.SleepMax < c.Crawl.SleepMin {
		return fmt.Errorf("crawl sleep window invalid: min=%v max=%v", c.Crawl.SleepMin, c.Crawl.SleepMax)
	}
	if c.Driver.RetryTimes <= 0 {
		return fmt.Errorf("driver.retry_times must be > 0")
	}
	if c.DB.Port <= 0 {
		return fmt.Errorf("db.port must be > 0")
	}
	return nil
}
