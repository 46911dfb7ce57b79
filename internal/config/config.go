package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/chat-relay/backend/internal/browser"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Browser BrowserConfig
	Chat    ChatConfig
	Export  ExportConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	b, err := loadBrowserConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	log, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	export := ExportConfig{Dir: getEnvOrDefault("EXPORT_DIR", "exports")}

	return &Config{Server: server, Browser: b, Chat: chat, Export: export, Log: log}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":3000" 或 "127.0.0.1:3000"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// Driver 选择浏览器驱动实现。
type Driver string

const (
	DriverChromedp Driver = "chromedp"
	DriverRod      Driver = "rod"
)

// BrowserConfig 描述浏览器进程与指纹配置。
type BrowserConfig struct {
	Driver         Driver
	Headless       bool
	ExecPath       string
	Flags          []string
	RemoteURL      string
	ViewportWidth  int
	ViewportHeight int
	Latitude       float64
	Longitude      float64
	SelectorsFile  string
}

// Profile 转换为浏览器启动参数。未设置的项沿用默认指纹。
func (c BrowserConfig) Profile() browser.Profile {
	p := browser.DefaultProfile()
	p.Headless = c.Headless
	p.ExecPath = c.ExecPath
	p.RemoteURL = c.RemoteURL
	if len(c.Flags) > 0 {
		p.Flags = c.Flags
	}
	if c.ViewportWidth > 0 {
		p.ViewportWidth = c.ViewportWidth
	}
	if c.ViewportHeight > 0 {
		p.ViewportHeight = c.ViewportHeight
	}
	p.Latitude = c.Latitude
	p.Longitude = c.Longitude
	return p
}

func loadBrowserConfig() (BrowserConfig, error) {
	defaults := browser.DefaultProfile()

	driver := Driver(strings.ToLower(getEnvOrDefault("BROWSER_DRIVER", string(DriverChromedp))))
	if driver != DriverChromedp && driver != DriverRod {
		return BrowserConfig{}, fmt.Errorf("invalid BROWSER_DRIVER value %q: want chromedp or rod", driver)
	}

	headless, err := parseBoolEnv("BROWSER_HEADLESS", false)
	if err != nil {
		return BrowserConfig{}, err
	}

	width, err := parseIntEnvOrDefault("VIEWPORT_WIDTH", defaults.ViewportWidth)
	if err != nil {
		return BrowserConfig{}, err
	}
	height, err := parseIntEnvOrDefault("VIEWPORT_HEIGHT", defaults.ViewportHeight)
	if err != nil {
		return BrowserConfig{}, err
	}

	lat, err := parseOptionalFloatEnv("GEO_LATITUDE")
	if err != nil {
		return BrowserConfig{}, err
	}
	latitude := defaults.Latitude
	if lat != nil {
		latitude = *lat
	}

	lng, err := parseOptionalFloatEnv("GEO_LONGITUDE")
	if err != nil {
		return BrowserConfig{}, err
	}
	longitude := defaults.Longitude
	if lng != nil {
		longitude = *lng
	}

	// 以空白分隔，例如 "--no-sandbox --lang=en-US"
	flags := strings.Fields(os.Getenv("BROWSER_FLAGS"))

	return BrowserConfig{
		Driver:         driver,
		Headless:       headless,
		ExecPath:       strings.TrimSpace(os.Getenv("CHROME_PATH")),
		Flags:          flags,
		RemoteURL:      strings.TrimSpace(os.Getenv("BROWSER_CDP_URL")),
		ViewportWidth:  width,
		ViewportHeight: height,
		Latitude:       latitude,
		Longitude:      longitude,
		SelectorsFile:  strings.TrimSpace(os.Getenv("SELECTORS_FILE")),
	}, nil
}

// ChatConfig 描述目标站点与各步骤的超时。
type ChatConfig struct {
	TargetURL         string
	NavigationTimeout time.Duration
	ResponseTimeout   time.Duration
	LoginSettle       time.Duration
	ReplySettle       time.Duration
	TypingDelay       time.Duration
}

func loadChatConfig() (ChatConfig, error) {
	cfg := ChatConfig{TargetURL: getEnvOrDefault("TARGET_URL", "https://chatgpt.com/")}

	durations := []struct {
		key  string
		dst  *time.Duration
		dflt time.Duration
	}{
		{"NAVIGATION_TIMEOUT", &cfg.NavigationTimeout, 60 * time.Second},
		{"RESPONSE_TIMEOUT", &cfg.ResponseTimeout, 30 * time.Second},
		{"LOGIN_SETTLE", &cfg.LoginSettle, 10 * time.Second},
		{"REPLY_SETTLE", &cfg.ReplySettle, 20 * time.Second},
		{"TYPING_DELAY", &cfg.TypingDelay, 50 * time.Millisecond},
	}
	for _, d := range durations {
		val, err := parseDurationEnv(d.key, d.dflt)
		if err != nil {
			return ChatConfig{}, err
		}
		*d.dst = val
	}
	return cfg, nil
}

// ExportConfig 描述聊天记录导出目录。
type ExportConfig struct {
	Dir string
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() (LogConfig, error) {
	format := strings.ToLower(getEnvOrDefault("LOG_FORMAT", "console"))
	if format != "console" && format != "json" {
		return LogConfig{}, fmt.Errorf("invalid LOG_FORMAT value %q: want console or json", format)
	}
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Format: format,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseIntEnvOrDefault(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	if *val <= 0 {
		return 0, fmt.Errorf("invalid %s value %d: must be positive", key, *val)
	}
	return *val, nil
}

// parseDurationEnv 接受 time.ParseDuration 格式，纯数字按毫秒处理。
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	if ms, err := strconv.Atoi(raw); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
	}
	return val, nil
}
