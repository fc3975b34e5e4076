package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via config files or the environment.
type AppConfig struct {
	AppPort string
	GinMode string
	GinPath string

	// Storage selection: mysql, sqlite or memory.
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	SQLitePath  string

	// Redis for the per-IP claim flood guard and stats caching.
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string

	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	RateLimitPerMinute int
	AllowedOrigins     []string

	// Reward policy. Amounts are decimal strings to keep the config free of
	// binary-float drift.
	RewardAmount    string
	CooldownSeconds int
	DailyCap        int
	LifetimeCap     int
	StoreMaxRetries int

	// Referral bonuses; empty or "0" disables the corresponding side.
	ReferrerBonus string
	ReferredBonus string

	// Withdrawal gate and operator notification.
	MinWithdrawal    string
	NotifyTimeoutSec int
	TelegramBotToken string
	TelegramChatID   int64
	WebhookURL       string

	// Ad-session claim tickets. Off by default; when enabled a claim must
	// carry a token issued at ad start that only becomes valid once the ad
	// could have finished.
	AdTokenEnabled bool
	AdTokenSecret  string
	AdTokenTTLSec  int
	AdDurationSec  int

	// Operator API access: bcrypt hash of the X-API-Key value. Empty
	// disables the admin surface.
	AdminAPIKeyHash string

	// Per-IP claim flood guard (redis, fail-open).
	ClaimMaxPerIPPerHour int
	ClaimTempBanMinutes  int

	// Geo gate for claims; countries the ad network pays out for. Deny wins
	// over allow, empty lists disable the gate.
	AllowCountries []string
	DenyCountries  []string

	// Audit row retention for the background trimmer; 0 keeps rows forever.
	ViewRetentionDays int
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
// Precedence: config/config.json -> defaults -> environment variable overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Fatalf("invalid config/config.json: %v", err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// SetForTest replaces the cached configuration; tests only.
func SetForTest(c AppConfig) {
	applyDefaults(&c)
	cfg = c
	loaded = true
}

// loadJSONConfig reads the grouped JSON file into cfg if present. A missing
// file is fine; invalid JSON is not.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if s, ok := m[key].(string); ok {
			return s
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		switch t := m[key].(type) {
		case float64:
			return int(t)
		case int:
			return t
		}
		return 0
	}
	getInt64 := func(m map[string]any, key string) int64 {
		switch t := m[key].(type) {
		case float64:
			return int64(t)
		case int:
			return int64(t)
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		b, _ := m[key].(bool)
		return b
	}
	getStringSlice := func(m map[string]any, key string) []string {
		arr, ok := m[key].([]any)
		if !ok {
			return nil
		}
		res := make([]string, 0, len(arr))
		for _, it := range arr {
			if s, ok := it.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}
	section := func(key string) map[string]any {
		m, _ := raw[key].(map[string]any)
		return m
	}

	if app := section("app"); app != nil {
		out.AppPort = getString(app, "AppPort")
		out.GinMode = getString(app, "GinMode")
		out.GinPath = getString(app, "GinPath")
		if v := getInt(app, "RateLimitPerMinute"); v != 0 {
			out.RateLimitPerMinute = v
		}
		if list := getStringSlice(app, "AllowedOrigins"); len(list) > 0 {
			out.AllowedOrigins = list
		}
	}

	if dbs := section("database"); dbs != nil {
		out.DBDriver = getString(dbs, "Driver")
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
		out.SQLitePath = getString(dbs, "SQLitePath")
	}

	if rds := section("redis"); rds != nil {
		out.RedisHost = getString(rds, "RedisHost")
		if v := getInt(rds, "RedisPort"); v != 0 {
			out.RedisPort = v
		}
		if v := getInt(rds, "RedisDB"); v != 0 {
			out.RedisDB = v
		}
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if lg := section("log"); lg != nil {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		if v := getString(lg, "GinMode"); v != "" {
			out.GinMode = v
		}
		if v := getString(lg, "GinPath"); v != "" {
			out.GinPath = v
		}
		if v := getInt(lg, "MaxSizeMB"); v != 0 {
			out.LogMaxSizeMB = v
		}
		if v := getInt(lg, "MaxBackups"); v != 0 {
			out.LogMaxBackups = v
		}
		if v := getInt(lg, "MaxAgeDays"); v != 0 {
			out.LogMaxAgeDays = v
		}
		out.LogCompress = getBool(lg, "Compress")
	}

	if pol := section("policy"); pol != nil {
		out.RewardAmount = getString(pol, "RewardAmount")
		if v, ok := pol["CooldownSeconds"]; ok {
			out.CooldownSeconds = asInt(v, out.CooldownSeconds)
		}
		if v, ok := pol["DailyCap"]; ok {
			out.DailyCap = asInt(v, out.DailyCap)
		}
		if v, ok := pol["LifetimeCap"]; ok {
			out.LifetimeCap = asInt(v, out.LifetimeCap)
		}
		if v := getInt(pol, "StoreMaxRetries"); v != 0 {
			out.StoreMaxRetries = v
		}
	}

	if ref := section("referral"); ref != nil {
		out.ReferrerBonus = getString(ref, "ReferrerBonus")
		out.ReferredBonus = getString(ref, "ReferredBonus")
	}

	if wd := section("withdrawal"); wd != nil {
		out.MinWithdrawal = getString(wd, "Minimum")
		if v := getInt(wd, "NotifyTimeoutSec"); v != 0 {
			out.NotifyTimeoutSec = v
		}
	}

	if nt := section("notify"); nt != nil {
		out.TelegramBotToken = getString(nt, "TelegramBotToken")
		out.TelegramChatID = getInt64(nt, "TelegramChatID")
		out.WebhookURL = getString(nt, "WebhookURL")
	}

	if at := section("adtoken"); at != nil {
		out.AdTokenEnabled = getBool(at, "Enabled")
		out.AdTokenSecret = getString(at, "Secret")
		if v := getInt(at, "TTLSeconds"); v != 0 {
			out.AdTokenTTLSec = v
		}
		if v := getInt(at, "AdDurationSeconds"); v != 0 {
			out.AdDurationSec = v
		}
	}

	if adm := section("admin"); adm != nil {
		out.AdminAPIKeyHash = getString(adm, "APIKeyHash")
	}

	if guard := section("floodguard"); guard != nil {
		if v := getInt(guard, "MaxClaimsPerIPPerHour"); v != 0 {
			out.ClaimMaxPerIPPerHour = v
		}
		if v := getInt(guard, "TempBanMinutes"); v != 0 {
			out.ClaimTempBanMinutes = v
		}
		if list := getStringSlice(guard, "AllowCountries"); len(list) > 0 {
			out.AllowCountries = list
		}
		if list := getStringSlice(guard, "DenyCountries"); len(list) > 0 {
			out.DenyCountries = list
		}
	}

	if ret := section("retention"); ret != nil {
		if v, ok := ret["ViewRetentionDays"]; ok {
			out.ViewRetentionDays = asInt(v, out.ViewRetentionDays)
		}
	}

	return nil
}

func asInt(v any, def int) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	}
	return def
}

// applyDefaults sets sane defaults for zero-value fields. Policy defaults
// follow the production constants: 0.0005 TON per view, 30s cooldown, 50
// views per day, 1000 views lifetime, 0.05 minimum withdrawal.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "adledger"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "data/adledger.db"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.RewardAmount == "" {
		c.RewardAmount = "0.0005"
	}
	if c.CooldownSeconds == 0 {
		c.CooldownSeconds = 30
	}
	if c.DailyCap == 0 {
		c.DailyCap = 50
	}
	if c.LifetimeCap == 0 {
		c.LifetimeCap = 1000
	}
	if c.StoreMaxRetries == 0 {
		c.StoreMaxRetries = 5
	}
	if c.ReferrerBonus == "" {
		c.ReferrerBonus = "0.01"
	}
	if c.ReferredBonus == "" {
		c.ReferredBonus = "0.005"
	}
	if c.MinWithdrawal == "" {
		c.MinWithdrawal = "0.05"
	}
	if c.NotifyTimeoutSec == 0 {
		c.NotifyTimeoutSec = 5
	}
	if c.AdTokenTTLSec == 0 {
		c.AdTokenTTLSec = 120
	}
	if c.AdDurationSec == 0 {
		c.AdDurationSec = 15
	}
	if c.ClaimMaxPerIPPerHour == 0 {
		c.ClaimMaxPerIPPerHour = 120
	}
	if c.ClaimTempBanMinutes == 0 {
		c.ClaimTempBanMinutes = 60
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			*dst = mustParseInt(key, v)
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true"
		}
	}

	setStr("APP_PORT", &c.AppPort)
	setStr("GIN_MODE", &c.GinMode)
	setStr("GIN_PATH", &c.GinPath)
	setStr("DB_DRIVER", &c.DBDriver)
	setStr("DATABASE_URI", &c.DatabaseURI)
	setStr("DB_HOST", &c.DBHost)
	setStr("DB_PORT", &c.DBPort)
	setStr("DB_USER", &c.DBUser)
	setStr("DB_PASSWORD", &c.DBPassword)
	setStr("DB_NAME", &c.DBName)
	setStr("SQLITE_PATH", &c.SQLitePath)
	setStr("REDIS_HOST", &c.RedisHost)
	setInt("REDIS_PORT", &c.RedisPort)
	setInt("REDIS_DB", &c.RedisDB)
	setStr("REDIS_PASSWORD", &c.RedisPassword)
	setStr("LOG_LEVEL", &c.LogLevel)
	setStr("LOG_PATH", &c.LogPath)
	setInt("LOG_MAX_SIZE_MB", &c.LogMaxSizeMB)
	setInt("LOG_MAX_BACKUPS", &c.LogMaxBackups)
	setInt("LOG_MAX_AGE_DAYS", &c.LogMaxAgeDays)
	setBool("LOG_COMPRESS", &c.LogCompress)
	setInt("RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute)
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	setStr("REWARD_AMOUNT", &c.RewardAmount)
	setInt("COOLDOWN_SECONDS", &c.CooldownSeconds)
	setInt("DAILY_CAP", &c.DailyCap)
	setInt("LIFETIME_CAP", &c.LifetimeCap)
	setInt("STORE_MAX_RETRIES", &c.StoreMaxRetries)
	setStr("REFERRER_BONUS", &c.ReferrerBonus)
	setStr("REFERRED_BONUS", &c.ReferredBonus)
	setStr("MIN_WITHDRAWAL", &c.MinWithdrawal)
	setInt("NOTIFY_TIMEOUT_SEC", &c.NotifyTimeoutSec)
	setStr("TELEGRAM_BOT_TOKEN", &c.TelegramBotToken)
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Fatalf("invalid TELEGRAM_CHAT_ID %s: %v", v, err)
		}
		c.TelegramChatID = id
	}
	setStr("WEBHOOK_URL", &c.WebhookURL)
	setBool("AD_TOKEN_ENABLED", &c.AdTokenEnabled)
	setStr("AD_TOKEN_SECRET", &c.AdTokenSecret)
	setInt("AD_TOKEN_TTL_SEC", &c.AdTokenTTLSec)
	setInt("AD_DURATION_SEC", &c.AdDurationSec)
	setStr("ADMIN_API_KEY_HASH", &c.AdminAPIKeyHash)
	setInt("CLAIM_MAX_PER_IP_PER_HOUR", &c.ClaimMaxPerIPPerHour)
	setInt("CLAIM_TEMP_BAN_MINUTES", &c.ClaimTempBanMinutes)
	if v := os.Getenv("ALLOW_COUNTRIES"); v != "" {
		c.AllowCountries = splitAndTrim(v)
	}
	if v := os.Getenv("DENY_COUNTRIES"); v != "" {
		c.DenyCountries = splitAndTrim(v)
	}
	setInt("VIEW_RETENTION_DAYS", &c.ViewRetentionDays)
}

func mustParseInt(key, val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s for %s: %v", val, key, err)
	}
	return i
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
