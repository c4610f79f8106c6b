package config

import (
	"os"
	"strconv"
	"strings"
)

// DefaultExtensions are the code file extensions accepted when no override
// is configured and ALLOW_ALL_EXTENSIONS is off.
var DefaultExtensions = []string{
	".c", ".cpp", ".cs", ".d", ".fs", ".go", ".hs", ".java", ".kt", ".ml",
	".pas", ".pl", ".php", ".py", ".rb", ".rs", ".scala", ".js",
}

// Config holds all service configuration, read once from the environment.
type Config struct {
	ListenAddr string

	// Mode gates credential enforcement: checks apply only in "production".
	Mode      string
	SecretKey string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	QueueKey   string
	BusChannel string

	MaxUploadBytes     int64
	AllowAllExtensions bool
	AllowedExtensions  []string

	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3Prefix        string
	S3PublicBaseURL string
	S3AccessKey     string
	S3SecretKey     string

	TokenSubmitEnabled bool
	IdentityBaseURL    string
	WhitelistedUsers   []string

	CORSAllowOrigins []string

	SubmitsPerMinute int
}

// FromEnv loads the configuration from environment variables, applying
// defaults where unset.
func FromEnv() *Config {
	return &Config{
		ListenAddr: getenv("LISTEN_ADDR", ":8080"),

		Mode:      getenv("MODE", "development"),
		SecretKey: os.Getenv("API_SECRET_KEY"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getenvInt("REDIS_DB", 0),

		QueueKey:   getenv("TASK_QUEUE_KEY", "task_queue"),
		BusChannel: getenv("SUBMISSIONS_CHANNEL", "submissions"),

		MaxUploadBytes:     getenvInt64("CODE_FILE_MAX_SIZE", 2*1024*1024),
		AllowAllExtensions: getenvBool("ALLOW_ALL_EXTENSIONS", false),
		AllowedExtensions:  getenvList("CODE_FILE_EXTENSIONS", DefaultExtensions),

		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3Region:        getenv("S3_REGION", "us-east-1"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3Prefix:        getenv("S3_PREFIX", "submissions"),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),

		TokenSubmitEnabled: getenvBool("ENABLE_TOKEN_SUBMIT", false),
		IdentityBaseURL:    os.Getenv("IDENTITY_BASE_API_URL"),
		WhitelistedUsers:   getenvList("WHITELISTED_USERS", nil),

		CORSAllowOrigins: getenvList("CORS_ALLOW_ORIGIN", []string{"*"}),

		SubmitsPerMinute: getenvInt("SUBMITS_PER_MINUTE", 10),
	}
}

// Production reports whether credential enforcement is active.
func (c *Config) Production() bool {
	return c.Mode == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true")
	}
	return def
}

func getenvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
