package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf is the application configuration. It is loaded once at startup by LoadConf.
var Conf *Config

type (
	ServerConfig struct {
		Addr               string
		Host               string
		JWTExpirationDelta time.Duration
		ShutdownTimeout    time.Duration
	}

	OTPConfig struct {
		ExpirationDelta time.Duration
		MaxAttempts     int
		IssueWindow     time.Duration
		IssueLimit      int
	}

	Config struct {
		Env      string // DEV (default), TEST, QA, PROD
		Debug    bool
		TestMode bool
		AppName  string
		Build    string

		SecretKey        []byte
		DatabaseURL      string
		RedisURL         string
		SendgridApiKey   string
		RollbarToken     string
		DefaultFromEmail mail.Address
		FrontendBaseURL  string

		SeedAdminEmail    string
		SeedAdminPassword string

		Server ServerConfig
		OTP    OTPConfig
	}
)

func (conf *Config) IsProd() bool { return conf.Env == "PROD" || conf.Env == "QA" }

// LoadConf reads configuration from config/.env.<env> (if present) and the process
// environment, applies defaults and sets the Conf global.
// Secrets have no compiled-in defaults: a missing SECRETKEY or DATABASEURL outside
// DEV/TEST is a fatal startup error.
func LoadConf() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "Campuskit")
	v.SetDefault("build", "dev")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.jwtExpirationDelta", 24*time.Hour)
	v.SetDefault("server.shutdownTimeout", 20*time.Second)
	v.SetDefault("otp.expirationDelta", 10*time.Minute)
	v.SetDefault("otp.maxAttempts", 3)
	v.SetDefault("otp.issueWindow", time.Hour)
	v.SetDefault("otp.issueLimit", 5)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := &Config{
		Env:               env,
		Debug:             v.GetBool("debug"),
		TestMode:          v.GetBool("testMode"),
		AppName:           v.GetString("appName"),
		Build:             v.GetString("build"),
		SecretKey:         []byte(v.GetString("secretKey")),
		DatabaseURL:       v.GetString("databaseURL"),
		RedisURL:          v.GetString("redisURL"),
		SendgridApiKey:    v.GetString("sendgridApiKey"),
		RollbarToken:      v.GetString("rollbarToken"),
		DefaultFromEmail:  mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		FrontendBaseURL:   v.GetString("frontendBaseURL"),
		SeedAdminEmail:    v.GetString("seedAdminEmail"),
		SeedAdminPassword: v.GetString("seedAdminPassword"),
		Server: ServerConfig{
			Addr:               v.GetString("server.addr"),
			Host:               v.GetString("server.host"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
		},
		OTP: OTPConfig{
			ExpirationDelta: v.GetDuration("otp.expirationDelta"),
			MaxAttempts:     v.GetInt("otp.maxAttempts"),
			IssueWindow:     v.GetDuration("otp.issueWindow"),
			IssueLimit:      v.GetInt("otp.issueLimit"),
		},
	}

	if conf.IsProd() {
		if len(conf.SecretKey) == 0 {
			log.Fatalf("config: %s_SECRETKEY is required", env)
		}
		if conf.DatabaseURL == "" {
			log.Fatalf("config: %s_DATABASEURL is required", env)
		}
	} else if len(conf.SecretKey) == 0 {
		conf.SecretKey = []byte("dev-only-secret-do-not-deploy")
	}

	Conf = conf
	return conf
}

// NewTestConfig returns a Config suitable for tests and sets the Conf global.
func NewTestConfig() *Config {
	conf := &Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "Campuskit",
		Build:            "test",
		SecretKey:        []byte("secret"),
		DefaultFromEmail: mail.Address{Name: "Campuskit", Address: "noreply@localhost"},
		FrontendBaseURL:  "http://localhost:3000",
		Server: ServerConfig{
			Addr:               ":0",
			Host:               "localhost",
			JWTExpirationDelta: 10 * time.Minute,
			ShutdownTimeout:    time.Second,
		},
		OTP: OTPConfig{
			ExpirationDelta: 10 * time.Minute,
			MaxAttempts:     3,
			IssueWindow:     time.Hour,
			IssueLimit:      5,
		},
	}
	Conf = conf
	return conf
}
