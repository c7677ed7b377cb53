package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env     string
		Debug   bool
		AppName string

		Database DatabaseConfig
		Fees     FeesConfig

		RollbarToken string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool
	}

	// FeesConfig holds the fee engine's tunables.
	FeesConfig struct {
		// StrictOverpayment rejects payments that would drive an obligation's
		// balance negative. The default (lenient) records them as credit.
		StrictOverpayment bool
		// ObligationLockTimeout bounds how long a ledger mutation waits for
		// the per-obligation lock before giving up.
		ObligationLockTimeout time.Duration
	}
)

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from the environment (and an optional
// config/.env.<env> file) into a Config. Callers pass the struct down;
// nothing reads ambient state after load.
func LoadConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "SchoolFees")
	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.user", "")
	conf.SetDefault("database.password", "")
	conf.SetDefault("database.adminUser", "")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.name", "schoolfees")
	conf.SetDefault("database.disableTLS", true)
	conf.SetDefault("fees.strictOverpayment", false)
	conf.SetDefault("fees.obligationLockTimeout", 5*time.Second)
	conf.SetDefault("rollbarToken", "")

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.SetEnvPrefix("FEES")
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AutomaticEnv()

	return &Config{
		Env:     env,
		Debug:   conf.GetBool("debug"),
		AppName: conf.GetString("appName"),
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetInt("database.port"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			Name:          conf.GetString("database.name"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Fees: FeesConfig{
			StrictOverpayment:     conf.GetBool("fees.strictOverpayment"),
			ObligationLockTimeout: conf.GetDuration("fees.obligationLockTimeout"),
		},
		RollbarToken: conf.GetString("rollbarToken"),
	}
}
