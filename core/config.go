package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
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
		MaxOpenConns  int
		MaxIdleConns  int
	}

	Config struct {
		AppName      string
		Env          string // DEV (local; default), TEST, QA, PROD
		Build        string
		Debug        bool
		TestMode     bool
		WorkDir      string
		RollbarToken string

		Database DatabaseConfig

		Server struct {
			Host            string
			DebugHost       string
			ReadTimeout     time.Duration
			WriteTimeout    time.Duration
			ShutdownTimeout time.Duration
		}

		Upload struct {
			TempDir string
			LogDir  string
			MaxSize string // echo body limit format, e.g. "10M"
		}
	}
)

func (c *Config) setDefaults(conf *viper.Viper) {
	conf.SetTypeByDefaultValue(true)

	conf.SetDefault("appName", "Admissions")
	conf.SetDefault("build", "develop")
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.user", "admissions")
	conf.SetDefault("database.password", "admissions")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.name", "admissions")
	conf.SetDefault("database.disableTLS", true)
	conf.SetDefault("database.maxOpenConns", 25)
	conf.SetDefault("database.maxIdleConns", 5)

	conf.SetDefault("server.host", "0.0.0.0:8000")
	conf.SetDefault("server.debugHost", "0.0.0.0:4000")
	conf.SetDefault("server.readTimeout", 30*time.Second)
	conf.SetDefault("server.writeTimeout", 2*time.Minute)
	conf.SetDefault("server.shutdownTimeout", 10*time.Second)

	conf.SetDefault("upload.tempDir", "")
	conf.SetDefault("upload.logDir", "")
	conf.SetDefault("upload.maxSize", "10M")
}

// NewConfig loads the app configuration from the environment.
// Variables are prefixed with the current ENV, e.g. DEV_DATABASE_NAME or PROD_DEBUG.
func NewConfig() *Config {
	conf := viper.New()
	c := new(Config)
	c.setDefaults(conf)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	c.Env = env
	c.WorkDir = Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(c.WorkDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AutomaticEnv()

	c.AppName = conf.GetString("appName")
	c.Build = conf.GetString("build")
	c.Debug = conf.GetBool("debug")
	c.TestMode = conf.GetBool("testMode")
	c.RollbarToken = conf.GetString("rollbarToken")

	c.Database.Engine = conf.GetString("database.engine")
	c.Database.Host = conf.GetString("database.host")
	c.Database.Port = conf.GetInt("database.port")
	c.Database.User = conf.GetString("database.user")
	c.Database.Password = conf.GetString("database.password")
	c.Database.AdminUser = conf.GetString("database.adminUser")
	c.Database.AdminPassword = conf.GetString("database.adminPassword")
	c.Database.Name = conf.GetString("database.name")
	if c.TestMode {
		c.Database.Name += "_test"
	}
	c.Database.DisableTLS = conf.GetBool("database.disableTLS")
	c.Database.MaxOpenConns = conf.GetInt("database.maxOpenConns")
	c.Database.MaxIdleConns = conf.GetInt("database.maxIdleConns")

	c.Server.Host = conf.GetString("server.host")
	c.Server.DebugHost = conf.GetString("server.debugHost")
	c.Server.ReadTimeout = conf.GetDuration("server.readTimeout")
	c.Server.WriteTimeout = conf.GetDuration("server.writeTimeout")
	c.Server.ShutdownTimeout = conf.GetDuration("server.shutdownTimeout")

	c.Upload.TempDir = conf.GetString("upload.tempDir")
	if c.Upload.TempDir == "" {
		c.Upload.TempDir = filepath.Join(os.TempDir(), "admissions-uploads")
	}
	c.Upload.LogDir = conf.GetString("upload.logDir")
	if c.Upload.LogDir == "" {
		c.Upload.LogDir = filepath.Join(c.WorkDir, "logs")
	}
	c.Upload.MaxSize = conf.GetString("upload.maxSize")
	return c
}

// Address returns the database host:port.
func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}
