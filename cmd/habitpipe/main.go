package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/HabitPipe/internal/bot"
	"github.com/BTreeMap/HabitPipe/internal/lockfile"
	"github.com/BTreeMap/HabitPipe/internal/store"
	"github.com/BTreeMap/HabitPipe/internal/twiliowhatsapp"
	"github.com/BTreeMap/HabitPipe/internal/util"
	"github.com/BTreeMap/HabitPipe/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for HabitPipe state data
	DefaultStateDir = "/var/lib/habitpipe"
	// DefaultDBFileName is the default SQLite database filename for habits
	DefaultDBFileName = "habitpipe.db"
	// DefaultWhatsAppDBFileName is the default SQLite database filename for the WhatsApp session
	DefaultWhatsAppDBFileName = "whatsmeow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// One instance per state directory.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	storeOpts := buildStoreOptions(flags)
	waOpts := buildWhatsAppOptions(flags)
	twilioOpts := buildTwilioOptions(flags)
	botOpts := buildBotOptions(flags)

	slog.Info("Bootstrapping HabitPipe with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "whatsapp", len(waOpts), "twilio", len(twilioOpts), "bot", len(botOpts))
	if err := bot.Run(storeOpts, waOpts, twilioOpts, botOpts...); err != nil {
		slog.Error("HabitPipe failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("HabitPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir     string
	DatabaseURL  string
	WhatsAppDSN  string
	Transport    string
	OpenAIKey    string
	TwilioSID    string
	TwilioToken  string
	TwilioFrom   string
	APIAddr      string
	StateTTL     string
	MotivatorOff bool
}

// Flags holds command line flag values
type Flags struct {
	qrOutput    *string
	numeric     *bool
	stateDir    *string
	dbDSN       *string
	waDSN       *string
	transport   *string
	openaiKey   *string
	apiAddr     *string
	stateTTL    *string
	twilioSID   *string
	twilioToken *string
	twilioFrom  *string
}

// initializeLogger sets up structured logging. Debug level is opt-in through
// HABITPIPE_DEBUG.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("HABITPIPE_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:     os.Getenv("HABITPIPE_STATE_DIR"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		WhatsAppDSN:  os.Getenv("WHATSAPP_DB_DSN"),
		Transport:    os.Getenv("HABITPIPE_TRANSPORT"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		TwilioSID:    os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:   os.Getenv("TWILIO_FROM_NUMBER"),
		APIAddr:      os.Getenv("API_ADDR"),
		StateTTL:     os.Getenv("HABITPIPE_STATE_TTL"),
		MotivatorOff: util.ParseBoolEnv("HABITPIPE_DISABLE_MOTIVATOR", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No HABITPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// Default the habit database to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	// The WhatsApp session store gets its own SQLite file unless told otherwise
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, DefaultWhatsAppDBFileName)
		slog.Debug("No WHATSAPP_DB_DSN provided, defaulting to SQLite", "sqlite_path", config.WhatsAppDSN)
	}

	slog.Debug("environment variables loaded",
		"HABITPIPE_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"HABITPIPE_TRANSPORT", config.Transport,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"TWILIO_ACCOUNT_SID_SET", config.TwilioSID != "",
		"API_ADDR", config.APIAddr,
		"HABITPIPE_STATE_TTL", config.StateTTL)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:    flag.String("qr-output", "", "path to write login QR code"),
		numeric:     flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for HabitPipe data (overrides $HABITPIPE_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "habit database DSN (overrides $DATABASE_URL)"),
		waDSN:       flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "WhatsApp session database DSN (overrides $WHATSAPP_DB_DSN)"),
		transport:   flag.String("transport", config.Transport, "messaging transport: whatsapp or twilio (overrides $HABITPIPE_TRANSPORT)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key for the motivator (overrides $OPENAI_API_KEY)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "HTTP server address (overrides $API_ADDR)"),
		stateTTL:    flag.String("state-ttl", config.StateTTL, "dialogue state expiry, e.g. 24h (overrides $HABITPIPE_STATE_TTL)"),
		twilioSID:   flag.String("twilio-account-sid", config.TwilioSID, "Twilio account SID (overrides $TWILIO_ACCOUNT_SID)"),
		twilioToken: flag.String("twilio-auth-token", config.TwilioToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)"),
		twilioFrom:  flag.String("twilio-from", config.TwilioFrom, "Twilio WhatsApp sending number (overrides $TWILIO_FROM_NUMBER)"),
	}
	if config.MotivatorOff {
		*flags.openaiKey = ""
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"waDSN_set", *flags.waDSN != "",
		"transport", *flags.transport,
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"stateTTL", *flags.stateTTL)

	// Follow a moved state directory for the default database paths
	if *flags.stateDir != config.StateDir {
		if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) {
			*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
			slog.Debug("Updated habit database path for new state directory", "path", *flags.dbDSN)
		}
		if *flags.waDSN == filepath.Join(config.StateDir, DefaultWhatsAppDBFileName) {
			*flags.waDSN = filepath.Join(*flags.stateDir, DefaultWhatsAppDBFileName)
			slog.Debug("Updated WhatsApp session database path for new state directory", "path", *flags.waDSN)
		}
	}

	return flags
}

// ensureDirectoriesExist creates the directories behind file-based DSNs
func ensureDirectoriesExist(flags Flags) error {
	for _, dsn := range []string{*flags.dbDSN, *flags.waDSN} {
		if dsn == "" || store.DetectDSNType(dsn) == "postgres" {
			continue
		}
		dir := filepath.Dir(dsn)
		slog.Debug("Creating state directory for file-based database", "state_dir", dir)
		if err := os.MkdirAll(dir, store.DefaultDirPermissions); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", dir)
			return err
		}
	}
	return nil
}

// buildStoreOptions constructs habit store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildWhatsAppOptions constructs WhatsApp client configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.waDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.waDSN))
	}
	return waOpts
}

// buildTwilioOptions constructs Twilio client configuration options
func buildTwilioOptions(flags Flags) []twiliowhatsapp.Option {
	var twilioOpts []twiliowhatsapp.Option
	if *flags.twilioSID != "" {
		twilioOpts = append(twilioOpts, twiliowhatsapp.WithAccountSID(*flags.twilioSID))
	}
	if *flags.twilioToken != "" {
		twilioOpts = append(twilioOpts, twiliowhatsapp.WithAuthToken(*flags.twilioToken))
	}
	if *flags.twilioFrom != "" {
		twilioOpts = append(twilioOpts, twiliowhatsapp.WithFromNumber(*flags.twilioFrom))
	}
	return twilioOpts
}

// buildBotOptions constructs bot configuration options
func buildBotOptions(flags Flags) []bot.Option {
	var botOpts []bot.Option
	if *flags.transport != "" {
		botOpts = append(botOpts, bot.WithTransport(*flags.transport))
	}
	if *flags.apiAddr != "" {
		botOpts = append(botOpts, bot.WithAddr(*flags.apiAddr))
	}
	if *flags.openaiKey != "" {
		botOpts = append(botOpts, bot.WithOpenAIKey(*flags.openaiKey))
	}
	if *flags.stateTTL != "" {
		ttl, err := time.ParseDuration(*flags.stateTTL)
		if err != nil {
			slog.Warn("Invalid state TTL, dialogue states will not expire", "value", *flags.stateTTL, "error", err)
		} else if ttl > 0 {
			botOpts = append(botOpts, bot.WithStateTTL(ttl))
		}
	}
	return botOpts
}
