// Package config provides configuration management for the ledger service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Workbooks WorkbookConfig
	Data      DataConfig
	Snapshot  SnapshotConfig
	Port      int
	Debug     bool
	// CORSAllowedOrigins are the browser origins allowed to call the API.
	CORSAllowedOrigins []string
}

// WorkbookConfig locates the spreadsheets the service writes to.
type WorkbookConfig struct {
	CashbookPath         string
	CashbookSheet        string
	MainLedgerPath       string
	LedgerDebitColumn    string
	LedgerInterestColumn string
	TrialBalancePath     string
	CapitalSheet         string
	InterestSheet        string
	PersonalAccountRoot  string
	BankRoutingFile      string
}

// DataConfig locates the service's own databases.
type DataConfig struct {
	Dir           string
	HistoryDBPath string
	DirectoryPath string
}

// SnapshotConfig selects where pre-mutation workbook copies are archived.
type SnapshotConfig struct {
	Driver     string // none, fs or s3
	FSRoot     string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Prefix   string
	S3KeyID    string
	S3Secret   string
	PathStyle  bool
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Ignore a missing .env in the current directory
		_ = godotenv.Load()
	}

	port, err := parseIntEnv("PORT", 8080)
	if err != nil {
		return nil, err
	}
	pathStyle, err := parseBoolEnv("SNAPSHOT_S3_PATH_STYLE", false)
	if err != nil {
		return nil, err
	}

	dataDir := getEnvOrDefault("DATA_DIR", "./data")
	config := &Config{
		Workbooks: WorkbookConfig{
			CashbookPath:         os.Getenv("CASHBOOK_FILEPATH"),
			CashbookSheet:        getEnvOrDefault("CASHBOOK_SHEET", "Sheet1"),
			MainLedgerPath:       os.Getenv("MAIN_LEDGER_FILEPATH"),
			LedgerDebitColumn:    os.Getenv("LEDGER_DEBIT_COLUMN"),
			LedgerInterestColumn: os.Getenv("LEDGER_INTEREST_COLUMN"),
			TrialBalancePath:     getEnvOrDefault("TRIAL_BALANCE_FILEPATH", os.Getenv("TRIAL_BALANCE_ROOTPATH")),
			CapitalSheet:         os.Getenv("TRIAL_BALANCE_CAPITAL_UPDATE_WORKSHEET_NAME"),
			InterestSheet:        os.Getenv("TRIAL_BALANCE_INTEREST_UPDATE_WORKSHEET_NAME"),
			PersonalAccountRoot:  os.Getenv("PERSONAL_ACCOUNT_ROOTPATH"),
			BankRoutingFile:      os.Getenv("BANK_ROUTING_FILE"),
		},
		Data: DataConfig{
			Dir:           dataDir,
			HistoryDBPath: getEnvOrDefault("HISTORY_DB_PATH", filepath.Join(dataDir, "history.db")),
			DirectoryPath: getEnvOrDefault("DIRECTORY_DB_PATH", filepath.Join(dataDir, "directory.db")),
		},
		Snapshot: SnapshotConfig{
			Driver:     strings.ToLower(getEnvOrDefault("SNAPSHOT_DRIVER", "none")),
			FSRoot:     getEnvOrDefault("SNAPSHOT_FS_ROOT", filepath.Join(dataDir, "snapshots")),
			S3Bucket:   os.Getenv("SNAPSHOT_S3_BUCKET"),
			S3Region:   getEnvOrDefault("SNAPSHOT_S3_REGION", "us-east-1"),
			S3Endpoint: os.Getenv("SNAPSHOT_S3_ENDPOINT"),
			S3Prefix:   os.Getenv("SNAPSHOT_S3_PREFIX"),
			S3KeyID:    os.Getenv("SNAPSHOT_S3_ACCESS_KEY_ID"),
			S3Secret:   os.Getenv("SNAPSHOT_S3_SECRET_ACCESS_KEY"),
			PathStyle:  pathStyle,
		},
		Port:               port,
		Debug:              os.Getenv("DEBUG") == "true",
		CORSAllowedOrigins: parseListEnv("CORS_ALLOWED_ORIGINS", "*"),
	}

	return config, nil
}

// Validate validates the configuration.
// It checks if all required fields are set.
func (c *Config) Validate(required ...[]string) error {
	var missing []string

	for _, path := range required {
		if len(path) < 2 {
			continue
		}

		var value string
		switch path[0] {
		case "workbooks":
			switch path[1] {
			case "cashbook":
				value = c.Workbooks.CashbookPath
			case "mainLedger":
				value = c.Workbooks.MainLedgerPath
			case "ledgerDebitColumn":
				value = c.Workbooks.LedgerDebitColumn
			case "ledgerInterestColumn":
				value = c.Workbooks.LedgerInterestColumn
			case "trialBalance":
				value = c.Workbooks.TrialBalancePath
			case "capitalSheet":
				value = c.Workbooks.CapitalSheet
			case "interestSheet":
				value = c.Workbooks.InterestSheet
			case "personalAccountRoot":
				value = c.Workbooks.PersonalAccountRoot
			}
		case "snapshot":
			switch path[1] {
			case "fsRoot":
				value = c.Snapshot.FSRoot
			case "s3Bucket":
				value = c.Snapshot.S3Bucket
			}
		}

		if value == "" {
			missing = append(missing, strings.Join(path, "."))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// ServeRequirements lists the keys the HTTP service cannot run without.
func (c *Config) ServeRequirements() [][]string {
	req := [][]string{
		{"workbooks", "cashbook"},
		{"workbooks", "personalAccountRoot"},
	}
	if c.Workbooks.TrialBalancePath != "" {
		req = append(req, []string{"workbooks", "capitalSheet"}, []string{"workbooks", "interestSheet"})
	}
	if c.Workbooks.MainLedgerPath != "" {
		req = append(req, []string{"workbooks", "ledgerDebitColumn"}, []string{"workbooks", "ledgerInterestColumn"})
	}
	switch c.Snapshot.Driver {
	case "fs":
		req = append(req, []string{"snapshot", "fsRoot"})
	case "s3":
		req = append(req, []string{"snapshot", "s3Bucket"})
	}
	return req
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv parses an int from an environment variable.
// Returns defaultValue if the environment variable is not set.
func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}

	return parsed, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean value for %s: %s", key, value)
	}
	return parsed, nil
}

// parseListEnv splits a comma-separated environment variable, dropping
// blank items.
func parseListEnv(key, defaultValue string) []string {
	var items []string
	for _, item := range strings.Split(getEnvOrDefault(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
