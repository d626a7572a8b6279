package config

import (
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-errors/errors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var AppConfig Config

func InitConfig() {
	if err := godotenv.Load(); err != nil {
		logrus.Debugf("No .env file loaded: %v", err)
	}
	viper.AutomaticEnv()

	// Default config
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DB_DIR", "/app/db")
	viper.SetDefault("BRIDGE_AUTHORITY", "")
	viper.SetDefault("BRIDGE_VALIDATORS", "")
	viper.SetDefault("BRIDGE_THRESHOLD", 0)
	viper.SetDefault("BRIDGE_FEE_RATE_BPS", 10)
	viper.SetDefault("BRIDGE_DAILY_LIMIT", uint64(1_000_000_000_000))
	viper.SetDefault("FEE_COLLECTOR", "fee_collector")
	viper.SetDefault("EMERGENCY_DELAY", "1h")
	viper.SetDefault("WITHDRAW_REQUIRE_QUORUM", false)
	viper.SetDefault("ORACLE_STALENESS", "60s")
	viper.SetDefault("ORACLE_HISTORY_SIZE", 100)
	viper.SetDefault("ORACLE_MAX_DEVIATION_BPS", 500)
	viper.SetDefault("ADMIN_JWT_SECRET", "")

	logLevel, err := logrus.ParseLevel(strings.ToLower(viper.GetString("LOG_LEVEL")))
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}

	validators, err := ParseValidatorList(viper.GetString("BRIDGE_VALIDATORS"))
	if err != nil {
		logrus.Fatalf("Failed to parse BRIDGE_VALIDATORS: %v", err)
	}

	AppConfig = Config{
		HTTPPort:              viper.GetString("HTTP_PORT"),
		DbDir:                 viper.GetString("DB_DIR"),
		LogLevel:              logLevel,
		Authority:             common.HexToAddress(viper.GetString("BRIDGE_AUTHORITY")),
		Validators:            validators,
		Threshold:             viper.GetInt("BRIDGE_THRESHOLD"),
		FeeRateBps:            viper.GetUint16("BRIDGE_FEE_RATE_BPS"),
		DailyLimit:            viper.GetUint64("BRIDGE_DAILY_LIMIT"),
		FeeCollector:          viper.GetString("FEE_COLLECTOR"),
		EmergencyDelay:        viper.GetDuration("EMERGENCY_DELAY"),
		WithdrawRequireQuorum: viper.GetBool("WITHDRAW_REQUIRE_QUORUM"),
		OracleStaleness:       viper.GetDuration("ORACLE_STALENESS"),
		OracleHistorySize:     viper.GetInt("ORACLE_HISTORY_SIZE"),
		OracleMaxDeviationBps: viper.GetUint64("ORACLE_MAX_DEVIATION_BPS"),
		AdminJwtSecret:        viper.GetString("ADMIN_JWT_SECRET"),
	}

	if AppConfig.EmergencyDelay < time.Hour {
		logrus.Warnf("Emergency delay %v is too low, set to 1h", AppConfig.EmergencyDelay)
		AppConfig.EmergencyDelay = time.Hour
	}

	logrus.Infof("Init config, %d validators, threshold %d, feeRate %d bps, dailyLimit %d, emergencyDelay %v",
		len(AppConfig.Validators), AppConfig.Threshold, AppConfig.FeeRateBps, AppConfig.DailyLimit, AppConfig.EmergencyDelay)

	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(AppConfig.LogLevel)
}

// ParseValidatorList parses a comma separated list of hex validator addresses.
func ParseValidatorList(raw string) ([]common.Address, error) {
	var validators []common.Address
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !common.IsHexAddress(part) {
			return nil, errors.Errorf("invalid validator address: %s", part)
		}
		validators = append(validators, common.HexToAddress(part))
	}
	return validators, nil
}

type Config struct {
	HTTPPort              string
	DbDir                 string
	LogLevel              logrus.Level
	Authority             common.Address
	Validators            []common.Address
	Threshold             int
	FeeRateBps            uint16
	DailyLimit            uint64
	FeeCollector          string
	EmergencyDelay        time.Duration
	WithdrawRequireQuorum bool
	OracleStaleness       time.Duration
	OracleHistorySize     int
	OracleMaxDeviationBps uint64
	AdminJwtSecret        string
}
