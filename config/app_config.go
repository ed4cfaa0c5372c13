package config

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// AppConfig carries the knobs of the simulator. It is constructed once in
// main and passed by value; there is no global config state.
type AppConfig struct {
	// How many leading zero bits a valid block hash must have.
	Difficulty int
	// Value minted by the coinbase of every block. 0 disables rewards, in
	// which case mining an empty mempool is refused.
	CoinbaseReward int64
	// Cap on transactions per mined block. 0 means all pending.
	MaxBlockTxs int
	// Where the chain database and wallet key files live.
	DataDir string
	LogLevel log.Level
}

// Load reads configuration from the environment, with an optional yaml file
// layered underneath. Unset keys fall back to defaults suitable for a local
// simulation.
func Load(configPath string) (AppConfig, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("DIFFICULTY", 16)
	v.SetDefault("COINBASE_REWARD", 50)
	v.SetDefault("MAX_BLOCK_TXS", 0)
	v.SetDefault("DATA_DIR", "chaindata")
	v.SetDefault("LOG_LEVEL", "info")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, err
		}
	}

	level, err := log.ParseLevel(v.GetString("LOG_LEVEL"))
	if err != nil {
		return AppConfig{}, err
	}

	return AppConfig{
		Difficulty:     v.GetInt("DIFFICULTY"),
		CoinbaseReward: v.GetInt64("COINBASE_REWARD"),
		MaxBlockTxs:    v.GetInt("MAX_BLOCK_TXS"),
		DataDir:        v.GetString("DATA_DIR"),
		LogLevel:       level,
	}, nil
}
