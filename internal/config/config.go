package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	AppPort           int    `mapstructure:"APP_PORT"`
	GeminiAPIKey      string `mapstructure:"GEMINI_API_KEY"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	FastModel         string `mapstructure:"FAST_MODEL"`
	ProModel          string `mapstructure:"PRO_MODEL"`
	ImageModel        string `mapstructure:"IMAGE_MODEL"`
	TTSModel          string `mapstructure:"TTS_MODEL"`
	SystemInstruction string `mapstructure:"SYSTEM_INSTRUCTION"`
	ThinkingBudget    int32  `mapstructure:"THINKING_BUDGET"`
	ImageAspectRatio  string `mapstructure:"IMAGE_ASPECT_RATIO"`
}

const defaultSystemInstruction = "You are Nova, a helpful, witty, and advanced AI assistant. " +
	"You are polite, knowledgeable, and strive to provide accurate information."

func LoadConfig() (*Config, error) {
	viper.SetDefault("APP_PORT", 8000)
	viper.SetDefault("GEMINI_API_KEY", "")
	viper.SetDefault("LOG_LEVEL", "INFO")
	viper.SetDefault("FAST_MODEL", "gemini-2.5-flash")
	viper.SetDefault("PRO_MODEL", "gemini-2.5-pro")
	viper.SetDefault("IMAGE_MODEL", "imagen-4.0-generate-001")
	viper.SetDefault("TTS_MODEL", "gemini-2.5-flash-preview-tts")
	viper.SetDefault("SYSTEM_INSTRUCTION", defaultSystemInstruction)
	viper.SetDefault("THINKING_BUDGET", 32768)
	viper.SetDefault("IMAGE_ASPECT_RATIO", "1:1")

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./backend")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
