package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// TipsConfig carries the ledger and transport settings. Amounts are
// nanotons (1 TON = 1e9).
type TipsConfig struct {
	FeeBasisPoints  int64
	MinWithdraw     int64
	TipAmounts      []int64
	CustomTip       bool
	HelpURL         string
	GatewayURL      string
	CallbackURL     string
	TrackingToken   string
	TrackingRefresh time.Duration
	BotToken        string
	PollTimeout     time.Duration
	WalletAddress   string
	WalletKey       string
}

// LoadTipsConfig returns tip-economy configuration with defaults.
func LoadTipsConfig() *TipsConfig {
	viper.SetDefault("tips.fee_bps", 100)
	viper.SetDefault("tips.min_withdraw", int64(100_000_000))
	viper.SetDefault("tips.amounts", "500000000,1000000000,5000000000")
	viper.SetDefault("tips.custom_tip", true)
	viper.SetDefault("tips.help_url", "")
	viper.SetDefault("gateway.url", "http://localhost:7000")
	viper.SetDefault("gateway.callback_url", "http://localhost:8080/tracking")
	viper.SetDefault("gateway.tracking_token", "")
	viper.SetDefault("gateway.tracking_refresh", 6*time.Hour)
	viper.SetDefault("bot.token", "")
	viper.SetDefault("bot.poll_timeout", 60*time.Second)
	viper.SetDefault("wallet.address", "")
	viper.SetDefault("wallet.private_key", "")

	return &TipsConfig{
		FeeBasisPoints:  viper.GetInt64("tips.fee_bps"),
		MinWithdraw:     viper.GetInt64("tips.min_withdraw"),
		TipAmounts:      parseAmounts(viper.GetString("tips.amounts")),
		CustomTip:       viper.GetBool("tips.custom_tip"),
		HelpURL:         viper.GetString("tips.help_url"),
		GatewayURL:      viper.GetString("gateway.url"),
		CallbackURL:     viper.GetString("gateway.callback_url"),
		TrackingToken:   viper.GetString("gateway.tracking_token"),
		TrackingRefresh: viper.GetDuration("gateway.tracking_refresh"),
		BotToken:        viper.GetString("bot.token"),
		PollTimeout:     viper.GetDuration("bot.poll_timeout"),
		WalletAddress:   viper.GetString("wallet.address"),
		WalletKey:       viper.GetString("wallet.private_key"),
	}
}

func parseAmounts(csv string) []int64 {
	var amounts []int64
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if val, err := strconv.ParseInt(part, 10, 64); err == nil && val > 0 {
			amounts = append(amounts, val)
		}
	}
	return amounts
}
