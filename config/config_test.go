package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Business.DeliveryCharge.Equal(decimal.NewFromInt(50)))
	assert.True(t, cfg.Business.ReferralMinPurchase.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, 7*24*time.Hour, cfg.Business.ReferralHoldPeriod)
	assert.Equal(t, 500, cfg.Business.HoldSweepBatchSize)
	assert.Equal(t, 24*time.Hour, cfg.Business.HoldSweepInterval)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("DELIVERY_CHARGE", "75.50")
	t.Setenv("CITY_DELIVERY_CHARGES", "kathmandu:60,pokhara:120")
	t.Setenv("REFERRAL_HOLD_PERIOD", "48h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.Enabled)
	assert.True(t, cfg.Business.DeliveryCharge.Equal(decimal.RequireFromString("75.50")))
	assert.Equal(t, 48*time.Hour, cfg.Business.ReferralHoldPeriod)

	charges, err := cfg.Business.CityCharges()
	require.NoError(t, err)
	require.Len(t, charges, 2)
	assert.True(t, charges["pokhara"].Equal(decimal.NewFromInt(120)))
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("driver", func(t *testing.T) {
		t.Setenv("DATABASE_DRIVER", "mongo")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("city charge", func(t *testing.T) {
		t.Setenv("CITY_DELIVERY_CHARGES", "kathmandu:cheap")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("money", func(t *testing.T) {
		t.Setenv("REFERRAL_REWARD", "lots")
		_, err := Load()
		assert.Error(t, err)
	})
}
