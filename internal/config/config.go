// Package config provides runtime configuration for the Redis custom resource.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the knobs for endpoint resolution, retries and the callback.
type Config struct {
	LogLevel string

	ManageHostPrefix   string
	ManageDomainSuffix string
	ManagePort         int

	DNSAttempts int
	DNSInterval time.Duration

	CreateAttempts int
	CreateTimeout  time.Duration
	InitAttempts   int
	InitTimeout    time.Duration
	DeleteAttempts int
	DeleteTimeout  time.Duration
	RetryInterval  time.Duration

	VolumeWaitAttempts int
	VolumeWaitInterval time.Duration

	CallbackTimeout time.Duration
	// CallbackReserve is kept back from the invocation deadline for the response.
	CallbackReserve time.Duration

	ReserveCPUUnits      int64
	ReserveMemMB         int64
	ClusterModeMinShards int64
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		LogLevel:             getenv("LOG_LEVEL", "info"),
		ManageHostPrefix:     getenv("MANAGE_HOST_PREFIX", "firecamp-manageserver."),
		ManageDomainSuffix:   getenv("MANAGE_DOMAIN_SUFFIX", "-firecamp.com"),
		ManagePort:           atoienv("MANAGE_PORT", 27040),
		DNSAttempts:          atoienv("DNS_ATTEMPTS", 30),
		DNSInterval:          durenvs("DNS_INTERVAL_SECS", 3),
		CreateAttempts:       atoienv("CREATE_ATTEMPTS", 3),
		CreateTimeout:        durenvs("CREATE_TIMEOUT_SECS", 60),
		InitAttempts:         atoienv("INIT_ATTEMPTS", 40),
		InitTimeout:          durenvs("INIT_TIMEOUT_SECS", 20),
		DeleteAttempts:       atoienv("DELETE_ATTEMPTS", 3),
		DeleteTimeout:        durenvs("DELETE_TIMEOUT_SECS", 160),
		RetryInterval:        durenvs("RETRY_INTERVAL_SECS", 5),
		VolumeWaitAttempts:   atoienv("VOLUME_WAIT_ATTEMPTS", 5),
		VolumeWaitInterval:   durenvs("VOLUME_WAIT_INTERVAL_SECS", 5),
		CallbackTimeout:      durenvs("CALLBACK_TIMEOUT_SECS", 30),
		CallbackReserve:      durenvs("CALLBACK_RESERVE_SECS", 10),
		ReserveCPUUnits:      int64(atoienv("RESERVE_CPU_UNITS", 256)),
		ReserveMemMB:         int64(atoienv("RESERVE_MEM_MB", 256)),
		ClusterModeMinShards: int64(atoienv("CLUSTER_MODE_MIN_SHARDS", 3)),
	}
}
