// Package config loads the documented configuration sections (§9:
// polling, connection, cabin_array, write_back/fault_write, cycle_detection,
// runtime, health.checks, ipc.api_server, ipc.alarm_pusher) into one typed
// record. A malformed YAML document is treated as empty; defaults apply.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config is the full typed configuration record handed to every component
// at construction time.
type Config struct {
	Polling    PollingConfig    `yaml:"polling"`
	Connection ConnectionConfig `yaml:"connection"`
	CabinArray CabinArrayConfig `yaml:"cabin_array"`
	WriteBack  WriteBackConfig  `yaml:"write_back"`
	FaultWrite FaultWriteConfig `yaml:"fault_write"`
	Cycle      CycleConfig      `yaml:"cycle_detection"`
	Runtime    RuntimeConfig    `yaml:"runtime"`
	Health     HealthConfig     `yaml:"health"`
	IPC        IPCConfig        `yaml:"ipc"`
}

type PollingConfig struct {
	IntervalMS int `yaml:"interval_ms"`
	BufferSize int `yaml:"buffer_size"`
}

type ConnectionConfig struct {
	IP                 string  `yaml:"ip"`
	Rack               int     `yaml:"rack"`
	Slot               int     `yaml:"slot"`
	ReconnectIntervalS float64 `yaml:"reconnect_interval_s"`
}

type CabinArrayConfig struct {
	DBNumber       int `yaml:"db_number"`
	StartOffset    int `yaml:"start_offset"`
	CabinCount     int `yaml:"cabin_count"`
	CabinSizeBytes int `yaml:"cabin_size_bytes"`
}

type WriteBackConfig struct {
	DBNumber   int `yaml:"db_number"`
	ByteOffset int `yaml:"byte_offset"`
	Scale      int `yaml:"scale"`
	Base       int `yaml:"base"`
}

type FaultWriteConfig struct {
	DBNumber   int `yaml:"db_number"`
	ByteOffset int `yaml:"byte_offset"`
}

type CycleConfig struct {
	StartPressureDrop      float64 `yaml:"start_pressure_drop"`
	EndPressureRise        float64 `yaml:"end_pressure_rise"`
	MinCollectionPoints    int     `yaml:"min_collection_points"`
	MaxCollectionPoints    int     `yaml:"max_collection_points"`
	MaxCollectionDurationS float64 `yaml:"max_collection_duration_s"`
	CollectionTimeoutS     float64 `yaml:"collection_timeout_s"`
	IdlePressureMin        float64 `yaml:"idle_pressure_min"`
}

type RuntimeConfig struct {
	Threshold    float64     `yaml:"threshold"`
	FeatureMode  string      `yaml:"feature_mode"` // "7d" or "6d"
	LoopInterval int         `yaml:"loop_interval_ms"`
	Database     DatabaseRef `yaml:"database"`
}

type DatabaseRef struct {
	Path string `yaml:"path"`
}

type HealthConfig struct {
	CheckIntervalS    float64         `yaml:"check_interval_s"`
	MaxLatencyMS      float64         `yaml:"max_latency_ms"`
	DiskFreeMinMB     float64         `yaml:"disk_free_min_mb"`
	MaxStuckDurationS float64         `yaml:"max_stuck_duration_s"`
	MaxStoreSizeMB    float64         `yaml:"max_store_size_mb"`
	Checks            map[string]bool `yaml:"checks"`
}

type IPCConfig struct {
	APIServer   APIServerConfig   `yaml:"api_server"`
	AlarmPusher AlarmPusherConfig `yaml:"alarm_pusher"`
	EventBus    EventBusConfig    `yaml:"eventbus"`
}

type APIServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	APIKey  string `yaml:"api_key"`
}

type AlarmTarget struct {
	URL      string  `yaml:"url"`
	TimeoutS float64 `yaml:"timeout_s"`
	Retries  int     `yaml:"retries"`
	Secret   string  `yaml:"secret"`
}

type AlarmPusherConfig struct {
	Enabled             bool          `yaml:"enabled"`
	Targets             []AlarmTarget `yaml:"targets"`
	PushOnLeak          bool          `yaml:"push_on_leak"`
	MinFaultLevelToPush string        `yaml:"min_fault_level_to_push"`
}

type EventBusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns every documented default value.
func Default() Config {
	return Config{
		Polling:    PollingConfig{IntervalMS: 10, BufferSize: 10000},
		Connection: ConnectionConfig{IP: "192.168.0.10", Rack: 0, Slot: 1, ReconnectIntervalS: 5},
		CabinArray: CabinArrayConfig{DBNumber: 9, StartOffset: 0, CabinCount: 25, CabinSizeBytes: 12},
		WriteBack:  WriteBackConfig{DBNumber: 9, ByteOffset: 200, Scale: 10, Base: 0},
		FaultWrite: FaultWriteConfig{DBNumber: 9, ByteOffset: 202},
		Cycle: CycleConfig{
			StartPressureDrop:      50,
			EndPressureRise:        50,
			MinCollectionPoints:    100,
			MaxCollectionPoints:    3000,
			MaxCollectionDurationS: 45,
			CollectionTimeoutS:     60,
		},
		Runtime: RuntimeConfig{
			Threshold:    0.3,
			FeatureMode:  "7d",
			LoopInterval: 50,
			Database:     DatabaseRef{Path: "ldpj.db"},
		},
		Health: HealthConfig{
			CheckIntervalS:    60,
			MaxLatencyMS:      500,
			DiskFreeMinMB:     500,
			MaxStuckDurationS: 120,
			MaxStoreSizeMB:    450,
		},
		IPC: IPCConfig{
			APIServer: APIServerConfig{Enabled: false, Host: "0.0.0.0", Port: 8080},
			AlarmPusher: AlarmPusherConfig{
				Enabled:             false,
				PushOnLeak:          true,
				MinFaultLevelToPush: "WARNING",
			},
			EventBus: EventBusConfig{Enabled: false},
		},
	}
}

// Load reads path as YAML over the documented defaults, loads a .env file
// from the working directory if present, then applies environment variable
// overrides. A
// missing or malformed YAML document yields the defaults rather than
// propagating an error — configuration failures are non-fatal by design.
func Load(path string) Config {
	cfg := Default()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			var parsed Config
			if err := yaml.Unmarshal(data, &parsed); err == nil {
				cfg = mergeNonZero(cfg, parsed)
			}
		}
	}

	_ = godotenv.Load() // .env is optional; absence is not an error

	cfg.applyEnvOverrides()
	return cfg
}

// mergeNonZero overlays override onto base. The two polling fields are
// merged one by one. Every other section is replaced as a whole once its
// key field in override is set (connection.ip, cabin_array.cabin_count,
// write_back.db_number, fault_write.db_number,
// cycle_detection.start_pressure_drop, runtime.feature_mode,
// health.check_interval_s, ipc.api_server port or enabled,
// ipc.alarm_pusher targets, ipc.eventbus enabled); fields left out of such
// a section take their zero value, not the default. A section whose key
// field is unset keeps its defaults, whatever else it contains.
func mergeNonZero(base, override Config) Config {
	if override.Polling.IntervalMS != 0 {
		base.Polling.IntervalMS = override.Polling.IntervalMS
	}
	if override.Polling.BufferSize != 0 {
		base.Polling.BufferSize = override.Polling.BufferSize
	}
	if override.Connection.IP != "" {
		base.Connection = override.Connection
	}
	if override.CabinArray.CabinCount != 0 {
		base.CabinArray = override.CabinArray
	}
	if override.WriteBack.DBNumber != 0 {
		base.WriteBack = override.WriteBack
	}
	if override.FaultWrite.DBNumber != 0 {
		base.FaultWrite = override.FaultWrite
	}
	if override.Cycle.StartPressureDrop != 0 {
		base.Cycle = override.Cycle
	}
	if override.Runtime.FeatureMode != "" {
		base.Runtime = override.Runtime
	}
	if override.Health.CheckIntervalS != 0 {
		base.Health = override.Health
	}
	if override.IPC.APIServer.Port != 0 || override.IPC.APIServer.Enabled {
		base.IPC.APIServer = override.IPC.APIServer
	}
	if len(override.IPC.AlarmPusher.Targets) > 0 {
		base.IPC.AlarmPusher = override.IPC.AlarmPusher
	}
	if override.IPC.EventBus.Enabled {
		base.IPC.EventBus = override.IPC.EventBus
	}
	return base
}

func (c *Config) applyEnvOverrides() {
	c.Connection.IP = getEnv("LDPJ_PLC_IP", c.Connection.IP)
	c.Runtime.Database.Path = getEnv("LDPJ_DB_PATH", c.Runtime.Database.Path)
	c.IPC.APIServer.APIKey = getEnv("LDPJ_API_KEY", c.IPC.APIServer.APIKey)

	if v := getEnvFloat("LDPJ_INFERENCE_THRESHOLD", 0); v > 0 {
		c.Runtime.Threshold = v
	}
	if v := getEnvInt("LDPJ_CABIN_COUNT", 0); v > 0 {
		c.CabinArray.CabinCount = v
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
