// internal/config/config.go
package config

type Config struct {
	Logging LoggingConfig  `yaml:"logging" toml:"logging"`
	HTTP    HTTPConfig     `yaml:"http" toml:"http"`
	Archive *ArchiveConfig `yaml:"archive" toml:"archive"`
	Devices []DeviceConfig `yaml:"devices" toml:"devices"`
}

// ---- AMBIENT ----

type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"` // debug | info | warning | error
	File  string `yaml:"file" toml:"file"`   // optional, console always on
}

// HTTPConfig serves /metrics and /live. Empty Listen disables both.
type HTTPConfig struct {
	Listen  string `yaml:"listen" toml:"listen"`
	Metrics bool   `yaml:"metrics" toml:"metrics"`
	Live    bool   `yaml:"live" toml:"live"`
}

// ArchiveConfig enables the sqlite record archive.
type ArchiveConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	ID         string `yaml:"id" toml:"id"`
	PacketType string `yaml:"packet_type" toml:"packet_type"`

	Connection ConnectionConfig `yaml:"connection" toml:"connection"`
	Poll       PollConfig       `yaml:"poll" toml:"poll"`
	Layout     LayoutConfig     `yaml:"layout" toml:"layout"`
	Delta      DeltaConfig      `yaml:"delta" toml:"delta"`
	Setup      SetupConfig      `yaml:"setup" toml:"setup"`

	// Device status block (optional, opt-in)
	StatusSlot *uint16 `yaml:"status_slot" toml:"status_slot"`
	DeviceName string  `yaml:"device_name" toml:"device_name"`

	Targets []TargetConfig `yaml:"targets" toml:"targets"`
}

// ---- CONNECTION ----

const (
	ConnSocket = "socket"
	ConnSerial = "serial"
)

type ConnectionConfig struct {
	Type string `yaml:"type" toml:"type"` // socket | serial

	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`

	SerialPort string `yaml:"serial_port" toml:"serial_port"`
	BaudRate   int    `yaml:"baud_rate" toml:"baud_rate"`

	TimeoutMs   int `yaml:"timeout_ms" toml:"timeout_ms"`
	SendDelayMs int `yaml:"send_delay_ms" toml:"send_delay_ms"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms" toml:"interval_ms"`
	MaxTries   int `yaml:"max_tries" toml:"max_tries"`
}

// ---- PACKET GEOMETRY ----

type LayoutConfig struct {
	Channels int `yaml:"channels" toml:"channels"`
	Slots    int `yaml:"slots" toml:"slots"`
	MaxFrame int `yaml:"max_frame" toml:"max_frame"` // ascii only

	// Counters and sensors decoded from the auxiliary banks (first N).
	// Unset means all; 0 switches the bank off.
	Pulses       *int `yaml:"pulses" toml:"pulses"`
	Temperatures *int `yaml:"temperatures" toml:"temperatures"`
}

// ---- DERIVED VALUES ----

type DeltaConfig struct {
	StaleThresholdS int      `yaml:"stale_threshold_s" toml:"stale_threshold_s"`
	EnergyUnit      string   `yaml:"energy_unit" toml:"energy_unit"`
	ReversePolarity bool     `yaml:"reverse_polarity" toml:"reverse_polarity"`
	Emit            []string `yaml:"emit" toml:"emit"` // empty => all
}

// ---- DEVICE SETUP ----

type SetupConfig struct {
	Enabled  bool `yaml:"enabled" toml:"enabled"`
	SetClock bool `yaml:"set_clock" toml:"set_clock"`
}

// ---- TARGET ----

const (
	ProtoModbus = "modbus" // Modbus TCP, FC16
	ProtoIngest = "ingest" // Raw Ingest v1
)

type TargetConfig struct {
	ID           uint32 `yaml:"id" toml:"id"`
	Endpoint     string `yaml:"endpoint" toml:"endpoint"`
	Protocol     string `yaml:"protocol" toml:"protocol"`             // modbus | ingest
	UnitID       uint8  `yaml:"unit_id" toml:"unit_id"`               // data memory
	StatusUnitID *uint8 `yaml:"status_unit_id" toml:"status_unit_id"` // per-target status memory (optional)
	TimeoutMs    int    `yaml:"timeout_ms" toml:"timeout_ms"`

	// Registers maps observation name (ch1_a_power) to the first of two
	// holding registers receiving it as a big-endian float32.
	Registers map[string]uint16 `yaml:"registers" toml:"registers"`
}
