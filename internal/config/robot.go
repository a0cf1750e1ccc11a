package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/cybot/internal/serialmux"
)

// DefaultConfigPath is the path to the canonical robot defaults file.
const DefaultConfigPath = "config/robot.defaults.json"

// RobotConfig is the root configuration for one robot. Every field is
// optional; the Get* accessors return the calibrated defaults for anything the
// file leaves out.
type RobotConfig struct {
	// Sweep
	ScanStartDeg  *int `json:"scan_start_deg,omitempty"`
	ScanEndDeg    *int `json:"scan_end_deg,omitempty"`
	ScanStepDeg   *int `json:"scan_step_deg,omitempty"`
	FilterWindow  *int `json:"filter_window,omitempty"`
	AcousticMaxCM *int `json:"acoustic_max_cm,omitempty"`

	// Segmentation
	NoObjectDistanceCM    *int `json:"no_object_distance_cm,omitempty"`
	ContinuityToleranceCM *int `json:"continuity_tolerance_cm,omitempty"`

	// Approach and recovery
	StandoffCM       *int `json:"standoff_cm,omitempty"`
	RecoveryBackupCM *int `json:"recovery_backup_cm,omitempty"`
	RecoveryCreepCM  *int `json:"recovery_creep_cm,omitempty"`
	EscapeTurnDeg    *int `json:"escape_turn_deg,omitempty"`
	ObstacleBackupCM *int `json:"obstacle_backup_cm,omitempty"`

	// Landmarks
	MaxLandmarks        *int `json:"max_landmarks,omitempty"`
	LandmarkRadiusCM    *int `json:"landmark_radius_cm,omitempty"`
	LandmarkToleranceCM *int `json:"landmark_tolerance_cm,omitempty"`

	// Wheel speeds (mm/s)
	MaxSpeed    *int `json:"max_speed,omitempty"`
	CruiseSpeed *int `json:"cruise_speed,omitempty"`
	CrawlSpeed  *int `json:"crawl_speed,omitempty"`
	TurnSpeed   *int `json:"turn_speed,omitempty"`

	// Servo calibration (match register values at 0° and 180°)
	ServoRightMatch *int    `json:"servo_right_match,omitempty"`
	ServoLeftMatch  *int    `json:"servo_left_match,omitempty"`
	ServoSettle     *string `json:"servo_settle,omitempty"` // duration string like "300ms"

	// Timeouts and polling
	RangingTimeout  *string `json:"ranging_timeout,omitempty"`
	BoardTimeout    *string `json:"board_timeout,omitempty"`
	ManeuverTimeout *string `json:"maneuver_timeout,omitempty"`
	OdometryPoll    *string `json:"odometry_poll,omitempty"`

	// Serial links
	OperatorSerial *serialmux.PortOptions `json:"operator_serial,omitempty"`
	BoardSerial    *serialmux.PortOptions `json:"board_serial,omitempty"`
}

func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }

// EmptyRobotConfig returns a RobotConfig with all fields set to nil.
func EmptyRobotConfig() *RobotConfig {
	return &RobotConfig{}
}

// LoadRobotConfig loads a RobotConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file fall back to the defaults in the Get* methods.
func LoadRobotConfig(path string) (*RobotConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRobotConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical robot defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *RobotConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadRobotConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable. It only
// inspects fields that are set.
func (c *RobotConfig) Validate() error {
	start, end, step := c.GetScanStartDeg(), c.GetScanEndDeg(), c.GetScanStepDeg()
	if start < 0 || end > 180 || start > end {
		return fmt.Errorf("scan window must satisfy 0 <= start <= end <= 180, got %d..%d", start, end)
	}
	if step <= 0 {
		return fmt.Errorf("scan_step_deg must be positive, got %d", step)
	}
	if c.FilterWindow != nil && *c.FilterWindow <= 0 {
		return fmt.Errorf("filter_window must be positive, got %d", *c.FilterWindow)
	}
	if c.AcousticMaxCM != nil && *c.AcousticMaxCM <= 0 {
		return fmt.Errorf("acoustic_max_cm must be positive, got %d", *c.AcousticMaxCM)
	}
	if c.ContinuityToleranceCM != nil && *c.ContinuityToleranceCM <= 0 {
		return fmt.Errorf("continuity_tolerance_cm must be positive, got %d", *c.ContinuityToleranceCM)
	}
	if c.StandoffCM != nil && *c.StandoffCM < 0 {
		return fmt.Errorf("standoff_cm must be non-negative, got %d", *c.StandoffCM)
	}
	if c.MaxLandmarks != nil && *c.MaxLandmarks < 0 {
		return fmt.Errorf("max_landmarks must be non-negative, got %d", *c.MaxLandmarks)
	}
	if c.CrawlSpeed != nil && *c.CrawlSpeed <= 0 {
		return fmt.Errorf("crawl_speed must be positive, got %d", *c.CrawlSpeed)
	}
	if c.GetCrawlSpeed() > c.GetCruiseSpeed() {
		return fmt.Errorf("crawl_speed %d exceeds cruise_speed %d", c.GetCrawlSpeed(), c.GetCruiseSpeed())
	}

	for name, v := range map[string]*string{
		"servo_settle":     c.ServoSettle,
		"ranging_timeout":  c.RangingTimeout,
		"board_timeout":    c.BoardTimeout,
		"maneuver_timeout": c.ManeuverTimeout,
		"odometry_poll":    c.OdometryPoll,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, *v)
		}
	}

	for name, opts := range map[string]*serialmux.PortOptions{
		"operator_serial": c.OperatorSerial,
		"board_serial":    c.BoardSerial,
	} {
		if opts == nil {
			continue
		}
		if _, err := opts.Normalize(); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	return nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetScanStartDeg returns the first sweep bearing (default 0).
func (c *RobotConfig) GetScanStartDeg() int { return intOr(c.ScanStartDeg, 0) }

// GetScanEndDeg returns the last sweep bearing (default 180).
func (c *RobotConfig) GetScanEndDeg() int { return intOr(c.ScanEndDeg, 180) }

// GetScanStepDeg returns the sweep increment (default 2).
func (c *RobotConfig) GetScanStepDeg() int { return intOr(c.ScanStepDeg, 2) }

// GetFilterWindow returns the rolling average window (default 10).
func (c *RobotConfig) GetFilterWindow() int { return intOr(c.FilterWindow, 10) }

// GetAcousticMaxCM returns the acoustic clamp (default 250).
func (c *RobotConfig) GetAcousticMaxCM() int { return intOr(c.AcousticMaxCM, 250) }

// GetNoObjectDistanceCM returns the optical "nothing there" threshold (default 50).
func (c *RobotConfig) GetNoObjectDistanceCM() int { return intOr(c.NoObjectDistanceCM, 50) }

// GetContinuityToleranceCM returns the surface continuity tolerance (default 3).
func (c *RobotConfig) GetContinuityToleranceCM() int { return intOr(c.ContinuityToleranceCM, 3) }

// GetStandoffCM returns the approach stand-off (default 10).
func (c *RobotConfig) GetStandoffCM() int { return intOr(c.StandoffCM, 10) }

// GetRecoveryBackupCM returns the recovery reverse distance (default 5).
func (c *RobotConfig) GetRecoveryBackupCM() int { return intOr(c.RecoveryBackupCM, 5) }

// GetRecoveryCreepCM returns the recovery sidestep distance (default 10).
func (c *RobotConfig) GetRecoveryCreepCM() int { return intOr(c.RecoveryCreepCM, 10) }

// GetEscapeTurnDeg returns the magnitude of the bump escape turn (default 90).
func (c *RobotConfig) GetEscapeTurnDeg() int { return intOr(c.EscapeTurnDeg, 90) }

// GetObstacleBackupCM returns the reverse distance of the obstacle course demo (default 15).
func (c *RobotConfig) GetObstacleBackupCM() int { return intOr(c.ObstacleBackupCM, 15) }

// GetMaxLandmarks returns the landmark set capacity (default 5).
func (c *RobotConfig) GetMaxLandmarks() int { return intOr(c.MaxLandmarks, 5) }

// GetLandmarkRadiusCM returns the assumed landmark radius (default 6).
func (c *RobotConfig) GetLandmarkRadiusCM() int { return intOr(c.LandmarkRadiusCM, 6) }

// GetLandmarkToleranceCM returns the per-axis dedup tolerance (default 50).
func (c *RobotConfig) GetLandmarkToleranceCM() int { return intOr(c.LandmarkToleranceCM, 50) }

// GetMaxSpeed returns the manual drive speed in mm/s (default 500).
func (c *RobotConfig) GetMaxSpeed() int { return intOr(c.MaxSpeed, 500) }

// GetCruiseSpeed returns the autonomous drive speed in mm/s (default 200).
func (c *RobotConfig) GetCruiseSpeed() int { return intOr(c.CruiseSpeed, 200) }

// GetCrawlSpeed returns the final-approach speed in mm/s (default 50).
func (c *RobotConfig) GetCrawlSpeed() int { return intOr(c.CrawlSpeed, 50) }

// GetTurnSpeed returns the tank-turn wheel speed in mm/s (default 50).
func (c *RobotConfig) GetTurnSpeed() int { return intOr(c.TurnSpeed, 50) }

// GetServoRightMatch returns the servo match value at 0° (default 49295, bot 23).
func (c *RobotConfig) GetServoRightMatch() int { return intOr(c.ServoRightMatch, 49295) }

// GetServoLeftMatch returns the servo match value at 180° (default 21764, bot 23).
func (c *RobotConfig) GetServoLeftMatch() int { return intOr(c.ServoLeftMatch, 21764) }

// GetServoSettle returns the pause after each servo move.
func (c *RobotConfig) GetServoSettle() time.Duration {
	return durationOr(c.ServoSettle, 300*time.Millisecond)
}

// GetRangingTimeout bounds one echo capture.
func (c *RobotConfig) GetRangingTimeout() time.Duration {
	return durationOr(c.RangingTimeout, 100*time.Millisecond)
}

// GetBoardTimeout bounds one request/reply on the board link.
func (c *RobotConfig) GetBoardTimeout() time.Duration {
	return durationOr(c.BoardTimeout, 500*time.Millisecond)
}

// GetManeuverTimeout bounds one drive or turn primitive.
func (c *RobotConfig) GetManeuverTimeout() time.Duration {
	return durationOr(c.ManeuverTimeout, 30*time.Second)
}

// GetOdometryPoll returns the pause between odometry polls.
func (c *RobotConfig) GetOdometryPoll() time.Duration {
	return durationOr(c.OdometryPoll, 15*time.Millisecond)
}

// GetOperatorSerial returns the operator UART options (default 115200 8N1).
func (c *RobotConfig) GetOperatorSerial() serialmux.PortOptions {
	return portOr(c.OperatorSerial)
}

// GetBoardSerial returns the sensor board UART options (default 115200 8N1).
func (c *RobotConfig) GetBoardSerial() serialmux.PortOptions {
	return portOr(c.BoardSerial)
}

func portOr(opts *serialmux.PortOptions) serialmux.PortOptions {
	if opts == nil {
		return serialmux.PortOptions{BaudRate: serialmux.DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}
	}
	return *opts
}
