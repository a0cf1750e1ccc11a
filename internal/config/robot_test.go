package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEmptyRobotConfigUsesDefaults(t *testing.T) {
	cfg := EmptyRobotConfig()

	if cfg.ScanStepDeg != nil {
		t.Errorf("expected ScanStepDeg to be nil, got %v", *cfg.ScanStepDeg)
	}

	cases := []struct {
		name string
		got  int
		want int
	}{
		{"scan start", cfg.GetScanStartDeg(), 0},
		{"scan end", cfg.GetScanEndDeg(), 180},
		{"scan step", cfg.GetScanStepDeg(), 2},
		{"filter window", cfg.GetFilterWindow(), 10},
		{"acoustic max", cfg.GetAcousticMaxCM(), 250},
		{"no object", cfg.GetNoObjectDistanceCM(), 50},
		{"tolerance", cfg.GetContinuityToleranceCM(), 3},
		{"standoff", cfg.GetStandoffCM(), 10},
		{"recovery backup", cfg.GetRecoveryBackupCM(), 5},
		{"recovery creep", cfg.GetRecoveryCreepCM(), 10},
		{"escape turn", cfg.GetEscapeTurnDeg(), 90},
		{"obstacle backup", cfg.GetObstacleBackupCM(), 15},
		{"max landmarks", cfg.GetMaxLandmarks(), 5},
		{"landmark radius", cfg.GetLandmarkRadiusCM(), 6},
		{"landmark tolerance", cfg.GetLandmarkToleranceCM(), 50},
		{"max speed", cfg.GetMaxSpeed(), 500},
		{"cruise speed", cfg.GetCruiseSpeed(), 200},
		{"crawl speed", cfg.GetCrawlSpeed(), 50},
		{"turn speed", cfg.GetTurnSpeed(), 50},
		{"servo right", cfg.GetServoRightMatch(), 49295},
		{"servo left", cfg.GetServoLeftMatch(), 21764},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, tc.got)
		}
	}

	if got := cfg.GetServoSettle(); got != 300*time.Millisecond {
		t.Errorf("expected servo settle 300ms, got %v", got)
	}
	if got := cfg.GetManeuverTimeout(); got != 30*time.Second {
		t.Errorf("expected maneuver timeout 30s, got %v", got)
	}
	if got := cfg.GetOperatorSerial(); got.BaudRate != 115200 || got.Parity != "N" {
		t.Errorf("unexpected operator serial defaults: %+v", got)
	}
}

func TestLoadRobotConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "robot.json")

	configJSON := `{
		"scan_step_deg": 4,
		"filter_window": 5,
		"max_landmarks": 3,
		"board_timeout": "250ms",
		"board_serial": {"baud_rate": 9600}
	}`
	if err := os.WriteFile(configPath, []byte(configJSON), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadRobotConfig(configPath)
	if err != nil {
		t.Fatalf("LoadRobotConfig failed: %v", err)
	}

	if cfg.ScanStepDeg == nil || *cfg.ScanStepDeg != 4 {
		t.Errorf("expected ScanStepDeg 4, got %v", cfg.ScanStepDeg)
	}
	if got := cfg.GetFilterWindow(); got != 5 {
		t.Errorf("expected filter window 5, got %d", got)
	}
	if got := cfg.GetMaxLandmarks(); got != 3 {
		t.Errorf("expected max landmarks 3, got %d", got)
	}
	if got := cfg.GetBoardTimeout(); got != 250*time.Millisecond {
		t.Errorf("expected board timeout 250ms, got %v", got)
	}
	if got := cfg.GetBoardSerial().BaudRate; got != 9600 {
		t.Errorf("expected board baud 9600, got %d", got)
	}
	// Omitted values still resolve to defaults.
	if got := cfg.GetCruiseSpeed(); got != 200 {
		t.Errorf("expected default cruise speed 200, got %d", got)
	}
}

func TestLoadRobotConfigRejects(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(tmpDir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
		return path
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", write("robot.yaml", `{}`), ".json extension"},
		{"missing file", filepath.Join(tmpDir, "nope.json"), "failed to stat"},
		{"bad json", write("bad.json", `{not json`), "failed to parse"},
		{"zero step", write("step.json", `{"scan_step_deg": 0}`), "scan_step_deg"},
		{"reversed window", write("window.json", `{"scan_start_deg": 120, "scan_end_deg": 60}`), "scan window"},
		{"past 180", write("wide.json", `{"scan_end_deg": 200}`), "scan window"},
		{"zero filter", write("filter.json", `{"filter_window": 0}`), "filter_window"},
		{"crawl above cruise", write("speed.json", `{"crawl_speed": 300}`), "exceeds cruise_speed"},
		{"bad duration", write("dur.json", `{"odometry_poll": "soon"}`), "odometry_poll"},
		{"bad serial", write("serial.json", `{"board_serial": {"data_bits": 9}}`), "board_serial"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRobotConfig(tt.path)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadRobotConfigTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.json")
	big := make([]byte, 1024*1024+1)
	for i := range big {
		big[i] = ' '
	}
	if err := os.WriteFile(path, big, 0644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if _, err := LoadRobotConfig(path); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected too large error, got %v", err)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.ScanEndDeg == nil {
		t.Fatal("expected defaults file to set scan_end_deg")
	}
	if got := cfg.GetScanEndDeg(); got != 180 {
		t.Errorf("expected scan end 180, got %d", got)
	}
	if got := cfg.GetServoRightMatch(); got != 49295 {
		t.Errorf("expected servo right match 49295, got %d", got)
	}
	if got := cfg.GetOdometryPoll(); got != 15*time.Millisecond {
		t.Errorf("expected odometry poll 15ms, got %v", got)
	}
}

func TestDurationFallsBackOnParseError(t *testing.T) {
	cfg := &RobotConfig{RangingTimeout: ptrString("bogus"), MaxSpeed: ptrInt(400)}
	if got := cfg.GetRangingTimeout(); got != 100*time.Millisecond {
		t.Errorf("expected fallback 100ms, got %v", got)
	}
	if got := cfg.GetMaxSpeed(); got != 400 {
		t.Errorf("expected max speed 400, got %d", got)
	}
}
