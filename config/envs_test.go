package config

import "testing"

func TestGetEnvDefaults(t *testing.T) {
	t.Setenv("MAZE_TEST_PORT", "27000")
	if got := getEnvAsInt("MAZE_TEST_PORT", 1); got != 27000 {
		t.Fatalf("getEnvAsInt = %d, want 27000", got)
	}
	if got := getEnvAsInt("MAZE_TEST_UNSET", 15); got != 15 {
		t.Fatalf("getEnvAsInt default = %d, want 15", got)
	}
	t.Setenv("MAZE_TEST_ADDR", "ws://example:8080/ws")
	if got := getEnv("MAZE_TEST_ADDR", "localhost:26000"); got != "ws://example:8080/ws" {
		t.Fatalf("getEnv = %q", got)
	}
	if got := getEnv("MAZE_TEST_ADDR_UNSET", "localhost:26000"); got != "localhost:26000" {
		t.Fatalf("getEnv default = %q", got)
	}
}
