package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application's configuration values.
type Config struct {
	Host     string // Interface the server binds
	Port     int    // TCP port for game clients
	GrpcPort int    // Port for the gRPC health service
	HTTPPort int    // Port for admin HTTP and WebSocket game clients

	MazeRows int // Maze height in cells
	MazeCols int // Maze width in cells
	KeyCount int // Keys spawned once two players have joined

	ServerAddr string // Address the client dials; ws:// URLs select WebSocket
	ClientLog  string // File the client logs to
}

// Envs holds the application's configuration loaded from environment variables.
var Envs = initConfig()

// initConfig initializes and returns the application configuration.
// It loads environment variables from a .env file.
func initConfig() Config {
	// Load .env file if available
	if err := godotenv.Load(); err != nil {
		log.Printf("[APP] [INFO] .env file not found or could not be loaded: %v", err)
	}

	return Config{
		Host:     getEnv("MAZE_HOST", ""),
		Port:     getEnvAsInt("MAZE_PORT", 26000),
		GrpcPort: getEnvAsInt("GRPC_PORT", 26001),
		HTTPPort: getEnvAsInt("HTTP_PORT", 8080),

		MazeRows: getEnvAsInt("MAZE_ROWS", 15),
		MazeCols: getEnvAsInt("MAZE_COLS", 21),
		KeyCount: getEnvAsInt("KEY_COUNT", 20),

		ServerAddr: getEnv("SERVER_ADDR", "localhost:26000"),
		ClientLog:  getEnv("CLIENT_LOG", "client.log"),
	}
}

// getEnv retrieves the value of an environment variable or returns def if it is not set.
func getEnv(key, def string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return def
}

// getEnvAsInt retrieves the value of an environment variable as an integer or logs a fatal error if it cannot be parsed.
func getEnvAsInt(key string, def int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return def
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Fatalf("%s[APP]%s %s[FATAL]%s Environment variable %s must be an integer: %v", ColorGreen, ColorReset, ColorRed, ColorReset, key, err)
	}
	return value
}
