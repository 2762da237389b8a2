package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beka-birhanu/keymaze/api"
	"github.com/beka-birhanu/keymaze/config"
	"github.com/beka-birhanu/keymaze/game"
	"github.com/beka-birhanu/keymaze/maze"
	"github.com/beka-birhanu/keymaze/service"
	"github.com/beka-birhanu/keymaze/service/i"
	"github.com/beka-birhanu/keymaze/transport"
	general_i "github.com/beka-birhanu/vinom-common/interfaces/general"
	logger "github.com/beka-birhanu/vinom-common/log"
	"google.golang.org/grpc"
)

// Global variables for dependencies
var (
	tcpListener   transport.Listener
	wsListener    *transport.WebSocketListener
	sessionServer i.SessionServer
	healthServer  *api.Health
	grpcServer    *grpc.Server
	httpServer    *http.Server
	appLogger     general_i.Logger
)

func initListeners() {
	var err error
	addr := fmt.Sprintf("%s:%v", config.Envs.Host, config.Envs.Port)
	tcpListener, err = transport.ListenTCP(addr)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Listening for players: %v", err))
		os.Exit(1)
	}
	wsListener = transport.NewWebSocketListener(fmt.Sprintf("%s:%v/ws", config.Envs.Host, config.Envs.HTTPPort))
	appLogger.Info("Player listeners initialized")
}

func initHealth() {
	grpcServer = grpc.NewServer()
	healthServer = api.RegisterHealth(grpcServer)
	appLogger.Info("gRPC health service initialized")
}

func initSessionServer() {
	sessionLogger, err := logger.New("SESSION", config.ColorCyan, os.Stdout)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating session logger: %v", err))
		os.Exit(1)
	}

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	walls, err := maze.Generate(config.Envs.MazeRows, config.Envs.MazeCols, rng)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Generating maze: %v", err))
		os.Exit(1)
	}
	if err := game.ValidateKeyCount(config.Envs.MazeRows, config.Envs.MazeCols, config.Envs.KeyCount); err != nil {
		appLogger.Error(fmt.Sprintf("Checking KEY_COUNT: %v", err))
		os.Exit(1)
	}

	server, err := service.NewServer(&service.Config{
		Listeners: []transport.Listener{tcpListener, wsListener},
		Game:      game.New(walls, config.Envs.KeyCount, rng),
		Logger:    sessionLogger,
		Metrics:   &service.Metrics{},
		OnWin:     healthServer.SessionOver,
	})
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating session server: %v", err))
		os.Exit(1)
	}
	sessionServer = server
	appLogger.Info(fmt.Sprintf("Session initialized with a %dx%d maze and %d keys", config.Envs.MazeRows, config.Envs.MazeCols, config.Envs.KeyCount))
}

func initAdmin() {
	apiLogger, err := logger.New("API", config.ColorPurple, os.Stdout)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating api logger: %v", err))
		os.Exit(1)
	}
	httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%v", config.Envs.Host, config.Envs.HTTPPort),
		Handler:           api.NewHandler(sessionServer, wsListener, apiLogger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	appLogger.Info("Admin API initialized")
}

func main() {
	appLogger, _ = logger.New("APP", config.ColorGreen, os.Stdout)
	initListeners()
	initHealth()
	initSessionServer()
	initAdmin()

	grpcAddr := fmt.Sprintf("%s:%v", config.Envs.Host, config.Envs.GrpcPort)
	grpcConnListener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Listening tcp: %v", err))
		os.Exit(1)
	}
	go func() {
		if err := grpcServer.Serve(grpcConnListener); err != nil {
			appLogger.Error(fmt.Sprintf("Serving gRPC: %v", err))
		}
	}()
	appLogger.Info(fmt.Sprintf("Serving gRPC health at: %s", grpcAddr))

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error(fmt.Sprintf("Serving HTTP: %v", err))
		}
	}()
	appLogger.Info(fmt.Sprintf("Serving admin API at: %s", httpServer.Addr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = sessionServer.Serve(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	if err != nil {
		appLogger.Error(fmt.Sprintf("Session ended: %v", err))
		os.Exit(1)
	}
	appLogger.Info("Session won, shutting down")
}
