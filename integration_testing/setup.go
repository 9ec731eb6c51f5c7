//go:build integration

package integration_testing

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/2beens/formcheck/internal"
	"github.com/2beens/formcheck/internal/config"

	"github.com/go-redis/redis/v8"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

const (
	serverPort     = 9000
	serverHost     = "localhost"
	testRateLimit  = 120
	dockerMaxWait  = 60 * time.Second
	serverMaxStart = 5 * time.Second
)

var serverEndpoint = fmt.Sprintf("http://%s:%d", serverHost, serverPort)

type Suite struct {
	RedisPort  string
	dockerPool *dockertest.Pool
	server     *internal.Server
	teardown   []func()
}

func newSuite(ctx context.Context) *Suite {
	var err error
	suite := &Suite{
		teardown: make([]func(), 0),
	}

	// uses a sensible default on windows (tcp/http) and linux/osx (socket)
	suite.dockerPool, err = dockertest.NewPool("")
	if err != nil {
		log.Fatalf("could not create new dockertest pool: %s", err)
	}
	suite.dockerPool.MaxWait = dockerMaxWait

	// uses pool to try to connect to Docker
	if err = suite.dockerPool.Client.Ping(); err != nil {
		log.Fatalf("could not ping dockertest pool: %s", err)
	}

	suite.RedisPort, err = suite.redisSetup()
	if err != nil {
		suite.cleanup()
		log.Fatalf("failed to setup redis: %s", err)
	}

	cfg := getTestConfig(suite.RedisPort)
	suite.server, err = internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:                  cfg,
			VersionInfo:             "test-version-info",
			RedisPassword:           "",
			HoneycombTracingEnabled: false,
		},
	)
	if err != nil {
		suite.cleanup()
		log.Fatalf("new server: %s", err)
	}

	suite.server.Serve(cfg.Host, cfg.Port)
	if err := waitForServer(net.JoinHostPort(serverHost, fmt.Sprint(serverPort))); err != nil {
		suite.cleanup()
		log.Fatalf("server not up: %s", err)
	}

	return suite
}

func (s *Suite) cleanup() {
	if s.server != nil {
		s.server.GracefulShutdown()
	}
	for _, teardown := range s.teardown {
		teardown()
	}
}

func getTestConfig(redisPort string) *config.Config {
	cfg := config.Default()
	cfg.Host = serverHost
	cfg.Port = serverPort
	cfg.RedisHost = "localhost"
	cfg.RedisPort = redisPort
	cfg.PrometheusMetricsPort = "9002"
	cfg.RateLimitPerMin = testRateLimit
	cfg.LogLevel = "error"
	return cfg
}

func (s *Suite) redisSetup() (string, error) {
	redisResource, err := s.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Name:       "formcheck-redis",
		Tag:        "6.2",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	if err != nil {
		return "", fmt.Errorf("run redis: %s", err)
	}

	s.teardown = append(s.teardown, func() {
		if err := s.dockerPool.Purge(redisResource); err != nil {
			log.Printf("purge redis: %s", err)
		}
	})

	redisPort := redisResource.GetPort("6379/tcp")
	if err := s.dockerPool.Retry(func() error {
		rdb := redis.NewClient(&redis.Options{
			Addr: net.JoinHostPort("localhost", redisPort),
		})
		defer rdb.Close()
		return rdb.Ping(context.Background()).Err()
	}); err != nil {
		return "", fmt.Errorf("wait for redis: %s", err)
	}

	return redisPort, nil
}

func waitForServer(addr string) error {
	deadline := time.Now().Add(serverMaxStart)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			return conn.Close()
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("%s not reachable after %s", addr, serverMaxStart)
}
