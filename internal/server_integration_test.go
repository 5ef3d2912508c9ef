//go:build integration_test || all_tests

package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/suite"

	"github.com/2beens/runcoach/internal/account"
	"github.com/2beens/runcoach/internal/auth"
	"github.com/2beens/runcoach/internal/config"
	"github.com/2beens/runcoach/internal/db"
	"github.com/2beens/runcoach/internal/fitness"
	"github.com/2beens/runcoach/internal/middleware"
	"github.com/2beens/runcoach/internal/users"
	"github.com/2beens/runcoach/pkg"
)

const (
	testServerPort = 9000
	testServerHost = "127.0.0.1"
)

var testServerEndpoint = fmt.Sprintf("http://%s:%d", testServerHost, testServerPort)

type ServerIntegrationTestSuite struct {
	suite.Suite

	dbPool      *pgxpool.Pool
	redisClient *redis.Client
	dockerPool  *dockertest.Pool
	server      *Server
	teardown    []func()
}

func TestServerIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(ServerIntegrationTestSuite))
}

func (s *ServerIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()
	s.teardown = make([]func(), 0)

	var err error
	s.dockerPool, err = dockertest.NewPool("")
	s.Require().NoError(err, "could not create new dockertest pool")
	s.Require().NoError(s.dockerPool.Client.Ping(), "could not ping dockertest pool")

	redisPort, err := s.redisSetup()
	if err != nil {
		s.cleanup()
		s.FailNow("failed to setup redis", err)
	}

	pgPort, err := s.postgresSetup(ctx)
	if err != nil {
		s.cleanup()
		s.FailNow("failed to setup postgres", err)
	}

	encryptionKey, err := pkg.GenerateRandomHex(32)
	s.Require().NoError(err)

	cfg, err := config.Parse("dev", fmt.Sprintf(`
[development]
host = "%s"
port = %d
postgres_host = "localhost"
postgres_port = "%s"
postgres_db_name = "runcoach_test"
redis_host = "localhost"
redis_port = "%s"
prometheus_metrics_port = "9002"
`, testServerHost, testServerPort, pgPort, redisPort))
	s.Require().NoError(err)

	s.server, err = NewServer(ctx, NewServerParams{
		Config:      cfg,
		Secrets:     &config.Secrets{EncryptionKey: encryptionKey},
		VersionInfo: "test-version-info",
	})
	if err != nil {
		s.cleanup()
		s.FailNow("new server", err)
	}

	s.server.Serve(cfg.Host, cfg.Port)

	s.Require().Eventually(func() bool {
		conn, err := net.Dial("tcp", net.JoinHostPort(testServerHost, fmt.Sprint(testServerPort)))
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 5*time.Second, 50*time.Millisecond)
}

func (s *ServerIntegrationTestSuite) TearDownSuite() {
	s.cleanup()
}

func (s *ServerIntegrationTestSuite) cleanup() {
	if s.server != nil {
		s.server.GracefulShutdown()
	}
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	for _, teardown := range s.teardown {
		teardown()
	}
}

func (s *ServerIntegrationTestSuite) redisSetup() (string, error) {
	redisResource, err := s.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Name:       "runcoach-test-redis",
		Tag:        "6.2",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		return "", fmt.Errorf("run redis: %w", err)
	}
	s.teardown = append(s.teardown, func() {
		if err := redisResource.Close(); err != nil {
			fmt.Printf("redis teardown: %s\n", err)
		}
	})

	redisPort := redisResource.GetPort("6379/tcp")
	s.redisClient = redis.NewClient(&redis.Options{Addr: net.JoinHostPort("localhost", redisPort)})
	if err := s.dockerPool.Retry(func() error {
		return s.redisClient.Ping(context.Background()).Err()
	}); err != nil {
		return "", fmt.Errorf("connect to redis: %w", err)
	}
	return redisPort, nil
}

func (s *ServerIntegrationTestSuite) postgresSetup(ctx context.Context) (string, error) {
	pgResource, err := s.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_DB=runcoach_test",
			"POSTGRES_HOST_AUTH_METHOD=trust",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	if err != nil {
		return "", fmt.Errorf("dockerpool run postgres: %w", err)
	}
	s.teardown = append(s.teardown, func() {
		if err := pgResource.Close(); err != nil {
			fmt.Printf("postgres teardown: %s\n", err)
		}
	})

	pgPort := pgResource.GetPort("5432/tcp")
	s.dbPool, err = db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost: "localhost",
		DBPort: pgPort,
		DBName: "runcoach_test",
	})
	if err != nil {
		return "", err
	}

	if err := s.dockerPool.Retry(func() error {
		return s.dbPool.Ping(ctx)
	}); err != nil {
		return "", fmt.Errorf("connect to db: %w", err)
	}

	if err := db.ApplySchema(ctx, s.dbPool); err != nil {
		return "", err
	}
	return pgPort, nil
}

// newSession creates a user and a session token for it.
func (s *ServerIntegrationTestSuite) newSession(ctx context.Context) (*users.User, string) {
	user, err := users.NewRepo(s.dbPool).Create(ctx, gofakeit.Email())
	s.Require().NoError(err)

	token, err := auth.NewService(auth.DefaultTTL, s.redisClient).Issue(ctx, user.ID, time.Now())
	s.Require().NoError(err)
	return user, token
}

func (s *ServerIntegrationTestSuite) do(ctx context.Context, method, path, token string, body any) (int, []byte) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		s.Require().NoError(err)
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, testServerEndpoint+path, reqBody)
	s.Require().NoError(err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(middleware.TokenHeader, token)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, respBytes
}

func (s *ServerIntegrationTestSuite) TestVersionNeedsNoSession() {
	status, body := s.do(context.Background(), "GET", "/version", "", nil)
	s.Equal(http.StatusOK, status)
	s.Contains(string(body), "test-version-info")
}

func (s *ServerIntegrationTestSuite) TestNoSession() {
	ctx := context.Background()
	for _, path := range []string{"/fitness/profile", "/garmin/status", "/workouts"} {
		status, _ := s.do(ctx, "GET", path, "", nil)
		s.Equal(http.StatusUnauthorized, status, path)
		status, _ = s.do(ctx, "GET", path, "not-a-real-token", nil)
		s.Equal(http.StatusUnauthorized, status, path)
	}
}

func (s *ServerIntegrationTestSuite) TestFreshUser() {
	ctx := context.Background()
	_, token := s.newSession(ctx)

	status, body := s.do(ctx, "GET", "/garmin/status", token, nil)
	s.Require().Equal(http.StatusOK, status)
	var statusResp account.StatusResponse
	s.Require().NoError(json.Unmarshal(body, &statusResp))
	s.False(statusResp.Connected)
	s.Nil(statusResp.LastSyncAt)

	status, _ = s.do(ctx, "GET", "/fitness/profile", token, nil)
	s.Equal(http.StatusNotFound, status)

	status, body = s.do(ctx, "GET", "/activities", token, nil)
	s.Equal(http.StatusOK, status)
	s.JSONEq(`[]`, string(body))

	// nothing to sync from
	status, _ = s.do(ctx, "POST", "/garmin/sync", token, nil)
	s.Equal(http.StatusBadRequest, status)

	// no profile to build a prompt from
	status, body = s.do(ctx, "POST", "/workouts/generate", token, map[string]any{
		"workoutType": "easy_run",
		"distanceKm":  8,
	})
	s.Equal(http.StatusBadRequest, status)
	s.Contains(string(body), "no fitness profile yet")

	status, body = s.do(ctx, "GET", "/workouts", token, nil)
	s.Equal(http.StatusOK, status)
	s.JSONEq(`[]`, string(body))
}

func (s *ServerIntegrationTestSuite) TestPaces() {
	ctx := context.Background()
	_, token := s.newSession(ctx)

	status, body := s.do(ctx, "GET", "/fitness/paces?tenK=2400", token, nil)
	s.Require().Equal(http.StatusOK, status)

	var resp fitness.PacesResponse
	s.Require().NoError(json.Unmarshal(body, &resp))
	s.Equal(297, resp.Paces.EasyPaceLow)
	s.Equal(261, resp.Paces.TempoPace)
	s.Equal(228, resp.Paces.IntervalPace)
	s.Equal("4:21", resp.Formatted["tempoPace"])

	status, _ = s.do(ctx, "GET", "/fitness/paces?tenK=-5", token, nil)
	s.Equal(http.StatusBadRequest, status)
}

func (s *ServerIntegrationTestSuite) TestMCPNeedsSecret() {
	status, _ := s.do(context.Background(), "POST", "/mcp", "", map[string]any{"jsonrpc": "2.0", "id": 1, "method": "ping"})
	s.Equal(http.StatusUnauthorized, status)
}
