package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	apperrors "github.com/abgdnv/stockroom/internal/errors"
	"github.com/abgdnv/stockroom/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"
)

const skipIntegrationTests = "STOCKROOM_SKIP_INTEGRATION_TESTS"

// PgStoreSuite runs the PgStore against a real PostgreSQL container.
type PgStoreSuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	store       *PgStore
	logger      *slog.Logger
	ctx         context.Context
}

func (s *PgStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("stockroom"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	s.dbPool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to create pgxpool")

	for i := range 10 {
		s.logger.Info("Pinging PostgreSQL database", "attempt", i+1)
		err = s.dbPool.Ping(s.ctx)
		if err == nil {
			break
		}
		time.Sleep(time.Second * 2)
	}
	require.NoError(s.T(), err, "Failed to connect to PostgreSQL after retries")

	require.NoError(s.T(), Migrate(connStr), "Failed to apply migrations")
	// applying twice is a no-op
	require.NoError(s.T(), Migrate(connStr))

	s.store = NewPgStore(s.dbPool, false, s.logger)
}

func (s *PgStoreSuite) TearDownSuite() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("failed to terminate PostgreSQL container", "error", err)
		}
	}
}

func (s *PgStoreSuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE store_documents")
	s.Require().NoError(err)
}

func TestPgStoreSuite(t *testing.T) {
	if os.Getenv(skipIntegrationTests) != "" {
		t.Skip("Skipping integration tests")
	}
	suite.Run(t, new(PgStoreSuite))
}

func (s *PgStoreSuite) TestLoadEmpty() {
	st, err := s.store.Load(s.ctx)

	s.Require().NoError(err)
	s.Empty(st.Products)
	s.Empty(st.Sales)
}

func (s *PgStoreSuite) TestSaveThenLoad() {
	// given
	st := NewState()
	st.Products = append(st.Products, sampleProduct("p1", 4))

	// when
	s.Require().NoError(s.store.Save(s.ctx, st))
	s.Require().NoError(s.store.Save(s.ctx, st))
	loaded, err := s.store.Load(s.ctx)

	// then
	s.Require().NoError(err)
	s.Require().Len(loaded.Products, 1)
	s.Equal("9.99", loaded.Products[0].Price.String())
	var version int64
	s.Require().NoError(s.dbPool.QueryRow(s.ctx, "SELECT version FROM store_documents WHERE id = 1").Scan(&version))
	s.Equal(int64(2), version)
}

func (s *PgStoreSuite) TestUpdateRollsBackOnError() {
	// given
	st := NewState()
	st.Products = append(st.Products, sampleProduct("p1", 4))
	s.Require().NoError(s.store.Save(s.ctx, st))
	boom := errors.New("boom")

	// when
	err := s.store.Update(s.ctx, func(st *State) error {
		st.Products = nil
		return boom
	})

	// then
	s.ErrorIs(err, boom)
	loaded, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	s.Len(loaded.Products, 1)
}

func (s *PgStoreSuite) TestConcurrentUpdatesAreSerialized() {
	// given
	const stock = 5
	st := NewState()
	st.Products = append(st.Products, sampleProduct("p1", stock))
	s.Require().NoError(s.store.Save(s.ctx, st))

	// when
	var g errgroup.Group
	results := make([]error, 12)
	for i := range results {
		g.Go(func() error {
			results[i] = s.store.Update(s.ctx, func(st *State) error {
				if st.Products[0].Quantity < 1 {
					return apperrors.ErrInsufficientStock
				}
				st.Products[0].Quantity--
				st.Sales = append(st.Sales, model.Sale{ID: string(rune('a' + i)), ProductID: "p1", Quantity: 1})
				return nil
			})
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	// then
	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
		}
	}
	s.Equal(stock, ok)
	loaded, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, loaded.Products[0].Quantity)
	s.Len(loaded.Sales, stock)
}

func (s *PgStoreSuite) TestStrictModeRejectsCorruptDocument() {
	// given
	_, err := s.dbPool.Exec(s.ctx, `INSERT INTO store_documents (id, document) VALUES (1, '{"products": "oops"}')`)
	s.Require().NoError(err)
	strict := NewPgStore(s.dbPool, true, s.logger)

	// when
	_, strictErr := strict.Load(s.ctx)
	healed, healErr := s.store.Load(s.ctx)

	// then
	s.ErrorIs(strictErr, apperrors.ErrStoreUnavailable)
	s.Require().NoError(healErr)
	assert.Empty(s.T(), healed.Products)
}

func (s *PgStoreSuite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}
