package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"ledger-transfers/internal/config"
	"ledger-transfers/internal/gateway"
	"ledger-transfers/internal/server"
	"ledger-transfers/migrations"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type IntegrationTestSuite struct {
	suite.Suite
	postgresContainer *tcpostgres.PostgresContainer
	serverInstance    *server.Server
	baseURL           string
	client            *http.Client
	dbConnStr         string
}

func (suite *IntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	postgresContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("ledger_transfers"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		suite.T().Fatalf("Failed to start postgres container: %s", err)
	}
	suite.postgresContainer = postgresContainer

	suite.dbConnStr, err = postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		suite.T().Fatalf("Failed to get connection string: %s", err)
	}

	if err := suite.runMigrations(); err != nil {
		suite.T().Fatalf("Failed to run migrations: %s", err)
	}

	if err := suite.startApplicationServer(); err != nil {
		suite.T().Fatalf("Failed to start application server: %s", err)
	}

	suite.client = &http.Client{
		Timeout: 30 * time.Second,
	}
}

func (suite *IntegrationTestSuite) runMigrations() error {
	db, err := sql.Open("postgres", suite.dbConnStr)
	if err != nil {
		return err
	}
	defer db.Close()

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to init migrate driver: %w", err)
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to build migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

func (suite *IntegrationTestSuite) startApplicationServer() error {
	ctx := context.Background()

	host, err := suite.postgresContainer.Host(ctx)
	if err != nil {
		return err
	}
	mappedPort, err := suite.postgresContainer.MappedPort(ctx, "5432")
	if err != nil {
		return err
	}

	cfg := &config.Config{
		ServerPort: "0", // Let OS choose a free port
		DBHost:     host,
		DBPort:     mappedPort.Port(),
		DBUser:     "postgres",
		DBPassword: "password",
		DBName:     "ledger_transfers",
		DBSSLMode:  "disable",

		// Deterministic gateway: every submission settles.
		GatewayMode:        gateway.ModeSucceed,
		GatewayMaxAttempts: gateway.DefaultMaxAttempts,
	}

	serverInstance, port, err := server.StartServer(cfg)
	if err != nil {
		return err
	}

	suite.serverInstance = serverInstance
	suite.baseURL = "http://localhost:" + port

	return suite.waitForServerReady()
}

func (suite *IntegrationTestSuite) waitForServerReady() error {
	timeout := 30 * time.Second
	start := time.Now()

	for time.Since(start) < timeout {
		resp, err := http.Get(suite.baseURL + "/health")
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return nil
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server not ready after %v", timeout)
}

func (suite *IntegrationTestSuite) TearDownSuite() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if suite.serverInstance != nil {
		suite.serverInstance.Stop(ctx)
	}

	if suite.postgresContainer != nil {
		suite.postgresContainer.Terminate(ctx)
	}
}

// ---- HTTP helpers ----

func (suite *IntegrationTestSuite) postJSON(path string, reqBody interface{}) (int, map[string]interface{}) {
	body, err := json.Marshal(reqBody)
	require.NoError(suite.T(), err)

	resp, err := suite.client.Post(suite.baseURL+path, "application/json", bytes.NewReader(body))
	require.NoError(suite.T(), err)
	defer resp.Body.Close()

	return resp.StatusCode, suite.decodeEnvelope(resp.Body)
}

func (suite *IntegrationTestSuite) get(path string) (int, map[string]interface{}) {
	resp, err := suite.client.Get(suite.baseURL + path)
	require.NoError(suite.T(), err)
	defer resp.Body.Close()

	return resp.StatusCode, suite.decodeEnvelope(resp.Body)
}

func (suite *IntegrationTestSuite) decodeEnvelope(r io.Reader) map[string]interface{} {
	raw, err := io.ReadAll(r)
	require.NoError(suite.T(), err)

	var envelope map[string]interface{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		suite.T().Logf("Failed to parse response: %s", raw)
		suite.T().FailNow()
	}
	return envelope
}

func data(envelope map[string]interface{}) map[string]interface{} {
	d, _ := envelope["data"].(map[string]interface{})
	return d
}

func errorCode(envelope map[string]interface{}) string {
	e, ok := envelope["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := e["code"].(string)
	return code
}

func (suite *IntegrationTestSuite) createAccount(initialBalance string) int64 {
	status, envelope := suite.postJSON("/accounts", map[string]interface{}{
		"initial_balance": initialBalance,
	})
	require.Equal(suite.T(), http.StatusCreated, status, "body: %v", envelope)

	id, ok := data(envelope)["account_id"].(float64)
	require.True(suite.T(), ok, "body: %v", envelope)
	return int64(id)
}

func (suite *IntegrationTestSuite) createTransfer(fromID, toID int64, amount string, processImmediately bool) (int, map[string]interface{}) {
	return suite.postJSON("/transfers", map[string]interface{}{
		"from_account_id":     fromID,
		"to_account_id":       toID,
		"amount":              amount,
		"process_immediately": processImmediately,
	})
}

func (suite *IntegrationTestSuite) accountBalance(accountID int64) string {
	status, envelope := suite.get(fmt.Sprintf("/accounts/%d", accountID))
	require.Equal(suite.T(), http.StatusOK, status)

	balance, ok := data(envelope)["balance"].(string)
	require.True(suite.T(), ok, "body: %v", envelope)
	return balance
}

func (suite *IntegrationTestSuite) assertDecimalEqual(expected, actual string) {
	expectedDec, err := decimal.NewFromString(expected)
	require.NoError(suite.T(), err)
	actualDec, err := decimal.NewFromString(actual)
	require.NoError(suite.T(), err)

	assert.True(suite.T(), expectedDec.Equal(actualDec),
		"Decimal values not equal: expected %s, got %s", expected, actual)
}

// ---- the flow ----

func (suite *IntegrationTestSuite) TestTransferFlow() {
	t := suite.T()

	// Health first
	status, _ := suite.get("/health")
	assert.Equal(t, http.StatusOK, status)

	a := suite.createAccount("50")
	b := suite.createAccount("50")

	// 1. A -> B 10, processed immediately.
	status, envelope := suite.createTransfer(a, b, "10", true)
	require.Equal(t, http.StatusCreated, status, "body: %v", envelope)
	assert.Equal(t, "success", data(envelope)["state"])
	suite.assertDecimalEqual("40", suite.accountBalance(a))
	suite.assertDecimalEqual("60", suite.accountBalance(b))

	// 2. A -> B 25, processed immediately.
	status, envelope = suite.createTransfer(a, b, "25", true)
	require.Equal(t, http.StatusCreated, status, "body: %v", envelope)
	assert.Equal(t, "success", data(envelope)["state"])
	suite.assertDecimalEqual("15", suite.accountBalance(a))
	suite.assertDecimalEqual("85", suite.accountBalance(b))

	// 3. A -> B 15, created only. Reserves A's remaining funds.
	status, envelope = suite.createTransfer(a, b, "15", false)
	require.Equal(t, http.StatusCreated, status, "body: %v", envelope)
	assert.Equal(t, "pending", data(envelope)["state"])
	pendingID := int64(data(envelope)["transfer_id"].(float64))

	// 4. A -> B 1: the pending transfer left nothing available.
	status, envelope = suite.createTransfer(a, b, "1", true)
	assert.Equal(t, http.StatusUnprocessableEntity, status, "body: %v", envelope)
	assert.Equal(t, "insufficient_funds", errorCode(envelope))
	suite.assertDecimalEqual("15", suite.accountBalance(a))
	suite.assertDecimalEqual("85", suite.accountBalance(b))

	// 5. B -> A 5, processed immediately.
	status, envelope = suite.createTransfer(b, a, "5", true)
	require.Equal(t, http.StatusCreated, status, "body: %v", envelope)
	assert.Equal(t, "success", data(envelope)["state"])

	suite.assertDecimalEqual("20", suite.accountBalance(a))
	suite.assertDecimalEqual("80", suite.accountBalance(b))

	// Transfer 3 is still pending, transfer 4 was cancelled on record.
	status, envelope = suite.get(fmt.Sprintf("/transfers/%d", pendingID))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pending", data(envelope)["state"])

	status, envelope = suite.get(fmt.Sprintf("/transfers/%d", pendingID+1))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cancelled", data(envelope)["state"])
	assert.Equal(t, "Insufficient funds", data(envelope)["status_message"])

	// Both accounts reconcile cleanly: the pending transfer never settled.
	for _, id := range []int64{a, b} {
		status, envelope = suite.get(fmt.Sprintf("/accounts/%d/reconciliation", id))
		require.Equal(t, http.StatusOK, status)
		report := data(envelope)
		suite.assertDecimalEqual(report["expected_balance"].(string), report["actual_balance"].(string))
	}

	// Processing the pending transfer later still works.
	status, envelope = suite.postJSON(fmt.Sprintf("/transfers/%d/process", pendingID), map[string]interface{}{})
	require.Equal(t, http.StatusOK, status, "body: %v", envelope)
	assert.Equal(t, "success", data(envelope)["state"])
	suite.assertDecimalEqual("5", suite.accountBalance(a))
	suite.assertDecimalEqual("95", suite.accountBalance(b))

	// And processing it again is rejected without touching anything.
	status, envelope = suite.postJSON(fmt.Sprintf("/transfers/%d/process", pendingID), map[string]interface{}{})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "invalid_state_for_processing", errorCode(envelope))
	suite.assertDecimalEqual("5", suite.accountBalance(a))
}

func (suite *IntegrationTestSuite) TestAccountValidation() {
	t := suite.T()

	status, envelope := suite.postJSON("/accounts", map[string]interface{}{
		"initial_balance": "-1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_amount", errorCode(envelope))

	status, envelope = suite.get("/accounts/999999")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "account_not_found", errorCode(envelope))
}

func TestIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(IntegrationTestSuite))
}
