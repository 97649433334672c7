package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/loykin/jobsched/internal/execution"
)

// ClickHouse is an append-only audit Notifier that inserts start/finish
// events into a ClickHouse table, grounded on the teacher's ClickHouse
// history sink. Like SQL, it is a pure observer.
type ClickHouse struct {
	conn  driver.Conn
	table string
}

// ClickHouseOptions configures the connection. Database/Username/Password
// default to ClickHouse's own defaults when left empty.
type ClickHouseOptions struct {
	Addr     string
	Database string
	Username string
	Password string
	// Table is the target table name. Defaults to "job_execution_events".
	Table string
}

// NewClickHouse opens a ClickHouse connection and verifies it with a ping.
func NewClickHouse(opts ClickHouseOptions) (*ClickHouse, error) {
	database := opts.Database
	if database == "" {
		database = "default"
	}
	username := opts.Username
	if username == "" {
		username = "default"
	}
	table := opts.Table
	if table == "" {
		table = "job_execution_events"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: opts.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("notifier: connect to clickhouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("notifier: ping clickhouse: %w", err)
	}

	return &ClickHouse{conn: conn, table: table}, nil
}

// Close releases the underlying connection.
func (c *ClickHouse) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *ClickHouse) String() string { return "clickhouse" }

func (c *ClickHouse) DefinitionAdded(DefinitionInfo)   {}
func (c *ClickHouse) DefinitionRemoved(DefinitionInfo) {}
func (c *ClickHouse) SchedulerStarted()                {}
func (c *ClickHouse) SchedulerStopped()                {}

func (c *ClickHouse) JobStarted(ex *execution.Execution) {
	c.insert(ex, "started", false, false, "")
}

func (c *ClickHouse) JobCompleted(ex *execution.Execution) {
	success := ex.Success()
	errText := ""
	if err := ex.Err(); err != nil {
		errText = err.Error()
	}
	c.insert(ex, "completed", true, success, errText)
}

func (c *ClickHouse) insert(ex *execution.Execution, eventType string, hasSuccess, success bool, errText string) {
	query := fmt.Sprintf(`INSERT INTO %s (event_type, occurred_at, execution_id, definition_id, definition_name, has_success, success, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, c.table)

	_ = c.conn.Exec(context.Background(), query,
		eventType,
		time.Now().UTC(),
		ex.ID(),
		ex.DefinitionID(),
		ex.DefinitionName(),
		hasSuccess,
		success,
		errText,
	)
}
