package utils

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetTokensCache() { ResetTokens() }

func resetTokenDB() {
	tokenDB.Lock()
	if tokenDB.db != nil {
		_ = tokenDB.db.Close()
	}
	tokenDB.db, tokenDB.dsn = nil, ""
	tokenDB.Unlock()
}

func TestLoadTokensAndValidation(t *testing.T) {
	defer resetTokensCache()

	assert.False(t, TokensReady())
	LoadTokensFromMap(map[string]int{"a": 5, "b": 10})

	assert.True(t, TokensReady())
	assert.True(t, ValidateToken("a"))
	assert.Equal(t, 5, GetRateLimit("a"))
	assert.Equal(t, 10, GetRateLimit("b"))
	assert.False(t, ValidateToken("c"))
	assert.Equal(t, 0, GetRateLimit("c"))
}

func TestLoadTokensFromMap_NilMarksReady(t *testing.T) {
	defer resetTokensCache()

	LoadTokensFromMap(nil)
	assert.True(t, TokensReady())
	assert.False(t, ValidateToken("anything"))
}

func TestPostgresDSN_BuildsURL(t *testing.T) {
	dsn, err := postgresDSN(PostgresConfig{
		Host:     "localhost",
		Database: "office2pdf",
		User:     "user",
		Password: "p@ss word",
		SSLMode:  "disable",
	})
	require.NoError(t, err)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "localhost:5432", u.Host)
	assert.Equal(t, "/office2pdf", u.Path)
	assert.Equal(t, "user", u.User.Username())
	pw, ok := u.User.Password()
	assert.True(t, ok)
	assert.Equal(t, "p@ss word", pw)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
}

func TestPostgresDSN_HostVariants(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"db", 6543, "db:6543"},
		{"db:7000", 6543, "db:7000"},
		{"::1", 0, "[::1]:5432"},
		{"[::1]", 0, "[::1]:5432"},
	}
	for _, tc := range tests {
		dsn, err := postgresDSN(PostgresConfig{Host: tc.host, Port: tc.port, Database: "d", User: "u"})
		require.NoError(t, err)
		u, err := url.Parse(dsn)
		require.NoError(t, err)
		assert.Equal(t, tc.want, u.Host, "host %q", tc.host)
	}
}

func TestPostgresDSN_PassthroughAndErrors(t *testing.T) {
	raw := "postgres://u:p@localhost:5432/db?sslmode=disable"
	dsn, err := postgresDSN(PostgresConfig{Host: raw})
	require.NoError(t, err)
	assert.Equal(t, raw, dsn)

	_, err = postgresDSN(PostgresConfig{})
	assert.Error(t, err)
	_, err = postgresDSN(PostgresConfig{Host: "h"})
	assert.Error(t, err)
	_, err = postgresDSN(PostgresConfig{Host: "h", Database: "d"})
	assert.Error(t, err)
}

type fakeMode struct {
	schemaErr bool
	queryErr  bool
}

var (
	fakeDriverSeq atomic.Int64
	fakeDBMode    fakeMode
)

type fakeDriver struct{}
type fakeConn struct{}
type fakeRows struct {
	data [][]driver.Value
	i    int
}

func (fakeDriver) Open(string) (driver.Conn, error) { return fakeConn{}, nil }

func (fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (fakeConn) Close() error                        { return nil }
func (fakeConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }

func (fakeConn) ExecContext(context.Context, string, []driver.NamedValue) (driver.Result, error) {
	if fakeDBMode.schemaErr {
		return nil, errors.New("schema failed")
	}
	return driver.RowsAffected(0), nil
}

func (fakeConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	if fakeDBMode.queryErr {
		return nil, errors.New("query failed")
	}
	return &fakeRows{data: [][]driver.Value{{"tok1", int64(5)}, {"tok2", int64(2)}}}, nil
}

func (r *fakeRows) Columns() []string { return []string{"token", "rate_limit"} }
func (r *fakeRows) Close() error      { return nil }
func (r *fakeRows) Next(dest []driver.Value) error {
	if r.i >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.i])
	r.i++
	return nil
}

func useFakeDriver(t *testing.T, mode fakeMode) {
	t.Helper()
	name := fmt.Sprintf("office2pdf_fake_%d", fakeDriverSeq.Add(1))
	sql.Register(name, fakeDriver{})
	fakeDBMode = mode
	sqlOpen = func(_, _ string) (*sql.DB, error) { return sql.Open(name, "") }
	resetTokenDB()
	t.Cleanup(func() {
		sqlOpen = sql.Open
		resetTokenDB()
		resetTokensCache()
	})
}

var fakePG = PostgresConfig{Host: "localhost", Database: "db", User: "u"}

func TestLoadTokensFromPostgres_FakeDriver(t *testing.T) {
	useFakeDriver(t, fakeMode{})

	require.NoError(t, LoadTokensFromPostgres(context.Background(), fakePG))
	assert.True(t, ValidateToken("tok1"))
	assert.Equal(t, 2, GetRateLimit("tok2"))
}

func TestLoadTokensFromPostgres_ErrorsKeepCache(t *testing.T) {
	useFakeDriver(t, fakeMode{schemaErr: true})
	LoadTokensFromMap(map[string]int{"keep": 9})

	assert.Error(t, LoadTokensFromPostgres(context.Background(), fakePG))
	assert.Equal(t, 9, GetRateLimit("keep"))

	fakeDBMode = fakeMode{queryErr: true}
	assert.Error(t, LoadTokensFromPostgres(context.Background(), fakePG))
	assert.Equal(t, 9, GetRateLimit("keep"))
}

func TestLoadTokensFromPostgres_UnreachableDatabase(t *testing.T) {
	resetTokensCache()
	resetTokenDB()
	defer resetTokenDB()

	err := LoadTokensFromPostgres(context.Background(), PostgresConfig{Host: "127.0.0.1", Port: 1, Database: "db", User: "u", SSLMode: "disable"})
	assert.Error(t, err)
	assert.False(t, TokensReady())
}
