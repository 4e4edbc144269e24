package main

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProtocolTester(t *testing.T) {
	tests := []struct {
		protocol string
		want     interface{}
	}{
		{"mysql", &MySQLTester{}},
		{"mssql", &MSSQLTester{}},
		{"postgres", &PostgresTester{}},
		{"ssh", &SSHTester{}},
		{"ftp", &FTPTester{}},
	}
	for _, tt := range tests {
		t.Run(tt.protocol, func(t *testing.T) {
			tester := createProtocolTester(tt.protocol, 5)
			require.NotNil(t, tester)
			assert.IsType(t, tt.want, tester)
		})
	}

	assert.Nil(t, createProtocolTester("telnet", 5))
	assert.Nil(t, createProtocolTester("", 5))
}

func TestDefaultPort(t *testing.T) {
	assert.Equal(t, 3306, defaultPort("mysql"))
	assert.Equal(t, 1433, defaultPort("mssql"))
	assert.Equal(t, 5432, defaultPort("postgres"))
	assert.Equal(t, 22, defaultPort("ssh"))
	assert.Equal(t, 21, defaultPort("ftp"))
	assert.Equal(t, 0, defaultPort("telnet"))
}

func TestAvailableDBs_CoversFactory(t *testing.T) {
	dbs := availableDBs()
	require.Len(t, dbs, 5)
	for _, db := range dbs {
		assert.NotNil(t, createProtocolTester(db, 5), "advertised service %q has no tester", db)
	}
}

func TestNetErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("dial tcp 10.0.0.1:3306: i/o timeout"), "timeout"},
		{errors.New("dial tcp 10.0.0.1:3306: connect: connection refused"), "connection-refused"},
		{errors.New("read tcp 10.0.0.1:3306: connection reset by peer"), "connection-reset"},
		{errors.New("dial tcp: lookup nope.invalid: no such host"), "no-route"},
		{errors.New("dial tcp 10.0.0.1:22: connect: no route to host"), "no-route"},
		{errors.New("dial tcp 10.0.0.1:22: connect: network is unreachable"), "network-unreachable"},
		{errors.New("something else entirely"), "connection-error"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			status, _, detail := netErrorStatus(tt.err, 0.1)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.err.Error(), detail)
			assert.Equal(t, OutcomeConnectionError, classify(status))
		})
	}
}

func TestMySQLErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"access denied", &mysql.MySQLError{Number: 1045, Message: "Access denied for user 'root'@'10.0.0.5'"}, "auth-failed"},
		{"db access denied", &mysql.MySQLError{Number: 1044, Message: "Access denied for user 'root' to database 'x'"}, "auth-failed"},
		{"auth plugin denial", &mysql.MySQLError{Number: 1698, Message: "Access denied for user 'root'@'localhost'"}, "auth-failed"},
		{"locked account", &mysql.MySQLError{Number: 3118, Message: "Access denied; account is locked"}, "account-locked"},
		{"other server error", &mysql.MySQLError{Number: 1040, Message: "Too many connections"}, "db-error"},
		{"string fallback", errors.New("Error 1045: Access denied for user"), "auth-failed"},
		{"transport error", errors.New("dial tcp 10.0.0.1:3306: connect: connection refused"), "connection-refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, _ := mysqlErrorStatus(tt.err, 0.1)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestMSSQLErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"login failed", mssql.Error{Number: 18456, Message: "Login failed for user 'sa'."}, "auth-failed"},
		{"untrusted login", mssql.Error{Number: 18452, Message: "Login failed. The login is from an untrusted domain."}, "auth-failed"},
		{"locked account", mssql.Error{Number: 18486, Message: "Login failed because the account is currently locked out."}, "account-locked"},
		{"other server error", mssql.Error{Number: 4060, Message: "Cannot open database"}, "db-error"},
		{"string fallback", errors.New("mssql: login failed"), "auth-failed"},
		{"transport error", errors.New("dial tcp 10.0.0.1:1433: i/o timeout"), "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, _ := mssqlErrorStatus(tt.err, 0.1)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestPostgresErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid password", &pq.Error{Code: "28P01", Message: "password authentication failed for user \"postgres\""}, "auth-failed"},
		{"invalid authorization", &pq.Error{Code: "28000", Message: "no pg_hba.conf entry for host"}, "auth-failed"},
		{"other server error", &pq.Error{Code: "57P03", Message: "the database system is starting up"}, "db-error"},
		{"string fallback", errors.New("pq: password authentication failed for user \"postgres\""), "auth-failed"},
		{"transport error", errors.New("dial tcp 10.0.0.1:5432: connect: connection refused"), "connection-refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, _ := postgresErrorStatus(tt.err, 0.1)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestSSHErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"bad password", errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password], no supported methods remain"), "auth-failed"},
		{"handshake eof", errors.New("ssh: handshake failed: EOF"), "handshake-error"},
		{"not ssh", errors.New("ssh: handshake failed: ssh: no common algorithm for key exchange; bad protocol version"), "protocol-mismatch"},
		{"transport error", errors.New("read tcp 10.0.0.1:22: connection reset by peer"), "connection-reset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, _ := sshErrorStatus(tt.err, 0.1)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestFTPErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"530 reply", errors.New("530 Login incorrect."), "auth-failed"},
		{"not logged in", errors.New("530 Not logged in"), "auth-failed"},
		{"dropped control conn", errors.New("unexpected EOF"), "auth-failed"},
		{"transport error", errors.New("dial tcp 10.0.0.1:21: connect: connection refused"), "connection-refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, _ := ftpErrorStatus(tt.err, 0.1)
			assert.Equal(t, tt.want, status)
		})
	}
}

// closedLoopbackPort returns a loopback port with nothing listening on it.
func closedLoopbackPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestTesters_ClosedPortIsConnectionError(t *testing.T) {
	port := closedLoopbackPort(t)

	for _, protocol := range availableDBs() {
		t.Run(protocol, func(t *testing.T) {
			tester := createProtocolTester(protocol, 2)
			status, elapsed, detail := tester.Test("127.0.0.1", port, "root", "toor")
			assert.Equal(t, OutcomeConnectionError, classify(status))
			assert.NotEmpty(t, detail)
			assert.Less(t, elapsed, 10.0)
		})
	}
}

func TestSQLTesters_MetacharacterPasswordStillDials(t *testing.T) {
	// Spaces, semicolons and quotes are legal in credential files; the
	// connection string must survive them. Reaching the dial (and its
	// refusal) proves the driver parsed the string past the credentials.
	port := closedLoopbackPort(t)
	password := `pa ss;wd='"q`

	for _, protocol := range []string{"mysql", "mssql", "postgres"} {
		t.Run(protocol, func(t *testing.T) {
			tester := createProtocolTester(protocol, 2)
			status, _, detail := tester.Test("127.0.0.1", port, "sa", password)
			assert.Equal(t, "connection-refused", status, "detail: %s", detail)
		})
	}
}

func TestSSHTester_PeerClosesConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	tester := &SSHTester{timeout: 2}
	port := ln.Addr().(*net.TCPAddr).Port
	status, _, _ := tester.Test("127.0.0.1", port, "root", "toor")

	assert.Equal(t, OutcomeConnectionError, classify(status))
}

func TestSSHTester_SilentServerTimesOut(t *testing.T) {
	// A listener that accepts and never sends a banner must not hang
	// the attempt past its single timeout budget (dial share included).
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	tester := &SSHTester{timeout: 1}
	port := ln.Addr().(*net.TCPAddr).Port

	start := time.Now()
	status, _, _ := tester.Test("127.0.0.1", port, "root", "toor")

	assert.Equal(t, OutcomeConnectionError, classify(status))
	assert.Less(t, time.Since(start).Seconds(), 2.0)
}

func TestFTPTester_FakeServerRejectsLogin(t *testing.T) {
	// Minimal FTP server: greet, then answer 530 to everything until QUIT.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fmt.Fprintf(conn, "220 fake ftp\r\n")
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			if strings.HasPrefix(scanner.Text(), "QUIT") {
				fmt.Fprintf(conn, "221 Bye\r\n")
				return
			}
			fmt.Fprintf(conn, "530 Login incorrect.\r\n")
		}
	}()

	tester := &FTPTester{timeout: 2}
	port := ln.Addr().(*net.TCPAddr).Port
	status, _, _ := tester.Test("127.0.0.1", port, "anonymous", "anonymous")

	assert.Equal(t, "auth-failed", status)
	assert.Equal(t, OutcomeAuthFailure, classify(status))
}
