// db-brute protocol testers.
// One tester per supported service, each a thin wrapper around that
// service's client library: open one connection, attempt one login,
// map the library's error into a status string, close. No retries,
// no protocol logic of our own.
// ===================================
// {{{ IMPORT
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	"github.com/jlaffaye/ftp"
	"github.com/lib/pq"
	"golang.org/x/crypto/ssh"
)

// }}}
// {{{ SECTION 1: TESTER INTERFACE & SHARED ERROR MAPPING
// ProtocolTester performs one connect-and-authenticate attempt.
// It returns a status string (see the taxonomy in dbbrute.go), the
// elapsed seconds, and error detail when the attempt did not succeed.
type ProtocolTester interface {
	Test(host string, port int, username, password string) (string, float64, string)
}

// netErrorStatus maps transport-level errors onto connection statuses.
func netErrorStatus(err error, elapsed float64) (string, float64, string) {
	errStr := err.Error()
	errLower := strings.ToLower(errStr)

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout", elapsed, errStr
	}

	switch {
	case strings.Contains(errLower, "timeout"):
		return "timeout", elapsed, errStr
	case strings.Contains(errLower, "connection refused"):
		return "connection-refused", elapsed, errStr
	case strings.Contains(errLower, "connection reset"):
		return "connection-reset", elapsed, errStr
	case strings.Contains(errLower, "no route"),
		strings.Contains(errLower, "no such host"):
		return "no-route", elapsed, errStr
	case strings.Contains(errLower, "network is unreachable"):
		return "network-unreachable", elapsed, errStr
	default:
		return "connection-error", elapsed, errStr
	}
}

// }}}
// {{{ SECTION 2: MYSQL TESTER
type MySQLTester struct {
	timeout float64
}

func (m *MySQLTester) Test(host string, port int, username, password string) (string, float64, string) {
	start := time.Now()
	d := time.Duration(m.timeout * float64(time.Second))

	mcfg := mysql.NewConfig()
	mcfg.User = username
	mcfg.Passwd = password
	mcfg.Net = "tcp"
	mcfg.Addr = fmt.Sprintf("%s:%d", host, port)
	mcfg.Timeout = d
	mcfg.ReadTimeout = d
	mcfg.WriteTimeout = d
	db, err := sql.Open("mysql", mcfg.FormatDSN())
	if err != nil {
		return "db-error", time.Since(start).Seconds(), err.Error()
	}
	defer db.Close()
	db.SetMaxIdleConns(0)

	err = db.Ping()
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return mysqlErrorStatus(err, elapsed)
	}
	return "success", elapsed, ""
}

func mysqlErrorStatus(err error, elapsed float64) (string, float64, string) {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1044, 1045, 1698: // access denied family
			return "auth-failed", elapsed, myErr.Message
		case 3118:
			return "account-locked", elapsed, myErr.Message
		}
		return "db-error", elapsed, myErr.Message
	}
	if strings.Contains(strings.ToLower(err.Error()), "access denied") {
		return "auth-failed", elapsed, err.Error()
	}
	return netErrorStatus(err, elapsed)
}

// }}}
// {{{ SECTION 3: MSSQL TESTER
type MSSQLTester struct {
	timeout float64
}

func (m *MSSQLTester) Test(host string, port int, username, password string) (string, float64, string) {
	start := time.Now()
	secs := int(m.timeout)
	if secs < 1 {
		secs = 1
	}

	// URL form so credentials with semicolons, spaces or quotes cannot
	// corrupt the connection string.
	query := url.Values{}
	query.Set("encrypt", "disable")
	query.Set("dial timeout", fmt.Sprintf("%d", secs))
	query.Set("connection timeout", fmt.Sprintf("%d", secs))
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(username, password),
		Host:     fmt.Sprintf("%s:%d", host, port),
		RawQuery: query.Encode(),
	}
	db, err := sql.Open("sqlserver", u.String())
	if err != nil {
		return "db-error", time.Since(start).Seconds(), err.Error()
	}
	defer db.Close()
	db.SetMaxIdleConns(0)

	err = db.Ping()
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return mssqlErrorStatus(err, elapsed)
	}
	return "success", elapsed, ""
}

func mssqlErrorStatus(err error, elapsed float64) (string, float64, string) {
	var sqlErr mssql.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Number {
		case 18456, 18452: // login failed / untrusted login
			return "auth-failed", elapsed, sqlErr.Message
		case 18486:
			return "account-locked", elapsed, sqlErr.Message
		}
		return "db-error", elapsed, sqlErr.Message
	}
	if strings.Contains(strings.ToLower(err.Error()), "login failed") {
		return "auth-failed", elapsed, err.Error()
	}
	return netErrorStatus(err, elapsed)
}

// }}}
// {{{ SECTION 4: POSTGRES TESTER
type PostgresTester struct {
	timeout float64
}

func (p *PostgresTester) Test(host string, port int, username, password string) (string, float64, string) {
	start := time.Now()
	secs := int(p.timeout)
	if secs < 1 {
		secs = 1
	}

	// URL form so credentials with spaces, quotes or backslashes cannot
	// corrupt the keyword/value connection string.
	query := url.Values{}
	query.Set("sslmode", "disable")
	query.Set("connect_timeout", fmt.Sprintf("%d", secs))
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(username, password),
		Host:     fmt.Sprintf("%s:%d", host, port),
		Path:     "/postgres",
		RawQuery: query.Encode(),
	}
	db, err := sql.Open("postgres", u.String())
	if err != nil {
		return "db-error", time.Since(start).Seconds(), err.Error()
	}
	defer db.Close()
	db.SetMaxIdleConns(0)

	err = db.Ping()
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return postgresErrorStatus(err, elapsed)
	}
	return "success", elapsed, ""
}

func postgresErrorStatus(err error, elapsed float64) (string, float64, string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 28 covers invalid_authorization_specification and
		// invalid_password.
		if pqErr.Code.Class() == "28" {
			return "auth-failed", elapsed, pqErr.Message
		}
		return "db-error", elapsed, pqErr.Message
	}
	if strings.Contains(strings.ToLower(err.Error()), "password authentication failed") {
		return "auth-failed", elapsed, err.Error()
	}
	return netErrorStatus(err, elapsed)
}

// }}}
// {{{ SECTION 5: SSH TESTER
type SSHTester struct {
	timeout float64
}

func (s *SSHTester) Test(host string, port int, username, password string) (string, float64, string) {
	start := time.Now()
	addr := fmt.Sprintf("%s:%d", host, port)
	d := time.Duration(s.timeout * float64(time.Second))

	// The dial gets 40% of the budget; the deadline below caps the
	// banner exchange, key exchange and auth so the whole attempt
	// stays within one timeout.
	conn, err := net.DialTimeout("tcp", addr, d*2/5)
	if err != nil {
		return netErrorStatus(err, time.Since(start).Seconds())
	}
	defer conn.Close()

	conn.SetDeadline(start.Add(d))

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	})
	if err != nil {
		elapsed := time.Since(start).Seconds()
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "banner-timeout", elapsed, "ssh handshake timeout"
		}
		return sshErrorStatus(err, elapsed)
	}

	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()
	elapsed := time.Since(start).Seconds()

	// A session proves we got a real shell-capable login and not a
	// honeypot that accepts any password at the auth layer.
	session, err := client.NewSession()
	if err == nil {
		session.Close()
		return "shell-access", elapsed, ""
	}
	return "success", elapsed, ""
}

func sshErrorStatus(err error, elapsed float64) (string, float64, string) {
	errStr := err.Error()
	errLower := strings.ToLower(errStr)

	switch {
	case strings.Contains(errLower, "unable to authenticate"),
		strings.Contains(errLower, "authentication failed"),
		strings.Contains(errLower, "permission denied"):
		return "auth-failed", elapsed, errStr
	case strings.Contains(errLower, "handshake failed"):
		if strings.Contains(errLower, "protocol") {
			return "protocol-mismatch", elapsed, errStr
		}
		return "handshake-error", elapsed, errStr
	case strings.Contains(errLower, "account locked"):
		return "account-locked", elapsed, errStr
	case strings.Contains(errLower, "password expired"):
		return "password-expired", elapsed, errStr
	default:
		return netErrorStatus(err, elapsed)
	}
}

// }}}
// {{{ SECTION 6: FTP TESTER
type FTPTester struct {
	timeout float64
}

func (f *FTPTester) Test(host string, port int, username, password string) (string, float64, string) {
	start := time.Now()

	conn, err := ftp.Dial(fmt.Sprintf("%s:%d", host, port),
		ftp.DialWithTimeout(time.Duration(f.timeout*float64(time.Second))))
	if err != nil {
		elapsed := time.Since(start).Seconds()
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return "connection-reset", elapsed, err.Error()
		}
		return netErrorStatus(err, elapsed)
	}
	defer conn.Quit()

	err = conn.Login(username, password)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return ftpErrorStatus(err, elapsed)
	}
	return "success", elapsed, ""
}

func ftpErrorStatus(err error, elapsed float64) (string, float64, string) {
	errStr := err.Error()
	errLower := strings.ToLower(errStr)

	switch {
	case strings.Contains(errLower, "530"),
		strings.Contains(errLower, "login incorrect"),
		strings.Contains(errLower, "not logged in"),
		strings.Contains(errLower, "authentication failed"):
		return "auth-failed", elapsed, errStr
	case strings.Contains(errLower, "account locked"),
		strings.Contains(errLower, "locked out"):
		return "account-locked", elapsed, errStr
	case strings.Contains(errLower, "eof"):
		// Some servers drop the control connection instead of
		// answering 530.
		return "auth-failed", elapsed, errStr
	default:
		return netErrorStatus(err, elapsed)
	}
}

// }}}
// {{{ SECTION 7: PROTOCOL FACTORY
func createProtocolTester(protocol string, timeout float64) ProtocolTester {
	switch protocol {
	case "mysql":
		return &MySQLTester{timeout: timeout}
	case "mssql":
		return &MSSQLTester{timeout: timeout}
	case "postgres":
		return &PostgresTester{timeout: timeout}
	case "ssh":
		return &SSHTester{timeout: timeout}
	case "ftp":
		return &FTPTester{timeout: timeout}
	default:
		return nil
	}
}

func defaultPort(protocol string) int {
	switch protocol {
	case "mysql":
		return 3306
	case "mssql":
		return 1433
	case "postgres":
		return 5432
	case "ssh":
		return 22
	case "ftp":
		return 21
	default:
		return 0
	}
}

func availableDBs() []string {
	return []string{"ftp", "mssql", "mysql", "postgres", "ssh"}
}

// }}}
