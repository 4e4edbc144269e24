// db-brute - the multi-protocol credential checker.
// Sweeps username:password lists against database and shell services
// (mysql, mssql, postgres, ssh, ftp) and records every pair that works.
// No one credential left behind, no protocol reimplemented by hand:
// every authentication attempt is delegated to the service's client library.
// Authorized targets only.
// Requires proto.go for the protocol testers.
// ===================================
// {{{ IMPORT
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// }}}
// {{{ SECTION 1: CORE TYPES
type Config struct {
	DBType       string
	Target       string
	TargetFile   string
	PortOverride int
	CredsFile    string
	OutputFile   string
	LogFile      string
	Threads      int
	Timeout      float64
	Delay        float64
	Debug        bool
}

type Target struct {
	Host string
	Port int
}

func (t Target) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

type Credential struct {
	Username string
	Password string
}

type Task struct {
	Target     Target
	Credential Credential
}

type Result struct {
	Task    Task
	Status  string
	Elapsed float64
	Detail  string
}

// }}}
// {{{ SECTION 2: FORMATTING UTILITIES
func formatNumberWithCommas(n int64) string {
	if n < 0 {
		return "-" + formatNumberWithCommas(-n)
	}
	if n < 1000 {
		return strconv.FormatInt(n, 10)
	}
	str := strconv.FormatInt(n, 10)
	var result strings.Builder
	length := len(str)

	for i, char := range str {
		result.WriteRune(char)
		if (length-i-1)%3 == 0 && i != length-1 {
			result.WriteByte(',')
		}
	}
	return result.String()
}

func formatDuration(seconds float64) string {
	if seconds < 0 {
		return "0s"
	}

	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// }}}
// {{{ SECTION 3: FILE & TARGET UTILITIES
func loadLines(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// parseTarget turns a "host" or "host:port" entry into a Target.
// The global port override beats an embedded port, which beats the
// protocol's default port.
func parseTarget(entry string, defaultPort, portOverride int) (Target, error) {
	host := entry
	port := defaultPort

	if i := strings.LastIndex(entry, ":"); i >= 0 {
		host = entry[:i]
		p, err := strconv.Atoi(entry[i+1:])
		if err != nil || p < 1 || p > 65535 {
			return Target{}, fmt.Errorf("invalid port in target %q", entry)
		}
		port = p
	}
	if portOverride > 0 {
		port = portOverride
	}
	if strings.TrimSpace(host) == "" {
		return Target{}, fmt.Errorf("empty host in target %q", entry)
	}

	return Target{Host: host, Port: port}, nil
}

// parseTargets collects targets from the -t literal and/or the -T file.
// Malformed entries are skipped with a warning; an unreadable target
// file is an error.
func parseTargets(target, targetFile string, defaultPort, portOverride int) ([]Target, error) {
	var targets []Target

	appendEntry := func(entry string) {
		t, err := parseTarget(entry, defaultPort, portOverride)
		if err != nil {
			fmt.Println(HeaderWarning(fmt.Sprintf("Skipping target: %v", err)))
			return
		}
		targets = append(targets, t)
	}

	if target != "" {
		appendEntry(target)
	}

	if targetFile != "" {
		lines, err := loadLines(targetFile)
		if err != nil {
			return nil, fmt.Errorf("read target file: %w", err)
		}
		for _, line := range lines {
			appendEntry(line)
		}
	}

	return targets, nil
}

// parseCredentials reads username:password lines, splitting on the first
// colon so passwords may contain colons. Lines without a colon are skipped.
func parseCredentials(path string) ([]Credential, error) {
	lines, err := loadLines(path)
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	var creds []Credential
	for _, line := range lines {
		i := strings.Index(line, ":")
		if i < 0 {
			continue
		}
		creds = append(creds, Credential{
			Username: line[:i],
			Password: line[i+1:],
		})
	}
	return creds, nil
}

func defaultCredFile(dbType string) string {
	return filepath.Join("credz", dbType+".txt")
}

// }}}
// {{{ SECTION 4: COLOR WRAPPERS
const (
	ColorReset   = "\033[0m"
	ColorRed     = "\033[31m"
	ColorGreen   = "\033[32m"
	ColorYellow  = "\033[33m"
	ColorMagenta = "\033[35m"
	ColorCyan    = "\033[36m"
	ColorWhite   = "\033[37m"
	ColorBold    = "\033[1m"
)

func Green(text string) string   { return ColorGreen + text + ColorReset }
func Magenta(text string) string { return ColorMagenta + text + ColorReset }
func Cyan(text string) string    { return ColorCyan + text + ColorReset }
func HeaderPlus(text string) string {
	return ColorWhite + "[" + ColorCyan + "*" + ColorWhite + "] " + ColorCyan + text + ColorReset
}
func HeaderWarning(text string) string {
	return ColorWhite + "[" + ColorYellow + "!" + ColorWhite + "] " + ColorBold + ColorYellow + text + ColorReset
}
func HeaderSuccess(text string) string {
	return ColorWhite + "[" + ColorGreen + "+" + ColorWhite + "] " + ColorBold + ColorGreen + text + ColorReset
}

// }}}
// {{{ SECTION 5: DEBUG WRAPPER
func debugLog(debug bool, prefix, format string, args ...interface{}) {
	if debug {
		if prefix != "" {
			fmt.Printf("[%s] ", prefix)
		} else {
			fmt.Printf("[DEBUG] ")
		}
		fmt.Printf(format+"\n", args...)
	}
}

// }}}
// {{{ SECTION 6: STATUS & RESULT SINK
// Status is the shared result sink: it owns the output and log file
// handles, the live terminal status line, and the sweep counters.
// All methods are safe for concurrent use by the workers.
type Status struct {
	total int
	out   *os.File
	logf  *os.File // nil when -l is not set
	debug bool
	mute  bool

	mu        sync.Mutex
	completed int
	valid     int
	skipped   int
}

func NewStatus(total int, out, logf *os.File, debug, mute bool) *Status {
	return &Status{
		total: total,
		out:   out,
		logf:  logf,
		debug: debug,
		mute:  mute,
	}
}

// Testing redraws the status line with the pair currently being attempted.
func (s *Status) Testing(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draw(task)
}

// Skip records a task that was not attempted because its host is already
// known unreachable. Skips still count toward the total and still get a
// log line, so the log always carries one line per task.
func (s *Status) Skip(task Task, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed++
	s.skipped++
	if s.logf != nil {
		fmt.Fprintf(s.logf, "SKIPPED %s %s:%s %s\n",
			task.Target.Addr(), task.Credential.Username, task.Credential.Password, reason)
	}
	s.draw(task)
}

// Update records one attempt result. Successes are appended to the output
// file and printed immediately; the log file (when enabled) gets every
// result regardless of outcome.
func (s *Status) Update(res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed++
	target := res.Task.Target.Addr()
	cred := res.Task.Credential

	switch classify(res.Status) {
	case OutcomeSuccess:
		s.valid++
		if _, err := fmt.Fprintf(s.out, "%s %s:%s\n", target, cred.Username, cred.Password); err != nil {
			fmt.Fprintln(os.Stderr, HeaderWarning(fmt.Sprintf(
				"write output file: %v (hit: %s %s:%s)", err, target, cred.Username, cred.Password)))
		}
		if !s.mute {
			fmt.Printf("\r\033[K%s\n", HeaderSuccess(
				fmt.Sprintf("VALID: %s - %s:%s", target, cred.Username, cred.Password)))
		}
		if s.logf != nil {
			fmt.Fprintf(s.logf, "SUCCESS %s %s:%s\n", target, cred.Username, cred.Password)
		}
	case OutcomeAuthFailure:
		if s.logf != nil {
			fmt.Fprintf(s.logf, "FAILED %s %s:%s %s\n",
				target, cred.Username, cred.Password, res.Status)
		}
	case OutcomeConnectionError:
		if s.logf != nil {
			fmt.Fprintf(s.logf, "ERROR %s %s:%s %s %s\n",
				target, cred.Username, cred.Password, res.Status, res.Detail)
		}
	}

	debugLog(s.debug, "RESULT", "%s %s:%s -> %s (%.2fs) %s",
		target, cred.Username, cred.Password, res.Status, res.Elapsed, res.Detail)

	s.draw(res.Task)
}

func (s *Status) draw(task Task) {
	if s.mute {
		return
	}

	pct := 0.0
	if s.total > 0 {
		pct = float64(s.completed) / float64(s.total) * 100
	}
	line := fmt.Sprintf("[%s/%s (%.1f%%)] Valid: %s | Testing: %s - %s:%s",
		formatNumberWithCommas(int64(s.completed)),
		formatNumberWithCommas(int64(s.total)),
		pct,
		Magenta(strconv.Itoa(s.valid)),
		task.Target.Addr(),
		task.Credential.Username, task.Credential.Password)

	fmt.Print("\r\033[K" + line)
}

// Finish clears the status line.
func (s *Status) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mute {
		fmt.Print("\r\033[K")
	}
}

func (s *Status) ValidCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid
}

func (s *Status) SkippedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

func (s *Status) CompletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// }}}
// {{{ SECTION 7: UNREACHABLE HOSTS
// UnreachableSet tracks (host, port) pairs that hit a transport-level
// failure (see unreachableStatuses). Once marked, remaining tasks for
// the pair are skipped without dialing. Auth failures and server-side
// errors never mark a host unreachable.
type UnreachableSet struct {
	hosts  sync.Map
	marked int64
	debug  bool
	mute   bool
}

func NewUnreachableSet(debug, mute bool) *UnreachableSet {
	return &UnreachableSet{debug: debug, mute: mute}
}

// Mark records a target as unreachable. Returns true the first time the
// target is marked; the announcement is printed only once per target.
func (u *UnreachableSet) Mark(target Target, reason string) bool {
	if _, loaded := u.hosts.LoadOrStore(target.Addr(), reason); loaded {
		return false
	}
	atomic.AddInt64(&u.marked, 1)
	if !u.mute {
		fmt.Printf("\r\033[K%s\n", HeaderWarning(
			fmt.Sprintf("Marking %s as unreachable: %s", target.Addr(), reason)))
	}
	debugLog(u.debug, "UNREACHABLE", "Host %s marked: %s", target.Addr(), reason)
	return true
}

func (u *UnreachableSet) Contains(target Target) bool {
	_, ok := u.hosts.Load(target.Addr())
	return ok
}

func (u *UnreachableSet) Count() int64 {
	return atomic.LoadInt64(&u.marked)
}

// }}}
// {{{ SECTION 8: STATUS TAXONOMY
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeAuthFailure
	OutcomeConnectionError
)

var (
	successStatuses = map[string]bool{
		"success":      true,
		"shell-access": true,
	}

	authFailedStatuses = map[string]bool{
		"auth-failed":      true,
		"access-denied":    true,
		"account-locked":   true,
		"password-expired": true,
	}

	// unreachableStatuses are the transport-level failures that prove
	// the service itself cannot be reached. Server-side errors such as
	// db-error come from a host that answered, so they never suppress
	// the rest of that host's sweep.
	unreachableStatuses = map[string]bool{
		"timeout":             true,
		"connection-refused":  true,
		"connection-reset":    true,
		"no-route":            true,
		"network-unreachable": true,
		"banner-timeout":      true,
	}
)

// classify maps a tester status string onto the three sweep outcomes.
// Anything that is neither a success nor a recognized authentication
// rejection is treated as a connection-level error, so an unexpected
// library error can never abort the sweep.
func classify(status string) Outcome {
	if successStatuses[status] {
		return OutcomeSuccess
	}
	if authFailedStatuses[status] {
		return OutcomeAuthFailure
	}
	return OutcomeConnectionError
}

// }}}
// {{{ SECTION 9: DISPATCHER
// buildTasks produces the full cross product in a fixed order:
// credentials outer, targets inner, both in file order.
func buildTasks(targets []Target, creds []Credential) []Task {
	tasks := make([]Task, 0, len(targets)*len(creds))
	for _, cred := range creds {
		for _, target := range targets {
			tasks = append(tasks, Task{Target: target, Credential: cred})
		}
	}
	return tasks
}

type Dispatcher struct {
	tester  ProtocolTester
	status  *Status
	dead    *UnreachableSet
	threads int
	delay   float64
	debug   bool
}

func NewDispatcher(tester ProtocolTester, status *Status, dead *UnreachableSet, threads int, delay float64, debug bool) *Dispatcher {
	if threads < 1 {
		threads = 1
	}
	return &Dispatcher{
		tester:  tester,
		status:  status,
		dead:    dead,
		threads: threads,
		delay:   delay,
		debug:   debug,
	}
}

// Run feeds every task through the worker pool exactly once. Closing the
// stop channel halts dispatch of new tasks; in-flight attempts finish.
func (d *Dispatcher) Run(tasks []Task, stop <-chan struct{}) {
	queue := make(chan Task)
	var wg sync.WaitGroup

	for i := 0; i < d.threads; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.worker(id, queue)
		}(i)
	}

	debugLog(d.debug, "DISPATCHER", "Started %d workers for %d tasks", d.threads, len(tasks))

feed:
	for _, task := range tasks {
		select {
		case queue <- task:
		case <-stop:
			debugLog(d.debug, "DISPATCHER", "Stop requested, halting dispatch")
			break feed
		}
	}
	close(queue)
	wg.Wait()
}

func (d *Dispatcher) worker(id int, queue <-chan Task) {
	for task := range queue {
		d.attempt(task)
		if d.delay > 0 {
			time.Sleep(time.Duration(d.delay * float64(time.Second)))
		}
	}
	debugLog(d.debug, "WORKER", "Worker %d drained", id)
}

// attempt runs one connect-auth-disconnect cycle and records the result.
func (d *Dispatcher) attempt(task Task) {
	if d.dead.Contains(task.Target) {
		d.status.Skip(task, "unreachable")
		return
	}

	d.status.Testing(task)
	status, elapsed, detail := d.tester.Test(
		task.Target.Host, task.Target.Port,
		task.Credential.Username, task.Credential.Password)

	if unreachableStatuses[status] {
		reason := status
		if detail != "" {
			reason = detail
		}
		d.dead.Mark(task.Target, reason)
	}

	d.status.Update(Result{Task: task, Status: status, Elapsed: elapsed, Detail: detail})
}

// }}}
// {{{ SECTION 10: MAIN
func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[!] "+format+"\n", args...)
	os.Exit(2)
}

func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.DBType, "db", "", "service type: "+strings.Join(availableDBs(), ", "))
	flag.StringVar(&cfg.DBType, "d", "", "short for --db")
	flag.StringVar(&cfg.Target, "target", "", "single target (host or host:port)")
	flag.StringVar(&cfg.Target, "t", "", "short for --target")
	flag.StringVar(&cfg.TargetFile, "target-file", "", "file with one target per line")
	flag.StringVar(&cfg.TargetFile, "T", "", "short for --target-file")
	flag.IntVar(&cfg.PortOverride, "port", 0, "port override (default: service-specific)")
	flag.IntVar(&cfg.PortOverride, "p", 0, "short for --port")
	flag.StringVar(&cfg.CredsFile, "creds", "", "credential file (default: credz/<db>.txt)")
	flag.StringVar(&cfg.CredsFile, "c", "", "short for --creds")
	flag.StringVar(&cfg.OutputFile, "output", "./valid_credz.txt", "output file for valid credentials")
	flag.StringVar(&cfg.OutputFile, "o", "./valid_credz.txt", "short for --output")
	flag.StringVar(&cfg.LogFile, "log", "", "log file for all attempts (optional)")
	flag.StringVar(&cfg.LogFile, "l", "", "short for --log")
	flag.IntVar(&cfg.Threads, "threads", 1, "number of concurrent workers")
	flag.Float64Var(&cfg.Timeout, "timeout", 5, "per-attempt timeout in seconds")
	flag.Float64Var(&cfg.Delay, "delay", 0, "delay in seconds between attempts per worker")
	flag.BoolVar(&cfg.Debug, "debug", false, "verbose diagnostics")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s --db TYPE (-t HOST[:PORT] | -T FILE) [options]\n\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nexamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --db mysql -t 192.168.1.100\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --db mssql -t 10.0.0.50 -p 1434 --threads 20\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --db postgres -T targets.txt -c creds.txt -o results.txt\n", os.Args[0])
	}

	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()

	if cfg.DBType == "" {
		fatal("--db is required (one of: %s)", strings.Join(availableDBs(), ", "))
	}
	tester := createProtocolTester(cfg.DBType, cfg.Timeout)
	if tester == nil {
		fatal("unknown service type %q (one of: %s)", cfg.DBType, strings.Join(availableDBs(), ", "))
	}
	if cfg.Target == "" && cfg.TargetFile == "" {
		fatal("no targets: use -t HOST[:PORT] or -T FILE")
	}
	if cfg.Threads < 1 {
		fatal("--threads must be >= 1")
	}

	credFile := cfg.CredsFile
	if credFile == "" {
		credFile = defaultCredFile(cfg.DBType)
	}
	creds, err := parseCredentials(credFile)
	if err != nil {
		fatal("%v", err)
	}
	if len(creds) == 0 {
		fatal("no credentials found in %s", credFile)
	}

	targets, err := parseTargets(cfg.Target, cfg.TargetFile, defaultPort(cfg.DBType), cfg.PortOverride)
	if err != nil {
		fatal("%v", err)
	}
	if len(targets) == 0 {
		fatal("no valid targets resolved")
	}

	tasks := buildTasks(targets, creds)

	fmt.Println(HeaderPlus(fmt.Sprintf("Service: %s", strings.ToUpper(cfg.DBType))))
	fmt.Println(HeaderPlus(fmt.Sprintf("Targets: %d | Credentials: %d (%s) | Total: %s",
		len(targets), len(creds), filepath.Base(credFile),
		formatNumberWithCommas(int64(len(tasks))))))
	logNote := ""
	if cfg.LogFile != "" {
		logNote = " | Log: " + cfg.LogFile
	}
	fmt.Println(HeaderPlus(fmt.Sprintf("Threads: %d | Timeout: %.0fs | Output: %s%s",
		cfg.Threads, cfg.Timeout, cfg.OutputFile, logNote)))
	fmt.Println(strings.Repeat("-", 60))

	out, err := os.OpenFile(cfg.OutputFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fatal("open output file: %v", err)
	}

	var logf *os.File
	if cfg.LogFile != "" {
		logf, err = os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			out.Close()
			fatal("open log file: %v", err)
		}
	}

	status := NewStatus(len(tasks), out, logf, cfg.Debug, false)
	dead := NewUnreachableSet(cfg.Debug, false)

	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Printf("\r\033[K%s\n", HeaderWarning("Interrupt: finishing in-flight attempts..."))
		close(stop)
	}()

	start := time.Now()
	dispatcher := NewDispatcher(tester, status, dead, cfg.Threads, cfg.Delay, cfg.Debug)
	dispatcher.Run(tasks, stop)
	signal.Stop(sigCh)

	status.Finish()
	fmt.Println(strings.Repeat("-", 60))
	fmt.Println(HeaderPlus(fmt.Sprintf("Complete: %d/%d valid credentials found in %s",
		status.ValidCount(), len(tasks), formatDuration(time.Since(start).Seconds()))))
	if dead.Count() > 0 {
		fmt.Println(HeaderPlus(fmt.Sprintf("Unreachable hosts: %d (%d attempts skipped)",
			dead.Count(), status.SkippedCount())))
	}
	if status.ValidCount() > 0 {
		fmt.Println(HeaderPlus("Valid credentials saved to: " + cfg.OutputFile))
	}

	valid := status.ValidCount()
	out.Close()
	if logf != nil {
		logf.Close()
	}

	if valid > 0 {
		os.Exit(0)
	}
	os.Exit(1)
}

// }}}
