package scanner

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/lms-scan/lms-scan/internal/charset"
	"github.com/lms-scan/lms-scan/internal/database"
	"github.com/lms-scan/lms-scan/internal/parser"
	"github.com/lms-scan/lms-scan/internal/parser/catalog"
)

// WorkerFlag is the hidden argv[1] a binary checks for before doing
// anything else, to re-exec itself as a scan worker process instead of
// starting the daemon. Go can't fork() safely without exec in a
// multi-threaded runtime, so this self-reexec is the idiomatic stand-in
// for the original's true two-OS-process driver/worker split: a worker
// that segfaults on a malformed file takes down only that child process,
// never the daemon (spec.md §5, §9).
const WorkerFlag = "__lms_scan_worker__"

// Job is one unit of work sent from the driver to the worker: a file
// already matched to a plugin and already given a files-table row by the
// driver, needing only that plugin's Parse to run.
type Job struct {
	FileID int64
	Path   string
	Base   int
	Parser string
}

// Result is the worker's reply to one Job. Error is empty on success.
type Result struct {
	FileID int64
	Error  string
}

// RunWorker is the worker process's entry point. It opens its own
// database handle, builds a registry restricted to parserNames, and loops
// reading length-prefixed JSON Jobs from stdin and writing length-prefixed
// JSON Results to stdout until stdin is closed by the driver. commitInterval
// is spec.md §4.6's commit_interval: the worker issues a WAL checkpoint
// every commitInterval successful parses, and once more on clean shutdown,
// rather than leaving WAL pages to accumulate for the whole scan.
func RunWorker(dbPath string, parserNames, charsetNames []string, commitInterval int) error {
	store, err := database.OpenPath(dbPath, false)
	if err != nil {
		return fmt.Errorf("worker: open database: %w", err)
	}
	defer store.Close()

	plugins, err := catalog.ByNames(parserNames)
	if err != nil {
		return fmt.Errorf("worker: resolve parsers: %w", err)
	}
	registry := parser.NewRegistry(plugins...)

	cs := charset.New(charsetNames, true, true)
	pctx := &parser.Context{Store: store, Charset: cs}

	if err := registry.SetupAll(pctx); err != nil {
		return fmt.Errorf("worker: setup plugins: %w", err)
	}
	if err := registry.StartAll(); err != nil {
		return fmt.Errorf("worker: start plugins: %w", err)
	}
	defer registry.FinishAll()
	defer registry.CloseAll()

	r := bufio.NewReader(os.Stdin)
	w := bufio.NewWriter(os.Stdout)
	batch := database.NewBatcher(commitInterval)

	for {
		job, err := readJob(r)
		if err == io.EOF {
			if cpErr := store.Checkpoint(); cpErr != nil {
				return fmt.Errorf("worker: final checkpoint: %w", cpErr)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("worker: read job: %w", err)
		}

		res := Result{FileID: job.FileID}
		plugin := findPlugin(registry, job.Parser)
		if plugin == nil {
			res.Error = fmt.Sprintf("no plugin named %q loaded", job.Parser)
		} else {
			finfo := parser.FileInfo{Path: job.Path, Base: job.Base}
			if err := plugin.Parse(pctx, finfo, nil); err != nil {
				res.Error = err.Error()
			}
		}

		if res.Error == "" && batch.Tick() {
			if err := store.Checkpoint(); err != nil {
				return fmt.Errorf("worker: checkpoint: %w", err)
			}
		}

		if err := writeResult(w, res); err != nil {
			return fmt.Errorf("worker: write result: %w", err)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("worker: flush result: %w", err)
		}
	}
}

func findPlugin(r *parser.Registry, name string) parser.Plugin {
	for _, p := range r.Plugins() {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

func readJob(r *bufio.Reader) (Job, error) {
	var job Job
	payload, err := readFrame(r)
	if err != nil {
		return job, err
	}
	return job, json.Unmarshal(payload, &job)
}

func writeResult(w *bufio.Writer, res Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return writeFrame(w, payload)
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// Driver supervises a worker subprocess: it dispatches Jobs one at a time
// and enforces SlaveTimeout (spec.md §4.6's slave_timeout_ms), killing and
// respawning the worker if a single file's parse doesn't return in time
// instead of letting one bad file hang or corrupt an entire scan.
type Driver struct {
	dbPath         string
	parserNames    []string
	charsetNames   []string
	slaveTimeout   time.Duration
	commitInterval int

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

// NewDriver builds a Driver. The caller supplies the same parser/charset
// lists the daemon's own in-process registry would use, so the worker's
// view of "which plugins are loaded" always matches the driver's, and the
// same commitInterval (spec.md §4.6) the worker should checkpoint against.
func NewDriver(dbPath string, parserNames, charsetNames []string, slaveTimeout time.Duration, commitInterval int) *Driver {
	return &Driver{dbPath: dbPath, parserNames: parserNames, charsetNames: charsetNames, slaveTimeout: slaveTimeout, commitInterval: commitInterval}
}

func (d *Driver) spawn() error {
	cmd := exec.Command(os.Args[0], WorkerFlag, d.dbPath,
		strings.Join(d.parserNames, ","), strings.Join(d.charsetNames, ","),
		strconv.Itoa(d.commitInterval))
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("driver: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("driver: stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("driver: start worker: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	return nil
}

// Start spawns the first worker process.
func (d *Driver) Start() error {
	return d.spawn()
}

// Dispatch sends job to the worker and waits up to SlaveTimeout for its
// result. A timeout kills the current worker; the next Dispatch call
// transparently spawns a replacement.
func (d *Driver) Dispatch(job Job) (Result, error) {
	if d.cmd == nil {
		if err := d.spawn(); err != nil {
			return Result{}, err
		}
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return Result{}, fmt.Errorf("dispatch: marshal job: %w", err)
	}
	if err := writeFrame(d.stdin, payload); err != nil {
		d.kill()
		return Result{}, fmt.Errorf("dispatch: write job: %w", err)
	}

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		payload, err := readFrame(d.stdout)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		var res Result
		err = json.Unmarshal(payload, &res)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			d.kill()
			return Result{}, fmt.Errorf("dispatch: read result for %s: %w", job.Path, out.err)
		}
		return out.res, nil
	case <-time.After(d.slaveTimeout):
		d.kill()
		return Result{}, fmt.Errorf("dispatch: worker timed out after %s on %s", d.slaveTimeout, job.Path)
	}
}

func (d *Driver) kill() {
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
		d.cmd.Wait()
	}
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil
}

// Stop closes the worker's stdin (signaling clean shutdown) and waits for
// it to exit.
func (d *Driver) Stop() {
	if d.stdin != nil {
		d.stdin.Close()
	}
	if d.cmd != nil {
		d.cmd.Wait()
	}
}
