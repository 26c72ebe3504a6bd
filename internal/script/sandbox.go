package script

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"log"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/traefik/yaegi/interp"

	"voxelplay.ai/internal/sim/voxel"
)

var (
	ErrTimeout  = errors.New("script exceeded its time budget")
	ErrCanceled = errors.New("script canceled")
	ErrBusy     = errors.New("a script is already running")
	ErrGoStmt   = errors.New("go statements are not allowed in scripts")
)

// RuntimeError is any failure raised while a script ran: compile errors,
// panics, bad API arguments and budget overruns.
type RuntimeError struct {
	Msg string
	Err error
}

func (e *RuntimeError) Error() string { return e.Msg }
func (e *RuntimeError) Unwrap() error { return e.Err }

type Options struct {
	Timeout      time.Duration
	DefaultColor voxel.Color
	// Logger is the host diagnostic channel console output is mirrored to.
	Logger *log.Logger
	// Now is the clock used for line timestamps. Defaults to time.Now.
	Now func() time.Time
}

type Result struct {
	Started   time.Time
	Duration  time.Duration
	Lines     []Line
	Cleared   bool
	Mutations int
	Err       error
}

// Sandbox runs user scripts against a World. Scripts are Go source executed
// by an interpreter that only knows the api and console packages.
type Sandbox struct {
	world World
	sink  Sink
	opts  Options

	running atomic.Bool
}

const entryName = "voxelplayEntry"

var (
	mainDecl    = regexp.MustCompile(`(?m)^func\s+main\s*\(\s*\)`)
	packageMain = regexp.MustCompile(`(?m)^package\s+main\s*$`)
)

func New(w World, sink Sink, opts Options) *Sandbox {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sandbox{world: w, sink: sink, opts: opts}
}

func (s *Sandbox) Running() bool { return s.running.Load() }

// Execute runs code to completion, or until ctx ends or the time budget runs
// out. Failures never escape as panics; they are written to the sink and
// returned in Result.Err. A call made while another is in flight returns
// ErrBusy without touching the world.
func (s *Sandbox) Execute(ctx context.Context, code string) Result {
	res := Result{Started: s.opts.Now()}
	if !s.running.CompareAndSwap(false, true) {
		res.Err = ErrBusy
		return res
	}
	defer s.running.Store(false)

	con := &console{sink: s.sink, logger: s.opts.Logger, now: s.opts.Now}
	b := &binding{world: s.world, defaultColor: s.opts.DefaultColor, con: con}
	con.emit(LevelLog, "Running code...")

	err := s.run(ctx, b, code)
	b.revoke()

	res.Duration = s.opts.Now().Sub(res.Started)
	res.Mutations = b.mutations
	if err != nil {
		res.Err = classify(err, s.opts.Timeout)
		con.emit(LevelError, "Error: "+res.Err.Error())
	}
	res.Lines = con.lines
	res.Cleared = con.cleared
	return res
}

func (s *Sandbox) run(parent context.Context, b *binding, code string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	stdout := &lineWriter{b: b, level: LevelLog}
	stderr := &lineWriter{b: b, level: LevelError}
	in := interp.New(interp.Options{
		Stdin:                strings.NewReader(""),
		Stdout:               stdout,
		Stderr:               stderr,
		Args:                 []string{},
		Env:                  []string{},
		SourcecodeFilesystem: emptyFS{},
	})
	if err := in.Use(b.exports()); err != nil {
		return err
	}
	in.ImportUsed()

	ctx, cancel := context.WithTimeout(parent, s.opts.Timeout)
	defer cancel()

	src := wrap(code)
	if err := checkSource(src, mainDecl.MatchString(code)); err != nil {
		return err
	}
	if _, err := in.EvalWithContext(ctx, src); err != nil {
		return err
	}
	if _, err := in.EvalWithContext(ctx, entryName+"()"); err != nil {
		return err
	}
	stdout.flush()
	stderr.flush()
	return nil
}

// wrap turns a statement list into a function, or renames an explicit main
// so it is only ever invoked once, by us.
func wrap(code string) string {
	if mainDecl.MatchString(code) {
		code = packageMain.ReplaceAllString(code, "")
		return mainDecl.ReplaceAllString(code, "func "+entryName+"()")
	}
	return "func " + entryName + "() {\n" + code + "\n}"
}

// checkSource rejects constructs that would escape the invocation: a
// goroutine started by a script outlives the recover around the entry call.
// Source that does not parse is left for the interpreter to report.
func checkSource(src string, explicitMain bool) error {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "script.go", "package main\n"+src, 0)
	if err != nil {
		return nil
	}
	var found token.Pos
	ast.Inspect(f, func(n ast.Node) bool {
		if g, ok := n.(*ast.GoStmt); ok && found == token.NoPos {
			found = g.Pos()
		}
		return found == token.NoPos
	})
	if found != token.NoPos {
		// Map back to the user's lines: one for the package clause, one more
		// for the func header wrapped around a statement list.
		pos := fset.Position(found)
		line := pos.Line - 1
		if !explicitMain {
			line--
		}
		return fmt.Errorf("line %d: %w", line, ErrGoStmt)
	}
	return nil
}

func classify(err error, budget time.Duration) error {
	var p interp.Panic
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &RuntimeError{Msg: fmt.Sprintf("%v (%s)", ErrTimeout, budget), Err: ErrTimeout}
	case errors.Is(err, context.Canceled):
		return &RuntimeError{Msg: ErrCanceled.Error(), Err: ErrCanceled}
	case errors.As(err, &p):
		inner, _ := p.Value.(error)
		return &RuntimeError{Msg: fmt.Sprintf("panic: %v", p.Value), Err: inner}
	default:
		return &RuntimeError{Msg: err.Error(), Err: err}
	}
}

// emptyFS keeps the interpreter from loading source packages off disk.
type emptyFS struct{}

func (emptyFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
