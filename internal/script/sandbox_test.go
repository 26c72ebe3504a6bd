package script

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"voxelplay.ai/internal/sim/voxel"
)

func newSandbox(t *testing.T, timeout time.Duration) (*Sandbox, *voxel.Store, *Buffer) {
	t.Helper()
	st := voxel.NewStore()
	buf := NewBuffer(0)
	sb := New(st, buf, Options{Timeout: timeout, DefaultColor: 0x4caf50})
	return sb, st, buf
}

func TestExecute_MutatesWorld(t *testing.T) {
	sb, st, _ := newSandbox(t, 5*time.Second)
	res := sb.Execute(context.Background(), `
api.SetVoxel(0, 0, 0)
api.SetVoxel(1, 0, 0, "#ff0000")
api.SetVoxel(2, 0, 0, 0x0000ff)
api.SetVoxel(0, 0, 0, "#ffffff")
api.RemoveVoxel(9, 9, 9)
`)
	if res.Err != nil {
		t.Fatalf("execute: %v", res.Err)
	}
	if st.Len() != 3 || res.Mutations != 3 {
		t.Fatalf("len=%d mutations=%d", st.Len(), res.Mutations)
	}
	want := map[[3]int]voxel.Color{{0, 0, 0}: 0x4caf50, {1, 0, 0}: 0xff0000, {2, 0, 0}: 0x0000ff}
	for c, col := range want {
		v, ok := st.Get(c[0], c[1], c[2])
		if !ok || v.Color != col {
			t.Fatalf("voxel %v: %+v ok=%v want %v", c, v, ok, col)
		}
	}
}

func TestExecute_ReadsWorldAndLogs(t *testing.T) {
	sb, st, buf := newSandbox(t, 5*time.Second)
	_, _ = st.Set(3, 4, 5, 0x123456)
	res := sb.Execute(context.Background(), `
v := api.GetVoxel(3, 4, 5)
if v == nil {
	console.Error("missing")
	return
}
console.Log("color", v.Color, "count", len(api.GetVoxels()))
if api.GetVoxel(0, 0, 0) == nil {
	console.Log("empty")
}
`)
	if res.Err != nil {
		t.Fatalf("execute: %v", res.Err)
	}
	lines := buf.Lines()
	if len(lines) != 3 {
		t.Fatalf("lines: %+v", lines)
	}
	if lines[0].Text != "Running code..." {
		t.Fatalf("first line: %q", lines[0].Text)
	}
	if lines[1].Text != "color 1193046 count 1" || lines[1].Level != LevelLog {
		t.Fatalf("log line: %+v", lines[1])
	}
	if lines[2].Text != "empty" {
		t.Fatalf("last line: %+v", lines[2])
	}
	if !strings.Contains(lines[1].String(), " | color") {
		t.Fatalf("line should carry a timestamp prefix: %q", lines[1].String())
	}
}

func TestExecute_ConsoleClear(t *testing.T) {
	sb, _, buf := newSandbox(t, 5*time.Second)
	buf.Append(Line{Text: "old"})
	res := sb.Execute(context.Background(), `console.Clear(); console.Log("fresh")`)
	if res.Err != nil {
		t.Fatalf("execute: %v", res.Err)
	}
	lines := buf.Lines()
	if len(lines) != 1 || lines[0].Text != "fresh" || !res.Cleared {
		t.Fatalf("lines after clear: %+v", lines)
	}
}

func TestExecute_ClearAll(t *testing.T) {
	sb, st, _ := newSandbox(t, 5*time.Second)
	for i := 0; i < 5; i++ {
		_, _ = st.Set(i, 0, 0, 1)
	}
	if res := sb.Execute(context.Background(), `api.ClearAll()`); res.Err != nil {
		t.Fatalf("execute: %v", res.Err)
	}
	if st.Len() != 0 {
		t.Fatalf("len: %d", st.Len())
	}
}

func TestExecute_ErrorsAreContained(t *testing.T) {
	cases := map[string]string{
		"compile":   `api.Nope()`,
		"syntax":    `for {`,
		"bad color": `api.SetVoxel(0, 0, 0, "not-a-color")`,
		"range":     `api.SetVoxel(1<<22, 0, 0)`,
		"panic":     `panic("boom")`,
	}
	for name, code := range cases {
		sb, _, buf := newSandbox(t, 5*time.Second)
		res := sb.Execute(context.Background(), code)
		var rerr *RuntimeError
		if !errors.As(res.Err, &rerr) {
			t.Fatalf("%s: expected RuntimeError, got %v", name, res.Err)
		}
		lines := buf.Lines()
		last := lines[len(lines)-1]
		if last.Level != LevelError || !strings.HasPrefix(last.Text, "Error: ") {
			t.Fatalf("%s: last line %+v", name, last)
		}
		if sb.Running() {
			t.Fatalf("%s: sandbox still marked running", name)
		}
	}
}

func TestExecute_BadColorLeavesWorldUnchanged(t *testing.T) {
	sb, st, _ := newSandbox(t, 5*time.Second)
	res := sb.Execute(context.Background(), `api.SetVoxel(0, 0, 0, "#12")`)
	if !errors.Is(res.Err, voxel.ErrBadColor) {
		t.Fatalf("expected ErrBadColor in chain, got %v", res.Err)
	}
	if st.Len() != 0 {
		t.Fatalf("len: %d", st.Len())
	}
}

func TestExecute_NoAmbientCapabilities(t *testing.T) {
	programs := []string{
		"package main\n\nimport \"os\"\n\nfunc main() { os.Exit(3) }\n",
		"package main\n\nimport \"net/http\"\n\nfunc main() { http.Get(\"http://example.com\") }\n",
		"package main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println(1) }\n",
	}
	for _, src := range programs {
		sb, _, _ := newSandbox(t, 5*time.Second)
		if res := sb.Execute(context.Background(), src); res.Err == nil {
			t.Fatalf("expected import failure for %q", src)
		}
	}
}

func TestExecute_ExplicitMainRunsOnce(t *testing.T) {
	sb, _, buf := newSandbox(t, 5*time.Second)
	src := "package main\n\nfunc helper() string { return \"hi\" }\n\nfunc main() {\n\tconsole.Log(helper())\n}\n"
	if res := sb.Execute(context.Background(), src); res.Err != nil {
		t.Fatalf("execute: %v", res.Err)
	}
	n := 0
	for _, l := range buf.Lines() {
		if l.Text == "hi" {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("main ran %d times", n)
	}
}

func TestExecute_TimeoutStopsMutation(t *testing.T) {
	sb, st, _ := newSandbox(t, 100*time.Millisecond)
	start := time.Now()
	res := sb.Execute(context.Background(), `
i := 0
for {
	api.SetVoxel(i%1000, i/1000, 0)
	i++
}
`)
	if !errors.Is(res.Err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", res.Err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("timeout took too long: %v", time.Since(start))
	}
	n := st.Len()
	time.Sleep(50 * time.Millisecond)
	if st.Len() != n {
		t.Fatalf("world mutated after Execute returned: %d -> %d", n, st.Len())
	}
}

func TestExecute_ContextCancel(t *testing.T) {
	sb, _, _ := newSandbox(t, 10*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	res := sb.Execute(ctx, `for {}`)
	if !errors.Is(res.Err, ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", res.Err)
	}
}

func TestExecute_RejectsGoStatements(t *testing.T) {
	for _, src := range []string{
		"go func() { panic(\"boom\") }()\nfor i := 0; i < 2000000; i++ {}",
		"package main\n\nfunc work() { api.SetVoxel(1, 1, 1) }\n\nfunc main() {\n\tgo work()\n}\n",
		"f := func() { go func() {}() }\nf()",
	} {
		sb, st, buf := newSandbox(t, 5*time.Second)
		res := sb.Execute(context.Background(), src)
		if !errors.Is(res.Err, ErrGoStmt) {
			t.Fatalf("%q: expected ErrGoStmt, got %v", src, res.Err)
		}
		var rerr *RuntimeError
		if !errors.As(res.Err, &rerr) {
			t.Fatalf("%q: expected *RuntimeError, got %T", src, res.Err)
		}
		if st.Len() != 0 {
			t.Fatalf("%q: world mutated", src)
		}
		lines := buf.Lines()
		if last := lines[len(lines)-1]; last.Level != LevelError || !strings.HasPrefix(last.Text, "Error: ") {
			t.Fatalf("%q: last line %+v", src, last)
		}
	}
}

func TestBinding_RevokedCallsAreInert(t *testing.T) {
	st := voxel.NewStore()
	buf := NewBuffer(0)
	b := &binding{world: st, defaultColor: 0x4caf50, con: &console{sink: buf, now: time.Now}}
	b.setVoxel(0, 0, 0)
	b.revoke()

	b.setVoxel(1, 0, 0, "#ff0000")
	b.removeVoxel(0, 0, 0)
	b.clearAll()
	b.log("late")
	b.error("late")
	b.clearConsole()
	if v := b.getVoxel(0, 0, 0); v != nil {
		t.Fatalf("getVoxel after revoke: %+v", v)
	}
	if vs := b.getVoxels(); vs != nil {
		t.Fatalf("getVoxels after revoke: %+v", vs)
	}
	w := &lineWriter{b: b, level: LevelLog}
	if n, err := w.Write([]byte("late\n")); err != nil || n != 5 {
		t.Fatalf("write after revoke: n=%d err=%v", n, err)
	}

	if st.Len() != 1 || b.mutations != 1 {
		t.Fatalf("len=%d mutations=%d", st.Len(), b.mutations)
	}
	if lines := buf.Lines(); len(lines) != 0 {
		t.Fatalf("console written after revoke: %+v", lines)
	}
}

type signalSink struct {
	*Buffer
	once    sync.Once
	started chan struct{}
}

func (s *signalSink) Append(l Line) {
	s.Buffer.Append(l)
	if l.Text == "started" {
		s.once.Do(func() { close(s.started) })
	}
}

func TestExecute_BusyWhileRunning(t *testing.T) {
	sink := &signalSink{Buffer: NewBuffer(0), started: make(chan struct{})}
	st := voxel.NewStore()
	sb := New(st, sink, Options{Timeout: 300 * time.Millisecond})

	done := make(chan Result, 1)
	go func() { done <- sb.Execute(context.Background(), `console.Log("started"); for {}`) }()
	<-sink.started

	res := sb.Execute(context.Background(), `api.SetVoxel(0, 0, 0)`)
	if !errors.Is(res.Err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", res.Err)
	}
	if st.Len() != 0 {
		t.Fatalf("busy call mutated the world")
	}
	if first := <-done; !errors.Is(first.Err, ErrTimeout) {
		t.Fatalf("first run: %v", first.Err)
	}
	if res := sb.Execute(context.Background(), `api.SetVoxel(0, 0, 0)`); res.Err != nil {
		t.Fatalf("sandbox not reusable after timeout: %v", res.Err)
	}
}

func TestExamples_RunClean(t *testing.T) {
	for _, name := range ExampleNames() {
		sb, st, _ := newSandbox(t, 5*time.Second)
		res := sb.Execute(context.Background(), Examples()[name])
		if res.Err != nil {
			t.Fatalf("example %s: %v", name, res.Err)
		}
		if st.Len() == 0 {
			t.Fatalf("example %s built nothing", name)
		}
	}
}

func TestExamples_Spiral(t *testing.T) {
	sb, st, _ := newSandbox(t, 5*time.Second)
	if res := sb.Execute(context.Background(), Examples()["spiral"]); res.Err != nil {
		t.Fatalf("spiral: %v", res.Err)
	}
	if st.Len() != 20 {
		t.Fatalf("len=%d", st.Len())
	}
	v, ok := st.Get(5, 0, 0)
	if !ok || v.Color != 0xff0000 {
		t.Fatalf("base: %+v ok=%v", v, ok)
	}
	if _, ok := st.Get(4, 19, -3); !ok {
		t.Fatalf("top missing")
	}
	v, _ = st.Get(-5, 10, 1)
	if v.Color != 0x00ffff {
		t.Fatalf("layer 10 color: %v", v.Color)
	}
}

func TestExamples_House(t *testing.T) {
	sb, st, _ := newSandbox(t, 5*time.Second)
	if res := sb.Execute(context.Background(), Examples()["house"]); res.Err != nil {
		t.Fatalf("house: %v", res.Err)
	}
	if _, ok := st.Get(-2, 0, -2); !ok {
		t.Fatalf("corner missing")
	}
	if _, ok := st.Get(0, 0, 0); ok {
		t.Fatalf("interior filled")
	}
	if _, ok := st.Get(0, 0, -2); ok {
		t.Fatalf("door not cut")
	}
	v, _ := st.Get(0, 4, 0)
	if v.Color != 0xff0000 {
		t.Fatalf("roof color: %v", v.Color)
	}
}
