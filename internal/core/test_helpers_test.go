package core

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/proto"
	"github.com/vovakirdan/linechat-server/internal/store/memory"
)

// pipeConn is an in-memory Conn. The test writes client lines to in and reads server
// lines from out.
type pipeConn struct {
	remote string
	in     chan string
	out    chan string
	closed chan struct{}
	once   sync.Once
}

func newPipeConn(remote string) *pipeConn {
	return &pipeConn{
		remote: remote,
		in:     make(chan string),
		out:    make(chan string, 256),
		closed: make(chan struct{}),
	}
}

func (c *pipeConn) ReadLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-c.in:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-c.closed:
		return "", net.ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *pipeConn) WriteLine(ctx context.Context, line string) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	select {
	case c.out <- line:
		return nil
	case <-c.closed:
		return net.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *pipeConn) RemoteAddr() string {
	return c.remote
}

func (c *pipeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeUsers struct {
	mu     sync.Mutex
	users  map[string]string
	broken bool
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]string)}
}

func (f *fakeUsers) Register(_ context.Context, username, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken {
		return errors.New("store offline")
	}
	if username == "" || password == "" {
		return errors.New("invalid credentials")
	}
	if _, ok := f.users[username]; ok {
		return errors.New("user exists")
	}
	f.users[username] = password
	return nil
}

func (f *fakeUsers) Verify(_ context.Context, username, password string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken {
		return false, errors.New("store offline")
	}
	stored, ok := f.users[username]
	return ok && stored == password, nil
}

type testEnv struct {
	t     *testing.T
	hub   *Hub
	users *fakeUsers
	ctx   context.Context
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	logger := zerolog.Nop()
	users := newFakeUsers()
	return &testEnv{
		t:     t,
		hub:   NewHub(users, memory.New(), opts, &logger),
		users: users,
		ctx:   ctx,
	}
}

type testPeer struct {
	t    *testing.T
	conn *pipeConn
	done chan error
}

// connect starts a session and returns a handle to drive it.
func (e *testEnv) connect(remote string) *testPeer {
	e.t.Helper()

	conn := newPipeConn(remote)
	done := make(chan error, 1)
	go func() {
		done <- e.hub.Serve(e.ctx, conn)
	}()
	return &testPeer{t: e.t, conn: conn, done: done}
}

// login registers and logs in, consuming both SUCCESS replies.
func (e *testEnv) login(remote, user, pass string) *testPeer {
	e.t.Helper()

	p := e.connect(remote)
	p.send(proto.EncodeRegister(user, pass))
	p.expect(proto.ReplySuccess)
	p.send(proto.EncodeLogin(user, pass))
	p.expect(proto.ReplySuccess)
	return p
}

func (p *testPeer) send(line string) {
	p.t.Helper()
	select {
	case p.conn.in <- line:
	case <-time.After(2 * time.Second):
		p.t.Fatalf("server did not read %q", line)
	}
}

func (p *testPeer) next() string {
	p.t.Helper()
	select {
	case line := <-p.conn.out:
		return line
	case <-time.After(2 * time.Second):
		p.t.Fatalf("expected a line from server")
		return ""
	}
}

func (p *testPeer) expect(want string) {
	p.t.Helper()
	if got := p.next(); got != want {
		p.t.Fatalf("expected %q, got %q", want, got)
	}
}

func (p *testPeer) expectSilence() {
	p.t.Helper()
	select {
	case line := <-p.conn.out:
		p.t.Fatalf("unexpected line %q", line)
	case <-time.After(50 * time.Millisecond):
	}
}

// hangup closes the client side and waits for the session to finish.
func (p *testPeer) hangup() error {
	p.t.Helper()
	close(p.conn.in)
	return p.wait()
}

func (p *testPeer) wait() error {
	p.t.Helper()
	select {
	case err := <-p.done:
		return err
	case <-time.After(2 * time.Second):
		p.t.Fatalf("session did not finish")
		return nil
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met")
}
