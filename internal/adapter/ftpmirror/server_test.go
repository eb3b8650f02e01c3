package ftpmirror

import (
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// mirrorServer is a scripted FTP server holding a fixed directory tree. It
// accepts any number of control connections and serves LIST and RETR over
// extended passive data connections.
type mirrorServer struct {
	listener net.Listener
	dirs     map[string]map[string][]byte

	mu     sync.Mutex
	logins int
	// refuse reports whether the n-th login (1-based) is refused with 530.
	refuse func(n int) bool
	retrs  []string
}

func newMirrorServer(t *testing.T, dirs map[string]map[string][]byte) *mirrorServer {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &mirrorServer{listener: l, dirs: dirs}
	t.Cleanup(func() { _ = l.Close() })
	go s.serve()
	return s
}

func (s *mirrorServer) addr() string { return s.listener.Addr().String() }

func (s *mirrorServer) refuseLogins(refuse func(n int) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refuse = refuse
}

func (s *mirrorServer) retrieved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.retrs...)
}

func (s *mirrorServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.session(conn)
	}
}

func (s *mirrorServer) session(conn net.Conn) {
	defer conn.Close()
	proto := textproto.NewConn(conn)
	reply := func(format string, args ...any) { _ = proto.PrintfLine(format, args...) }
	reply("220 mirror ready")

	var data net.Listener
	defer func() {
		if data != nil {
			_ = data.Close()
		}
	}()

	for {
		line, err := proto.ReadLine()
		if err != nil {
			return
		}
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "USER":
			reply("331 password required")
		case "PASS":
			s.mu.Lock()
			s.logins++
			refused := s.refuse != nil && s.refuse(s.logins)
			s.mu.Unlock()
			if refused {
				reply("530 too many users")
			} else {
				reply("230 logged in")
			}
		case "TYPE":
			reply("200 type set")
		case "EPSV":
			if data != nil {
				_ = data.Close()
			}
			data, err = net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				reply("425 %v", err)
				continue
			}
			reply("229 Entering Extended Passive Mode (|||%d|)", data.Addr().(*net.TCPAddr).Port)
		case "LIST":
			files, ok := s.dirs[arg]
			if !ok {
				reply("550 %s: no such directory", arg)
				continue
			}
			var b strings.Builder
			for name, body := range files {
				fmt.Fprintf(&b, "-rw-r--r--   1 ftp      ftp      %8d Jun 01  2024 %s\r\n", len(body), name)
			}
			s.transfer(data, reply, []byte(b.String()))
		case "RETR":
			dir, name := splitPath(arg)
			body, ok := s.dirs[dir][name]
			if !ok {
				reply("550 %s: not found", arg)
				continue
			}
			s.mu.Lock()
			s.retrs = append(s.retrs, arg)
			s.mu.Unlock()
			s.transfer(data, reply, body)
		case "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 %s not implemented", cmd)
		}
	}
}

// transfer sends body over the pending data connection.
func (s *mirrorServer) transfer(data net.Listener, reply func(string, ...any), body []byte) {
	if data == nil {
		reply("425 no data connection")
		return
	}
	dc, err := data.Accept()
	if err != nil {
		reply("425 %v", err)
		return
	}
	reply("150 opening data connection")
	_, _ = dc.Write(body)
	_ = dc.Close()
	reply("226 transfer complete")
}

func splitPath(p string) (dir, name string) {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/", p[i+1:]
	}
	return p[:i], p[i+1:]
}
