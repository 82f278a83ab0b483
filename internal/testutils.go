package internal

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
)

// BuildTestIMAPServer starts an in-memory IMAP server on a random local
// port, logged in as username/password, with an empty INBOX.
func BuildTestIMAPServer(t *testing.T) (*server.Server, string, *memory.Mailbox) {
	be := memory.New()
	user, err := be.Login(nil, "username", "password")
	assert.NoError(t, err)
	if err != nil {
		t.FailNow()
	}

	mb, err := user.GetMailbox("INBOX")
	assert.NoError(t, err)
	if err != nil {
		t.FailNow()
	}

	mailbox := mb.(*memory.Mailbox)
	mailbox.Messages = nil

	s := server.New(be)
	t.Cleanup(func() { _ = s.Close() })

	s.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "localhost:0")
	assert.NoError(t, err)
	if err != nil {
		t.FailNow()
	}

	go func() { err = s.Serve(l) }()

	return s, l.Addr().String(), mailbox
}

// SeedIMAPMessage appends one raw message to a test mailbox.
func SeedIMAPMessage(mailbox *memory.Mailbox, raw []byte) {
	mailbox.Messages = append(mailbox.Messages, &memory.Message{
		Uid:   uint32(len(mailbox.Messages) + 1),
		Date:  time.Now(),
		Size:  uint32(len(raw)),
		Flags: []string{},
		Body:  raw,
	})
}

// POPServer is a just-enough POP3 server for exercising the POP
// session: USER/PASS, STAT, LIST, TOP, RETR, DELE, RSET, QUIT.
type POPServer struct {
	Addr     string
	Username string
	Password string

	messages [][]byte
	Deleted  map[int]bool
	Expunged []int
}

// BuildTestPOPServer starts a POPServer on a random local port holding
// the given raw messages.
func BuildTestPOPServer(t *testing.T, messages [][]byte) *POPServer {
	l, err := net.Listen("tcp", "localhost:0")
	assert.NoError(t, err)
	if err != nil {
		t.FailNow()
	}
	t.Cleanup(func() { _ = l.Close() })

	ps := &POPServer{
		Addr:     l.Addr().String(),
		Username: "username",
		Password: "password",
		messages: messages,
		Deleted:  map[int]bool{},
	}

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go ps.serve(conn)
		}
	}()

	return ps
}

// HostPort splits the listen address.
func (ps *POPServer) HostPort(t *testing.T) (string, int) {
	host, portText, err := net.SplitHostPort(ps.Addr)
	assert.NoError(t, err)
	port, err := strconv.Atoi(portText)
	assert.NoError(t, err)
	return host, port
}

func (ps *POPServer) serve(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	w := bufio.NewWriter(conn)
	r := bufio.NewReader(conn)

	reply := func(line string) {
		_, _ = w.WriteString(line + "\r\n")
		_ = w.Flush()
	}
	multi := func(body []byte) {
		for _, line := range strings.Split(string(body), "\r\n") {
			if strings.HasPrefix(line, ".") {
				line = "." + line
			}
			_, _ = w.WriteString(line + "\r\n")
		}
		_, _ = w.WriteString(".\r\n")
		_ = w.Flush()
	}

	deleted := map[int]bool{}
	reply("+OK POP3 test server ready")

	var user string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}
		cmd := strings.ToUpper(fields[0])

		arg := func(i int) int {
			if len(fields) <= i {
				return 0
			}
			n, _ := strconv.Atoi(fields[i])
			return n
		}

		switch cmd {
		case "USER":
			if len(fields) > 1 {
				user = fields[1]
			}
			reply("+OK")
		case "PASS":
			if user == ps.Username && len(fields) > 1 && fields[1] == ps.Password {
				reply("+OK logged in")
			} else {
				reply("-ERR [AUTH] Authentication failed")
			}
		case "STAT":
			size := 0
			for _, m := range ps.messages {
				size += len(m)
			}
			reply(fmt.Sprintf("+OK %d %d", len(ps.messages), size))
		case "LIST":
			reply(fmt.Sprintf("+OK %d messages", len(ps.messages)))
			for i, m := range ps.messages {
				_, _ = w.WriteString(fmt.Sprintf("%d %d\r\n", i+1, len(m)))
			}
			_, _ = w.WriteString(".\r\n")
			_ = w.Flush()
		case "RETR":
			seq := arg(1)
			if seq < 1 || seq > len(ps.messages) {
				reply("-ERR no such message")
				continue
			}
			reply("+OK")
			multi(ps.messages[seq-1])
		case "TOP":
			seq := arg(1)
			if seq < 1 || seq > len(ps.messages) {
				reply("-ERR no such message")
				continue
			}
			raw := string(ps.messages[seq-1])
			header := raw
			if i := strings.Index(raw, "\r\n\r\n"); i >= 0 {
				header = raw[:i+2]
			}
			reply("+OK")
			multi([]byte(header))
		case "DELE":
			seq := arg(1)
			deleted[seq] = true
			ps.Deleted[seq] = true
			reply("+OK deleted")
		case "RSET":
			deleted = map[int]bool{}
			reply("+OK")
		case "NOOP":
			reply("+OK")
		case "QUIT":
			for seq := range deleted {
				ps.Expunged = append(ps.Expunged, seq)
			}
			reply("+OK bye")
			return
		default:
			reply("-ERR unsupported")
		}
	}
}
