// Package ipc serves synchronizer state to display clients over a unix
// socket, one JSON object per line.
package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"lyricsync/internal/synchronizer"
	"lyricsync/pkg/fileutil"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	TypeState  = "state"
	TypeNotice = "notice"

	writeTimeout = time.Second
)

// Message is one line on the wire. State is set for TypeState, Text for
// TypeNotice.
type Message struct {
	Type  string              `json:"type"`
	State *synchronizer.State `json:"state,omitempty"`
	Text  string              `json:"text,omitempty"`
}

type Server struct {
	socketPath   string
	statusFile   string
	lockFilePath string
	logger       zerolog.Logger

	listener net.Listener
	lockFile *os.File

	mu         sync.Mutex
	conns      map[net.Conn]struct{}
	last       []byte
	statusText string
	closed     bool
	wg         sync.WaitGroup
}

// NewServer creates a server on socketPath. statusFile, when not empty,
// always holds the text currently shown.
func NewServer(socketPath, statusFile string) *Server {
	return &Server{
		socketPath:   socketPath,
		statusFile:   statusFile,
		lockFilePath: socketPath + ".lock",
		conns:        make(map[net.Conn]struct{}),
		logger:       log.With().Str("component", "ipc").Logger(),
	}
}

func (s *Server) checkAndCleanOldLock() {
	content, err := os.ReadFile(s.lockFilePath)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		s.logger.Warn().Str("pid_str", pidStr).Msg("Invalid PID in lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	if !isProcessRunning(pid) {
		s.logger.Info().Int("old_pid", pid).Msg("Process in lock file is not running, removing lock file")
		os.Remove(s.lockFilePath)
		return
	}
	s.logger.Info().Int("existing_pid", pid).Msg("Another process is still running")
}

// kill(pid, 0) only checks for existence.
func isProcessRunning(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func (s *Server) acquireLock() error {
	s.checkAndCleanOldLock()

	file, err := os.OpenFile(s.lockFilePath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return errors.New("another lyrics server instance is already running")
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	// Truncate only once the lock is ours, so a running instance keeps its PID.
	err = file.Truncate(0)
	if err == nil {
		_, err = file.WriteString(fmt.Sprintf("%d\n", os.Getpid()))
	}
	if err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}

	s.lockFile = file
	s.logger.Info().Str("lock_file", s.lockFilePath).Int("pid", os.Getpid()).Msg("Acquired process lock")
	return nil
}

func (s *Server) releaseLock() {
	if s.lockFile == nil {
		return
	}
	syscall.Flock(int(s.lockFile.Fd()), syscall.LOCK_UN)
	s.lockFile.Close()
	os.Remove(s.lockFilePath)
	s.logger.Info().Str("lock_file", s.lockFilePath).Msg("Released process lock")
	s.lockFile = nil
}

// Start takes the process lock and begins accepting clients.
func (s *Server) Start() error {
	if err := s.acquireLock(); err != nil {
		return err
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		s.releaseLock()
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.releaseLock()
		return err
	}
	s.listener = listener

	s.logger.Info().Str("socket_path", s.socketPath).Msg("IPC server listening")

	s.wg.Add(1)
	go s.acceptConnections()
	return nil
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to accept IPC connection")
			continue
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[conn] = struct{}{}
	last := s.last
	if last != nil {
		if err := writeLine(conn, last); err != nil {
			s.logger.Error().Err(err).Msg("Failed to send initial state")
		}
	}
	s.mu.Unlock()

	s.logger.Info().Msg("Client connected")

	// Clients never send anything meaningful; reading just detects hangups.
	buf := make([]byte, 64)
	for {
		if _, err := conn.Read(buf); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
	s.logger.Info().Msg("Client disconnected")
}

func writeLine(conn net.Conn, line []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := conn.Write(line)
	return err
}

// BroadcastState sends st to every client and remembers it for new ones.
func (s *Server) BroadcastState(st synchronizer.State) {
	text := ""
	if st.Active {
		text = st.Line.Text
	}
	s.broadcast(Message{Type: TypeState, State: &st}, text)
}

// BroadcastNotice sends a status text such as "searching" that replaces
// the lyric display.
func (s *Server) BroadcastNotice(text string) {
	s.broadcast(Message{Type: TypeNotice, Text: text}, text)
}

func (s *Server) broadcast(msg Message, statusText string) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode message")
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = data
	s.writeStatus(statusText)

	for conn := range s.conns {
		if err := writeLine(conn, data); err != nil {
			s.logger.Error().Err(err).Msg("Failed to write to client, removing")
			conn.Close()
			delete(s.conns, conn)
		}
	}
}

// writeStatus must be called with mu held.
func (s *Server) writeStatus(text string) {
	if s.statusFile == "" || text == s.statusText {
		return
	}
	s.statusText = text
	if err := fileutil.WriteFileAtomic(s.statusFile, []byte(text+"\n"), 0644); err != nil {
		s.logger.Warn().Err(err).Str("path", s.statusFile).Msg("Failed to write status file")
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close stops accepting, disconnects clients and releases the lock.
func (s *Server) Close() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.releaseLock()
}

// Client reads messages from a Server.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	return &Client{conn: conn, scanner: scanner}, nil
}

// Next blocks for the next message. It returns net.ErrClosed once the
// server hangs up.
func (c *Client) Next() (Message, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Message{}, err
		}
		return Message{}, net.ErrClosed
	}
	var msg Message
	if err := json.Unmarshal(c.scanner.Bytes(), &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
