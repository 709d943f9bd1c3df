package server

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/config"
	"github.com/matteoser/PiemonteDB/pkg/core"
	"github.com/matteoser/PiemonteDB/pkg/executor"
	"github.com/matteoser/PiemonteDB/pkg/loader"
	"github.com/matteoser/PiemonteDB/pkg/plan"
	"github.com/matteoser/PiemonteDB/pkg/rc"
)

// Server is the frontend: it speaks the plain null-terminated text protocol
// on TCP, hands statements to the injected planner, executes the resulting
// plans and streams formatted result rows back. An HTTP admin endpoint runs
// beside it.
type Server struct {
	db      *core.Database
	planner plan.Planner
	cfg     *config.PiemonteConfig

	listener net.Listener
	admin    *adminServer
}

// NewServer wires the frontend. planner may be nil, in which case every
// statement fails with UNIMPLEMENTED.
func NewServer(db *core.Database, planner plan.Planner, cfg *config.PiemonteConfig) *Server {
	return &Server{
		db:      db,
		planner: planner,
		cfg:     cfg,
		admin:   newAdminServer(db, cfg),
	}
}

// Start serves connections until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	log.Printf("PiemonteDB listening on %s", addr)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		<-ctx.Done()
		listener.Close()
		return nil
	})
	group.Go(func() error {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			go s.handleConn(conn)
		}
	})
	if s.cfg.Server.AdminPort > 0 {
		group.Go(func() error { return s.admin.run(ctx) })
	}
	return group.Wait()
}

// handleConn serves one client: one statement in, one result out, repeated
// until the peer closes.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	sessionID := uuid.NewString()
	log.Printf("session %s connected from %s", sessionID, conn.RemoteAddr())

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	for {
		statement, err := s.readStatement(reader)
		if err != nil {
			if !rc.Is(err, rc.IOErrClose) {
				log.Printf("session %s read failed: %v", sessionID, err)
			}
			return
		}
		if err := s.executeStatement(statement, writer); err != nil {
			log.Printf("session %s write failed: %v", sessionID, err)
			return
		}
		if err := writer.Flush(); err != nil {
			return
		}
	}
}

// readStatement reads up to the null terminator.
func (s *Server) readStatement(reader *bufio.Reader) (string, error) {
	data, err := reader.ReadBytes(0)
	if err != nil {
		return "", rc.Errorf(rc.IOErrClose, "peer closed: %v", err)
	}
	if len(data) > s.cfg.Server.MaxStatementSize {
		return "", rc.Errorf(rc.IOErrTooLong, "statement exceeds %d bytes", s.cfg.Server.MaxStatementSize)
	}
	return strings.TrimRight(string(data[:len(data)-1]), "\r\n \t"), nil
}

// executeStatement runs one statement and writes the full protocol frame:
// header and rows for a projecting query, a status trailer for other
// statements and on failure, then the null terminator.
func (s *Server) executeStatement(statement string, w *bufio.Writer) error {
	state, err := s.runStatement(statement, w)
	if err != nil {
		code := rc.CodeOf(err)
		detail := err.Error()
		fmt.Fprintf(w, "%s > %s\n", code, detail)
	} else if state != "" {
		w.WriteString(state)
		if !strings.HasSuffix(state, "\n") {
			w.WriteByte('\n')
		}
	}
	return w.WriteByte(0)
}

// runStatement executes and streams projected rows. The returned state
// string, when non-empty, becomes the trailer; streamed queries return an
// empty state.
func (s *Server) runStatement(statement string, w *bufio.Writer) (string, error) {
	if s.planner == nil {
		return "", rc.New(rc.Unimplemented, "no planner attached")
	}
	node, err := s.planner.Plan(statement)
	if err != nil {
		return "", err
	}

	if load, ok := node.(*plan.LoadData); ok {
		return s.runLoadData(load)
	}

	root, err := executor.Generate(s.db, node)
	if err != nil {
		return "", err
	}
	ctx := &executor.Context{DB: s.db}
	if err := root.Open(ctx); err != nil {
		root.Close()
		return "", err
	}

	header := executor.OutputSchema(root)
	err = s.streamResult(root, header, w)
	closeErr := root.Close()
	if err != nil {
		return "", err
	}
	if closeErr != nil {
		return "", closeErr
	}
	// Statements without a projection (create materialized view and friends)
	// stream nothing and report their state instead.
	if len(header) == 0 {
		return string(rc.Success), nil
	}
	return "", nil
}

// streamResult writes the header and every result row.
func (s *Server) streamResult(root executor.PhysicalOperator, header []string, w *bufio.Writer) error {
	if len(header) > 0 {
		w.WriteString(strings.Join(header, " | "))
		w.WriteByte('\n')
	}
	ck := chunk.NewChunk()
	for {
		ck.Reset()
		err := root.Next(ck)
		if rc.IsEOF(err) {
			return nil
		}
		if err != nil {
			return err
		}
		for row := 0; row < ck.Rows(); row++ {
			for col := 0; col < ck.ColumnNum(); col++ {
				if col != 0 {
					w.WriteString(" | ")
				}
				w.WriteString(ck.GetValue(col, row).ToString())
			}
			w.WriteByte('\n')
		}
	}
}

// runLoadData executes the bulk loader path.
func (s *Server) runLoadData(load *plan.LoadData) (string, error) {
	table, ok := s.db.FindTable(load.Table)
	if !ok {
		return "", rc.Errorf(rc.RecordNotExist, "table %s does not exist", load.Table)
	}
	ld := loader.NewLoader()
	if load.Terminated != 0 {
		ld.Terminated = load.Terminated
	}
	if load.Enclosed != 0 {
		ld.Enclosed = load.Enclosed
	}
	return ld.Load(table, load.File)
}

// Stop closes the listener and the admin server.
func (s *Server) Stop(ctx context.Context) error {
	log.Println("stopping PiemonteDB server")
	if s.listener != nil {
		s.listener.Close()
	}
	return s.admin.stop(ctx)
}
