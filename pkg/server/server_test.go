package server

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/config"
	"github.com/matteoser/PiemonteDB/pkg/core"
	"github.com/matteoser/PiemonteDB/pkg/expr"
	"github.com/matteoser/PiemonteDB/pkg/pax"
	"github.com/matteoser/PiemonteDB/pkg/plan"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// stubPlanner maps statement text to pre-built plans.
type stubPlanner struct {
	plans map[string]plan.Node
}

func (p *stubPlanner) Plan(sql string) (plan.Node, error) {
	if node, ok := p.plans[sql]; ok {
		return node, nil
	}
	return nil, rc.Errorf(rc.InvalidArgument, "unknown statement %q", sql)
}

func newTestServer(t *testing.T) (*Server, *core.Database) {
	t.Helper()
	db, err := core.OpenDatabase(t.TempDir(), 32, false)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	table, err := db.CreateTable("pets", []core.AttrInfo{
		{Name: "id", Type: types.Ints},
		{Name: "name", Type: types.Chars, Len: 8},
	}, pax.FormatPAX)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	ck := chunk.NewChunk()
	ids := chunk.NewColumn(types.Ints, 4, 8)
	names := chunk.NewColumn(types.Chars, 8, 8)
	for i, name := range []string{"rex", "milo"} {
		ids.AppendValue(types.NewInt(int32(i + 1)))
		names.AppendValue(types.NewChars(name))
	}
	ck.AddColumn(ids, 0)
	ck.AddColumn(names, 1)
	if err := table.InsertChunk(ck); err != nil {
		t.Fatalf("seed: %v", err)
	}

	planner := &stubPlanner{plans: map[string]plan.Node{
		"select * from pets": &plan.Project{
			Child: &plan.TableScan{Table: "pets"},
			Exprs: []expr.Expression{
				expr.NewFieldExpr("id", 0, types.Ints, 4),
				expr.NewFieldExpr("name", 1, types.Chars, 8),
			},
			Names: []string{"id", "name"},
		},
	}}
	return NewServer(db, planner, config.DefaultConfig()), db
}

func runStatementFrame(t *testing.T, srv *Server, statement string) string {
	t.Helper()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := srv.executeStatement(statement, w); err != nil {
		t.Fatalf("execute: %v", err)
	}
	w.Flush()
	return buf.String()
}

func TestProtocolQueryFrame(t *testing.T) {
	srv, _ := newTestServer(t)
	frame := runStatementFrame(t, srv, "select * from pets")

	if !strings.HasSuffix(frame, "\x00") {
		t.Fatalf("frame must end with a null terminator: %q", frame)
	}
	lines := strings.Split(strings.TrimSuffix(frame, "\x00"), "\n")
	if lines[0] != "id | name" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "1 | rex" || lines[2] != "2 | milo" {
		t.Errorf("rows = %q / %q", lines[1], lines[2])
	}
}

func TestProtocolFailureFrame(t *testing.T) {
	srv, _ := newTestServer(t)
	frame := runStatementFrame(t, srv, "select * from nothing")
	if !strings.Contains(frame, string(rc.InvalidArgument)+" > ") {
		t.Errorf("failure frame should carry '<code> > <detail>': %q", frame)
	}
	if !strings.HasSuffix(frame, "\x00") {
		t.Errorf("frame must end with a null terminator")
	}
}

func TestProtocolNoPlanner(t *testing.T) {
	db, err := core.OpenDatabase(t.TempDir(), 8, false)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	srv := NewServer(db, nil, config.DefaultConfig())
	frame := runStatementFrame(t, srv, "select 1")
	if !strings.Contains(frame, string(rc.Unimplemented)) {
		t.Errorf("Expected UNIMPLEMENTED, got %q", frame)
	}
}
