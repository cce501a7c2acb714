package service

import (
	"context"
	"strings"

	"github.com/guillermoBallester/rampart/internal/core/port"
)

// ExplorerService exposes schema discovery to the host surface and, when a
// whitelist is configured, annotates each table so the agent can see which
// ones its queries may touch.
type ExplorerService struct {
	explorer  port.SchemaExplorer
	whitelist map[string]struct{}
}

func NewExplorerService(explorer port.SchemaExplorer, whitelist []string) *ExplorerService {
	s := &ExplorerService{explorer: explorer}
	if len(whitelist) > 0 {
		s.whitelist = make(map[string]struct{}, len(whitelist))
		for _, t := range whitelist {
			t = strings.TrimSpace(t)
			if t != "" {
				s.whitelist[t] = struct{}{}
			}
		}
	}
	return s
}

func (s *ExplorerService) ListTables(ctx context.Context) ([]port.TableInfo, error) {
	tables, err := s.explorer.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	if s.whitelist != nil {
		for i := range tables {
			ok := s.permitted(tables[i].Schema, tables[i].Name)
			tables[i].Whitelisted = &ok
		}
	}
	return tables, nil
}

func (s *ExplorerService) DescribeTable(ctx context.Context, schema, tableName string) (*port.TableDetail, error) {
	return s.explorer.DescribeTable(ctx, schema, tableName)
}

// permitted compares catalog names against the whitelist exactly; the
// catalog already reports the true case of every table.
func (s *ExplorerService) permitted(schema, name string) bool {
	if _, ok := s.whitelist[name]; ok {
		return true
	}
	_, ok := s.whitelist[schema+"."+name]
	return ok
}
