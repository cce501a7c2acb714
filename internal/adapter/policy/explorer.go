package policy

import (
	"context"

	"github.com/guillermoBallester/rampart/internal/core/port"
)

// PolicyExplorer decorates a SchemaExplorer with data-dictionary context
// from the policy file. YAML descriptions only fill empty comments, so
// operator-set COMMENT ON values always take precedence.
type PolicyExplorer struct {
	inner port.SchemaExplorer
	ctx   ContextConfig
}

func NewPolicyExplorer(inner port.SchemaExplorer, pol *Policy) *PolicyExplorer {
	return &PolicyExplorer{inner: inner, ctx: pol.Context}
}

func (p *PolicyExplorer) ListTables(ctx context.Context) ([]port.TableInfo, error) {
	tables, err := p.inner.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	for i, t := range tables {
		key := t.Schema + "." + t.Name
		if tc, ok := p.ctx.Tables[key]; ok && t.Comment == "" && tc.Description != "" {
			tables[i].Comment = tc.Description
		}
	}
	return tables, nil
}

func (p *PolicyExplorer) DescribeTable(ctx context.Context, schema, tableName string) (*port.TableDetail, error) {
	detail, err := p.inner.DescribeTable(ctx, schema, tableName)
	if err != nil || detail == nil {
		return detail, err
	}

	key := detail.Schema + "." + detail.Name
	tc, ok := p.ctx.Tables[key]
	if !ok {
		return detail, nil
	}

	if detail.Comment == "" && tc.Description != "" {
		detail.Comment = tc.Description
	}
	for i, col := range detail.Columns {
		if desc, ok := tc.Columns[col.Name]; ok && col.Comment == "" && desc != "" {
			detail.Columns[i].Comment = desc
		}
	}
	return detail, nil
}
