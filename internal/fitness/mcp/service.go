package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/2beens/runcoach/internal/fitness"
)

type profileGetter interface {
	Get(ctx context.Context, userID uuid.UUID) (*fitness.RunningFitnessProfile, error)
}

type activityLister interface {
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]fitness.Activity, error)
}

type healthLister interface {
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]fitness.DailyHealthReading, error)
}

// contextService is what the tool handlers need, kept small for tests.
type contextService interface {
	GetSchema(ctx context.Context) (string, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*fitness.RunningFitnessProfile, error)
	ListActivities(ctx context.Context, userID uuid.UUID, limit int) ([]fitness.Activity, error)
	ListHealthReadings(ctx context.Context, userID uuid.UUID, limit int) ([]fitness.DailyHealthReading, error)
}

// ContextService exposes a user's stored fitness data to MCP clients.
type ContextService struct {
	schema     SchemaRepo
	profiles   profileGetter
	activities activityLister
	health     healthLister
}

func NewContextService(schemaRepo SchemaRepo, profiles profileGetter, activities activityLister, health healthLister) *ContextService {
	return &ContextService{
		schema:     schemaRepo,
		profiles:   profiles,
		activities: activities,
		health:     health,
	}
}

func (s *ContextService) GetSchema(ctx context.Context) (string, error) {
	cols, err := s.schema.GetColumns(ctx)
	if err != nil {
		return "", err
	}
	return formatSchema(cols), nil
}

func formatSchema(cols []SchemaColumn) string {
	if len(cols) == 0 {
		return "# Runcoach DB Schema\n\nNo fitness tables found in the database.\n"
	}

	byTable := make(map[string][]SchemaColumn)
	for _, c := range cols {
		byTable[c.TableName] = append(byTable[c.TableName], c)
	}

	tableOrder := make([]string, 0, len(byTable))
	for t := range byTable {
		tableOrder = append(tableOrder, t)
	}
	sort.Strings(tableOrder)

	var b strings.Builder
	b.WriteString("# Runcoach DB Schema\n\n")
	b.WriteString("Tables: " + strings.Join(tableOrder, ", ") + " (schema: public).\n\n")

	for _, tableName := range tableOrder {
		b.WriteString("## ")
		b.WriteString(tableName)
		b.WriteString("\n\n| Column | Type | Nullable | Default |\n|--------|------|----------|--------|\n")
		for _, c := range byTable[tableName] {
			def := "-"
			if c.ColumnDef != nil && *c.ColumnDef != "" {
				def = *c.ColumnDef
			}
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", c.ColumnName, c.DataType, c.IsNullable, def))
		}
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n\n") + "\n"
}

func (s *ContextService) GetProfile(ctx context.Context, userID uuid.UUID) (*fitness.RunningFitnessProfile, error) {
	return s.profiles.Get(ctx, userID)
}

func (s *ContextService) ListActivities(ctx context.Context, userID uuid.UUID, limit int) ([]fitness.Activity, error) {
	return s.activities.ListRecent(ctx, userID, limit)
}

func (s *ContextService) ListHealthReadings(ctx context.Context, userID uuid.UUID, limit int) ([]fitness.DailyHealthReading, error) {
	return s.health.ListRecent(ctx, userID, limit)
}
