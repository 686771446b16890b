package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/classdocs/constants"
)

// ConversionJob is the schema of record for the conversion_job table. The
// SQL repositories mirror its columns.
type ConversionJob struct{ ent.Schema }

func (ConversionJob) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "conversion_job"},
	}
}

func (ConversionJob) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Immutable(),
		field.String("owner").NotEmpty().Immutable(),
		// ordered input metadata: [{name, byte_size, mime_type}]
		field.String("items").NotEmpty().Immutable().
			SchemaType(map[string]string{dialect.Postgres: "jsonb"}),
		field.Enum("target_format").Values(constants.Formats...).Immutable(),
		field.String("destination").NotEmpty().Immutable(),
		field.String("title").Default(""),
		field.Enum("status").Values(constants.JobStatuses...).
			Default(string(constants.JobStatusPending)),
		field.String("result").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "jsonb"}),
		field.String("error_detail").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.String("placeholders").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "jsonb"}),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("started_at").Optional().Nillable(),
		field.Time("completed_at").Optional().Nillable(),
		field.Int64("processing_duration_ms").Optional().Nillable(),
	}
}

func (ConversionJob) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("owner", "created_at"),
		index.Fields("status"),
	}
}
