package database

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table names.
const (
	CardsTable       = "cards"
	PreferencesTable = "learner_preferences"
	ReviewLogsTable  = "review_logs"
	ContentsTable    = "contents"
)

func column(name string, t field.Type) *schema.Column {
	return &schema.Column{Name: name, Type: t}
}

func nullable(name string, t field.Type) *schema.Column {
	return &schema.Column{Name: name, Type: t, Nullable: true}
}

var (
	cardsColumns = []*schema.Column{
		column("id", field.TypeString),
		column("learner_id", field.TypeString),
		column("content_type", field.TypeString),
		column("content_id", field.TypeString),
		column("state", field.TypeString),
		column("due_at", field.TypeInt64),
		column("stability", field.TypeFloat64),
		column("difficulty", field.TypeFloat64),
		column("elapsed_days", field.TypeInt),
		column("scheduled_days", field.TypeInt),
		column("reps", field.TypeInt),
		column("lapses", field.TypeInt),
		nullable("last_review_at", field.TypeInt64),
		column("version", field.TypeInt64),
		column("created_at", field.TypeInt64),
		column("updated_at", field.TypeInt64),
	}
	// CardsTableSchema describes the cards table.
	CardsTableSchema = &schema.Table{
		Name:       CardsTable,
		Columns:    cardsColumns,
		PrimaryKey: []*schema.Column{cardsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "cards_learner_content_key", Unique: true, Columns: []*schema.Column{cardsColumns[1], cardsColumns[2], cardsColumns[3]}},
			{Name: "cards_learner_due_idx", Columns: []*schema.Column{cardsColumns[1], cardsColumns[5]}},
		},
	}

	preferencesColumns = []*schema.Column{
		column("learner_id", field.TypeString),
		column("mode", field.TypeString),
		column("auto_adjust", field.TypeBool),
		nullable("exam_date", field.TypeInt64),
		nullable("max_interval_override", field.TypeInt),
		column("placement", field.TypeString),
		column("study_days", field.TypeString),
		column("daily_caps", field.TypeString),
		column("daily_capacity", field.TypeInt),
		column("distribution", field.TypeString),
		column("timezone", field.TypeString),
		column("updated_at", field.TypeInt64),
	}
	// PreferencesTableSchema describes the learner_preferences table.
	PreferencesTableSchema = &schema.Table{
		Name:       PreferencesTable,
		Columns:    preferencesColumns,
		PrimaryKey: []*schema.Column{preferencesColumns[0]},
	}

	reviewLogsColumns = []*schema.Column{
		column("id", field.TypeString),
		column("card_id", field.TypeString),
		column("learner_id", field.TypeString),
		column("content_type", field.TypeString),
		column("content_id", field.TypeString),
		column("grade", field.TypeInt),
		column("time_spent_ms", field.TypeInt64),
		column("active", field.TypeBool),
		column("recomputed", field.TypeBool),
		column("state", field.TypeString),
		column("stability", field.TypeFloat64),
		column("difficulty", field.TypeFloat64),
		column("scheduled_days", field.TypeInt),
		column("due_at", field.TypeInt64),
		column("reviewed_at", field.TypeInt64),
	}
	// ReviewLogsTableSchema describes the review_logs table.
	ReviewLogsTableSchema = &schema.Table{
		Name:       ReviewLogsTable,
		Columns:    reviewLogsColumns,
		PrimaryKey: []*schema.Column{reviewLogsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "review_logs_card_idx", Columns: []*schema.Column{reviewLogsColumns[1], reviewLogsColumns[14]}},
		},
	}

	contentsColumns = []*schema.Column{
		column("content_type", field.TypeString),
		column("content_id", field.TypeString),
		column("title", field.TypeString),
		column("payload", field.TypeString),
		column("created_at", field.TypeInt64),
	}
	// ContentsTableSchema describes the content catalog table.
	ContentsTableSchema = &schema.Table{
		Name:       ContentsTable,
		Columns:    contentsColumns,
		PrimaryKey: []*schema.Column{contentsColumns[0], contentsColumns[1]},
	}

	// Tables lists every engine table in dependency order.
	Tables = []*schema.Table{
		CardsTableSchema,
		PreferencesTableSchema,
		ReviewLogsTableSchema,
		ContentsTableSchema,
	}
)
