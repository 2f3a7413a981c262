package filterexpr

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

type listParams struct {
	Kinds        []string
	Tag          *string
	TitlePrefix  *string
	LapsesMin    *int
	StabilityMax *float64
	DueBefore    *time.Time

	PrimaryKey    string
	PrimaryDesc   bool
	SecondaryKey  string
	SecondaryDesc bool
}

type rawQuery struct {
	filter  string
	orderBy string
}

func (q rawQuery) GetFilter() string  { return q.filter }
func (q rawQuery) GetOrderBy() string { return q.orderBy }

func appendKinds(field reflect.Value, v any) error {
	switch val := v.(type) {
	case string:
		field.Set(reflect.Append(field, reflect.ValueOf(val)))
	case []string:
		for _, s := range val {
			field.Set(reflect.Append(field, reflect.ValueOf(s)))
		}
	}
	return nil
}

var testSchema = ResourceSchema{
	Filter: map[string]FilterField{
		"kind": {
			Kind:   KindString,
			Ops:    map[Op]string{OpEQ: "Kinds", OpIN: "Kinds"},
			Setter: appendKinds,
			Enum:   []string{"flashcard", "question", "error_note"},
		},
		"tag":       {Kind: KindString, Ops: map[Op]string{OpEQ: "Tag"}},
		"title":     {Kind: KindString, Ops: map[Op]string{OpSW: "TitlePrefix"}},
		"lapses":    {Kind: KindNumber, Ops: map[Op]string{OpGTE: "LapsesMin"}},
		"stability": {Kind: KindNumber, Ops: map[Op]string{OpLTE: "StabilityMax"}},
		"due":       {Kind: KindTimestamp, Ops: map[Op]string{OpLTE: "DueBefore"}},
	},
	Order: OrderSchema{
		DefaultPrimary: "due",
		FallbackKey:    "id",
		Fields: map[string]OrderField{
			"due":    {Expr: "due_at"},
			"lapses": {Expr: "lapses"},
			"id":     {Expr: "id"},
		},
	},
}

func TestBindFilter_Conjunction(t *testing.T) {
	var p listParams
	filter := "kind in ['flashcard', 'question'] && lapses >= 2 && stability <= 1.5 && title.startsWith('Ver') && due <= timestamp('2025-03-10T00:00:00Z')"

	if err := BindFilter(filter, &p, testSchema.Filter); err != nil {
		t.Fatalf("BindFilter returned error: %v", err)
	}

	if len(p.Kinds) != 2 || p.Kinds[0] != "flashcard" || p.Kinds[1] != "question" {
		t.Fatalf("unexpected kinds: %v", p.Kinds)
	}
	if p.LapsesMin == nil || *p.LapsesMin != 2 {
		t.Fatalf("expected LapsesMin 2, got %v", p.LapsesMin)
	}
	if p.StabilityMax == nil || *p.StabilityMax != 1.5 {
		t.Fatalf("expected StabilityMax 1.5, got %v", p.StabilityMax)
	}
	if p.TitlePrefix == nil || *p.TitlePrefix != "Ver" {
		t.Fatalf("expected TitlePrefix 'Ver', got %v", p.TitlePrefix)
	}
	want := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if p.DueBefore == nil || !p.DueBefore.Equal(want) {
		t.Fatalf("expected DueBefore %v, got %v", want, p.DueBefore)
	}
}

func TestBindFilter_EmptyIsNoop(t *testing.T) {
	var p listParams
	if err := BindFilter("   ", &p, testSchema.Filter); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Kinds != nil || p.LapsesMin != nil {
		t.Fatalf("expected params untouched, got %+v", p)
	}
}

func TestBindFilter_Rejects(t *testing.T) {
	cases := map[string]string{
		"or":             "kind == 'flashcard' || kind == 'question'",
		"negation":       "!(lapses >= 2)",
		"unknown field":  "owner == 'bob'",
		"operator":       "lapses <= 2",
		"enum":           "kind == 'video'",
		"enum in list":   "kind in ['flashcard', 'video']",
		"empty list":     "kind in []",
		"fraction":       "lapses >= 1.5",
		"wrong literal":  "lapses >= 'two'",
		"bad timestamp":  "due <= timestamp('yesterday')",
		"non literal":    "tag == title",
		"syntax":         "lapses >=",
		"unsupported fn": "size(tag) == 1",
	}
	for name, filter := range cases {
		t.Run(name, func(t *testing.T) {
			var p listParams
			if err := BindFilter(filter, &p, testSchema.Filter); err == nil {
				t.Fatalf("expected error for %q", filter)
			}
		})
	}
}

func TestBindFilter_EnumIgnoredForOtherFields(t *testing.T) {
	var p listParams
	if err := BindFilter("tag == 'anything'", &p, testSchema.Filter); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Tag == nil || *p.Tag != "anything" {
		t.Fatalf("expected Tag 'anything', got %v", p.Tag)
	}
}

func TestBindFilter_MissingTargetField(t *testing.T) {
	type narrow struct{ Other string }
	var p narrow
	err := BindFilter("tag == 'x'", &p, testSchema.Filter)
	if err == nil || !strings.Contains(err.Error(), "no field named") {
		t.Fatalf("expected missing field error, got %v", err)
	}
}

func TestBind_FilterAndOrder(t *testing.T) {
	var p listParams
	q := rawQuery{filter: "kind == 'error_note'", orderBy: "lapses desc"}
	if err := Bind(q, &p, testSchema); err != nil {
		t.Fatalf("Bind returned error: %v", err)
	}
	if len(p.Kinds) != 1 || p.Kinds[0] != "error_note" {
		t.Fatalf("unexpected kinds: %v", p.Kinds)
	}
	if p.PrimaryKey != "lapses" || !p.PrimaryDesc {
		t.Fatalf("unexpected primary order %q desc=%v", p.PrimaryKey, p.PrimaryDesc)
	}
	if p.SecondaryKey != "id" || p.SecondaryDesc {
		t.Fatalf("unexpected secondary order %q desc=%v", p.SecondaryKey, p.SecondaryDesc)
	}
}

func TestBind_WrapsErrors(t *testing.T) {
	var p listParams
	err := Bind(rawQuery{filter: "kind == 'video'"}, &p, testSchema)
	if err == nil || !strings.HasPrefix(err.Error(), "filter:") {
		t.Fatalf("expected filter error, got %v", err)
	}
	err = Bind(rawQuery{orderBy: "title"}, &p, testSchema)
	if err == nil || !strings.HasPrefix(err.Error(), "order_by:") {
		t.Fatalf("expected order_by error, got %v", err)
	}
}
