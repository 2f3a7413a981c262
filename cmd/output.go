/*
Copyright © 2025 Ambor <saltbo@foxmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eslsoft/studyplan/internal/app"
	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/usecase"
)

func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *app.Container) error) error {
	c, cleanup, err := app.Initialize()
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	// cleanup drains the event queue so background handlers finish before exit.
	defer cleanup()
	return fn(cmd.Context(), c)
}

func learnerID() string {
	return strings.TrimSpace(viper.GetString(learnerKey))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseContentTypes(values []string) ([]entity.ContentType, error) {
	types := make([]entity.ContentType, 0, len(values))
	for _, v := range values {
		t, err := entity.ParseContentType(v)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

type cardView struct {
	ID            string     `json:"id"`
	ContentType   string     `json:"content_type"`
	ContentID     string     `json:"content_id"`
	State         string     `json:"state"`
	Due           time.Time  `json:"due"`
	Stability     float64    `json:"stability"`
	Difficulty    float64    `json:"difficulty"`
	ScheduledDays int        `json:"scheduled_days"`
	Reps          int        `json:"reps"`
	Lapses        int        `json:"lapses"`
	LastReview    *time.Time `json:"last_review,omitempty"`
	Version       int64      `json:"version"`
}

func toCardView(c *entity.Card) cardView {
	return cardView{
		ID:            c.ID,
		ContentType:   string(c.Content.Type),
		ContentID:     c.Content.ID,
		State:         string(c.State),
		Due:           c.Due,
		Stability:     c.Stability,
		Difficulty:    c.Difficulty,
		ScheduledDays: c.ScheduledDays,
		Reps:          c.Reps,
		Lapses:        c.Lapses,
		LastReview:    c.LastReview,
		Version:       c.Version,
	}
}

func toCardViews(cards []*entity.Card) []cardView {
	return lo.Map(cards, func(c *entity.Card, _ int) cardView { return toCardView(c) })
}

type dueView struct {
	cardView
	Priority    float64 `json:"priority"`
	OverdueDays float64 `json:"overdue_days"`
}

func toDueViews(due []usecase.DueCard) []dueView {
	return lo.Map(due, func(d usecase.DueCard, _ int) dueView {
		return dueView{cardView: toCardView(d.Card), Priority: d.Priority, OverdueDays: d.OverdueDays}
	})
}

type reviewView struct {
	ID            string       `json:"id"`
	Grade         entity.Grade `json:"grade"`
	Active        bool         `json:"active"`
	Recomputed    bool         `json:"recomputed"`
	TimeSpentMs   int64        `json:"time_spent_ms"`
	State         string       `json:"state"`
	ScheduledDays int          `json:"scheduled_days"`
	Due           time.Time    `json:"due"`
	ReviewedAt    time.Time    `json:"reviewed_at"`
}

func toReviewViews(events []*entity.ReviewEvent) []reviewView {
	return lo.Map(events, func(e *entity.ReviewEvent, _ int) reviewView {
		return reviewView{
			ID:            e.ID,
			Grade:         e.Grade,
			Active:        e.Active,
			Recomputed:    e.Recomputed,
			TimeSpentMs:   e.TimeSpentMs,
			State:         string(e.State),
			ScheduledDays: e.ScheduledDays,
			Due:           e.Due,
			ReviewedAt:    e.ReviewedAt,
		}
	})
}

type preferencesView struct {
	LearnerID           string                         `json:"learner_id"`
	Mode                entity.SchedulingMode          `json:"mode"`
	AutoAdjust          bool                           `json:"auto_adjust"`
	ExamDate            *time.Time                     `json:"exam_date,omitempty"`
	MaxIntervalOverride *int                           `json:"max_interval_override,omitempty"`
	Placement           entity.PlacementMode           `json:"placement"`
	StudyDays           []string                       `json:"study_days"`
	DailyCaps           map[entity.ContentType]int     `json:"daily_caps"`
	DailyCapacity       int                            `json:"daily_capacity"`
	Distribution        map[entity.ContentType]float64 `json:"distribution"`
	Timezone            string                         `json:"timezone"`
}

func toPreferencesView(p entity.LearnerPreferences) preferencesView {
	return preferencesView{
		LearnerID:           p.LearnerID,
		Mode:                p.Mode,
		AutoAdjust:          p.AutoAdjust,
		ExamDate:            p.ExamDate,
		MaxIntervalOverride: p.MaxIntervalOverride,
		Placement:           p.Placement,
		StudyDays:           lo.Map(p.StudyDays, func(d time.Weekday, _ int) string { return d.String() }),
		DailyCaps:           p.DailyCaps,
		DailyCapacity:       p.DailyCapacity,
		Distribution:        p.Distribution,
		Timezone:            p.Timezone,
	}
}
