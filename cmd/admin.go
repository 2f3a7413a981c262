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
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/eslsoft/studyplan/internal/app"
	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/repository"
	"github.com/eslsoft/studyplan/internal/scheduling"
	"github.com/eslsoft/studyplan/internal/usecase"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Inspect and bulk-edit a learner's cards",
	Long: `Bulk commands select cards with a filter expression over the card fields,
for example: lapses >= 2 && content_type in ['question', 'error_note']`,
}

var adminListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cards matching a filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		order, _ := cmd.Flags().GetString("order")
		page, _ := cmd.Flags().GetInt32("page")
		size, _ := cmd.Flags().GetInt32("page-size")
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			cards, total, err := c.Admin.ListCards(ctx, &repository.ListCardQuery{
				LearnerID:   learnerID(),
				Pagination:  repository.Pagination{PageNo: page, PageSize: size},
				FilterOrder: repository.FilterOrder{Filter: filter, OrderBy: order},
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"total": total, "cards": toCardViews(cards)})
		})
	},
}

var adminRescheduleCmd = &cobra.Command{
	Use:   "reschedule",
	Short: "Move matching cards to a date or spread them over the next study days",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		rawDate, _ := cmd.Flags().GetString("date")
		spread, _ := cmd.Flags().GetInt("spread")
		target := usecase.RescheduleTarget{SpreadDays: spread}
		if rawDate != "" {
			d, err := parseDate(rawDate, time.UTC)
			if err != nil {
				return entity.Validationf("date %q: %v", rawDate, err)
			}
			target.Date = &d
		}
		return runBulk(cmd, func(ctx context.Context, c *app.Container) (int, error) {
			return c.Admin.Reschedule(ctx, learnerID(), filter, target)
		})
	},
}

var adminResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset matching cards to NEW, due now",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		return runBulk(cmd, func(ctx context.Context, c *app.Container) (int, error) {
			return c.Admin.ResetProgress(ctx, learnerID(), filter)
		})
	},
}

var adminDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete matching cards; review history is kept",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		all, _ := cmd.Flags().GetBool("all")
		if filter == "" && !all {
			return entity.Validation("refusing to delete every card without --all")
		}
		return runBulk(cmd, func(ctx context.Context, c *app.Container) (int, error) {
			return c.Admin.DeleteCards(ctx, learnerID(), filter)
		})
	},
}

var adminDeleteCardCmd = &cobra.Command{
	Use:   "delete-card <card-id>",
	Short: "Delete one card owned by the learner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBulk(cmd, func(ctx context.Context, c *app.Container) (int, error) {
			if err := c.Admin.DeleteCard(ctx, learnerID(), args[0]); err != nil {
				return 0, err
			}
			return 1, nil
		})
	},
}

var adminRecoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Spread the overdue backlog over the next days by priority",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			plan, err := c.Admin.RecoverBacklog(ctx, learnerID(), days)
			if err != nil {
				return err
			}
			return printJSON(cmd, toRecoveryView(plan))
		})
	},
}

var adminPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete cards whose content no longer exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBulk(cmd, func(ctx context.Context, c *app.Container) (int, error) {
			return c.Admin.PruneOrphans(ctx, learnerID())
		})
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminListCmd, adminRescheduleCmd, adminResetCmd, adminDeleteCmd,
		adminDeleteCardCmd, adminRecoverCmd, adminPruneCmd)

	for _, c := range []*cobra.Command{adminListCmd, adminRescheduleCmd, adminResetCmd, adminDeleteCmd} {
		c.Flags().String("filter", "", "filter expression; empty matches every card")
	}
	adminListCmd.Flags().String("order", "", "order, e.g. \"due asc\" or \"lapses desc, due asc\"")
	adminListCmd.Flags().Int32("page", 1, "page number")
	adminListCmd.Flags().Int32("page-size", 50, "page size")
	adminRescheduleCmd.Flags().String("date", "", "target date as YYYY-MM-DD")
	adminRescheduleCmd.Flags().Int("spread", 0, "spread over this many study days")
	adminDeleteCmd.Flags().Bool("all", false, "allow an empty filter")
	adminRecoverCmd.Flags().Int("days", 7, "number of days to spread the backlog over")
}

func runBulk(cmd *cobra.Command, fn func(ctx context.Context, c *app.Container) (int, error)) error {
	return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
		n, err := fn(ctx, c)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]int{"affected": n})
	})
}

type assignmentView struct {
	CardID string    `json:"card_id"`
	Score  float64   `json:"score"`
	Due    time.Time `json:"due"`
}

type recoveryView struct {
	LearnerID   string           `json:"learner_id"`
	Days        int              `json:"days"`
	Capacity    int              `json:"capacity"`
	Applied     int              `json:"applied"`
	Assignments []assignmentView `json:"assignments"`
}

func toRecoveryView(plan usecase.RecoveryPlan) recoveryView {
	return recoveryView{
		LearnerID: plan.LearnerID,
		Days:      plan.Days,
		Capacity:  plan.Capacity,
		Applied:   plan.Applied,
		Assignments: lo.Map(plan.Assignments, func(a scheduling.Assignment, _ int) assignmentView {
			return assignmentView{CardID: a.Card.ID, Score: a.Score, Due: a.Due}
		}),
	}
}
