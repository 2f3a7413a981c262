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
	"github.com/eslsoft/studyplan/internal/usecase"
)

var cardCmd = &cobra.Command{
	Use:   "card",
	Short: "Create, review and queue a learner's cards",
}

var cardCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the card for a content item, returning the existing one if present",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := contentRefFromFlags(cmd)
		if err != nil {
			return err
		}
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			card, err := c.Reviews.CreateCard(ctx, learnerID(), ref)
			if err != nil {
				return err
			}
			return printJSON(cmd, toCardView(card))
		})
	},
}

var cardReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Submit a graded review (again, hard, good, easy)",
	RunE: func(cmd *cobra.Command, args []string) error {
		sub, err := submissionFromFlags(cmd)
		if err != nil {
			return err
		}
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			card, err := c.Reviews.SubmitReview(ctx, learnerID(), sub)
			if err != nil {
				return err
			}
			return printJSON(cmd, toCardView(card))
		})
	},
}

var cardPreviewCmd = &cobra.Command{
	Use:   "preview <card-id>",
	Short: "Show the outcome of every grade without storing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			outcomes, err := c.Reviews.PreviewReview(ctx, learnerID(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, lo.MapValues(outcomes, func(card *entity.Card, _ entity.Grade) cardView {
				return toCardView(card)
			}))
		})
	},
}

var cardDueCmd = &cobra.Command{
	Use:   "due",
	Short: "List due cards in review order",
	RunE: func(cmd *cobra.Command, args []string) error {
		rawTypes, _ := cmd.Flags().GetStringSlice("types")
		limit, _ := cmd.Flags().GetInt("limit")
		types, err := parseContentTypes(rawTypes)
		if err != nil {
			return err
		}
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			due, err := c.Reviews.GetDueCards(ctx, learnerID(), usecase.DueFilter{ContentTypes: types, Limit: limit})
			if err != nil {
				return err
			}
			return printJSON(cmd, toDueViews(due))
		})
	},
}

var cardHistoryCmd = &cobra.Command{
	Use:   "history <card-id>",
	Short: "Show the recorded reviews of a card, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			events, err := c.ReviewLogs.ListByCard(ctx, args[0], limit)
			if err != nil {
				return err
			}
			events = lo.Filter(events, func(e *entity.ReviewEvent, _ int) bool { return e.LearnerID == learnerID() })
			return printJSON(cmd, toReviewViews(events))
		})
	},
}

func init() {
	rootCmd.AddCommand(cardCmd)
	cardCmd.AddCommand(cardCreateCmd, cardReviewCmd, cardPreviewCmd, cardDueCmd, cardHistoryCmd)

	for _, c := range []*cobra.Command{cardCreateCmd, cardReviewCmd} {
		c.Flags().String("type", "", "content type: flashcard, question or error_note")
		c.Flags().String("content-id", "", "content id within its type")
	}
	cardReviewCmd.Flags().String("card-id", "", "address the card directly instead of by content")
	cardReviewCmd.Flags().String("grade", "", "again, hard, good, easy or 1-4")
	cardReviewCmd.Flags().Duration("time-spent", 0, "time spent on the review")
	cardReviewCmd.Flags().Bool("passive", false, "record a passive touch that leaves the schedule unchanged")
	cobra.CheckErr(cardReviewCmd.MarkFlagRequired("grade"))

	cardDueCmd.Flags().StringSlice("types", nil, "only these content types")
	cardDueCmd.Flags().Int("limit", 0, "maximum number of cards (0 means all)")
	cardHistoryCmd.Flags().Int("limit", 20, "maximum number of reviews")
}

func contentRefFromFlags(cmd *cobra.Command) (entity.ContentRef, error) {
	rawType, _ := cmd.Flags().GetString("type")
	id, _ := cmd.Flags().GetString("content-id")
	if rawType == "" && id == "" {
		return entity.ContentRef{}, nil
	}
	t, err := entity.ParseContentType(rawType)
	if err != nil {
		return entity.ContentRef{}, err
	}
	ref := entity.ContentRef{Type: t, ID: id}
	return ref, ref.Validate()
}

func submissionFromFlags(cmd *cobra.Command) (entity.ReviewSubmission, error) {
	ref, err := contentRefFromFlags(cmd)
	if err != nil {
		return entity.ReviewSubmission{}, err
	}
	cardID, _ := cmd.Flags().GetString("card-id")
	rawGrade, _ := cmd.Flags().GetString("grade")
	spent, _ := cmd.Flags().GetDuration("time-spent")
	passive, _ := cmd.Flags().GetBool("passive")
	grade, err := entity.ParseGrade(rawGrade)
	if err != nil {
		return entity.ReviewSubmission{}, err
	}
	sub := entity.ReviewSubmission{
		Content:     ref,
		CardID:      cardID,
		Grade:       grade,
		TimeSpentMs: spent.Milliseconds(),
		Active:      !passive,
	}
	return sub, sub.Validate()
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, raw, loc)
}
