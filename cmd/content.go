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

	"github.com/spf13/cobra"

	"github.com/eslsoft/studyplan/internal/app"
	"github.com/eslsoft/studyplan/internal/entity"
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Manage the content catalog cards are created from",
}

var contentRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Add or replace a content item",
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := contentFromFlags(cmd)
		if err != nil {
			return err
		}
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			if err := c.Catalog.Register(ctx, content); err != nil {
				return err
			}
			cmd.Printf("registered %s\n", content.Ref())
			return nil
		})
	},
}

var contentShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a content item",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := contentRefFromFlags(cmd)
		if err != nil {
			return err
		}
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			content, err := c.Catalog.Lookup(ctx, ref)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"type":    ref.Type,
				"id":      ref.ID,
				"title":   content.Title(),
				"content": content,
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(contentCmd)
	contentCmd.AddCommand(contentRegisterCmd, contentShowCmd)

	for _, c := range []*cobra.Command{contentRegisterCmd, contentShowCmd} {
		c.Flags().String("type", "", "content type: flashcard, question or error_note")
		c.Flags().String("content-id", "", "content id within its type")
	}
	f := contentRegisterCmd.Flags()
	f.String("deck", "", "flashcard deck id")
	f.String("front", "", "flashcard front text")
	f.String("bank", "", "question bank id")
	f.String("subject", "", "question or error note subject")
	f.Int("difficulty", 0, "question difficulty")
	f.String("source-question", "", "question an error note was written for")
}

func contentFromFlags(cmd *cobra.Command) (entity.Content, error) {
	ref, err := contentRefFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	f := cmd.Flags()
	subject, _ := f.GetString("subject")
	switch ref.Type {
	case entity.ContentFlashcard:
		deck, _ := f.GetString("deck")
		front, _ := f.GetString("front")
		return entity.FlashcardContent{ID: ref.ID, DeckID: deck, Front: front}, nil
	case entity.ContentQuestion:
		bank, _ := f.GetString("bank")
		difficulty, _ := f.GetInt("difficulty")
		return entity.QuestionContent{ID: ref.ID, BankID: bank, Subject: subject, Difficulty: difficulty}, nil
	default:
		source, _ := f.GetString("source-question")
		return entity.ErrorNoteContent{ID: ref.ID, SourceQuestionID: source, Subject: subject}, nil
	}
}
