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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/eslsoft/studyplan/internal/app"
	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/usecase"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change a learner's scheduling preferences",
}

var prefsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the effective preferences, defaults filled in",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			prefs, err := c.Preferences.Get(ctx, learnerID())
			if err != nil {
				return err
			}
			return printJSON(cmd, toPreferencesView(prefs))
		})
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change only the given preferences",
	Example: `  studyplan prefs set -l alice --mode intensive --exam-date 2025-06-01
  studyplan prefs set -l alice --cap question=20 --distribution flashcard=0.6,question=0.4
  studyplan prefs set -l alice --clear-exam-date --study-days mon,wed,fri`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			current, err := c.Preferences.Get(ctx, learnerID())
			if err != nil {
				return err
			}
			patch, err := patchFromFlags(cmd, current)
			if err != nil {
				return err
			}
			prefs, err := c.Preferences.Update(ctx, learnerID(), patch)
			if err != nil {
				return err
			}
			return printJSON(cmd, toPreferencesView(prefs))
		})
	},
}

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsGetCmd, prefsSetCmd)

	f := prefsSetCmd.Flags()
	f.String("mode", "", "cramming, intensive, balanced or relaxed")
	f.Bool("auto-adjust", false, "pick the mode from the exam date")
	f.String("exam-date", "", "exam date as YYYY-MM-DD in the learner's timezone")
	f.Bool("clear-exam-date", false, "remove the exam date")
	f.Int("max-interval", 0, "cap every interval at this many days (5 to 36500)")
	f.Bool("clear-max-interval", false, "remove the interval cap")
	f.String("placement", "", "traditional or smart")
	f.StringSlice("study-days", nil, "weekdays reviews may land on, e.g. mon,tue")
	f.StringSlice("cap", nil, "per-type daily cap as type=n, merged into the current caps")
	f.Int("daily-capacity", 0, "total reviews per day")
	f.StringSlice("distribution", nil, "queue share per type as type=ratio, replacing the current shares")
	f.String("timezone", "", "IANA timezone name")
}

// patchFromFlags turns the changed flags into a patch. Dates resolve in the
// timezone being set, or the current one.
func patchFromFlags(cmd *cobra.Command, current entity.LearnerPreferences) (usecase.PreferencesPatch, error) {
	f := cmd.Flags()
	var patch usecase.PreferencesPatch

	if f.Changed("mode") {
		raw, _ := f.GetString("mode")
		mode, err := entity.ParseSchedulingMode(raw)
		if err != nil {
			return patch, err
		}
		patch.Mode = &mode
	}
	if f.Changed("auto-adjust") {
		v, _ := f.GetBool("auto-adjust")
		patch.AutoAdjust = &v
	}
	loc := current.Location()
	if f.Changed("timezone") {
		tz, _ := f.GetString("timezone")
		patch.Timezone = &tz
		if l, err := loadLocation(tz); err == nil {
			loc = l
		}
	}
	if f.Changed("exam-date") {
		raw, _ := f.GetString("exam-date")
		d, err := parseDate(raw, loc)
		if err != nil {
			return patch, entity.Validationf("exam date %q: %v", raw, err)
		}
		patch.ExamDate = &d
	}
	patch.ClearExamDate, _ = f.GetBool("clear-exam-date")
	if f.Changed("max-interval") {
		v, _ := f.GetInt("max-interval")
		patch.MaxIntervalOverride = &v
	}
	patch.ClearMaxInterval, _ = f.GetBool("clear-max-interval")
	if f.Changed("placement") {
		raw, _ := f.GetString("placement")
		p, err := entity.ParsePlacementMode(raw)
		if err != nil {
			return patch, err
		}
		patch.Placement = &p
	}
	if f.Changed("study-days") {
		raw, _ := f.GetStringSlice("study-days")
		days, err := entity.ParseWeekdays(raw)
		if err != nil {
			return patch, err
		}
		patch.StudyDays = days
	}
	if f.Changed("cap") {
		raw, _ := f.GetStringSlice("cap")
		caps, err := parseTypedValues(raw, strconv.Atoi)
		if err != nil {
			return patch, err
		}
		patch.DailyCaps = caps
	}
	if f.Changed("daily-capacity") {
		v, _ := f.GetInt("daily-capacity")
		patch.DailyCapacity = &v
	}
	if f.Changed("distribution") {
		raw, _ := f.GetStringSlice("distribution")
		dist, err := parseTypedValues(raw, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
		if err != nil {
			return patch, err
		}
		patch.Distribution = dist
	}
	return patch, nil
}

func parseTypedValues[V any](pairs []string, parse func(string) (V, error)) (map[entity.ContentType]V, error) {
	out := make(map[entity.ContentType]V, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, entity.Validationf("expected type=value, got %q", pair)
		}
		t, err := entity.ParseContentType(key)
		if err != nil {
			return nil, err
		}
		v, err := parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, entity.Validationf("value for %s: %v", t, err)
		}
		out[t] = v
	}
	return out, nil
}

func loadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}
