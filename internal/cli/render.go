package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/bebetter/internal/app"
	"github.com/roach88/bebetter/internal/ledger"
	"github.com/roach88/bebetter/internal/reward"
)

var (
	colorPrimary = lipgloss.Color("63")  // blue
	colorGood    = lipgloss.Color("42")  // green
	colorWarn    = lipgloss.Color("214") // orange
	colorBad     = lipgloss.Color("196") // red
	colorMuted   = lipgloss.Color("244") // gray
	colorGold    = lipgloss.Color("220") // gold
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	keyStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	goodStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorGood)
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorWarn)
	badStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorBad)
	goldStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorGold)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)
)

const progressWidth = 20

func labelValue(label string, value any) string {
	return fmt.Sprintf("%s %v", keyStyle.Render(label+":"), value)
}

// progressBar renders how far xp is into the current level.
func progressBar(xp int) string {
	into := xp % reward.XPPerLevel
	if xp < 0 {
		into = 0
	}
	filled := into * progressWidth / reward.XPPerLevel
	return goodStyle.Render(strings.Repeat("█", filled)) +
		mutedStyle.Render(strings.Repeat("░", progressWidth-filled))
}

func renderStatus(st app.Status) string {
	var b strings.Builder

	fmt.Fprintln(&b, titleStyle.Render(fmt.Sprintf("Level %d", st.Level)))
	fmt.Fprintf(&b, "%s %s %s\n", progressBar(st.XP), mutedStyle.Render(fmt.Sprintf("%d xp", st.XP)),
		mutedStyle.Render(fmt.Sprintf("(%d to next level)", st.XPToNextLevel)))
	fmt.Fprintln(&b, labelValue("Coins", goldStyle.Render(fmt.Sprint(st.Coins))))
	fmt.Fprintln(&b, labelValue("Tasks", fmt.Sprintf("%d/%d active", st.ActiveTasks, ledger.MaxActiveTasks)))

	if len(st.ItemsOwned) > 0 {
		items := make([]string, 0, len(st.ItemsOwned))
		for id := range st.ItemsOwned {
			items = append(items, id)
		}
		sort.Strings(items)
		parts := make([]string, len(items))
		for i, id := range items {
			parts[i] = fmt.Sprintf("%s x%d", id, st.ItemsOwned[id])
		}
		fmt.Fprintln(&b, labelValue("Items", strings.Join(parts, ", ")))
	}

	if st.SignedIn {
		fmt.Fprint(&b, labelValue("Sync", goodStyle.Render("signed in")))
		if st.Sync.Failed > 0 {
			fmt.Fprint(&b, " ", warnStyle.Render(fmt.Sprintf("(%d failed)", st.Sync.Failed)))
		}
	} else {
		fmt.Fprint(&b, labelValue("Sync", mutedStyle.Render("offline")))
	}

	return panelStyle.Render(b.String())
}

func renderTasks(tasks []app.TaskStatus) string {
	var b strings.Builder
	fmt.Fprintln(&b, titleStyle.Render("Tasks"))
	for i, t := range tasks {
		var mark string
		switch {
		case t.Completed:
			mark = goodStyle.Render("[x]")
		case t.InPool:
			mark = warnStyle.Render("[ ]")
		default:
			mark = mutedStyle.Render(" - ")
		}
		line := fmt.Sprintf("%s %-15s %s %s", mark, t.ID, t.Title,
			mutedStyle.Render(fmt.Sprintf("+%dxp +%dc", t.Reward.XP, t.Reward.Coins)))
		if i < len(tasks)-1 {
			line += "\n"
		}
		b.WriteString(line)
	}
	return panelStyle.Render(b.String())
}
