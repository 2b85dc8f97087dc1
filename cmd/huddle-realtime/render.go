// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/huddle-chat/huddle/control"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	dormantStyle = cellStyle.Foreground(lipgloss.Color("9"))
	joinedStyle  = cellStyle.Foreground(lipgloss.Color("10"))
)

// Column of the topic state in the status table.
const stateColumn = 2

// renderStatus formats status as one table row per topic.
func renderStatus(status *control.StatusResponse) string {
	var rows [][]string
	for _, manager := range status.Managers {
		if len(manager.Topics) == 0 {
			rows = append(rows, []string{manager.Name, "-", stoppedOr(manager.Started, "-"), "", "", ""})
			continue
		}
		for _, topic := range manager.Topics {
			state := string(topic.State)
			switch {
			case topic.Dormant:
				state = "dormant"
			case state == "":
				state = stoppedOr(manager.Started, "idle")
			}
			retry := ""
			if topic.RetryPending {
				retry = "pending"
			}
			rows = append(rows, []string{
				manager.Name,
				topic.Topic,
				state,
				strconv.FormatBool(topic.Live),
				strconv.Itoa(topic.Retries),
				retry,
			})
		}
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("MANAGER", "TOPIC", "STATE", "LIVE", "RETRIES", "RETRY").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == stateColumn && row < len(rows) {
				switch rows[row][stateColumn] {
				case "dormant":
					return dormantStyle
				case "joined":
					return joinedStyle
				}
			}
			return cellStyle
		}).
		String()
}

func stoppedOr(started bool, value string) string {
	if !started {
		return "stopped"
	}
	return value
}

// dormantTopics counts topics whose retry budget is spent.
func dormantTopics(status *control.StatusResponse) int {
	count := 0
	for _, manager := range status.Managers {
		for _, topic := range manager.Topics {
			if topic.Dormant {
				count++
			}
		}
	}
	return count
}
