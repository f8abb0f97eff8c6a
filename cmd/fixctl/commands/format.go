package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
)

const (
	formatJSON  = "json"
	formatTable = "table"
	valueNA     = "N/A"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// formatSessions renders a slice of sessions in the requested format.
func formatSessions(sessions []sessionView, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(sessions)
	case formatTable:
		return formatSessionsTable(sessions), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatSession renders a single session in the requested format.
func formatSession(session sessionView, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(session)
	case formatTable:
		return formatSessionDetail(session), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatEvent renders a streamed state-change event in the requested format.
func formatEvent(event eventView, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(event)
	case formatTable:
		return formatEventLine(event), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatJSONValue(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal to JSON: %w", err)
	}
	return string(data), nil
}

func formatSessionsTable(sessions []sessionView) string {
	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Session", "Begin", "Sender", "Target", "Enabled", "LoggedOn", "Connected", "NextOut", "NextIn"})

	for _, s := range sessions {
		table.Append([]string{
			s.SessionID,
			s.BeginString,
			s.SenderCompID,
			s.TargetCompID,
			strconv.FormatBool(s.Enabled),
			strconv.FormatBool(s.LoggedOn),
			strconv.FormatBool(s.Connected),
			strconv.FormatUint(s.NextSenderSeqNum, 10),
			strconv.FormatUint(s.NextTargetSeqNum, 10),
		})
	}

	table.Render()
	return buf.String()
}

func formatSessionDetail(s sessionView) string {
	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Field", "Value"})

	table.Append([]string{"Session ID", s.SessionID})
	table.Append([]string{"BeginString", s.BeginString})
	table.Append([]string{"SenderCompID", s.SenderCompID})
	table.Append([]string{"TargetCompID", s.TargetCompID})
	table.Append([]string{"Enabled", strconv.FormatBool(s.Enabled)})
	table.Append([]string{"Logged On", strconv.FormatBool(s.LoggedOn)})
	table.Append([]string{"Connected", strconv.FormatBool(s.Connected)})
	table.Append([]string{"Next Sender MsgSeqNum", strconv.FormatUint(s.NextSenderSeqNum, 10)})
	table.Append([]string{"Next Target MsgSeqNum", strconv.FormatUint(s.NextTargetSeqNum, 10)})

	table.Render()
	return buf.String()
}

func formatEventLine(event eventView) string {
	ts := valueNA
	if !event.Timestamp.IsZero() {
		ts = event.Timestamp.Format("2006-01-02T15:04:05Z07:00")
	}
	return fmt.Sprintf("[%s] session=%s state=%s", ts, event.SessionID, event.State)
}
