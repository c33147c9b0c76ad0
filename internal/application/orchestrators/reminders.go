package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"trainerdesk/internal/adapters/email"
	"trainerdesk/internal/application/scheduler"
	"trainerdesk/internal/application/timeutil"
	"trainerdesk/internal/domain/session"
)

// SendRemindersDeps holds dependencies for the reminder sweep.
type SendRemindersDeps struct {
	Repo       scheduler.SessionRepository
	Clients    scheduler.ClientDirectory
	Sender     email.Sender
	Normalizer *timeutil.Normalizer
	From       string // Sender address for outbound reminders
	ReplyTo    string
	Now        func() time.Time
}

// SendRemindersResult summarizes one sweep.
type SendRemindersResult struct {
	Date    string // Date key of the day the reminders cover
	Matched int    // Booked sessions found for that day
	Sent    int    // Emails actually dispatched
	Skipped int    // Sessions skipped (no client email on file)
}

// ExecuteSendSessionReminders emails each client a reminder for their
// booked sessions tomorrow. Sessions whose client has no email on file
// are skipped and counted, not failed.
// PRE: deps.Repo, deps.Clients, deps.Sender and deps.Normalizer are non-nil
// POST: One email per matched session with a reachable client is dispatched
func ExecuteSendSessionReminders(ctx context.Context, deps SendRemindersDeps) (SendRemindersResult, error) {
	nowLocal := deps.Normalizer.ToLocalDate(deps.Now())
	tomorrow := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day()+1, 0, 0, 0, 0, nowLocal.Location())
	dayStart := tomorrow
	dayEnd := tomorrow.AddDate(0, 0, 1).Add(-time.Nanosecond)
	dateKey := deps.Normalizer.DateKey(tomorrow)

	result := SendRemindersResult{Date: dateKey}

	sessions, err := deps.Repo.LoadSessions(ctx, dayStart.UTC(), dayEnd.UTC(), scheduler.Filters{
		Statuses: []string{session.StatusBooked},
	})
	if err != nil {
		return result, fmt.Errorf("load tomorrow's sessions: %w", err)
	}
	result.Matched = len(sessions)
	if len(sessions) == 0 {
		slog.Info("reminder_event", "event", "sweep_empty", "date", dateKey)
		return result, nil
	}

	clients, err := deps.Clients.List(ctx)
	if err != nil {
		return result, fmt.Errorf("list clients: %w", err)
	}
	byID := make(map[string]int, len(clients))
	for i, c := range clients {
		byID[c.ID] = i
	}

	var reqs []email.SendRequest
	for _, s := range sessions {
		i, ok := byID[s.ClientID]
		if !ok || clients[i].Email == "" {
			result.Skipped++
			slog.Warn("reminder_skipped", "session_id", s.ID, "client_id", s.ClientID, "reason", "no_email")
			continue
		}
		c := clients[i]
		reqs = append(reqs, email.SendRequest{
			To:      []string{c.Email},
			From:    deps.From,
			Subject: fmt.Sprintf("Reminder: session tomorrow at %s", deps.Normalizer.FormatTimeOfDay(s.StartAt)),
			HTML:    reminderBody(c.DisplayName(), s, deps.Normalizer),
			ReplyTo: deps.ReplyTo,
		})
	}

	if len(reqs) > 0 {
		results, err := deps.Sender.SendBatch(ctx, reqs)
		if err != nil {
			return result, fmt.Errorf("send reminder batch: %w", err)
		}
		result.Sent = len(results)
	}

	slog.Info("reminder_event", "event", "sweep_complete",
		"date", dateKey, "matched", result.Matched, "sent", result.Sent, "skipped", result.Skipped)
	return result, nil
}

// reminderBody renders the reminder email. Plain HTML, no template
// engine: the content is three short lines.
func reminderBody(name string, s session.Session, n *timeutil.Normalizer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hi %s,</p>", name)
	fmt.Fprintf(&b, "<p>This is a reminder for your training session tomorrow, %s.</p>", n.FormatRange(s.StartAt, s.EndAt))
	if s.Location != "" {
		fmt.Fprintf(&b, "<p>Location: %s</p>", s.Location)
	}
	b.WriteString("<p>See you there!</p>")
	return b.String()
}
