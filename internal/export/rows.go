package export

import "github.com/talkincode/wadesk/internal/domain"

func ConversationRows(items []domain.Conversation) []Row {
	rows := make([]Row, 0, len(items))
	for _, c := range items {
		rows = append(rows, Row{
			{"id", c.ID},
			{"instance_id", c.InstanceID},
			{"chat_id", c.ChatID},
			{"contact_name", c.ContactName},
			{"contact_phone", c.ContactPhone},
			{"status", c.Status},
			{"assigned_agent_id", c.AssignedAgentID},
			{"unread_count", c.UnreadCount},
			{"closed_at", c.ClosedAt},
			{"created_at", c.CreatedAt},
			{"updated_at", c.UpdatedAt},
		})
	}
	return rows
}

func LeadRows(items []domain.Lead) []Row {
	rows := make([]Row, 0, len(items))
	for _, l := range items {
		rows = append(rows, Row{
			{"id", l.ID},
			{"name", l.Name},
			{"phone", l.Phone},
			{"email", l.Email},
			{"course_interest", l.CourseInterest},
			{"status", l.Status},
			{"source", l.Source},
			{"created_at", l.CreatedAt},
		})
	}
	return rows
}

func AppointmentRows(items []domain.Appointment) []Row {
	rows := make([]Row, 0, len(items))
	for _, a := range items {
		rows = append(rows, Row{
			{"id", a.ID},
			{"lead_id", a.LeadID},
			{"name", a.Name},
			{"phone", a.Phone},
			{"scheduled_at", a.ScheduledAt},
			{"status", a.Status},
			{"notes", a.Notes},
			{"created_at", a.CreatedAt},
		})
	}
	return rows
}
