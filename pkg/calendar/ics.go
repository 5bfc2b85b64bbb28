package calendar

import (
	"time"

	ics "github.com/arran4/golang-ical"
)

const icsProductId = "-//consolecal//calendar//EN"

// Members have no mail address, attendees are identified by member id instead.
const memberURIPrefix = "urn:consolecal:member:"

// ExportICS renders events as an iCalendar document. Occurrences of a series are exported as
// individual VEVENTs related to their series id.
func ExportICS(events []Event, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductId)

	for _, e := range events {
		vevent := cal.AddEvent(e.UID.String())
		vevent.SetDtStampTime(stamp)
		if e.AllDay {
			vevent.SetAllDayStartAt(e.Start)
			vevent.SetAllDayEndAt(e.End)
		} else {
			vevent.SetStartAt(e.Start)
			vevent.SetEndAt(e.End)
		}
		vevent.SetSummary(e.Title)
		if e.Description != "" {
			vevent.SetDescription(e.Description)
		}
		if e.MeetingLink != "" {
			vevent.SetURL(e.MeetingLink)
		}
		vevent.SetProperty(ics.ComponentPropertyColor, string(e.Color))
		if e.SeriesId.Valid {
			vevent.SetProperty(ics.ComponentPropertyRelatedTo, e.SeriesId.UUID.String())
		}
		for _, m := range e.Members {
			vevent.AddProperty(ics.ComponentPropertyAttendee, memberURIPrefix+m.Id, ics.WithCN(m.Name), participationStatus(m.Status))
		}
	}
	return cal.Serialize()
}

func participationStatus(status MemberStatus) ics.ParticipationStatus {
	switch status {
	case MemberAccepted:
		return ics.ParticipationStatusAccepted
	case MemberDeclined:
		return ics.ParticipationStatusDeclined
	default:
		return ics.ParticipationStatusNeedsAction
	}
}
